package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticChecker struct {
	status  string
	message string
}

func (c staticChecker) CheckReady() (string, string) { return c.status, c.message }

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		kc         ReadinessChecker
		pg         ReadinessChecker
		wantCode   int
		wantStatus string
		wantPG     bool
	}{
		{"Keycloak ok, журнал отключён", staticChecker{"ok", ""}, nil, http.StatusOK, "ok", false},
		{"Keycloak fail", staticChecker{"fail", "down"}, nil, http.StatusServiceUnavailable, "fail", false},
		{"журнал недоступен", staticChecker{"ok", ""}, staticChecker{"fail", "down"}, http.StatusOK, "degraded", true},
		{"всё доступно", staticChecker{"ok", ""}, staticChecker{"ok", ""}, http.StatusOK, "ok", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.kc, tt.pg)
			rec := httptest.NewRecorder()
			h.HealthReady(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("код = %d, ожидали %d", rec.Code, tt.wantCode)
			}
			var resp healthReadyResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("некорректный JSON: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, ожидали %q", resp.Status, tt.wantStatus)
			}
			if (resp.Checks.PostgreSQL != nil) != tt.wantPG {
				t.Errorf("postgresql присутствует = %v, ожидали %v", resp.Checks.PostgreSQL != nil, tt.wantPG)
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	if s := overallStatus("ok", "degraded"); s != "degraded" {
		t.Errorf("overallStatus(ok, degraded) = %q", s)
	}
	if s := overallStatus("degraded", "fail"); s != "fail" {
		t.Errorf("overallStatus(degraded, fail) = %q", s)
	}
	if s := overallStatus(); s != "ok" {
		t.Errorf("overallStatus() = %q", s)
	}
}
