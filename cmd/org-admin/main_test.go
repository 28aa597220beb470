package main

import (
	"testing"
	"time"

	"github.com/bigkaa/org-admin/internal/config"
)

func TestDephealthConfig(t *testing.T) {
	cfg := &config.Config{
		KeycloakURL:            "https://keycloak.example.com",
		KeycloakMasterRealm:    "master",
		CACertPath:             "/certs/ca.pem",
		DephealthGroup:         "org-admin",
		DephealthCheckInterval: 15 * time.Second,
	}

	dc := dephealthConfig(cfg, nil)
	if dc.TLSSkipVerify {
		t.Error("TLSSkipVerify = true при заданном CA, ожидается проверка сертификата")
	}
	if dc.DB != nil || dc.PGConnURL != "" {
		t.Errorf("без журнала аудита PostgreSQL не мониторится: DB=%v, PGConnURL=%q", dc.DB, dc.PGConnURL)
	}
	if dc.MasterRealm != "master" || dc.KeycloakURL != cfg.KeycloakURL {
		t.Errorf("неожиданные параметры Keycloak: %+v", dc)
	}

	cfg.DephealthTLSSkipVerify = true
	cfg.AuditEnabled = true
	cfg.DBHost = "db"
	cfg.DBPort = 5432
	cfg.DBName = "orgadmin"
	dc = dephealthConfig(cfg, nil)
	if !dc.TLSSkipVerify {
		t.Error("TLSSkipVerify = false при OA_DEPHEALTH_TLS_SKIP_VERIFY=true")
	}
	if dc.PGConnURL != "postgres://db:5432/orgadmin" {
		t.Errorf("PGConnURL = %q", dc.PGConnURL)
	}
}
