// handler.go — основной обработчик API org-admin.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/org-admin/internal/api/errors"
	"github.com/bigkaa/org-admin/internal/api/middleware"
	"github.com/bigkaa/org-admin/internal/domain/rbac"
	"github.com/bigkaa/org-admin/internal/service"
)

// maxBodyBytes — максимальный размер тела запроса.
const maxBodyBytes = 1 << 20

// APIHandler — основной обработчик API.
type APIHandler struct {
	health        *HealthHandler
	auth          *service.AuthService
	organizations *service.OrganizationService
	users         *service.UserService
	roles         *service.RoleService
	masterRealm   string
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// masterRealm — realm супер-администратора (для проверки claims при OA_JWT_VERIFY).
func NewAPIHandler(
	health *HealthHandler,
	auth *service.AuthService,
	organizations *service.OrganizationService,
	users *service.UserService,
	roles *service.RoleService,
	masterRealm string,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		auth:          auth,
		organizations: organizations,
		users:         users,
		roles:         roles,
		masterRealm:   masterRealm,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// messageResponse — ответ изменяющих операций.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeResult записывает результат операции: конфликт → 409, иначе okStatus.
func writeResult(w http.ResponseWriter, okStatus int, result service.Result) {
	status := okStatus
	if result.IsConflict() {
		status = http.StatusConflict
	}
	writeJSON(w, status, messageResponse{Message: result.Message})
}

// writeServiceError переводит ошибку сервисного слоя в ответ {"error": message}.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		authErr     *service.AuthError
		notFoundErr *service.NotFoundError
		provErr     *service.ProvisioningError
		upErr       *service.UpstreamError
	)

	switch {
	case errors.As(err, &authErr),
		errors.As(err, &notFoundErr),
		errors.As(err, &provErr),
		errors.As(err, &upErr):
		apierrors.InternalError(w, err.Error())
	default:
		h.logger.Error("Необработанная ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Internal server error.")
	}
}

// decodeBody разбирает JSON-тело запроса. При ошибке пишет 400 и возвращает false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		switch {
		case errors.Is(err, openapi_types.ErrValidationEmail):
			apierrors.ValidationError(w, "Invalid email address.")
		case errors.Is(err, io.EOF):
			apierrors.ValidationError(w, "Request body is required.")
		default:
			apierrors.ValidationError(w, "Invalid JSON body.")
		}
		return false
	}
	return true
}

// field — пара имя/значение обязательного поля.
type field struct {
	name  string
	value string
}

// requireFields проверяет, что обязательные поля заполнены. При ошибке пишет 400.
func requireFields(w http.ResponseWriter, fields ...field) bool {
	for _, f := range fields {
		if f.value == "" {
			apierrors.ValidationError(w, fmt.Sprintf("Field '%s' is required.", f.name))
			return false
		}
	}
	return true
}

// authorizeRealm проверяет, что владелец токена может управлять realm.
// Без проверки JWT (claims отсутствуют) права проверяет Keycloak.
func (h *APIHandler) authorizeRealm(w http.ResponseWriter, r *http.Request, realm string) bool {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return true
	}
	if !rbac.CanManageRealm(claims.Realm, h.masterRealm, realm, claims.Roles) {
		apierrors.Forbidden(w, fmt.Sprintf("Access to realm '%s' is denied.", realm))
		return false
	}
	return true
}

// authorizeSuperAdmin проверяет, что токен выдан master realm.
func (h *APIHandler) authorizeSuperAdmin(w http.ResponseWriter, r *http.Request) bool {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return true
	}
	if !rbac.IsSuperAdmin(claims.Realm, h.masterRealm) {
		apierrors.Forbidden(w, "Super Admin token is required.")
		return false
	}
	return true
}
