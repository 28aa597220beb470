// provider.go — зависимости сервисного слоя: Keycloak и журнал аудита.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/org-admin/internal/domain/model"
	"github.com/bigkaa/org-admin/internal/keycloak"
)

// IdentityProvider — операции Keycloak Admin REST API, нужные сервисам.
// Реализуется *keycloak.Client; в тестах — in-memory fake.
type IdentityProvider interface {
	AcquireToken(ctx context.Context, realm, username, password string) (*keycloak.TokenResponse, error)

	CreateRealm(ctx context.Context, token string, realm keycloak.RealmRepresentation) error
	UpdateRealm(ctx context.Context, token, realm string, settings keycloak.RealmSettings) error
	DeleteRealm(ctx context.Context, token, realm string) error
	ListRealms(ctx context.Context, token string) ([]keycloak.RealmRepresentation, error)

	CreateClient(ctx context.Context, token, realm string, client keycloak.ClientRepresentation) (string, error)

	CreateRole(ctx context.Context, token, realm, name string) error
	GetRole(ctx context.Context, token, realm, name string) (*keycloak.Role, error)
	ListRoles(ctx context.Context, token, realm string) ([]keycloak.Role, error)
	AssignRealmRoles(ctx context.Context, token, realm, userID string, roles []keycloak.Role) error

	CreateUser(ctx context.Context, token, realm string, user keycloak.UserRepresentation) (string, error)
	FindUserByUsername(ctx context.Context, token, realm, username string) (*keycloak.User, error)
	UpdateUser(ctx context.Context, token, realm, id string, patch keycloak.UserPatch) error
	ResetPassword(ctx context.Context, token, realm, id, password string) error
	DeleteUser(ctx context.Context, token, realm, id string) error
	ListUsers(ctx context.Context, token, realm string) ([]keycloak.User, error)
}

// AuditRecorder — журнал аудита изменяющих операций.
// Реализуется repository.AuditEventRepository.
type AuditRecorder interface {
	Record(ctx context.Context, ev *model.AuditEvent) error
}

// auditor записывает события аудита. Сбой журнала не влияет на операцию.
type auditor struct {
	recorder AuditRecorder
	logger   *slog.Logger
}

func newAuditor(recorder AuditRecorder, logger *slog.Logger) *auditor {
	return &auditor{recorder: recorder, logger: logger}
}

// record добавляет событие в журнал. recorder == nil — аудит отключён.
func (a *auditor) record(ctx context.Context, action model.AuditAction, realm, subject string, outcome model.AuditOutcome, step, detail string) {
	if a == nil || a.recorder == nil {
		return
	}

	ev := &model.AuditEvent{
		ID:         uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Action:     action,
		Realm:      realm,
		Subject:    subject,
		Outcome:    outcome,
		Step:       step,
		Detail:     detail,
	}

	if err := a.recorder.Record(ctx, ev); err != nil {
		a.logger.Warn("Ошибка записи события аудита",
			slog.String("action", string(action)),
			slog.String("realm", realm),
			slog.String("error", err.Error()),
		)
	}
}

// resultOutcome переводит результат операции в исход для журнала.
func resultOutcome(r Result) model.AuditOutcome {
	if r.IsConflict() {
		return model.AuditOutcomeConflict
	}
	return model.AuditOutcomeSuccess
}
