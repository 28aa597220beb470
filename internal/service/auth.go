// auth.go — вход по логину и паролю (password grant) в Keycloak.
// Токены не сохраняются: клиент API передаёт их в каждом запросе.
package service

import (
	"context"
	"log/slog"

	"github.com/bigkaa/org-admin/internal/domain/model"
	"github.com/bigkaa/org-admin/internal/keycloak"
)

// AuthService — получение токенов супер-администратора и пользователей организаций.
type AuthService struct {
	idp         IdentityProvider
	masterRealm string
	audit       *auditor
	logger      *slog.Logger
}

// NewAuthService создаёт сервис входа.
// masterRealm — realm супер-администратора.
func NewAuthService(idp IdentityProvider, masterRealm string, recorder AuditRecorder, logger *slog.Logger) *AuthService {
	logger = logger.With(slog.String("component", "auth_service"))
	return &AuthService{
		idp:         idp,
		masterRealm: masterRealm,
		audit:       newAuditor(recorder, logger),
		logger:      logger,
	}
}

// SuperAdminLogin получает токен супер-администратора в master realm.
func (s *AuthService) SuperAdminLogin(ctx context.Context, username, password string) (*keycloak.TokenResponse, error) {
	return s.login(ctx, s.masterRealm, username, password, "Invalid Super Admin credentials.")
}

// Login получает токен пользователя в realm организации.
func (s *AuthService) Login(ctx context.Context, realm, username, password string) (*keycloak.TokenResponse, error) {
	return s.login(ctx, realm, username, password, "Invalid credentials.")
}

func (s *AuthService) login(ctx context.Context, realm, username, password, failure string) (*keycloak.TokenResponse, error) {
	token, err := s.idp.AcquireToken(ctx, realm, username, password)
	if err != nil {
		s.logger.Warn("Ошибка входа",
			slog.String("realm", realm),
			slog.String("username", username),
			slog.Int("status", keycloak.StatusCode(err)),
			slog.String("error", err.Error()),
		)
		s.audit.record(ctx, model.AuditActionLogin, realm, username, model.AuditOutcomeFailure, "", err.Error())
		return nil, &AuthError{Message: failure, Err: err}
	}

	s.logger.Info("Вход выполнен",
		slog.String("realm", realm),
		slog.String("username", username),
	)
	s.audit.record(ctx, model.AuditActionLogin, realm, username, model.AuditOutcomeSuccess, "", "")
	return token, nil
}
