package service

import (
	"context"
	"log/slog"

	"github.com/bigkaa/org-admin/internal/domain/rbac"
)

// RoleService — чтение ролей realm.
type RoleService struct {
	idp    IdentityProvider
	logger *slog.Logger
}

// NewRoleService создаёт сервис ролей.
func NewRoleService(idp IdentityProvider, logger *slog.Logger) *RoleService {
	return &RoleService{
		idp:    idp,
		logger: logger.With(slog.String("component", "role_service")),
	}
}

// ListRoles возвращает имена ролей realm без ролей по умолчанию
// (offline_access, uma_authorization, default-roles-<realm>).
// Порядок Keycloak сохраняется.
func (s *RoleService) ListRoles(ctx context.Context, realm, token string) ([]string, error) {
	roles, err := s.idp.ListRoles(ctx, token, realm)
	if err != nil {
		s.logger.Error("Ошибка получения ролей",
			slog.String("realm", realm),
			slog.String("error", err.Error()),
		)
		return nil, &UpstreamError{Message: "Failed to fetch realm roles.", Err: err}
	}

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return rbac.FilterDefaultRoles(realm, names), nil
}
