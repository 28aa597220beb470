// users.go — управление пользователями организации через Keycloak.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/org-admin/internal/domain/model"
	"github.com/bigkaa/org-admin/internal/keycloak"
)

// CreateUserRequest — параметры нового пользователя.
type CreateUserRequest struct {
	Realm    string
	Username string
	Email    string
	Password string
}

// EditUserRequest — изменение пользователя.
// Пустой Password — пароль не меняется.
type EditUserRequest struct {
	Realm     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// UserService — CRUD пользователей realm.
type UserService struct {
	idp    IdentityProvider
	audit  *auditor
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(idp IdentityProvider, recorder AuditRecorder, logger *slog.Logger) *UserService {
	logger = logger.With(slog.String("component", "user_service"))
	return &UserService{
		idp:    idp,
		audit:  newAuditor(recorder, logger),
		logger: logger,
	}
}

// CreateUser создаёт пользователя с подтверждённым email и постоянным паролем.
// Существующий пользователь (найден при проверке или Keycloak ответил 409)
// возвращается как конфликт.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest, token string) (Result, error) {
	existing, err := s.idp.FindUserByUsername(ctx, token, req.Realm, req.Username)
	if err != nil {
		return Result{}, s.upstream(ctx, model.AuditActionUserCreate, req.Realm, req.Username, "Failed to create user.", err)
	}
	if existing != nil {
		return s.userExists(ctx, req.Realm, req.Username), nil
	}

	_, err = s.idp.CreateUser(ctx, token, req.Realm, keycloak.UserRepresentation{
		Username:      req.Username,
		Email:         req.Email,
		FirstName:     req.Username,
		LastName:      req.Username,
		Enabled:       true,
		EmailVerified: true,
		Credentials:   []keycloak.Credential{keycloak.PasswordCredential(req.Password)},
	})
	if err != nil {
		if keycloak.IsConflict(err) {
			return s.userExists(ctx, req.Realm, req.Username), nil
		}
		return Result{}, s.upstream(ctx, model.AuditActionUserCreate, req.Realm, req.Username, "Failed to create user.", err)
	}

	s.logger.Info("Пользователь создан",
		slog.String("realm", req.Realm),
		slog.String("username", req.Username),
	)
	result := done(fmt.Sprintf("User '%s' created successfully.", req.Username))
	s.audit.record(ctx, model.AuditActionUserCreate, req.Realm, req.Username, model.AuditOutcomeSuccess, "", result.Message)
	return result, nil
}

func (s *UserService) userExists(ctx context.Context, realm, username string) Result {
	s.logger.Warn("Пользователь уже существует",
		slog.String("realm", realm),
		slog.String("username", username),
	)
	result := conflict(fmt.Sprintf("User '%s' already exists.", username), "")
	s.audit.record(ctx, model.AuditActionUserCreate, realm, username, model.AuditOutcomeConflict, "", result.Message)
	return result
}

// EditUser обновляет имя и фамилию. Пароль сбрасывается только если передан.
func (s *UserService) EditUser(ctx context.Context, req EditUserRequest, token string) (Result, error) {
	user, err := s.lookup(ctx, model.AuditActionUserEdit, req.Realm, req.Username, token, "Failed to update user.")
	if err != nil {
		return Result{}, err
	}

	patch := keycloak.UserPatch{FirstName: req.FirstName, LastName: req.LastName}
	if err := s.idp.UpdateUser(ctx, token, req.Realm, user.ID, patch); err != nil {
		return Result{}, s.upstream(ctx, model.AuditActionUserEdit, req.Realm, req.Username, "Failed to update user.", err)
	}

	if req.Password != "" {
		if err := s.idp.ResetPassword(ctx, token, req.Realm, user.ID, req.Password); err != nil {
			return Result{}, s.upstream(ctx, model.AuditActionUserEdit, req.Realm, req.Username, "Failed to update user.", err)
		}
	}

	s.logger.Info("Пользователь обновлён",
		slog.String("realm", req.Realm),
		slog.String("username", req.Username),
		slog.Bool("password_changed", req.Password != ""),
	)
	result := done(fmt.Sprintf("User '%s' updated successfully.", req.Username))
	s.audit.record(ctx, model.AuditActionUserEdit, req.Realm, req.Username, model.AuditOutcomeSuccess, "", result.Message)
	return result, nil
}

// ListUsers возвращает пользователей realm. Для супер-администратора —
// пользователей всех realm, по одному realm за раз, в порядке Keycloak.
func (s *UserService) ListUsers(ctx context.Context, realm, token string, isSuperAdmin bool) ([]model.UserSummary, error) {
	realms := []string{realm}
	if isSuperAdmin {
		all, err := s.idp.ListRealms(ctx, token)
		if err != nil {
			s.logger.Error("Ошибка получения списка realm", slog.String("error", err.Error()))
			return nil, &UpstreamError{Message: "Failed to fetch users.", Err: err}
		}
		realms = make([]string, 0, len(all))
		for _, r := range all {
			realms = append(realms, r.Realm)
		}
	}

	result := make([]model.UserSummary, 0)
	for _, r := range realms {
		users, err := s.idp.ListUsers(ctx, token, r)
		if err != nil {
			s.logger.Error("Ошибка получения пользователей",
				slog.String("realm", r),
				slog.String("error", err.Error()),
			)
			return nil, &UpstreamError{Message: "Failed to fetch users.", Err: err}
		}
		for _, u := range users {
			result = append(result, model.UserSummary{
				Name:         model.DisplayName(u.FirstName, u.LastName),
				Email:        u.Email,
				Username:     u.Username,
				Organization: r,
			})
		}
	}

	return result, nil
}

// DeleteUser удаляет пользователя по username.
func (s *UserService) DeleteUser(ctx context.Context, realm, username, token string) (Result, error) {
	user, err := s.lookup(ctx, model.AuditActionUserDelete, realm, username, token, "Failed to delete user.")
	if err != nil {
		return Result{}, err
	}

	if err := s.idp.DeleteUser(ctx, token, realm, user.ID); err != nil {
		return Result{}, s.upstream(ctx, model.AuditActionUserDelete, realm, username, "Failed to delete user.", err)
	}

	s.logger.Info("Пользователь удалён",
		slog.String("realm", realm),
		slog.String("username", username),
	)
	result := done(fmt.Sprintf("User '%s' deleted successfully.", username))
	s.audit.record(ctx, model.AuditActionUserDelete, realm, username, model.AuditOutcomeSuccess, "", result.Message)
	return result, nil
}

// lookup находит пользователя по username; отсутствие — *NotFoundError.
func (s *UserService) lookup(ctx context.Context, action model.AuditAction, realm, username, token, failure string) (*keycloak.User, error) {
	user, err := s.idp.FindUserByUsername(ctx, token, realm, username)
	if err != nil {
		return nil, s.upstream(ctx, action, realm, username, failure, err)
	}
	if user == nil {
		nf := &NotFoundError{Realm: realm, Username: username}
		s.audit.record(ctx, action, realm, username, model.AuditOutcomeFailure, "", nf.Error())
		return nil, nf
	}
	return user, nil
}

// upstream логирует сбой Keycloak и оборачивает его в *UpstreamError.
func (s *UserService) upstream(ctx context.Context, action model.AuditAction, realm, username, message string, err error) error {
	s.logger.Error("Ошибка Keycloak",
		slog.String("action", string(action)),
		slog.String("realm", realm),
		slog.String("username", username),
		slog.String("error", err.Error()),
	)
	s.audit.record(ctx, action, realm, username, model.AuditOutcomeFailure, "", err.Error())
	return &UpstreamError{Message: message, Err: err}
}
