// organizations.go — провизионинг организаций (realm) в Keycloak.
//
// Создание организации — фиксированная последовательность шагов с токеном
// супер-администратора. Ответ 409 на любом шаге прерывает создание и
// возвращается как конфликт (организация уже существует). Прочие сбои
// прерывают последовательность без отката выполненных шагов.
//
// ResumeOrganization выполняет те же шаги в режиме «проверить и создать»:
// 409 означает, что шаг уже выполнен, и провизионинг продолжается.
// Это позволяет довести до конца организацию, оставшуюся после частичного сбоя.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/org-admin/internal/domain/model"
	"github.com/bigkaa/org-admin/internal/domain/rbac"
	"github.com/bigkaa/org-admin/internal/keycloak"
)

// Имена шагов провизионинга (попадают в логи, журнал аудита и Result.Step).
const (
	StepCreateRealm        = "create-realm"
	StepConfigureRealm     = "configure-realm"
	StepCreateClient       = "create-client"
	StepCreateOrgAdminRole = "create-org-admin-role"
	StepFetchOrgAdminRole  = "fetch-org-admin-role"
	StepListRoles          = "list-roles"
	StepCreateRoles        = "create-roles"
	StepCreateAdminUser    = "create-admin-user"
	StepAssignAdminRole    = "assign-admin-role"
	StepDeleteRealm        = "delete-realm"
)

// OrganizationConfig — параметры провизионинга.
type OrganizationConfig struct {
	// ClientSecret — секрет клиента <realm>-api
	ClientSecret string
	// SSOSessionIdleTimeout — таймаут простоя SSO-сессии realm
	SSOSessionIdleTimeout time.Duration
	// AccessTokenLifespan — время жизни access token realm
	AccessTokenLifespan time.Duration
	// AssignAdminRole — назначать ли org-admin администратору организации
	AssignAdminRole bool
}

// OrganizationRequest — параметры новой организации.
type OrganizationRequest struct {
	Realm         string
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// OrganizationService — провизионинг и удаление организаций.
type OrganizationService struct {
	idp    IdentityProvider
	cfg    OrganizationConfig
	audit  *auditor
	logger *slog.Logger
}

// NewOrganizationService создаёт сервис организаций.
// recorder может быть nil — тогда журнал аудита не ведётся.
func NewOrganizationService(idp IdentityProvider, cfg OrganizationConfig, recorder AuditRecorder, logger *slog.Logger) *OrganizationService {
	logger = logger.With(slog.String("component", "organization_service"))
	return &OrganizationService{
		idp:    idp,
		cfg:    cfg,
		audit:  newAuditor(recorder, logger),
		logger: logger,
	}
}

// provisionState — состояние одного прогона провизионинга.
type provisionState struct {
	req    OrganizationRequest
	token  string
	resume bool

	orgAdminRole *keycloak.Role
	adminUserID  string
}

// tolerate в режиме resume считает 409 признаком уже выполненного действия.
func (st *provisionState) tolerate(err error) error {
	if st.resume && keycloak.IsConflict(err) {
		return nil
	}
	return err
}

// provisionStep — один шаг провизионинга.
type provisionStep struct {
	name string
	run  func(ctx context.Context, st *provisionState) error
}

// steps возвращает упорядоченный список шагов провизионинга.
func (s *OrganizationService) steps() []provisionStep {
	steps := []provisionStep{
		{StepCreateRealm, s.createRealm},
		{StepConfigureRealm, s.configureRealm},
		{StepCreateClient, s.createClient},
		{StepCreateOrgAdminRole, s.createOrgAdminRole},
		{StepFetchOrgAdminRole, s.fetchOrgAdminRole},
		{StepListRoles, s.listRoles},
		{StepCreateRoles, s.createRoles},
		{StepCreateAdminUser, s.createAdminUser},
	}
	if s.cfg.AssignAdminRole {
		steps = append(steps, provisionStep{StepAssignAdminRole, s.assignAdminRole})
	}
	return steps
}

// CreateOrganization создаёт организацию: realm, настройки SSO, клиент,
// роли и администратора. Повторный вызов для существующего realm
// возвращает конфликт, а не ошибку.
func (s *OrganizationService) CreateOrganization(ctx context.Context, req OrganizationRequest, superAdminToken string) (Result, error) {
	st := &provisionState{req: req, token: superAdminToken}

	result, err := s.provision(ctx, st)
	if err != nil {
		return Result{}, err
	}
	if !result.IsConflict() {
		result.Message = fmt.Sprintf("Organization '%s' created successfully.", req.Realm)
	}

	s.audit.record(ctx, model.AuditActionOrgCreate, req.Realm, req.AdminUsername, resultOutcome(result), result.Step, result.Message)
	return result, nil
}

// ResumeOrganization доводит провизионинг организации до конца:
// шаги, уже выполненные ранее, пропускаются по ответу 409 или проверке.
func (s *OrganizationService) ResumeOrganization(ctx context.Context, req OrganizationRequest, superAdminToken string) (Result, error) {
	st := &provisionState{req: req, token: superAdminToken, resume: true}

	if _, err := s.provision(ctx, st); err != nil {
		return Result{}, err
	}
	result := done(fmt.Sprintf("Organization '%s' provisioning completed.", req.Realm))

	s.audit.record(ctx, model.AuditActionOrgResume, req.Realm, req.AdminUsername, model.AuditOutcomeSuccess, "", result.Message)
	return result, nil
}

// provision выполняет шаги по порядку.
// Возвращает конфликт (только вне режима resume) или *ProvisioningError.
func (s *OrganizationService) provision(ctx context.Context, st *provisionState) (Result, error) {
	action := model.AuditActionOrgCreate
	if st.resume {
		action = model.AuditActionOrgResume
	}

	for _, step := range s.steps() {
		err := step.run(ctx, st)
		if err == nil {
			s.logger.Info("Шаг провизионинга выполнен",
				slog.String("realm", st.req.Realm),
				slog.String("step", step.name),
			)
			continue
		}

		if keycloak.IsConflict(err) {
			if st.resume {
				s.logger.Info("Шаг провизионинга уже выполнен",
					slog.String("realm", st.req.Realm),
					slog.String("step", step.name),
				)
				continue
			}

			s.logger.Warn("Организация уже существует",
				slog.String("realm", st.req.Realm),
				slog.String("step", step.name),
			)
			return conflict(fmt.Sprintf("Organization '%s' already exists.", st.req.Realm), step.name), nil
		}

		s.logger.Error("Ошибка провизионинга организации",
			slog.String("realm", st.req.Realm),
			slog.String("step", step.name),
			slog.String("error", err.Error()),
		)

		message := "Failed to create organization."
		if errors.Is(err, ErrRoleNotFound) {
			message = "Failed to create organization: role not found."
		}
		s.audit.record(ctx, action, st.req.Realm, st.req.AdminUsername, model.AuditOutcomeFailure, step.name, err.Error())

		return Result{}, &ProvisioningError{
			Realm:   st.req.Realm,
			Step:    step.name,
			Message: message,
			Err:     err,
		}
	}

	return done(""), nil
}

// --- Шаги ---

func (s *OrganizationService) createRealm(ctx context.Context, st *provisionState) error {
	return s.idp.CreateRealm(ctx, st.token, keycloak.RealmRepresentation{
		ID:      st.req.Realm,
		Realm:   st.req.Realm,
		Enabled: true,
	})
}

func (s *OrganizationService) configureRealm(ctx context.Context, st *provisionState) error {
	return s.idp.UpdateRealm(ctx, st.token, st.req.Realm, keycloak.RealmSettings{
		SSOSessionIdleTimeout: int(s.cfg.SSOSessionIdleTimeout / time.Second),
		AccessTokenLifespan:   int(s.cfg.AccessTokenLifespan / time.Second),
	})
}

func (s *OrganizationService) createClient(ctx context.Context, st *provisionState) error {
	_, err := s.idp.CreateClient(ctx, st.token, st.req.Realm, keycloak.ClientRepresentation{
		ClientID:                  st.req.Realm + "-api",
		Enabled:                   true,
		DirectAccessGrantsEnabled: true,
		PublicClient:              false,
		Secret:                    s.cfg.ClientSecret,
	})
	return err
}

func (s *OrganizationService) createOrgAdminRole(ctx context.Context, st *provisionState) error {
	return s.idp.CreateRole(ctx, st.token, st.req.Realm, rbac.RoleOrgAdmin)
}

func (s *OrganizationService) fetchOrgAdminRole(ctx context.Context, st *provisionState) error {
	role, err := s.idp.GetRole(ctx, st.token, st.req.Realm, rbac.RoleOrgAdmin)
	if err != nil {
		return err
	}
	if role == nil || role.ID == "" {
		return ErrRoleNotFound
	}
	st.orgAdminRole = role
	return nil
}

// listRoles получает роли realm только для диагностики.
func (s *OrganizationService) listRoles(ctx context.Context, st *provisionState) error {
	roles, err := s.idp.ListRoles(ctx, st.token, st.req.Realm)
	if err != nil {
		return err
	}

	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	s.logger.Debug("Роли realm до создания набора ролей",
		slog.String("realm", st.req.Realm),
		slog.Any("roles", names),
	)
	return nil
}

func (s *OrganizationService) createRoles(ctx context.Context, st *provisionState) error {
	for _, name := range rbac.ProvisionedRoles() {
		if err := st.tolerate(s.idp.CreateRole(ctx, st.token, st.req.Realm, name)); err != nil {
			return fmt.Errorf("роль %s: %w", name, err)
		}
	}
	return nil
}

func (s *OrganizationService) createAdminUser(ctx context.Context, st *provisionState) error {
	if st.resume {
		existing, err := s.idp.FindUserByUsername(ctx, st.token, st.req.Realm, st.req.AdminUsername)
		if err != nil {
			return err
		}
		if existing != nil {
			st.adminUserID = existing.ID
			return nil
		}
	}

	id, err := s.idp.CreateUser(ctx, st.token, st.req.Realm, keycloak.UserRepresentation{
		Username:      st.req.AdminUsername,
		Email:         st.req.AdminEmail,
		FirstName:     st.req.AdminUsername,
		LastName:      st.req.AdminUsername,
		Enabled:       true,
		EmailVerified: true,
		Credentials:   []keycloak.Credential{keycloak.PasswordCredential(st.req.AdminPassword)},
	})
	if err != nil {
		return err
	}
	st.adminUserID = id
	return nil
}

// assignAdminRole назначает администратору организации роль org-admin.
func (s *OrganizationService) assignAdminRole(ctx context.Context, st *provisionState) error {
	if st.adminUserID == "" {
		user, err := s.idp.FindUserByUsername(ctx, st.token, st.req.Realm, st.req.AdminUsername)
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("администратор %s не найден после создания", st.req.AdminUsername)
		}
		st.adminUserID = user.ID
	}

	return s.idp.AssignRealmRoles(ctx, st.token, st.req.Realm, st.adminUserID, []keycloak.Role{*st.orgAdminRole})
}

// DeleteOrganization удаляет realm. Пользователи, роли и клиенты
// удаляются Keycloak вместе с realm.
func (s *OrganizationService) DeleteOrganization(ctx context.Context, realm, superAdminToken string) (Result, error) {
	if err := s.idp.DeleteRealm(ctx, superAdminToken, realm); err != nil {
		s.logger.Error("Ошибка удаления организации",
			slog.String("realm", realm),
			slog.String("error", err.Error()),
		)
		s.audit.record(ctx, model.AuditActionOrgDelete, realm, "", model.AuditOutcomeFailure, StepDeleteRealm, err.Error())
		return Result{}, &ProvisioningError{
			Realm:   realm,
			Step:    StepDeleteRealm,
			Message: "Failed to delete organization.",
			Err:     err,
		}
	}

	s.logger.Info("Организация удалена", slog.String("realm", realm))
	result := done(fmt.Sprintf("Organization '%s' deleted successfully.", realm))
	s.audit.record(ctx, model.AuditActionOrgDelete, realm, "", model.AuditOutcomeSuccess, "", result.Message)
	return result, nil
}
