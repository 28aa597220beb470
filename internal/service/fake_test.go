// fake_test.go — in-memory реализация IdentityProvider для тестов сервисов.
package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/bigkaa/org-admin/internal/domain/model"
	"github.com/bigkaa/org-admin/internal/keycloak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUser struct {
	user     keycloak.User
	password string
	roles    []string
}

type fakeRealm struct {
	realm    keycloak.RealmRepresentation
	settings keycloak.RealmSettings
	clients  []keycloak.ClientRepresentation
	roles    []keycloak.Role
	users    []*fakeUser
}

// fakeProvider повторяет контракт Keycloak: 409 на дубликаты, 404 на отсутствующие realm.
type fakeProvider struct {
	mu     sync.Mutex
	realms map[string]*fakeRealm
	order  []string

	// calls — имена вызванных методов по порядку
	calls []string
	// failOn — ошибка, возвращаемая методом вместо выполнения
	failOn map[string]error
	// tokens — realm/username → пароль для AcquireToken
	tokens map[string]string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		realms: make(map[string]*fakeRealm),
		failOn: make(map[string]error),
		tokens: make(map[string]string),
	}
}

func apiErr(op string, status int) error {
	return &keycloak.APIError{Op: op, StatusCode: status, Body: http.StatusText(status)}
}

// enter регистрирует вызов и возвращает подставленную ошибку.
func (f *fakeProvider) enter(op string) error {
	f.calls = append(f.calls, op)
	return f.failOn[op]
}

func (f *fakeProvider) called(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeProvider) realm(op, name string) (*fakeRealm, error) {
	r, ok := f.realms[name]
	if !ok {
		return nil, apiErr(op, http.StatusNotFound)
	}
	return r, nil
}

func (f *fakeProvider) findUser(r *fakeRealm, username string) *fakeUser {
	for _, u := range r.users {
		if strings.EqualFold(u.user.Username, username) {
			return u
		}
	}
	return nil
}

func (f *fakeProvider) AcquireToken(_ context.Context, realm, username, password string) (*keycloak.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AcquireToken"); err != nil {
		return nil, err
	}
	if p, ok := f.tokens[realm+"/"+username]; !ok || p != password {
		return nil, apiErr("AcquireToken", http.StatusUnauthorized)
	}
	return &keycloak.TokenResponse{AccessToken: "token-" + realm + "-" + username, TokenType: "Bearer", ExpiresIn: 300}, nil
}

func (f *fakeProvider) CreateRealm(_ context.Context, _ string, realm keycloak.RealmRepresentation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateRealm"); err != nil {
		return err
	}
	if _, ok := f.realms[realm.Realm]; ok {
		return apiErr("CreateRealm", http.StatusConflict)
	}
	f.realms[realm.Realm] = &fakeRealm{
		realm: realm,
		roles: []keycloak.Role{
			{ID: uuid.NewString(), Name: "offline_access"},
			{ID: uuid.NewString(), Name: "uma_authorization"},
			{ID: uuid.NewString(), Name: "default-roles-" + realm.Realm},
		},
	}
	f.order = append(f.order, realm.Realm)
	return nil
}

func (f *fakeProvider) UpdateRealm(_ context.Context, _, realm string, settings keycloak.RealmSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateRealm"); err != nil {
		return err
	}
	r, err := f.realm("UpdateRealm", realm)
	if err != nil {
		return err
	}
	r.settings = settings
	return nil
}

func (f *fakeProvider) DeleteRealm(_ context.Context, _, realm string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteRealm"); err != nil {
		return err
	}
	if _, err := f.realm("DeleteRealm", realm); err != nil {
		return err
	}
	delete(f.realms, realm)
	for i, name := range f.order {
		if name == realm {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return nil
}

func (f *fakeProvider) ListRealms(_ context.Context, _ string) ([]keycloak.RealmRepresentation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListRealms"); err != nil {
		return nil, err
	}
	result := make([]keycloak.RealmRepresentation, 0, len(f.order))
	for _, name := range f.order {
		result = append(result, f.realms[name].realm)
	}
	return result, nil
}

func (f *fakeProvider) CreateClient(_ context.Context, _, realm string, client keycloak.ClientRepresentation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateClient"); err != nil {
		return "", err
	}
	r, err := f.realm("CreateClient", realm)
	if err != nil {
		return "", err
	}
	for _, c := range r.clients {
		if c.ClientID == client.ClientID {
			return "", apiErr("CreateClient", http.StatusConflict)
		}
	}
	client.ID = uuid.NewString()
	r.clients = append(r.clients, client)
	return client.ID, nil
}

func (f *fakeProvider) CreateRole(_ context.Context, _, realm, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateRole"); err != nil {
		return err
	}
	r, err := f.realm("CreateRole", realm)
	if err != nil {
		return err
	}
	for _, role := range r.roles {
		if role.Name == name {
			return apiErr("CreateRole", http.StatusConflict)
		}
	}
	r.roles = append(r.roles, keycloak.Role{ID: uuid.NewString(), Name: name, ContainerID: realm})
	return nil
}

func (f *fakeProvider) GetRole(_ context.Context, _, realm, name string) (*keycloak.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetRole"); err != nil {
		return nil, err
	}
	r, err := f.realm("GetRole", realm)
	if err != nil {
		return nil, err
	}
	for _, role := range r.roles {
		if role.Name == name {
			role := role
			return &role, nil
		}
	}
	return nil, nil
}

func (f *fakeProvider) ListRoles(_ context.Context, _, realm string) ([]keycloak.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListRoles"); err != nil {
		return nil, err
	}
	r, err := f.realm("ListRoles", realm)
	if err != nil {
		return nil, err
	}
	return append([]keycloak.Role(nil), r.roles...), nil
}

func (f *fakeProvider) AssignRealmRoles(_ context.Context, _, realm, userID string, roles []keycloak.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AssignRealmRoles"); err != nil {
		return err
	}
	r, err := f.realm("AssignRealmRoles", realm)
	if err != nil {
		return err
	}
	for _, u := range r.users {
		if u.user.ID == userID {
			for _, role := range roles {
				u.roles = append(u.roles, role.Name)
			}
			return nil
		}
	}
	return apiErr("AssignRealmRoles", http.StatusNotFound)
}

func (f *fakeProvider) CreateUser(_ context.Context, _, realm string, user keycloak.UserRepresentation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateUser"); err != nil {
		return "", err
	}
	r, err := f.realm("CreateUser", realm)
	if err != nil {
		return "", err
	}
	if f.findUser(r, user.Username) != nil {
		return "", apiErr("CreateUser", http.StatusConflict)
	}

	fu := &fakeUser{user: keycloak.User{
		ID:            uuid.NewString(),
		Username:      strings.ToLower(user.Username),
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Enabled:       user.Enabled,
		EmailVerified: user.EmailVerified,
	}}
	for _, c := range user.Credentials {
		if c.Type == "password" && !c.Temporary {
			fu.password = c.Value
		}
	}
	r.users = append(r.users, fu)
	return fu.user.ID, nil
}

func (f *fakeProvider) FindUserByUsername(_ context.Context, _, realm, username string) (*keycloak.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FindUserByUsername"); err != nil {
		return nil, err
	}
	r, err := f.realm("FindUserByUsername", realm)
	if err != nil {
		return nil, err
	}
	if u := f.findUser(r, username); u != nil {
		user := u.user
		return &user, nil
	}
	return nil, nil
}

func (f *fakeProvider) userByID(op, realm, id string) (*fakeUser, error) {
	r, err := f.realm(op, realm)
	if err != nil {
		return nil, err
	}
	for _, u := range r.users {
		if u.user.ID == id {
			return u, nil
		}
	}
	return nil, apiErr(op, http.StatusNotFound)
}

func (f *fakeProvider) UpdateUser(_ context.Context, _, realm, id string, patch keycloak.UserPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("UpdateUser"); err != nil {
		return err
	}
	u, err := f.userByID("UpdateUser", realm, id)
	if err != nil {
		return err
	}
	u.user.FirstName = patch.FirstName
	u.user.LastName = patch.LastName
	return nil
}

func (f *fakeProvider) ResetPassword(_ context.Context, _, realm, id, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ResetPassword"); err != nil {
		return err
	}
	u, err := f.userByID("ResetPassword", realm, id)
	if err != nil {
		return err
	}
	u.password = password
	return nil
}

func (f *fakeProvider) DeleteUser(_ context.Context, _, realm, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DeleteUser"); err != nil {
		return err
	}
	r, err := f.realm("DeleteUser", realm)
	if err != nil {
		return err
	}
	for i, u := range r.users {
		if u.user.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return apiErr("DeleteUser", http.StatusNotFound)
}

func (f *fakeProvider) ListUsers(_ context.Context, _, realm string) ([]keycloak.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListUsers"); err != nil {
		return nil, err
	}
	r, err := f.realm("ListUsers", realm)
	if err != nil {
		return nil, err
	}
	result := make([]keycloak.User, 0, len(r.users))
	for _, u := range r.users {
		result = append(result, u.user)
	}
	return result, nil
}

// seedUser добавляет пользователя в realm, создавая realm при необходимости.
func (f *fakeProvider) seedUser(realm, username, first, last string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.realms[realm]
	if !ok {
		r = &fakeRealm{realm: keycloak.RealmRepresentation{ID: realm, Realm: realm, Enabled: true}}
		f.realms[realm] = r
		f.order = append(f.order, realm)
	}
	r.users = append(r.users, &fakeUser{user: keycloak.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@" + realm + ".io",
		FirstName: first,
		LastName:  last,
		Enabled:   true,
	}})
}

// memoryRecorder — журнал аудита в памяти.
type memoryRecorder struct {
	mu     sync.Mutex
	events []model.AuditEvent
	err    error
}

func (m *memoryRecorder) Record(_ context.Context, ev *model.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *memoryRecorder) last() model.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[len(m.events)-1]
}
