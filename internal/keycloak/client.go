// client.go — HTTP-клиент к Keycloak Admin REST API.
// Токен доступа передаётся вызывающей стороной в каждом вызове и не кэшируется.
// Каждый метод — один HTTP-обмен без повторов (списки пользователей — постранично).
// Операции: AcquireToken, realms, clients, roles, users, CheckReady.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Client — HTTP-клиент к Keycloak Admin REST API.
type Client struct {
	baseURL       string // Базовый URL Keycloak (без trailing slash)
	masterRealm   string // Realm супер-администратора
	loginClientID string // Client ID для password grant (admin-cli)
	pageSize      int    // Размер страницы при выборке пользователей

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент к Keycloak Admin REST API.
// baseURL — базовый URL Keycloak (например, http://localhost:8080).
// masterRealm — realm супер-администратора (обычно master).
// loginClientID — публичный клиент для password grant (обычно admin-cli).
// pageSize — размер страницы для ListUsers (<= 0 — 100).
// httpClient — HTTP-клиент (может содержать TLS конфигурацию).
func New(baseURL, masterRealm, loginClientID string, pageSize int, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		masterRealm:   masterRealm,
		loginClientID: loginClientID,
		pageSize:      pageSize,
		httpClient:    httpClient,
		logger:        logger.With(slog.String("component", "keycloak_client")),
	}
}

// tokenEndpoint возвращает URL endpoint'а получения токена для realm.
func (c *Client) tokenEndpoint(realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, url.PathEscape(realm))
}

// realmPath возвращает путь Admin REST API для realm.
func realmPath(realm string) string {
	return "/admin/realms/" + url.PathEscape(realm)
}

// --- Аутентификация ---

// AcquireToken выполняет password grant в указанном realm
// (master — для супер-администратора, realm организации — для её пользователей).
func (c *Client) AcquireToken(ctx context.Context, realm, username, password string) (*TokenResponse, error) {
	const op = "AcquireToken"

	conf := &oauth2.Config{
		ClientID: c.loginClientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  c.tokenEndpoint(realm),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	// oauth2 использует HTTP-клиент из контекста
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	start := time.Now()
	tok, err := conf.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			observe(op, strconv.Itoa(retrieveErr.Response.StatusCode), start)
			return nil, &APIError{
				Op:         op,
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       string(retrieveErr.Body),
			}
		}
		observe(op, statusTransportError, start)
		return nil, fmt.Errorf("%s: запрос токена Keycloak: %w", op, err)
	}
	observe(op, strconv.Itoa(http.StatusOK), start)

	return &TokenResponse{
		AccessToken:      tok.AccessToken,
		ExpiresIn:        tok.ExpiresIn,
		RefreshExpiresIn: extraInt64(tok, "refresh_expires_in"),
		RefreshToken:     tok.RefreshToken,
		TokenType:        tok.TokenType,
		IDToken:          extraString(tok, "id_token"),
		NotBeforePolicy:  extraInt64(tok, "not-before-policy"),
		SessionState:     extraString(tok, "session_state"),
		Scope:            extraString(tok, "scope"),
	}, nil
}

// extraString извлекает строковое поле ответа token endpoint.
func extraString(tok *oauth2.Token, key string) string {
	if v, ok := tok.Extra(key).(string); ok {
		return v
	}
	return ""
}

// extraInt64 извлекает числовое поле ответа token endpoint.
// JSON-числа oauth2 декодирует как float64.
func extraInt64(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// --- HTTP helpers ---

// doAuthorized выполняет HTTP-запрос к Admin REST API с bearer-токеном вызывающей стороны.
func (c *Client) doAuthorized(ctx context.Context, op, method, path, token string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: сериализация тела запроса: %w", op, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: создание запроса: %w", op, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe(op, statusTransportError, start)
		return nil, fmt.Errorf("%s: запрос к Keycloak: %w", op, err)
	}
	observe(op, strconv.Itoa(resp.StatusCode), start)

	return resp, nil
}

// decodeResponse декодирует JSON ответ в target.
func decodeResponse(op string, resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("%s: декодирование ответа Keycloak: %w", op, err)
		}
	}

	return nil
}

// checkResponse проверяет статус ответа (для запросов без тела ответа).
func checkResponse(op string, resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// newAPIError читает тело ответа и формирует *APIError.
func newAPIError(op string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// createdID проверяет ответ на создание ресурса и извлекает ID из Location header.
// Keycloak возвращает Location вида .../users/{id}.
func createdID(op string, resp *http.Response) (string, error) {
	location := resp.Header.Get("Location")
	if err := checkResponse(op, resp); err != nil {
		return "", err
	}

	if location == "" {
		return "", nil
	}
	parts := strings.Split(strings.TrimRight(location, "/"), "/")
	return parts[len(parts)-1], nil
}

// --- Realms API ---

// CreateRealm создаёт realm.
func (c *Client) CreateRealm(ctx context.Context, token string, realm RealmRepresentation) error {
	resp, err := c.doAuthorized(ctx, "CreateRealm", http.MethodPost, "/admin/realms", token, realm)
	if err != nil {
		return err
	}
	return checkResponse("CreateRealm", resp)
}

// UpdateRealm обновляет настройки SSO и время жизни токенов realm.
func (c *Client) UpdateRealm(ctx context.Context, token, realm string, settings RealmSettings) error {
	resp, err := c.doAuthorized(ctx, "UpdateRealm", http.MethodPut, realmPath(realm), token, settings)
	if err != nil {
		return err
	}
	return checkResponse("UpdateRealm", resp)
}

// DeleteRealm удаляет realm вместе со всеми пользователями, ролями и клиентами.
func (c *Client) DeleteRealm(ctx context.Context, token, realm string) error {
	resp, err := c.doAuthorized(ctx, "DeleteRealm", http.MethodDelete, realmPath(realm), token, nil)
	if err != nil {
		return err
	}
	return checkResponse("DeleteRealm", resp)
}

// ListRealms возвращает realms в порядке, отданном Keycloak.
func (c *Client) ListRealms(ctx context.Context, token string) ([]RealmRepresentation, error) {
	resp, err := c.doAuthorized(ctx, "ListRealms", http.MethodGet, "/admin/realms?briefRepresentation=true", token, nil)
	if err != nil {
		return nil, err
	}

	var realms []RealmRepresentation
	if err := decodeResponse("ListRealms", resp, &realms); err != nil {
		return nil, err
	}
	return realms, nil
}

// --- Clients API ---

// CreateClient создаёт клиентское приложение в realm.
// Возвращает Keycloak internal ID созданного клиента (может быть пустым без Location).
func (c *Client) CreateClient(ctx context.Context, token, realm string, client ClientRepresentation) (string, error) {
	resp, err := c.doAuthorized(ctx, "CreateClient", http.MethodPost, realmPath(realm)+"/clients", token, client)
	if err != nil {
		return "", err
	}
	return createdID("CreateClient", resp)
}

// --- Roles API ---

// CreateRole создаёт роль realm.
func (c *Client) CreateRole(ctx context.Context, token, realm, name string) error {
	resp, err := c.doAuthorized(ctx, "CreateRole", http.MethodPost, realmPath(realm)+"/roles", token, Role{Name: name})
	if err != nil {
		return err
	}
	return checkResponse("CreateRole", resp)
}

// GetRole возвращает роль realm по имени.
// Если роль не найдена — nil, nil.
func (c *Client) GetRole(ctx context.Context, token, realm, name string) (*Role, error) {
	resp, err := c.doAuthorized(ctx, "GetRole", http.MethodGet, realmPath(realm)+"/roles/"+url.PathEscape(name), token, nil)
	if err != nil {
		return nil, err
	}

	var role Role
	if err := decodeResponse("GetRole", resp, &role); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles возвращает все роли realm в порядке Keycloak (без сортировки).
func (c *Client) ListRoles(ctx context.Context, token, realm string) ([]Role, error) {
	resp, err := c.doAuthorized(ctx, "ListRoles", http.MethodGet, realmPath(realm)+"/roles", token, nil)
	if err != nil {
		return nil, err
	}

	var roles []Role
	if err := decodeResponse("ListRoles", resp, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// AssignRealmRoles назначает пользователю роли realm.
func (c *Client) AssignRealmRoles(ctx context.Context, token, realm, userID string, roles []Role) error {
	path := realmPath(realm) + "/users/" + url.PathEscape(userID) + "/role-mappings/realm"
	resp, err := c.doAuthorized(ctx, "AssignRealmRoles", http.MethodPost, path, token, roles)
	if err != nil {
		return err
	}
	return checkResponse("AssignRealmRoles", resp)
}

// --- Users API ---

// CreateUser создаёт пользователя в realm.
// Возвращает Keycloak ID пользователя (может быть пустым без Location).
func (c *Client) CreateUser(ctx context.Context, token, realm string, user UserRepresentation) (string, error) {
	resp, err := c.doAuthorized(ctx, "CreateUser", http.MethodPost, realmPath(realm)+"/users", token, user)
	if err != nil {
		return "", err
	}
	return createdID("CreateUser", resp)
}

// FindUserByUsername ищет пользователя по точному совпадению username.
// Keycloak хранит username в нижнем регистре, поэтому сравнение регистронезависимое.
// Если пользователь не найден — nil, nil.
func (c *Client) FindUserByUsername(ctx context.Context, token, realm, username string) (*User, error) {
	path := realmPath(realm) + "/users?exact=true&username=" + url.QueryEscape(username)
	resp, err := c.doAuthorized(ctx, "FindUserByUsername", http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var users []User
	if err := decodeResponse("FindUserByUsername", resp, &users); err != nil {
		return nil, err
	}

	for i := range users {
		if strings.EqualFold(users[i].Username, username) {
			return &users[i], nil
		}
	}
	return nil, nil
}

// UpdateUser обновляет имя и фамилию пользователя.
func (c *Client) UpdateUser(ctx context.Context, token, realm, id string, patch UserPatch) error {
	resp, err := c.doAuthorized(ctx, "UpdateUser", http.MethodPut, realmPath(realm)+"/users/"+url.PathEscape(id), token, patch)
	if err != nil {
		return err
	}
	return checkResponse("UpdateUser", resp)
}

// ResetPassword устанавливает пользователю постоянный пароль.
func (c *Client) ResetPassword(ctx context.Context, token, realm, id, password string) error {
	path := realmPath(realm) + "/users/" + url.PathEscape(id) + "/reset-password"
	resp, err := c.doAuthorized(ctx, "ResetPassword", http.MethodPut, path, token, PasswordCredential(password))
	if err != nil {
		return err
	}
	return checkResponse("ResetPassword", resp)
}

// DeleteUser удаляет пользователя по Keycloak ID.
func (c *Client) DeleteUser(ctx context.Context, token, realm, id string) error {
	resp, err := c.doAuthorized(ctx, "DeleteUser", http.MethodDelete, realmPath(realm)+"/users/"+url.PathEscape(id), token, nil)
	if err != nil {
		return err
	}
	return checkResponse("DeleteUser", resp)
}

// ListUsers возвращает всех пользователей realm в порядке Keycloak.
// Страницы запрашиваются последовательно, пока не придёт неполная.
func (c *Client) ListUsers(ctx context.Context, token, realm string) ([]User, error) {
	var all []User
	for first := 0; ; first += c.pageSize {
		path := fmt.Sprintf("%s/users?first=%d&max=%d", realmPath(realm), first, c.pageSize)
		resp, err := c.doAuthorized(ctx, "ListUsers", http.MethodGet, path, token, nil)
		if err != nil {
			return nil, err
		}

		var page []User
		if err := decodeResponse("ListUsers", resp, &page); err != nil {
			return nil, err
		}

		all = append(all, page...)
		if len(page) < c.pageSize {
			break
		}
	}

	c.logger.Debug("Пользователи realm получены",
		slog.String("realm", realm),
		slog.Int("count", len(all)),
	)
	return all, nil
}

// --- Readiness checker ---

// CheckReady проверяет доступность Keycloak через публичный endpoint master realm.
// Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/realms/"+url.PathEscape(c.masterRealm), nil)
	if err != nil {
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	}

	var realm RealmRepresentation
	if err := decodeResponse("CheckReady", resp, &realm); err != nil {
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	}

	return "ok", fmt.Sprintf("Realm %s доступен", realm.Realm)
}
