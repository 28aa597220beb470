// Пакет keycloak — HTTP-клиент к Keycloak Admin REST API.
// models.go — модели данных Keycloak.
package keycloak

// TokenResponse — ответ token endpoint Keycloak (password grant).
// Передаётся вызывающей стороне как есть, без сохранения.
type TokenResponse struct {
	AccessToken      string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	ExpiresIn        int64  `json:"expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"` //nolint:gosec // G117: структура токена OAuth2
	TokenType        string `json:"token_type"`
	IDToken          string `json:"id_token,omitempty"`
	NotBeforePolicy  int64  `json:"not-before-policy"`
	SessionState     string `json:"session_state,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// RealmRepresentation — realm (организация) в Keycloak.
type RealmRepresentation struct {
	ID      string `json:"id,omitempty"`
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

// RealmSettings — частичное обновление настроек realm.
// Времена — в секундах, как в Admin REST API.
type RealmSettings struct {
	SSOSessionIdleTimeout int `json:"ssoSessionIdleTimeout"`
	AccessTokenLifespan   int `json:"accessTokenLifespan"`
}

// ClientRepresentation — клиентское приложение realm.
type ClientRepresentation struct {
	ID                        string `json:"id,omitempty"`
	ClientID                  string `json:"clientId"`
	Enabled                   bool   `json:"enabled"`
	DirectAccessGrantsEnabled bool   `json:"directAccessGrantsEnabled"`
	PublicClient              bool   `json:"publicClient"`
	Secret                    string `json:"secret,omitempty"`
}

// Role — роль realm.
type Role struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`
	ClientRole  bool   `json:"clientRole,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
}

// User — пользователь в Keycloak.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
	CreatedAt     int64  `json:"createdTimestamp"`
}

// Credential — учётные данные пользователя (пароль).
type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// UserRepresentation — запрос на создание пользователя.
type UserRepresentation struct {
	Username      string       `json:"username"`
	Email         string       `json:"email,omitempty"`
	FirstName     string       `json:"firstName,omitempty"`
	LastName      string       `json:"lastName,omitempty"`
	Enabled       bool         `json:"enabled"`
	EmailVerified bool         `json:"emailVerified"`
	Credentials   []Credential `json:"credentials,omitempty"`
}

// UserPatch — частичное обновление пользователя (только имя).
type UserPatch struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// PasswordCredential создаёт постоянный (не temporary) пароль.
func PasswordCredential(password string) Credential {
	return Credential{Type: "password", Value: password, Temporary: false}
}
