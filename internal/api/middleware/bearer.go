// bearer.go — извлечение Bearer token из заголовка Authorization.
// Токен передаётся в Keycloak как есть; проверка подписи — в JWTAuth (опционально).
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/org-admin/internal/api/errors"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyToken — Bearer token запроса.
	ContextKeyToken contextKey = "bearer_token"
	// ContextKeyClaims — проверенные claims токена.
	ContextKeyClaims contextKey = "jwt_claims"
	// ContextKeyRequestID — идентификатор запроса.
	ContextKeyRequestID contextKey = "request_id"
)

var (
	errNoAuthorization = errors.New("Authorization header is required.")
	errBadScheme       = errors.New("Authorization header must be 'Bearer <token>'.")
	errEmptyToken      = errors.New("Bearer token is empty.")
)

// ParseBearer извлекает токен из значения заголовка Authorization.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", errNoAuthorization
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadScheme
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errEmptyToken
	}
	return token, nil
}

// BearerToken возвращает middleware, требующий заголовок Authorization: Bearer <token>.
// Токен помещается в контекст запроса; отсутствие — 401.
func BearerToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := ParseBearer(r.Header.Get("Authorization"))
			if err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyToken, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext извлекает Bearer token из контекста запроса.
// Возвращает пустую строку, если токен не найден.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(ContextKeyToken).(string)
	return token
}
