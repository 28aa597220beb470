// errors.go — типизированные ошибки Keycloak API.
package keycloak

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError — Keycloak вернул статус вне диапазона 2xx.
// Хранит операцию, HTTP-статус и тело ответа провайдера.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: Keycloak вернул статус %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: Keycloak вернул статус %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusCode возвращает HTTP-статус из цепочки ошибок или 0,
// если ошибка не связана с ответом Keycloak (например, сетевая).
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsConflict — ресурс уже существует (409).
func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsNotFound — ресурс не найден (404).
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
