// errors.go — ошибки бизнес-логики сервисного слоя.
// Error() возвращает сообщение для клиента API, исходная ошибка Keycloak
// доступна через errors.Unwrap / errors.As.
package service

import (
	"errors"
	"fmt"
)

// ErrRoleNotFound — роль org-admin отсутствует после создания.
var ErrRoleNotFound = errors.New("role not found")

// AuthError — неверные учётные данные или недействительный токен при входе.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }
func (e *AuthError) Unwrap() error { return e.Err }

// NotFoundError — пользователь с указанным username отсутствует в realm.
type NotFoundError struct {
	Realm    string
	Username string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("User '%s' not found in realm '%s'.", e.Username, e.Realm)
}

// ProvisioningError — сбой создания или удаления организации.
// Step — шаг, на котором произошёл сбой; выполненные шаги не откатываются.
type ProvisioningError struct {
	Realm   string
	Step    string
	Message string
	Err     error
}

func (e *ProvisioningError) Error() string { return e.Message }
func (e *ProvisioningError) Unwrap() error { return e.Err }

// UpstreamError — прочие ответы Keycloak вне диапазона 2xx и сетевые ошибки.
type UpstreamError struct {
	Message string
	Err     error
}

func (e *UpstreamError) Error() string { return e.Message }
func (e *UpstreamError) Unwrap() error { return e.Err }
