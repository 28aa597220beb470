// Пакет model — доменные модели org-admin.
package model

import "strings"

// UserSummary — пользователь организации в ответе списка пользователей.
// Не хранится — формируется из данных Keycloak.
type UserSummary struct {
	// Name — "firstName lastName"
	Name string `json:"name"`
	// Email — адрес электронной почты
	Email string `json:"email"`
	// Username — имя пользователя в Keycloak
	Username string `json:"username"`
	// Organization — realm, которому принадлежит пользователь
	Organization string `json:"organization"`
}

// DisplayName собирает отображаемое имя из имени и фамилии.
// Формат фиксирован: имя, пробел, фамилия (пробел сохраняется и при пустых полях).
func DisplayName(firstName, lastName string) string {
	var b strings.Builder
	b.Grow(len(firstName) + len(lastName) + 1)
	b.WriteString(firstName)
	b.WriteByte(' ')
	b.WriteString(lastName)
	return b.String()
}
