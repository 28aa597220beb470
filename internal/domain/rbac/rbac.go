// Пакет rbac — роли организаций (realm) и правила доступа к операциям.
// Набор ролей создаётся при провизионинге каждой организации.
// Роли по умолчанию управляются Keycloak и скрываются из списков.
package rbac

// RoleOrgAdmin — роль администратора организации.
const RoleOrgAdmin = "org-admin"

// provisionedRoles — роли, создаваемые в каждой новой организации после org-admin.
// Порядок важен: роли создаются в этом порядке.
var provisionedRoles = []string{
	"delete-account",
	"manage-account",
	"manage-account-links",
	"manage-consent",
	"view-applications",
	"view-consent",
	"view-groups",
	"view-profile",
	"read-token",
	"create-client",
}

// ProvisionedRoles возвращает копию набора ролей, создаваемых после org-admin.
func ProvisionedRoles() []string {
	roles := make([]string, len(provisionedRoles))
	copy(roles, provisionedRoles)
	return roles
}

// DefaultRoles возвращает роли realm, которыми управляет Keycloak.
func DefaultRoles(realm string) []string {
	return []string{"offline_access", "uma_authorization", "default-roles-" + realm}
}

// IsDefaultRole проверяет, является ли роль ролью Keycloak по умолчанию для realm.
func IsDefaultRole(realm, role string) bool {
	for _, r := range DefaultRoles(realm) {
		if r == role {
			return true
		}
	}
	return false
}

// FilterDefaultRoles убирает роли по умолчанию, сохраняя порядок остальных.
func FilterDefaultRoles(realm string, roles []string) []string {
	result := make([]string, 0, len(roles))
	for _, r := range roles {
		if !IsDefaultRole(realm, r) {
			result = append(result, r)
		}
	}
	return result
}

// CanManageRealm проверяет, может ли владелец токена управлять пользователями и ролями realm.
// Супер-администратор (токен master realm) управляет любым realm,
// администратор организации — только своим и только с ролью org-admin.
func CanManageRealm(tokenRealm, masterRealm, targetRealm string, roles []string) bool {
	if tokenRealm == masterRealm {
		return true
	}
	if tokenRealm != targetRealm {
		return false
	}
	return hasRole(roles, RoleOrgAdmin)
}

// IsSuperAdmin проверяет, выдан ли токен в master realm.
func IsSuperAdmin(tokenRealm, masterRealm string) bool {
	return tokenRealm != "" && tokenRealm == masterRealm
}

// hasRole проверяет наличие роли в наборе.
func hasRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
