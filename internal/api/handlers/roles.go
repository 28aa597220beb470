package handlers

import (
	"net/http"

	"github.com/bigkaa/org-admin/internal/api/middleware"
)

type rolesResponse struct {
	Roles []string `json:"roles"`
}

// ListRoles — GET /roles/list?realm=.
// Роли Keycloak по умолчанию не возвращаются.
func (h *APIHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	realm := r.URL.Query().Get("realm")
	if !requireFields(w, field{"realm", realm}) {
		return
	}
	if !h.authorizeRealm(w, r, realm) {
		return
	}

	roles, err := h.roles.ListRoles(r.Context(), realm, middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rolesResponse{Roles: roles})
}
