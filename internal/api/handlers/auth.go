// auth.go — обработчики входа.
// POST /auth/superadmin — токен супер-администратора (master realm).
// POST /auth/login — токен пользователя организации.
package handlers

import (
	"net/http"
)

type superAdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Realm    string `json:"realm"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SuperAdminLogin — POST /auth/superadmin.
func (h *APIHandler) SuperAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req superAdminLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireFields(w, field{"username", req.Username}, field{"password", req.Password}) {
		return
	}

	token, err := h.auth.SuperAdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}

// Login — POST /auth/login.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireFields(w, field{"realm", req.Realm}, field{"username", req.Username}, field{"password", req.Password}) {
		return
	}

	token, err := h.auth.Login(r.Context(), req.Realm, req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, token)
}
