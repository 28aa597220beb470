// users.go — обработчики пользователей организации.
// POST /user/create, PUT /org/user/edit, GET /users/list, DELETE /users/delete.
package handlers

import (
	"net/http"
	"strconv"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/org-admin/internal/api/errors"
	"github.com/bigkaa/org-admin/internal/api/middleware"
	"github.com/bigkaa/org-admin/internal/service"
)

type createUserRequest struct {
	Realm    string              `json:"realm"`
	Username string              `json:"username"`
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
}

type editUserRequest struct {
	Realm     string `json:"realm"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password,omitempty"`
}

type deleteUserRequest struct {
	Realm    string `json:"realm"`
	Username string `json:"username"`
}

// CreateUser — POST /user/create.
// 201 — создан, 409 — уже существует.
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireFields(w,
		field{"realm", req.Realm},
		field{"username", req.Username},
		field{"email", string(req.Email)},
		field{"password", req.Password},
	) {
		return
	}
	if !h.authorizeRealm(w, r, req.Realm) {
		return
	}

	result, err := h.users.CreateUser(r.Context(), service.CreateUserRequest{
		Realm:    req.Realm,
		Username: req.Username,
		Email:    string(req.Email),
		Password: req.Password,
	}, middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeResult(w, http.StatusCreated, result)
}

// EditUser — PUT /org/user/edit.
// Пароль меняется только если передан.
func (h *APIHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	var req editUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireFields(w, field{"realm", req.Realm}, field{"username", req.Username}) {
		return
	}
	if !h.authorizeRealm(w, r, req.Realm) {
		return
	}

	result, err := h.users.EditUser(r.Context(), service.EditUserRequest{
		Realm:     req.Realm,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	}, middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeResult(w, http.StatusOK, result)
}

// ListUsers — GET /users/list?realm=&isSuperAdmin=.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	realm := r.URL.Query().Get("realm")

	isSuperAdmin := false
	if raw := r.URL.Query().Get("isSuperAdmin"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			apierrors.ValidationError(w, "Query parameter 'isSuperAdmin' must be true or false.")
			return
		}
		isSuperAdmin = v
	}

	if isSuperAdmin {
		if !h.authorizeSuperAdmin(w, r) {
			return
		}
	} else {
		if !requireFields(w, field{"realm", realm}) {
			return
		}
		if !h.authorizeRealm(w, r, realm) {
			return
		}
	}

	users, err := h.users.ListUsers(r.Context(), realm, middleware.TokenFromContext(r.Context()), isSuperAdmin)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, users)
}

// DeleteUser — DELETE /users/delete.
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	var req deleteUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireFields(w, field{"realm", req.Realm}, field{"username", req.Username}) {
		return
	}
	if !h.authorizeRealm(w, r, req.Realm) {
		return
	}

	result, err := h.users.DeleteUser(r.Context(), req.Realm, req.Username, middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeResult(w, http.StatusOK, result)
}
