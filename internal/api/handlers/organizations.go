// organizations.go — обработчики организаций (realm).
// POST /org/create, POST /org/resume, DELETE /org/delete.
// Доступ: токен супер-администратора (проверяется middleware при OA_JWT_VERIFY).
package handlers

import (
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/bigkaa/org-admin/internal/api/middleware"
	"github.com/bigkaa/org-admin/internal/service"
)

type createOrganizationRequest struct {
	Realm         string              `json:"realm"`
	AdminUsername string              `json:"adminUsername"`
	AdminEmail    openapi_types.Email `json:"adminEmail"`
	AdminPassword string              `json:"adminPassword"`
}

type deleteOrganizationRequest struct {
	Realm string `json:"realm"`
}

// decodeOrganization разбирает и проверяет тело create/resume.
func decodeOrganization(w http.ResponseWriter, r *http.Request) (service.OrganizationRequest, bool) {
	var req createOrganizationRequest
	if !decodeBody(w, r, &req) {
		return service.OrganizationRequest{}, false
	}
	if !requireFields(w,
		field{"realm", req.Realm},
		field{"adminUsername", req.AdminUsername},
		field{"adminEmail", string(req.AdminEmail)},
		field{"adminPassword", req.AdminPassword},
	) {
		return service.OrganizationRequest{}, false
	}

	return service.OrganizationRequest{
		Realm:         req.Realm,
		AdminUsername: req.AdminUsername,
		AdminEmail:    string(req.AdminEmail),
		AdminPassword: req.AdminPassword,
	}, true
}

// CreateOrganization — POST /org/create.
// 201 — создана, 409 — уже существует.
func (h *APIHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrganization(w, r)
	if !ok {
		return
	}

	result, err := h.organizations.CreateOrganization(r.Context(), req, middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeResult(w, http.StatusCreated, result)
}

// ResumeOrganization — POST /org/resume.
// Довыполняет провизионинг после частичного сбоя.
func (h *APIHandler) ResumeOrganization(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeOrganization(w, r)
	if !ok {
		return
	}

	result, err := h.organizations.ResumeOrganization(r.Context(), req, middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeResult(w, http.StatusOK, result)
}

// DeleteOrganization — DELETE /org/delete.
func (h *APIHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	var req deleteOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !requireFields(w, field{"realm", req.Realm}) {
		return
	}

	result, err := h.organizations.DeleteOrganization(r.Context(), req.Realm, middleware.TokenFromContext(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeResult(w, http.StatusOK, result)
}
