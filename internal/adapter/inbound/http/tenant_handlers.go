package http

import (
	"net/http"
	"time"

	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/service"
)

// tenantResponse is the JSON representation of a tenant returned by the API.
type tenantResponse struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Code             string `json:"code"`
	Industry         string `json:"industry,omitempty"`
	SubscriptionPlan string `json:"subscription_plan,omitempty"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

func toTenantResponse(t *tenant.Tenant) tenantResponse {
	return tenantResponse{
		ID:               t.ID,
		Name:             t.Name,
		Code:             t.Code,
		Industry:         t.Industry,
		SubscriptionPlan: t.SubscriptionPlan,
		Status:           string(t.Status),
		CreatedAt:        t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleListTenants returns all tenants.
// GET /api/v1/tenants
func (h *Handler) handleListTenants(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	tenants, err := h.tenants.List(r.Context(), principal)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	result := make([]tenantResponse, 0, len(tenants))
	for _, t := range tenants {
		result = append(result, toTenantResponse(t))
	}
	h.respondJSON(w, http.StatusOK, result)
}

// handleCreateTenant provisions a new tenant.
// POST /api/v1/tenants
func (h *Handler) handleCreateTenant(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.CreateTenantInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := h.tenants.Create(r.Context(), principal, input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toTenantResponse(t))
}

// handleGetTenant returns a single tenant.
// GET /api/v1/tenants/{id}
func (h *Handler) handleGetTenant(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	t, err := h.tenants.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toTenantResponse(t))
}

// handleUpdateTenant applies partial tenant changes, including suspension.
// PATCH /api/v1/tenants/{id}
func (h *Handler) handleUpdateTenant(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.UpdateTenantInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := h.tenants.Update(r.Context(), principal, r.PathValue("id"), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toTenantResponse(t))
}
