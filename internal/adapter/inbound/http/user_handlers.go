package http

import (
	"net/http"
	"time"

	"github.com/cognefi/agentgate/internal/domain/user"
	"github.com/cognefi/agentgate/internal/service"
)

// userResponse is the JSON representation of a user profile returned by the API.
type userResponse struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id,omitempty"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func toUserResponse(u *user.Profile) userResponse {
	return userResponse{
		ID:        u.ID,
		TenantID:  u.TenantID,
		FullName:  u.FullName,
		Email:     u.Email,
		Role:      string(u.Role),
		Status:    string(u.Status),
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: u.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// handleListUsers returns user profiles, optionally filtered by tenant.
// GET /api/v1/users?tenant_id=...
func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	tenantID := r.URL.Query().Get("tenant_id")

	users, err := h.users.List(r.Context(), principal, tenantID)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	result := make([]userResponse, 0, len(users))
	for _, u := range users {
		result = append(result, toUserResponse(u))
	}
	h.respondJSON(w, http.StatusOK, result)
}

// handleCreateUser registers a new user profile.
// POST /api/v1/users
func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.CreateUserInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	u, err := h.users.Create(r.Context(), principal, input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toUserResponse(u))
}

// handleMe echoes the authenticated caller's own profile.
// GET /api/v1/users/me
func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	u, err := h.users.Me(r.Context(), principal)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toUserResponse(u))
}

// handleGetUser returns a single user profile.
// GET /api/v1/users/{id}
func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	u, err := h.users.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toUserResponse(u))
}

// handleUpdateUser applies partial profile changes.
// PATCH /api/v1/users/{id}
func (h *Handler) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.UpdateUserInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	u, err := h.users.Update(r.Context(), principal, r.PathValue("id"), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toUserResponse(u))
}
