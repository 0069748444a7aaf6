package http

import (
	"net/http"
	"time"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/service"
)

// agentResponse is the JSON representation of an agent returned by the API.
// Configuration rows are nested; absent rows are omitted and hydration
// defaults apply at execution time.
type agentResponse struct {
	ID            string                `json:"id"`
	OwnerTenantID string                `json:"owner_tenant_id,omitempty"`
	CreatedBy     string                `json:"created_by"`
	Name          string                `json:"name"`
	Description   string                `json:"description,omitempty"`
	AccessType    string                `json:"access_type"`
	IsPublic      bool                  `json:"is_public"`
	Status        string                `json:"status"`
	Model         *modelConfigResponse  `json:"model,omitempty"`
	ActivePrompt  *promptResponse       `json:"active_prompt,omitempty"`
	Ops           *opsConfigResponse    `json:"ops,omitempty"`
	Memory        *memoryConfigResponse `json:"memory,omitempty"`
	CreatedAt     string                `json:"created_at"`
	UpdatedAt     string                `json:"updated_at"`
}

type modelConfigResponse struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

type promptResponse struct {
	ID            string `json:"id"`
	Instructions  string `json:"instructions"`
	SystemMessage string `json:"system_message,omitempty"`
	Active        bool   `json:"active"`
	Version       int    `json:"version"`
	CreatedAt     string `json:"created_at"`
}

type opsConfigResponse struct {
	Markdown bool `json:"markdown"`
}

type memoryConfigResponse struct {
	EnableMemory bool `json:"enable_memory"`
	HistoryRuns  int  `json:"history_runs"`
}

func toPromptResponse(v *agent.PromptVersion) *promptResponse {
	return &promptResponse{
		ID:            v.ID,
		Instructions:  v.Instructions,
		SystemMessage: v.SystemMessage,
		Active:        v.Active,
		Version:       v.Version,
		CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toAgentResponse(b *agent.Bundle) agentResponse {
	a := b.Agent
	resp := agentResponse{
		ID:            a.ID,
		OwnerTenantID: a.OwnerTenantID,
		CreatedBy:     a.CreatedBy,
		Name:          a.Name,
		Description:   a.Description,
		AccessType:    string(a.AccessType),
		IsPublic:      a.IsPublic,
		Status:        string(a.Status),
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     a.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if b.Model != nil {
		resp.Model = &modelConfigResponse{
			Provider:    b.Model.Provider,
			Model:       b.Model.Model,
			Temperature: b.Model.Temperature,
		}
	}
	if b.ActivePrompt != nil {
		resp.ActivePrompt = toPromptResponse(b.ActivePrompt)
	}
	if b.Ops != nil {
		resp.Ops = &opsConfigResponse{Markdown: b.Ops.Markdown}
	}
	if b.Memory != nil {
		resp.Memory = &memoryConfigResponse{
			EnableMemory: b.Memory.EnableMemory,
			HistoryRuns:  b.Memory.HistoryRuns,
		}
	}
	return resp
}

func toAgentResponses(bundles []*agent.Bundle) []agentResponse {
	result := make([]agentResponse, 0, len(bundles))
	for _, b := range bundles {
		result = append(result, toAgentResponse(b))
	}
	return result
}

// handleCreateAgent creates an agent with its first prompt version.
// POST /api/v1/agents
func (h *Handler) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.CreateAgentInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b, err := h.agents.Create(r.Context(), principal, input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toAgentResponse(b))
}

// handleGetAgent returns the full configuration bundle of an agent.
// GET /api/v1/agents/{id}
func (h *Handler) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	b, err := h.agents.Get(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toAgentResponse(b))
}

// handleUpdateAgent applies partial agent changes, including disabling.
// PATCH /api/v1/agents/{id}
func (h *Handler) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.UpdateAgentInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	a, err := h.agents.Update(r.Context(), principal, r.PathValue("id"), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toAgentResponse(&agent.Bundle{Agent: a}))
}

// handleDeleteAgent removes an agent and everything hanging off it.
// DELETE /api/v1/agents/{id}
func (h *Handler) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	if err := h.agents.Delete(r.Context(), principal, r.PathValue("id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateModel changes the agent's model binding.
// PATCH /api/v1/agents/{id}/model
func (h *Handler) handleUpdateModel(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.UpdateModelInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := h.agents.UpdateModel(r.Context(), principal, r.PathValue("id"), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, modelConfigResponse{
		Provider:    m.Provider,
		Model:       m.Model,
		Temperature: m.Temperature,
	})
}

// handleUpdateOps changes the agent's presentation settings.
// PATCH /api/v1/agents/{id}/ops
func (h *Handler) handleUpdateOps(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.UpdateOpsInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := h.agents.UpdateOps(r.Context(), principal, r.PathValue("id"), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, opsConfigResponse{Markdown: o.Markdown})
}

// handleUpdateMemory changes the agent's conversation memory settings.
// PATCH /api/v1/agents/{id}/memory
func (h *Handler) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.UpdateMemoryInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	m, err := h.agents.UpdateMemory(r.Context(), principal, r.PathValue("id"), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, memoryConfigResponse{
		EnableMemory: m.EnableMemory,
		HistoryRuns:  m.HistoryRuns,
	})
}

// handleUpdatePrompt appends a new prompt version and activates it.
// POST /api/v1/agents/{id}/prompt
func (h *Handler) handleUpdatePrompt(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.UpdatePromptInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	v, err := h.agents.UpdatePrompt(r.Context(), principal, r.PathValue("id"), input)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, toPromptResponse(v))
}

// handleListPrompts returns the full prompt version history of an agent.
// GET /api/v1/agents/{id}/prompts
func (h *Handler) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	versions, err := h.agents.Prompts(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	result := make([]*promptResponse, 0, len(versions))
	for _, v := range versions {
		result = append(result, toPromptResponse(v))
	}
	h.respondJSON(w, http.StatusOK, result)
}

// handleMarketplace lists public GLOBAL agents.
// GET /api/v1/marketplace
func (h *Handler) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	bundles, err := h.agents.Marketplace(r.Context(), principal)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toAgentResponses(bundles))
}

// handleMyAgents lists agents the caller owns or is subscribed to.
// GET /api/v1/my-agents
func (h *Handler) handleMyAgents(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	bundles, err := h.agents.MyAgents(r.Context(), principal)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, toAgentResponses(bundles))
}

// handleSubscribe subscribes the caller to an agent.
// POST /api/v1/agents/{id}/subscribe
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	if err := h.agents.Subscribe(r.Context(), principal, r.PathValue("id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

// handleUnsubscribe removes the caller's subscription.
// DELETE /api/v1/agents/{id}/subscribe
func (h *Handler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	if err := h.agents.Unsubscribe(r.Context(), principal, r.PathValue("id")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
