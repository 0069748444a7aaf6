package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cognefi/agentgate/internal/domain/session"
	"github.com/cognefi/agentgate/internal/service"
)

// sessionResponse is the JSON representation of an execution session.
type sessionResponse struct {
	ID         string `json:"id"`
	AgentID    string `json:"agent_id"`
	UserID     string `json:"user_id"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func toSessionResponse(s *session.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		AgentID:   s.AgentID,
		UserID:    s.UserID,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !s.FinishedAt.IsZero() {
		resp.FinishedAt = s.FinishedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

// outputResponse is the JSON representation of a recorded run output.
// The payload hash is rendered as a decimal string; uint64 values above
// 2^53 are not representable as JSON numbers.
type outputResponse struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Input       string `json:"input"`
	RawResponse string `json:"raw_response"`
	PayloadHash string `json:"payload_hash"`
	CreatedAt   string `json:"created_at"`
}

// handleRun executes an agent and returns its response content.
// POST /api/v1/agents/{id}/run
func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	var input service.RunInput
	if err := h.readJSON(w, r, &input); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	h.metrics.ActiveRuns.Inc()
	result, err := h.runner.Run(r.Context(), principal, r.PathValue("id"), input)
	h.metrics.ActiveRuns.Dec()
	if err != nil {
		h.metrics.AgentRunsTotal.WithLabelValues("failed").Inc()
		h.respondServiceError(w, r, err)
		return
	}

	h.metrics.AgentRunsTotal.WithLabelValues("completed").Inc()
	h.respondJSON(w, http.StatusOK, result)
}

// handleListSessions returns the execution history of an agent.
// GET /api/v1/agents/{id}/sessions
func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	sessions, err := h.runner.Sessions(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	result := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		result = append(result, toSessionResponse(s))
	}
	h.respondJSON(w, http.StatusOK, result)
}

// handleGetOutput returns the recorded output of a completed session.
// GET /api/v1/sessions/{id}/output
func (h *Handler) handleGetOutput(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())

	out, err := h.runner.Output(r.Context(), principal, r.PathValue("id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, outputResponse{
		ID:          out.ID,
		SessionID:   out.SessionID,
		Input:       out.Input,
		RawResponse: string(out.RawResponse),
		PayloadHash: strconv.FormatUint(out.PayloadHash, 10),
		CreatedAt:   out.CreatedAt.UTC().Format(time.RFC3339),
	})
}
