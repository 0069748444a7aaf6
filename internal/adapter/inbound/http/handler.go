package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/session"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
	"github.com/cognefi/agentgate/internal/service"
)

// maxRequestBodySize is the maximum allowed request body size (1 MB).
const maxRequestBodySize = 1 << 20

// Handler provides the JSON API endpoints for tenants, users, agents,
// subscriptions, and agent execution.
type Handler struct {
	authz   *service.AuthzService
	tenants *service.TenantService
	users   *service.UserService
	agents  *service.AgentService
	runner  *service.RunnerService
	keys    KeyResolver
	metrics *Metrics
	logger  *slog.Logger

	// allowHeaderIdentity enables the X-User-Id identity shortcut used in
	// dev mode. Production deployments resolve Bearer keys only.
	allowHeaderIdentity bool
}

// HandlerOption configures a Handler dependency.
type HandlerOption func(*Handler)

// WithAuthzService sets the principal resolution and policy check service.
func WithAuthzService(s *service.AuthzService) HandlerOption {
	return func(h *Handler) { h.authz = s }
}

// WithTenantService sets the tenant administration service.
func WithTenantService(s *service.TenantService) HandlerOption {
	return func(h *Handler) { h.tenants = s }
}

// WithUserService sets the user administration service.
func WithUserService(s *service.UserService) HandlerOption {
	return func(h *Handler) { h.users = s }
}

// WithAgentService sets the agent configuration service.
func WithAgentService(s *service.AgentService) HandlerOption {
	return func(h *Handler) { h.agents = s }
}

// WithRunnerService sets the agent execution service.
func WithRunnerService(s *service.RunnerService) HandlerOption {
	return func(h *Handler) { h.runner = s }
}

// WithKeyResolver sets the API key directory used by the auth middleware.
func WithKeyResolver(k KeyResolver) HandlerOption {
	return func(h *Handler) { h.keys = k }
}

// WithHandlerMetrics sets the metrics recorder.
func WithHandlerMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// WithHeaderIdentity enables X-User-Id identity resolution (dev mode).
func WithHeaderIdentity(enabled bool) HandlerOption {
	return func(h *Handler) { h.allowHeaderIdentity = enabled }
}

// NewHandler creates a new Handler with the given options.
func NewHandler(opts ...HandlerOption) *Handler {
	h := &Handler{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		// Unregistered metrics so tests can construct a bare handler.
		h.metrics = NewMetrics(nil)
	}
	return h
}

// Routes returns an http.Handler with all API routes registered.
// Every /api/v1 route runs behind the auth middleware; identity resolution
// happens exactly once per request.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// Tenant administration.
	mux.HandleFunc("GET /api/v1/tenants", h.handleListTenants)
	mux.HandleFunc("POST /api/v1/tenants", h.handleCreateTenant)
	mux.HandleFunc("GET /api/v1/tenants/{id}", h.handleGetTenant)
	mux.HandleFunc("PATCH /api/v1/tenants/{id}", h.handleUpdateTenant)

	// User administration.
	mux.HandleFunc("GET /api/v1/users", h.handleListUsers)
	mux.HandleFunc("POST /api/v1/users", h.handleCreateUser)
	mux.HandleFunc("GET /api/v1/users/me", h.handleMe)
	mux.HandleFunc("GET /api/v1/users/{id}", h.handleGetUser)
	mux.HandleFunc("PATCH /api/v1/users/{id}", h.handleUpdateUser)

	// Agent configuration.
	mux.HandleFunc("POST /api/v1/agents", h.handleCreateAgent)
	mux.HandleFunc("GET /api/v1/agents/{id}", h.handleGetAgent)
	mux.HandleFunc("PATCH /api/v1/agents/{id}", h.handleUpdateAgent)
	mux.HandleFunc("DELETE /api/v1/agents/{id}", h.handleDeleteAgent)
	mux.HandleFunc("PATCH /api/v1/agents/{id}/model", h.handleUpdateModel)
	mux.HandleFunc("PATCH /api/v1/agents/{id}/ops", h.handleUpdateOps)
	mux.HandleFunc("PATCH /api/v1/agents/{id}/memory", h.handleUpdateMemory)
	mux.HandleFunc("POST /api/v1/agents/{id}/prompt", h.handleUpdatePrompt)
	mux.HandleFunc("GET /api/v1/agents/{id}/prompts", h.handleListPrompts)

	// Discovery and subscriptions.
	mux.HandleFunc("GET /api/v1/marketplace", h.handleMarketplace)
	mux.HandleFunc("GET /api/v1/my-agents", h.handleMyAgents)
	mux.HandleFunc("POST /api/v1/agents/{id}/subscribe", h.handleSubscribe)
	mux.HandleFunc("DELETE /api/v1/agents/{id}/subscribe", h.handleUnsubscribe)

	// Execution.
	mux.HandleFunc("POST /api/v1/agents/{id}/run", h.handleRun)
	mux.HandleFunc("GET /api/v1/agents/{id}/sessions", h.handleListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}/output", h.handleGetOutput)

	return h.authMiddleware(mux)
}

// --- JSON helper methods ---

// respondJSON writes a JSON response with the given status code and data.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// readJSON decodes the request body into the given value.
// Returns an error if the body cannot be decoded as JSON.
func (h *Handler) readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// respondServiceError maps a service-layer error to an HTTP status code.
//
// Authorization failures (explicit deny, decision-point error, ownership
// miss) all collapse to a generic 403 so the response never leaks whether
// the target resource exists.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		h.metrics.AuthzFailures.WithLabelValues("unauthenticated").Inc()
		h.respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, authz.ErrForbidden):
		h.metrics.AuthzFailures.WithLabelValues("forbidden").Inc()
		h.respondError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, agent.ErrAgentNotFound),
		errors.Is(err, agent.ErrSubscriptionNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrOutputNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tenant.ErrDuplicateCode),
		errors.Is(err, user.ErrDuplicateEmail),
		errors.Is(err, agent.ErrAlreadySubscribed),
		errors.Is(err, agent.ErrPromptConflict),
		errors.Is(err, service.ErrAgentDisabled):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, agent.ErrInvalidOwnership):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrUpstreamUnavailable):
		h.respondError(w, http.StatusServiceUnavailable, "model provider unavailable")
	default:
		LoggerFromContext(r.Context()).Error("unhandled service error",
			"method", r.Method, "path", r.URL.Path, "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}
