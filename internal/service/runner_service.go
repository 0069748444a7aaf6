package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/session"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

// DefaultRunTimeout bounds one agent execution end to end.
const DefaultRunTimeout = 90 * time.Second

// RunInput holds one execution request.
type RunInput struct {
	Message string `json:"message" validate:"required"`
}

// RunResult is the response of a completed execution.
type RunResult struct {
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
}

// RunnerService is the secured execution gate. Every run passes the same
// sequence: policy check, lifecycle check, session open, hydrate and
// invoke, then a terminal transition that survives caller cancellation.
//
// A denied or disabled run leaves no session behind; a failed provider
// call leaves a failed session for audit.
type RunnerService struct {
	agents     agent.AgentStore
	subs       agent.SubscriptionStore
	sessions   session.SessionStore
	outputs    session.OutputStore
	hydrator   outbound.Hydrator
	authz      *AuthzService
	logger     *slog.Logger
	runTimeout time.Duration
}

// NewRunnerService creates a new RunnerService. A zero runTimeout falls
// back to DefaultRunTimeout.
func NewRunnerService(
	agents agent.AgentStore,
	subs agent.SubscriptionStore,
	sessions session.SessionStore,
	outputs session.OutputStore,
	hydrator outbound.Hydrator,
	authz *AuthzService,
	logger *slog.Logger,
	runTimeout time.Duration,
) *RunnerService {
	if runTimeout <= 0 {
		runTimeout = DefaultRunTimeout
	}
	return &RunnerService{
		agents:     agents,
		subs:       subs,
		sessions:   sessions,
		outputs:    outputs,
		hydrator:   hydrator,
		authz:      authz,
		logger:     logger,
		runTimeout: runTimeout,
	}
}

// Run executes an agent for the principal.
func (s *RunnerService) Run(ctx context.Context, principal *authz.Principal, agentID string, input RunInput) (*RunResult, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	b, err := s.agents.GetBundle(ctx, agentID)
	if err != nil {
		return nil, err
	}

	subscribed, err := s.subs.IsSubscribed(ctx, principal.ID, agentID)
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}
	res := authz.AgentResource(b.Agent, principal.TenantID(), subscribed)
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionRun); err != nil {
		return nil, err
	}

	if b.Agent.Status != agent.StatusActive {
		return nil, ErrAgentDisabled
	}

	sess := &session.Session{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		UserID:    principal.ID,
		Status:    session.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	out, runErr := s.invoke(ctx, b, input.Message)
	if runErr != nil {
		s.finalize(ctx, sess, session.StatusFailed)
		s.logger.Warn("run failed",
			"session", sess.ID, "agent", agentID, "user", principal.ID, "error", runErr)
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, runErr)
	}

	record := &session.Output{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		Input:       input.Message,
		RawResponse: out.Raw,
		PayloadHash: session.HashPayload(out.Raw),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.outputs.Create(detach(ctx), record); err != nil {
		s.finalize(ctx, sess, session.StatusFailed)
		return nil, fmt.Errorf("record output: %w", err)
	}

	s.finalize(ctx, sess, session.StatusCompleted)
	s.logger.Info("run completed",
		"session", sess.ID, "agent", agentID, "user", principal.ID)
	return &RunResult{SessionID: sess.ID, Content: out.Content}, nil
}

// Sessions lists an agent's execution history, newest first. The manage
// policy gates access; run history is not shown to mere subscribers.
func (s *RunnerService) Sessions(ctx context.Context, principal *authz.Principal, agentID string) ([]*session.Session, error) {
	a, err := s.agents.Get(ctx, agentID)
	if err != nil {
		return nil, err
	}
	subscribed, err := s.subs.IsSubscribed(ctx, principal.ID, agentID)
	if err != nil {
		return nil, fmt.Errorf("resolve subscription: %w", err)
	}
	res := authz.AgentResource(a, principal.TenantID(), subscribed)
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionUpdate); err != nil {
		return nil, err
	}
	return s.sessions.ListByAgent(ctx, agentID)
}

// Output returns the recorded result of one completed session.
func (s *RunnerService) Output(ctx context.Context, principal *authz.Principal, sessionID string) (*session.Output, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// The session owner reads their own output; anyone else needs the
	// manage policy on the agent.
	if sess.UserID != principal.ID {
		a, err := s.agents.Get(ctx, sess.AgentID)
		if err != nil {
			return nil, err
		}
		res := authz.AgentResource(a, principal.TenantID(), false)
		if err := s.authz.Authorize(ctx, principal, res, authz.ActionUpdate); err != nil {
			return nil, err
		}
	}
	return s.outputs.GetBySession(ctx, sessionID)
}

// invoke hydrates and runs the agent under the execution timeout.
func (s *RunnerService) invoke(ctx context.Context, b *agent.Bundle, message string) (*outbound.RunOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	runnable, err := s.hydrator.Hydrate(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("hydrate agent: %w", err)
	}
	out, err := runnable.Run(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("invoke agent: %w", err)
	}
	return out, nil
}

// finalize moves the session to a terminal state on a context detached
// from the caller, so a cancelled request still leaves a terminal row.
func (s *RunnerService) finalize(ctx context.Context, sess *session.Session, to session.Status) {
	if err := sess.Transition(to); err != nil {
		s.logger.Error("session transition rejected", "session", sess.ID, "error", err)
		return
	}
	if err := s.sessions.Update(detach(ctx), sess); err != nil {
		s.logger.Error("session finalize failed", "session", sess.ID, "error", err)
	}
}

// detach strips cancellation while keeping context values.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
