package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/session"
	"github.com/cognefi/agentgate/internal/domain/user"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

// stubHydrator returns a fixed output or error for every agent.
type stubHydrator struct {
	content string
	err     error
}

func (h *stubHydrator) Hydrate(_ context.Context, _ *agent.Bundle) (outbound.Runnable, error) {
	return &stubRunnable{content: h.content, err: h.err}, nil
}

type stubRunnable struct {
	content string
	err     error
}

func (r *stubRunnable) Run(_ context.Context, _ string) (*outbound.RunOutput, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &outbound.RunOutput{
		Content: r.content,
		Raw:     []byte(`{"content":"` + r.content + `"}`),
	}, nil
}

func newRunner(f *fixture, h outbound.Hydrator) *RunnerService {
	return NewRunnerService(f.agents, f.agents, f.sessions, f.sessions.Outputs(), h, f.authz, testLogger(), 0)
}

func TestRunnerService_Run_Completed(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	b := f.seedAgent(t, tn.ID, agent.AccessPrivate)
	svc := newRunner(f, &stubHydrator{content: "the answer"})
	ctx := context.Background()

	res, err := svc.Run(ctx, f.principal(t, member), b.Agent.ID, RunInput{Message: "question"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Content != "the answer" {
		t.Errorf("content = %q", res.Content)
	}

	sess, err := f.sessions.Get(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Get() session error = %v", err)
	}
	if sess.Status != session.StatusCompleted || sess.FinishedAt.IsZero() {
		t.Errorf("session = %+v, want completed with finish time", sess)
	}

	out, err := f.sessions.Outputs().GetBySession(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("GetBySession() error = %v", err)
	}
	if out.Input != "question" {
		t.Errorf("recorded input = %q", out.Input)
	}
	if out.PayloadHash != session.HashPayload(out.RawResponse) {
		t.Error("payload hash does not match recorded payload")
	}
}

func TestRunnerService_Run_DeniedLeavesNoSession(t *testing.T) {
	f := newFixture(denyAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	b := f.seedAgent(t, tn.ID, agent.AccessPrivate)
	svc := newRunner(f, &stubHydrator{content: "never"})

	_, err := svc.Run(context.Background(), f.principal(t, member), b.Agent.ID, RunInput{Message: "question"})
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("Run() error = %v, want ErrForbidden", err)
	}
	if f.sessions.Size() != 0 {
		t.Errorf("denied run left %d sessions behind", f.sessions.Size())
	}
}

func TestRunnerService_Run_DecisionErrorLeavesNoSession(t *testing.T) {
	f := newFixture(errorOut())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	b := f.seedAgent(t, tn.ID, agent.AccessPrivate)
	svc := newRunner(f, &stubHydrator{content: "never"})

	_, err := svc.Run(context.Background(), f.principal(t, member), b.Agent.ID, RunInput{Message: "question"})
	if !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("Run() error = %v, want fail-closed ErrForbidden", err)
	}
	if f.sessions.Size() != 0 {
		t.Errorf("failed check left %d sessions behind", f.sessions.Size())
	}
}

func TestRunnerService_Run_ProviderFailureMarksFailed(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	b := f.seedAgent(t, tn.ID, agent.AccessPrivate)
	svc := newRunner(f, &stubHydrator{err: errors.New("provider down")})
	ctx := context.Background()

	_, err := svc.Run(ctx, f.principal(t, member), b.Agent.ID, RunInput{Message: "question"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Run() error = %v, want ErrUpstreamUnavailable", err)
	}

	sessions, err := f.sessions.ListByAgent(ctx, b.Agent.ID)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("ListByAgent() = %d sessions, err = %v, want 1 audit row", len(sessions), err)
	}
	if sessions[0].Status != session.StatusFailed {
		t.Errorf("session status = %v, want failed", sessions[0].Status)
	}
	if _, err := f.sessions.Outputs().GetBySession(ctx, sessions[0].ID); !errors.Is(err, session.ErrOutputNotFound) {
		t.Errorf("failed run recorded an output: %v", err)
	}
}

// hangupHydrator simulates a caller that goes away mid-run: the runnable
// fires the request's cancel func and reports the cancellation.
type hangupHydrator struct {
	cancel context.CancelFunc
}

func (h *hangupHydrator) Hydrate(_ context.Context, _ *agent.Bundle) (outbound.Runnable, error) {
	return hangupRunnable{cancel: h.cancel}, nil
}

type hangupRunnable struct {
	cancel context.CancelFunc
}

func (r hangupRunnable) Run(ctx context.Context, _ string) (*outbound.RunOutput, error) {
	r.cancel()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunnerService_Run_CallerHangupStillMarksFailed(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	b := f.seedAgent(t, tn.ID, agent.AccessPrivate)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := newRunner(f, &hangupHydrator{cancel: cancel})

	_, err := svc.Run(ctx, f.principal(t, member), b.Agent.ID, RunInput{Message: "question"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Run() error = %v, want ErrUpstreamUnavailable", err)
	}

	// The session must reach a terminal state even though the request
	// context is already cancelled when it is finalized.
	sessions, err := f.sessions.ListByAgent(context.Background(), b.Agent.ID)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("ListByAgent() = %d sessions, err = %v, want 1 audit row", len(sessions), err)
	}
	if sessions[0].Status != session.StatusFailed {
		t.Errorf("session status = %v, want failed", sessions[0].Status)
	}
	if sessions[0].FinishedAt.IsZero() {
		t.Error("failed session has no finish time")
	}
}

func TestRunnerService_Run_DisabledAgent(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	b := f.seedAgent(t, tn.ID, agent.AccessPrivate)
	ctx := context.Background()

	b.Agent.Status = agent.StatusDisabled
	if err := f.agents.UpdateAgent(ctx, b.Agent); err != nil {
		t.Fatalf("disable agent: %v", err)
	}
	svc := newRunner(f, &stubHydrator{content: "never"})

	_, err := svc.Run(ctx, f.principal(t, member), b.Agent.ID, RunInput{Message: "question"})
	if !errors.Is(err, ErrAgentDisabled) {
		t.Fatalf("Run() error = %v, want ErrAgentDisabled", err)
	}
	if f.sessions.Size() != 0 {
		t.Errorf("disabled run left %d sessions behind", f.sessions.Size())
	}
}

func TestRunnerService_Run_MissingAgent(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	svc := newRunner(f, &stubHydrator{content: "never"})

	_, err := svc.Run(context.Background(), f.principal(t, member), "ghost", RunInput{Message: "question"})
	if !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("Run() error = %v, want ErrAgentNotFound", err)
	}
}

func TestRunnerService_Output_OwnerReadsOwn(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	b := f.seedAgent(t, tn.ID, agent.AccessPrivate)
	svc := newRunner(f, &stubHydrator{content: "recorded"})
	ctx := context.Background()
	p := f.principal(t, member)

	res, err := svc.Run(ctx, p, b.Agent.ID, RunInput{Message: "question"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out, err := svc.Output(ctx, p, res.SessionID)
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if out.SessionID != res.SessionID {
		t.Errorf("output session = %q, want %q", out.SessionID, res.SessionID)
	}
}
