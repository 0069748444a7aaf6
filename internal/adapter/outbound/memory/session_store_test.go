package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/cognefi/agentgate/internal/domain/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newPendingSession(agentID string) *session.Session {
	return &session.Session{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		UserID:    "u1",
		Status:    session.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func TestSessionStore_TerminalRowsStayTerminal(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	sess := newPendingSession("a1")
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := sess.Transition(session.StatusCompleted); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// A second transition against the stored terminal row must be refused.
	stale := *sess
	stale.Status = session.StatusFailed
	if err := store.Update(ctx, &stale); !errors.Is(err, session.ErrTerminalSession) {
		t.Fatalf("Update() of terminal session error = %v, want ErrTerminalSession", err)
	}

	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != session.StatusCompleted {
		t.Errorf("status = %v, want completed", got.Status)
	}
}

func TestSessionStore_Outputs(t *testing.T) {
	store := NewSessionStore()
	outputs := store.Outputs()
	ctx := context.Background()

	sess := newPendingSession("a1")
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	raw := []byte(`{"content":"hello"}`)
	out := &session.Output{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		Input:       "hi",
		RawResponse: raw,
		PayloadHash: session.HashPayload(raw),
		CreatedAt:   time.Now().UTC(),
	}
	if err := outputs.Create(ctx, out); err != nil {
		t.Fatalf("Create() output error = %v", err)
	}

	got, err := outputs.GetBySession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetBySession() error = %v", err)
	}
	if got.PayloadHash != session.HashPayload(raw) {
		t.Error("payload hash mismatch after round trip")
	}

	if _, err := outputs.GetBySession(ctx, "no-such-session"); !errors.Is(err, session.ErrOutputNotFound) {
		t.Errorf("GetBySession() error = %v, want ErrOutputNotFound", err)
	}
}

func TestSessionStore_DeleteByAgent(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	keep := newPendingSession("a-keep")
	drop := newPendingSession("a-drop")
	for _, s := range []*session.Session{keep, drop} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	if err := store.DeleteByAgent(ctx, "a-drop"); err != nil {
		t.Fatalf("DeleteByAgent() error = %v", err)
	}
	if _, err := store.Get(ctx, drop.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("deleted session still readable: %v", err)
	}
	if _, err := store.Get(ctx, keep.ID); err != nil {
		t.Errorf("unrelated session removed: %v", err)
	}
	if store.Size() != 1 {
		t.Errorf("Size() = %d, want 1", store.Size())
	}
}
