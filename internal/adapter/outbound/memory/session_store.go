package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cognefi/agentgate/internal/domain/session"
)

// SessionStore implements session.SessionStore and session.OutputStore with
// in-memory maps. Session rows are only removed through DeleteByAgent, the
// cascade path for agent deletion; the execution path never deletes.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	outputs  map[string]*session.Output // keyed by session ID
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session.Session),
		outputs:  make(map[string]*session.Output),
	}
}

// Create stores a new pending session.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// Get retrieves a session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

// ListByAgent returns all sessions for an agent, newest first.
func (s *SessionStore) ListByAgent(ctx context.Context, agentID string) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*session.Session
	for _, sess := range s.sessions {
		if sess.AgentID == agentID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update saves a status transition. Terminal rows stay terminal.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.sessions[sess.ID]
	if !ok {
		return session.ErrSessionNotFound
	}
	if old.Terminal() {
		return session.ErrTerminalSession
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// DeleteByAgent removes all sessions and outputs for an agent. Cascade path
// for agent deletion only.
func (s *SessionStore) DeleteByAgent(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if sess.AgentID == agentID {
			delete(s.sessions, id)
			delete(s.outputs, id)
		}
	}
	return nil
}

// Size returns the number of sessions currently stored. Useful in tests.
func (s *SessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Outputs returns the output-store view over the same backing maps.
func (s *SessionStore) Outputs() *OutputStore {
	return &OutputStore{s: s}
}

// OutputStore implements session.OutputStore over a SessionStore's maps.
type OutputStore struct {
	s *SessionStore
}

// Create stores a recorded output.
func (o *OutputStore) Create(ctx context.Context, out *session.Output) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()

	cp := *out
	cp.RawResponse = append([]byte(nil), out.RawResponse...)
	o.s.outputs[out.SessionID] = &cp
	return nil
}

// GetBySession retrieves the output for a session.
func (o *OutputStore) GetBySession(ctx context.Context, sessionID string) (*session.Output, error) {
	o.s.mu.RLock()
	defer o.s.mu.RUnlock()

	out, ok := o.s.outputs[sessionID]
	if !ok {
		return nil, session.ErrOutputNotFound
	}
	cp := *out
	cp.RawResponse = append([]byte(nil), out.RawResponse...)
	return &cp, nil
}

// Compile-time interface verification.
var (
	_ session.SessionStore = (*SessionStore)(nil)
	_ session.OutputStore  = (*OutputStore)(nil)
)
