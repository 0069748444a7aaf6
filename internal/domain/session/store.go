package session

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned when a session doesn't exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrOutputNotFound is returned when no output exists for a session.
var ErrOutputNotFound = errors.New("output not found")

// SessionStore provides execution session persistence. Sessions are never
// deleted by the execution path; terminal rows are the audit trail.
type SessionStore interface {
	// Create stores a new pending session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, id string) (*Session, error)

	// ListByAgent returns all sessions for an agent, newest first.
	ListByAgent(ctx context.Context, agentID string) ([]*Session, error)

	// Update saves a status transition.
	// Returns ErrTerminalSession if the stored session is already terminal.
	Update(ctx context.Context, s *Session) error

	// DeleteByAgent removes all sessions and outputs for an agent. This is
	// the cascade path for agent deletion; nothing else deletes sessions.
	DeleteByAgent(ctx context.Context, agentID string) error
}

// OutputStore provides output persistence, 1:1 with completed sessions.
type OutputStore interface {
	// Create stores a recorded output.
	Create(ctx context.Context, o *Output) error

	// GetBySession retrieves the output for a session.
	// Returns ErrOutputNotFound if none exists.
	GetBySession(ctx context.Context, sessionID string) (*Output, error)
}
