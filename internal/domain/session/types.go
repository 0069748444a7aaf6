// Package session tracks agent execution attempts and their recorded output.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Status is the lifecycle state of an execution session.
type Status string

const (
	// StatusPending means the execution is in flight.
	StatusPending Status = "pending"
	// StatusCompleted is terminal: the run produced an output row.
	StatusCompleted Status = "completed"
	// StatusFailed is terminal: the run errored. The row is kept for audit.
	StatusFailed Status = "failed"
)

// ErrTerminalSession is returned when a completed or failed session is
// transitioned again. Sessions may not be reopened.
var ErrTerminalSession = errors.New("session already in terminal state")

// Session is one execution attempt of an agent.
type Session struct {
	// ID is the unique session identifier.
	ID string
	// AgentID is the executed agent.
	AgentID string
	// UserID is the requesting user.
	UserID string
	// Status is pending, completed, or failed.
	Status Status
	// CreatedAt is when the session was opened (UTC).
	CreatedAt time.Time
	// FinishedAt is when the session reached a terminal state (UTC).
	FinishedAt time.Time
}

// Terminal reports whether the session has reached a final state.
func (s *Session) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}

// Transition moves the session to a terminal status. Only
// pending→completed and pending→failed are valid.
func (s *Session) Transition(to Status) error {
	if to != StatusCompleted && to != StatusFailed {
		return fmt.Errorf("invalid session transition to %q", to)
	}
	if s.Terminal() {
		return ErrTerminalSession
	}
	s.Status = to
	s.FinishedAt = time.Now().UTC()
	return nil
}

// Output is the recorded result of a completed session.
type Output struct {
	// ID is the unique output identifier.
	ID string
	// SessionID references the completed session, 1:1.
	SessionID string
	// Input is the message text submitted to the agent.
	Input string
	// RawResponse is the raw provider response payload (JSON).
	RawResponse []byte
	// PayloadHash is an xxhash64 digest of RawResponse, recorded so audits
	// can detect tampering without reparsing the payload.
	PayloadHash uint64
	// CreatedAt is when the output was recorded (UTC).
	CreatedAt time.Time
}

// HashPayload computes the audit digest for a raw response payload.
func HashPayload(raw []byte) uint64 {
	return xxhash.Sum64(raw)
}
