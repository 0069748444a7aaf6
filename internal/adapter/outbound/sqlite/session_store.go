package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cognefi/agentgate/internal/domain/session"
)

// SessionStore implements session.SessionStore on sqlite. Terminal rows
// are immutable: the status transition is a conditional UPDATE keyed on
// the pending state.
type SessionStore struct {
	db *sql.DB
}

var _ session.SessionStore = (*SessionStore)(nil)

// Create implements session.SessionStore.
func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, agent_id, user_id, status, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.AgentID, sess.UserID, string(sess.Status),
		nanos(sess.CreatedAt), nullableNanos(sess.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Get implements session.SessionStore.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, user_id, status, created_at, finished_at
		 FROM sessions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrSessionNotFound
	}
	return sess, err
}

// ListByAgent implements session.SessionStore.
func (s *SessionStore) ListByAgent(ctx context.Context, agentID string) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, user_id, status, created_at, finished_at
		 FROM sessions WHERE agent_id = ? ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Update implements session.SessionStore.
func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, finished_at = ? WHERE id = ? AND status = ?`,
		string(sess.Status), nullableNanos(sess.FinishedAt), sess.ID,
		string(session.StatusPending))
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sessions WHERE id = ?`, sess.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if exists == 0 {
			return session.ErrSessionNotFound
		}
		return session.ErrTerminalSession
	}
	return nil
}

// DeleteByAgent implements session.SessionStore. With the foreign key
// cascade in place the agent delete already removes these rows; this path
// covers callers composing stores across backends.
func (s *SessionStore) DeleteByAgent(ctx context.Context, agentID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE agent_id = ?`, agentID); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func scanSession(r rowScanner) (*session.Session, error) {
	var (
		sess       session.Session
		status     string
		createdAt  int64
		finishedAt sql.NullInt64
	)
	if err := r.Scan(&sess.ID, &sess.AgentID, &sess.UserID, &status,
		&createdAt, &finishedAt); err != nil {
		return nil, err
	}
	sess.Status = session.Status(status)
	sess.CreatedAt = fromNanos(createdAt)
	if finishedAt.Valid {
		sess.FinishedAt = fromNanos(finishedAt.Int64)
	}
	return &sess, nil
}

// OutputStore implements session.OutputStore on sqlite.
type OutputStore struct {
	db *sql.DB
}

var _ session.OutputStore = (*OutputStore)(nil)

// Create implements session.OutputStore.
func (s *OutputStore) Create(ctx context.Context, o *session.Output) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_outputs (id, session_id, input, raw_response, payload_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.SessionID, o.Input, o.RawResponse, int64(o.PayloadHash), nanos(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert output: %w", err)
	}
	return nil
}

// GetBySession implements session.OutputStore.
func (s *OutputStore) GetBySession(ctx context.Context, sessionID string) (*session.Output, error) {
	var (
		o         session.Output
		hash      int64
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, input, raw_response, payload_hash, created_at
		 FROM session_outputs WHERE session_id = ?`, sessionID).
		Scan(&o.ID, &o.SessionID, &o.Input, &o.RawResponse, &hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrOutputNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query output: %w", err)
	}
	o.PayloadHash = uint64(hash)
	o.CreatedAt = fromNanos(createdAt)
	return &o, nil
}
