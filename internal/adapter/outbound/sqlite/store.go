// Package sqlite provides the persistent store backend. All domain stores
// share one database handle; dependent rows hang off agents and sessions
// with ON DELETE CASCADE so deletes stay atomic.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	code              TEXT NOT NULL UNIQUE,
	industry          TEXT NOT NULL DEFAULT '',
	subscription_plan TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL DEFAULT '',
	full_name  TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	role       TEXT NOT NULL,
	status     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id              TEXT PRIMARY KEY,
	owner_tenant_id TEXT NOT NULL DEFAULT '',
	created_by      TEXT NOT NULL DEFAULT '',
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	access_type     TEXT NOT NULL,
	is_public       INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS model_configs (
	agent_id    TEXT PRIMARY KEY REFERENCES agents(id) ON DELETE CASCADE,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL,
	temperature REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS ops_configs (
	agent_id TEXT PRIMARY KEY REFERENCES agents(id) ON DELETE CASCADE,
	markdown INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS memory_configs (
	agent_id      TEXT PRIMARY KEY REFERENCES agents(id) ON DELETE CASCADE,
	enable_memory INTEGER NOT NULL,
	history_runs  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS prompt_versions (
	id             TEXT PRIMARY KEY,
	agent_id       TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	instructions   TEXT NOT NULL,
	system_message TEXT NOT NULL DEFAULT '',
	active         INTEGER NOT NULL DEFAULT 0,
	version        INTEGER NOT NULL,
	created_at     INTEGER NOT NULL,
	UNIQUE (agent_id, version)
);
CREATE INDEX IF NOT EXISTS idx_prompt_versions_agent ON prompt_versions(agent_id);

CREATE TABLE IF NOT EXISTS subscriptions (
	user_id    TEXT NOT NULL,
	agent_id   TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, agent_id)
);

CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	agent_id    TEXT NOT NULL REFERENCES agents(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	finished_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sessions_agent ON sessions(agent_id);

CREATE TABLE IF NOT EXISTS session_outputs (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL UNIQUE REFERENCES sessions(id) ON DELETE CASCADE,
	input        TEXT NOT NULL,
	raw_response BLOB NOT NULL,
	payload_hash INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);
`

// Store owns the shared database handle. Use the typed accessors to obtain
// the per-domain store implementations.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// Pass ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// table-locked errors under concurrent transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
// Ping verifies the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Tenants returns the tenant store backed by this database.
func (s *Store) Tenants() *TenantStore { return &TenantStore{db: s.db} }

// Users returns the user store backed by this database.
func (s *Store) Users() *UserStore { return &UserStore{db: s.db} }

// Agents returns the agent store backed by this database.
func (s *Store) Agents() *AgentStore { return &AgentStore{db: s.db} }

// Sessions returns the session store backed by this database.
func (s *Store) Sessions() *SessionStore { return &SessionStore{db: s.db} }

// Outputs returns the output store backed by this database.
func (s *Store) Outputs() *OutputStore { return &OutputStore{db: s.db} }

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// isForeignKeyViolation reports whether err is a FOREIGN KEY constraint
// failure.
func isForeignKeyViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// nanos converts a time to its stored integer form. Zero times store as 0.
func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// nullableNanos is nanos for columns that permit NULL.
func nullableNanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// fromNanos converts a stored integer back to a UTC time.
func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// inTx runs fn inside a transaction, rolling back on error.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
