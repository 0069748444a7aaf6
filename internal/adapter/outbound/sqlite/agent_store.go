package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cognefi/agentgate/internal/domain/agent"
)

// AgentStore implements agent.AgentStore and agent.SubscriptionStore on
// sqlite. Multi-row operations run in transactions; the single active
// prompt version is enforced by a conditional UPDATE inside
// SupersedeActivePrompt.
type AgentStore struct {
	db *sql.DB
}

var (
	_ agent.AgentStore        = (*AgentStore)(nil)
	_ agent.SubscriptionStore = (*AgentStore)(nil)
)

// CreateAgent implements agent.AgentStore.
func (s *AgentStore) CreateAgent(ctx context.Context, b *agent.Bundle) error {
	if err := agent.ValidateOwnership(b.Agent); err != nil {
		return err
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		a := b.Agent
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO agents (id, owner_tenant_id, created_by, name, description, access_type, is_public, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.OwnerTenantID, a.CreatedBy, a.Name, a.Description,
			string(a.AccessType), a.IsPublic, string(a.Status),
			nanos(a.CreatedAt), nanos(a.UpdatedAt)); err != nil {
			return fmt.Errorf("insert agent: %w", err)
		}

		m := b.Model
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO model_configs (agent_id, provider, model, temperature) VALUES (?, ?, ?, ?)`,
			a.ID, m.Provider, m.Model, m.Temperature); err != nil {
			return fmt.Errorf("insert model config: %w", err)
		}

		o := b.Ops
		if o == nil {
			o = agent.DefaultOpsConfig(a.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ops_configs (agent_id, markdown) VALUES (?, ?)`,
			a.ID, o.Markdown); err != nil {
			return fmt.Errorf("insert ops config: %w", err)
		}

		mem := b.Memory
		if mem == nil {
			mem = agent.DefaultMemoryConfig(a.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memory_configs (agent_id, enable_memory, history_runs) VALUES (?, ?, ?)`,
			a.ID, mem.EnableMemory, mem.HistoryRuns); err != nil {
			return fmt.Errorf("insert memory config: %w", err)
		}

		p := b.ActivePrompt
		createdAt := p.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompt_versions (id, agent_id, instructions, system_message, active, version, created_at)
			 VALUES (?, ?, ?, ?, 1, 1, ?)`,
			p.ID, a.ID, p.Instructions, p.SystemMessage, nanos(createdAt)); err != nil {
			return fmt.Errorf("insert prompt version: %w", err)
		}
		p.Active = true
		p.Version = 1
		p.CreatedAt = createdAt
		return nil
	})
}

// Get implements agent.AgentStore.
func (s *AgentStore) Get(ctx context.Context, id string) (*agent.Agent, error) {
	a, err := s.scanAgent(s.db.QueryRowContext(ctx,
		`SELECT id, owner_tenant_id, created_by, name, description, access_type, is_public, status, created_at, updated_at
		 FROM agents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agent.ErrAgentNotFound
	}
	return a, err
}

// GetBundle implements agent.AgentStore.
func (s *AgentStore) GetBundle(ctx context.Context, id string) (*agent.Bundle, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.loadBundle(ctx, a)
}

// ListMarketplace implements agent.AgentStore.
func (s *AgentStore) ListMarketplace(ctx context.Context) ([]*agent.Bundle, error) {
	return s.listBundles(ctx,
		`SELECT id, owner_tenant_id, created_by, name, description, access_type, is_public, status, created_at, updated_at
		 FROM agents WHERE access_type = ? AND is_public = 1 ORDER BY created_at`,
		string(agent.AccessGlobal))
}

// ListAccessible implements agent.AgentStore.
func (s *AgentStore) ListAccessible(ctx context.Context, userID, tenantID string) ([]*agent.Bundle, error) {
	return s.listBundles(ctx,
		`SELECT id, owner_tenant_id, created_by, name, description, access_type, is_public, status, created_at, updated_at
		 FROM agents
		 WHERE (owner_tenant_id = ? AND owner_tenant_id != '')
		    OR id IN (SELECT agent_id FROM subscriptions WHERE user_id = ?)
		 ORDER BY created_at`,
		tenantID, userID)
}

// UpdateAgent implements agent.AgentStore.
func (s *AgentStore) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET name = ?, description = ?, is_public = ?, status = ?, updated_at = ? WHERE id = ?`,
		a.Name, a.Description, a.IsPublic, string(a.Status), nanos(a.UpdatedAt), a.ID)
	return oneAgentRow(res, err, "update agent")
}

// UpdateModelConfig implements agent.AgentStore.
func (s *AgentStore) UpdateModelConfig(ctx context.Context, m *agent.ModelConfig) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE model_configs SET provider = ?, model = ?, temperature = ? WHERE agent_id = ?`,
		m.Provider, m.Model, m.Temperature, m.AgentID)
	return oneAgentRow(res, err, "update model config")
}

// UpdateOpsConfig implements agent.AgentStore.
func (s *AgentStore) UpdateOpsConfig(ctx context.Context, o *agent.OpsConfig) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ops_configs SET markdown = ? WHERE agent_id = ?`,
		o.Markdown, o.AgentID)
	return oneAgentRow(res, err, "update ops config")
}

// UpdateMemoryConfig implements agent.AgentStore.
func (s *AgentStore) UpdateMemoryConfig(ctx context.Context, m *agent.MemoryConfig) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memory_configs SET enable_memory = ?, history_runs = ? WHERE agent_id = ?`,
		m.EnableMemory, m.HistoryRuns, m.AgentID)
	return oneAgentRow(res, err, "update memory config")
}

// GetActivePrompt implements agent.AgentStore.
func (s *AgentStore) GetActivePrompt(ctx context.Context, agentID string) (*agent.PromptVersion, error) {
	p, err := scanPrompt(s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, instructions, system_message, active, version, created_at
		 FROM prompt_versions WHERE agent_id = ? AND active = 1`, agentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, agent.ErrAgentNotFound
	}
	return p, err
}

// ListPrompts implements agent.AgentStore.
func (s *AgentStore) ListPrompts(ctx context.Context, agentID string) ([]*agent.PromptVersion, error) {
	if _, err := s.Get(ctx, agentID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, agent_id, instructions, system_message, active, version, created_at
		 FROM prompt_versions WHERE agent_id = ? ORDER BY version`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var out []*agent.PromptVersion
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SupersedeActivePrompt implements agent.AgentStore. The deactivation is a
// conditional UPDATE keyed on the caller's expected active version; zero
// rows affected means another writer got there first.
func (s *AgentStore) SupersedeActivePrompt(ctx context.Context, agentID, currentActiveID string, v *agent.PromptVersion) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE prompt_versions SET active = 0 WHERE agent_id = ? AND id = ? AND active = 1`,
			agentID, currentActiveID)
		if err != nil {
			return fmt.Errorf("deactivate prompt: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deactivate prompt: %w", err)
		}
		if n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM agents WHERE id = ?`, agentID).Scan(&exists); err != nil {
				return fmt.Errorf("check agent: %w", err)
			}
			if exists == 0 {
				return agent.ErrAgentNotFound
			}
			return agent.ErrPromptConflict
		}

		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM prompt_versions WHERE agent_id = ?`,
			agentID).Scan(&next); err != nil {
			return fmt.Errorf("next prompt version: %w", err)
		}

		createdAt := v.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompt_versions (id, agent_id, instructions, system_message, active, version, created_at)
			 VALUES (?, ?, ?, ?, 1, ?, ?)`,
			v.ID, agentID, v.Instructions, v.SystemMessage, next, nanos(createdAt)); err != nil {
			return fmt.Errorf("insert prompt version: %w", err)
		}
		v.AgentID = agentID
		v.Active = true
		v.Version = next
		v.CreatedAt = createdAt
		return nil
	})
}

// Delete implements agent.AgentStore. Dependent rows (configs, prompts,
// subscriptions, sessions, outputs) go with the agent via foreign keys.
func (s *AgentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	return oneAgentRow(res, err, "delete agent")
}

// Subscribe implements agent.SubscriptionStore.
func (s *AgentStore) Subscribe(ctx context.Context, userID, agentID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, agent_id, created_at) VALUES (?, ?, ?)`,
		userID, agentID, time.Now().UTC().UnixNano())
	if isUniqueViolation(err) {
		return agent.ErrAlreadySubscribed
	}
	if isForeignKeyViolation(err) {
		return agent.ErrAgentNotFound
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// Unsubscribe implements agent.SubscriptionStore.
func (s *AgentStore) Unsubscribe(ctx context.Context, userID, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE user_id = ? AND agent_id = ?`, userID, agentID)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if n == 0 {
		return agent.ErrSubscriptionNotFound
	}
	return nil
}

// IsSubscribed implements agent.SubscriptionStore.
func (s *AgentStore) IsSubscribed(ctx context.Context, userID, agentID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE user_id = ? AND agent_id = ?`,
		userID, agentID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query subscription: %w", err)
	}
	return n > 0, nil
}

func (s *AgentStore) listBundles(ctx context.Context, query string, args ...any) ([]*agent.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []*agent.Agent
	for rows.Next() {
		a, err := s.scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*agent.Bundle, 0, len(agents))
	for _, a := range agents {
		b, err := s.loadBundle(ctx, a)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *AgentStore) loadBundle(ctx context.Context, a *agent.Agent) (*agent.Bundle, error) {
	b := &agent.Bundle{Agent: a}

	m := &agent.ModelConfig{AgentID: a.ID}
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, model, temperature FROM model_configs WHERE agent_id = ?`, a.ID).
		Scan(&m.Provider, &m.Model, &m.Temperature)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load model config: %w", err)
	default:
		b.Model = m
	}

	o := &agent.OpsConfig{AgentID: a.ID}
	err = s.db.QueryRowContext(ctx,
		`SELECT markdown FROM ops_configs WHERE agent_id = ?`, a.ID).Scan(&o.Markdown)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load ops config: %w", err)
	default:
		b.Ops = o
	}

	mem := &agent.MemoryConfig{AgentID: a.ID}
	err = s.db.QueryRowContext(ctx,
		`SELECT enable_memory, history_runs FROM memory_configs WHERE agent_id = ?`, a.ID).
		Scan(&mem.EnableMemory, &mem.HistoryRuns)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load memory config: %w", err)
	default:
		b.Memory = mem
	}

	p, err := scanPrompt(s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, instructions, system_message, active, version, created_at
		 FROM prompt_versions WHERE agent_id = ? AND active = 1`, a.ID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("load active prompt: %w", err)
	default:
		b.ActivePrompt = p
	}

	return b, nil
}

func (s *AgentStore) scanAgent(r rowScanner) (*agent.Agent, error) {
	var (
		a                    agent.Agent
		access, status       string
		createdAt, updatedAt int64
	)
	if err := r.Scan(&a.ID, &a.OwnerTenantID, &a.CreatedBy, &a.Name, &a.Description,
		&access, &a.IsPublic, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.AccessType = agent.AccessType(access)
	a.Status = agent.Status(status)
	a.CreatedAt = fromNanos(createdAt)
	a.UpdatedAt = fromNanos(updatedAt)
	return &a, nil
}

func scanPrompt(r rowScanner) (*agent.PromptVersion, error) {
	var (
		p         agent.PromptVersion
		createdAt int64
	)
	if err := r.Scan(&p.ID, &p.AgentID, &p.Instructions, &p.SystemMessage,
		&p.Active, &p.Version, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = fromNanos(createdAt)
	return &p, nil
}

func oneAgentRow(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return agent.ErrAgentNotFound
	}
	return nil
}
