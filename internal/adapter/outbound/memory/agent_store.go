package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cognefi/agentgate/internal/domain/agent"
)

// agentRecord holds an agent with all its dependent rows.
type agentRecord struct {
	agent   agent.Agent
	model   *agent.ModelConfig
	ops     *agent.OpsConfig
	memory  *agent.MemoryConfig
	prompts []agent.PromptVersion // creation order; at most one active
}

// AgentStore implements agent.AgentStore and agent.SubscriptionStore with
// in-memory maps. Subscriptions live here because they are dependent rows
// of the agent and must go away with it.
type AgentStore struct {
	mu     sync.RWMutex
	agents map[string]*agentRecord
	subs   map[string]map[string]struct{} // agentID -> set of userIDs
}

// NewAgentStore creates an empty in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		agents: make(map[string]*agentRecord),
		subs:   make(map[string]map[string]struct{}),
	}
}

// CreateAgent stores the agent with all initial config rows as one unit.
func (s *AgentStore) CreateAgent(ctx context.Context, b *agent.Bundle) error {
	if err := agent.ValidateOwnership(b.Agent); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := &agentRecord{agent: *b.Agent}
	if b.Model != nil {
		cp := *b.Model
		rec.model = &cp
	}
	if b.Ops != nil {
		cp := *b.Ops
		rec.ops = &cp
	}
	if b.Memory != nil {
		cp := *b.Memory
		rec.memory = &cp
	}
	if b.ActivePrompt != nil {
		p := *b.ActivePrompt
		p.Active = true
		p.Version = 1
		rec.prompts = []agent.PromptVersion{p}
	}
	s.agents[b.Agent.ID] = rec
	s.subs[b.Agent.ID] = make(map[string]struct{})
	return nil
}

// Get retrieves the agent row.
func (s *AgentStore) Get(ctx context.Context, id string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.agents[id]
	if !ok {
		return nil, agent.ErrAgentNotFound
	}
	cp := rec.agent
	return &cp, nil
}

// GetBundle retrieves the agent with its config rows and active prompt.
func (s *AgentStore) GetBundle(ctx context.Context, id string) (*agent.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.agents[id]
	if !ok {
		return nil, agent.ErrAgentNotFound
	}
	return rec.bundle(), nil
}

// bundle builds a copy-out snapshot. Caller must hold at least a read lock.
func (r *agentRecord) bundle() *agent.Bundle {
	b := &agent.Bundle{}
	cp := r.agent
	b.Agent = &cp
	if r.model != nil {
		m := *r.model
		b.Model = &m
	}
	if r.ops != nil {
		o := *r.ops
		b.Ops = &o
	}
	if r.memory != nil {
		m := *r.memory
		b.Memory = &m
	}
	for i := range r.prompts {
		if r.prompts[i].Active {
			p := r.prompts[i]
			b.ActivePrompt = &p
			break
		}
	}
	return b
}

// ListMarketplace returns GLOBAL agents flagged public.
func (s *AgentStore) ListMarketplace(ctx context.Context) ([]*agent.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*agent.Bundle
	for _, rec := range s.agents {
		if rec.agent.AccessType == agent.AccessGlobal && rec.agent.IsPublic {
			out = append(out, rec.bundle())
		}
	}
	sortBundles(out)
	return out, nil
}

// ListAccessible returns agents owned by the tenant or subscribed to by the
// user.
func (s *AgentStore) ListAccessible(ctx context.Context, userID, tenantID string) ([]*agent.Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*agent.Bundle
	for id, rec := range s.agents {
		owned := tenantID != "" && rec.agent.OwnerTenantID == tenantID
		_, subscribed := s.subs[id][userID]
		if owned || subscribed {
			out = append(out, rec.bundle())
		}
	}
	sortBundles(out)
	return out, nil
}

func sortBundles(bs []*agent.Bundle) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].Agent.Name < bs[j].Agent.Name })
}

// UpdateAgent saves changes to the agent row.
func (s *AgentStore) UpdateAgent(ctx context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[a.ID]
	if !ok {
		return agent.ErrAgentNotFound
	}
	rec.agent = *a
	return nil
}

// UpdateModelConfig saves changes to the model config row.
func (s *AgentStore) UpdateModelConfig(ctx context.Context, m *agent.ModelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[m.AgentID]
	if !ok {
		return agent.ErrAgentNotFound
	}
	cp := *m
	rec.model = &cp
	return nil
}

// UpdateOpsConfig saves changes to the ops config row.
func (s *AgentStore) UpdateOpsConfig(ctx context.Context, o *agent.OpsConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[o.AgentID]
	if !ok {
		return agent.ErrAgentNotFound
	}
	cp := *o
	rec.ops = &cp
	return nil
}

// UpdateMemoryConfig saves changes to the memory config row.
func (s *AgentStore) UpdateMemoryConfig(ctx context.Context, m *agent.MemoryConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[m.AgentID]
	if !ok {
		return agent.ErrAgentNotFound
	}
	cp := *m
	rec.memory = &cp
	return nil
}

// GetActivePrompt returns the currently active prompt version.
func (s *AgentStore) GetActivePrompt(ctx context.Context, agentID string) (*agent.PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.agents[agentID]
	if !ok {
		return nil, agent.ErrAgentNotFound
	}
	for i := range rec.prompts {
		if rec.prompts[i].Active {
			cp := rec.prompts[i]
			return &cp, nil
		}
	}
	return nil, agent.ErrAgentNotFound
}

// ListPrompts returns the full prompt history in creation order.
func (s *AgentStore) ListPrompts(ctx context.Context, agentID string) ([]*agent.PromptVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.agents[agentID]
	if !ok {
		return nil, agent.ErrAgentNotFound
	}
	out := make([]*agent.PromptVersion, 0, len(rec.prompts))
	for i := range rec.prompts {
		cp := rec.prompts[i]
		out = append(out, &cp)
	}
	return out, nil
}

// SupersedeActivePrompt atomically deactivates currentActiveID and inserts v
// as the new active version. The write pair happens under one lock, so the
// single-active invariant holds at every observable point.
func (s *AgentStore) SupersedeActivePrompt(ctx context.Context, agentID, currentActiveID string, v *agent.PromptVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[agentID]
	if !ok {
		return agent.ErrAgentNotFound
	}

	activeIdx := -1
	for i := range rec.prompts {
		if rec.prompts[i].Active {
			activeIdx = i
			break
		}
	}
	if activeIdx == -1 || rec.prompts[activeIdx].ID != currentActiveID {
		return agent.ErrPromptConflict
	}

	rec.prompts[activeIdx].Active = false
	cp := *v
	cp.Active = true
	cp.Version = len(rec.prompts) + 1
	rec.prompts = append(rec.prompts, cp)
	v.Active = true
	v.Version = cp.Version
	return nil
}

// Delete removes the agent and all dependent rows.
func (s *AgentStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[id]; !ok {
		return agent.ErrAgentNotFound
	}
	delete(s.agents, id)
	delete(s.subs, id)
	return nil
}

// Subscribe records a subscription.
func (s *AgentStore) Subscribe(ctx context.Context, userID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[agentID]
	if !ok {
		return agent.ErrAgentNotFound
	}
	if _, dup := set[userID]; dup {
		return agent.ErrAlreadySubscribed
	}
	set[userID] = struct{}{}
	return nil
}

// Unsubscribe removes a subscription.
func (s *AgentStore) Unsubscribe(ctx context.Context, userID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.subs[agentID]
	if !ok {
		return agent.ErrSubscriptionNotFound
	}
	if _, exists := set[userID]; !exists {
		return agent.ErrSubscriptionNotFound
	}
	delete(set, userID)
	return nil
}

// IsSubscribed reports whether the user holds a subscription.
func (s *AgentStore) IsSubscribed(ctx context.Context, userID, agentID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.subs[agentID][userID]
	return ok, nil
}

// Compile-time interface verification.
var (
	_ agent.AgentStore        = (*AgentStore)(nil)
	_ agent.SubscriptionStore = (*AgentStore)(nil)
)
