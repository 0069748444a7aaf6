package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/session"
)

// supersedeRetries bounds optimistic retries when concurrent writers race
// on the active prompt version.
const supersedeRetries = 3

// CreateAgentInput holds the input for creating an agent.
type CreateAgentInput struct {
	Name         string  `json:"name" validate:"required"`
	Description  string  `json:"description"`
	AccessType   string  `json:"access_type" validate:"required,oneof=GLOBAL PRIVATE"`
	IsPublic     bool    `json:"is_public"`
	Instructions string  `json:"instructions" validate:"required"`
	SystemMsg    string  `json:"system_message"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Temperature  *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// UpdateAgentInput holds mutable agent fields. Nil means unchanged.
type UpdateAgentInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
	Status      *string `json:"status,omitempty" validate:"omitempty,oneof=active disabled"`
}

// UpdateModelInput holds mutable model config fields.
type UpdateModelInput struct {
	Provider    *string  `json:"provider,omitempty"`
	Model       *string  `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
}

// UpdatePromptInput holds a new prompt revision.
type UpdatePromptInput struct {
	Instructions string `json:"instructions" validate:"required"`
	SystemMsg    string `json:"system_message"`
}

// UpdateOpsInput holds mutable presentation settings.
type UpdateOpsInput struct {
	Markdown *bool `json:"markdown,omitempty"`
}

// UpdateMemoryInput holds mutable memory settings.
type UpdateMemoryInput struct {
	EnableMemory *bool `json:"enable_memory,omitempty"`
	HistoryRuns  *int  `json:"history_runs,omitempty" validate:"omitempty,gte=0,lte=50"`
}

// AgentService provides agent configuration management: CRUD, versioned
// prompt updates, marketplace listing, and subscriptions.
//
// Prompt updates are serialized per agent with a keyed mutex on top of the
// store's conditional supersede, so the single-active-version invariant
// holds even when the store races and the common path never conflicts.
type AgentService struct {
	agents   agent.AgentStore
	subs     agent.SubscriptionStore
	sessions session.SessionStore
	authz    *AuthzService
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-agent prompt update locks
}

// NewAgentService creates a new AgentService.
func NewAgentService(
	agents agent.AgentStore,
	subs agent.SubscriptionStore,
	sessions session.SessionStore,
	authz *AuthzService,
	logger *slog.Logger,
) *AgentService {
	return &AgentService{
		agents:   agents,
		subs:     subs,
		sessions: sessions,
		authz:    authz,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// agentLock returns the prompt-update mutex for one agent.
func (s *AgentService) agentLock(agentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[agentID] = l
	}
	return l
}

// Create provisions an agent with its full config bundle. GLOBAL agents
// are normalized to no owning tenant regardless of the caller's tenant;
// PRIVATE agents are owned by the caller's tenant.
func (s *AgentService) Create(ctx context.Context, principal *authz.Principal, input CreateAgentInput) (*agent.Bundle, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	accessType := agent.AccessType(input.AccessType)
	ownerTenantID := ""
	if accessType == agent.AccessPrivate {
		ownerTenantID = principal.TenantID()
		if ownerTenantID == "" {
			return nil, fmt.Errorf("%w: private agents require a tenant", ErrInvalidInput)
		}
	}

	res := authz.NewAgentResource(accessType, ownerTenantID, principal.TenantID())
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionCreate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	id := uuid.NewString()
	b := &agent.Bundle{
		Agent: &agent.Agent{
			ID:            id,
			OwnerTenantID: ownerTenantID,
			CreatedBy:     principal.ID,
			Name:          input.Name,
			Description:   input.Description,
			AccessType:    accessType,
			IsPublic:      input.IsPublic && accessType == agent.AccessGlobal,
			Status:        agent.StatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		Model: &agent.ModelConfig{
			AgentID:     id,
			Provider:    orDefault(input.Provider, agent.DefaultModelProvider),
			Model:       orDefault(input.Model, agent.DefaultModelName),
			Temperature: agent.DefaultTemperature,
		},
		ActivePrompt: &agent.PromptVersion{
			ID:            uuid.NewString(),
			AgentID:       id,
			Instructions:  input.Instructions,
			SystemMessage: input.SystemMsg,
			CreatedAt:     now,
		},
		Ops:    agent.DefaultOpsConfig(id),
		Memory: agent.DefaultMemoryConfig(id),
	}
	// An explicit temperature of 0 is a real setting, not an absence.
	if input.Temperature != nil {
		b.Model.Temperature = *input.Temperature
	}

	if err := s.agents.CreateAgent(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("agent created",
		"id", id, "access", accessType, "owner", ownerTenantID, "by", principal.ID)
	return b, nil
}

// Get returns the full config bundle for an agent the principal may manage
// or run.
func (s *AgentService) Get(ctx context.Context, principal *authz.Principal, id string) (*agent.Bundle, error) {
	b, err := s.agents.GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.agentResource(ctx, principal, b.Agent)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionRun); err != nil {
		return nil, err
	}
	return b, nil
}

// Marketplace lists public GLOBAL agents.
func (s *AgentService) Marketplace(ctx context.Context, principal *authz.Principal) ([]*agent.Bundle, error) {
	res := authz.Resource{Kind: authz.KindAgent, ID: "all", Attr: map[string]any{}}
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionListMarketplace); err != nil {
		return nil, err
	}
	return s.agents.ListMarketplace(ctx)
}

// MyAgents lists the agents the principal's tenant owns plus the agents
// the principal subscribed to.
func (s *AgentService) MyAgents(ctx context.Context, principal *authz.Principal) ([]*agent.Bundle, error) {
	res := authz.Resource{Kind: authz.KindAgent, ID: "all", Attr: map[string]any{}}
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionListMyAgents); err != nil {
		return nil, err
	}
	return s.agents.ListAccessible(ctx, principal.ID, principal.TenantID())
}

// Update applies agent row changes (name, description, visibility, status).
func (s *AgentService) Update(ctx context.Context, principal *authz.Principal, id string, input UpdateAgentInput) (*agent.Agent, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	a, err := s.authorizeManage(ctx, principal, id, authz.ActionUpdate)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		a.Name = *input.Name
	}
	if input.Description != nil {
		a.Description = *input.Description
	}
	if input.IsPublic != nil {
		a.IsPublic = *input.IsPublic && a.IsGlobal()
	}
	if input.Status != nil {
		a.Status = agent.Status(*input.Status)
	}
	a.UpdatedAt = time.Now().UTC()

	if err := s.agents.UpdateAgent(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("agent updated", "id", id, "by", principal.ID)
	return a, nil
}

// UpdateModel applies model config changes.
func (s *AgentService) UpdateModel(ctx context.Context, principal *authz.Principal, id string, input UpdateModelInput) (*agent.ModelConfig, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.authorizeManage(ctx, principal, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	b, err := s.agents.GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	m := b.Model
	if m == nil {
		m = &agent.ModelConfig{
			AgentID:     id,
			Provider:    agent.DefaultModelProvider,
			Model:       agent.DefaultModelName,
			Temperature: agent.DefaultTemperature,
		}
	}
	if input.Provider != nil {
		m.Provider = *input.Provider
	}
	if input.Model != nil {
		m.Model = *input.Model
	}
	if input.Temperature != nil {
		m.Temperature = *input.Temperature
	}

	if err := s.agents.UpdateModelConfig(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateOps applies presentation config changes.
func (s *AgentService) UpdateOps(ctx context.Context, principal *authz.Principal, id string, input UpdateOpsInput) (*agent.OpsConfig, error) {
	if _, err := s.authorizeManage(ctx, principal, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	b, err := s.agents.GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	o := b.Ops
	if o == nil {
		o = agent.DefaultOpsConfig(id)
	}
	if input.Markdown != nil {
		o.Markdown = *input.Markdown
	}

	if err := s.agents.UpdateOpsConfig(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// UpdateMemory applies memory config changes.
func (s *AgentService) UpdateMemory(ctx context.Context, principal *authz.Principal, id string, input UpdateMemoryInput) (*agent.MemoryConfig, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.authorizeManage(ctx, principal, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	b, err := s.agents.GetBundle(ctx, id)
	if err != nil {
		return nil, err
	}
	m := b.Memory
	if m == nil {
		m = agent.DefaultMemoryConfig(id)
	}
	if input.EnableMemory != nil {
		m.EnableMemory = *input.EnableMemory
	}
	if input.HistoryRuns != nil {
		m.HistoryRuns = *input.HistoryRuns
	}

	if err := s.agents.UpdateMemoryConfig(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdatePrompt supersedes the active prompt version with a new one. The
// old version stays in history; exactly one version is active afterwards.
func (s *AgentService) UpdatePrompt(ctx context.Context, principal *authz.Principal, id string, input UpdatePromptInput) (*agent.PromptVersion, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.authorizeManage(ctx, principal, id, authz.ActionUpdate); err != nil {
		return nil, err
	}

	lock := s.agentLock(id)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt < supersedeRetries; attempt++ {
		active, err := s.agents.GetActivePrompt(ctx, id)
		if err != nil {
			return nil, err
		}
		v := &agent.PromptVersion{
			ID:            uuid.NewString(),
			AgentID:       id,
			Instructions:  input.Instructions,
			SystemMessage: input.SystemMsg,
			CreatedAt:     time.Now().UTC(),
		}
		err = s.agents.SupersedeActivePrompt(ctx, id, active.ID, v)
		if err == nil {
			s.logger.Info("prompt superseded",
				"agent", id, "version", v.Version, "by", principal.ID)
			return v, nil
		}
		if !errors.Is(err, agent.ErrPromptConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// Prompts returns the full prompt version history.
func (s *AgentService) Prompts(ctx context.Context, principal *authz.Principal, id string) ([]*agent.PromptVersion, error) {
	if _, err := s.authorizeManage(ctx, principal, id, authz.ActionUpdate); err != nil {
		return nil, err
	}
	return s.agents.ListPrompts(ctx, id)
}

// Delete removes an agent with its configs, prompt history, subscriptions,
// sessions, and outputs. This is the only path that deletes sessions.
func (s *AgentService) Delete(ctx context.Context, principal *authz.Principal, id string) error {
	if _, err := s.authorizeManage(ctx, principal, id, authz.ActionDelete); err != nil {
		return err
	}

	if err := s.agents.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.sessions.DeleteByAgent(ctx, id); err != nil {
		return fmt.Errorf("cascade sessions: %w", err)
	}

	s.logger.Info("agent deleted", "id", id, "by", principal.ID)
	return nil
}

// Subscribe grants the principal run access to an agent.
func (s *AgentService) Subscribe(ctx context.Context, principal *authz.Principal, id string) error {
	a, err := s.agents.Get(ctx, id)
	if err != nil {
		return err
	}
	res := authz.AgentResource(a, principal.TenantID(), false)
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionSubscribe); err != nil {
		return err
	}
	if err := s.subs.Subscribe(ctx, principal.ID, id); err != nil {
		return err
	}
	s.logger.Info("subscribed", "agent", id, "user", principal.ID)
	return nil
}

// Unsubscribe revokes the principal's subscription.
func (s *AgentService) Unsubscribe(ctx context.Context, principal *authz.Principal, id string) error {
	a, err := s.agents.Get(ctx, id)
	if err != nil {
		return err
	}
	res := authz.AgentResource(a, principal.TenantID(), true)
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionUnsubscribe); err != nil {
		return err
	}
	if err := s.subs.Unsubscribe(ctx, principal.ID, id); err != nil {
		return err
	}
	s.logger.Info("unsubscribed", "agent", id, "user", principal.ID)
	return nil
}

// authorizeManage loads the agent and checks the manage-level policy for
// it under the given action, so the decision point can distinguish update
// from delete.
func (s *AgentService) authorizeManage(ctx context.Context, principal *authz.Principal, id, action string) (*agent.Agent, error) {
	a, err := s.agents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.agentResource(ctx, principal, a)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, principal, res, action); err != nil {
		return nil, err
	}
	return a, nil
}

// agentResource builds the policy resource for an existing agent, resolving
// the principal's subscription state first.
func (s *AgentService) agentResource(ctx context.Context, principal *authz.Principal, a *agent.Agent) (authz.Resource, error) {
	subscribed, err := s.subs.IsSubscribed(ctx, principal.ID, a.ID)
	if err != nil {
		return authz.Resource{}, fmt.Errorf("resolve subscription: %w", err)
	}
	return authz.AgentResource(a, principal.TenantID(), subscribed), nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
