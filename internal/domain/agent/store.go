package agent

import (
	"context"
	"errors"
)

// Store errors.
var (
	// ErrAgentNotFound is returned when an agent doesn't exist.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrPromptConflict is returned by SupersedeActivePrompt when the
	// expected active version is no longer active. Callers retry with a
	// fresh read.
	ErrPromptConflict = errors.New("active prompt version changed concurrently")
	// ErrInvalidOwnership is returned when a bundle violates the
	// GLOBAL/PRIVATE ownership invariant.
	ErrInvalidOwnership = errors.New("agent ownership violates access type")
	// ErrAlreadySubscribed is returned on duplicate subscriptions.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrSubscriptionNotFound is returned when a subscription doesn't exist.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// ValidateOwnership checks the GLOBAL/PRIVATE ownership invariant.
func ValidateOwnership(a *Agent) error {
	if a.AccessType == AccessGlobal && a.OwnerTenantID != "" {
		return ErrInvalidOwnership
	}
	if a.AccessType == AccessPrivate && a.OwnerTenantID == "" {
		return ErrInvalidOwnership
	}
	return nil
}

// AgentStore provides agent configuration persistence.
//
// CreateAgent and Delete are atomic across the agent's dependent rows.
// SupersedeActivePrompt is the only way to change the active prompt version;
// it performs the deactivate-and-insert pair as one conditional operation.
type AgentStore interface {
	// CreateAgent stores the agent with all initial config rows as one unit.
	// The first prompt version must be marked active. If any sub-write
	// fails, nothing is persisted.
	CreateAgent(ctx context.Context, b *Bundle) error

	// Get retrieves the agent row.
	// Returns ErrAgentNotFound if the agent doesn't exist.
	Get(ctx context.Context, id string) (*Agent, error)

	// GetBundle retrieves the agent with its config rows and active prompt.
	GetBundle(ctx context.Context, id string) (*Bundle, error)

	// ListMarketplace returns GLOBAL agents flagged public.
	ListMarketplace(ctx context.Context) ([]*Bundle, error)

	// ListAccessible returns agents owned by the tenant or subscribed to
	// by the user.
	ListAccessible(ctx context.Context, userID, tenantID string) ([]*Bundle, error)

	// UpdateAgent saves changes to the agent row (name, description, status).
	UpdateAgent(ctx context.Context, a *Agent) error

	// UpdateModelConfig saves changes to the model config row.
	UpdateModelConfig(ctx context.Context, m *ModelConfig) error

	// UpdateOpsConfig saves changes to the ops config row.
	UpdateOpsConfig(ctx context.Context, o *OpsConfig) error

	// UpdateMemoryConfig saves changes to the memory config row.
	UpdateMemoryConfig(ctx context.Context, m *MemoryConfig) error

	// GetActivePrompt returns the currently active prompt version.
	GetActivePrompt(ctx context.Context, agentID string) (*PromptVersion, error)

	// ListPrompts returns the full prompt history in creation order.
	ListPrompts(ctx context.Context, agentID string) ([]*PromptVersion, error)

	// SupersedeActivePrompt atomically deactivates the version identified
	// by currentActiveID and inserts v as the new active version.
	// Returns ErrPromptConflict if currentActiveID is not the active
	// version at commit time. v.Version is assigned by the store.
	SupersedeActivePrompt(ctx context.Context, agentID, currentActiveID string, v *PromptVersion) error

	// Delete removes the agent and all dependent rows (configs, prompt
	// history, subscriptions, sessions, outputs) irreversibly.
	Delete(ctx context.Context, id string) error
}

// SubscriptionStore provides agent subscription persistence.
type SubscriptionStore interface {
	// Subscribe records a subscription.
	// Returns ErrAlreadySubscribed on duplicates and ErrAgentNotFound if
	// the agent doesn't exist.
	Subscribe(ctx context.Context, userID, agentID string) error

	// Unsubscribe removes a subscription.
	// Returns ErrSubscriptionNotFound if none exists.
	Unsubscribe(ctx context.Context, userID, agentID string) error

	// IsSubscribed reports whether the user holds a subscription.
	IsSubscribed(ctx context.Context, userID, agentID string) (bool, error)
}
