// Package agent contains the shared-agent configuration types: the agent
// itself, its 1:1 configuration rows, and its append-only prompt history.
package agent

import "time"

// AccessType controls who may see an agent.
type AccessType string

const (
	// AccessGlobal marks a platform-wide agent with no owning tenant.
	AccessGlobal AccessType = "GLOBAL"
	// AccessPrivate marks an agent owned by a single tenant.
	AccessPrivate AccessType = "PRIVATE"
)

// Valid reports whether a is a known access type.
func (a AccessType) Valid() bool {
	return a == AccessGlobal || a == AccessPrivate
}

// Status is the operational state of an agent.
type Status string

const (
	// StatusActive means the agent can be run.
	StatusActive Status = "active"
	// StatusDisabled blocks execution without deleting history.
	StatusDisabled Status = "disabled"
)

// Valid reports whether s is a known agent status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDisabled
}

// Hydration defaults applied when a config row is absent or zero-valued.
const (
	DefaultModelProvider = "openai"
	DefaultModelName     = "gpt-4o"
	DefaultTemperature   = 0.7
	DefaultHistoryRuns   = 3
)

// Agent is a shared chatbot configuration.
//
// Invariant: GLOBAL agents have an empty OwnerTenantID; PRIVATE agents have
// a non-empty one. Stores reject bundles that violate this.
type Agent struct {
	// ID is the unique agent identifier.
	ID string
	// OwnerTenantID is the owning tenant, empty for GLOBAL agents.
	OwnerTenantID string
	// CreatedBy is the user who created the agent.
	CreatedBy string
	// Name is the display name.
	Name string
	// Description is optional free-form text.
	Description string
	// AccessType is GLOBAL or PRIVATE.
	AccessType AccessType
	// IsPublic controls marketplace visibility for GLOBAL agents.
	IsPublic bool
	// Status is active or disabled.
	Status Status
	// CreatedAt is when the agent was created (UTC).
	CreatedAt time.Time
	// UpdatedAt is when the agent row was last modified (UTC).
	UpdatedAt time.Time
}

// IsGlobal reports whether the agent is platform-wide.
func (a *Agent) IsGlobal() bool {
	return a.AccessType == AccessGlobal
}

// ModelConfig is the 1:1 model binding for an agent.
type ModelConfig struct {
	AgentID string
	// Provider is the model provider name (e.g. "openai", "google").
	Provider string
	// Model is the provider-specific model identifier.
	Model string
	// Temperature is the sampling temperature.
	Temperature float64
}

// PromptVersion is one entry in an agent's append-only prompt history.
//
// Invariant: once an agent has at least one version, exactly one version has
// Active=true at all times. Stores enforce this through SupersedeActivePrompt.
type PromptVersion struct {
	// ID is the unique version identifier.
	ID string
	// AgentID is the owning agent.
	AgentID string
	// Instructions is the behavioral prompt for the agent.
	Instructions string
	// SystemMessage is the system prompt.
	SystemMessage string
	// Active marks the single currently-used version.
	Active bool
	// Version is the 1-based creation order.
	Version int
	// CreatedAt is when the version was created (UTC).
	CreatedAt time.Time
}

// OpsConfig holds execution-presentation settings. The zero value is not
// meaningful; use DefaultOpsConfig for absent rows.
type OpsConfig struct {
	AgentID string
	// Markdown enables markdown formatting in responses.
	Markdown bool
}

// DefaultOpsConfig returns the ops settings used when no row exists.
func DefaultOpsConfig(agentID string) *OpsConfig {
	return &OpsConfig{AgentID: agentID, Markdown: true}
}

// MemoryConfig holds conversation-memory settings.
type MemoryConfig struct {
	AgentID string
	// EnableMemory adds prior history to the agent's context.
	EnableMemory bool
	// HistoryRuns is the number of prior runs included when memory is on.
	HistoryRuns int
}

// DefaultMemoryConfig returns the memory settings used when no row exists.
func DefaultMemoryConfig(agentID string) *MemoryConfig {
	return &MemoryConfig{AgentID: agentID, EnableMemory: false, HistoryRuns: DefaultHistoryRuns}
}

// Subscription grants a user outside the owning tenant the right to invoke
// an agent. The (UserID, AgentID) pair is unique.
type Subscription struct {
	UserID    string
	AgentID   string
	CreatedAt time.Time
}

// Bundle is the full configuration snapshot used for hydration and detail
// reads: the agent row plus its config rows and the active prompt version.
// Config pointers may be nil; hydration applies defaults.
type Bundle struct {
	Agent        *Agent
	Model        *ModelConfig
	ActivePrompt *PromptVersion
	Ops          *OpsConfig
	Memory       *MemoryConfig
}
