package outbound

import (
	"context"

	"github.com/cognefi/agentgate/internal/domain/agent"
)

// RunOutput is the result of one agent invocation.
type RunOutput struct {
	// Content is the text returned to the caller.
	Content string
	// Raw is the raw provider response payload (JSON), persisted for audit.
	Raw []byte
}

// Runnable is an invokable runtime agent built from a config bundle.
type Runnable interface {
	// Run invokes the agent with a message. Implementations must honor
	// context cancellation; the execution gate bounds every call with a
	// timeout.
	Run(ctx context.Context, message string) (*RunOutput, error)
}

// Hydrator builds a runtime agent from a configuration bundle. The model
// provider behind it is an opaque execution oracle; adapters apply the
// documented defaults for absent config rows.
type Hydrator interface {
	Hydrate(ctx context.Context, b *agent.Bundle) (Runnable, error)
}
