package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

// Simulator is a hydrator that answers locally without a model provider.
// It backs dev mode and seeded demos; the response echoes the agent name
// and the input so end-to-end flows stay testable offline.
type Simulator struct{}

var _ outbound.Hydrator = (*Simulator)(nil)

// NewSimulator creates the offline hydrator.
func NewSimulator() *Simulator { return &Simulator{} }

// Hydrate implements outbound.Hydrator.
func (s *Simulator) Hydrate(_ context.Context, b *agent.Bundle) (outbound.Runnable, error) {
	if b == nil || b.Agent == nil {
		return nil, fmt.Errorf("hydrate: nil bundle")
	}
	return &simulatedAgent{name: b.Agent.Name}, nil
}

// Close implements the optional closer; the simulator holds nothing.
func (s *Simulator) Close() error { return nil }

type simulatedAgent struct {
	name string
}

// Run implements outbound.Runnable.
func (a *simulatedAgent) Run(ctx context.Context, message string) (*outbound.RunOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content := fmt.Sprintf("[%s] %s", a.name, message)
	raw, err := json.Marshal(map[string]string{
		"agent":   a.name,
		"input":   message,
		"content": content,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal simulated response: %w", err)
	}
	return &outbound.RunOutput{Content: content, Raw: raw}, nil
}
