package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cognefi/agentgate/internal/adapter/outbound/memory"
	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubDecisions is a scripted decision client.
type stubDecisions struct {
	decision authz.Decision
	// deny overrides the scripted decision for the named actions.
	deny map[string]bool
	// calls records every checked action for assertions.
	calls []string
}

func (s *stubDecisions) Check(_ context.Context, _ *authz.Principal, _ authz.Resource, action string) authz.Decision {
	s.calls = append(s.calls, action)
	if s.deny[action] {
		return authz.Deny("scripted deny")
	}
	return s.decision
}

func (s *stubDecisions) Close() error { return nil }

var _ outbound.DecisionClient = (*stubDecisions)(nil)

func allowAll() *stubDecisions { return &stubDecisions{decision: authz.Allow()} }
func denyAll() *stubDecisions  { return &stubDecisions{decision: authz.Deny("scripted deny")} }
func errorOut() *stubDecisions { return &stubDecisions{decision: authz.Error("scripted outage")} }

// denyActions allows everything except the named actions.
func denyActions(actions ...string) *stubDecisions {
	deny := make(map[string]bool, len(actions))
	for _, a := range actions {
		deny[a] = true
	}
	return &stubDecisions{decision: authz.Allow(), deny: deny}
}

// fixture wires real in-memory stores behind the services under test.
type fixture struct {
	tenants   *memory.TenantStore
	users     *memory.UserStore
	agents    *memory.AgentStore
	sessions  *memory.SessionStore
	decisions *stubDecisions
	authz     *AuthzService
}

func newFixture(decisions *stubDecisions) *fixture {
	f := &fixture{
		tenants:   memory.NewTenantStore(),
		users:     memory.NewUserStore(),
		agents:    memory.NewAgentStore(),
		sessions:  memory.NewSessionStore(),
		decisions: decisions,
	}
	f.authz = NewAuthzService(f.users, f.tenants, decisions, testLogger())
	return f
}

func (f *fixture) seedTenant(t *testing.T, code string) *tenant.Tenant {
	t.Helper()
	tn := &tenant.Tenant{
		ID:        uuid.NewString(),
		Name:      code,
		Code:      code,
		Status:    tenant.StatusActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := f.tenants.Create(context.Background(), tn); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tn
}

func (f *fixture) seedUser(t *testing.T, tenantID string, role user.Role) *user.Profile {
	t.Helper()
	p := &user.Profile{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		FullName: "Test User",
		Email:    uuid.NewString() + "@example.com",
		Role:     role,
		Status:   user.StatusActive,
	}
	if err := f.users.Create(context.Background(), p); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return p
}

func (f *fixture) principal(t *testing.T, p *user.Profile) *authz.Principal {
	t.Helper()
	pr, err := f.authz.ResolvePrincipal(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("resolve principal: %v", err)
	}
	return pr
}

func (f *fixture) seedAgent(t *testing.T, owner string, access agent.AccessType) *agent.Bundle {
	t.Helper()
	id := uuid.NewString()
	b := &agent.Bundle{
		Agent: &agent.Agent{
			ID:            id,
			OwnerTenantID: owner,
			Name:          "seeded",
			AccessType:    access,
			IsPublic:      access == agent.AccessGlobal,
			Status:        agent.StatusActive,
			CreatedAt:     time.Now().UTC(),
			UpdatedAt:     time.Now().UTC(),
		},
		Model: &agent.ModelConfig{
			AgentID:     id,
			Provider:    agent.DefaultModelProvider,
			Model:       agent.DefaultModelName,
			Temperature: agent.DefaultTemperature,
		},
		ActivePrompt: &agent.PromptVersion{
			ID:           uuid.NewString(),
			AgentID:      id,
			Instructions: "seeded instructions",
		},
		Ops:    agent.DefaultOpsConfig(id),
		Memory: agent.DefaultMemoryConfig(id),
	}
	if err := f.agents.CreateAgent(context.Background(), b); err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return b
}
