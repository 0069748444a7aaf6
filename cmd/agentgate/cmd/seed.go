package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cognefi/agentgate/internal/adapter/outbound/sqlite"
	"github.com/cognefi/agentgate/internal/config"
	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo tenants, users, and agents",
	Long: `Load a demo data set into the configured sqlite store.

The set contains three tenants (one suspended), users across all roles,
a public GLOBAL agent, a PRIVATE tenant agent, and subscriptions to the
global one. It is meant for exercising the API locally.

The in-memory backend cannot be seeded; it lives and dies with the
server process. Use "agentgate serve --dev" for in-memory demos.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.SetDefaults()
	if cfg.Store.Backend != config.StoreSQLite {
		return fmt.Errorf("seed requires the sqlite backend, store is %q", cfg.Store.Backend)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite store: %w", err)
	}
	defer func() { _ = db.Close() }()

	ctx := context.Background()
	if err := seedDemoData(ctx, db); err != nil {
		return err
	}

	logger.Info("demo data seeded", "path", cfg.Store.Path)
	return nil
}

// seedDemoData writes the demo set. IDs are fixed so repeated runs fail
// fast on the unique constraints instead of piling up duplicates.
func seedDemoData(ctx context.Context, db *sqlite.Store) error {
	now := time.Now().UTC()

	tenants := []*tenant.Tenant{
		{ID: "tenant-platform", Name: "Cognefi Platform", Code: "COGNEFI_GLOBAL", Industry: "AI", SubscriptionPlan: "enterprise", Status: tenant.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "tenant-alpha", Name: "Tenant Alpha", Code: "TENANT_ALPHA", Industry: "Finance", SubscriptionPlan: "pro", Status: tenant.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "tenant-beta", Name: "Tenant Beta", Code: "TENANT_BETA", Industry: "Healthcare", SubscriptionPlan: "free", Status: tenant.StatusSuspended, CreatedAt: now, UpdatedAt: now},
	}
	for _, t := range tenants {
		if err := db.Tenants().Create(ctx, t); err != nil {
			return fmt.Errorf("seed tenant %s: %w", t.Code, err)
		}
	}

	users := []*user.Profile{
		{ID: "user-superadmin", FullName: "Super Admin", Email: "superadmin@cognefi.com", Role: user.RoleSuperAdmin, Status: user.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "user-alpha-admin", TenantID: "tenant-alpha", FullName: "Tenant A Admin", Email: "admin@alpha.com", Role: user.RoleTenantAdmin, Status: user.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "user-alpha-member", TenantID: "tenant-alpha", FullName: "Tenant A User", Email: "user@alpha.com", Role: user.RoleUser, Status: user.StatusActive, CreatedAt: now, UpdatedAt: now},
		{ID: "user-beta-admin", TenantID: "tenant-beta", FullName: "Tenant B Admin", Email: "admin@beta.com", Role: user.RoleTenantAdmin, Status: user.StatusDisabled, CreatedAt: now, UpdatedAt: now},
	}
	for _, p := range users {
		if err := db.Users().Create(ctx, p); err != nil {
			return fmt.Errorf("seed user %s: %w", p.Email, err)
		}
	}

	agents := []*agent.Bundle{
		demoAgent("agent-global-market", "", "user-superadmin", "Global Market Agent", "Global marketplace agent", agent.AccessGlobal, true),
		demoAgent("agent-alpha-private", "tenant-alpha", "user-alpha-admin", "Tenant A Private Agent", "Private agent for Tenant Alpha", agent.AccessPrivate, false),
	}
	for _, b := range agents {
		if err := db.Agents().CreateAgent(ctx, b); err != nil {
			return fmt.Errorf("seed agent %s: %w", b.Agent.Name, err)
		}
	}

	for _, userID := range []string{"user-alpha-admin", "user-alpha-member"} {
		if err := db.Agents().Subscribe(ctx, userID, "agent-global-market"); err != nil {
			return fmt.Errorf("seed subscription for %s: %w", userID, err)
		}
	}

	return nil
}

func demoAgent(id, ownerTenantID, createdBy, name, description string, access agent.AccessType, public bool) *agent.Bundle {
	now := time.Now().UTC()
	return &agent.Bundle{
		Agent: &agent.Agent{
			ID:            id,
			OwnerTenantID: ownerTenantID,
			CreatedBy:     createdBy,
			Name:          name,
			Description:   description,
			AccessType:    access,
			IsPublic:      public,
			Status:        agent.StatusActive,
			CreatedAt:     now,
			UpdatedAt:     now,
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
			Instructions: fmt.Sprintf("You are %s. %s", name, description),
			Active:       true,
			Version:      1,
			CreatedAt:    now,
		},
		Ops:    agent.DefaultOpsConfig(id),
		Memory: agent.DefaultMemoryConfig(id),
	}
}
