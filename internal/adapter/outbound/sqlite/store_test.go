package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/session"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedBundle(t *testing.T, store *Store, owner string, access agent.AccessType) string {
	t.Helper()
	id := uuid.NewString()
	b := &agent.Bundle{
		Agent: &agent.Agent{
			ID:            id,
			OwnerTenantID: owner,
			Name:          "assistant",
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
			Instructions: "answer briefly",
		},
		Ops:    agent.DefaultOpsConfig(id),
		Memory: agent.DefaultMemoryConfig(id),
	}
	if err := store.Agents().CreateAgent(context.Background(), b); err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	return id
}

func TestTenantStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	tenants := store.Tenants()
	ctx := context.Background()

	in := &tenant.Tenant{
		ID:               uuid.NewString(),
		Name:             "Acme",
		Code:             "ACME",
		Industry:         "retail",
		SubscriptionPlan: "pro",
		Status:           tenant.StatusActive,
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := tenants.Create(ctx, in); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := *in
	dup.ID = uuid.NewString()
	if err := tenants.Create(ctx, &dup); !errors.Is(err, tenant.ErrDuplicateCode) {
		t.Errorf("duplicate code Create() error = %v, want ErrDuplicateCode", err)
	}

	got, err := tenants.GetByCode(ctx, "ACME")
	if err != nil {
		t.Fatalf("GetByCode() error = %v", err)
	}
	if got.ID != in.ID || got.Status != tenant.StatusActive || !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("GetByCode() = %+v, want %+v", got, in)
	}

	got.Status = tenant.StatusSuspended
	if err := tenants.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := tenants.Update(ctx, &tenant.Tenant{ID: "missing"}); !errors.Is(err, tenant.ErrTenantNotFound) {
		t.Errorf("Update() missing error = %v, want ErrTenantNotFound", err)
	}

	all, err := tenants.List(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("List() = %d tenants, err = %v, want 1", len(all), err)
	}
	if all[0].Status != tenant.StatusSuspended {
		t.Errorf("listed status = %v, want suspended", all[0].Status)
	}

	if err := tenants.Delete(ctx, "missing"); !errors.Is(err, tenant.ErrTenantNotFound) {
		t.Errorf("Delete() missing error = %v, want ErrTenantNotFound", err)
	}
	if err := tenants.Delete(ctx, in.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := tenants.Get(ctx, in.ID); !errors.Is(err, tenant.ErrTenantNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrTenantNotFound", err)
	}
}

func TestUserStore_RoundTrip(t *testing.T) {
	store := openTestStore(t)
	users := store.Users()
	ctx := context.Background()

	in := &user.Profile{
		ID:       uuid.NewString(),
		TenantID: "t1",
		FullName: "Ada",
		Email:    "ada@example.com",
		Role:     user.RoleTenantAdmin,
		Status:   user.StatusActive,
	}
	if err := users.Create(ctx, in); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := *in
	dup.ID = uuid.NewString()
	if err := users.Create(ctx, &dup); !errors.Is(err, user.ErrDuplicateEmail) {
		t.Errorf("duplicate email Create() error = %v, want ErrDuplicateEmail", err)
	}

	other := &user.Profile{
		ID: uuid.NewString(), TenantID: "t2", FullName: "Bob",
		Email: "bob@example.com", Role: user.RoleUser, Status: user.StatusActive,
	}
	if err := users.Create(ctx, other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	scoped, err := users.List(ctx, "t1")
	if err != nil || len(scoped) != 1 || scoped[0].ID != in.ID {
		t.Errorf("List(t1) = %d users, err = %v, want just the t1 user", len(scoped), err)
	}
	all, err := users.List(ctx, "")
	if err != nil || len(all) != 2 {
		t.Errorf("List(\"\") = %d users, err = %v, want 2", len(all), err)
	}

	if _, err := users.Get(ctx, "missing"); !errors.Is(err, user.ErrUserNotFound) {
		t.Errorf("Get() missing error = %v, want ErrUserNotFound", err)
	}
}

func TestAgentStore_CreateAndBundle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id := seedBundle(t, store, "t1", agent.AccessPrivate)

	b, err := store.Agents().GetBundle(ctx, id)
	if err != nil {
		t.Fatalf("GetBundle() error = %v", err)
	}
	if b.Model == nil || b.Model.Model != agent.DefaultModelName {
		t.Errorf("bundle model = %+v, want default model", b.Model)
	}
	if b.ActivePrompt == nil || !b.ActivePrompt.Active || b.ActivePrompt.Version != 1 {
		t.Errorf("bundle active prompt = %+v, want active v1", b.ActivePrompt)
	}
	if b.Ops == nil || !b.Ops.Markdown {
		t.Errorf("bundle ops = %+v, want default markdown on", b.Ops)
	}
	if b.Memory == nil || b.Memory.HistoryRuns != agent.DefaultHistoryRuns {
		t.Errorf("bundle memory = %+v, want default history runs", b.Memory)
	}
}

func TestAgentStore_OwnershipRejected(t *testing.T) {
	store := openTestStore(t)
	b := &agent.Bundle{
		Agent: &agent.Agent{
			ID: uuid.NewString(), OwnerTenantID: "t1",
			Name: "x", AccessType: agent.AccessGlobal, Status: agent.StatusActive,
		},
		Model:        &agent.ModelConfig{Provider: "openai", Model: "gpt-4o"},
		ActivePrompt: &agent.PromptVersion{ID: uuid.NewString(), Instructions: "x"},
	}
	if err := store.Agents().CreateAgent(context.Background(), b); !errors.Is(err, agent.ErrInvalidOwnership) {
		t.Errorf("CreateAgent() error = %v, want ErrInvalidOwnership", err)
	}
}

func TestAgentStore_SupersedeActivePrompt(t *testing.T) {
	store := openTestStore(t)
	agents := store.Agents()
	ctx := context.Background()

	id := seedBundle(t, store, "t1", agent.AccessPrivate)
	active, err := agents.GetActivePrompt(ctx, id)
	if err != nil {
		t.Fatalf("GetActivePrompt() error = %v", err)
	}

	next := &agent.PromptVersion{ID: uuid.NewString(), Instructions: "v2"}
	if err := agents.SupersedeActivePrompt(ctx, id, active.ID, next); err != nil {
		t.Fatalf("SupersedeActivePrompt() error = %v", err)
	}
	if next.Version != 2 || !next.Active {
		t.Errorf("new version = %d active = %v, want active v2", next.Version, next.Active)
	}

	// Stale expected-active id must conflict, not double-activate.
	stale := &agent.PromptVersion{ID: uuid.NewString(), Instructions: "v3"}
	if err := agents.SupersedeActivePrompt(ctx, id, active.ID, stale); !errors.Is(err, agent.ErrPromptConflict) {
		t.Fatalf("stale supersede error = %v, want ErrPromptConflict", err)
	}

	prompts, err := agents.ListPrompts(ctx, id)
	if err != nil {
		t.Fatalf("ListPrompts() error = %v", err)
	}
	activeCount := 0
	for _, p := range prompts {
		if p.Active {
			activeCount++
		}
	}
	if len(prompts) != 2 || activeCount != 1 {
		t.Errorf("history = %d versions with %d active, want 2 versions / 1 active", len(prompts), activeCount)
	}

	if err := agents.SupersedeActivePrompt(ctx, "missing", active.ID, stale); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("missing agent supersede error = %v, want ErrAgentNotFound", err)
	}
}

func TestAgentStore_SubscriptionsAndListing(t *testing.T) {
	store := openTestStore(t)
	agents := store.Agents()
	ctx := context.Background()

	globalID := seedBundle(t, store, "", agent.AccessGlobal)
	ownedID := seedBundle(t, store, "t1", agent.AccessPrivate)
	seedBundle(t, store, "t2", agent.AccessPrivate)

	market, err := agents.ListMarketplace(ctx)
	if err != nil || len(market) != 1 || market[0].Agent.ID != globalID {
		t.Errorf("ListMarketplace() = %d agents, err = %v, want the global agent", len(market), err)
	}

	if err := agents.Subscribe(ctx, "u1", globalID); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if err := agents.Subscribe(ctx, "u1", globalID); !errors.Is(err, agent.ErrAlreadySubscribed) {
		t.Errorf("duplicate Subscribe() error = %v, want ErrAlreadySubscribed", err)
	}
	if err := agents.Subscribe(ctx, "u1", "missing"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("Subscribe() missing agent error = %v, want ErrAgentNotFound", err)
	}

	accessible, err := agents.ListAccessible(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("ListAccessible() error = %v", err)
	}
	ids := map[string]bool{}
	for _, b := range accessible {
		ids[b.Agent.ID] = true
	}
	if len(accessible) != 2 || !ids[globalID] || !ids[ownedID] {
		t.Errorf("ListAccessible() ids = %v, want owned + subscribed", ids)
	}

	if err := agents.Unsubscribe(ctx, "u1", globalID); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if err := agents.Unsubscribe(ctx, "u1", globalID); !errors.Is(err, agent.ErrSubscriptionNotFound) {
		t.Errorf("repeat Unsubscribe() error = %v, want ErrSubscriptionNotFound", err)
	}
}

func TestAgentStore_DeleteCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	id := seedBundle(t, store, "t1", agent.AccessPrivate)
	if err := store.Agents().Subscribe(ctx, "u1", id); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	sess := &session.Session{
		ID: uuid.NewString(), AgentID: id, UserID: "u1",
		Status: session.StatusPending, CreatedAt: time.Now().UTC(),
	}
	if err := store.Sessions().Create(ctx, sess); err != nil {
		t.Fatalf("Create() session error = %v", err)
	}
	raw := []byte(`{"content":"hi"}`)
	out := &session.Output{
		ID: uuid.NewString(), SessionID: sess.ID, Input: "hello",
		RawResponse: raw, PayloadHash: session.HashPayload(raw),
		CreatedAt: time.Now().UTC(),
	}
	if err := store.Outputs().Create(ctx, out); err != nil {
		t.Fatalf("Create() output error = %v", err)
	}

	if err := store.Agents().Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := store.Agents().GetBundle(ctx, id); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("GetBundle() after delete error = %v, want ErrAgentNotFound", err)
	}
	if _, err := store.Sessions().Get(ctx, sess.ID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("session survived agent delete: %v", err)
	}
	if _, err := store.Outputs().GetBySession(ctx, sess.ID); !errors.Is(err, session.ErrOutputNotFound) {
		t.Errorf("output survived agent delete: %v", err)
	}
	if sub, _ := store.Agents().IsSubscribed(ctx, "u1", id); sub {
		t.Error("subscription survived agent delete")
	}
}

func TestSessionStore_TerminalRowsStayTerminal(t *testing.T) {
	store := openTestStore(t)
	sessions := store.Sessions()
	ctx := context.Background()

	id := seedBundle(t, store, "t1", agent.AccessPrivate)
	sess := &session.Session{
		ID: uuid.NewString(), AgentID: id, UserID: "u1",
		Status: session.StatusPending, CreatedAt: time.Now().UTC(),
	}
	if err := sessions.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := sess.Transition(session.StatusFailed); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := sessions.Update(ctx, sess); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	again := *sess
	again.Status = session.StatusCompleted
	if err := sessions.Update(ctx, &again); !errors.Is(err, session.ErrTerminalSession) {
		t.Errorf("Update() of terminal row error = %v, want ErrTerminalSession", err)
	}
	if err := sessions.Update(ctx, &session.Session{ID: "missing", Status: session.StatusFailed}); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Update() missing error = %v, want ErrSessionNotFound", err)
	}

	got, err := sessions.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != session.StatusFailed || got.FinishedAt.IsZero() {
		t.Errorf("stored session = %+v, want failed with finish time", got)
	}

	list, err := sessions.ListByAgent(ctx, id)
	if err != nil || len(list) != 1 {
		t.Errorf("ListByAgent() = %d sessions, err = %v, want 1", len(list), err)
	}
}
