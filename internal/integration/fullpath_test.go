// Package integration provides end-to-end tests that exercise the full
// request path: HTTP routing, bearer-key identity, policy evaluation,
// agent execution and SQLite persistence working together.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	api "github.com/cognefi/agentgate/internal/adapter/inbound/http"
	"github.com/cognefi/agentgate/internal/adapter/outbound/cel"
	"github.com/cognefi/agentgate/internal/adapter/outbound/identity"
	"github.com/cognefi/agentgate/internal/adapter/outbound/llm"
	"github.com/cognefi/agentgate/internal/adapter/outbound/sqlite"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
	"github.com/cognefi/agentgate/internal/service"
)

const (
	rootKey   = "agk_int_root"
	adminKey  = "agk_int_alpha_admin"
	memberKey = "agk_int_alpha_member"
)

// testLogger returns a logger that writes to stderr at error level (quiet tests).
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// gateway is a fully wired server backed by a SQLite file, using the
// built-in policy rules and the simulated model backend.
type gateway struct {
	ts     *httptest.Server
	db     *sqlite.Store
	dbPath string
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	logger := testLogger()

	dbPath := filepath.Join(t.TempDir(), "agentgate.db")
	db, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	tenants := db.Tenants()
	users := db.Users()
	agents := db.Agents()
	sessions := db.Sessions()
	outputs := db.Outputs()

	if err := tenants.Create(ctx, &tenant.Tenant{
		ID: "t-alpha", Name: "Alpha Corp", Code: "ALPHA",
		SubscriptionPlan: "pro", Status: tenant.StatusActive,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	seedUsers := []*user.Profile{
		{ID: "u-root", FullName: "Platform Root", Email: "root@example.com",
			Role: user.RoleSuperAdmin, Status: user.StatusActive},
		{ID: "u-alpha-admin", TenantID: "t-alpha", FullName: "Alpha Admin",
			Email: "admin@alpha.example.com", Role: user.RoleTenantAdmin, Status: user.StatusActive},
		{ID: "u-alpha-member", TenantID: "t-alpha", FullName: "Alpha Member",
			Email: "member@alpha.example.com", Role: user.RoleUser, Status: user.StatusActive},
	}
	for _, p := range seedUsers {
		p.CreatedAt = time.Now().UTC()
		if err := users.Create(ctx, p); err != nil {
			t.Fatalf("seed user %s: %v", p.ID, err)
		}
	}

	dir := identity.NewDirectory()
	dir.SeedKey(rootKey, "u-root")
	dir.SeedKey(adminKey, "u-alpha-admin")
	dir.SeedKey(memberKey, "u-alpha-member")

	decider, err := cel.NewDecider(cel.DefaultRules(), logger)
	if err != nil {
		t.Fatalf("build decider: %v", err)
	}

	authzSvc := service.NewAuthzService(users, tenants, decider, logger)
	handler := api.NewHandler(
		api.WithAuthzService(authzSvc),
		api.WithTenantService(service.NewTenantService(tenants, users, authzSvc, logger)),
		api.WithUserService(service.NewUserService(users, tenants, authzSvc, logger)),
		api.WithAgentService(service.NewAgentService(agents, agents, sessions, authzSvc, logger)),
		api.WithRunnerService(service.NewRunnerService(
			agents, agents, sessions, outputs, llm.NewSimulator(), authzSvc, logger, 5*time.Second)),
		api.WithKeyResolver(dir),
		api.WithHandlerLogger(logger),
	)

	ts := httptest.NewServer(api.RequestIDMiddleware(logger)(handler.Routes()))
	t.Cleanup(ts.Close)

	return &gateway{ts: ts, db: db, dbPath: dbPath}
}

// call issues a request with the given bearer key and decodes the JSON
// response into out when out is non-nil. It returns the status code.
func (g *gateway) call(t *testing.T, method, path, key string, body, out any) int {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(raw)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, g.ts.URL+path, reqBody)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := g.ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (g *gateway) createAgent(t *testing.T, key string, body map[string]any) string {
	t.Helper()
	var created struct {
		ID string `json:"id"`
	}
	if status := g.call(t, http.MethodPost, "/api/v1/agents", key, body, &created); status != http.StatusCreated {
		t.Fatalf("create agent: status = %d, want 201", status)
	}
	return created.ID
}

func TestGatewayRunFullPath(t *testing.T) {
	g := newGateway(t)

	agentID := g.createAgent(t, adminKey, map[string]any{
		"name":         "Alpha Analyst",
		"access_type":  "PRIVATE",
		"instructions": "Answer finance questions for Alpha Corp.",
	})

	// A regular tenant member runs the tenant-owned agent.
	var run struct {
		SessionID string `json:"session_id"`
		Content   string `json:"content"`
	}
	status := g.call(t, http.MethodPost, "/api/v1/agents/"+agentID+"/run", memberKey,
		map[string]any{"message": "hello from integration"}, &run)
	if status != http.StatusOK {
		t.Fatalf("run: status = %d, want 200", status)
	}
	if run.Content != "[Alpha Analyst] hello from integration" {
		t.Errorf("run content = %q, want echo of the input", run.Content)
	}
	if run.SessionID == "" {
		t.Fatal("run returned empty session id")
	}

	// The tenant admin sees the execution history.
	var sessions []struct {
		ID         string `json:"id"`
		UserID     string `json:"user_id"`
		Status     string `json:"status"`
		FinishedAt string `json:"finished_at"`
	}
	status = g.call(t, http.MethodGet, "/api/v1/agents/"+agentID+"/sessions", adminKey, nil, &sessions)
	if status != http.StatusOK {
		t.Fatalf("list sessions: status = %d, want 200", status)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	if sessions[0].Status != "completed" {
		t.Errorf("session status = %q, want completed", sessions[0].Status)
	}
	if sessions[0].FinishedAt == "" {
		t.Error("completed session has no finished_at")
	}
	if sessions[0].UserID != "u-alpha-member" {
		t.Errorf("session user = %q, want u-alpha-member", sessions[0].UserID)
	}

	// Run history is a management view; a plain member is shut out.
	if status := g.call(t, http.MethodGet, "/api/v1/agents/"+agentID+"/sessions", memberKey, nil, nil); status != http.StatusForbidden {
		t.Errorf("member list sessions: status = %d, want 403", status)
	}

	// The session owner reads their own recorded output.
	var out struct {
		SessionID   string `json:"session_id"`
		Input       string `json:"input"`
		RawResponse string `json:"raw_response"`
		PayloadHash string `json:"payload_hash"`
	}
	status = g.call(t, http.MethodGet, "/api/v1/sessions/"+run.SessionID+"/output", memberKey, nil, &out)
	if status != http.StatusOK {
		t.Fatalf("get output: status = %d, want 200", status)
	}
	if out.Input != "hello from integration" {
		t.Errorf("output input = %q, want the original message", out.Input)
	}
	if out.RawResponse == "" || out.PayloadHash == "" || out.PayloadHash == "0" {
		t.Errorf("output not fully recorded: raw=%q hash=%q", out.RawResponse, out.PayloadHash)
	}
}

func TestGatewayMarketplaceFullPath(t *testing.T) {
	g := newGateway(t)

	agentID := g.createAgent(t, rootKey, map[string]any{
		"name":         "Market Analyst",
		"access_type":  "GLOBAL",
		"is_public":    true,
		"instructions": "Summarize market movements.",
	})

	var listing []struct {
		ID string `json:"id"`
	}
	if status := g.call(t, http.MethodGet, "/api/v1/marketplace", memberKey, nil, &listing); status != http.StatusOK {
		t.Fatalf("marketplace: status = %d, want 200", status)
	}
	if len(listing) != 1 || listing[0].ID != agentID {
		t.Fatalf("marketplace listing = %+v, want the one global agent", listing)
	}

	// A global agent is runnable only after subscribing.
	status := g.call(t, http.MethodPost, "/api/v1/agents/"+agentID+"/run", memberKey,
		map[string]any{"message": "hi"}, nil)
	if status != http.StatusForbidden {
		t.Fatalf("run before subscribe: status = %d, want 403", status)
	}

	if status := g.call(t, http.MethodPost, "/api/v1/agents/"+agentID+"/subscribe", memberKey, nil, nil); status != http.StatusCreated {
		t.Fatalf("subscribe: status = %d, want 201", status)
	}

	var run struct {
		Content string `json:"content"`
	}
	status = g.call(t, http.MethodPost, "/api/v1/agents/"+agentID+"/run", memberKey,
		map[string]any{"message": "what moved today"}, &run)
	if status != http.StatusOK {
		t.Fatalf("run after subscribe: status = %d, want 200", status)
	}
	if run.Content != "[Market Analyst] what moved today" {
		t.Errorf("run content = %q", run.Content)
	}

	if status := g.call(t, http.MethodDelete, "/api/v1/agents/"+agentID+"/subscribe", memberKey, nil, nil); status != http.StatusNoContent {
		t.Fatalf("unsubscribe: status = %d, want 204", status)
	}

	// Access ends with the subscription.
	status = g.call(t, http.MethodPost, "/api/v1/agents/"+agentID+"/run", memberKey,
		map[string]any{"message": "hi again"}, nil)
	if status != http.StatusForbidden {
		t.Errorf("run after unsubscribe: status = %d, want 403", status)
	}
}

func TestGatewaySuspendedTenantLockout(t *testing.T) {
	g := newGateway(t)

	// The tenant admin can operate while the tenant is active.
	agentID := g.createAgent(t, adminKey, map[string]any{
		"name":         "Short Lived",
		"access_type":  "PRIVATE",
		"instructions": "Do nothing interesting.",
	})

	status := g.call(t, http.MethodPatch, "/api/v1/tenants/t-alpha", rootKey,
		map[string]any{"status": "suspended"}, nil)
	if status != http.StatusOK {
		t.Fatalf("suspend tenant: status = %d, want 200", status)
	}

	// Every tenant-scoped action is cut off on the next request, with the
	// same generic answer a policy denial gives.
	var denied struct {
		Error string `json:"error"`
	}
	status = g.call(t, http.MethodPost, "/api/v1/agents/"+agentID+"/run", memberKey,
		map[string]any{"message": "hi"}, &denied)
	if status != http.StatusForbidden {
		t.Fatalf("run under suspended tenant: status = %d, want 403", status)
	}
	if denied.Error != "forbidden" {
		t.Errorf("denial body = %q, want generic forbidden", denied.Error)
	}
	if status := g.call(t, http.MethodPost, "/api/v1/agents", adminKey, map[string]any{
		"name": "X", "access_type": "PRIVATE", "instructions": "x",
	}, nil); status != http.StatusForbidden {
		t.Errorf("create under suspended tenant: status = %d, want 403", status)
	}

	// The platform operator still reaches the suspended tenant.
	if status := g.call(t, http.MethodGet, "/api/v1/tenants/t-alpha", rootKey, nil, nil); status != http.StatusOK {
		t.Errorf("operator read of suspended tenant: status = %d, want 200", status)
	}
}

func TestGatewayStateSurvivesRestart(t *testing.T) {
	g := newGateway(t)

	agentID := g.createAgent(t, adminKey, map[string]any{
		"name":         "Durable Agent",
		"access_type":  "PRIVATE",
		"instructions": "Persist across restarts.",
	})
	var run struct {
		SessionID string `json:"session_id"`
	}
	status := g.call(t, http.MethodPost, "/api/v1/agents/"+agentID+"/run", memberKey,
		map[string]any{"message": "remember me"}, &run)
	if status != http.StatusOK {
		t.Fatalf("run: status = %d, want 200", status)
	}

	g.ts.Close()
	if err := g.db.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := sqlite.Open(g.dbPath)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	ctx := context.Background()
	b, err := reopened.Agents().GetBundle(ctx, agentID)
	if err != nil {
		t.Fatalf("agent lost after restart: %v", err)
	}
	if b.ActivePrompt == nil || !b.ActivePrompt.Active {
		t.Error("reopened agent has no active prompt")
	}
	sess, err := reopened.Sessions().Get(ctx, run.SessionID)
	if err != nil {
		t.Fatalf("session lost after restart: %v", err)
	}
	if sess.Status != "completed" {
		t.Errorf("reopened session status = %q, want completed", sess.Status)
	}
	out, err := reopened.Outputs().GetBySession(ctx, run.SessionID)
	if err != nil {
		t.Fatalf("output lost after restart: %v", err)
	}
	if out.Input != "remember me" {
		t.Errorf("reopened output input = %q", out.Input)
	}
}
