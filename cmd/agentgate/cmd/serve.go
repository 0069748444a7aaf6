package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/cognefi/agentgate/internal/adapter/inbound/http"
	"github.com/cognefi/agentgate/internal/adapter/outbound/audit"
	"github.com/cognefi/agentgate/internal/adapter/outbound/cel"
	"github.com/cognefi/agentgate/internal/adapter/outbound/identity"
	"github.com/cognefi/agentgate/internal/adapter/outbound/llm"
	"github.com/cognefi/agentgate/internal/adapter/outbound/memory"
	"github.com/cognefi/agentgate/internal/adapter/outbound/pdp"
	"github.com/cognefi/agentgate/internal/adapter/outbound/sqlite"
	"github.com/cognefi/agentgate/internal/config"
	"github.com/cognefi/agentgate/internal/domain/agent"
	"github.com/cognefi/agentgate/internal/domain/session"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
	"github.com/cognefi/agentgate/internal/port/outbound"
	"github.com/cognefi/agentgate/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the agentgate API server.

The server exposes tenant, user, and agent administration plus the agent
execution gate over a JSON API. Every operation is authorized through the
configured policy decision point before it touches data.

Examples:
  # Start with config file settings
  agentgate serve

  # Start in development mode (in-memory store, embedded decision rules,
  # simulated model provider, X-User-Id identity shortcut)
  agentgate serve --dev

  # Start with a specific config file
  agentgate --config /path/to/config.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (in-memory backends, verbose logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration without validation so the CLI flag can override
	// dev mode before dev defaults are applied.
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}
	if cfg.DevMode {
		logger.Warn("development mode enabled: in-memory defaults and X-User-Id identity are active")
	}

	return run(ctx, cfg, logger)
}

// shutdownTimeout bounds cleanup of the telemetry providers on exit.
const shutdownTimeout = 5 * time.Second

// run wires all components together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing, err := initTracing()
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer shutdownTracing()

	shutdownMetrics, err := initMetrics()
	if err != nil {
		return fmt.Errorf("failed to init metrics: %w", err)
	}
	defer shutdownMetrics()

	stores, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = stores.close() }()

	decisions, err := newDecisionClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = decisions.Close() }()

	hydrator := newHydrator(cfg, logger)

	keys := identity.NewDirectory()
	for _, k := range cfg.Auth.APIKeys {
		keys.SeedKey(k.Key, k.UserID)
	}
	logger.Debug("seeded api keys", "count", len(cfg.Auth.APIKeys))

	authzSvc := service.NewAuthzService(stores.users, stores.tenants, decisions, logger)
	if cfg.Audit.Dir != "" {
		trail, err := audit.NewFileTrail(audit.TrailConfig{
			Dir:           cfg.Audit.Dir,
			RetentionDays: cfg.Audit.RetentionDays,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to open decision trail: %w", err)
		}
		defer func() {
			_ = trail.Flush(context.Background())
			_ = trail.Close()
		}()
		authzSvc.SetTrail(trail)
		logger.Info("decision trail enabled", "dir", cfg.Audit.Dir)
	}

	handler := http.NewHandler(
		http.WithAuthzService(authzSvc),
		http.WithTenantService(service.NewTenantService(stores.tenants, stores.users, authzSvc, logger)),
		http.WithUserService(service.NewUserService(stores.users, stores.tenants, authzSvc, logger)),
		http.WithAgentService(service.NewAgentService(stores.agents, stores.subs, stores.sessions, authzSvc, logger)),
		http.WithRunnerService(service.NewRunnerService(
			stores.agents, stores.subs, stores.sessions, stores.outputs,
			hydrator, authzSvc, logger, cfg.RunTimeout(),
		)),
		http.WithKeyResolver(keys),
		http.WithHandlerLogger(logger),
		http.WithHeaderIdentity(cfg.DevMode),
	)

	server := http.NewServer(handler,
		http.WithAddr(cfg.Server.HTTPAddr),
		http.WithLogger(logger),
		http.WithHealthChecker(http.NewHealthChecker(stores.health, Version)),
	)

	logger.Info("agentgate starting",
		"addr", cfg.Server.HTTPAddr,
		"store", cfg.Store.Backend,
		"decision", cfg.Decision.Mode,
		"hydrator", cfg.Hydrator.Mode,
	)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("agentgate stopped")
	return nil
}

// stores bundles the persistence ports behind one backend choice.
type stores struct {
	tenants  tenant.TenantStore
	users    user.UserStore
	agents   agent.AgentStore
	subs     agent.SubscriptionStore
	sessions session.SessionStore
	outputs  session.OutputStore
	health   http.Pinger
	close    func() error
}

// openStores builds the persistence layer for the configured backend.
func openStores(cfg *config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store.Backend {
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		logger.Info("sqlite store opened", "path", cfg.Store.Path)
		agents := db.Agents()
		return &stores{
			tenants:  db.Tenants(),
			users:    db.Users(),
			agents:   agents,
			subs:     agents,
			sessions: db.Sessions(),
			outputs:  db.Outputs(),
			health:   db,
			close:    db.Close,
		}, nil
	case config.StoreMemory:
		agents := memory.NewAgentStore()
		sessions := memory.NewSessionStore()
		return &stores{
			tenants:  memory.NewTenantStore(),
			users:    memory.NewUserStore(),
			agents:   agents,
			subs:     agents,
			sessions: sessions,
			outputs:  sessions.Outputs(),
			close:    func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newDecisionClient builds the policy decision point client.
func newDecisionClient(cfg *config.Config, logger *slog.Logger) (outbound.DecisionClient, error) {
	switch cfg.Decision.Mode {
	case config.DecisionHTTP:
		return pdp.NewHTTPClient(cfg.Decision.Endpoint, logger,
			pdp.WithTimeout(cfg.DecisionTimeout()),
		), nil
	case config.DecisionEmbedded:
		rules := cel.DefaultRules()
		if len(cfg.Decision.Rules) > 0 {
			rules = rulesFromConfig(cfg.Decision.Rules)
		}
		decider, err := cel.NewDecider(rules, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to compile decision rules: %w", err)
		}
		return decider, nil
	default:
		return nil, fmt.Errorf("unknown decision mode %q", cfg.Decision.Mode)
	}
}

// rulesFromConfig converts configured rules into compiled decider input.
func rulesFromConfig(rcs []config.RuleConfig) []cel.Rule {
	rules := make([]cel.Rule, 0, len(rcs))
	for _, rc := range rcs {
		rules = append(rules, cel.Rule{
			Name:      rc.Name,
			Kind:      rc.Kind,
			Actions:   rc.Actions,
			Condition: rc.Condition,
			Allow:     rc.Allow,
		})
	}
	return rules
}

// newHydrator builds the model provider adapter.
func newHydrator(cfg *config.Config, logger *slog.Logger) outbound.Hydrator {
	if cfg.Hydrator.Mode == config.HydratorSimulator {
		logger.Info("using simulated model provider")
		return llm.NewSimulator()
	}
	return llm.NewClient(cfg.Hydrator.BaseURL, cfg.Hydrator.APIKey,
		llm.WithTimeout(cfg.HydratorTimeout()),
	)
}

// initTracing installs a stdout span exporter and returns its shutdown hook.
func initTracing() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}, nil
}

// initMetrics installs a stdout metric exporter and returns its shutdown
// hook. Decision-path instruments (see the pdp adapter) publish through it.
func initMetrics() (func(), error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
	if err != nil {
		return nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(mp)
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mp.Shutdown(shutdownCtx)
	}, nil
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
