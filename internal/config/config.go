// Package config provides configuration types and loading for agentgate.
//
// Configuration is file-based (agentgate.yaml) with environment variable
// overrides under the AGENTGATE_ prefix. Dev mode swaps every external
// dependency for an in-process stand-in: memory store, embedded decision
// rules, simulated model provider.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Decision modes.
const (
	DecisionHTTP     = "http"
	DecisionEmbedded = "embedded"
)

// Hydrator modes.
const (
	HydratorOpenAI    = "openai"
	HydratorSimulator = "simulator"
)

// Config is the top-level configuration for agentgate.
type Config struct {
	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Store configures persistence.
	Store StoreConfig `yaml:"store" mapstructure:"store"`

	// Decision configures the policy decision point.
	Decision DecisionConfig `yaml:"decision" mapstructure:"decision"`

	// Hydrator configures the model provider backing agent execution.
	Hydrator HydratorConfig `yaml:"hydrator" mapstructure:"hydrator"`

	// Audit configures the authorization decision trail. An empty Dir
	// disables recording.
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Auth configures API keys seeded from configuration.
	// Optional: requests may also authenticate with the X-User-Id header
	// when dev mode is on.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// DevMode enables development defaults (verbose logging, embedded
	// decision rules, simulated provider, memory store).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server listener.
type ServerConfig struct {
	// HTTPAddr is the listen address (host:port).
	// Default: "127.0.0.1:8085".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel controls slog verbosity.
	// Default: "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// RunTimeout bounds one agent execution end to end (e.g. "90s").
	// Default: "90s".
	RunTimeout string `yaml:"run_timeout" mapstructure:"run_timeout" validate:"omitempty,duration"`
}

// StoreConfig configures persistence.
type StoreConfig struct {
	// Backend selects the store implementation.
	// Default: "sqlite" ("memory" in dev mode).
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory sqlite"`

	// Path is the sqlite database file. Required for the sqlite backend.
	Path string `yaml:"path" mapstructure:"path"`
}

// DecisionConfig configures the policy decision point.
type DecisionConfig struct {
	// Mode selects the decision transport: "http" submits checks to an
	// external PDP, "embedded" evaluates CEL rules in-process.
	// Default: "http" ("embedded" in dev mode).
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=http embedded"`

	// Endpoint is the PDP base URL. Required in http mode.
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,url"`

	// Timeout bounds one policy check (e.g. "2s").
	// Default: "2s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`

	// Rules are the embedded-mode decision rules, evaluated in order.
	// Empty means the built-in default rule set.
	Rules []RuleConfig `yaml:"rules" mapstructure:"rules" validate:"omitempty,dive"`
}

// RuleConfig is one embedded decision rule.
type RuleConfig struct {
	// Name identifies the rule in logs and decision reasons.
	Name string `yaml:"name" mapstructure:"name" validate:"required"`
	// Kind restricts the rule to one resource kind; empty matches all.
	Kind string `yaml:"kind" mapstructure:"kind"`
	// Actions restricts the rule to specific actions; empty matches all.
	Actions []string `yaml:"actions" mapstructure:"actions"`
	// Condition is a CEL expression; empty matches unconditionally.
	Condition string `yaml:"condition" mapstructure:"condition"`
	// Allow is the rule's effect when it matches.
	Allow bool `yaml:"allow" mapstructure:"allow"`
}

// HydratorConfig configures the model provider.
type HydratorConfig struct {
	// Mode selects the provider adapter: "openai" for an OpenAI-compatible
	// endpoint, "simulator" for the offline stand-in.
	// Default: "openai" ("simulator" in dev mode).
	Mode string `yaml:"mode" mapstructure:"mode" validate:"omitempty,oneof=openai simulator"`

	// BaseURL is the provider base URL. Required in openai mode.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Timeout bounds one provider call (e.g. "60s").
	// Default: "60s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
}

// AuditConfig configures the decision trail.
type AuditConfig struct {
	// Dir is the directory for trail files. Empty disables the trail.
	Dir string `yaml:"dir" mapstructure:"dir"`

	// RetentionDays is how long trail files are kept.
	// Default: 30.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,gte=1"`
}

// AuthConfig configures seeded API keys.
type AuthConfig struct {
	// APIKeys maps raw keys to user ids. Keys configured here are hashed
	// at load; prefer issued keys outside of dev and demo setups.
	APIKeys []APIKeyConfig `yaml:"api_keys" mapstructure:"api_keys" validate:"omitempty,dive"`
}

// APIKeyConfig is one seeded API key.
type APIKeyConfig struct {
	// Key is the raw key material.
	Key string `yaml:"key" mapstructure:"key" validate:"required"`
	// UserID is the account the key resolves to.
	UserID string `yaml:"user_id" mapstructure:"user_id" validate:"required"`
}

// SetDefaults applies default values for optional fields.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8085"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.RunTimeout == "" {
		c.Server.RunTimeout = "90s"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = StoreSQLite
	}
	if c.Store.Backend == StoreSQLite && c.Store.Path == "" {
		c.Store.Path = "agentgate.db"
	}
	if c.Decision.Mode == "" {
		c.Decision.Mode = DecisionHTTP
	}
	if c.Decision.Timeout == "" {
		c.Decision.Timeout = "2s"
	}
	if c.Hydrator.Mode == "" {
		c.Hydrator.Mode = HydratorOpenAI
	}
	if c.Hydrator.Timeout == "" {
		c.Hydrator.Timeout = "60s"
	}
}

// SetDevDefaults applies permissive defaults when dev mode is on. Call
// after flag overrides, before Validate.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if !viper.IsSet("store.backend") {
		c.Store.Backend = StoreMemory
	}
	if !viper.IsSet("decision.mode") {
		c.Decision.Mode = DecisionEmbedded
	}
	if !viper.IsSet("hydrator.mode") {
		c.Hydrator.Mode = HydratorSimulator
	}
	if !viper.IsSet("server.log_level") {
		c.Server.LogLevel = "debug"
	}
}

// RunTimeout returns the parsed execution timeout.
func (c *Config) RunTimeout() time.Duration {
	return parseDuration(c.Server.RunTimeout, 90*time.Second)
}

// DecisionTimeout returns the parsed policy check timeout.
func (c *Config) DecisionTimeout() time.Duration {
	return parseDuration(c.Decision.Timeout, 2*time.Second)
}

// HydratorTimeout returns the parsed provider call timeout.
func (c *Config) HydratorTimeout() time.Duration {
	return parseDuration(c.Hydrator.Timeout, 60*time.Second)
}

// parseDuration parses s, falling back to def. Validation has already
// rejected malformed values; the fallback covers empty strings.
func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
