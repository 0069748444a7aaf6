package cel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/port/outbound"
)

// evalTimeout bounds a single rule evaluation.
const evalTimeout = 2 * time.Second

// Rule is one ordered decision rule. Rules are evaluated top to bottom; the
// first rule whose kind, actions, and condition all match wins. No match
// means deny.
type Rule struct {
	// Name identifies the rule in logs and decision reasons.
	Name string
	// Kind restricts the rule to one resource kind; empty matches all.
	Kind string
	// Actions restricts the rule to specific actions; empty matches all.
	Actions []string
	// Condition is a CEL expression over the decision request. Empty
	// means the rule matches unconditionally.
	Condition string
	// Allow is the rule's effect when it matches.
	Allow bool
}

type compiledRule struct {
	rule Rule
	prg  cel.Program // nil for unconditional rules
}

// Decider is an embedded policy decision point evaluating ordered CEL rules
// in-process. It implements outbound.DecisionClient so serve can swap it in
// for the HTTP adapter in development mode.
type Decider struct {
	rules  []compiledRule
	logger *slog.Logger
}

// NewDecider compiles the rule set. Compilation failures are configuration
// errors and reported up front, not at decision time.
func NewDecider(rules []Rule, logger *slog.Logger) (*Decider, error) {
	env, err := NewDecisionEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create decision environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{rule: r}
		if r.Condition != "" {
			prg, err := compileCondition(env, r.Condition)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", r.Name, err)
			}
			cr.prg = prg
		}
		compiled = append(compiled, cr)
	}

	return &Decider{rules: compiled, logger: logger}, nil
}

// Check evaluates the rule set against the decision request. Evaluation
// errors fail closed with EffectError, mirroring the HTTP adapter.
func (d *Decider) Check(ctx context.Context, principal *authz.Principal, resource authz.Resource, action string) authz.Decision {
	activation := map[string]any{
		"principal_id":    principal.ID,
		"principal_roles": principal.Roles,
		"principal_attr":  principal.Attr,
		"resource_kind":   resource.Kind,
		"resource_id":     resource.ID,
		"resource_attr":   resource.Attr,
		"action":          action,
	}

	for _, cr := range d.rules {
		if cr.rule.Kind != "" && cr.rule.Kind != resource.Kind {
			continue
		}
		if len(cr.rule.Actions) > 0 && !containsString(cr.rule.Actions, action) {
			continue
		}

		matched := true
		if cr.prg != nil {
			var err error
			matched, err = d.evaluate(ctx, cr.prg, activation)
			if err != nil {
				d.logger.Warn("policy rule evaluation failed, failing closed",
					"rule", cr.rule.Name, "action", action, "error", err)
				return authz.Error(fmt.Sprintf("rule %q: %v", cr.rule.Name, err))
			}
		}
		if !matched {
			continue
		}

		if cr.rule.Allow {
			return authz.Allow()
		}
		return authz.Deny(fmt.Sprintf("denied by rule %q", cr.rule.Name))
	}

	return authz.Deny("no rule matched")
}

// evaluate runs one compiled condition with a bounded timeout.
func (d *Decider) evaluate(ctx context.Context, prg cel.Program, activation map[string]any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}

	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition did not return a boolean, got %T", result.Value())
	}
	return b, nil
}

// Close implements outbound.DecisionClient. Nothing to release.
func (d *Decider) Close() error { return nil }

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// DefaultRules is the built-in rule set used in development mode when no
// rules are configured. It mirrors the production policy: lifecycle gates
// first, then platform operators, then tenant-scoped grants. Order matters.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "deny-inactive-user",
			Condition: `principal_attr["user_status"] != "active"`,
			Allow:     false,
		},
		{
			Name:      "deny-suspended-tenant",
			Condition: `!(principal_attr["tenant_status"] in ["", "active"])`,
			Allow:     false,
		},
		{
			Name:      "super-admin-all",
			Condition: `"super_admin" in principal_roles`,
			Allow:     true,
		},
		{
			Name:    "agent-browse",
			Kind:    "agent",
			Actions: []string{"list_marketplace", "list_my_agents"},
			Allow:   true,
		},
		{
			Name:      "agent-subscribe-global",
			Kind:      "agent",
			Actions:   []string{"subscribe", "unsubscribe"},
			Condition: `resource_attr["is_global"] == true`,
			Allow:     true,
		},
		{
			Name:    "agent-run",
			Kind:    "agent",
			Actions: []string{"run"},
			Condition: `resource_attr["is_subscribed"] == true ` +
				`|| (resource_attr["owner_tenant_id"] != null && resource_attr["owner_tenant_id"] == resource_attr["tenant_id"])`,
			Allow: true,
		},
		{
			Name:    "agent-manage-own-tenant",
			Kind:    "agent",
			Actions: []string{"create", "update", "delete"},
			Condition: `"tenant_admin" in principal_roles ` +
				`&& resource_attr["owner_tenant_id"] != null ` +
				`&& resource_attr["owner_tenant_id"] == principal_attr["tenant_id"]`,
			Allow: true,
		},
		{
			Name:      "tenant-self-update",
			Kind:      "tenant",
			Actions:   []string{"update"},
			Condition: `"tenant_admin" in principal_roles && resource_id == principal_attr["tenant_id"]`,
			Allow:     true,
		},
		{
			Name: "user-manage-own-tenant",
			Kind: "user",
			Condition: `"tenant_admin" in principal_roles ` +
				`&& resource_attr["tenant_id"] == principal_attr["tenant_id"] ` +
				`&& resource_attr["is_super_admin"] != true`,
			Allow: true,
		},
		{
			Name:      "user-self-read",
			Kind:      "user",
			Actions:   []string{"list"},
			Condition: `resource_attr["is_self"] == true`,
			Allow:     true,
		},
	}
}

// Compile-time interface verification.
var _ outbound.DecisionClient = (*Decider)(nil)
