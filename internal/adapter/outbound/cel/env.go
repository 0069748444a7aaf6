// Package cel provides an embedded CEL-based policy decision point for
// development and tests. It implements the same outbound.DecisionClient port
// as the HTTP adapter, so the rest of the system cannot tell the two apart.
package cel

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// maxExpressionLength is the maximum allowed length for rule conditions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per evaluation.
const maxCostBudget = 100_000

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// NewDecisionEnvironment creates a CEL environment exposing the decision
// request: the principal bag, the resource bag, and the action name.
//
// Rule conditions see:
//   - principal_id: string
//   - principal_roles: list of lowercase role names
//   - principal_attr: map (tenant_id, user_status, tenant_status)
//   - resource_kind, resource_id: string
//   - resource_attr: map (kind-specific, see authz resource builders)
//   - action: string
func NewDecisionEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("principal_id", cel.StringType),
		cel.Variable("principal_roles", cel.ListType(cel.StringType)),
		cel.Variable("principal_attr", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("resource_kind", cel.StringType),
		cel.Variable("resource_id", cel.StringType),
		cel.Variable("resource_attr", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("action", cel.StringType),
	)
}

// compileCondition parses and type-checks a rule condition with runtime
// safety limits.
func compileCondition(env *cel.Env, expression string) (cel.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("condition is empty")
	}
	if len(expression) > maxExpressionLength {
		return nil, fmt.Errorf("condition too long: %d characters (max %d)", len(expression), maxExpressionLength)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}
