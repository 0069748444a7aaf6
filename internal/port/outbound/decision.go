// Package outbound defines the outbound port interfaces: the policy
// decision point and the agent hydrator.
package outbound

import (
	"context"

	"github.com/cognefi/agentgate/internal/domain/authz"
)

// DecisionClient is the outbound port to the policy decision point.
// Adapters implement this over different transports (HTTP PDP, embedded CEL).
//
// Implementations must be safe for concurrent use, hold one shared reusable
// connection (no per-call setup), and apply a bounded timeout per check.
// They never return authz.EffectAllow on any transport or protocol failure;
// such failures yield authz.EffectError, which callers fold into a denial.
type DecisionClient interface {
	// Check asks the decision point whether principal may perform action
	// on resource. The returned error is non-nil only for programming
	// errors (nil principal); operational failures are reported through
	// Decision.Effect = EffectError so the fail-closed fold stays visible
	// at the call site.
	Check(ctx context.Context, principal *authz.Principal, resource authz.Resource, action string) authz.Decision

	// Close releases the shared connection.
	Close() error
}
