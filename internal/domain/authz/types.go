// Package authz contains the policy-evaluable principal and resource types
// and the pure builders that produce them. The actual decision is made by an
// external policy decision point; nothing in this package embeds a business
// rule.
package authz

import "errors"

// Authorization errors surfaced to inbound adapters.
var (
	// ErrUnauthenticated is returned when no profile matches the identity.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned for every authorization failure: explicit
	// policy deny, decision-point error, or ownership/subscription miss.
	ErrForbidden = errors.New("forbidden")
)

// Effect is the three-valued outcome of a policy check.
//
// EffectError is distinct from EffectDeny so callers can observe why a check
// failed, but control flow must treat both as a denial (fail-closed).
type Effect int

const (
	// EffectDeny is an explicit policy denial.
	EffectDeny Effect = iota
	// EffectAllow permits the action.
	EffectAllow
	// EffectError means the decision point could not produce a verdict
	// (transport error, timeout, malformed response). Treated as deny.
	EffectError
)

// String returns the effect name for logs and metrics labels.
func (e Effect) String() string {
	switch e {
	case EffectAllow:
		return "allow"
	case EffectDeny:
		return "deny"
	default:
		return "error"
	}
}

// Decision is the result of one policy check.
type Decision struct {
	// Effect is the verdict. Only EffectAllow permits the action.
	Effect Effect
	// Reason explains the verdict for logs and audit.
	Reason string
}

// Allowed reports whether the decision permits the action.
func (d Decision) Allowed() bool {
	return d.Effect == EffectAllow
}

// Deny returns an explicit denial with the given reason.
func Deny(reason string) Decision {
	return Decision{Effect: EffectDeny, Reason: reason}
}

// Allow returns a permitting decision.
func Allow() Decision {
	return Decision{Effect: EffectAllow}
}

// Error returns a fail-closed decision for an unavailable or malformed
// decision path.
func Error(reason string) Decision {
	return Decision{Effect: EffectError, Reason: reason}
}

// Principal is the authenticated actor attribute bag submitted to the
// decision point. Built per request from the stored user profile.
type Principal struct {
	// ID is the user identifier.
	ID string `json:"id"`
	// Roles are lowercase role names (e.g. "tenant_admin").
	Roles []string `json:"roles"`
	// Attr carries tenant_id, user_status, and tenant_status. Lifecycle
	// enforcement happens in policy, not here.
	Attr map[string]any `json:"attr"`
}

// TenantID returns the principal's tenant id attribute, empty for
// platform-level actors.
func (p *Principal) TenantID() string {
	if v, ok := p.Attr["tenant_id"].(string); ok {
		return v
	}
	return ""
}

// HasRole reports whether the principal carries the given lowercase role.
func (p *Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Resource is the target entity attribute bag submitted to the decision
// point.
type Resource struct {
	// Kind is the resource kind ("agent", "tenant", "user").
	Kind string `json:"kind"`
	// ID is the target entity identifier.
	ID string `json:"id"`
	// Attr carries kind-specific attributes; see the builders.
	Attr map[string]any `json:"attr"`
}
