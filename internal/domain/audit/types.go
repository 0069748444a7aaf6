// Package audit contains domain types for the authorization decision trail.
package audit

import "time"

// Record is one authorization decision as it was enforced. Records are
// append-only; the trail is the ground truth for "who was allowed to do
// what, when" across tenants.
type Record struct {
	// Timestamp is when the check was evaluated (UTC).
	Timestamp time.Time `json:"ts"`
	// RequestID correlates the record with request logs.
	RequestID string `json:"request_id,omitempty"`
	// PrincipalID is the acting user.
	PrincipalID string `json:"principal_id"`
	// TenantID is the acting user's tenant, empty for platform actors.
	TenantID string `json:"tenant_id,omitempty"`
	// ResourceKind is the target kind ("agent", "tenant", "user").
	ResourceKind string `json:"resource_kind"`
	// ResourceID is the target entity, empty for collection-level checks.
	ResourceID string `json:"resource_id,omitempty"`
	// Action is the attempted operation.
	Action string `json:"action"`
	// Effect is the enforced verdict: "allow", "deny", or "error".
	// An "error" effect was enforced as a denial.
	Effect string `json:"effect"`
	// Reason explains the verdict.
	Reason string `json:"reason,omitempty"`
	// LatencyMicros is the decision-point latency in microseconds.
	LatencyMicros int64 `json:"latency_us"`
}
