// Package tenant contains the organization isolation boundary types.
package tenant

import "time"

// Status is the lifecycle state of a tenant.
type Status string

const (
	// StatusActive means the tenant can operate normally.
	StatusActive Status = "active"
	// StatusSuspended blocks all tenant activity via policy attributes.
	StatusSuspended Status = "suspended"
)

// Valid reports whether s is a known tenant status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSuspended
}

// Tenant is an organization sharing the platform. Tenants are the isolation
// boundary for PRIVATE agents; GLOBAL agents have no owning tenant.
type Tenant struct {
	// ID is the unique tenant identifier.
	ID string
	// Name is the human-readable tenant name.
	Name string
	// Code is a unique short code (e.g. "TENANT_ALPHA").
	Code string
	// Industry is free-form descriptive metadata.
	Industry string
	// SubscriptionPlan is the billing plan name.
	SubscriptionPlan string
	// Status is active or suspended.
	Status Status
	// CreatedAt is when the tenant was created (UTC).
	CreatedAt time.Time
	// UpdatedAt is when the tenant was last modified (UTC).
	UpdatedAt time.Time
}
