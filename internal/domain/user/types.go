// Package user contains user profile types for identity resolution.
package user

import (
	"strings"
	"time"
)

// Role is a platform role assigned to a user profile.
type Role string

const (
	// RoleSuperAdmin is the platform-level operator role. Super admins have
	// no owning tenant and may manage GLOBAL agents.
	RoleSuperAdmin Role = "SUPER_ADMIN"
	// RoleTenantAdmin administers users and agents within one tenant.
	RoleTenantAdmin Role = "TENANT_ADMIN"
	// RoleUser is a regular tenant member.
	RoleUser Role = "USER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleSuperAdmin || r == RoleTenantAdmin || r == RoleUser
}

// PolicyName returns the lowercase role name submitted to the policy
// decision point (e.g. "tenant_admin").
func (r Role) PolicyName() string {
	return strings.ToLower(string(r))
}

// Status is the account lifecycle state of a user.
type Status string

const (
	// StatusActive means the account may act.
	StatusActive Status = "active"
	// StatusDisabled blocks the account via policy attributes.
	StatusDisabled Status = "disabled"
	// StatusPending means the account has not completed onboarding.
	StatusPending Status = "pending"
)

// Valid reports whether s is a known user status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusDisabled || s == StatusPending
}

// Profile is a stored user account. TenantID is empty for platform-level
// actors (super admins), which belong to no tenant.
type Profile struct {
	// ID is the unique user identifier.
	ID string
	// TenantID is the owning tenant, empty for platform-level actors.
	TenantID string
	// FullName is the display name.
	FullName string
	// Email is unique across the platform.
	Email string
	// Role is the assigned platform role.
	Role Role
	// Status is the account lifecycle state.
	Status Status
	// CreatedAt is when the profile was created (UTC).
	CreatedAt time.Time
	// UpdatedAt is when the profile was last modified (UTC).
	UpdatedAt time.Time
}
