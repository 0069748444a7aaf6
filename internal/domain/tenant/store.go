package tenant

import (
	"context"
	"errors"
)

// ErrTenantNotFound is returned when a tenant doesn't exist.
var ErrTenantNotFound = errors.New("tenant not found")

// ErrDuplicateCode is returned when a tenant code is already taken.
var ErrDuplicateCode = errors.New("tenant code already exists")

// TenantStore provides tenant persistence.
// Implementations: sqlite (prod), in-memory (dev/test).
type TenantStore interface {
	// Create stores a new tenant.
	// Returns ErrDuplicateCode if the code is already taken.
	Create(ctx context.Context, t *Tenant) error

	// Get retrieves a tenant by ID.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Get(ctx context.Context, id string) (*Tenant, error)

	// GetByCode retrieves a tenant by its unique code.
	GetByCode(ctx context.Context, code string) (*Tenant, error)

	// List returns all tenants.
	List(ctx context.Context) ([]*Tenant, error)

	// Update saves changes to an existing tenant.
	Update(ctx context.Context, t *Tenant) error

	// Delete removes a tenant.
	// Returns ErrTenantNotFound if the tenant doesn't exist.
	Delete(ctx context.Context, id string) error
}
