package user

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned when a user profile doesn't exist.
var ErrUserNotFound = errors.New("user not found")

// ErrDuplicateEmail is returned when an email is already registered.
var ErrDuplicateEmail = errors.New("email already exists")

// UserStore provides user profile persistence.
type UserStore interface {
	// Create stores a new profile.
	// Returns ErrDuplicateEmail if the email is already registered.
	Create(ctx context.Context, p *Profile) error

	// Get retrieves a profile by user ID.
	// Returns ErrUserNotFound if the profile doesn't exist.
	Get(ctx context.Context, id string) (*Profile, error)

	// GetByEmail retrieves a profile by email.
	GetByEmail(ctx context.Context, email string) (*Profile, error)

	// List returns profiles, optionally filtered by tenant.
	// An empty tenantID returns all profiles.
	List(ctx context.Context, tenantID string) ([]*Profile, error)

	// Update saves changes to an existing profile.
	Update(ctx context.Context, p *Profile) error
}
