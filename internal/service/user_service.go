package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
)

// CreateUserInput holds the input for creating a user profile.
type CreateUserInput struct {
	TenantID string `json:"tenant_id"`
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,oneof=SUPER_ADMIN TENANT_ADMIN USER"`
}

// UpdateUserInput holds the mutable profile fields. Nil means unchanged.
type UpdateUserInput struct {
	FullName *string `json:"full_name,omitempty"`
	Role     *string `json:"role,omitempty" validate:"omitempty,oneof=SUPER_ADMIN TENANT_ADMIN USER"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=active disabled pending"`
}

// UserService provides user profile administration.
type UserService struct {
	users   user.UserStore
	tenants tenant.TenantStore
	authz   *AuthzService
	logger  *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(users user.UserStore, tenants tenant.TenantStore, authz *AuthzService, logger *slog.Logger) *UserService {
	return &UserService{users: users, tenants: tenants, authz: authz, logger: logger}
}

// Create registers a new profile inside a tenant. Tenant admins may only
// create within their own tenant; SUPER_ADMIN profiles (which belong to no
// tenant) require a platform operator.
func (s *UserService) Create(ctx context.Context, principal *authz.Principal, input CreateUserInput) (*user.Profile, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	role := user.Role(input.Role)
	if role == user.RoleSuperAdmin && input.TenantID != "" {
		return nil, fmt.Errorf("%w: super admins belong to no tenant", ErrInvalidInput)
	}
	if role != user.RoleSuperAdmin && input.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", ErrInvalidInput)
	}
	res := authz.UserResource("new", input.TenantID, principal.ID, role == user.RoleSuperAdmin)
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionCreate); err != nil {
		return nil, err
	}
	if input.TenantID != "" {
		if _, err := s.tenants.Get(ctx, input.TenantID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	p := &user.Profile{
		ID:        uuid.NewString(),
		TenantID:  input.TenantID,
		FullName:  input.FullName,
		Email:     input.Email,
		Role:      role,
		Status:    user.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "id", p.ID, "tenant", p.TenantID, "role", p.Role, "by", principal.ID)
	return p, nil
}

// Get returns one profile, visible to the user themselves, their tenant's
// admins, and platform operators.
func (s *UserService) Get(ctx context.Context, principal *authz.Principal, id string) (*user.Profile, error) {
	p, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res := authz.UserResource(p.ID, p.TenantID, principal.ID, p.Role == user.RoleSuperAdmin)
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionList); err != nil {
		return nil, err
	}
	return p, nil
}

// Me returns the acting principal's own profile without a policy check;
// identity resolution already proved the profile exists.
func (s *UserService) Me(ctx context.Context, principal *authz.Principal) (*user.Profile, error) {
	return s.users.Get(ctx, principal.ID)
}

// List returns the profiles of one tenant.
func (s *UserService) List(ctx context.Context, principal *authz.Principal, tenantID string) ([]*user.Profile, error) {
	res := authz.UserResource("all", tenantID, principal.ID, false)
	if err := s.authz.Authorize(ctx, principal, res, authz.ActionList); err != nil {
		return nil, err
	}
	return s.users.List(ctx, tenantID)
}

// Update applies profile changes. Role and status changes each run under
// their own action so policy can restrict them more tightly than name edits.
func (s *UserService) Update(ctx context.Context, principal *authz.Principal, id string, input UpdateUserInput) (*user.Profile, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	p, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var actions []string
	if input.FullName != nil {
		actions = append(actions, authz.ActionUpdate)
	}
	if input.Role != nil {
		actions = append(actions, authz.ActionUpdateRole)
	}
	if input.Status != nil {
		actions = append(actions, authz.ActionUpdateStatus)
	}
	if len(actions) == 0 {
		actions = []string{authz.ActionUpdate}
	}
	res := authz.UserResource(p.ID, p.TenantID, principal.ID, p.Role == user.RoleSuperAdmin)
	for _, action := range actions {
		if err := s.authz.Authorize(ctx, principal, res, action); err != nil {
			return nil, err
		}
	}

	if input.FullName != nil {
		p.FullName = *input.FullName
	}
	if input.Role != nil {
		p.Role = user.Role(*input.Role)
	}
	if input.Status != nil {
		p.Status = user.Status(*input.Status)
	}
	p.UpdatedAt = time.Now().UTC()

	if err := s.users.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", "id", p.ID, "by", principal.ID)
	return p, nil
}
