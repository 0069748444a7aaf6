package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
)

// validate is the shared request validator for service inputs.
var validate = validator.New()

// CreateTenantInput holds the input for creating a tenant. Every tenant
// starts with a bootstrap admin so it is administrable from the moment it
// exists.
type CreateTenantInput struct {
	Name             string `json:"name" validate:"required"`
	Code             string `json:"code" validate:"required,uppercase"`
	Industry         string `json:"industry"`
	SubscriptionPlan string `json:"subscription_plan"`
	AdminName        string `json:"admin_name" validate:"required"`
	AdminEmail       string `json:"admin_email" validate:"required,email"`
}

// UpdateTenantInput holds the mutable tenant fields. Nil means unchanged.
type UpdateTenantInput struct {
	Name             *string `json:"name,omitempty"`
	Industry         *string `json:"industry,omitempty"`
	SubscriptionPlan *string `json:"subscription_plan,omitempty"`
	Status           *string `json:"status,omitempty" validate:"omitempty,oneof=active suspended"`
}

// TenantService provides tenant administration. Every operation goes
// through the policy decision point; suspending a tenant takes effect on
// its members' next check via the principal's tenant_status attribute.
type TenantService struct {
	tenants tenant.TenantStore
	users   user.UserStore
	authz   *AuthzService
	logger  *slog.Logger
}

// NewTenantService creates a new TenantService.
func NewTenantService(tenants tenant.TenantStore, users user.UserStore, authz *AuthzService, logger *slog.Logger) *TenantService {
	return &TenantService{tenants: tenants, users: users, authz: authz, logger: logger}
}

// Create provisions a new tenant together with its bootstrap TENANT_ADMIN
// profile. Platform operators only. If the admin cannot be created the
// tenant is rolled back so the two never exist apart.
func (s *TenantService) Create(ctx context.Context, principal *authz.Principal, input CreateTenantInput) (*tenant.Tenant, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.authz.Authorize(ctx, principal, authz.TenantCollectionResource(), authz.ActionCreate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &tenant.Tenant{
		ID:               uuid.NewString(),
		Name:             input.Name,
		Code:             input.Code,
		Industry:         input.Industry,
		SubscriptionPlan: input.SubscriptionPlan,
		Status:           tenant.StatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.tenants.Create(ctx, t); err != nil {
		return nil, err
	}

	admin := &user.Profile{
		ID:        uuid.NewString(),
		TenantID:  t.ID,
		FullName:  input.AdminName,
		Email:     input.AdminEmail,
		Role:      user.RoleTenantAdmin,
		Status:    user.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		if delErr := s.tenants.Delete(ctx, t.ID); delErr != nil {
			s.logger.Error("tenant rollback failed", "id", t.ID, "error", delErr)
		}
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	s.logger.Info("tenant created", "id", t.ID, "code", t.Code, "admin", admin.ID, "by", principal.ID)
	return t, nil
}

// List returns all tenants. Platform operators only.
func (s *TenantService) List(ctx context.Context, principal *authz.Principal) ([]*tenant.Tenant, error) {
	if err := s.authz.Authorize(ctx, principal, authz.TenantCollectionResource(), authz.ActionList); err != nil {
		return nil, err
	}
	return s.tenants.List(ctx)
}

// Get returns one tenant. Allowed for platform operators and the tenant's
// own admins.
func (s *TenantService) Get(ctx context.Context, principal *authz.Principal, id string) (*tenant.Tenant, error) {
	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, principal, authz.TenantResource(t, false), authz.ActionUpdate); err != nil {
		return nil, err
	}
	return t, nil
}

// Update applies changes to a tenant. Status changes are restricted to
// platform operators by policy; the other fields are open to the tenant's
// own admins.
func (s *TenantService) Update(ctx context.Context, principal *authz.Principal, id string, input UpdateTenantInput) (*tenant.Tenant, error) {
	if err := validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	t, err := s.tenants.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	action := authz.ActionUpdate
	if input.Status != nil {
		action = authz.ActionUpdateStatus
	}
	if err := s.authz.Authorize(ctx, principal, authz.TenantResource(t, false), action); err != nil {
		return nil, err
	}

	if input.Name != nil {
		t.Name = *input.Name
	}
	if input.Industry != nil {
		t.Industry = *input.Industry
	}
	if input.SubscriptionPlan != nil {
		t.SubscriptionPlan = *input.SubscriptionPlan
	}
	if input.Status != nil {
		t.Status = tenant.Status(*input.Status)
	}
	t.UpdatedAt = time.Now().UTC()

	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, err
	}

	s.logger.Info("tenant updated", "id", t.ID, "by", principal.ID)
	return t, nil
}
