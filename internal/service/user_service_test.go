package service

import (
	"context"
	"errors"
	"testing"

	"github.com/cognefi/agentgate/internal/domain/authz"
	"github.com/cognefi/agentgate/internal/domain/tenant"
	"github.com/cognefi/agentgate/internal/domain/user"
)

func TestUserService_Create(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	admin := f.seedUser(t, tn.ID, user.RoleTenantAdmin)
	svc := NewUserService(f.users, f.tenants, f.authz, testLogger())
	p := f.principal(t, admin)
	ctx := context.Background()

	created, err := svc.Create(ctx, p, CreateUserInput{
		TenantID: tn.ID,
		FullName: "New Member",
		Email:    "member@example.com",
		Role:     "USER",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != user.StatusActive || created.TenantID != tn.ID {
		t.Errorf("created = %+v", created)
	}

	tests := []struct {
		name  string
		input CreateUserInput
	}{
		{name: "bad email", input: CreateUserInput{TenantID: tn.ID, FullName: "X", Email: "nope", Role: "USER"}},
		{name: "bad role", input: CreateUserInput{TenantID: tn.ID, FullName: "X", Email: "x@example.com", Role: "OWNER"}},
		{name: "tenant-less member", input: CreateUserInput{FullName: "X", Email: "y@example.com", Role: "USER"}},
		{name: "super admin with tenant", input: CreateUserInput{TenantID: tn.ID, FullName: "X", Email: "z@example.com", Role: "SUPER_ADMIN"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, p, tt.input); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Create() error = %v, want ErrInvalidInput", err)
			}
		})
	}

	if _, err := svc.Create(ctx, p, CreateUserInput{
		TenantID: tn.ID, FullName: "Dup", Email: "member@example.com", Role: "USER",
	}); !errors.Is(err, user.ErrDuplicateEmail) {
		t.Errorf("duplicate Create() error = %v, want ErrDuplicateEmail", err)
	}
}

func TestUserService_UpdateRoleUsesStricterAction(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	admin := f.seedUser(t, tn.ID, user.RoleTenantAdmin)
	member := f.seedUser(t, tn.ID, user.RoleUser)
	svc := NewUserService(f.users, f.tenants, f.authz, testLogger())
	p := f.principal(t, admin)
	ctx := context.Background()

	name := "Renamed"
	if _, err := svc.Update(ctx, p, member.ID, UpdateUserInput{FullName: &name}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	role := "TENANT_ADMIN"
	updated, err := svc.Update(ctx, p, member.ID, UpdateUserInput{Role: &role})
	if err != nil {
		t.Fatalf("Update() role error = %v", err)
	}
	if updated.Role != user.RoleTenantAdmin {
		t.Errorf("role = %v, want TENANT_ADMIN", updated.Role)
	}

	actions := f.decisions.calls
	if len(actions) != 2 || actions[0] != authz.ActionUpdate || actions[1] != authz.ActionUpdateRole {
		t.Errorf("checked actions = %v, want [update update_role]", actions)
	}
}

func TestUserService_UpdateStatusUsesStricterAction(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	admin := f.seedUser(t, tn.ID, user.RoleTenantAdmin)
	member := f.seedUser(t, tn.ID, user.RoleUser)
	svc := NewUserService(f.users, f.tenants, f.authz, testLogger())
	p := f.principal(t, admin)
	ctx := context.Background()

	status := "disabled"
	updated, err := svc.Update(ctx, p, member.ID, UpdateUserInput{Status: &status})
	if err != nil {
		t.Fatalf("Update() status error = %v", err)
	}
	if updated.Status != user.StatusDisabled {
		t.Errorf("status = %v, want disabled", updated.Status)
	}
	actions := f.decisions.calls
	if len(actions) != 1 || actions[0] != authz.ActionUpdateStatus {
		t.Errorf("checked actions = %v, want [update_status]", actions)
	}
}

func TestUserService_UpdateStatusDeniedEvenWhenUpdateAllowed(t *testing.T) {
	f := newFixture(denyActions(authz.ActionUpdateStatus))
	tn := f.seedTenant(t, "ALPHA")
	admin := f.seedUser(t, tn.ID, user.RoleTenantAdmin)
	member := f.seedUser(t, tn.ID, user.RoleUser)
	svc := NewUserService(f.users, f.tenants, f.authz, testLogger())
	p := f.principal(t, admin)
	ctx := context.Background()

	name := "Still Fine"
	if _, err := svc.Update(ctx, p, member.ID, UpdateUserInput{FullName: &name}); err != nil {
		t.Fatalf("Update() name error = %v", err)
	}

	status := "disabled"
	if _, err := svc.Update(ctx, p, member.ID, UpdateUserInput{Status: &status}); !errors.Is(err, authz.ErrForbidden) {
		t.Fatalf("Update() status error = %v, want ErrForbidden", err)
	}
	got, err := f.users.Get(ctx, member.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != user.StatusActive {
		t.Errorf("status = %v, want active after denied change", got.Status)
	}

	// A combined name+status edit must also clear the stricter action.
	if _, err := svc.Update(ctx, p, member.ID, UpdateUserInput{FullName: &name, Status: &status}); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("combined Update() error = %v, want ErrForbidden", err)
	}
}

func TestUserService_CreateRequiresExistingTenant(t *testing.T) {
	f := newFixture(allowAll())
	tn := f.seedTenant(t, "ALPHA")
	admin := f.seedUser(t, tn.ID, user.RoleTenantAdmin)
	svc := NewUserService(f.users, f.tenants, f.authz, testLogger())

	_, err := svc.Create(context.Background(), f.principal(t, admin), CreateUserInput{
		TenantID: "t-ghost",
		FullName: "Orphan",
		Email:    "orphan@example.com",
		Role:     "USER",
	})
	if !errors.Is(err, tenant.ErrTenantNotFound) {
		t.Fatalf("Create() error = %v, want ErrTenantNotFound", err)
	}
}

func TestUserService_Me(t *testing.T) {
	f := newFixture(denyAll()) // Me performs no policy check
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	svc := NewUserService(f.users, f.tenants, f.authz, testLogger())

	me, err := svc.Me(context.Background(), f.principal(t, member))
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.ID != member.ID {
		t.Errorf("Me() = %q, want %q", me.ID, member.ID)
	}
}

func TestUserService_ListDenied(t *testing.T) {
	f := newFixture(denyAll())
	tn := f.seedTenant(t, "ALPHA")
	member := f.seedUser(t, tn.ID, user.RoleUser)
	svc := NewUserService(f.users, f.tenants, f.authz, testLogger())

	if _, err := svc.List(context.Background(), f.principal(t, member), tn.ID); !errors.Is(err, authz.ErrForbidden) {
		t.Errorf("List() error = %v, want ErrForbidden", err)
	}
}
