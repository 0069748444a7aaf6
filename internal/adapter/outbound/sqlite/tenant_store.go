package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cognefi/agentgate/internal/domain/tenant"
)

// TenantStore implements tenant.TenantStore on sqlite.
type TenantStore struct {
	db *sql.DB
}

var _ tenant.TenantStore = (*TenantStore)(nil)

// Create implements tenant.TenantStore.
func (s *TenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (id, name, code, industry, subscription_plan, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Code, t.Industry, t.SubscriptionPlan, string(t.Status),
		nanos(t.CreatedAt), nanos(t.UpdatedAt))
	if isUniqueViolation(err) {
		return tenant.ErrDuplicateCode
	}
	if err != nil {
		return fmt.Errorf("insert tenant: %w", err)
	}
	return nil
}

// Get implements tenant.TenantStore.
func (s *TenantStore) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, name, code, industry, subscription_plan, status, created_at, updated_at
		 FROM tenants WHERE id = ?`, id))
}

// GetByCode implements tenant.TenantStore.
func (s *TenantStore) GetByCode(ctx context.Context, code string) (*tenant.Tenant, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, name, code, industry, subscription_plan, status, created_at, updated_at
		 FROM tenants WHERE code = ?`, code))
}

// List implements tenant.TenantStore.
func (s *TenantStore) List(ctx context.Context) ([]*tenant.Tenant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, code, industry, subscription_plan, status, created_at, updated_at
		 FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var out []*tenant.Tenant
	for rows.Next() {
		t, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Update implements tenant.TenantStore.
func (s *TenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET name = ?, industry = ?, subscription_plan = ?, status = ?, updated_at = ?
		 WHERE id = ?`,
		t.Name, t.Industry, t.SubscriptionPlan, string(t.Status), nanos(t.UpdatedAt), t.ID)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	if n == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

// Delete implements tenant.TenantStore.
func (s *TenantStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tenants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tenant: %w", err)
	}
	if n == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *TenantStore) scanOne(row *sql.Row) (*tenant.Tenant, error) {
	t, err := s.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tenant.ErrTenantNotFound
	}
	return t, err
}

func (s *TenantStore) scanRow(r rowScanner) (*tenant.Tenant, error) {
	var (
		t                    tenant.Tenant
		status               string
		createdAt, updatedAt int64
	)
	if err := r.Scan(&t.ID, &t.Name, &t.Code, &t.Industry, &t.SubscriptionPlan,
		&status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Status = tenant.Status(status)
	t.CreatedAt = fromNanos(createdAt)
	t.UpdatedAt = fromNanos(updatedAt)
	return &t, nil
}
