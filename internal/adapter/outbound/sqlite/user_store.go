package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cognefi/agentgate/internal/domain/user"
)

// UserStore implements user.UserStore on sqlite.
type UserStore struct {
	db *sql.DB
}

var _ user.UserStore = (*UserStore)(nil)

// Create implements user.UserStore.
func (s *UserStore) Create(ctx context.Context, p *user.Profile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, tenant_id, full_name, email, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TenantID, p.FullName, p.Email, string(p.Role), string(p.Status),
		nanos(p.CreatedAt), nanos(p.UpdatedAt))
	if isUniqueViolation(err) {
		return user.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Get implements user.UserStore.
func (s *UserStore) Get(ctx context.Context, id string) (*user.Profile, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, full_name, email, role, status, created_at, updated_at
		 FROM users WHERE id = ?`, id))
}

// GetByEmail implements user.UserStore.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*user.Profile, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, full_name, email, role, status, created_at, updated_at
		 FROM users WHERE email = ?`, email))
}

// List implements user.UserStore.
func (s *UserStore) List(ctx context.Context, tenantID string) ([]*user.Profile, error) {
	query := `SELECT id, tenant_id, full_name, email, role, status, created_at, updated_at
		 FROM users ORDER BY created_at`
	args := []any{}
	if tenantID != "" {
		query = `SELECT id, tenant_id, full_name, email, role, status, created_at, updated_at
		 FROM users WHERE tenant_id = ? ORDER BY created_at`
		args = append(args, tenantID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []*user.Profile
	for rows.Next() {
		p, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update implements user.UserStore.
func (s *UserStore) Update(ctx context.Context, p *user.Profile) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET full_name = ?, role = ?, status = ?, updated_at = ? WHERE id = ?`,
		p.FullName, string(p.Role), string(p.Status), nanos(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) scanOne(row *sql.Row) (*user.Profile, error) {
	p, err := s.scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrUserNotFound
	}
	return p, err
}

func (s *UserStore) scanRow(r rowScanner) (*user.Profile, error) {
	var (
		p                    user.Profile
		role, status         string
		createdAt, updatedAt int64
	)
	if err := r.Scan(&p.ID, &p.TenantID, &p.FullName, &p.Email, &role, &status,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Role = user.Role(role)
	p.Status = user.Status(status)
	p.CreatedAt = fromNanos(createdAt)
	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}
