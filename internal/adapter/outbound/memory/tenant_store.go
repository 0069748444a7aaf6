// Package memory provides in-memory implementations of the entity stores.
// Thread-safe for concurrent access. For development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/cognefi/agentgate/internal/domain/tenant"
)

// TenantStore implements tenant.TenantStore with an in-memory map.
type TenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenant.Tenant
	byCode  map[string]string // code -> id
}

// NewTenantStore creates an empty in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{
		tenants: make(map[string]*tenant.Tenant),
		byCode:  make(map[string]string),
	}
}

// Create stores a new tenant.
func (s *TenantStore) Create(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[t.Code]; ok {
		return tenant.ErrDuplicateCode
	}
	cp := *t
	s.tenants[t.ID] = &cp
	s.byCode[t.Code] = t.ID
	return nil
}

// Get retrieves a tenant by ID.
func (s *TenantStore) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

// GetByCode retrieves a tenant by its unique code.
func (s *TenantStore) GetByCode(ctx context.Context, code string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *s.tenants[id]
	return &cp, nil
}

// List returns all tenants.
func (s *TenantStore) List(ctx context.Context) ([]*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

// Update saves changes to an existing tenant.
func (s *TenantStore) Update(ctx context.Context, t *tenant.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.tenants[t.ID]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	if old.Code != t.Code {
		if _, taken := s.byCode[t.Code]; taken {
			return tenant.ErrDuplicateCode
		}
		delete(s.byCode, old.Code)
		s.byCode[t.Code] = t.ID
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

// Delete removes a tenant.
func (s *TenantStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	delete(s.byCode, t.Code)
	delete(s.tenants, id)
	return nil
}

// Compile-time interface verification.
var _ tenant.TenantStore = (*TenantStore)(nil)
