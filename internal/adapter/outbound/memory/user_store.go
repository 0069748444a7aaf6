package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/cognefi/agentgate/internal/domain/user"
)

// UserStore implements user.UserStore with an in-memory map.
type UserStore struct {
	mu      sync.RWMutex
	users   map[string]*user.Profile
	byEmail map[string]string // email -> id
}

// NewUserStore creates an empty in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		users:   make(map[string]*user.Profile),
		byEmail: make(map[string]string),
	}
}

// Create stores a new profile.
func (s *UserStore) Create(ctx context.Context, p *user.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[p.Email]; ok {
		return user.ErrDuplicateEmail
	}
	cp := *p
	s.users[p.ID] = &cp
	s.byEmail[p.Email] = p.ID
	return nil
}

// Get retrieves a profile by user ID.
func (s *UserStore) Get(ctx context.Context, id string) (*user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *p
	return &cp, nil
}

// GetByEmail retrieves a profile by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// List returns profiles, optionally filtered by tenant.
func (s *UserStore) List(ctx context.Context, tenantID string) ([]*user.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*user.Profile, 0, len(s.users))
	for _, p := range s.users {
		if tenantID != "" && p.TenantID != tenantID {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// Update saves changes to an existing profile.
func (s *UserStore) Update(ctx context.Context, p *user.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.users[p.ID]
	if !ok {
		return user.ErrUserNotFound
	}
	if old.Email != p.Email {
		if _, taken := s.byEmail[p.Email]; taken {
			return user.ErrDuplicateEmail
		}
		delete(s.byEmail, old.Email)
		s.byEmail[p.Email] = p.ID
	}
	cp := *p
	s.users[p.ID] = &cp
	return nil
}

// Compile-time interface verification.
var _ user.UserStore = (*UserStore)(nil)
