package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"repairdesk/backend/internal/user/domain"
)

// ErrDuplicate is returned by MemoryRepository.Create for a taken id or email.
var ErrDuplicate = errors.New("user: duplicate id or email")

// MemoryRepository is an in-process user directory used when no database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*domain.User
	email map[string]string
}

// NewMemoryRepository returns an empty directory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]*domain.User), email: make(map[string]string)}
}

// GetByID returns a copy of the user, or nil if not found.
func (r *MemoryRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyUser(r.byID[id]), nil
}

// GetByEmail returns a copy of the user with email (case-insensitive), or nil if not found.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.email[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return copyUser(r.byID[id]), nil
}

// Create stores a copy of u.
func (r *MemoryRepository) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := r.byID[u.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.email[key]; ok {
		return ErrDuplicate
	}
	r.byID[u.ID] = copyUser(u)
	r.email[key] = u.ID
	return nil
}

// UpdateAccess replaces role and grants. Unknown ids are ignored, as with the Postgres UPDATE.
func (r *MemoryRepository) UpdateAccess(_ context.Context, id string, role domain.Role, permissions []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil
	}
	u.Role = role
	u.Permissions = append([]string(nil), permissions...)
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	out := *u
	out.Permissions = append([]string(nil), u.Permissions...)
	return &out
}
