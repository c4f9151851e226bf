package repository

import (
	"context"
	"sync"

	"repairdesk/backend/internal/identity/domain"
)

type identityKey struct {
	userID   string
	provider domain.IdentityProvider
}

// MemoryRepository is an in-process identity store used when no database is configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	byKey map[identityKey]domain.Identity
	keyOf map[string]identityKey
}

// NewMemoryRepository returns an empty store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byKey: make(map[identityKey]domain.Identity), keyOf: make(map[string]identityKey)}
}

// GetByUserAndProvider returns the identity, or nil if not found.
func (r *MemoryRepository) GetByUserAndProvider(_ context.Context, userID string, provider domain.IdentityProvider) (*domain.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byKey[identityKey{userID, provider}]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

// Create stores i, replacing any identity for the same user and provider.
func (r *MemoryRepository) Create(_ context.Context, i *domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := identityKey{i.UserID, i.Provider}
	r.byKey[k] = *i
	r.keyOf[i.ID] = k
	return nil
}

// UpdatePasswordHash sets the hash on the identity with id. Unknown ids are ignored.
func (r *MemoryRepository) UpdatePasswordHash(_ context.Context, id string, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keyOf[id]
	if !ok {
		return nil
	}
	i := r.byKey[k]
	i.PasswordHash = passwordHash
	r.byKey[k] = i
	return nil
}
