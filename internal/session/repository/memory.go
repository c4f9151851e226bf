package repository

import (
	"context"
	"sync"

	"repairdesk/backend/internal/session/domain"
)

// MemoryStore keeps sessions in process memory. Suitable for a single-process installation and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// Get returns a copy of the session for key, or nil.
func (s *MemoryStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[key].Clone(), nil
}

// Put stores a copy of sess under key.
func (s *MemoryStore) Put(ctx context.Context, key string, sess *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[key] = sess.Clone()
	s.mu.Unlock()
	return nil
}

// Delete removes the session for key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
