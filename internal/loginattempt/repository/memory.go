package repository

import (
	"context"
	"sync"

	"repairdesk/backend/internal/loginattempt/domain"
)

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// MemoryStore is an in-process Store. Each key has its own lock; the table mutex is only
// held long enough to find the key's lock or touch the map.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.Record
	locks   map[string]*keyLock
}

// NewMemoryStore returns an empty in-memory attempt store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*domain.Record),
		locks:   make(map[string]*keyLock),
	}
}

// Get returns a copy of the record for key, or nil.
func (s *MemoryStore) Get(ctx context.Context, key string) (*domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[key].Clone(), nil
}

// Delete removes the record for key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	l := s.acquire(key)
	defer s.release(key, l)
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	return nil
}

// Update runs fn while holding key's lock.
func (s *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) (*domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := s.acquire(key)
	defer s.release(key, l)

	s.mu.Lock()
	current := s.records[key].Clone()
	s.mu.Unlock()

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if next == nil {
		delete(s.records, key)
	} else {
		s.records[key] = next.Clone()
	}
	s.mu.Unlock()
	return next.Clone(), nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) acquire(key string) *keyLock {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &keyLock{}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()
	l.mu.Lock()
	return l
}

func (s *MemoryStore) release(key string, l *keyLock) {
	l.mu.Unlock()
	s.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
	s.mu.Unlock()
}
