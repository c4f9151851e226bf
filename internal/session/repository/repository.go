// Package repository persists the installation's session record.
package repository

import (
	"context"

	"repairdesk/backend/internal/session/domain"
)

// Store holds at most one session per installation key.
type Store interface {
	// Get returns the session for key, or nil if none is stored.
	Get(ctx context.Context, key string) (*domain.Session, error)
	// Put replaces the session stored under key.
	Put(ctx context.Context, key string, s *domain.Session) error
	// Delete removes the session for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
