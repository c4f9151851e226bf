// Package repository stores login attempt records with per-identifier atomic updates.
package repository

import (
	"context"

	"repairdesk/backend/internal/loginattempt/domain"
)

// UpdateFunc receives the current record (nil when absent) and returns the record to store.
// Returning nil deletes the record. Returning an error aborts the update without writing.
type UpdateFunc func(current *domain.Record) (*domain.Record, error)

// Store persists login attempt records keyed by normalised identifier.
type Store interface {
	// Get returns the record for key, or nil if none exists.
	Get(ctx context.Context, key string) (*domain.Record, error)
	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Update applies fn as a read-modify-write that is atomic with respect to other
	// updates of the same key. Updates of different keys do not serialise each other.
	Update(ctx context.Context, key string, fn UpdateFunc) (*domain.Record, error)
}
