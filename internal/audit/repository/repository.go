package repository

import (
	"context"

	"repairdesk/backend/internal/audit/domain"
)

// Repository defines persistence for security events.
type Repository interface {
	Create(ctx context.Context, e *domain.SecurityEvent) error
	ListRecent(ctx context.Context, name string, limit int32) ([]*domain.SecurityEvent, error)
}
