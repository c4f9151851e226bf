package repository

import (
	"context"

	"repairdesk/backend/internal/user/domain"
)

// Repository defines persistence for the user directory.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	// UpdateAccess replaces a user's role and explicit permission grants.
	UpdateAccess(ctx context.Context, id string, role domain.Role, permissions []string) error
}
