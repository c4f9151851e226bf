package app

import (
	"context"
	"fmt"
	"time"

	identitydomain "repairdesk/backend/internal/identity/domain"
	identityservice "repairdesk/backend/internal/identity/service"
	"repairdesk/backend/internal/security"
	userdomain "repairdesk/backend/internal/user/domain"
)

// UserStore is the part of the user directory seeding writes to.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityStore is the part of the identity repository seeding writes to.
type IdentityStore interface {
	Create(ctx context.Context, i *identitydomain.Identity) error
}

// SeedDemoUsers creates one principal per role under identityservice.DemoIdentifier, all sharing
// password. Existing users are left untouched. It returns how many users it created.
func SeedDemoUsers(ctx context.Context, users UserStore, identities IdentityStore, hasher *security.Hasher, password string) (int, error) {
	if password == "" {
		return 0, fmt.Errorf("seed: demo password is empty")
	}
	hash, err := hasher.Hash([]byte(password))
	if err != nil {
		return 0, fmt.Errorf("seed: hash password: %w", err)
	}
	now := time.Now().UTC()
	created := 0
	for _, role := range userdomain.Roles() {
		email := identityservice.DemoIdentifier(role)
		existing, err := users.GetByEmail(ctx, email)
		if err != nil {
			return created, fmt.Errorf("seed: lookup %s: %w", email, err)
		}
		if existing != nil {
			continue
		}
		u := &userdomain.User{
			ID:        "demo-" + string(role),
			Email:     email,
			Name:      "Demo " + string(role),
			Role:      role,
			Status:    userdomain.UserStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := u.Validate(); err != nil {
			return created, fmt.Errorf("seed: %s: %w", email, err)
		}
		if err := users.Create(ctx, u); err != nil {
			return created, fmt.Errorf("seed: create user %s: %w", email, err)
		}
		if err := identities.Create(ctx, &identitydomain.Identity{
			ID:           "demo-identity-" + string(role),
			UserID:       u.ID,
			Provider:     identitydomain.IdentityProviderLocal,
			ProviderID:   email,
			PasswordHash: hash,
			CreatedAt:    now,
		}); err != nil {
			return created, fmt.Errorf("seed: create identity %s: %w", email, err)
		}
		created++
	}
	return created, nil
}
