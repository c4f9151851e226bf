package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	identitydomain "repairdesk/backend/internal/identity/domain"
	"repairdesk/backend/internal/loginattempt"
	"repairdesk/backend/internal/security"
	userdomain "repairdesk/backend/internal/user/domain"
)

// ErrInvalidCredentials is returned for every failed verification. It never says which part was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialVerifier checks an identifier/secret pair and returns the principal it belongs to.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret string) (*userdomain.Principal, error)
}

// UserRepo is the minimal user repository needed by the verifier.
type UserRepo interface {
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// IdentityRepo is the minimal identity repository needed by the verifier.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
}

// PasswordVerifier verifies email/password against local identities.
type PasswordVerifier struct {
	users      UserRepo
	identities IdentityRepo
	hasher     *security.Hasher
	logger     *zap.Logger
}

// NewPasswordVerifier returns a verifier backed by the user and identity repositories.
func NewPasswordVerifier(users UserRepo, identities IdentityRepo, hasher *security.Hasher, logger *zap.Logger) *PasswordVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordVerifier{users: users, identities: identities, hasher: hasher, logger: logger}
}

// Verify returns the principal for identifier when secret matches its local password. Unknown
// users, wrong passwords, disabled users and repository failures all return ErrInvalidCredentials;
// repository failures are wrapped so they stay visible to errors.Unwrap and are logged.
func (v *PasswordVerifier) Verify(ctx context.Context, identifier, secret string) (*userdomain.Principal, error) {
	email := loginattempt.Normalize(identifier)
	if email == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		v.logger.Error("user lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if user == nil {
		_ = v.hasher.CompareDummy([]byte(secret))
		return nil, ErrInvalidCredentials
	}
	ident, err := v.identities.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		v.logger.Error("identity lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if ident == nil || ident.PasswordHash == "" {
		_ = v.hasher.CompareDummy([]byte(secret))
		return nil, ErrInvalidCredentials
	}
	if err := v.hasher.Compare(ident.PasswordHash, []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	p := user.Principal()
	return &p, nil
}
