package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitydomain "repairdesk/backend/internal/identity/domain"
	"repairdesk/backend/internal/security"
	userdomain "repairdesk/backend/internal/user/domain"
)

type memUserRepo struct {
	byEmail map[string]*userdomain.User
	err     error
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*userdomain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.byEmail[email], nil
}

type memIdentityRepo struct {
	byUser map[string]*identitydomain.Identity
	err    error
}

func (r *memIdentityRepo) GetByUserAndProvider(_ context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error) {
	if r.err != nil {
		return nil, r.err
	}
	i := r.byUser[userID]
	if i == nil || i.Provider != provider {
		return nil, nil
	}
	return i, nil
}

func newVerifierFixture(t *testing.T) (*PasswordVerifier, *memUserRepo, *memIdentityRepo) {
	t.Helper()
	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte("correct horse"))
	require.NoError(t, err)

	users := &memUserRepo{byEmail: map[string]*userdomain.User{
		"alice@example.com": {ID: "u-alice", Email: "alice@example.com", Role: userdomain.RoleTechnician, Permissions: []string{"reports:view"}, Status: userdomain.UserStatusActive},
		"bob@example.com":   {ID: "u-bob", Email: "bob@example.com", Role: userdomain.RoleCustomer, Status: userdomain.UserStatusDisabled},
		"oidc@example.com":  {ID: "u-oidc", Email: "oidc@example.com", Role: userdomain.RoleCustomer, Status: userdomain.UserStatusActive},
	}}
	identities := &memIdentityRepo{byUser: map[string]*identitydomain.Identity{
		"u-alice": {ID: "i-1", UserID: "u-alice", Provider: identitydomain.IdentityProviderLocal, PasswordHash: hash},
		"u-bob":   {ID: "i-2", UserID: "u-bob", Provider: identitydomain.IdentityProviderLocal, PasswordHash: hash},
		"u-oidc":  {ID: "i-3", UserID: "u-oidc", Provider: identitydomain.IdentityProviderOIDC},
	}}
	return NewPasswordVerifier(users, identities, hasher, nil), users, identities
}

func TestPasswordVerifier_Success(t *testing.T) {
	v, _, _ := newVerifierFixture(t)
	p, err := v.Verify(context.Background(), "  Alice@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", p.ID)
	assert.Equal(t, userdomain.RoleTechnician, p.Role)
	assert.Equal(t, []string{"reports:view"}, p.Permissions)
	assert.True(t, p.Active)
}

func TestPasswordVerifier_Failures(t *testing.T) {
	v, _, _ := newVerifierFixture(t)
	tests := []struct {
		name, identifier, secret string
	}{
		{"wrong password", "alice@example.com", "wrong"},
		{"unknown user", "nobody@example.com", "correct horse"},
		{"disabled user", "bob@example.com", "correct horse"},
		{"no local identity", "oidc@example.com", "correct horse"},
		{"empty identifier", "  ", "correct horse"},
		{"empty secret", "alice@example.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Verify(context.Background(), tt.identifier, tt.secret)
			assert.Nil(t, p)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestPasswordVerifier_RepositoryErrorsAreInvalidCredentials(t *testing.T) {
	dbErr := errors.New("connection refused")

	v, users, _ := newVerifierFixture(t)
	users.err = dbErr
	_, err := v.Verify(context.Background(), "alice@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, dbErr)

	v, _, identities := newVerifierFixture(t)
	identities.err = dbErr
	_, err = v.Verify(context.Background(), "alice@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, dbErr)
}
