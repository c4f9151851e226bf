package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/identity/domain"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	got, err := r.GetByUserAndProvider(ctx, "u1", domain.IdentityProviderLocal)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, r.Create(ctx, &domain.Identity{ID: "i1", UserID: "u1", Provider: domain.IdentityProviderLocal, PasswordHash: "h1"}))
	require.NoError(t, r.UpdatePasswordHash(ctx, "i1", "h2"))

	got, err = r.GetByUserAndProvider(ctx, "u1", domain.IdentityProviderLocal)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "h2", got.PasswordHash)

	other, err := r.GetByUserAndProvider(ctx, "u1", domain.IdentityProviderOIDC)
	require.NoError(t, err)
	assert.Nil(t, other)
}
