package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/user/domain"
)

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	u := &domain.User{ID: "u1", Email: "Tech@Shop.test", Role: domain.RoleTechnician, Permissions: []string{"reports:view"}, Status: domain.UserStatusActive}
	require.NoError(t, r.Create(ctx, u))

	got, err := r.GetByEmail(ctx, "tech@shop.test")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	got.Permissions[0] = "mutated"
	again, err := r.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports:view"}, again.Permissions, "stored permissions are not shared with callers")

	missing, err := r.GetByEmail(ctx, "nobody@shop.test")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryRepository_Duplicate(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	require.NoError(t, r.Create(ctx, &domain.User{ID: "u1", Email: "a@shop.test", Role: domain.RoleAdmin}))

	assert.ErrorIs(t, r.Create(ctx, &domain.User{ID: "u2", Email: "A@shop.test", Role: domain.RoleAdmin}), ErrDuplicate, "email")
	assert.ErrorIs(t, r.Create(ctx, &domain.User{ID: "u1", Email: "b@shop.test", Role: domain.RoleAdmin}), ErrDuplicate, "id")
}

func TestMemoryRepository_UpdateAccess(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	require.NoError(t, r.Create(ctx, &domain.User{ID: "u1", Email: "a@shop.test", Role: domain.RoleCustomer}))

	require.NoError(t, r.UpdateAccess(ctx, "u1", domain.RoleAdmin, []string{"settings:manage"}))
	got, err := r.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, []string{"settings:manage"}, got.Permissions)

	assert.NoError(t, r.UpdateAccess(ctx, "missing", domain.RoleAdmin, nil), "unknown ids are ignored")
}
