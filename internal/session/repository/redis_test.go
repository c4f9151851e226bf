package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ""), mr
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)

	got, err := s.Get(ctx, "install-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	sess := sampleSession(time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second))
	require.NoError(t, s.Put(ctx, "install-1", sess))
	assert.True(t, mr.Exists(defaultRedisPrefix+"install-1"))

	got, err = s.Get(ctx, "install-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, sess.Principal, got.Principal)
	assert.Equal(t, sess.Fingerprint, got.Fingerprint)
	assert.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, s.Delete(ctx, "install-1"))
	got, err = s.Get(ctx, "install-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisStore_KeyExpiresAfterSession(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "k", sampleSession(now.Add(4*time.Hour))))
	assert.Equal(t, 4*time.Hour+time.Minute, mr.TTL(defaultRedisPrefix+"k"))

	require.NoError(t, s.Put(ctx, "k", sampleSession(now.Add(-time.Hour))))
	assert.Equal(t, time.Minute, mr.TTL(defaultRedisPrefix+"k"), "expired sessions keep a minimal TTL")
}

func TestRedisStore_CorruptValue(t *testing.T) {
	s, mr := newRedisStore(t)
	require.NoError(t, mr.Set(defaultRedisPrefix+"k", "{not json"))
	_, err := s.Get(context.Background(), "k")
	assert.Error(t, err)
}
