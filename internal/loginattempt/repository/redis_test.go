package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/loginattempt/domain"
)

func newRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, opts...), mr
}

func TestRedisStore_UpdateGetDelete(t *testing.T) {
	s, mr := newRedisStore(t, WithRedisPrefix("test:"))
	ctx := context.Background()

	got, err := s.Get(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.Update(ctx, "a@example.com", increment(time.Now().UTC()))
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:a@example.com"))

	got, err = s.Get(ctx, "a@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.Count)

	require.NoError(t, s.Delete(ctx, "a@example.com"))
	assert.False(t, mr.Exists("test:a@example.com"))
}

func TestRedisStore_UpdateNilDeletes(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()
	_, err := s.Update(ctx, "k", increment(time.Now()))
	require.NoError(t, err)

	_, err = s.Update(ctx, "k", func(*domain.Record) (*domain.Record, error) { return nil, nil })
	require.NoError(t, err)
	assert.False(t, mr.Exists(defaultRedisPrefix+"k"))
}

func TestRedisStore_TTLCoversLock(t *testing.T) {
	s, mr := newRedisStore(t, WithRedisRetention(time.Minute))
	ctx := context.Background()
	until := time.Now().UTC().Add(2 * time.Hour)

	_, err := s.Update(ctx, "k", func(*domain.Record) (*domain.Record, error) {
		return &domain.Record{Identifier: "k", Count: 5, LockedUntil: &until}, nil
	})
	require.NoError(t, err)
	assert.Greater(t, mr.TTL(defaultRedisPrefix+"k"), time.Hour)

	_, err = s.Update(ctx, "j", increment(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, mr.TTL(defaultRedisPrefix+"j"))
}

func TestRedisStore_ConcurrentUpdatesSameKey(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()
	const n = 5

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, "k", increment(time.Now()))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, n, got.Count)
}
