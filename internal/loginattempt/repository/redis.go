package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"repairdesk/backend/internal/loginattempt/domain"
)

const (
	defaultRedisPrefix    = "repairdesk:login_attempt:"
	defaultRedisRetention = 24 * time.Hour
	maxRedisTxRetries     = 10
)

// ErrContention is returned when an optimistic Redis update keeps losing to concurrent writers.
var ErrContention = errors.New("login attempt store: too much contention")

// RedisStore keeps records as JSON values and serialises updates per key with WATCH/MULTI.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisRetention sets how long an unlocked record survives without new failures.
func WithRedisRetention(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewRedisStore returns a Store backed by client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		prefix:    defaultRedisPrefix,
		retention: defaultRedisRetention,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the record for key, or nil if none exists.
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.Record, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return decodeRecord(raw)
}

// Delete removes the record for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

// Update applies fn inside a WATCH transaction, retrying when another writer touched the key.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) (*domain.Record, error) {
	redisKey := s.prefix + key
	var result *domain.Record
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, redisKey).Bytes()
		var current *domain.Record
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if current, err = decodeRecord(raw); err != nil {
				return err
			}
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		var payload []byte
		if next != nil {
			if payload, err = json.Marshal(next); err != nil {
				return err
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, redisKey)
				return nil
			}
			pipe.Set(ctx, redisKey, payload, s.ttl(next))
			return nil
		})
		if err == nil {
			result = next
		}
		return err
	}

	for i := 0; i < maxRedisTxRetries; i++ {
		err := s.client.Watch(ctx, txf, redisKey)
		if err == nil {
			return result.Clone(), nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: key %q", ErrContention, key)
}

// ttl keeps locked records at least until the lock lapses so a restart cannot shorten a lockout.
func (s *RedisStore) ttl(r *domain.Record) time.Duration {
	ttl := s.retention
	if r.LockedUntil != nil {
		if untilLock := r.LockedUntil.Sub(s.now()) + time.Minute; untilLock > ttl {
			ttl = untilLock
		}
	}
	return ttl
}

func decodeRecord(raw []byte) (*domain.Record, error) {
	var r domain.Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("login attempt store: decode record: %w", err)
	}
	return &r, nil
}
