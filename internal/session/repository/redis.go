package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"repairdesk/backend/internal/session/domain"
)

const defaultRedisPrefix = "repairdesk:session:"

// RedisStore keeps each session as a JSON value that Redis expires at the session's absolute expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a Store backed by client. An empty prefix uses the default.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Get returns the session for key, or nil if none is stored.
func (s *RedisStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session store: decode: %w", err)
	}
	return &sess, nil
}

// Put stores sess under key. The key expires shortly after the session does; readers still
// apply their own expiry check.
func (s *RedisStore) Put(ctx context.Context, key string, sess *domain.Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session store: encode: %w", err)
	}
	ttl := sess.ExpiresAt.Sub(s.now()) + time.Minute
	if ttl <= time.Minute {
		ttl = time.Minute
	}
	return s.client.Set(ctx, s.prefix+key, payload, ttl).Err()
}

// Delete removes the session for key.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
