// Package loginattempt tracks failed logins per identifier and enforces time-bounded lockouts.
package loginattempt

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"repairdesk/backend/internal/loginattempt/domain"
	"repairdesk/backend/internal/loginattempt/repository"
	"repairdesk/backend/internal/metrics"
	"repairdesk/backend/internal/platform/clock"
)

const (
	// DefaultThreshold is the number of consecutive failures that locks an identifier.
	DefaultThreshold = 5
	// DefaultLockout is how long a lock lasts once set.
	DefaultLockout = 15 * time.Minute

	// EventAccountLocked is logged when an identifier crosses the failure threshold.
	EventAccountLocked = "account_locked"
)

// EventLogger receives security events. Implementations must not block.
type EventLogger interface {
	LogSecurityEvent(ctx context.Context, name string, details map[string]any)
}

// Tracker records login outcomes and answers lockout queries.
//
// A lock is set once, when the count first reaches the threshold, and is never extended by
// further failures. Reading a record whose lock has lapsed deletes it.
type Tracker struct {
	store     repository.Store
	clock     clock.Clock
	events    EventLogger
	logger    *zap.Logger
	threshold int
	lockout   time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithThreshold sets the failure count that triggers a lock.
func WithThreshold(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.threshold = n
		}
	}
}

// WithLockout sets the lock duration.
func WithLockout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.lockout = d
		}
	}
}

// WithEventLogger sets the security event sink.
func WithEventLogger(events EventLogger) Option {
	return func(t *Tracker) { t.events = events }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker returns a Tracker over store. c may be nil for the system clock.
func NewTracker(store repository.Store, c clock.Clock, opts ...Option) *Tracker {
	if c == nil {
		c = clock.System{}
	}
	t := &Tracker{
		store:     store,
		clock:     c,
		logger:    zap.NewNop(),
		threshold: DefaultThreshold,
		lockout:   DefaultLockout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Normalize returns the canonical form of a login identifier.
func Normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// IsLocked reports whether identifier is currently locked out.
func (t *Tracker) IsLocked(ctx context.Context, identifier string) (bool, error) {
	rec, err := t.current(ctx, Normalize(identifier))
	if err != nil {
		return false, err
	}
	return rec.LockedAt(t.clock.Now()), nil
}

// RemainingLockout returns how long identifier stays locked; 0 when not locked.
func (t *Tracker) RemainingLockout(ctx context.Context, identifier string) (time.Duration, error) {
	rec, err := t.current(ctx, Normalize(identifier))
	if err != nil {
		return 0, err
	}
	return rec.Remaining(t.clock.Now()), nil
}

// RecordAttempt records one login outcome. Success removes all failure history; failure
// increments the count and locks the identifier when the threshold is first reached.
// The returned record is nil after a success.
func (t *Tracker) RecordAttempt(ctx context.Context, identifier string, success bool) (*domain.Record, error) {
	key := Normalize(identifier)
	if success {
		metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
		return nil, t.store.Delete(ctx, key)
	}
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()

	justLocked := false
	rec, err := t.store.Update(ctx, key, func(cur *domain.Record) (*domain.Record, error) {
		now := t.clock.Now()
		justLocked = false
		if cur == nil || cur.LockExpiredAt(now) {
			cur = &domain.Record{Identifier: key}
		}
		cur.Count++
		cur.LastAttempt = now
		if cur.Count >= t.threshold && cur.LockedUntil == nil {
			until := now.Add(t.lockout)
			cur.LockedUntil = &until
			justLocked = true
		}
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	if justLocked {
		metrics.LockoutsTotal.Inc()
		t.logger.Warn("login identifier locked",
			zap.String("identifier", key),
			zap.Int("attempts", rec.Count),
			zap.Time("locked_until", *rec.LockedUntil),
		)
		if t.events != nil {
			t.events.LogSecurityEvent(ctx, EventAccountLocked, map[string]any{
				"identifier":   key,
				"attempts":     rec.Count,
				"locked_until": rec.LockedUntil.Format(time.RFC3339),
			})
		}
	}
	return rec, nil
}

// Reset removes all attempt history for identifier.
func (t *Tracker) Reset(ctx context.Context, identifier string) error {
	return t.store.Delete(ctx, Normalize(identifier))
}

// current returns the live record for key, deleting it when its lock has lapsed.
func (t *Tracker) current(ctx context.Context, key string) (*domain.Record, error) {
	rec, err := t.store.Get(ctx, key)
	if err != nil || rec == nil {
		return nil, err
	}
	if !rec.LockExpiredAt(t.clock.Now()) {
		return rec, nil
	}
	// The record may have been reset or re-locked since the read; only drop it if still lapsed.
	_, err = t.store.Update(ctx, key, func(cur *domain.Record) (*domain.Record, error) {
		if cur.LockExpiredAt(t.clock.Now()) {
			return nil, nil
		}
		return cur, nil
	})
	if err != nil {
		return nil, err
	}
	return nil, nil
}
