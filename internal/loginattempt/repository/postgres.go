package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"repairdesk/backend/internal/loginattempt/domain"
)

// PostgresStore keeps records in the login_attempts table. Updates for one identifier are
// serialised with a transaction-scoped advisory lock, so a missing row cannot be raced into
// existence by two writers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a Store backed by db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get returns the record for key, or nil if none exists.
func (s *PostgresStore) Get(ctx context.Context, key string) (*domain.Record, error) {
	return getRecord(ctx, s.db, key)
}

// Delete removes the record for key.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE identifier = $1`, key)
	return err
}

// Update applies fn within a transaction holding the identifier's advisory lock.
func (s *PostgresStore) Update(ctx context.Context, key string, fn UpdateFunc) (*domain.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return nil, err
	}
	current, err := getRecord(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}
	if next == nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM login_attempts WHERE identifier = $1`, key); err != nil {
			return nil, err
		}
	} else {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO login_attempts (identifier, attempt_count, last_attempt_at, locked_until)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (identifier) DO UPDATE
			   SET attempt_count = EXCLUDED.attempt_count,
			       last_attempt_at = EXCLUDED.last_attempt_at,
			       locked_until = EXCLUDED.locked_until`,
			key, next.Count, next.LastAttempt, timeToNullTime(next.LockedUntil),
		)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func getRecord(ctx context.Context, q rowQuerier, key string) (*domain.Record, error) {
	var (
		r           domain.Record
		lockedUntil sql.NullTime
	)
	err := q.QueryRowContext(ctx,
		`SELECT identifier, attempt_count, last_attempt_at, locked_until FROM login_attempts WHERE identifier = $1`,
		key,
	).Scan(&r.Identifier, &r.Count, &r.LastAttempt, &lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if lockedUntil.Valid {
		t := lockedUntil.Time.UTC()
		r.LockedUntil = &t
	}
	r.LastAttempt = r.LastAttempt.UTC()
	return &r, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
