package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"repairdesk/backend/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a security event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends the event. The event must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.SecurityEvent) error {
	details, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("security event details: %w", err)
	}
	principal := sql.NullString{String: e.PrincipalID(), Valid: e.PrincipalID() != ""}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO security_events (id, name, category, severity, principal_id, platform, user_agent, address, details, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Name, e.Category, string(e.Severity), principal,
		e.Fingerprint.Platform, e.Fingerprint.UserAgent, e.Fingerprint.Address, details, e.OccurredAt,
	)
	return err
}

// ListRecent returns the newest events, optionally only those named name.
// Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListRecent(ctx context.Context, name string, limit int32) ([]*domain.SecurityEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, category, severity, platform, user_agent, address, details, occurred_at
		   FROM security_events
		  WHERE ($1 = '' OR name = $1)
		  ORDER BY occurred_at DESC
		  LIMIT $2`,
		name, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.SecurityEvent
	for rows.Next() {
		var (
			e        domain.SecurityEvent
			severity string
			details  []byte
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Category, &severity,
			&e.Fingerprint.Platform, &e.Fingerprint.UserAgent, &e.Fingerprint.Address, &details, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Severity = domain.Severity(severity)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("security event %s details: %w", e.ID, err)
			}
		}
		e.OccurredAt = e.OccurredAt.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}
