package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"

	"repairdesk/backend/internal/session/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

// PostgresStore keeps one row per installation in the sessions table.
type PostgresStore struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

// NewPostgresStore returns a Store that uses db for persistence.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, typeMap: pgtype.NewMap()}
}

// Get returns the session for key, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	var (
		s    domain.Session
		role string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, installation_id, user_id, email, role, permissions, active,
		        access_token, refresh_token, refresh_jti, expires_at, last_activity_at,
		        platform, user_agent, address, created_at
		   FROM sessions WHERE installation_id = $1`,
		key,
	).Scan(
		&s.ID, &s.InstallationID, &s.Principal.ID, &s.Principal.Email, &role,
		r.typeMap.SQLScanner(&s.Principal.Permissions), &s.Principal.Active,
		&s.AccessToken, &s.RefreshToken, &s.RefreshJTI, &s.ExpiresAt, &s.LastActivity,
		&s.Fingerprint.Platform, &s.Fingerprint.UserAgent, &s.Fingerprint.Address, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.Principal.Role = userdomain.Role(role)
	s.ExpiresAt = s.ExpiresAt.UTC()
	s.LastActivity = s.LastActivity.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

// Put upserts the session row for key.
func (r *PostgresStore) Put(ctx context.Context, key string, s *domain.Session) error {
	perms := s.Principal.Permissions
	if perms == nil {
		perms = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (installation_id, id, user_id, email, role, permissions, active,
		                       access_token, refresh_token, refresh_jti, expires_at, last_activity_at,
		                       platform, user_agent, address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (installation_id) DO UPDATE SET
		   id = EXCLUDED.id,
		   user_id = EXCLUDED.user_id,
		   email = EXCLUDED.email,
		   role = EXCLUDED.role,
		   permissions = EXCLUDED.permissions,
		   active = EXCLUDED.active,
		   access_token = EXCLUDED.access_token,
		   refresh_token = EXCLUDED.refresh_token,
		   refresh_jti = EXCLUDED.refresh_jti,
		   expires_at = EXCLUDED.expires_at,
		   last_activity_at = EXCLUDED.last_activity_at,
		   platform = EXCLUDED.platform,
		   user_agent = EXCLUDED.user_agent,
		   address = EXCLUDED.address,
		   created_at = EXCLUDED.created_at`,
		key, s.ID, s.Principal.ID, s.Principal.Email, string(s.Principal.Role), perms, s.Principal.Active,
		s.AccessToken, s.RefreshToken, s.RefreshJTI, s.ExpiresAt, s.LastActivity,
		s.Fingerprint.Platform, s.Fingerprint.UserAgent, s.Fingerprint.Address, s.CreatedAt,
	)
	return err
}

// Delete removes the session row for key.
func (r *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE installation_id = $1`, key)
	return err
}
