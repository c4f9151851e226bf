package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"repairdesk/backend/internal/user/domain"
)

const userColumns = `id, email, name, role, permissions, status, created_at, updated_at`

type PostgresRepository struct {
	db      *sql.DB
	typeMap *pgtype.Map
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, typeMap: pgtype.NewMap()}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.scan(row)
}

// GetByEmail returns the user with the given email, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return r.scan(row)
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	perms := u.Permissions
	if perms == nil {
		perms = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, sql.NullString{String: u.Name, Valid: u.Name != ""}, string(u.Role), perms,
		string(u.Status), u.CreatedAt, u.UpdatedAt,
	)
	return err
}

// UpdateAccess replaces role and permissions for the user with the given id.
func (r *PostgresRepository) UpdateAccess(ctx context.Context, id string, role domain.Role, permissions []string) error {
	if permissions == nil {
		permissions = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, permissions = $3, updated_at = $4 WHERE id = $1`,
		id, string(role), permissions, time.Now().UTC(),
	)
	return err
}

func (r *PostgresRepository) scan(row *sql.Row) (*domain.User, error) {
	var (
		u      domain.User
		name   sql.NullString
		role   string
		status string
	)
	err := row.Scan(&u.ID, &u.Email, &name, &role, r.typeMap.SQLScanner(&u.Permissions), &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if name.Valid {
		u.Name = name.String
	}
	u.Role = domain.Role(role)
	u.Status = domain.UserStatus(status)
	return &u, nil
}
