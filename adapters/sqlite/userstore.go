package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/voxbridge/voxbridge/ports"
)

// UserStore implements ports.UserStore using SQLite.
type UserStore struct {
	db *DB
}

// NewUserStore creates a new SQLite user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = `id, email, display_name, status, suspended_until, blocked_reason, is_admin, password_hash, created_at`

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (ports.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)

	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.User{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (ports.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.User{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// List returns all users.
func (s *UserStore) List(ctx context.Context) ([]ports.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []ports.User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// Put stores or replaces a user.
func (s *UserStore) Put(ctx context.Context, u ports.User) error {
	var suspendedUntil interface{}
	if !u.SuspendedUntil.IsZero() {
		suspendedUntil = u.SuspendedUntil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users
			(id, email, display_name, status, suspended_until,
			 blocked_reason, is_admin, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email           = excluded.email,
			display_name    = excluded.display_name,
			status          = excluded.status,
			suspended_until = excluded.suspended_until,
			blocked_reason  = excluded.blocked_reason,
			is_admin        = excluded.is_admin,
			password_hash   = excluded.password_hash
	`, u.ID, u.Email, u.DisplayName, u.Status, suspendedUntil,
		u.BlockedReason, u.IsAdmin, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func scanUser(scan func(...any) error) (ports.User, error) {
	var u ports.User
	var suspendedUntil sql.NullTime
	var createdAt sql.NullTime
	err := scan(&u.ID, &u.Email, &u.DisplayName, &u.Status,
		&suspendedUntil, &u.BlockedReason, &u.IsAdmin, &u.PasswordHash, &createdAt)
	if err != nil {
		return ports.User{}, err
	}
	if suspendedUntil.Valid {
		u.SuspendedUntil = suspendedUntil.Time
	}
	if createdAt.Valid {
		u.CreatedAt = createdAt.Time
	}
	return u, nil
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
