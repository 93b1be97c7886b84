package database

import (
	"context"
	"time"
)

// ============================================================================
// USERS
// ============================================================================

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO users (username, password_hash, full_name, email, state)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, password_changed_at
	`
	return r.db.Pool.QueryRow(ctx, query,
		u.Username, u.PasswordHash, u.FullName, u.Email, u.State,
	).Scan(&u.ID, &u.CreatedAt, &u.PasswordChangedAt)
}

// GetUserByUsername retrieves a user by username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, username, password_hash, full_name, email, state,
		       created_at, last_login_at, password_changed_at
		FROM users
		WHERE username = $1
	`
	u := &User{}
	err := r.db.Pool.QueryRow(ctx, query, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email, &u.State,
		&u.CreatedAt, &u.LastLoginAt, &u.PasswordChangedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserByID retrieves a user by id
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, username, password_hash, full_name, email, state,
		       created_at, last_login_at, password_changed_at
		FROM users
		WHERE id = $1
	`
	u := &User{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.FullName, &u.Email, &u.State,
		&u.CreatedAt, &u.LastLoginAt, &u.PasswordChangedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUserPassword replaces a user's password hash
func (r *Repository) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Pool.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, password_changed_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`, id, passwordHash)
	return err
}

// UpdateLastLogin records a successful login
func (r *Repository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Pool.Exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}
