package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tokentra/internal/models"
)

// UserRepository stores dashboard users.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByEmail fetches a user by email for login.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, organization_id, email, name, password_hash, role, last_login_at, created_at
		FROM users
		WHERE email = $1`

	err := r.db.conn.GetContext(ctx, &user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// GetByID fetches a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := `
		SELECT id, organization_id, email, name, password_hash, role, last_login_at, created_at
		FROM users
		WHERE id = $1`

	err := r.db.conn.GetContext(ctx, &user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// AdminEmails returns the email addresses of an organization's owners
// and admins, used as alert recipients.
func (r *UserRepository) AdminEmails(ctx context.Context, orgID string) ([]string, error) {
	var emails []string
	query := `
		SELECT email FROM users
		WHERE organization_id = $1 AND role IN ('owner', 'admin')
		ORDER BY email`

	if err := r.db.conn.SelectContext(ctx, &emails, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list admin emails: %w", err)
	}
	return emails, nil
}

// TouchLastLogin records a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login_at = NOW() WHERE id = $1`
	if _, err := r.db.conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}
