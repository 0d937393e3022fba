package models

import "time"

// User is a dashboard user. Passwords are bcrypt hashes.
type User struct {
	ID             string     `db:"id"`
	OrganizationID string     `db:"organization_id"`
	Email          string     `db:"email"`
	Name           string     `db:"name"`
	PasswordHash   string     `db:"password_hash"`
	Role           string     `db:"role"`
	LastLoginAt    *time.Time `db:"last_login_at"`
	CreatedAt      time.Time  `db:"created_at"`
}
