package models

import (
	"time"

	"github.com/lib/pq"
)

// APIKey represents an SDK API key row. Keys are stored as SHA-256
// hashes; the plaintext is shown to the user exactly once at creation.
type APIKey struct {
	ID                 string         `db:"id"`
	OrganizationID     string         `db:"organization_id"`
	Name               string         `db:"name"`
	KeyHash            string         `db:"key_hash"`
	Scopes             pq.StringArray `db:"scopes"`
	RateLimitPerMinute int            `db:"rate_limit_per_minute"`
	RateLimitPerDay    int            `db:"rate_limit_per_day"`
	ExpiresAt          *time.Time     `db:"expires_at"`
	RevokedAt          *time.Time     `db:"revoked_at"`
	LastUsedAt         *time.Time     `db:"last_used_at"`
	CreatedAt          time.Time      `db:"created_at"`
}

// IsRevoked checks if the key has been revoked
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsExpired checks if the key has expired
func (k *APIKey) IsExpired() bool {
	if k.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*k.ExpiresAt)
}

// HasScopes reports whether the key's scopes are a superset of required.
// The "admin" scope satisfies any requirement.
func (k *APIKey) HasScopes(required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range k.Scopes {
			if have == want || have == "admin" {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
