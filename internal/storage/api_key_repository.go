package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tokentra/internal/models"
)

// APIKeyRepository handles API key database operations with caching
type APIKeyRepository struct {
	db    *DB
	cache *LRUCache
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{
		db:    db,
		cache: db.GetAPIKeyCache(),
	}
}

const apiKeyColumns = `
	id, organization_id, name, key_hash, scopes,
	rate_limit_per_minute, rate_limit_per_day,
	expires_at, revoked_at, last_used_at, created_at
`

// GetByHash retrieves an API key by its SHA-256 hash (with caching).
// Revocation and expiry are checked by the caller, not here, so that
// cached entries keep producing accurate error codes.
func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	if cached, found := r.cache.Get(keyHash); found {
		return cached.(*models.APIKey), nil
	}

	var key models.APIKey
	query := `SELECT` + apiKeyColumns + `FROM api_keys WHERE key_hash = $1`

	err := r.db.conn.GetContext(ctx, &key, query, keyHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}

	r.cache.Set(keyHash, &key)
	return &key, nil
}

// GetByID retrieves an API key by ID.
func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*models.APIKey, error) {
	var key models.APIKey
	query := `SELECT` + apiKeyColumns + `FROM api_keys WHERE id = $1`

	err := r.db.conn.GetContext(ctx, &key, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to get API key: %w", err)
	}
	return &key, nil
}

// TouchLastUsed updates the key's last_used_at timestamp.
func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to touch API key: %w", err)
	}
	return nil
}

// Invalidate drops a key hash from the cache (call on revocation).
func (r *APIKeyRepository) Invalidate(keyHash string) {
	r.cache.Delete(keyHash)
}
