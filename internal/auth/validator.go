// Package auth validates SDK API keys and dashboard sessions.
package auth

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"tokentra/internal/models"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

// Key prefixes: tt_ for enterprise keys, tk_ for current ones.
var keyFormat = regexp.MustCompile(`^(tt|tk)_(live|test)_[a-zA-Z0-9_-]{10,}$`)

// Validation error codes returned to SDK clients.
var (
	ErrInvalidKeyFormat = utils.NewAPIError("INVALID_KEY_FORMAT", "API key format is invalid", http.StatusUnauthorized)
	ErrInvalidKey       = utils.NewAPIError("INVALID_KEY", "API key not found", http.StatusUnauthorized)
	ErrKeyRevoked       = utils.NewAPIError("KEY_REVOKED", "API key has been revoked", http.StatusUnauthorized)
	ErrKeyExpired       = utils.NewAPIError("KEY_EXPIRED", "API key has expired", http.StatusUnauthorized)
)

// KeyStore is the API key lookup the validator depends on.
type KeyStore interface {
	GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// Validator authenticates raw SDK keys against the key store.
type Validator struct {
	keys     KeyStore
	logger   *utils.Logger
	defaults struct {
		perMinute int
		perDay    int
	}
}

// NewValidator creates a key validator. The default limits apply to
// keys without their own.
func NewValidator(keys KeyStore, defaultPerMinute, defaultPerDay int, logger *utils.Logger) *Validator {
	v := &Validator{keys: keys, logger: logger}
	v.defaults.perMinute = defaultPerMinute
	v.defaults.perDay = defaultPerDay
	return v
}

// ValidateKey authenticates a raw key and checks it carries the
// required scopes. Revocation and expiry are rechecked on every call
// so a cached key still fails with the right code. A successful
// validation touches last_used_at in the background.
func (v *Validator) ValidateKey(ctx context.Context, rawKey string, requiredScopes ...string) (*models.APIKey, *utils.APIError) {
	if !keyFormat.MatchString(rawKey) {
		return nil, ErrInvalidKeyFormat
	}

	key, err := v.keys.GetByHash(ctx, utils.HashString(rawKey))
	if errors.Is(err, storage.ErrAPIKeyNotFound) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		v.logger.Error("api key lookup failed", "error", err)
		return nil, utils.NewAPIError("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
	}

	if key.IsRevoked() {
		return nil, ErrKeyRevoked
	}
	if key.IsExpired() {
		return nil, ErrKeyExpired
	}
	if !key.HasScopes(requiredScopes) {
		return nil, utils.NewAPIError("INSUFFICIENT_SCOPE",
			"API key missing required scopes: "+strings.Join(requiredScopes, ", "), http.StatusForbidden)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := v.keys.TouchLastUsed(ctx, key.ID); err != nil {
			v.logger.Error("failed to update key usage stats", "key_id", key.ID, "error", err)
		}
	}()

	return key, nil
}

// Limits returns the key's rate limits, falling back to the
// deployment defaults where the key has none.
func (v *Validator) Limits(key *models.APIKey) (perMinute, perDay int) {
	perMinute, perDay = key.RateLimitPerMinute, key.RateLimitPerDay
	if perMinute <= 0 {
		perMinute = v.defaults.perMinute
	}
	if perDay <= 0 {
		perDay = v.defaults.perDay
	}
	return perMinute, perDay
}
