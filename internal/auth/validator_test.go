package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentra/internal/models"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

type fakeKeyStore struct {
	mu      sync.Mutex
	keys    map[string]*models.APIKey
	touched []string
}

func (s *fakeKeyStore) GetByHash(_ context.Context, keyHash string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key, ok := s.keys[keyHash]; ok {
		return key, nil
	}
	return nil, storage.ErrAPIKeyNotFound
}

func (s *fakeKeyStore) TouchLastUsed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = append(s.touched, id)
	return nil
}

const testRawKey = "tk_live_0123456789abcdef"

func newTestValidator(keys ...*models.APIKey) (*Validator, *fakeKeyStore) {
	store := &fakeKeyStore{keys: map[string]*models.APIKey{}}
	for _, key := range keys {
		store.keys[key.KeyHash] = key
	}
	return NewValidator(store, 1000, 100000, utils.NewLogger("test", utils.Critical)), store
}

func usageWriteKey() *models.APIKey {
	return &models.APIKey{
		ID:             "key-1",
		OrganizationID: "org-1",
		KeyHash:        utils.HashString(testRawKey),
		Scopes:         []string{"usage:write", "usage:read"},
	}
}

func TestValidateKeySuccess(t *testing.T) {
	validator, store := newTestValidator(usageWriteKey())

	key, apiErr := validator.ValidateKey(context.Background(), testRawKey, "usage:write")

	require.Nil(t, apiErr)
	require.NotNil(t, key)
	assert.Equal(t, "org-1", key.OrganizationID)

	// last_used_at update happens in the background.
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.touched) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestValidateKeyFormat(t *testing.T) {
	validator, _ := newTestValidator()

	for _, raw := range []string{
		"",
		"short",
		"sk_live_0123456789abcdef",
		"tk_prod_0123456789abcdef",
		"tk_live_short",
	} {
		_, apiErr := validator.ValidateKey(context.Background(), raw, "usage:write")
		require.NotNil(t, apiErr, "key %q should be rejected", raw)
		assert.Equal(t, "INVALID_KEY_FORMAT", apiErr.Code)
		assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	}

	// tt_ enterprise prefix and test keys are accepted formats.
	for _, raw := range []string{"tt_live_0123456789abcdef", "tk_test_0123456789abcdef"} {
		_, apiErr := validator.ValidateKey(context.Background(), raw, "usage:write")
		require.NotNil(t, apiErr)
		assert.Equal(t, "INVALID_KEY", apiErr.Code, "key %q should pass format and fail lookup", raw)
	}
}

func TestValidateKeyNotFound(t *testing.T) {
	validator, _ := newTestValidator()

	_, apiErr := validator.ValidateKey(context.Background(), testRawKey, "usage:write")

	require.NotNil(t, apiErr)
	assert.Equal(t, "INVALID_KEY", apiErr.Code)
}

func TestValidateKeyRevoked(t *testing.T) {
	key := usageWriteKey()
	revoked := time.Now().Add(-time.Hour)
	key.RevokedAt = &revoked
	validator, _ := newTestValidator(key)

	_, apiErr := validator.ValidateKey(context.Background(), testRawKey, "usage:write")

	require.NotNil(t, apiErr)
	assert.Equal(t, "KEY_REVOKED", apiErr.Code)
}

func TestValidateKeyExpired(t *testing.T) {
	key := usageWriteKey()
	expired := time.Now().Add(-time.Minute)
	key.ExpiresAt = &expired
	validator, _ := newTestValidator(key)

	_, apiErr := validator.ValidateKey(context.Background(), testRawKey, "usage:write")

	require.NotNil(t, apiErr)
	assert.Equal(t, "KEY_EXPIRED", apiErr.Code)
}

func TestValidateKeyInsufficientScope(t *testing.T) {
	key := usageWriteKey()
	key.Scopes = []string{"usage:read"}
	validator, _ := newTestValidator(key)

	_, apiErr := validator.ValidateKey(context.Background(), testRawKey, "usage:write")

	require.NotNil(t, apiErr)
	assert.Equal(t, "INSUFFICIENT_SCOPE", apiErr.Code)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestValidateKeyAdminScope(t *testing.T) {
	key := usageWriteKey()
	key.Scopes = []string{"admin"}
	validator, _ := newTestValidator(key)

	_, apiErr := validator.ValidateKey(context.Background(), testRawKey, "usage:write")

	assert.Nil(t, apiErr)
}

func TestLimitsDefaults(t *testing.T) {
	validator, _ := newTestValidator()

	perMinute, perDay := validator.Limits(&models.APIKey{})
	assert.Equal(t, 1000, perMinute)
	assert.Equal(t, 100000, perDay)

	perMinute, perDay = validator.Limits(&models.APIKey{RateLimitPerMinute: 60, RateLimitPerDay: 5000})
	assert.Equal(t, 60, perMinute)
	assert.Equal(t, 5000, perDay)
}
