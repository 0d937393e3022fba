package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentra/internal/attribution"
	"tokentra/internal/auth"
	"tokentra/internal/ingest"
	"tokentra/internal/models"
	"tokentra/internal/ratelimit"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

const testRawKey = "tk_live_abcdef123456"

type fakeKeyStore struct {
	keys map[string]*models.APIKey
}

func (s *fakeKeyStore) GetByHash(_ context.Context, keyHash string) (*models.APIKey, error) {
	if key, ok := s.keys[keyHash]; ok {
		return key, nil
	}
	return nil, storage.ErrAPIKeyNotFound
}

func (s *fakeKeyStore) TouchLastUsed(context.Context, string) error { return nil }

type nullDirectory struct{}

func (nullDirectory) TeamIDByName(context.Context, string, string) (string, error) {
	return "", storage.ErrEntityNotFound
}

func (nullDirectory) ProjectIDByName(context.Context, string, string) (string, error) {
	return "", storage.ErrEntityNotFound
}

func (nullDirectory) CostCenterIDByName(context.Context, string, string) (string, error) {
	return "", storage.ErrEntityNotFound
}

type capturingStore struct {
	mu       sync.Mutex
	inserted [][]*models.UsageRecord
}

func (s *capturingStore) InsertBatch(_ context.Context, records []*models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, records)
	return nil
}

type nullDispatcher struct{}

func (nullDispatcher) Dispatch(context.Context, []*models.UsageRecord) {}

func testKey(perMinute int) *models.APIKey {
	return &models.APIKey{
		ID:                 "key-1",
		OrganizationID:     "org-1",
		Scopes:             []string{"usage:write"},
		RateLimitPerMinute: perMinute,
		RateLimitPerDay:    100000,
	}
}

func newIngestHandler(key *models.APIKey) (*IngestHandler, *capturingStore) {
	logger := utils.NewLogger("test", utils.Critical)
	keys := &fakeKeyStore{keys: map[string]*models.APIKey{}}
	if key != nil {
		keys.keys[utils.HashString(testRawKey)] = key
	}

	validator := auth.NewValidator(keys, 1000, 100000, logger)
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), logger)

	store := &capturingStore{}
	resolver := attribution.NewResolver(nullDirectory{}, storage.NewLRUCache(10, time.Minute), logger)
	pipeline := ingest.NewPipeline(resolver, store, nullDispatcher{}, logger)

	return NewIngestHandler(validator, limiter, pipeline, "test", logger), store
}

func ingestBody(t *testing.T, events ...map[string]any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(map[string]any{"events": events})
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func validEvent() map[string]any {
	return map[string]any{
		"provider":      "openai",
		"model":         "gpt-4o",
		"input_tokens":  100,
		"output_tokens": 50,
	}
}

func TestIngestHandlerAcceptsBatch(t *testing.T) {
	handler, store := newIngestHandler(testKey(0))

	req := httptest.NewRequest(http.MethodPost, "/v1/sdk/ingest", ingestBody(t, validEvent(), validEvent()))
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Processed)
	assert.Equal(t, 0, resp.Failed)

	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Remaining-Minute"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset-Day"))
	assert.NotEmpty(t, rec.Header().Get("X-Processing-Time-Ms"))

	require.Len(t, store.inserted, 1)
	assert.Len(t, store.inserted[0], 2)
}

func TestIngestHandlerReportsPartialFailure(t *testing.T) {
	handler, _ := newIngestHandler(testKey(0))

	bad := map[string]any{"provider": "openai"}
	req := httptest.NewRequest(http.MethodPost, "/v1/sdk/ingest", ingestBody(t, validEvent(), bad))
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ingestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Processed)
	assert.Equal(t, 1, resp.Failed)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, 1, resp.Errors[0].Index)
}

func TestIngestHandlerRequiresAuth(t *testing.T) {
	handler, _ := newIngestHandler(testKey(0))

	req := httptest.NewRequest(http.MethodPost, "/v1/sdk/ingest", ingestBody(t, validEvent()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "MISSING_AUTH")
}

func TestIngestHandlerRejectsUnknownKey(t *testing.T) {
	handler, _ := newIngestHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/sdk/ingest", ingestBody(t, validEvent()))
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_KEY")
}

func TestIngestHandlerEnforcesRateLimit(t *testing.T) {
	handler, _ := newIngestHandler(testKey(1))

	first := httptest.NewRequest(http.MethodPost, "/v1/sdk/ingest", ingestBody(t, validEvent()))
	first.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	second := httptest.NewRequest(http.MethodPost, "/v1/sdk/ingest", ingestBody(t, validEvent()))
	second.Header.Set("Authorization", "Bearer "+testRawKey)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Contains(t, rec.Body.String(), "resetAt")
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining-Minute"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset-Minute"))
}

func TestIngestHandlerRejectsMissingEvents(t *testing.T) {
	handler, _ := newIngestHandler(testKey(0))

	req := httptest.NewRequest(http.MethodPost, "/v1/sdk/ingest", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Authorization", "Bearer "+testRawKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_REQUEST")
	assert.Contains(t, rec.Body.String(), "events array required")
}

func TestIngestHandlerHealth(t *testing.T) {
	handler, _ := newIngestHandler(testKey(0))

	req := httptest.NewRequest(http.MethodGet, "/v1/sdk/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test", resp["version"])
	assert.NotEmpty(t, resp["timestamp"])
}
