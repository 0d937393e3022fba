package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentra/internal/attribution"
	"tokentra/internal/models"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

type fakeUsageStore struct {
	mu       sync.Mutex
	inserted [][]*models.UsageRecord
	err      error
}

func (s *fakeUsageStore) InsertBatch(_ context.Context, records []*models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, records)
	return nil
}

type fakeDispatcher struct {
	mu         sync.Mutex
	dispatched [][]*models.UsageRecord
}

func (d *fakeDispatcher) Dispatch(_ context.Context, records []*models.UsageRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatched = append(d.dispatched, records)
}

type staticDirectory struct {
	teams map[string]string
}

func (d *staticDirectory) TeamIDByName(_ context.Context, _, name string) (string, error) {
	if id, ok := d.teams[name]; ok {
		return id, nil
	}
	return "", storage.ErrEntityNotFound
}

func (d *staticDirectory) ProjectIDByName(context.Context, string, string) (string, error) {
	return "", storage.ErrEntityNotFound
}

func (d *staticDirectory) CostCenterIDByName(context.Context, string, string) (string, error) {
	return "", storage.ErrEntityNotFound
}

func newTestPipeline(store *fakeUsageStore, dispatcher *fakeDispatcher) *Pipeline {
	logger := utils.NewLogger("test", utils.Critical)
	resolver := attribution.NewResolver(
		&staticDirectory{teams: map[string]string{"platform": "team-1"}},
		storage.NewLRUCache(10, time.Minute), logger)
	return NewPipeline(resolver, store, dispatcher, logger)
}

func rawBatch(t *testing.T, events ...map[string]any) []json.RawMessage {
	t.Helper()
	batch := make([]json.RawMessage, len(events))
	for i, event := range events {
		data, err := json.Marshal(event)
		require.NoError(t, err)
		batch[i] = data
	}
	return batch
}

func validEvent(overrides map[string]any) map[string]any {
	event := map[string]any{
		"provider":      "openai",
		"model":         "gpt-4o-mini",
		"input_tokens":  100,
		"output_tokens": 50,
	}
	for k, v := range overrides {
		event[k] = v
	}
	return event
}

func TestProcessBatchShape(t *testing.T) {
	pipeline := newTestPipeline(&fakeUsageStore{}, &fakeDispatcher{})

	_, apiErr := pipeline.Process(context.Background(), "org-1", "key-1", nil)
	require.NotNil(t, apiErr)
	assert.Equal(t, "EMPTY_BATCH", apiErr.Code)

	oversized := make([]json.RawMessage, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = json.RawMessage(`{}`)
	}
	_, apiErr = pipeline.Process(context.Background(), "org-1", "key-1", oversized)
	require.NotNil(t, apiErr)
	assert.Equal(t, "BATCH_TOO_LARGE", apiErr.Code)
}

func TestProcessAllInvalid(t *testing.T) {
	store := &fakeUsageStore{}
	dispatcher := &fakeDispatcher{}
	pipeline := newTestPipeline(store, dispatcher)

	_, apiErr := pipeline.Process(context.Background(), "org-1", "key-1", rawBatch(t,
		validEvent(map[string]any{"provider": "huggingface"}),
		validEvent(map[string]any{"model": ""}),
	))

	require.NotNil(t, apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.NotNil(t, apiErr.Details)

	// Nothing may be written or dispatched when the whole batch fails.
	assert.Empty(t, store.inserted)
	assert.Empty(t, dispatcher.dispatched)
}

func TestProcessPartialSuccess(t *testing.T) {
	store := &fakeUsageStore{}
	dispatcher := &fakeDispatcher{}
	pipeline := newTestPipeline(store, dispatcher)

	result, apiErr := pipeline.Process(context.Background(), "org-1", "key-1", rawBatch(t,
		validEvent(nil),
		validEvent(map[string]any{"provider": "huggingface"}),
		validEvent(map[string]any{"model": "claude-3-5-haiku-20241022", "provider": "anthropic"}),
	))

	require.Nil(t, apiErr)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)

	require.Len(t, store.inserted, 1)
	assert.Len(t, store.inserted[0], 2)
	require.Len(t, dispatcher.dispatched, 1)
	assert.Len(t, dispatcher.dispatched[0], 2)
}

func TestProcessEnrichment(t *testing.T) {
	store := &fakeUsageStore{}
	pipeline := newTestPipeline(store, &fakeDispatcher{})

	result, apiErr := pipeline.Process(context.Background(), "org-1", "key-1", rawBatch(t,
		validEvent(map[string]any{
			"team":    "platform",
			"user_id": "user-9",
		}),
	))

	require.Nil(t, apiErr)
	assert.Equal(t, 1, result.Processed)

	require.Len(t, store.inserted, 1)
	record := store.inserted[0][0]

	assert.Equal(t, "org-1", record.OrganizationID)
	assert.Equal(t, "key-1", record.APIKeyID)
	assert.Equal(t, "sdk", record.Source)
	assert.Equal(t, "production", record.Environment)
	assert.Equal(t, "1.0.0", record.SDKVersion)
	assert.Equal(t, "typescript", record.SDKLanguage)

	// Missing request IDs are generated.
	_, err := uuid.Parse(record.RequestID)
	assert.NoError(t, err)

	require.NotNil(t, record.TeamID)
	assert.Equal(t, "team-1", *record.TeamID)
	assert.Equal(t, []string{"user-9"}, []string(record.UserIDs))

	// gpt-4o-mini at 0.15/0.60 per 1M tokens.
	assert.InDelta(t, 100.0/1_000_000*0.15, record.InputCost, 1e-12)
	assert.InDelta(t, 50.0/1_000_000*0.6, record.OutputCost, 1e-12)
}

func TestProcessSelfReportedCosts(t *testing.T) {
	store := &fakeUsageStore{}
	pipeline := newTestPipeline(store, &fakeDispatcher{})

	_, apiErr := pipeline.Process(context.Background(), "org-1", "key-1", rawBatch(t,
		validEvent(map[string]any{
			"input_cost":  0.5,
			"output_cost": 1.5,
		}),
	))

	require.Nil(t, apiErr)
	record := store.inserted[0][0]
	assert.Equal(t, 0.5, record.InputCost)
	assert.Equal(t, 1.5, record.OutputCost)
}

func TestProcessPreservesEventTimestamp(t *testing.T) {
	store := &fakeUsageStore{}
	pipeline := newTestPipeline(store, &fakeDispatcher{})

	_, apiErr := pipeline.Process(context.Background(), "org-1", "key-1", rawBatch(t,
		validEvent(map[string]any{"timestamp": "2026-08-14T10:30:00Z"}),
	))

	require.Nil(t, apiErr)
	record := store.inserted[0][0]
	assert.Equal(t, time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC), record.Timestamp.UTC())
}

func TestProcessInsertFailure(t *testing.T) {
	store := &fakeUsageStore{err: errors.New("db down")}
	dispatcher := &fakeDispatcher{}
	pipeline := newTestPipeline(store, dispatcher)

	_, apiErr := pipeline.Process(context.Background(), "org-1", "key-1", rawBatch(t, validEvent(nil)))

	require.NotNil(t, apiErr)
	assert.Equal(t, "INGESTION_ERROR", apiErr.Code)
	assert.Empty(t, dispatcher.dispatched)
}
