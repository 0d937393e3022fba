// Package ingest turns validated telemetry batches into persisted
// usage records. The pipeline owns everything between request parsing
// and the success response: batch shape checks, per-event validation,
// attribution and cost enrichment, the bulk insert and the async
// hand-off to the event processor.
package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"tokentra/internal/attribution"
	"tokentra/internal/models"
	"tokentra/internal/pricing"
	"tokentra/internal/telemetry"
	"tokentra/internal/utils"
)

// MaxBatchSize is the hard cap on events per ingest request.
const MaxBatchSize = 100

// Batch shape errors.
var (
	ErrEmptyBatch    = utils.NewAPIError("EMPTY_BATCH", "At least one event required", http.StatusBadRequest)
	ErrBatchTooLarge = utils.NewAPIError("BATCH_TOO_LARGE", "Maximum 100 events per batch", http.StatusBadRequest)
	ErrAllInvalid    = utils.NewAPIError("VALIDATION_ERROR", "All events failed validation", http.StatusBadRequest)
	ErrIngestion     = utils.NewAPIError("INGESTION_ERROR", "Failed to store events", http.StatusInternalServerError)
)

// maxErrorDetails caps how many per-event errors a response carries.
const maxErrorDetails = 10

// UsageStore persists enriched records.
type UsageStore interface {
	InsertBatch(ctx context.Context, records []*models.UsageRecord) error
}

// Dispatcher hands stored records to async processing. Dispatch must
// not block the caller on downstream work.
type Dispatcher interface {
	Dispatch(ctx context.Context, records []*models.UsageRecord)
}

// Result summarizes a partially or fully successful ingest.
type Result struct {
	Processed int
	Failed    int
	// Errors holds up to maxErrorDetails per-event rejections.
	Errors []telemetry.InvalidEvent
}

// Pipeline processes ingest batches for authenticated keys.
type Pipeline struct {
	resolver   *attribution.Resolver
	store      UsageStore
	dispatcher Dispatcher
	logger     *utils.Logger
	now        func() time.Time
}

// NewPipeline wires the ingest pipeline.
func NewPipeline(resolver *attribution.Resolver, store UsageStore, dispatcher Dispatcher, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Process validates, enriches and stores one batch of raw events on
// behalf of an API key.
//
// Validation is per event: a batch with any valid events succeeds
// partially, reporting the rejected indices. Only an entirely invalid
// batch is an error. The insert is all-or-nothing; on insert failure
// nothing is stored and nothing is dispatched.
func (p *Pipeline) Process(ctx context.Context, orgID, apiKeyID string, rawEvents []json.RawMessage) (*Result, *utils.APIError) {
	if len(rawEvents) > MaxBatchSize {
		return nil, ErrBatchTooLarge
	}
	if len(rawEvents) == 0 {
		return nil, ErrEmptyBatch
	}

	valid, invalid := telemetry.ValidateBatch(rawEvents)
	if len(valid) == 0 {
		return nil, ErrAllInvalid.WithDetails(truncateErrors(invalid))
	}

	records := make([]*models.UsageRecord, len(valid))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, event := range valid {
		group.Go(func() error {
			records[i] = p.enrich(groupCtx, orgID, apiKeyID, event)
			return nil
		})
	}
	group.Wait()

	if err := p.store.InsertBatch(ctx, records); err != nil {
		p.logger.Error("failed to insert usage records", "count", len(records), "error", err)
		return nil, ErrIngestion
	}

	// Fire and forget: alerting and budget checks never delay the
	// SDK response.
	p.dispatcher.Dispatch(ctx, records)

	return &Result{
		Processed: len(valid),
		Failed:    len(invalid),
		Errors:    truncateErrors(invalid),
	}, nil
}

// enrich resolves attribution and fills in costs for a validated event.
func (p *Pipeline) enrich(ctx context.Context, orgID, apiKeyID string, event *telemetry.Event) *models.UsageRecord {
	resolved := p.resolver.Resolve(ctx, orgID, attribution.Input{
		Feature:     event.Feature,
		Team:        event.Team,
		Project:     event.Project,
		CostCenter:  event.CostCenter,
		UserID:      event.UserID,
		Environment: event.Environment,
		Metadata:    event.Metadata,
	})

	record := &models.UsageRecord{
		OrganizationID: orgID,
		APIKeyID:       apiKeyID,
		RequestID:      stringOr(event.RequestID, uuid.NewString()),
		Timestamp:      p.eventTime(event),
		Provider:       event.Provider,
		Model:          event.Model,
		MethodPath:     event.MethodPath,
		InputTokens:    *event.InputTokens,
		OutputTokens:   *event.OutputTokens,
		CachedTokens:   intOr(event.CachedTokens, 0),
		LatencyMs:      intOr(event.LatencyMs, 0),

		TimeToFirstTokenMs: event.TimeToFirstTokenMs,

		Feature:      resolved.Feature,
		TeamID:       resolved.TeamID,
		ProjectID:    resolved.ProjectID,
		CostCenterID: resolved.CostCenterID,
		UserIDs:      userIDs(resolved.UserID),
		Environment:  resolved.Environment,
		Metadata:     models.JSONB(resolved.Metadata),

		WasCached:     boolOr(event.WasCached, false),
		CacheHitType:  event.CacheHitType,
		OriginalModel: event.OriginalModel,
		RoutedByRule:  event.RoutedByRule,

		IsError:      boolOr(event.IsError, false),
		ErrorCode:    event.ErrorCode,
		ErrorType:    event.ErrorType,
		ErrorMessage: event.ErrorMessage,

		PromptHash:  event.PromptHash,
		SDKVersion:  stringOr(event.SDKVersion, "1.0.0"),
		SDKLanguage: stringOr(event.SDKLanguage, "typescript"),
		IsStreaming: boolOr(event.IsStreaming, false),
		Source:      "sdk",
	}

	// Self-reported costs win; otherwise price from the table.
	if event.InputCost != nil || event.OutputCost != nil {
		record.InputCost = floatOr(event.InputCost, 0)
		record.OutputCost = floatOr(event.OutputCost, 0)
		record.CachedCost = floatOr(event.CachedCost, 0)
	} else {
		cost := pricing.Calculate(event.Provider, event.Model,
			record.InputTokens, record.OutputTokens, record.CachedTokens)
		record.InputCost = cost.Input
		record.OutputCost = cost.Output
		record.CachedCost = cost.Cached
	}

	return record
}

func (p *Pipeline) eventTime(event *telemetry.Event) time.Time {
	if event.Timestamp != nil {
		if ts, err := time.Parse(time.RFC3339, *event.Timestamp); err == nil {
			return ts
		}
	}
	return p.now().UTC()
}

func truncateErrors(invalid []telemetry.InvalidEvent) []telemetry.InvalidEvent {
	if len(invalid) > maxErrorDetails {
		return invalid[:maxErrorDetails]
	}
	return invalid
}

func userIDs(userID *string) pq.StringArray {
	if userID == nil || *userID == "" {
		return pq.StringArray{}
	}
	return pq.StringArray{*userID}
}

func stringOr(v *string, fallback string) string {
	if v != nil && *v != "" {
		return *v
	}
	return fallback
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func floatOr(v *float64, fallback float64) float64 {
	if v != nil {
		return *v
	}
	return fallback
}

func boolOr(v *bool, fallback bool) bool {
	if v != nil {
		return *v
	}
	return fallback
}
