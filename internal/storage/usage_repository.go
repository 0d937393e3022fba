package storage

import (
	"context"
	"fmt"
	"time"

	"tokentra/internal/models"
)

// UsageRepository handles the append-only SDK usage ledger.
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// InsertBatch persists a batch of usage records in a single statement.
// The batch commits or fails as a whole; there are no partial writes.
func (r *UsageRepository) InsertBatch(ctx context.Context, records []*models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO sdk_usage_records (
			organization_id, api_key_id, request_id, timestamp,
			provider, model, method_path,
			input_tokens, output_tokens, cached_tokens,
			input_cost, output_cost, cached_cost,
			latency_ms, time_to_first_token_ms,
			feature, team_id, project_id, cost_center_id, user_ids,
			environment, metadata,
			was_cached, cache_hit_type, original_model, routed_by_rule,
			is_error, error_code, error_type, error_message,
			prompt_hash, sdk_version, sdk_language, is_streaming, source
		) VALUES (
			:organization_id, :api_key_id, :request_id, :timestamp,
			:provider, :model, :method_path,
			:input_tokens, :output_tokens, :cached_tokens,
			:input_cost, :output_cost, :cached_cost,
			:latency_ms, :time_to_first_token_ms,
			:feature, :team_id, :project_id, :cost_center_id, :user_ids,
			:environment, :metadata,
			:was_cached, :cache_hit_type, :original_model, :routed_by_rule,
			:is_error, :error_code, :error_type, :error_message,
			:prompt_hash, :sdk_version, :sdk_language, :is_streaming, :source
		)`

	if _, err := r.db.conn.NamedExecContext(ctx, query, records); err != nil {
		return fmt.Errorf("failed to insert usage records: %w", err)
	}
	return nil
}

// RecentUsage returns an organization's usage records since a cutoff,
// newest first. Used by the optimization engine's 30-day window.
func (r *UsageRepository) RecentUsage(ctx context.Context, orgID string, since time.Time) ([]models.UsageRecord, error) {
	var records []models.UsageRecord
	query := `
		SELECT
			id, organization_id, api_key_id, request_id, timestamp,
			provider, model, method_path,
			input_tokens, output_tokens, cached_tokens,
			input_cost, output_cost, cached_cost,
			latency_ms, time_to_first_token_ms,
			feature, team_id, project_id, cost_center_id, user_ids,
			environment, metadata,
			was_cached, cache_hit_type, original_model, routed_by_rule,
			is_error, error_code, error_type, error_message,
			prompt_hash, sdk_version, sdk_language, is_streaming,
			source, created_at
		FROM sdk_usage_records
		WHERE organization_id = $1 AND timestamp >= $2
		ORDER BY timestamp DESC`

	if err := r.db.conn.SelectContext(ctx, &records, query, orgID, since); err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	return records, nil
}

// PeriodSpend sums an organization's cost since a period start.
func (r *UsageRepository) PeriodSpend(ctx context.Context, orgID string, since time.Time) (float64, error) {
	var total float64
	query := `
		SELECT COALESCE(SUM(input_cost + output_cost + cached_cost), 0)
		FROM sdk_usage_records
		WHERE organization_id = $1 AND timestamp >= $2`

	if err := r.db.conn.GetContext(ctx, &total, query, orgID, since); err != nil {
		return 0, fmt.Errorf("failed to sum period spend: %w", err)
	}
	return total, nil
}

// AverageHourlyCost returns the organization's mean hourly spend since
// a cutoff. Used as the usage-spike baseline.
func (r *UsageRepository) AverageHourlyCost(ctx context.Context, orgID string, since time.Time) (float64, error) {
	var avg float64
	query := `
		SELECT COALESCE(AVG(hourly.cost), 0) FROM (
			SELECT SUM(input_cost + output_cost + cached_cost) AS cost
			FROM sdk_usage_records
			WHERE organization_id = $1 AND timestamp >= $2
			GROUP BY date_trunc('hour', timestamp)
		) hourly`

	if err := r.db.conn.GetContext(ctx, &avg, query, orgID, since); err != nil {
		return 0, fmt.Errorf("failed to average hourly cost: %w", err)
	}
	return avg, nil
}

// ListOrganizationIDs returns organizations with any usage, for the
// batch analysis run.
func (r *UsageRepository) ListOrganizationIDs(ctx context.Context, limit int) ([]string, error) {
	var ids []string
	query := `SELECT id FROM organizations ORDER BY created_at LIMIT $1`

	if err := r.db.conn.SelectContext(ctx, &ids, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return ids, nil
}
