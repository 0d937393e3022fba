package models

import (
	"time"

	"github.com/lib/pq"
)

// UsageRecord is one row of the append-only SDK usage ledger. Records
// are created once by the ingestion pipeline and never mutated.
type UsageRecord struct {
	ID             string    `db:"id" json:"id,omitempty"`
	OrganizationID string    `db:"organization_id" json:"organization_id"`
	APIKeyID       string    `db:"api_key_id" json:"api_key_id"`
	RequestID      string    `db:"request_id" json:"request_id"`
	Timestamp      time.Time `db:"timestamp" json:"timestamp"`

	Provider   string  `db:"provider" json:"provider"`
	Model      string  `db:"model" json:"model"`
	MethodPath *string `db:"method_path" json:"method_path,omitempty"`

	InputTokens  int `db:"input_tokens" json:"input_tokens"`
	OutputTokens int `db:"output_tokens" json:"output_tokens"`
	CachedTokens int `db:"cached_tokens" json:"cached_tokens"`

	InputCost  float64 `db:"input_cost" json:"input_cost"`
	OutputCost float64 `db:"output_cost" json:"output_cost"`
	CachedCost float64 `db:"cached_cost" json:"cached_cost"`

	LatencyMs          int  `db:"latency_ms" json:"latency_ms"`
	TimeToFirstTokenMs *int `db:"time_to_first_token_ms" json:"time_to_first_token_ms,omitempty"`

	// Resolved attribution
	Feature      *string        `db:"feature" json:"feature,omitempty"`
	TeamID       *string        `db:"team_id" json:"team_id,omitempty"`
	ProjectID    *string        `db:"project_id" json:"project_id,omitempty"`
	CostCenterID *string        `db:"cost_center_id" json:"cost_center_id,omitempty"`
	UserIDs      pq.StringArray `db:"user_ids" json:"user_ids"`
	Environment  string         `db:"environment" json:"environment"`
	Metadata     JSONB          `db:"metadata" json:"metadata,omitempty"`

	// Caching and routing flags reported by the SDK
	WasCached     bool    `db:"was_cached" json:"was_cached"`
	CacheHitType  *string `db:"cache_hit_type" json:"cache_hit_type,omitempty"`
	OriginalModel *string `db:"original_model" json:"original_model,omitempty"`
	RoutedByRule  *string `db:"routed_by_rule" json:"routed_by_rule,omitempty"`

	IsError      bool    `db:"is_error" json:"is_error"`
	ErrorCode    *string `db:"error_code" json:"error_code,omitempty"`
	ErrorType    *string `db:"error_type" json:"error_type,omitempty"`
	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`

	PromptHash *string `db:"prompt_hash" json:"prompt_hash,omitempty"`

	SDKVersion  string `db:"sdk_version" json:"sdk_version"`
	SDKLanguage string `db:"sdk_language" json:"sdk_language"`
	IsStreaming bool   `db:"is_streaming" json:"is_streaming"`

	Source    string    `db:"source" json:"source"`
	CreatedAt time.Time `db:"created_at" json:"created_at,omitempty"`
}

// TotalCost is the sum of the stored cost breakdown. The total is not a
// separate column; it is always derivable.
func (r *UsageRecord) TotalCost() float64 {
	return r.InputCost + r.OutputCost + r.CachedCost
}

// TotalTokens returns input plus output tokens.
func (r *UsageRecord) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Failed reports whether this request wasted spend on an error or timeout.
func (r *UsageRecord) Failed() bool {
	if r.IsError {
		return true
	}
	return r.ErrorType != nil && *r.ErrorType == "timeout"
}
