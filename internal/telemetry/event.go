// Package telemetry defines the SDK wire event and its validation
// rules. Events arrive in ingest batches and are enriched into usage
// records downstream.
package telemetry

// Event is one telemetry event as sent by an SDK. Optional fields are
// pointers so absence is distinguishable from a zero value.
type Event struct {
	RequestID *string `json:"request_id,omitempty"`
	Timestamp *string `json:"timestamp,omitempty"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model"`

	InputTokens  *int `json:"input_tokens"`
	OutputTokens *int `json:"output_tokens"`
	CachedTokens *int `json:"cached_tokens,omitempty"`

	InputCost  *float64 `json:"input_cost,omitempty"`
	OutputCost *float64 `json:"output_cost,omitempty"`
	CachedCost *float64 `json:"cached_cost,omitempty"`
	TotalCost  *float64 `json:"total_cost,omitempty"`

	LatencyMs          *int `json:"latency_ms,omitempty"`
	TimeToFirstTokenMs *int `json:"time_to_first_token_ms,omitempty"`

	Feature     *string        `json:"feature,omitempty"`
	Team        *string        `json:"team,omitempty"`
	Project     *string        `json:"project,omitempty"`
	CostCenter  *string        `json:"cost_center,omitempty"`
	UserID      *string        `json:"user_id,omitempty"`
	Environment *string        `json:"environment,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	WasCached     *bool   `json:"was_cached,omitempty"`
	CacheHitType  *string `json:"cache_hit_type,omitempty"`
	OriginalModel *string `json:"original_model,omitempty"`
	RoutedByRule  *string `json:"routed_by_rule,omitempty"`

	IsError      *bool   `json:"is_error,omitempty"`
	ErrorCode    *string `json:"error_code,omitempty"`
	ErrorType    *string `json:"error_type,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`

	PromptHash *string `json:"prompt_hash,omitempty"`

	SDKVersion  *string `json:"sdk_version,omitempty"`
	SDKLanguage *string `json:"sdk_language,omitempty"`

	IsStreaming *bool   `json:"is_streaming,omitempty"`
	MethodPath  *string `json:"method_path,omitempty"`
}
