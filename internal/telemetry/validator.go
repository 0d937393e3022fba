package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var validProviders = map[string]bool{
	"openai": true, "anthropic": true, "google": true, "azure": true,
	"aws": true, "xai": true, "deepseek": true, "mistral": true,
	"cohere": true, "groq": true,
}

var validEnvironments = map[string]bool{
	"production": true, "staging": true, "development": true, "test": true,
}

var validCacheHitTypes = map[string]bool{
	"exact": true, "semantic": true, "none": true,
}

var validErrorTypes = map[string]bool{
	"rate_limit": true, "auth": true, "timeout": true,
	"server": true, "client": true, "unknown": true,
}

var validSDKLanguages = map[string]bool{
	"typescript": true, "javascript": true, "python": true,
	"go": true, "java": true, "ruby": true,
}

// InvalidEvent reports why one batch entry was rejected, by its
// position in the submitted batch.
type InvalidEvent struct {
	Index  int      `json:"index"`
	Errors []string `json:"errors"`
}

// Validate parses and validates a single raw event. On failure it
// returns the field-level error messages; the event is nil.
func Validate(raw json.RawMessage) (*Event, []string) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, []string{fmt.Sprintf("%s: expected %s", typeErr.Field, typeErr.Type)}
		}
		return nil, []string{"invalid event object"}
	}

	var errs []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(format, args...))
		}
	}

	check(validProviders[event.Provider], "provider: must be a supported provider")
	check(event.Model != "" && len(event.Model) <= 100, "model: must be 1-100 characters")
	check(event.InputTokens != nil && *event.InputTokens >= 0, "input_tokens: must be a non-negative integer")
	check(event.OutputTokens != nil && *event.OutputTokens >= 0, "output_tokens: must be a non-negative integer")

	if event.RequestID != nil {
		_, err := uuid.Parse(*event.RequestID)
		check(err == nil, "request_id: must be a UUID")
	}
	if event.Timestamp != nil {
		_, err := time.Parse(time.RFC3339, *event.Timestamp)
		check(err == nil, "timestamp: must be an ISO 8601 datetime")
	}
	if event.CachedTokens != nil {
		check(*event.CachedTokens >= 0, "cached_tokens: must be a non-negative integer")
	}
	for name, cost := range map[string]*float64{
		"input_cost": event.InputCost, "output_cost": event.OutputCost,
		"cached_cost": event.CachedCost, "total_cost": event.TotalCost,
	} {
		if cost != nil {
			check(*cost >= 0, "%s: must be non-negative", name)
		}
	}
	if event.LatencyMs != nil {
		check(*event.LatencyMs >= 0, "latency_ms: must be a non-negative integer")
	}
	if event.TimeToFirstTokenMs != nil {
		check(*event.TimeToFirstTokenMs >= 0, "time_to_first_token_ms: must be a non-negative integer")
	}
	for name, field := range map[string]*string{
		"feature": event.Feature, "team": event.Team, "project": event.Project,
		"cost_center": event.CostCenter, "user_id": event.UserID,
		"original_model": event.OriginalModel, "routed_by_rule": event.RoutedByRule,
		"error_code": event.ErrorCode, "method_path": event.MethodPath,
	} {
		if field != nil {
			check(len(*field) <= 100, "%s: must be at most 100 characters", name)
		}
	}
	if event.Environment != nil {
		check(validEnvironments[*event.Environment], "environment: must be one of production, staging, development, test")
	}
	if event.CacheHitType != nil {
		check(validCacheHitTypes[*event.CacheHitType], "cache_hit_type: must be one of exact, semantic, none")
	}
	if event.ErrorType != nil {
		check(validErrorTypes[*event.ErrorType], "error_type: must be a known error type")
	}
	if event.ErrorMessage != nil {
		check(len(*event.ErrorMessage) <= 1000, "error_message: must be at most 1000 characters")
	}
	if event.PromptHash != nil {
		check(len(*event.PromptHash) <= 64, "prompt_hash: must be at most 64 characters")
	}
	if event.SDKVersion != nil {
		check(len(*event.SDKVersion) <= 20, "sdk_version: must be at most 20 characters")
	}
	if event.SDKLanguage != nil {
		check(validSDKLanguages[*event.SDKLanguage], "sdk_language: must be a known SDK language")
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return &event, nil
}

// ValidateBatch partitions a raw batch into valid events and per-index
// rejection reasons. Every entry lands in exactly one of the two.
func ValidateBatch(raw []json.RawMessage) ([]*Event, []InvalidEvent) {
	var valid []*Event
	var invalid []InvalidEvent
	for i, entry := range raw {
		event, errs := Validate(entry)
		if event != nil {
			valid = append(valid, event)
		} else {
			invalid = append(invalid, InvalidEvent{Index: i, Errors: errs})
		}
	}
	return valid, invalid
}
