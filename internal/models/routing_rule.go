package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Routing rule types. Rules are deposited configuration; enforcement
// happens in the SDK and is outside this service.
const (
	RuleTypeModelRoute = "model_route"
	RuleTypeCache      = "cache"
	RuleTypeCompress   = "compress"
	RuleTypeRateLimit  = "rate_limit"
	RuleTypeBatch      = "batch"
)

// RoutingCondition is one predicate a request must satisfy for the rule
// to match.
type RoutingCondition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// ConditionList stores rule conditions as a JSON array column.
type ConditionList []RoutingCondition

// Value implements driver.Valuer
func (c ConditionList) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]RoutingCondition{})
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *ConditionList) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into ConditionList", value)
	}
	return json.Unmarshal(bytes, c)
}

// RoutingRule is the enforcement artifact created when a recommendation
// is applied. Immutable once created except for the enabled flag.
type RoutingRule struct {
	ID             string        `db:"id"`
	OrganizationID string        `db:"organization_id"`
	Name           string        `db:"name"`
	Description    string        `db:"description"`
	RuleType       string        `db:"rule_type"`
	Priority       int           `db:"priority"`
	Conditions     ConditionList `db:"conditions"`
	Actions        JSONB         `db:"actions"`
	Enabled        bool          `db:"enabled"`
	CreatedFrom    *string       `db:"created_from_recommendation_id"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}
