package models

import "time"

// Alert types and scopes evaluated by the event processor.
const (
	AlertSpendThreshold = "spend_threshold"
	AlertErrorRate      = "error_rate"
	AlertUsageSpike     = "usage_spike"

	AlertScopeTotal   = "total"
	AlertScopeFeature = "feature"
	AlertScopeTeam    = "team"
	AlertScopeModel   = "model"
)

// Alert is a configured alert rule for an organization.
type Alert struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Type           string    `db:"type"`
	Threshold      float64   `db:"threshold"`
	Scope          string    `db:"scope"`
	ScopeID        *string   `db:"scope_id"`
	Enabled        bool      `db:"enabled"`
	CreatedAt      time.Time `db:"created_at"`
}

// AlertEvent records one firing of an alert.
type AlertEvent struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	AlertID        string    `db:"alert_id"`
	TriggeredAt    time.Time `db:"triggered_at"`
	Data           JSONB     `db:"data"`
}
