package models

import "time"

// Recommendation statuses. Pending recommendations are refreshed in
// place by analysis runs; applied and dismissed transitions happen only
// through explicit user action.
const (
	RecommendationPending   = "pending"
	RecommendationApplied   = "applied"
	RecommendationDismissed = "dismissed"
	RecommendationExpired   = "expired"
)

// Recommendation is one detected cost-optimization opportunity.
type Recommendation struct {
	ID             string     `db:"id"`
	OrganizationID string     `db:"organization_id"`
	Type           string     `db:"type"`
	Title          string     `db:"title"`
	Description    string     `db:"description"`
	Impact         JSONB      `db:"impact"`
	Details        JSONB      `db:"details"`
	Status         string     `db:"status"`
	AppliedAt      *time.Time `db:"applied_at"`
	AppliedBy      *string    `db:"applied_by"`
	DismissedAt    *time.Time `db:"dismissed_at"`
	DismissedBy    *string    `db:"dismissed_by"`
	RoutingRuleID  *string    `db:"routing_rule_id"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// IsPending reports whether the recommendation can still be applied or
// dismissed.
func (r *Recommendation) IsPending() bool {
	return r.Status == RecommendationPending
}
