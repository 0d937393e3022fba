package models

import "time"

// Notification priorities.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	PriorityMedium   = "medium"
	PriorityLow      = "low"
)

// Notification is an in-app notification row, optionally mirrored to
// email by the notifier.
type Notification struct {
	ID             string     `db:"id"`
	OrganizationID string     `db:"organization_id"`
	Type           string     `db:"type"`
	Title          string     `db:"title"`
	Message        string     `db:"message"`
	Priority       string     `db:"priority"`
	Data           JSONB      `db:"data"`
	ReadAt         *time.Time `db:"read_at"`
	CreatedAt      time.Time  `db:"created_at"`
}
