package models

import "time"

// Organization is a tenant of the service.
type Organization struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Team is an organizational unit used for cost attribution.
type Team struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Name           string    `db:"name"`
	CreatedAt      time.Time `db:"created_at"`
}

// Project groups usage under a deliverable for chargeback.
type Project struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Name           string    `db:"name"`
	CreatedAt      time.Time `db:"created_at"`
}

// CostCenter is a finance-side allocation bucket.
type CostCenter struct {
	ID             string    `db:"id"`
	OrganizationID string    `db:"organization_id"`
	Name           string    `db:"name"`
	Code           string    `db:"code"`
	CreatedAt      time.Time `db:"created_at"`
}
