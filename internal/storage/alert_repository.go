package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tokentra/internal/models"
)

// AlertRepository stores alert rules and their firing history.
type AlertRepository struct {
	db *DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// ListEnabled returns an organization's enabled alert rules.
func (r *AlertRepository) ListEnabled(ctx context.Context, orgID string) ([]models.Alert, error) {
	var alerts []models.Alert
	query := `
		SELECT id, organization_id, type, threshold, scope, scope_id, enabled, created_at
		FROM alerts
		WHERE organization_id = $1 AND enabled = TRUE`

	if err := r.db.conn.SelectContext(ctx, &alerts, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// LastTriggeredAt returns when the alert last fired. Returns a zero
// time if it never has.
func (r *AlertRepository) LastTriggeredAt(ctx context.Context, alertID string) (time.Time, error) {
	var triggered time.Time
	query := `
		SELECT triggered_at FROM alert_events
		WHERE alert_id = $1
		ORDER BY triggered_at DESC
		LIMIT 1`

	err := r.db.conn.GetContext(ctx, &triggered, query, alertID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get last alert event: %w", err)
	}
	return triggered, nil
}

// RecordEvent stores one firing of an alert.
func (r *AlertRepository) RecordEvent(ctx context.Context, event *models.AlertEvent) error {
	query := `
		INSERT INTO alert_events (organization_id, alert_id, triggered_at, data)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	err := r.db.conn.QueryRowxContext(ctx, query,
		event.OrganizationID, event.AlertID, event.TriggeredAt, event.Data,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to record alert event: %w", err)
	}
	return nil
}
