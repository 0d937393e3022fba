package storage

import (
	"context"
	"fmt"
	"time"

	"tokentra/internal/models"
)

// BudgetRepository stores budgets and the per-period record of which
// thresholds have already been notified.
type BudgetRepository struct {
	db *DB
}

// NewBudgetRepository creates a new budget repository
func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// ListActive returns an organization's active budgets.
func (r *BudgetRepository) ListActive(ctx context.Context, orgID string) ([]models.Budget, error) {
	var budgets []models.Budget
	query := `
		SELECT id, organization_id, name, amount, period, scope_type,
			scope_id, alert_thresholds, status, created_at
		FROM budgets
		WHERE organization_id = $1 AND status = 'active'`

	if err := r.db.conn.SelectContext(ctx, &budgets, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	return budgets, nil
}

// ThresholdNotified reports whether a threshold alert already went out
// for this budget in the current period.
func (r *BudgetRepository) ThresholdNotified(ctx context.Context, budgetID string, threshold float64, periodStart time.Time) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM budget_alerts
		WHERE budget_id = $1 AND threshold = $2 AND created_at >= $3`

	if err := r.db.conn.GetContext(ctx, &count, query, budgetID, threshold, periodStart); err != nil {
		return false, fmt.Errorf("failed to check budget alert: %w", err)
	}
	return count > 0, nil
}

// RecordThresholdAlert marks a threshold as notified for the current
// period.
func (r *BudgetRepository) RecordThresholdAlert(ctx context.Context, alert *models.BudgetAlert) error {
	query := `
		INSERT INTO budget_alerts (budget_id, threshold, percent_used)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.conn.QueryRowxContext(ctx, query,
		alert.BudgetID, alert.Threshold, alert.PercentUsed,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record budget alert: %w", err)
	}
	return nil
}
