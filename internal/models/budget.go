package models

import (
	"time"

	"github.com/lib/pq"
)

// Budget periods.
const (
	BudgetDaily     = "daily"
	BudgetWeekly    = "weekly"
	BudgetMonthly   = "monthly"
	BudgetQuarterly = "quarterly"
	BudgetYearly    = "yearly"
)

// Budget is a spending limit with alert thresholds, checked by the
// event processor as usage arrives.
type Budget struct {
	ID              string          `db:"id"`
	OrganizationID  string          `db:"organization_id"`
	Name            string          `db:"name"`
	Amount          float64         `db:"amount"`
	Period          string          `db:"period"`
	ScopeType       string          `db:"scope_type"`
	ScopeID         *string         `db:"scope_id"`
	AlertThresholds pq.Float64Array `db:"alert_thresholds"`
	Status          string          `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
}

// PeriodStart returns the start of the current budget period.
func (b *Budget) PeriodStart(now time.Time) time.Time {
	switch b.Period {
	case BudgetDaily:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case BudgetWeekly:
		return time.Date(now.Year(), now.Month(), now.Day()-int(now.Weekday()), 0, 0, 0, 0, now.Location())
	case BudgetQuarterly:
		quarter := (int(now.Month()) - 1) / 3
		return time.Date(now.Year(), time.Month(quarter*3+1), 1, 0, 0, 0, 0, now.Location())
	case BudgetYearly:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default: // monthly
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
}

// Thresholds returns the configured alert thresholds, defaulting to
// 50/80/100 percent when none are set.
func (b *Budget) Thresholds() []float64 {
	if len(b.AlertThresholds) == 0 {
		return []float64{50, 80, 100}
	}
	return b.AlertThresholds
}

// BudgetAlert records that a threshold notification was sent for a
// budget in the current period, so it is only sent once.
type BudgetAlert struct {
	ID          string    `db:"id"`
	BudgetID    string    `db:"budget_id"`
	Threshold   float64   `db:"threshold"`
	PercentUsed float64   `db:"percent_used"`
	CreatedAt   time.Time `db:"created_at"`
}
