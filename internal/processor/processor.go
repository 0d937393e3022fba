// Package processor runs the async side of ingestion: freshly stored
// usage records are aggregated and checked against the organization's
// alerts and budgets. Nothing here ever blocks or fails an SDK
// request.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tokentra/internal/metrics"
	"tokentra/internal/models"
	"tokentra/internal/utils"
)

// AlertCooldown is the minimum gap between two firings of one alert.
const AlertCooldown = time.Hour

// spikeBaselineWindow is how far back the usage spike baseline looks.
const spikeBaselineWindow = 7 * 24 * time.Hour

// AlertStore provides alert rules and firing history.
type AlertStore interface {
	ListEnabled(ctx context.Context, orgID string) ([]models.Alert, error)
	LastTriggeredAt(ctx context.Context, alertID string) (time.Time, error)
	RecordEvent(ctx context.Context, event *models.AlertEvent) error
}

// BudgetStore provides budgets and per-period threshold bookkeeping.
type BudgetStore interface {
	ListActive(ctx context.Context, orgID string) ([]models.Budget, error)
	ThresholdNotified(ctx context.Context, budgetID string, threshold float64, periodStart time.Time) (bool, error)
	RecordThresholdAlert(ctx context.Context, alert *models.BudgetAlert) error
}

// SpendStore provides the historical spend the checks compare against.
type SpendStore interface {
	PeriodSpend(ctx context.Context, orgID string, since time.Time) (float64, error)
	AverageHourlyCost(ctx context.Context, orgID string, since time.Time) (float64, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	Insert(ctx context.Context, n *models.Notification) error
}

// Notifier mirrors notifications to an external channel. Delivery
// failures must not fail processing.
type Notifier interface {
	Send(ctx context.Context, n *models.Notification) error
}

// Processor evaluates alert and budget rules against record batches.
type Processor struct {
	alerts        AlertStore
	budgets       BudgetStore
	spend         SpendStore
	notifications NotificationStore
	notifier      Notifier
	logger        *utils.Logger
	now           func() time.Time
}

// NewProcessor wires the event processor.
func NewProcessor(alerts AlertStore, budgets BudgetStore, spend SpendStore, notifications NotificationStore, notifier Notifier, logger *utils.Logger) *Processor {
	return &Processor{
		alerts:        alerts,
		budgets:       budgets,
		spend:         spend,
		notifications: notifications,
		notifier:      notifier,
		logger:        logger,
		now:           time.Now,
	}
}

// ProcessBatch checks one batch of stored records. Queue batches can
// mix organizations, so records are grouped and checked per org. An
// error means a check could not run at all and the batch is worth
// retrying; evaluation outcomes are never errors.
func (p *Processor) ProcessBatch(ctx context.Context, records []*models.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	var errs []error
	for orgID, orgRecords := range groupByOrg(records) {
		agg := Aggregate(orgRecords)
		if err := p.checkAlerts(ctx, orgID, agg); err != nil {
			p.logger.Error("alert check failed", "org_id", orgID, "error", err)
			errs = append(errs, err)
		}
		if err := p.checkBudgets(ctx, orgID, agg); err != nil {
			p.logger.Error("budget check failed", "org_id", orgID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func groupByOrg(records []*models.UsageRecord) map[string][]*models.UsageRecord {
	grouped := make(map[string][]*models.UsageRecord)
	for _, record := range records {
		grouped[record.OrganizationID] = append(grouped[record.OrganizationID], record)
	}
	return grouped
}

func (p *Processor) checkAlerts(ctx context.Context, orgID string, agg *Aggregated) error {
	alerts, err := p.alerts.ListEnabled(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list alerts: %w", err)
	}

	for i := range alerts {
		alert := &alerts[i]
		triggered, err := p.evaluateAlert(ctx, orgID, alert, agg)
		if err != nil {
			p.logger.Error("alert evaluation failed", "alert_id", alert.ID, "error", err)
			continue
		}
		if triggered {
			p.triggerAlert(ctx, orgID, alert, agg)
		}
	}
	return nil
}

func (p *Processor) evaluateAlert(ctx context.Context, orgID string, alert *models.Alert, agg *Aggregated) (bool, error) {
	lastTriggered, err := p.alerts.LastTriggeredAt(ctx, alert.ID)
	if err != nil {
		return false, err
	}
	if !lastTriggered.IsZero() && p.now().Sub(lastTriggered) < AlertCooldown {
		return false, nil
	}

	switch alert.Type {
	case models.AlertSpendThreshold:
		return p.evaluateSpendThreshold(alert, agg), nil
	case models.AlertErrorRate:
		if agg.RequestCount == 0 {
			return false, nil
		}
		errorRate := float64(agg.ErrorCount) / float64(agg.RequestCount) * 100
		return errorRate >= alert.Threshold, nil
	case models.AlertUsageSpike:
		return p.evaluateUsageSpike(ctx, orgID, alert, agg)
	default:
		return false, nil
	}
}

func (p *Processor) evaluateSpendThreshold(alert *models.Alert, agg *Aggregated) bool {
	switch alert.Scope {
	case models.AlertScopeTotal:
		return agg.TotalCost >= alert.Threshold
	case models.AlertScopeFeature:
		return alert.ScopeID != nil && agg.ByFeature[*alert.ScopeID].Cost >= alert.Threshold
	case models.AlertScopeTeam:
		return alert.ScopeID != nil && agg.ByTeam[*alert.ScopeID].Cost >= alert.Threshold
	case models.AlertScopeModel:
		return alert.ScopeID != nil && agg.ByModel[*alert.ScopeID].Cost >= alert.Threshold
	default:
		return false
	}
}

// evaluateUsageSpike compares the batch cost against the trailing
// hourly average. The threshold is a percentage above that baseline.
// Organizations without history never spike.
func (p *Processor) evaluateUsageSpike(ctx context.Context, orgID string, alert *models.Alert, agg *Aggregated) (bool, error) {
	baseline, err := p.spend.AverageHourlyCost(ctx, orgID, p.now().Add(-spikeBaselineWindow))
	if err != nil {
		return false, err
	}
	if baseline <= 0 {
		return false, nil
	}
	return agg.TotalCost >= baseline*(1+alert.Threshold/100), nil
}

func (p *Processor) triggerAlert(ctx context.Context, orgID string, alert *models.Alert, agg *Aggregated) {
	event := &models.AlertEvent{
		OrganizationID: orgID,
		AlertID:        alert.ID,
		TriggeredAt:    p.now(),
		Data: models.JSONB{
			"total_cost":    agg.TotalCost,
			"request_count": agg.RequestCount,
			"error_count":   agg.ErrorCount,
		},
	}
	if err := p.alerts.RecordEvent(ctx, event); err != nil {
		p.logger.Error("failed to record alert event", "alert_id", alert.ID, "error", err)
		return
	}

	p.notify(ctx, &models.Notification{
		OrganizationID: orgID,
		Type:           "alert",
		Title:          fmt.Sprintf("Alert: %s", alert.Type),
		Message:        formatAlertMessage(alert, agg),
		Priority:       models.PriorityHigh,
		Data:           models.JSONB{"alert_id": alert.ID},
	})
	metrics.AlertsTriggeredTotal.WithLabelValues(alert.Type).Inc()
	p.logger.Info("alert triggered", "alert_id", alert.ID, "type", alert.Type)
}

func formatAlertMessage(alert *models.Alert, agg *Aggregated) string {
	switch alert.Type {
	case models.AlertSpendThreshold:
		return fmt.Sprintf("Spend threshold of $%.2f exceeded. Current spend: $%.4f", alert.Threshold, agg.TotalCost)
	case models.AlertErrorRate:
		errorRate := float64(agg.ErrorCount) / float64(agg.RequestCount) * 100
		return fmt.Sprintf("Error rate of %.1f%% exceeds threshold of %g%%", errorRate, alert.Threshold)
	case models.AlertUsageSpike:
		return fmt.Sprintf("Usage spike detected. Current cost: $%.4f", agg.TotalCost)
	default:
		return fmt.Sprintf("Alert triggered: %s", alert.Type)
	}
}

func (p *Processor) checkBudgets(ctx context.Context, orgID string, agg *Aggregated) error {
	budgets, err := p.budgets.ListActive(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to list budgets: %w", err)
	}

	for i := range budgets {
		budget := &budgets[i]
		if err := p.checkBudget(ctx, orgID, budget); err != nil {
			p.logger.Error("budget check failed", "budget_id", budget.ID, "error", err)
		}
	}
	return nil
}

// checkBudget compares period spend against the budget amount. The
// batch is already stored, so PeriodSpend includes it. Each threshold
// notifies at most once per period.
func (p *Processor) checkBudget(ctx context.Context, orgID string, budget *models.Budget) error {
	periodStart := budget.PeriodStart(p.now())
	spend, err := p.spend.PeriodSpend(ctx, orgID, periodStart)
	if err != nil {
		return err
	}
	if budget.Amount <= 0 {
		return nil
	}

	percentUsed := spend / budget.Amount * 100
	for _, threshold := range budget.Thresholds() {
		if percentUsed < threshold {
			continue
		}
		notified, err := p.budgets.ThresholdNotified(ctx, budget.ID, threshold, periodStart)
		if err != nil {
			return err
		}
		if notified {
			continue
		}

		if err := p.budgets.RecordThresholdAlert(ctx, &models.BudgetAlert{
			BudgetID:    budget.ID,
			Threshold:   threshold,
			PercentUsed: percentUsed,
		}); err != nil {
			return err
		}

		p.notify(ctx, &models.Notification{
			OrganizationID: orgID,
			Type:           "budget",
			Title:          fmt.Sprintf("Budget Alert: %s", budget.Name),
			Message: fmt.Sprintf("Budget %q has reached %.1f%% of $%.2f limit",
				budget.Name, percentUsed, budget.Amount),
			Priority: budgetPriority(threshold),
			Data: models.JSONB{
				"budget_id":    budget.ID,
				"threshold":    threshold,
				"percent_used": percentUsed,
			},
		})
		p.logger.Info("budget threshold reached", "budget_id", budget.ID, "threshold", threshold)
	}
	return nil
}

func budgetPriority(threshold float64) string {
	switch {
	case threshold >= 100:
		return models.PriorityCritical
	case threshold >= 80:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}

// notify stores the notification and mirrors it to the external
// channel. Either failing is logged, never propagated.
func (p *Processor) notify(ctx context.Context, n *models.Notification) {
	if err := p.notifications.Insert(ctx, n); err != nil {
		p.logger.Error("failed to store notification", "type", n.Type, "error", err)
	}
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Send(ctx, n); err != nil {
		p.logger.Error("failed to deliver notification", "type", n.Type, "error", err)
	}
}
