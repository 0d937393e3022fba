package processor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokentra/internal/models"
	"tokentra/internal/utils"
)

type fakeStores struct {
	mu sync.Mutex

	alerts        []models.Alert
	lastTriggered map[string]time.Time
	alertEvents   []*models.AlertEvent

	budgets         []models.Budget
	notified        map[string]bool
	thresholdAlerts []*models.BudgetAlert

	periodSpend   float64
	hourlyAvg     float64
	notifications []*models.Notification
	emails        []*models.Notification
}

func (f *fakeStores) ListEnabled(_ context.Context, _ string) ([]models.Alert, error) {
	return f.alerts, nil
}

func (f *fakeStores) LastTriggeredAt(_ context.Context, alertID string) (time.Time, error) {
	return f.lastTriggered[alertID], nil
}

func (f *fakeStores) RecordEvent(_ context.Context, event *models.AlertEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alertEvents = append(f.alertEvents, event)
	return nil
}

func (f *fakeStores) ListActive(_ context.Context, _ string) ([]models.Budget, error) {
	return f.budgets, nil
}

func (f *fakeStores) ThresholdNotified(_ context.Context, budgetID string, threshold float64, _ time.Time) (bool, error) {
	return f.notified[budgetKey(budgetID, threshold)], nil
}

func (f *fakeStores) RecordThresholdAlert(_ context.Context, alert *models.BudgetAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notified == nil {
		f.notified = map[string]bool{}
	}
	f.notified[budgetKey(alert.BudgetID, alert.Threshold)] = true
	f.thresholdAlerts = append(f.thresholdAlerts, alert)
	return nil
}

func (f *fakeStores) PeriodSpend(_ context.Context, _ string, _ time.Time) (float64, error) {
	return f.periodSpend, nil
}

func (f *fakeStores) AverageHourlyCost(_ context.Context, _ string, _ time.Time) (float64, error) {
	return f.hourlyAvg, nil
}

func (f *fakeStores) Insert(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeStores) Send(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, n)
	return nil
}

func budgetKey(id string, threshold float64) string {
	return fmt.Sprintf("%s:%g", id, threshold)
}

func newTestProcessor(stores *fakeStores) *Processor {
	return NewProcessor(stores, stores, stores, stores, stores,
		utils.NewLogger("test", utils.Critical))
}

func costRecord(orgID string, cost float64, isError bool) *models.UsageRecord {
	return &models.UsageRecord{
		OrganizationID: orgID,
		Provider:       "openai",
		Model:          "gpt-4o",
		InputCost:      cost,
		InputTokens:    100,
		OutputTokens:   50,
		IsError:        isError,
	}
}

func TestAggregate(t *testing.T) {
	team := "team-1"
	feature := "chat"
	records := []*models.UsageRecord{
		{OrganizationID: "org-1", Model: "gpt-4o", InputCost: 1, OutputCost: 0.5, InputTokens: 10, OutputTokens: 5, TeamID: &team, Feature: &feature},
		{OrganizationID: "org-1", Model: "gpt-4o-mini", InputCost: 0.25, InputTokens: 20, IsError: true, TeamID: &team},
	}

	agg := Aggregate(records)

	assert.InDelta(t, 1.75, agg.TotalCost, 1e-9)
	assert.Equal(t, 35, agg.TotalTokens)
	assert.Equal(t, 2, agg.RequestCount)
	assert.Equal(t, 1, agg.ErrorCount)
	assert.InDelta(t, 1.75, agg.ByTeam["team-1"].Cost, 1e-9)
	assert.Equal(t, 2, agg.ByTeam["team-1"].Count)
	assert.InDelta(t, 1.5, agg.ByFeature["chat"].Cost, 1e-9)
	assert.InDelta(t, 1.5, agg.ByModel["gpt-4o"].Cost, 1e-9)
	assert.Equal(t, 1, agg.ByModel["gpt-4o-mini"].Count)
}

func TestSpendThresholdAlert(t *testing.T) {
	stores := &fakeStores{
		alerts: []models.Alert{{ID: "alert-1", Type: models.AlertSpendThreshold, Threshold: 5, Scope: models.AlertScopeTotal, Enabled: true}},
	}
	p := newTestProcessor(stores)

	// Below threshold: nothing fires.
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 4, false)}))
	assert.Empty(t, stores.alertEvents)

	// At threshold: fires with notification and email mirror.
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 5, false)}))
	require.Len(t, stores.alertEvents, 1)
	assert.Equal(t, "alert-1", stores.alertEvents[0].AlertID)
	require.Len(t, stores.notifications, 1)
	assert.Equal(t, "alert", stores.notifications[0].Type)
	assert.Equal(t, models.PriorityHigh, stores.notifications[0].Priority)
	assert.Len(t, stores.emails, 1)
}

func TestSpendThresholdScoped(t *testing.T) {
	model := "gpt-4o"
	stores := &fakeStores{
		alerts: []models.Alert{{ID: "alert-1", Type: models.AlertSpendThreshold, Threshold: 1, Scope: models.AlertScopeModel, ScopeID: &model, Enabled: true}},
	}
	p := newTestProcessor(stores)

	// Spend on a different model does not trip a model-scoped alert.
	record := costRecord("org-1", 10, false)
	record.Model = "gpt-4o-mini"
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{record}))
	assert.Empty(t, stores.alertEvents)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 2, false)}))
	assert.Len(t, stores.alertEvents, 1)
}

func TestErrorRateAlert(t *testing.T) {
	stores := &fakeStores{
		alerts: []models.Alert{{ID: "alert-1", Type: models.AlertErrorRate, Threshold: 50, Scope: models.AlertScopeTotal, Enabled: true}},
	}
	p := newTestProcessor(stores)

	batch := []*models.UsageRecord{
		costRecord("org-1", 0.1, true),
		costRecord("org-1", 0.1, true),
		costRecord("org-1", 0.1, false),
		costRecord("org-1", 0.1, false),
	}
	require.NoError(t, p.ProcessBatch(context.Background(), batch))
	assert.Len(t, stores.alertEvents, 1, "50%% error rate meets a 50 threshold")
}

func TestUsageSpikeAlert(t *testing.T) {
	stores := &fakeStores{
		alerts:    []models.Alert{{ID: "alert-1", Type: models.AlertUsageSpike, Threshold: 100, Scope: models.AlertScopeTotal, Enabled: true}},
		hourlyAvg: 1,
	}
	p := newTestProcessor(stores)

	// Threshold 100 means double the hourly baseline.
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 1.5, false)}))
	assert.Empty(t, stores.alertEvents)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 2.5, false)}))
	assert.Len(t, stores.alertEvents, 1)
}

func TestUsageSpikeNoBaseline(t *testing.T) {
	stores := &fakeStores{
		alerts:    []models.Alert{{ID: "alert-1", Type: models.AlertUsageSpike, Threshold: 100, Scope: models.AlertScopeTotal, Enabled: true}},
		hourlyAvg: 0,
	}
	p := newTestProcessor(stores)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 100, false)}))
	assert.Empty(t, stores.alertEvents, "no history means no spike")
}

func TestAlertCooldown(t *testing.T) {
	stores := &fakeStores{
		alerts: []models.Alert{{ID: "alert-1", Type: models.AlertSpendThreshold, Threshold: 1, Scope: models.AlertScopeTotal, Enabled: true}},
		lastTriggered: map[string]time.Time{
			"alert-1": time.Now().Add(-30 * time.Minute),
		},
	}
	p := newTestProcessor(stores)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 10, false)}))
	assert.Empty(t, stores.alertEvents, "alert inside cooldown must not refire")

	stores.lastTriggered["alert-1"] = time.Now().Add(-2 * time.Hour)
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 10, false)}))
	assert.Len(t, stores.alertEvents, 1)
}

func TestBudgetThresholds(t *testing.T) {
	stores := &fakeStores{
		budgets:     []models.Budget{{ID: "budget-1", Name: "Monthly", Amount: 100, Period: models.BudgetMonthly, Status: "active"}},
		periodSpend: 85,
	}
	p := newTestProcessor(stores)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 1, false)}))

	// 85% crosses the 50 and 80 defaults but not 100.
	require.Len(t, stores.thresholdAlerts, 2)
	assert.Equal(t, 50.0, stores.thresholdAlerts[0].Threshold)
	assert.Equal(t, 80.0, stores.thresholdAlerts[1].Threshold)

	require.Len(t, stores.notifications, 2)
	assert.Equal(t, models.PriorityMedium, stores.notifications[0].Priority)
	assert.Equal(t, models.PriorityHigh, stores.notifications[1].Priority)
}

func TestBudgetThresholdOncePerPeriod(t *testing.T) {
	stores := &fakeStores{
		budgets:     []models.Budget{{ID: "budget-1", Name: "Monthly", Amount: 100, Period: models.BudgetMonthly, Status: "active"}},
		periodSpend: 120,
	}
	p := newTestProcessor(stores)

	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 1, false)}))
	require.Len(t, stores.thresholdAlerts, 3)
	assert.Equal(t, models.PriorityCritical, stores.notifications[2].Priority)

	// A second batch in the same period adds nothing.
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{costRecord("org-1", 1, false)}))
	assert.Len(t, stores.thresholdAlerts, 3)
}

func TestProcessBatchGroupsByOrg(t *testing.T) {
	stores := &fakeStores{
		alerts: []models.Alert{{ID: "alert-1", Type: models.AlertSpendThreshold, Threshold: 5, Scope: models.AlertScopeTotal, Enabled: true}},
	}
	p := newTestProcessor(stores)

	// 6 spread across two orgs: neither org alone crosses 5.
	require.NoError(t, p.ProcessBatch(context.Background(), []*models.UsageRecord{
		costRecord("org-1", 3, false),
		costRecord("org-2", 3, false),
	}))
	assert.Empty(t, stores.alertEvents)
}

func TestProcessBatchEmpty(t *testing.T) {
	p := newTestProcessor(&fakeStores{})
	assert.NoError(t, p.ProcessBatch(context.Background(), nil))
}
