package optimize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tokentra/internal/models"
	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

// analysisWindowDays is how far back each analysis run looks.
const analysisWindowDays = 30

// ErrNotPending is returned when applying or dismissing a
// recommendation that has already been acted on.
var ErrNotPending = errors.New("recommendation is not pending")

// UsageSource provides the usage window the detectors run over.
type UsageSource interface {
	RecentUsage(ctx context.Context, orgID string, since time.Time) ([]models.UsageRecord, error)
	ListOrganizationIDs(ctx context.Context, limit int) ([]string, error)
}

// RecommendationStore persists recommendations and their state
// transitions.
type RecommendationStore interface {
	GetByID(ctx context.Context, orgID, id string) (*models.Recommendation, error)
	FindPendingByType(ctx context.Context, orgID, recType string) (*models.Recommendation, error)
	Insert(ctx context.Context, rec *models.Recommendation) error
	RefreshPending(ctx context.Context, rec *models.Recommendation) error
	MarkApplied(ctx context.Context, orgID, id, userID string, ruleID *string, now time.Time) error
	MarkDismissed(ctx context.Context, orgID, id, userID string, now time.Time) error
}

// RuleStore persists routing rules created from applied
// recommendations.
type RuleStore interface {
	Insert(ctx context.Context, rule *models.RoutingRule) error
}

// Service runs analysis and manages the recommendation lifecycle.
type Service struct {
	usage  UsageSource
	recs   RecommendationStore
	rules  RuleStore
	logger *utils.Logger
	now    func() time.Time
}

// NewService creates an optimization service.
func NewService(usage UsageSource, recs RecommendationStore, rules RuleStore, logger *utils.Logger) *Service {
	return &Service{
		usage:  usage,
		recs:   recs,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// AnalyzeAndSave runs the detectors over the organization's recent
// usage and upserts the resulting recommendations. A pending
// recommendation of the same type is refreshed in place rather than
// duplicated. Returns the number of recommendations produced.
func (s *Service) AnalyzeAndSave(ctx context.Context, orgID string) (int, error) {
	since := s.now().AddDate(0, 0, -analysisWindowDays)
	records, err := s.usage.RecentUsage(ctx, orgID, since)
	if err != nil {
		return 0, fmt.Errorf("failed to load usage for analysis: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	recommendations := BuildRecommendations(Analyze(records))
	for _, rec := range recommendations {
		if err := s.upsert(ctx, orgID, rec); err != nil {
			return 0, err
		}
	}

	s.logger.Info("optimization analysis complete",
		"org_id", orgID,
		"records", len(records),
		"recommendations", len(recommendations))

	return len(recommendations), nil
}

func (s *Service) upsert(ctx context.Context, orgID string, rec Recommendation) error {
	existing, err := s.recs.FindPendingByType(ctx, orgID, rec.Type)
	if err != nil && !errors.Is(err, storage.ErrRecommendationNotFound) {
		return err
	}

	if existing != nil {
		existing.Title = rec.Title
		existing.Description = rec.Description
		existing.Impact = rec.Impact
		existing.Details = rec.Details
		return s.recs.RefreshPending(ctx, existing)
	}

	return s.recs.Insert(ctx, &models.Recommendation{
		OrganizationID: orgID,
		Type:           rec.Type,
		Title:          rec.Title,
		Description:    rec.Description,
		Impact:         rec.Impact,
		Details:        rec.Details,
		Status:         models.RecommendationPending,
	})
}

// Get fetches a single recommendation scoped to the organization.
func (s *Service) Get(ctx context.Context, orgID, id string) (*models.Recommendation, error) {
	return s.recs.GetByID(ctx, orgID, id)
}

// Apply transitions a pending recommendation to applied, creating the
// routing rule that enforces it when the type has one. Returns the
// updated recommendation.
func (s *Service) Apply(ctx context.Context, orgID, id, userID string) (*models.Recommendation, error) {
	rec, err := s.recs.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsPending() {
		return nil, ErrNotPending
	}

	var ruleID *string
	if rule := RuleFromRecommendation(rec); rule != nil {
		if err := s.rules.Insert(ctx, rule); err != nil {
			return nil, fmt.Errorf("failed to create routing rule: %w", err)
		}
		ruleID = &rule.ID

		s.logger.Info("routing rule created from recommendation",
			"org_id", orgID,
			"recommendation_id", id,
			"rule_id", rule.ID,
			"rule_type", rule.RuleType)
	}

	if err := s.recs.MarkApplied(ctx, orgID, id, userID, ruleID, s.now()); err != nil {
		return nil, err
	}

	return s.recs.GetByID(ctx, orgID, id)
}

// Dismiss transitions a pending recommendation to dismissed.
func (s *Service) Dismiss(ctx context.Context, orgID, id, userID string) (*models.Recommendation, error) {
	rec, err := s.recs.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !rec.IsPending() {
		return nil, ErrNotPending
	}

	if err := s.recs.MarkDismissed(ctx, orgID, id, userID, s.now()); err != nil {
		return nil, err
	}

	return s.recs.GetByID(ctx, orgID, id)
}

// AnalyzeAll runs analysis for every known organization. A failure in
// one organization does not stop the others.
func (s *Service) AnalyzeAll(ctx context.Context, limit int) error {
	orgIDs, err := s.usage.ListOrganizationIDs(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list organizations: %w", err)
	}

	for _, orgID := range orgIDs {
		if _, err := s.AnalyzeAndSave(ctx, orgID); err != nil {
			s.logger.Error("organization analysis failed", "org_id", orgID, "error", err)
		}
	}
	return nil
}
