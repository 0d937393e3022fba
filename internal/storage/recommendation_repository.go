package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tokentra/internal/models"
)

const recommendationColumns = `
	id, organization_id, type, title, description, impact, details,
	status, applied_at, applied_by, dismissed_at, dismissed_by,
	routing_rule_id, created_at, updated_at`

// RecommendationRepository persists optimization recommendations.
type RecommendationRepository struct {
	db *DB
}

// NewRecommendationRepository creates a new recommendation repository
func NewRecommendationRepository(db *DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// GetByID fetches a recommendation scoped to an organization.
func (r *RecommendationRepository) GetByID(ctx context.Context, orgID, id string) (*models.Recommendation, error) {
	var rec models.Recommendation
	query := `SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE id = $1 AND organization_id = $2`

	err := r.db.conn.GetContext(ctx, &rec, query, id, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecommendationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return &rec, nil
}

// ListByOrganization returns an organization's recommendations, newest
// first. An empty status lists all of them.
func (r *RecommendationRepository) ListByOrganization(ctx context.Context, orgID, status string) ([]models.Recommendation, error) {
	var recs []models.Recommendation
	query := `SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE organization_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC`

	if err := r.db.conn.SelectContext(ctx, &recs, query, orgID, status); err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	return recs, nil
}

// FindPendingByType returns the pending recommendation of a given type
// for an organization, if one exists. Analysis runs use this to refresh
// rather than duplicate.
func (r *RecommendationRepository) FindPendingByType(ctx context.Context, orgID, recType string) (*models.Recommendation, error) {
	var rec models.Recommendation
	query := `SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE organization_id = $1 AND type = $2 AND status = $3
		LIMIT 1`

	err := r.db.conn.GetContext(ctx, &rec, query, orgID, recType, models.RecommendationPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecommendationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending recommendation: %w", err)
	}
	return &rec, nil
}

// Insert stores a new pending recommendation and fills in its ID.
func (r *RecommendationRepository) Insert(ctx context.Context, rec *models.Recommendation) error {
	query := `
		INSERT INTO recommendations (
			organization_id, type, title, description, impact, details, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.db.conn.QueryRowxContext(ctx, query,
		rec.OrganizationID, rec.Type, rec.Title, rec.Description,
		rec.Impact, rec.Details, rec.Status,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return nil
}

// RefreshPending overwrites the findings of an existing pending
// recommendation with the latest analysis.
func (r *RecommendationRepository) RefreshPending(ctx context.Context, rec *models.Recommendation) error {
	query := `
		UPDATE recommendations
		SET title = $1, description = $2, impact = $3, details = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6`

	result, err := r.db.conn.ExecContext(ctx, query,
		rec.Title, rec.Description, rec.Impact, rec.Details,
		rec.ID, models.RecommendationPending)
	if err != nil {
		return fmt.Errorf("failed to refresh recommendation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrRecommendationNotFound
	}
	return nil
}

// MarkApplied transitions a pending recommendation to applied and
// records who applied it and the routing rule it produced, if any.
func (r *RecommendationRepository) MarkApplied(ctx context.Context, orgID, id, userID string, ruleID *string, now time.Time) error {
	query := `
		UPDATE recommendations
		SET status = $1, applied_at = $2, applied_by = $3, routing_rule_id = $4, updated_at = NOW()
		WHERE id = $5 AND organization_id = $6 AND status = $7`

	result, err := r.db.conn.ExecContext(ctx, query,
		models.RecommendationApplied, now, userID, ruleID,
		id, orgID, models.RecommendationPending)
	if err != nil {
		return fmt.Errorf("failed to apply recommendation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrRecommendationNotFound
	}
	return nil
}

// MarkDismissed transitions a pending recommendation to dismissed.
func (r *RecommendationRepository) MarkDismissed(ctx context.Context, orgID, id, userID string, now time.Time) error {
	query := `
		UPDATE recommendations
		SET status = $1, dismissed_at = $2, dismissed_by = $3, updated_at = NOW()
		WHERE id = $4 AND organization_id = $5 AND status = $6`

	result, err := r.db.conn.ExecContext(ctx, query,
		models.RecommendationDismissed, now, userID,
		id, orgID, models.RecommendationPending)
	if err != nil {
		return fmt.Errorf("failed to dismiss recommendation: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrRecommendationNotFound
	}
	return nil
}
