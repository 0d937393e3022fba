package storage

import (
	"context"
	"fmt"

	"tokentra/internal/models"
)

// RoutingRuleRepository persists routing rules created from applied
// recommendations.
type RoutingRuleRepository struct {
	db *DB
}

// NewRoutingRuleRepository creates a new routing rule repository
func NewRoutingRuleRepository(db *DB) *RoutingRuleRepository {
	return &RoutingRuleRepository{db: db}
}

// Insert stores a routing rule and fills in its ID.
func (r *RoutingRuleRepository) Insert(ctx context.Context, rule *models.RoutingRule) error {
	query := `
		INSERT INTO routing_rules (
			organization_id, name, description, rule_type, priority,
			conditions, actions, enabled, created_from_recommendation_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.conn.QueryRowxContext(ctx, query,
		rule.OrganizationID, rule.Name, rule.Description, rule.RuleType,
		rule.Priority, rule.Conditions, rule.Actions, rule.Enabled,
		rule.CreatedFrom,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert routing rule: %w", err)
	}
	return nil
}

// ListEnabled returns an organization's enabled rules ordered by
// priority. The SDK fetches these through the config endpoint.
func (r *RoutingRuleRepository) ListEnabled(ctx context.Context, orgID string) ([]models.RoutingRule, error) {
	var rules []models.RoutingRule
	query := `
		SELECT id, organization_id, name, description, rule_type, priority,
			conditions, actions, enabled, created_from_recommendation_id,
			created_at, updated_at
		FROM routing_rules
		WHERE organization_id = $1 AND enabled = TRUE
		ORDER BY priority DESC, created_at`

	if err := r.db.conn.SelectContext(ctx, &rules, query, orgID); err != nil {
		return nil, fmt.Errorf("failed to list routing rules: %w", err)
	}
	return rules, nil
}

// SetEnabled flips the enabled flag on a rule.
func (r *RoutingRuleRepository) SetEnabled(ctx context.Context, orgID, id string, enabled bool) error {
	query := `
		UPDATE routing_rules
		SET enabled = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3`

	result, err := r.db.conn.ExecContext(ctx, query, enabled, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to update routing rule: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrEntityNotFound
	}
	return nil
}
