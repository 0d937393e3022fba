package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DirectoryRepository resolves team, project and cost center names to
// their identifiers for attribution enrichment. Lookups are
// case-insensitive and scoped to the organization.
type DirectoryRepository struct {
	db *DB
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) lookup(ctx context.Context, table, orgID, name string) (string, error) {
	var id string
	query := fmt.Sprintf(`SELECT id FROM %s WHERE organization_id = $1 AND name ILIKE $2 LIMIT 1`, table)

	err := r.db.conn.GetContext(ctx, &id, query, orgID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrEntityNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %s: %w", table, err)
	}
	return id, nil
}

// TeamIDByName resolves a team name to its ID.
func (r *DirectoryRepository) TeamIDByName(ctx context.Context, orgID, name string) (string, error) {
	return r.lookup(ctx, "teams", orgID, name)
}

// ProjectIDByName resolves a project name to its ID.
func (r *DirectoryRepository) ProjectIDByName(ctx context.Context, orgID, name string) (string, error) {
	return r.lookup(ctx, "projects", orgID, name)
}

// CostCenterIDByName resolves a cost center name to its ID.
func (r *DirectoryRepository) CostCenterIDByName(ctx context.Context, orgID, name string) (string, error) {
	return r.lookup(ctx, "cost_centers", orgID, name)
}
