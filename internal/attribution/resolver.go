// Package attribution resolves the team, project and cost center names
// SDK events carry into directory entity IDs.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tokentra/internal/storage"
	"tokentra/internal/utils"
)

// Input is the attribution context carried by one event.
type Input struct {
	Feature     *string
	Team        *string
	Project     *string
	CostCenter  *string
	UserID      *string
	Environment *string
	Metadata    map[string]any
}

// Resolved is the attribution after name resolution, ready to persist.
// Names that resolved to nothing stay nil; ingestion never fails on a
// missing directory entry.
type Resolved struct {
	Feature      *string
	TeamID       *string
	ProjectID    *string
	CostCenterID *string
	UserID       *string
	Environment  string
	Metadata     map[string]any
}

// Directory looks up entity IDs by name within an organization.
type Directory interface {
	TeamIDByName(ctx context.Context, orgID, name string) (string, error)
	ProjectIDByName(ctx context.Context, orgID, name string) (string, error)
	CostCenterIDByName(ctx context.Context, orgID, name string) (string, error)
}

// Resolver resolves attribution names through a directory with a
// shared LRU cache in front.
type Resolver struct {
	directory Directory
	cache     *storage.LRUCache
	logger    *utils.Logger
}

// NewResolver creates a resolver on a directory and cache.
func NewResolver(directory Directory, cache *storage.LRUCache, logger *utils.Logger) *Resolver {
	return &Resolver{directory: directory, cache: cache, logger: logger}
}

// Resolve maps an event's attribution names to IDs. Values that are
// already UUIDs pass through untouched. Lookup misses and errors leave
// the field unset; they are not ingestion failures.
func (r *Resolver) Resolve(ctx context.Context, orgID string, input Input) Resolved {
	resolved := Resolved{
		Feature:     input.Feature,
		UserID:      input.UserID,
		Environment: "production",
		Metadata:    input.Metadata,
	}
	if input.Environment != nil && *input.Environment != "" {
		resolved.Environment = *input.Environment
	}
	if resolved.Metadata == nil {
		resolved.Metadata = map[string]any{}
	}

	if input.Team != nil && *input.Team != "" {
		resolved.TeamID = r.lookup(ctx, "team", orgID, *input.Team, r.directory.TeamIDByName)
	}
	if input.Project != nil && *input.Project != "" {
		resolved.ProjectID = r.lookup(ctx, "project", orgID, *input.Project, r.directory.ProjectIDByName)
	}
	if input.CostCenter != nil && *input.CostCenter != "" {
		resolved.CostCenterID = r.lookup(ctx, "cost_center", orgID, *input.CostCenter, r.directory.CostCenterIDByName)
	}
	return resolved
}

func (r *Resolver) lookup(ctx context.Context, kind, orgID, name string, byName func(context.Context, string, string) (string, error)) *string {
	if _, err := uuid.Parse(name); err == nil {
		return &name
	}

	cacheKey := fmt.Sprintf("%s:%s:%s", kind, orgID, strings.ToLower(name))
	if cached, found := r.cache.Get(cacheKey); found {
		id := cached.(string)
		return &id
	}

	id, err := byName(ctx, orgID, name)
	if errors.Is(err, storage.ErrEntityNotFound) {
		return nil
	}
	if err != nil {
		r.logger.Error("attribution lookup failed", "kind", kind, "name", name, "error", err)
		return nil
	}

	r.cache.Set(cacheKey, id)
	return &id
}
