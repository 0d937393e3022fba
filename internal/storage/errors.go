package storage

import "errors"

var (
	// ErrAPIKeyNotFound is returned when no stored key matches a hash
	ErrAPIKeyNotFound = errors.New("API key not found")

	// ErrEntityNotFound is returned when a directory lookup
	// (team, project, cost center) finds no match
	ErrEntityNotFound = errors.New("entity not found")

	// ErrRecommendationNotFound is returned when a recommendation is not found
	ErrRecommendationNotFound = errors.New("recommendation not found")

	// ErrUserNotFound is returned when a dashboard user is not found
	ErrUserNotFound = errors.New("user not found")
)
