// Package ratelimit implements fixed-window request counting per API
// key, over calendar minute and day windows. Windows are aligned to the
// epoch so every instance agrees on the boundaries without
// coordination.
package ratelimit

import (
	"context"
	"time"

	"tokentra/internal/utils"
)

// Limits are the per-key request ceilings.
type Limits struct {
	PerMinute int
	PerDay    int
}

// Result is the outcome of a rate limit check, with remaining counts
// and window ends for both windows so handlers can report them.
type Result struct {
	Allowed         bool
	RemainingMinute int
	RemainingDay    int
	ResetMinute     time.Time
	ResetDay        time.Time
	// Scope names the window that was exhausted, "minute" or "day".
	// Empty when allowed.
	Scope string
}

// CounterStore increments and returns the request counts for the
// current minute and day windows. Implementations must make the
// increment atomic per window.
type CounterStore interface {
	Incr(ctx context.Context, key string, minuteWindow, dayWindow int64) (minuteCount, dayCount int64, err error)
}

// Limiter checks per-key request rates against a counter store.
type Limiter struct {
	store  CounterStore
	logger *utils.Logger
}

// NewLimiter creates a limiter backed by the given counter store.
func NewLimiter(store CounterStore, logger *utils.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Check counts this request against both windows and reports whether it
// is allowed. A request denied by either window has still consumed a
// slot in both; that is the fixed-window contract.
//
// Store errors fail open: availability of ingestion wins over limit
// precision, and the error is logged for the operator.
func (l *Limiter) Check(ctx context.Context, key string, limits Limits, now time.Time) Result {
	minuteWindow := now.Unix() / 60
	dayWindow := now.Unix() / 86400
	resetMinute := time.Unix((minuteWindow+1)*60, 0).UTC()
	resetDay := time.Unix((dayWindow+1)*86400, 0).UTC()

	minuteCount, dayCount, err := l.store.Incr(ctx, key, minuteWindow, dayWindow)
	if err != nil {
		l.logger.Error("rate limit store unavailable, allowing request", "error", err)
		return Result{
			Allowed:         true,
			RemainingMinute: limits.PerMinute,
			RemainingDay:    limits.PerDay,
			ResetMinute:     resetMinute,
			ResetDay:        resetDay,
		}
	}

	result := Result{
		Allowed:         true,
		RemainingMinute: remaining(limits.PerMinute, minuteCount),
		RemainingDay:    remaining(limits.PerDay, dayCount),
		ResetMinute:     resetMinute,
		ResetDay:        resetDay,
	}

	if int(minuteCount) > limits.PerMinute {
		result.Allowed = false
		result.Scope = "minute"
	} else if int(dayCount) > limits.PerDay {
		result.Allowed = false
		result.Scope = "day"
	}
	return result
}

func remaining(limit int, count int64) int {
	if left := limit - int(count); left > 0 {
		return left
	}
	return 0
}
