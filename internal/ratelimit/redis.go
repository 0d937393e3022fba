package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps window counters in Redis so limits hold across
// instances. Each window gets its own key with a TTL slightly past the
// window end, so stale counters expire on their own.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a counter store on an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr implements CounterStore
func (s *RedisStore) Incr(ctx context.Context, key string, minuteWindow, dayWindow int64) (int64, int64, error) {
	minuteKey := fmt.Sprintf("ratelimit:%s:m:%d", key, minuteWindow)
	dayKey := fmt.Sprintf("ratelimit:%s:d:%d", key, dayWindow)

	pipe := s.client.Pipeline()
	minuteIncr := pipe.Incr(ctx, minuteKey)
	pipe.Expire(ctx, minuteKey, 2*time.Minute)
	dayIncr := pipe.Incr(ctx, dayKey)
	pipe.Expire(ctx, dayKey, 25*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to increment rate limit counters: %w", err)
	}
	return minuteIncr.Val(), dayIncr.Val(), nil
}
