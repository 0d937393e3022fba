// Package queue moves freshly ingested usage records from the ingest
// path to the event processor without blocking the HTTP response.
//
// Two backends share one contract:
//
//  1. Memory queue (channel-based): no persistence, no external
//     dependencies. For single-instance and development deployments.
//  2. Redis queue (list-based): survives restarts and feeds
//     distributed processor workers.
//
// Records that keep failing after the retry budget land in a dead
// letter queue for operator inspection.
package queue

import (
	"context"
	"time"

	"tokentra/internal/models"
)

// Queue is the transport between ingestion and the event processor.
type Queue interface {
	// Enqueue adds a usage record to the queue.
	Enqueue(ctx context.Context, record *models.UsageRecord) error

	// Dequeue retrieves up to maxItems records, blocking until at
	// least one is available or the context is cancelled.
	Dequeue(ctx context.Context, maxItems int) ([]*models.UsageRecord, error)

	// DequeueWithTimeout retrieves up to maxItems records, returning
	// an empty slice if none arrive before the timeout.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]*models.UsageRecord, error)

	// Length returns the current queue length.
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully.
	Close() error
}

// DeadLetterQueue holds records the processor gave up on.
type DeadLetterQueue interface {
	// Add stores a failed record with its error.
	Add(ctx context.Context, record *models.UsageRecord, err error) error

	// List retrieves up to maxItems dead letter entries.
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove deletes an entry by ID.
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue.
	Close() error
}

// DeadLetterItem is one record that exhausted its retries.
type DeadLetterItem struct {
	ID        string              `json:"id"`
	Record    *models.UsageRecord `json:"record"`
	Error     string              `json:"error"`
	Timestamp time.Time           `json:"timestamp"`
	Retries   int                 `json:"retries"`
}

// Config holds queue configuration.
type Config struct {
	// BatchSize is the maximum number of records per processor batch.
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch.
	BatchTimeout time.Duration

	// MaxRetries is the retry budget before a batch goes to the DLQ.
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	RetryBackoff time.Duration

	// UseRedis selects the Redis backend over the in-memory one.
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true).
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true).
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true).
	RedisDB int

	// QueueName is the name/key for the queue.
	QueueName string
}

// DefaultConfig returns default queue configuration.
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}
