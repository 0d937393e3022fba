package processor

import (
	"context"
	"sync"
	"time"

	"tokentra/internal/metrics"
	"tokentra/internal/models"
	"tokentra/internal/queue"
	"tokentra/internal/utils"
)

// Worker drains the usage queue in batches and runs them through the
// processor. Batches that keep failing after the retry budget move to
// the dead letter queue record by record.
type Worker struct {
	queue     queue.Queue
	dlq       queue.DeadLetterQueue
	processor *Processor
	archive   Archive
	config    *queue.Config
	logger    *utils.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Archive receives successfully processed records for cold storage.
type Archive interface {
	Add(records ...*models.UsageRecord)
}

// NewWorker creates a queue worker for the processor.
func NewWorker(q queue.Queue, dlq queue.DeadLetterQueue, processor *Processor, config *queue.Config, logger *utils.Logger) *Worker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}
	return &Worker{
		queue:     q,
		dlq:       dlq,
		processor: processor,
		config:    config,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// SetArchive attaches a cold-storage sink for processed records. Must
// be called before Start.
func (w *Worker) SetArchive(archive Archive) {
	w.archive = archive
}

// Start launches the worker loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
	w.logger.Info("usage worker started",
		"batch_size", w.config.BatchSize,
		"batch_timeout", w.config.BatchTimeout)
}

// Stop signals the worker to finish its current batch and waits for it.
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Info("usage worker stopped")
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			w.drain()
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), w.config.BatchTimeout+time.Second)
		records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
		cancel()
		if err != nil {
			if err != queue.ErrQueueClosed {
				w.logger.Error("failed to dequeue usage records", "error", err)
			}
			select {
			case <-w.stopCh:
				return
			case <-time.After(w.config.RetryBackoff):
			}
			continue
		}
		lenCtx, lenCancel := context.WithTimeout(context.Background(), time.Second)
		if n, err := w.queue.Length(lenCtx); err == nil {
			metrics.QueueDepth.Set(float64(n))
		}
		lenCancel()

		if len(records) == 0 {
			continue
		}

		w.processBatch(records)
	}
}

// drain empties what is left in the queue during shutdown.
func (w *Worker) drain() {
	for {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		records, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, 100*time.Millisecond)
		cancel()
		if err != nil || len(records) == 0 {
			return
		}
		w.processBatch(records)
	}
}

func (w *Worker) processBatch(records []*models.UsageRecord) {
	backoff := w.config.RetryBackoff

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := w.processor.ProcessBatch(ctx, records)
		cancel()
		if err == nil {
			metrics.ProcessorBatchesTotal.WithLabelValues("ok").Inc()
			if w.archive != nil {
				w.archive.Add(records...)
			}
			return
		}
		metrics.ProcessorBatchesTotal.WithLabelValues("retried").Inc()
		w.logger.Warn("usage batch processing failed",
			"attempt", attempt+1, "count", len(records), "error", err)
	}

	metrics.ProcessorBatchesTotal.WithLabelValues("dead_lettered").Inc()
	w.logger.Error("usage batch exhausted retries, moving to DLQ", "count", len(records))
	for _, record := range records {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := w.dlq.Add(ctx, record, queue.ErrMaxRetriesExceeded); err != nil {
			w.logger.Error("failed to add record to DLQ", "request_id", record.RequestID, "error", err)
		}
		cancel()
	}
}

// QueueDispatcher feeds stored records into the usage queue. It is the
// ingest pipeline's fire-and-forget hand-off.
type QueueDispatcher struct {
	queue  queue.Queue
	logger *utils.Logger
}

// NewQueueDispatcher creates a dispatcher on a queue.
func NewQueueDispatcher(q queue.Queue, logger *utils.Logger) *QueueDispatcher {
	return &QueueDispatcher{queue: q, logger: logger}
}

// Dispatch enqueues records in the background. Enqueue failures are
// logged and dropped; ingestion has already committed the records.
func (d *QueueDispatcher) Dispatch(_ context.Context, records []*models.UsageRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, record := range records {
			if err := d.queue.Enqueue(ctx, record); err != nil {
				d.logger.Error("failed to enqueue usage record", "request_id", record.RequestID, "error", err)
				return
			}
		}
	}()
}
