package archive

import (
	"context"
	"sync"
	"time"

	"tokentra/internal/models"
	"tokentra/internal/utils"
)

const uploadTimeout = 30 * time.Second

// Uploader writes a batch of records to long-term storage.
type Uploader interface {
	WriteBatch(ctx context.Context, records []*models.UsageRecord) (string, error)
}

// Archiver buffers processed usage records and flushes them to an
// uploader in batches, on size or on a timer. Records are already
// durable in Postgres; the archive is a cold copy, so a full buffer
// drops rather than blocks.
type Archiver struct {
	uploader      Uploader
	flushSize     int
	flushInterval time.Duration
	logger        *utils.Logger

	recordCh chan *models.UsageRecord
	doneCh   chan struct{}
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewArchiver creates and starts an archiver.
func NewArchiver(uploader Uploader, bufferSize, flushSize int, flushInterval time.Duration, logger *utils.Logger) *Archiver {
	a := &Archiver{
		uploader:      uploader,
		flushSize:     flushSize,
		flushInterval: flushInterval,
		logger:        logger,
		recordCh:      make(chan *models.UsageRecord, bufferSize),
		doneCh:        make(chan struct{}),
	}

	a.wg.Add(1)
	go a.run()
	return a
}

// Add queues records for archival. Drops when the buffer is full.
func (a *Archiver) Add(records ...*models.UsageRecord) {
	for _, record := range records {
		select {
		case a.recordCh <- record:
		default:
			a.logger.Warn("archive buffer full, dropping record", "request_id", record.RequestID)
		}
	}
}

func (a *Archiver) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	batch := make([]*models.UsageRecord, 0, a.flushSize)

	for {
		select {
		case record := <-a.recordCh:
			batch = append(batch, record)
			if len(batch) >= a.flushSize {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				a.flush(batch)
				batch = batch[:0]
			}
		case <-a.doneCh:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case record := <-a.recordCh:
					batch = append(batch, record)
				default:
					if len(batch) > 0 {
						a.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (a *Archiver) flush(batch []*models.UsageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	if _, err := a.uploader.WriteBatch(ctx, batch); err != nil {
		a.logger.Error("failed to archive usage batch", "count", len(batch), "error", err)
	}
}

// Shutdown flushes the buffer and stops the archiver.
func (a *Archiver) Shutdown() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	close(a.doneCh)
	a.wg.Wait()
}
