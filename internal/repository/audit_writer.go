package repository

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"rconhub/internal/models"
)

// AuditSink persists batches of audit entries.
type AuditSink interface {
	BatchInsert(ctx context.Context, batch []*models.AuditEntry) error
}

const (
	defaultAuditQueue     = 10000
	defaultAuditBatchSize = 500
	defaultAuditInterval  = 5 * time.Second
)

// AuditWriter queues audit entries in memory and writes them to the sink in
// batches, so recording a command never waits on the database.
type AuditWriter struct {
	sink      AuditSink
	writeChan chan *models.AuditEntry
	batchSize int
	interval  time.Duration
	logger    *slog.Logger
	closed    atomic.Bool
	dropped   atomic.Int64
	done      chan struct{}
}

func NewAuditWriter(sink AuditSink, logger *slog.Logger) *AuditWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditWriter{
		sink:      sink,
		writeChan: make(chan *models.AuditEntry, defaultAuditQueue),
		batchSize: defaultAuditBatchSize,
		interval:  defaultAuditInterval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// WithBatching overrides the flush size and interval. Call before
// StartBatchWriter.
func (w *AuditWriter) WithBatching(size int, interval time.Duration) *AuditWriter {
	if size > 0 {
		w.batchSize = size
	}
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Record queues an entry. When the queue is full the entry is dropped and
// counted rather than blocking the caller.
func (w *AuditWriter) Record(entry *models.AuditEntry) {
	if entry == nil || w.closed.Load() {
		return
	}

	if depth := len(w.writeChan); depth > cap(w.writeChan)/2 {
		w.logger.Warn("audit_queue_high_watermark", "queue_depth", depth)
	}

	select {
	case w.writeChan <- entry:
	default:
		w.dropped.Add(1)
		w.logger.Warn("audit_queue_full", "command", entry.Command, "session_id", entry.SessionID)
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (w *AuditWriter) Dropped() int64 {
	return w.dropped.Load()
}

// StartBatchWriter drains the queue until ctx is done, then flushes what is
// left. Run it in its own goroutine.
func (w *AuditWriter) StartBatchWriter(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	batch := make([]*models.AuditEntry, 0, w.batchSize)
	w.logger.Info("audit_writer_started", "interval", w.interval.String(), "batch_size", w.batchSize)

	for {
		select {
		case <-ctx.Done():
			w.closed.Store(true)
		drain:
			for {
				select {
				case e := <-w.writeChan:
					batch = append(batch, e)
				default:
					break drain
				}
			}
			w.logger.Info("audit_writer_shutting_down", "remaining", len(batch))
			if len(batch) > 0 {
				w.flushBatch(batch)
			}
			return

		case e := <-w.writeChan:
			batch = append(batch, e)
			if len(batch) >= w.batchSize {
				w.flushBatch(batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

// Done is closed once the batch writer has exited.
func (w *AuditWriter) Done() <-chan struct{} {
	return w.done
}

func (w *AuditWriter) flushBatch(batch []*models.AuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := w.sink.BatchInsert(ctx, batch); err != nil {
		w.logger.Error("audit_batch_insert_failed", "count", len(batch), "error", err)
		return
	}
	w.logger.Debug("audit_batch_insert_success",
		"count", len(batch),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
