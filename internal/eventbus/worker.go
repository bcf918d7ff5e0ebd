package eventbus

import (
	"context"
	"log/slog"
	"time"

	"doctrine/internal/audit"
)

// Worker drains the outbox on an interval. An entry is marked published only
// after the publisher accepts it; a crash in between re-delivers the entry on
// the next pass, which is the at-least-once contract consumers sign up for.
type Worker struct {
	outbox    OutboxStore
	publisher Publisher
	audit     *audit.Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = logger }
}

func WithInterval(interval time.Duration) WorkerOption {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func NewWorker(outbox OutboxStore, publisher Publisher, auditPub *audit.Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		outbox:    outbox,
		publisher: publisher,
		audit:     auditPub,
		logger:    slog.Default(),
		interval:  2 * time.Second,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run drains until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of queued notifications and returns how many were
// delivered. A publish failure stops the batch; remaining entries stay queued
// for the next pass.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	entries, err := w.outbox.ListUnpublished(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, entry := range entries {
		notification := entry.Notification
		if err := w.publisher.Publish(ctx, notification); err != nil {
			w.logger.WarnContext(ctx, "notification delivery failed",
				"event_id", notification.EventID, "attempts", entry.Attempts, "error", err)
			return published, err
		}
		if err := w.outbox.MarkPublished(ctx, notification.EventID); err != nil {
			return published, err
		}
		if err := w.audit.Emit(ctx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionSignalPublished,
			EntityID: string(notification.EntityID),
			After:    string(notification.ChangeType) + "/" + string(notification.Priority),
		}); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}
