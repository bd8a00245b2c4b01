package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const drainBatchSize = 100

// Publisher receives drained outbox events. Implementations must be
// idempotent: a batch whose ack fails is republished on the next sweep.
type Publisher interface {
	Publish(ctx context.Context, events []Event) error
}

// LogPublisher is the default sink: it logs each event. Swap in a broker
// publisher without touching the worker.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, events []Event) error {
	for _, event := range events {
		p.Logger.InfoContext(ctx, "audit event",
			"action", string(event.Action),
			"primary_id", event.PrimaryID,
			"request_id", event.RequestID,
		)
	}
	return nil
}

// Worker drains the outbox on an interval. A failed sweep leaves rows
// unpublished for the next one; it never blocks request handling.
type Worker struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
}

func NewWorker(store Store, publisher Publisher, logger *slog.Logger, interval time.Duration) *Worker {
	return &Worker{store: store, publisher: publisher, logger: logger, interval: interval}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil && ctx.Err() == nil {
				w.logger.WarnContext(ctx, "audit drain failed", "error", err.Error())
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	for {
		events, err := w.store.ListUnpublished(ctx, drainBatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		if err := w.publisher.Publish(ctx, events); err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(events))
		for i, event := range events {
			ids[i] = event.ID
		}
		if err := w.store.MarkPublished(ctx, ids); err != nil {
			return err
		}
		if len(events) < drainBatchSize {
			return nil
		}
	}
}
