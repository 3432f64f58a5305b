package worker

import (
	"context"
	"log/slog"
	"time"

	audit "amlstat/pkg/platform/audit"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Producer delivers claimed outbox entries to the event stream.
type Producer interface {
	Publish(ctx context.Context, entries []audit.OutboxEntry) error
}

// Worker relays audit outbox entries to a Producer until its context ends.
type Worker struct {
	outbox    audit.Outbox
	producer  Producer
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func NewWorker(outbox audit.Outbox, producer Producer, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		producer:  producer,
		logger:    slog.Default(),
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls the outbox every interval. A full batch is followed immediately by
// another claim so a backlog drains without waiting. Publish failures are
// logged and retried on the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := w.RunOnce(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < w.batchSize {
					break
				}
			}
		}
	}
}

// RunOnce relays a single batch and reports how many entries were published.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	n, err := w.outbox.Claim(ctx, w.batchSize, w.producer.Publish)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		w.logger.DebugContext(ctx, "relayed audit events", "count", n)
	}
	return n, nil
}
