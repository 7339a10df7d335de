package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	audit "propreg/pkg/platform/audit"
)

// Worker drains an inbox of audit events into a sink. Delivery failures are
// logged and counted rather than stopping the loop; while the sink keeps
// failing, the breaker drops events without attempting delivery.
type Worker struct {
	sink            audit.Sink
	inbox           <-chan audit.Event
	logger          *slog.Logger
	breaker         *breaker
	deliveryTimeout time.Duration

	delivered atomic.Int64
	dropped   atomic.Int64
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithBreaker tunes the failure threshold and cooldown. now may be nil.
func WithBreaker(threshold int, cooldown time.Duration, now func() time.Time) Option {
	return func(w *Worker) {
		w.breaker = newBreaker(threshold, cooldown, now)
	}
}

// WithDeliveryTimeout bounds each sink call so one stalled delivery cannot
// hold up the rest of the inbox.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.deliveryTimeout = d
		}
	}
}

const defaultDeliveryTimeout = 5 * time.Second

func NewWorker(sink audit.Sink, inbox <-chan audit.Event, opts ...Option) *Worker {
	w := &Worker{
		sink:            sink,
		inbox:           inbox,
		logger:          slog.New(slog.DiscardHandler),
		breaker:         newBreaker(0, 0, nil),
		deliveryTimeout: defaultDeliveryTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run delivers events until the inbox is closed and drained, or ctx is
// cancelled. Events still queued at cancellation are not delivered.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event audit.Event) {
	if !w.breaker.allow() {
		w.dropped.Add(1)
		return
	}
	deliverCtx, cancel := context.WithTimeout(ctx, w.deliveryTimeout)
	defer cancel()
	if err := w.sink.Append(deliverCtx, event); err != nil {
		w.breaker.recordFailure()
		w.dropped.Add(1)
		w.logger.ErrorContext(ctx, "failed to deliver audit event",
			"action", event.Action,
			"property_id", event.PropertyID,
			"request_id", event.RequestID,
			"breaker_open", w.breaker.isOpen(),
			"error", err,
		)
		return
	}
	w.breaker.recordSuccess()
	w.delivered.Add(1)
}

// Delivered returns the number of events the sink accepted.
func (w *Worker) Delivered() int64 { return w.delivered.Load() }

// Dropped returns the number of events lost to sink failures or an open breaker.
func (w *Worker) Dropped() int64 { return w.dropped.Load() }
