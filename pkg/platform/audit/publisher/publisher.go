// Package publisher fronts an audit sink. In sync mode Emit writes through
// and returns the sink's error; with WithAsyncBuffer, Emit enqueues and a
// background worker delivers, so a slow broker never holds up a registry
// operation.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "propreg/pkg/platform/audit"
	"propreg/pkg/platform/audit/worker"
)

var (
	// ErrBufferFull is returned in async mode when the queue is saturated.
	ErrBufferFull = errors.New("audit buffer full")
	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("audit publisher closed")
)

const (
	defaultDrainTimeout = 10 * time.Second
	// abandonGrace is how long Close waits for the worker after cancelling it.
	abandonGrace = time.Second
)

type Publisher struct {
	sink   audit.Sink
	logger *slog.Logger

	bufferSize    int
	drainTimeout  time.Duration
	workerOptions []worker.Option
	registerer    prometheus.Registerer

	queue    chan audit.Event
	worker   *worker.Worker
	cancel   context.CancelFunc
	done     chan struct{}
	rejected atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async delivery through a queue of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithLogger sets a logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithDeliveryTimeout bounds each async sink call.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.workerOptions = append(p.workerOptions, worker.WithDeliveryTimeout(d))
	}
}

// WithBreaker sheds async deliveries for cooldown after threshold
// consecutive sink failures.
func WithBreaker(threshold int, cooldown time.Duration) Option {
	return func(p *Publisher) {
		p.workerOptions = append(p.workerOptions, worker.WithBreaker(threshold, cooldown, nil))
	}
}

// WithDrainTimeout caps how long Close waits for queued events. Events still
// queued after it are abandoned.
func WithDrainTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.drainTimeout = d
		}
	}
}

// WithRegisterer exports async delivery counters to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Publisher) {
		p.registerer = reg
	}
}

func NewPublisher(sink audit.Sink, opts ...Option) *Publisher {
	p := &Publisher{
		sink:         sink,
		logger:       slog.New(slog.DiscardHandler),
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.queue = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		workerOpts := append([]worker.Option{worker.WithLogger(p.logger)}, p.workerOptions...)
		p.worker = worker.NewWorker(sink, p.queue, workerOpts...)

		var ctx context.Context
		ctx, p.cancel = context.WithCancel(context.Background())
		go func() {
			defer close(p.done)
			_ = p.worker.Run(ctx)
		}()
		if p.registerer != nil {
			p.registerMetrics(p.registerer)
		}
	}
	return p
}

func (p *Publisher) registerMetrics(reg prometheus.Registerer) {
	factory := promauto.With(reg)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "propreg_audit_events_delivered_total",
		Help: "Audit events accepted by the sink",
	}, func() float64 { return float64(p.worker.Delivered()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "propreg_audit_events_dropped_total",
		Help: "Audit events lost to a full buffer, sink failures or an open breaker",
	}, func() float64 { return float64(p.worker.Dropped() + p.rejected.Load()) })
}

// Emit stamps the event (id, timestamp, category) and hands it to the sink.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = event.Action.Category()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	if p.queue == nil {
		return p.sink.Append(ctx, event)
	}

	select {
	case p.queue <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.rejected.Add(1)
	p.logger.WarnContext(ctx, "audit buffer full, dropping event",
		"action", event.Action,
		"property_id", event.PropertyID,
	)
	return ErrBufferFull
}

// Close stops accepting events and, in async mode, waits up to the drain
// timeout for the queue to empty. After that the in-flight delivery is
// cancelled and the remaining events are abandoned.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.queue != nil {
		close(p.queue)
	}
	p.mu.Unlock()

	if p.done == nil {
		return
	}
	defer p.cancel()

	drain := time.NewTimer(p.drainTimeout)
	defer drain.Stop()
	select {
	case <-p.done:
		return
	case <-drain.C:
	}

	p.logger.Warn("audit drain timed out, abandoning queued events",
		"pending", len(p.queue),
		"drain_timeout", p.drainTimeout,
	)
	p.cancel()
	grace := time.NewTimer(abandonGrace)
	defer grace.Stop()
	select {
	case <-p.done:
	case <-grace.C:
		p.logger.Warn("audit worker did not stop after cancellation")
	}
}
