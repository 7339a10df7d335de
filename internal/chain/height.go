// Package chain models the host ledger's block-height counter. The registry
// only reads it; advancing it belongs to the execution environment.
package chain

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"propreg/pkg/domain"
)

// HeightSource supplies the current block height. Implementations must never
// report a height lower than one previously reported.
type HeightSource interface {
	Height(ctx context.Context) domain.BlockHeight
}

// Fixed always reports the same height. Useful in tests and for hosts that
// pin a height per transaction.
type Fixed domain.BlockHeight

func (f Fixed) Height(context.Context) domain.BlockHeight {
	return domain.BlockHeight(f)
}

// Clock is an in-process block producer: the height advances by one every
// interval while Run is active, and on each explicit Advance.
type Clock struct {
	height   atomic.Uint64
	interval time.Duration
	logger   *slog.Logger
}

// NewClock returns a clock starting at start.
func NewClock(start domain.BlockHeight, interval time.Duration, logger *slog.Logger) *Clock {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Clock{interval: interval, logger: logger}
	c.height.Store(uint64(start))
	return c
}

func (c *Clock) Height(context.Context) domain.BlockHeight {
	return domain.BlockHeight(c.height.Load())
}

// Advance moves the clock forward one block and returns the new height.
func (c *Clock) Advance() domain.BlockHeight {
	return domain.BlockHeight(c.height.Add(1))
}

// Run ticks the clock until ctx is cancelled. A non-positive interval
// disables ticking and Run just waits for cancellation.
func (c *Clock) Run(ctx context.Context) error {
	if c.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.InfoContext(ctx, "block clock started",
		"height", c.height.Load(),
		"interval", c.interval.String(),
	)
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "block clock stopped", "height", c.height.Load())
			return nil
		case <-ticker.C:
			c.Advance()
		}
	}
}
