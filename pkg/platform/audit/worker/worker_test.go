package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "propreg/pkg/platform/audit"
	"propreg/pkg/platform/audit/store/memory"
)

type flakySink struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (s *flakySink) Append(context.Context, audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return errors.New("broker down")
	}
	return nil
}

func (s *flakySink) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *flakySink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestWorkerDrainsInboxUntilClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 3)
	inbox <- audit.Event{PropertyID: 1, Action: audit.ActionPropertyRegistered}
	inbox <- audit.Event{PropertyID: 1, Action: audit.ActionRiskZoneUpdated}
	inbox <- audit.Event{PropertyID: 2, Action: audit.ActionPropertyRegistered}
	close(inbox)

	w := NewWorker(store, inbox)
	require.NoError(t, w.Run(context.Background()))

	events, err := store.ListByProperty(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionRiskZoneUpdated, events[1].Action)
	assert.Equal(t, int64(3), w.Delivered())
}

func TestWorkerStopsOnCancel(t *testing.T) {
	inbox := make(chan audit.Event)
	w := NewWorker(memory.NewInMemoryStore(), inbox)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Run(ctx), context.Canceled)
}

func TestWorkerBreakerShedsLoad(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	sink := &flakySink{fail: true}
	inbox := make(chan audit.Event)
	w := NewWorker(sink, inbox, WithBreaker(2, time.Minute, clock))

	// Two failures open the breaker; the next events are shed without a call.
	for range 5 {
		w.deliver(context.Background(), audit.Event{PropertyID: 1})
	}
	assert.Equal(t, 2, sink.callCount())
	assert.Equal(t, int64(5), w.Dropped())

	// After the cooldown one trial delivery goes through and closes the breaker.
	now = now.Add(2 * time.Minute)
	sink.setFail(false)
	w.deliver(context.Background(), audit.Event{PropertyID: 1})
	assert.Equal(t, 3, sink.callCount())
	assert.Equal(t, int64(1), w.Delivered())
	assert.False(t, w.breaker.isOpen())
}

func TestBreakerTrialFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := newBreaker(3, time.Minute, func() time.Time { return now })

	for range 3 {
		b.recordFailure()
	}
	require.True(t, b.isOpen())
	assert.False(t, b.allow())

	now = now.Add(time.Minute + time.Second)
	require.True(t, b.allow())
	b.recordFailure()
	assert.True(t, b.isOpen(), "a failed trial reopens immediately")
}

// stallingSink blocks until its context ends.
type stallingSink struct{}

func (stallingSink) Append(ctx context.Context, _ audit.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWorkerBoundsEachDelivery(t *testing.T) {
	inbox := make(chan audit.Event, 2)
	inbox <- audit.Event{PropertyID: 1}
	inbox <- audit.Event{PropertyID: 2}
	close(inbox)

	w := NewWorker(stallingSink{}, inbox, WithDeliveryTimeout(20*time.Millisecond))

	start := time.Now()
	require.NoError(t, w.Run(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(2), w.Dropped())
	assert.Zero(t, w.Delivered())
}
