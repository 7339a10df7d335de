package publisher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propreg/pkg/domain"
	audit "propreg/pkg/platform/audit"
	"propreg/pkg/platform/audit/store/memory"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		PropertyID: 1,
		Action:     audit.ActionPropertyRegistered,
	})
	require.NoError(t, err)

	events, err := store.ListByProperty(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionPropertyRegistered, events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.NotEqual(t, uuid.Nil, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{
		PropertyID: 1,
		Action:     audit.ActionRiskZoneUpdated,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _ := store.ListByProperty(context.Background(), 1)
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		err := pub.Emit(context.Background(), audit.Event{
			PropertyID: 3,
			Action:     audit.ActionPropertyRegistered,
		})
		require.NoError(t, err)
	}

	pub.Close()

	events, err := store.ListByProperty(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFull(t *testing.T) {
	block := make(chan struct{})
	sink := blockingSink{release: block}
	pub := NewPublisher(sink, WithAsyncBuffer(1))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		full int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pub.Emit(context.Background(), audit.Event{PropertyID: 1})
			if errors.Is(err, ErrBufferFull) {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(block)
	pub.Close()

	assert.Positive(t, full, "a one-slot queue behind a blocked sink must reject some events")
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	pub.Close()
	pub.Close()

	err := pub.Emit(context.Background(), audit.Event{PropertyID: 1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	customTime := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	err := pub.Emit(context.Background(), audit.Event{
		PropertyID: 1,
		Action:     audit.ActionPropertyRegistered,
		Timestamp:  customTime,
	})
	require.NoError(t, err)

	events, err := store.ListByProperty(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, customTime, events[0].Timestamp)
}

func TestPublisher_SyncPropagatesSinkErrors(t *testing.T) {
	pub := NewPublisher(failingSink{})
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{PropertyID: 1})
	require.Error(t, err)
}

func TestPublisher_CloseIsBoundedWhenSinkStalls(t *testing.T) {
	t.Run("sink honours cancellation", func(t *testing.T) {
		pub := NewPublisher(stallingSink{},
			WithAsyncBuffer(8),
			WithDeliveryTimeout(time.Hour),
			WithDrainTimeout(50*time.Millisecond),
		)
		for range 3 {
			require.NoError(t, pub.Emit(context.Background(), audit.Event{PropertyID: 1}))
		}

		start := time.Now()
		pub.Close()
		assert.Less(t, time.Since(start), abandonGrace)
	})

	t.Run("sink ignores cancellation", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		pub := NewPublisher(blockingSink{release: release},
			WithAsyncBuffer(8),
			WithDrainTimeout(50*time.Millisecond),
		)
		require.NoError(t, pub.Emit(context.Background(), audit.Event{PropertyID: 1}))

		start := time.Now()
		pub.Close()
		assert.Less(t, time.Since(start), 50*time.Millisecond+abandonGrace+time.Second)
	})
}

func TestPublisher_ExportsDeliveryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	pub := NewPublisher(rejectingSink{property: 2},
		WithAsyncBuffer(8),
		WithBreaker(100, time.Minute),
		WithRegisterer(reg),
	)

	require.NoError(t, pub.Emit(context.Background(), audit.Event{PropertyID: 1}))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{PropertyID: 2}))
	pub.Close()

	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP propreg_audit_events_delivered_total Audit events accepted by the sink
# TYPE propreg_audit_events_delivered_total counter
propreg_audit_events_delivered_total 1
# HELP propreg_audit_events_dropped_total Audit events lost to a full buffer, sink failures or an open breaker
# TYPE propreg_audit_events_dropped_total counter
propreg_audit_events_dropped_total 1
`)))
}

type blockingSink struct {
	release <-chan struct{}
}

func (s blockingSink) Append(context.Context, audit.Event) error {
	<-s.release
	return nil
}

type stallingSink struct{}

func (stallingSink) Append(ctx context.Context, _ audit.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

type failingSink struct{}

func (failingSink) Append(context.Context, audit.Event) error {
	return errors.New("sink down")
}

// rejectingSink fails every event for one property.
type rejectingSink struct {
	property domain.PropertyID
}

func (s rejectingSink) Append(_ context.Context, event audit.Event) error {
	if event.PropertyID == s.property {
		return errors.New("broker down")
	}
	return nil
}
