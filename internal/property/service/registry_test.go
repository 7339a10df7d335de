package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propreg/internal/chain"
	"propreg/internal/property/models"
	"propreg/internal/property/store"
	"propreg/pkg/domain"
	dErrors "propreg/pkg/domain-errors"
	"propreg/pkg/platform/audit/publisher"
	auditmemory "propreg/pkg/platform/audit/store/memory"
)

func newRegistry(t *testing.T, opts ...Option) *Service {
	t.Helper()
	svc, err := New(store.NewInMemory(), append([]Option{WithHeightSource(chain.Fixed(123))}, opts...)...)
	require.NoError(t, err)
	return svc
}

func register(t *testing.T, svc *Service, owner domain.Principal, location string, size uint64, construction, zone string) domain.PropertyID {
	t.Helper()
	id, err := svc.Register(context.Background(), owner, models.RegisterCommand{
		Location:         location,
		Size:             size,
		ConstructionType: construction,
		RiskZone:         zone,
	})
	require.NoError(t, err)
	return id
}

func TestRegistry_TwoPropertyScenario(t *testing.T) {
	ctx := context.Background()
	svc := newRegistry(t)

	id1 := register(t, svc, alice, "123 Main St", 1000, "Wood", "Zone_A")
	assert.Equal(t, domain.PropertyID(1), id1)

	p1, err := svc.GetProperty(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &models.Property{
		ID:                 1,
		Owner:              alice,
		Location:           "123 Main St",
		Size:               1000,
		ConstructionType:   "Wood",
		RiskZone:           "Zone_A",
		RegistrationHeight: 123,
	}, p1)

	id2 := register(t, svc, alice, "456 Oak Ave", 1500, "Brick", "Zone_B")
	assert.Equal(t, domain.PropertyID(2), id2)

	count, err := svc.GetPropertyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyID(2), count)

	require.NoError(t, svc.UpdateRiskZone(ctx, 1, "Zone_C", alice))
	p1, err = svc.GetProperty(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Zone_C", p1.RiskZone)
	assert.Equal(t, "123 Main St", p1.Location)
	assert.Equal(t, alice, p1.Owner)

	err = svc.UpdateRiskZone(ctx, 2, "Zone_X", bob)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	p2, err := svc.GetProperty(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Zone_B", p2.RiskZone)

	_, err = svc.GetProperty(ctx, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	_, err = svc.GetProperty(ctx, 3)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRegistry_EmptyRegistry(t *testing.T) {
	ctx := context.Background()
	svc := newRegistry(t)

	count, err := svc.GetPropertyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyID(0), count)

	_, err = svc.GetProperty(ctx, 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	err = svc.UpdateRiskZone(ctx, 1, "Zone_A", alice)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRegistry_SequentialIDsAndCount(t *testing.T) {
	ctx := context.Background()
	svc := newRegistry(t)

	for i := range 25 {
		id := register(t, svc, alice, "plot", uint64(i), "Steel", "Zone_A")
		assert.Equal(t, domain.PropertyID(i+1), id)
	}
	count, err := svc.GetPropertyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PropertyID(25), count)

	for id := domain.PropertyID(1); id <= count; id++ {
		_, err := svc.GetProperty(ctx, id)
		assert.NoError(t, err)
	}
}

func TestRegistry_EmptyFieldsAreAccepted(t *testing.T) {
	svc := newRegistry(t)

	id := register(t, svc, alice, "", 0, "", "")
	p, err := svc.GetProperty(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, p.Location)
	assert.Zero(t, p.Size)
	assert.Equal(t, alice, p.Owner)
}

func TestRegistry_ReadsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := newRegistry(t)
	register(t, svc, alice, "123 Main St", 1000, "Wood", "Zone_A")

	first, err := svc.GetProperty(ctx, 1)
	require.NoError(t, err)
	first.RiskZone = "mutated by caller"

	second, err := svc.GetProperty(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Zone_A", second.RiskZone)
}

func TestRegistry_OwnerMaySetSameZoneRepeatedly(t *testing.T) {
	ctx := context.Background()
	svc := newRegistry(t)
	register(t, svc, alice, "123 Main St", 1000, "Wood", "Zone_A")

	require.NoError(t, svc.UpdateRiskZone(ctx, 1, "Zone_A", alice))
	require.NoError(t, svc.UpdateRiskZone(ctx, 1, "Zone_A", alice))
	require.NoError(t, svc.UpdateRiskZone(ctx, 1, "", alice))

	p, err := svc.GetProperty(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, p.RiskZone)
}

func TestRegistry_AuditTrail(t *testing.T) {
	ctx := context.Background()
	sink := auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(sink)
	defer pub.Close()
	svc := newRegistry(t, WithAuditPublisher(pub))

	register(t, svc, alice, "123 Main St", 1000, "Wood", "Zone_A")
	require.NoError(t, svc.UpdateRiskZone(ctx, 1, "Zone_C", alice))
	require.Error(t, svc.UpdateRiskZone(ctx, 1, "Zone_X", bob))

	events, err := sink.ListByProperty(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "property_registered", string(events[0].Action))
	assert.Equal(t, "risk_zone_updated", string(events[1].Action))
	assert.Equal(t, "risk_zone_update_denied", string(events[2].Action))
	assert.Equal(t, "security", string(events[2].Category))
}

func TestRegistry_ConcurrentRegistrationsAreDense(t *testing.T) {
	ctx := context.Background()
	svc := newRegistry(t)

	const n = 64
	ids := make(chan domain.PropertyID, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := svc.Register(ctx, alice, models.RegisterCommand{RiskZone: "Zone_A"})
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.PropertyID]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "id %d assigned twice", id)
		seen[id] = true
	}
	for id := domain.PropertyID(1); id <= n; id++ {
		assert.True(t, seen[id], "id %d skipped", id)
	}
}
