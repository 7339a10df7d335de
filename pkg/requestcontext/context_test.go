package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"propreg/pkg/domain"
)

func TestAccessorsDefaultToZero(t *testing.T) {
	ctx := context.Background()

	assert.True(t, Caller(ctx).IsNil())
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := WithCaller(context.Background(), domain.Principal("ST1OWNER"))
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithTime(ctx, fixed)

	assert.Equal(t, domain.Principal("ST1OWNER"), Caller(ctx))
	assert.Equal(t, "req-123", RequestID(ctx))
	assert.Equal(t, fixed, Now(ctx))
}
