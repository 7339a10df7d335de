//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propreg/internal/platform/config"
	"propreg/pkg/testutil/containers"
)

func TestNew_ConnectsToContainer(t *testing.T) {
	rc := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := New(ctx, config.Redis{
		URL:            rc.URL,
		PoolSize:       2,
		DialTimeout:    time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		ConnectRetries: 3,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	assert.NoError(t, client.Health(ctx))
	assert.Equal(t, 2, client.Options().PoolSize)
}
