//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"flashdeal/internal/pkg/lock"
	"flashdeal/internal/pkg/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestZookeeperLock(t *testing.T) {
	addr := testutil.StartContainer(t, testcontainers.ContainerRequest{
		Image:        "zookeeper:3.9",
		ExposedPorts: []string{"2181/tcp"},
		WaitingFor:   wait.ForListeningPort("2181/tcp").WithStartupTimeout(60 * time.Second),
	}, "2181/tcp", 90*time.Second)

	conn, err := lock.ConnectZookeeper(addr, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	factory, err := lock.NewZookeeperFactory(conn)
	require.NoError(t, err)

	ctx := context.Background()

	first := factory.NewLock("order:1010")
	ok, err := first.TryLock(ctx, 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	second := factory.NewLock("order:1010")
	ok, err = second.TryLock(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	require.ErrorIs(t, second.Unlock(ctx), lock.ErrNotHeld)

	require.NoError(t, first.Unlock(ctx))
	require.ErrorIs(t, first.Unlock(ctx), lock.ErrNotHeld)

	ok, err = second.TryLock(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock(ctx))
}
