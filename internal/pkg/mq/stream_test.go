package mq_test

import (
	"context"
	"testing"
	"time"

	"flashdeal/internal/pkg/mq"
	"flashdeal/internal/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T, consumer string) (*miniredis.Miniredis, *mq.StreamQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q := mq.NewStreamQueue(redis.Wrap(rdb), "stream.orders", "g1", consumer)
	require.NoError(t, q.EnsureGroup(context.Background()))
	return mr, q
}

func TestStreamQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("ensure group is idempotent", func(t *testing.T) {
		_, q := newQueue(t, "c1")
		require.NoError(t, q.EnsureGroup(ctx))
	})

	t.Run("read new times out with empty result", func(t *testing.T) {
		_, q := newQueue(t, "c1")
		msgs, err := q.ReadNew(ctx, 1, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("delivered entries stay pending until acked", func(t *testing.T) {
		_, q := newQueue(t, "c1")
		first, err := q.Append(ctx, map[string]interface{}{"id": "1", "userId": "10", "voucherId": "7"})
		require.NoError(t, err)
		second, err := q.Append(ctx, map[string]interface{}{"id": "2", "userId": "11", "voucherId": "7"})
		require.NoError(t, err)

		msgs, err := q.ReadNew(ctx, 1, 100*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, first, msgs[0].ID)
		assert.Equal(t, "10", msgs[0].Values["userId"])

		msgs, err = q.ReadNew(ctx, 1, 100*time.Millisecond)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, second, msgs[0].ID)

		pending, err := q.ReadPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, first, pending[0].ID)

		require.NoError(t, q.Ack(ctx, first))
		// 重复 ACK 没有额外效果
		require.NoError(t, q.Ack(ctx, first))

		pending, err = q.ReadPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, second, pending[0].ID)

		count, err := q.PendingCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		require.NoError(t, q.Ack(ctx, second))
		pending, err = q.ReadPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("store unavailable", func(t *testing.T) {
		mr, q := newQueue(t, "c1")
		mr.Close()
		_, err := q.ReadPending(ctx, 1)
		require.Error(t, err)
	})
}
