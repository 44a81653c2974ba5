package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flashdeal/internal/pkg/lock"
	"flashdeal/internal/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFactory(t *testing.T) (*miniredis.Miniredis, *lock.RedisFactory) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	factory, err := lock.NewRedisFactory(redis.Wrap(rdb))
	require.NoError(t, err)
	return mr, factory
}

func TestRedisLock(t *testing.T) {
	ctx := context.Background()

	t.Run("second holder is rejected without waiting", func(t *testing.T) {
		mr, factory := newFactory(t)

		first := factory.NewLock("order:1010")
		ok, err := first.TryLock(ctx, 10*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, mr.Exists("lock:order:1010"))
		assert.Equal(t, 10*time.Second, mr.TTL("lock:order:1010"))

		start := time.Now()
		ok, err = factory.NewLock("order:1010").TryLock(ctx, 10*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Less(t, time.Since(start), time.Second)

		require.NoError(t, first.Unlock(ctx))
		assert.False(t, mr.Exists("lock:order:1010"))

		ok, err = factory.NewLock("order:1010").TryLock(ctx, 10*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("late unlock does not release a lease owned by someone else", func(t *testing.T) {
		mr, factory := newFactory(t)

		stale := factory.NewLock("order:7")
		ok, err := stale.TryLock(ctx, time.Second)
		require.NoError(t, err)
		require.True(t, ok)

		mr.FastForward(2 * time.Second)

		current := factory.NewLock("order:7")
		ok, err = current.TryLock(ctx, 10*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		owner, _ := mr.Get("lock:order:7")

		err = stale.Unlock(ctx)
		require.ErrorIs(t, err, lock.ErrNotHeld)

		after, _ := mr.Get("lock:order:7")
		assert.Equal(t, owner, after)
		require.NoError(t, current.Unlock(ctx))
	})

	t.Run("same handle is not reentrant", func(t *testing.T) {
		mr, factory := newFactory(t)

		l := factory.NewLock("order:88")
		ok, err := l.TryLock(ctx, 10*time.Second)
		require.NoError(t, err)
		require.True(t, ok)
		owner, _ := mr.Get("lock:order:88")

		ok, err = l.TryLock(ctx, 10*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)

		after, _ := mr.Get("lock:order:88")
		assert.Equal(t, owner, after)
		require.NoError(t, l.Unlock(ctx))
		assert.False(t, mr.Exists("lock:order:88"))
	})

	t.Run("unlock without acquiring", func(t *testing.T) {
		_, factory := newFactory(t)
		require.ErrorIs(t, factory.NewLock("order:8").Unlock(ctx), lock.ErrNotHeld)
	})

	t.Run("exactly one concurrent winner", func(t *testing.T) {
		_, factory := newFactory(t)

		var winners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := factory.NewLock("hot").TryLock(ctx, 10*time.Second)
				if assert.NoError(t, err) && ok {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), winners.Load())
	})

	t.Run("store unavailable", func(t *testing.T) {
		mr, factory := newFactory(t)
		mr.Close()

		ok, err := factory.NewLock("order:9").TryLock(ctx, time.Second)
		require.Error(t, err)
		assert.False(t, ok)
	})
}
