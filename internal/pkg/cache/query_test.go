package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flashdeal/internal/pkg/cache"
	"flashdeal/internal/pkg/lock"
	"flashdeal/internal/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shop struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

const prefix = "cache:shop:"

type fixture struct {
	mr     *miniredis.Miniredis
	client *cache.Client
	pool   *cache.RebuildPool
	locks  *lock.RedisFactory
}

func newFixture(t *testing.T, opts cache.Options) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	client := redis.Wrap(rdb)
	locks, err := lock.NewRedisFactory(client)
	require.NoError(t, err)

	pool := cache.NewRebuildPool(4, 16)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })

	return &fixture{mr: mr, client: cache.NewClient(client, locks, pool, opts), pool: pool, locks: locks}
}

func defaultOptions() cache.Options {
	return cache.Options{
		NullTTL:    2 * time.Minute,
		LockTTL:    10 * time.Second,
		RetrySleep: 10 * time.Millisecond,
		MaxRetries: 5,
	}
}

// countingLoader 记录被调用的次数；ids 中不存在的 id 返回 (nil, nil)
func countingLoader(calls *atomic.Int32, ids map[int64]shop) cache.Loader[int64, shop] {
	return func(_ context.Context, id int64) (*shop, error) {
		calls.Add(1)
		s, ok := ids[id]
		if !ok {
			return nil, nil
		}
		return &s, nil
	}
}

func TestQueryWithPassThrough(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then hit", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		var calls atomic.Int32
		loader := countingLoader(&calls, map[int64]shop{1: {ID: 1, Name: "103茶餐厅"}})

		got, err := cache.QueryWithPassThrough(ctx, f.client, prefix, int64(1), loader, 30*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "103茶餐厅", got.Name)
		assert.Equal(t, 30*time.Minute, f.mr.TTL("cache:shop:1"))

		for i := 0; i < 3; i++ {
			got, err = cache.QueryWithPassThrough(ctx, f.client, prefix, int64(1), loader, 30*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, &shop{ID: 1, Name: "103茶餐厅"}, got)
		}
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("absent rows are negatively cached", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		var calls atomic.Int32
		loader := countingLoader(&calls, nil)

		for i := 0; i < 5; i++ {
			_, err := cache.QueryWithPassThrough(ctx, f.client, prefix, int64(404), loader, 30*time.Minute)
			require.ErrorIs(t, err, cache.ErrNotFound)
		}
		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, 2*time.Minute, f.mr.TTL("cache:shop:404"))

		f.mr.FastForward(3 * time.Minute)
		_, err := cache.QueryWithPassThrough(ctx, f.client, prefix, int64(404), loader, 30*time.Minute)
		require.ErrorIs(t, err, cache.ErrNotFound)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("loader failure", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		loader := func(context.Context, int64) (*shop, error) { return nil, errors.New("connection refused") }

		_, err := cache.QueryWithPassThrough(ctx, f.client, prefix, int64(1), loader, time.Minute)
		require.ErrorIs(t, err, cache.ErrDatabaseUnavailable)
		assert.False(t, f.mr.Exists("cache:shop:1"))
	})

	t.Run("corrupt entry is treated as a miss", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		require.NoError(t, f.mr.Set("cache:shop:1", "{not json"))
		var calls atomic.Int32
		loader := countingLoader(&calls, map[int64]shop{1: {ID: 1, Name: "fixed"}})

		got, err := cache.QueryWithPassThrough(ctx, f.client, prefix, int64(1), loader, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "fixed", got.Name)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestQueryWithMutex(t *testing.T) {
	ctx := context.Background()

	t.Run("concurrent misses rebuild once", func(t *testing.T) {
		f := newFixture(t, cache.Options{NullTTL: time.Minute, LockTTL: 10 * time.Second, RetrySleep: 5 * time.Millisecond, MaxRetries: 200})
		var calls atomic.Int32
		loader := func(_ context.Context, id int64) (*shop, error) {
			calls.Add(1)
			time.Sleep(30 * time.Millisecond)
			return &shop{ID: id, Name: "hot"}, nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := cache.QueryWithMutex(ctx, f.client, prefix, int64(7), loader, time.Minute)
				if assert.NoError(t, err) {
					assert.Equal(t, "hot", got.Name)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), calls.Load())
		assert.False(t, f.mr.Exists("lock:cache:shop:7"))
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		f := newFixture(t, cache.Options{NullTTL: time.Minute, LockTTL: 10 * time.Second, RetrySleep: time.Millisecond, MaxRetries: 3})
		holder := f.locks.NewLock("cache:shop:9")
		ok, err := holder.TryLock(ctx, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		var calls atomic.Int32
		_, err = cache.QueryWithMutex(ctx, f.client, prefix, int64(9), countingLoader(&calls, nil), time.Minute)
		require.ErrorIs(t, err, cache.ErrLockContention)
		assert.Zero(t, calls.Load())
	})

	t.Run("null marker short-circuits", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		var calls atomic.Int32
		loader := countingLoader(&calls, nil)

		_, err := cache.QueryWithMutex(ctx, f.client, prefix, int64(5), loader, time.Minute)
		require.ErrorIs(t, err, cache.ErrNotFound)
		_, err = cache.QueryWithMutex(ctx, f.client, prefix, int64(5), loader, time.Minute)
		require.ErrorIs(t, err, cache.ErrNotFound)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestQueryWithLogicalExpire(t *testing.T) {
	ctx := context.Background()

	t.Run("absent key is not found", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		var calls atomic.Int32

		_, err := cache.QueryWithLogicalExpire(ctx, f.client, prefix, int64(1), countingLoader(&calls, nil), time.Minute)
		require.ErrorIs(t, err, cache.ErrNotFound)
		assert.Zero(t, calls.Load())
	})

	t.Run("fresh value is served without loading", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		require.NoError(t, f.client.SetWithLogicalExpire(ctx, "cache:shop:1", shop{ID: 1, Name: "warm"}, time.Minute))
		assert.Zero(t, f.mr.TTL("cache:shop:1"))

		var calls atomic.Int32
		got, err := cache.QueryWithLogicalExpire(ctx, f.client, prefix, int64(1), countingLoader(&calls, nil), time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "warm", got.Name)
		assert.Zero(t, calls.Load())
	})

	t.Run("stale value is served immediately and rebuilt once", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		require.NoError(t, f.client.SetWithLogicalExpire(ctx, "cache:shop:1", shop{ID: 1, Name: "stale"}, -time.Second))

		release := make(chan struct{})
		var calls atomic.Int32
		loader := func(_ context.Context, id int64) (*shop, error) {
			calls.Add(1)
			<-release
			return &shop{ID: id, Name: "fresh"}, nil
		}

		var wg sync.WaitGroup
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				start := time.Now()
				got, err := cache.QueryWithLogicalExpire(ctx, f.client, prefix, int64(1), loader, time.Minute)
				if assert.NoError(t, err) {
					assert.Equal(t, "stale", got.Name)
				}
				assert.Less(t, time.Since(start), 100*time.Millisecond)
			}()
		}
		wg.Wait()

		close(release)
		require.NoError(t, f.pool.Stop(ctx))
		assert.Equal(t, int32(1), calls.Load())
		assert.False(t, f.mr.Exists("lock:cache:shop:1"))

		got, err := cache.QueryWithLogicalExpire(ctx, f.client, prefix, int64(1), loader, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "fresh", got.Name)
	})

	t.Run("rebuild failure keeps stale value", func(t *testing.T) {
		f := newFixture(t, defaultOptions())
		require.NoError(t, f.client.SetWithLogicalExpire(ctx, "cache:shop:2", shop{ID: 2, Name: "stale"}, -time.Second))
		loader := func(context.Context, int64) (*shop, error) { return nil, errors.New("db down") }

		got, err := cache.QueryWithLogicalExpire(ctx, f.client, prefix, int64(2), loader, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "stale", got.Name)

		require.NoError(t, f.pool.Stop(ctx))
		got, err = cache.QueryWithLogicalExpire(ctx, f.client, prefix, int64(2), loader, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "stale", got.Name)
	})
}

func TestClient_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, defaultOptions())

	require.NoError(t, f.client.Set(ctx, "cache:shop:1", shop{ID: 1}, time.Minute))
	require.True(t, f.mr.Exists("cache:shop:1"))
	require.NoError(t, f.client.Delete(ctx, "cache:shop:1"))
	assert.False(t, f.mr.Exists("cache:shop:1"))
}
