package adapter_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flashdeal/internal/pkg/redis"
	"flashdeal/internal/service/voucher/domain"
	"flashdeal/internal/service/voucher/domain/port"
	"flashdeal/internal/service/voucher/infrastructure/adapter"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stream = "stream.orders"

func newAdapter(t *testing.T) (*miniredis.Miniredis, *goredis.Client, *adapter.AdmissionRedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), PoolSize: 64})
	t.Cleanup(func() { _ = rdb.Close() })

	a, err := adapter.NewAdmissionRedisAdapter(redis.Wrap(rdb), stream)
	require.NoError(t, err)
	return mr, rdb, a
}

func prepare(t *testing.T, a *adapter.AdmissionRedisAdapter, v *domain.Voucher) {
	t.Helper()
	require.NoError(t, a.PrepareVoucher(context.Background(), v))
}

func TestAdmissionRedisAdapter_Admit(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 18, 20, 0, 0, 0, time.UTC)

	t.Run("admitted order is queued", func(t *testing.T) {
		mr, rdb, a := newAdapter(t)
		prepare(t, a, &domain.Voucher{ID: 7, Type: domain.VoucherTypeSeckill, Stock: 2})

		res, err := a.Admit(ctx, 7, 1010, 99001, now)
		require.NoError(t, err)
		assert.Equal(t, port.AdmissionOK, res)

		stock, err := mr.Get(adapter.StockKey(7))
		require.NoError(t, err)
		assert.Equal(t, "1", stock)
		ok, err := mr.SIsMember(adapter.OrderSetKey(7), "1010")
		require.NoError(t, err)
		assert.True(t, ok)

		entries, err := rdb.XRange(ctx, stream, "-", "+").Result()
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, map[string]interface{}{"userId": "1010", "voucherId": "7", "id": "99001"}, entries[0].Values)
	})

	t.Run("same user is rejected without decrementing", func(t *testing.T) {
		mr, _, a := newAdapter(t)
		prepare(t, a, &domain.Voucher{ID: 7, Type: domain.VoucherTypeSeckill, Stock: 5})

		res, err := a.Admit(ctx, 7, 1010, 1, now)
		require.NoError(t, err)
		require.Equal(t, port.AdmissionOK, res)

		res, err = a.Admit(ctx, 7, 1010, 2, now)
		require.NoError(t, err)
		assert.Equal(t, port.AdmissionDuplicate, res)

		stock, _ := mr.Get(adapter.StockKey(7))
		assert.Equal(t, "4", stock)
	})

	t.Run("last unit goes to exactly one of two users", func(t *testing.T) {
		_, _, a := newAdapter(t)
		prepare(t, a, &domain.Voucher{ID: 1, Type: domain.VoucherTypeSeckill, Stock: 1})

		results := make([]port.AdmissionResult, 2)
		var wg sync.WaitGroup
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				res, err := a.Admit(ctx, 1, int64(100+i), int64(500+i), now)
				assert.NoError(t, err)
				results[i] = res
			}(i)
		}
		wg.Wait()
		assert.ElementsMatch(t, []port.AdmissionResult{port.AdmissionOK, port.AdmissionSoldOut}, results)
	})

	t.Run("exactly stock many concurrent users succeed", func(t *testing.T) {
		mr, rdb, a := newAdapter(t)
		const stock, users = 50, 300
		prepare(t, a, &domain.Voucher{ID: 3, Type: domain.VoucherTypeSeckill, Stock: stock})

		var ok, soldOut atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < users; i++ {
			wg.Add(1)
			go func(uid int64) {
				defer wg.Done()
				res, err := a.Admit(ctx, 3, uid, 10_000+uid, now)
				if !assert.NoError(t, err) {
					return
				}
				switch res {
				case port.AdmissionOK:
					ok.Add(1)
				case port.AdmissionSoldOut:
					soldOut.Add(1)
				default:
					t.Errorf("unexpected result %s", res)
				}
			}(int64(i + 1))
		}
		wg.Wait()

		assert.Equal(t, int32(stock), ok.Load())
		assert.Equal(t, int32(users-stock), soldOut.Load())
		left, _ := mr.Get(adapter.StockKey(3))
		assert.Equal(t, "0", left)
		n, err := rdb.XLen(ctx, stream).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(stock), n)
	})

	t.Run("concurrent attempts by one user", func(t *testing.T) {
		_, rdb, a := newAdapter(t)
		prepare(t, a, &domain.Voucher{ID: 4, Type: domain.VoucherTypeSeckill, Stock: 100})

		var ok, dup atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int64) {
				defer wg.Done()
				res, err := a.Admit(ctx, 4, 42, 700+i, now)
				if !assert.NoError(t, err) {
					return
				}
				if res == port.AdmissionOK {
					ok.Add(1)
				} else if res == port.AdmissionDuplicate {
					dup.Add(1)
				}
			}(int64(i))
		}
		wg.Wait()

		assert.Equal(t, int32(1), ok.Load())
		assert.Equal(t, int32(19), dup.Load())
		n, _ := rdb.XLen(ctx, stream).Result()
		assert.Equal(t, int64(1), n)
	})

	t.Run("time window", func(t *testing.T) {
		_, _, a := newAdapter(t)
		prepare(t, a, &domain.Voucher{
			ID:        5,
			Type:      domain.VoucherTypeSeckill,
			Stock:     10,
			BeginTime: now.Add(time.Hour),
			EndTime:   now.Add(2 * time.Hour),
		})

		res, err := a.Admit(ctx, 5, 1, 1, now)
		require.NoError(t, err)
		assert.Equal(t, port.AdmissionNotStarted, res)

		res, err = a.Admit(ctx, 5, 1, 1, now.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, port.AdmissionEnded, res)

		res, err = a.Admit(ctx, 5, 1, 1, now.Add(90*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, port.AdmissionOK, res)
	})

	t.Run("unprepared voucher is sold out", func(t *testing.T) {
		_, _, a := newAdapter(t)
		res, err := a.Admit(ctx, 404, 1, 1, now)
		require.NoError(t, err)
		assert.Equal(t, port.AdmissionSoldOut, res)
	})

	t.Run("store unavailable", func(t *testing.T) {
		mr, _, a := newAdapter(t)
		mr.Close()
		_, err := a.Admit(ctx, 1, 1, 1, now)
		require.Error(t, err)
	})
}

func TestAdmissionRedisAdapter_Prepare(t *testing.T) {
	ctx := context.Background()
	mr, _, a := newAdapter(t)
	v := &domain.Voucher{ID: 9, Type: domain.VoucherTypeSeckill, Stock: 1}
	prepare(t, a, v)

	res, err := a.Admit(ctx, 9, 1, 1, time.Now())
	require.NoError(t, err)
	require.Equal(t, port.AdmissionOK, res)

	// 库存 key 存在时 SyncStock 不覆盖，已购用户仍被拒绝
	v.Stock = 3
	seeded, err := a.SyncStock(ctx, v)
	require.NoError(t, err)
	assert.False(t, seeded)
	stock, err := mr.Get(adapter.StockKey(9))
	require.NoError(t, err)
	assert.Equal(t, "0", stock)
	res, err = a.Admit(ctx, 9, 1, 2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, port.AdmissionDuplicate, res)

	// 库存 key 丢失后用数据库库存补齐
	mr.Del(adapter.StockKey(9))
	seeded, err = a.SyncStock(ctx, v)
	require.NoError(t, err)
	assert.True(t, seeded)
	stock, err = mr.Get(adapter.StockKey(9))
	require.NoError(t, err)
	assert.Equal(t, "3", stock)

	// PrepareVoucher 重新开始一轮秒杀
	prepare(t, a, v)
	assert.False(t, mr.Exists(adapter.OrderSetKey(9)))
	res, err = a.Admit(ctx, 9, 1, 3, time.Now())
	require.NoError(t, err)
	assert.Equal(t, port.AdmissionOK, res)
}
