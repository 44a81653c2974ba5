// internal/pkg/cache/query.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flashdeal/internal/pkg/lock"
	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/pkg/metrics"
)

const (
	strategyPassThrough = "pass_through"
	strategyMutex       = "mutex"
	strategyLogical     = "logical"
)

// Loader 从数据库加载数据。返回 (nil, nil) 表示数据不存在。
type Loader[ID any, R any] func(ctx context.Context, id ID) (*R, error)

// QueryWithPassThrough 缓存穿透防护：数据库中不存在的数据写入短 TTL 的空值标记
func QueryWithPassThrough[ID any, R any](ctx context.Context, c *Client, keyPrefix string, id ID, loader Loader[ID, R], ttl time.Duration) (*R, error) {
	key := keyPrefix + fmt.Sprint(id)

	r, hit, err := lookup[R](ctx, c, key, strategyPassThrough)
	if hit || err != nil {
		return r, err
	}
	return loadAndFill(ctx, c, key, id, loader, ttl)
}

// QueryWithMutex 缓存击穿防护：同一个 key 同一时刻只有一个调用方重建，其余调用方等待后重读。
// 重试次数有上限，超过后返回 ErrLockContention。
func QueryWithMutex[ID any, R any](ctx context.Context, c *Client, keyPrefix string, id ID, loader Loader[ID, R], ttl time.Duration) (*R, error) {
	key := keyPrefix + fmt.Sprint(id)

	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		r, hit, err := lookup[R](ctx, c, key, strategyMutex)
		if hit || err != nil {
			return r, err
		}

		lk := c.locks.NewLock(key)
		ok, err := lk.TryLock(ctx, c.opts.LockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return rebuildLocked(ctx, c, lk, key, id, loader, ttl)
		}

		timer := time.NewTimer(c.opts.RetrySleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	metrics.CacheLookups.WithLabelValues(strategyMutex, "contention").Inc()
	logger.Ctx(ctx).Warn().Str("key", key).Int("attempts", c.opts.MaxRetries).Msg("Gave up waiting for cache rebuild lock")
	return nil, ErrLockContention
}

// QueryWithLogicalExpire 逻辑过期：读者永远不阻塞。
// 过期时立即返回旧值，并由抢到锁的那一个调用方把重建任务交给 RebuildPool。
// key 不存在视为数据不存在（热点数据需要提前预热）。
func QueryWithLogicalExpire[ID any, R any](ctx context.Context, c *Client, keyPrefix string, id ID, loader Loader[ID, R], ttl time.Duration) (*R, error) {
	key := keyPrefix + fmt.Sprint(id)

	val, exists, err := c.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists || val == nullValue {
		metrics.CacheLookups.WithLabelValues(strategyLogical, "miss").Inc()
		return nil, ErrNotFound
	}

	r, expireTime, err := decodeLogical[R](val)
	if err != nil {
		metrics.CacheLookups.WithLabelValues(strategyLogical, "corrupt").Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Corrupt logical cache entry")
		return nil, ErrNotFound
	}

	if time.Now().Before(expireTime) {
		metrics.CacheLookups.WithLabelValues(strategyLogical, "hit").Inc()
		return r, nil
	}
	metrics.CacheLookups.WithLabelValues(strategyLogical, "stale").Inc()

	lk := c.locks.NewLock(key)
	ok, err := lk.TryLock(ctx, c.opts.LockTTL)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to try rebuild lock, serving stale value")
		return r, nil
	}
	if !ok {
		return r, nil
	}

	submitted := c.pool.Submit(func(bgCtx context.Context) {
		defer unlock(bgCtx, lk, key)
		rebuildLogical(bgCtx, c, key, id, loader, ttl)
	})
	if !submitted {
		metrics.CacheRebuilds.WithLabelValues("rejected").Inc()
		logger.Ctx(ctx).Warn().Str("key", key).Msg("Rebuild pool is full, skipping rebuild")
		unlock(ctx, lk, key)
	}
	return r, nil
}

// lookup 读取缓存：命中值返回 (r, true, nil)，命中空值标记返回 (nil, true, ErrNotFound)，
// 未命中或值损坏返回 (nil, false, nil)
func lookup[R any](ctx context.Context, c *Client, key, strategy string) (*R, bool, error) {
	val, exists, err := c.get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		metrics.CacheLookups.WithLabelValues(strategy, "miss").Inc()
		return nil, false, nil
	}
	if val == nullValue {
		metrics.CacheLookups.WithLabelValues(strategy, "null").Inc()
		return nil, true, ErrNotFound
	}

	r := new(R)
	if err := json.Unmarshal([]byte(val), r); err != nil {
		metrics.CacheLookups.WithLabelValues(strategy, "corrupt").Inc()
		logger.Ctx(ctx).Warn().Err(fmt.Errorf("%w: %v", ErrCacheCorrupt, err)).Str("key", key).Msg("Treating corrupt cache entry as miss")
		return nil, false, nil
	}
	metrics.CacheLookups.WithLabelValues(strategy, "hit").Inc()
	return r, true, nil
}

func loadAndFill[ID any, R any](ctx context.Context, c *Client, key string, id ID, loader Loader[ID, R], ttl time.Duration) (*R, error) {
	r, err := loader(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseUnavailable, err)
	}

	if r == nil {
		if err := c.setNull(ctx, key); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to write null marker")
		}
		return nil, ErrNotFound
	}

	// 写缓存失败不影响本次读取
	if err := c.Set(ctx, key, r, ttl); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to populate cache")
	}
	return r, nil
}

func rebuildLocked[ID any, R any](ctx context.Context, c *Client, lk lock.Lock, key string, id ID, loader Loader[ID, R], ttl time.Duration) (*R, error) {
	defer unlock(ctx, lk, key)

	// 拿到锁后再查一次，前一个持锁者可能已经写好了缓存
	r, hit, err := lookup[R](ctx, c, key, strategyMutex)
	if hit || err != nil {
		return r, err
	}
	return loadAndFill(ctx, c, key, id, loader, ttl)
}

func rebuildLogical[ID any, R any](ctx context.Context, c *Client, key string, id ID, loader Loader[ID, R], ttl time.Duration) {
	// 双重检查：排队期间可能已经有别的实例重建完成
	if val, exists, err := c.get(ctx, key); err == nil && exists {
		if _, expireTime, err := decodeLogical[R](val); err == nil && time.Now().Before(expireTime) {
			metrics.CacheRebuilds.WithLabelValues("skipped").Inc()
			return
		}
	}

	r, err := loader(ctx, id)
	if err != nil {
		metrics.CacheRebuilds.WithLabelValues("failed").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("key", key).Msg("Failed to load data for cache rebuild")
		return
	}

	if r == nil {
		// 数据已从数据库删除，删掉缓存让后续读取返回不存在
		err = c.Delete(ctx, key)
	} else {
		err = c.SetWithLogicalExpire(ctx, key, r, ttl)
	}
	if err != nil {
		metrics.CacheRebuilds.WithLabelValues("failed").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("key", key).Msg("Failed to write rebuilt cache entry")
		return
	}
	metrics.CacheRebuilds.WithLabelValues("ok").Inc()
	logger.Ctx(ctx).Debug().Str("key", key).Msg("Cache entry rebuilt")
}

func decodeLogical[R any](val string) (*R, time.Time, error) {
	var data logicalData
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	r := new(R)
	if err := json.Unmarshal(data.Data, r); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}
	return r, data.ExpireTime, nil
}

func unlock(ctx context.Context, lk lock.Lock, key string) {
	if err := lk.Unlock(ctx); err != nil && !errors.Is(err, lock.ErrNotHeld) {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to release cache rebuild lock")
	}
}
