// internal/pkg/cache/client.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"flashdeal/internal/pkg/lock"
	"flashdeal/internal/pkg/redis"

	pkgerrors "github.com/pkg/errors"
)

var (
	// ErrNotFound 缓存和数据库中都没有该数据（包括命中空值标记）
	ErrNotFound = errors.New("cache: not found")
	// ErrCacheCorrupt 缓存值无法反序列化，读取时按未命中处理
	ErrCacheCorrupt = errors.New("cache: corrupt entry")
	// ErrDatabaseUnavailable 数据库加载函数返回了错误
	ErrDatabaseUnavailable = errors.New("cache: database unavailable")
	// ErrLockContention 互斥重建在重试上限内没有拿到锁
	ErrLockContention = errors.New("cache: lock contention")
)

// nullValue 是缓存穿透防护写入的空值标记
const nullValue = ""

// Options 是 CacheClient 的策略参数
type Options struct {
	NullTTL    time.Duration // 空值标记的过期时间
	LockTTL    time.Duration // 重建互斥锁的租约
	RetrySleep time.Duration // 互斥策略抢锁失败后的等待
	MaxRetries int           // 互斥策略的最大尝试次数
}

// Client 是 cache-aside 的缓存客户端，三种查询策略见 query.go
type Client struct {
	client *redis.Client
	locks  lock.Factory
	pool   *RebuildPool
	opts   Options
}

func NewClient(client *redis.Client, locks lock.Factory, pool *RebuildPool, opts Options) *Client {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}
	return &Client{client: client, locks: locks, pool: pool, opts: opts}
}

// logicalData 是逻辑过期策略的存储格式，key 本身不设置 TTL
type logicalData struct {
	Data       json.RawMessage `json:"data"`
	ExpireTime time.Time       `json:"expireTime"`
}

// Set 以 JSON 写入并设置 TTL
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal cache value for %s", key)
	}
	if err := c.client.GetClient().Set(ctx, key, raw, ttl).Err(); err != nil {
		return pkgerrors.Wrapf(err, "failed to set cache %s", key)
	}
	return nil
}

// SetWithLogicalExpire 写入带逻辑过期时间的值，key 永不过期
func (c *Client) SetWithLogicalExpire(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal cache value for %s", key)
	}
	wrapped, err := json.Marshal(logicalData{Data: raw, ExpireTime: time.Now().Add(ttl)})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to marshal logical data for %s", key)
	}
	if err := c.client.GetClient().Set(ctx, key, wrapped, 0).Err(); err != nil {
		return pkgerrors.Wrapf(err, "failed to set cache %s", key)
	}
	return nil
}

// Delete 删除缓存，数据库写入后调用
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.client.GetClient().Del(ctx, key).Err(); err != nil {
		return pkgerrors.Wrapf(err, "failed to delete cache %s", key)
	}
	return nil
}

func (c *Client) setNull(ctx context.Context, key string) error {
	if err := c.client.GetClient().Set(ctx, key, nullValue, c.opts.NullTTL).Err(); err != nil {
		return pkgerrors.Wrapf(err, "failed to set null marker %s", key)
	}
	return nil
}

// get 返回 (值, 是否存在, 错误)。key 不存在不是错误。
func (c *Client) get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.GetClient().Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, pkgerrors.Wrapf(err, "failed to get cache %s", key)
	}
	return val, true, nil
}
