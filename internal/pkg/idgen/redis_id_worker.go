// internal/pkg/idgen/redis_id_worker.go
package idgen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flashdeal/internal/pkg/redis"
)

// ID 的组成:
//   - 符号位 1bit，永远为 0
//   - 时间戳 31bit，相对 beginTimestamp 的秒数，可用约 68 年
//   - 序列号 32bit，按 prefix + 日期 自增，每天每个业务前缀最多 2^32 个
const (
	beginTimestamp int64 = 1640995200 // 2022-01-01T00:00:00Z
	countBits            = 32
	maxSequence    int64 = 1<<countBits - 1
	keyPrefix            = "icr:"
	dateLayout           = "2006:01:02"
)

var (
	// ErrUnavailable 共享计数器不可用，调用方不能自行伪造 ID
	ErrUnavailable = errors.New("id generator unavailable")
	// ErrSequenceExhausted 当天该前缀的序列号已用完
	ErrSequenceExhausted = errors.New("id sequence exhausted for today")
)

// RedisIDWorker 基于 Redis INCR 的全局 ID 生成器
type RedisIDWorker struct {
	client *redis.Client
	now    func() time.Time
}

// Option 用于定制 RedisIDWorker
type Option func(*RedisIDWorker)

// WithClock 替换时钟，测试中使用
func WithClock(now func() time.Time) Option {
	return func(w *RedisIDWorker) { w.now = now }
}

func NewRedisIDWorker(client *redis.Client, opts ...Option) *RedisIDWorker {
	w := &RedisIDWorker{client: client, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NextID 生成 prefix 业务下一个 ID
func (w *RedisIDWorker) NextID(ctx context.Context, prefix string) (int64, error) {
	now := w.now().UTC()
	timestamp := now.Unix() - beginTimestamp

	key := keyPrefix + prefix + ":" + now.Format(dateLayout)
	count, err := w.client.GetClient().Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count > maxSequence {
		return 0, fmt.Errorf("%w: prefix=%s", ErrSequenceExhausted, prefix)
	}

	return timestamp<<countBits | count, nil
}

// Timestamp 解析 ID 中的时间部分（秒精度）
func Timestamp(id int64) time.Time {
	return time.Unix(id>>countBits+beginTimestamp, 0).UTC()
}

// Sequence 解析 ID 中的序列号部分
func Sequence(id int64) int64 {
	return id & maxSequence
}
