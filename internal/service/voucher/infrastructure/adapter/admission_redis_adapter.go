// internal/service/voucher/infrastructure/adapter/admission_redis_adapter.go
package adapter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"flashdeal/internal/pkg/redis"
	"flashdeal/internal/service/voucher/domain"
	"flashdeal/internal/service/voucher/domain/port"

	goredis "github.com/redis/go-redis/v9"
)

const admissionScriptName = "seckill_admission"

// AdmissionRedisAdapter 是 port.AdmissionGate 的 Redis 实现
type AdmissionRedisAdapter struct {
	redisClient *redis.Client
	stream      string
}

// NewAdmissionRedisAdapter 创建准入适配器，并在创建时加载 Lua 脚本。
// stream 是订单队列的名字，脚本成功时直接把订单写入该 stream。
func NewAdmissionRedisAdapter(redisClient *redis.Client, stream string) (*AdmissionRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(admissionScriptName, admissionScript); err != nil {
		return nil, fmt.Errorf("failed to load critical admission script: %w", err)
	}
	return &AdmissionRedisAdapter{
		redisClient: redisClient,
		stream:      stream,
	}, nil
}

// StockKey 秒杀库存，花括号保证同一张券的 key 落在同一个 slot
func StockKey(voucherID int64) string { return fmt.Sprintf("seckill:stock:{%d}", voucherID) }

// WindowKey 秒杀时间窗口 hash: begin / end，单位秒，0 表示不限制
func WindowKey(voucherID int64) string { return fmt.Sprintf("seckill:window:{%d}", voucherID) }

// OrderSetKey 已抢到该券的用户集合
func OrderSetKey(voucherID int64) string { return fmt.Sprintf("seckill:order:{%d}", voucherID) }

// Admit 实现了秒杀准入
func (a *AdmissionRedisAdapter) Admit(ctx context.Context, voucherID, userID, orderID int64, now time.Time) (port.AdmissionResult, error) {
	keys := []string{StockKey(voucherID), WindowKey(voucherID), OrderSetKey(voucherID), a.stream}
	args := []interface{}{
		strconv.FormatInt(voucherID, 10),
		strconv.FormatInt(userID, 10),
		strconv.FormatInt(orderID, 10),
		now.Unix(),
	}

	result, err := a.redisClient.RunScript(ctx, admissionScriptName, keys, args...)
	if err != nil {
		return 0, fmt.Errorf("admission adapter failed to run script: %w", err)
	}

	code, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type from Lua script: %T", result)
	}

	switch res := port.AdmissionResult(code); res {
	case port.AdmissionOK, port.AdmissionSoldOut, port.AdmissionDuplicate, port.AdmissionNotStarted, port.AdmissionEnded:
		return res, nil
	default:
		return 0, fmt.Errorf("unknown result code from admission script: %d", code)
	}
}

// PrepareVoucher 初始化秒杀券库存和时间窗口，并清空已购用户。只在新建秒杀券时调用。
func (a *AdmissionRedisAdapter) PrepareVoucher(ctx context.Context, v *domain.Voucher) error {
	pipe := a.redisClient.GetClient().TxPipeline()
	pipe.Set(ctx, StockKey(v.ID), v.Stock, 0)
	writeWindow(ctx, pipe, v)
	pipe.Del(ctx, OrderSetKey(v.ID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prepare seckill voucher %d: %w", v.ID, err)
	}
	return nil
}

// SyncStock 在共享存储丢失库存 key 时用数据库库存补齐，返回是否写入了库存。
// 已存在的库存只由准入脚本扣减：已准入但尚未落库的订单还没扣数据库库存，覆盖会导致超卖。
func (a *AdmissionRedisAdapter) SyncStock(ctx context.Context, v *domain.Voucher) (bool, error) {
	pipe := a.redisClient.GetClient().TxPipeline()
	seeded := pipe.SetNX(ctx, StockKey(v.ID), v.Stock, 0)
	writeWindow(ctx, pipe, v)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to sync seckill stock %d: %w", v.ID, err)
	}
	return seeded.Val(), nil
}

// writeWindow 时间窗口不参与扣减，总是以数据库为准
func writeWindow(ctx context.Context, pipe goredis.Pipeliner, v *domain.Voucher) {
	pipe.HSet(ctx, WindowKey(v.ID), "begin", unixOrZero(v.BeginTime), "end", unixOrZero(v.EndTime))
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

var admissionScript = `
-- KEYS[1]: 库存, 例如 seckill:stock:{7}
-- KEYS[2]: 时间窗口 hash (begin, end)，单位秒，0 表示不限制
-- KEYS[3]: 已购用户集合, 例如 seckill:order:{7}
-- KEYS[4]: 订单 stream, 例如 stream.orders
-- ARGV[1]: voucherId  ARGV[2]: userId  ARGV[3]: orderId  ARGV[4]: 当前时间（秒）

local now = tonumber(ARGV[4])

-- 1. 时间窗口
local window = redis.call('hmget', KEYS[2], 'begin', 'end')
local beginTime = tonumber(window[1])
local endTime = tonumber(window[2])
if beginTime and beginTime > 0 and now < beginTime then
    return 3
end
if endTime and endTime > 0 and now > endTime then
    return 4
end

-- 2. 库存
local stock = tonumber(redis.call('get', KEYS[1]))
if not stock or stock <= 0 then
    return 1
end

-- 3. 一人一单
if redis.call('sismember', KEYS[3], ARGV[2]) == 1 then
    return 2
end

-- 4. 扣库存、记录用户、写入订单队列
redis.call('incrby', KEYS[1], -1)
redis.call('sadd', KEYS[3], ARGV[2])
redis.call('xadd', KEYS[4], '*', 'userId', ARGV[2], 'voucherId', ARGV[1], 'id', ARGV[3])
return 0
`
