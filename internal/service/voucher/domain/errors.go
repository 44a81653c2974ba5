// internal/service/voucher/domain/errors.go
package domain

import "errors"

// 准入被拒绝：预期内的业务结果，直接返回给用户
var (
	ErrSoldOut           = errors.New("voucher is sold out")
	ErrDuplicatePurchase = errors.New("user has already purchased this voucher")
	ErrNotStarted        = errors.New("seckill has not started")
	ErrEnded             = errors.New("seckill has ended")
)

var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrInvalidVoucher  = errors.New("invalid voucher")

	// ErrOrderExists 落库时发现该用户已有该券的订单（重放导致）
	ErrOrderExists = errors.New("voucher order already exists")
	// ErrStockExhausted 数据库库存扣减的 stock > 0 条件未满足
	ErrStockExhausted = errors.New("voucher stock exhausted in database")

	// ErrOrderLocked 同一用户的订单正在被处理（或上次处理的锁尚未过期），记录留在 pending 稍后重试
	ErrOrderLocked = errors.New("voucher order is locked by another handler")

	// ErrUnavailable 共享存储或数据库不可达，由上层决定是否重试
	ErrUnavailable = errors.New("service temporarily unavailable")
	// ErrCorrupt 队列中的订单记录无法解析
	ErrCorrupt = errors.New("corrupt order record")
)
