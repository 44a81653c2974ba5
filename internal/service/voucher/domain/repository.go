// internal/service/voucher/domain/repository.go
package domain

import "context"

// VoucherRepository 定义了优惠券聚合的持久化接口
type VoucherRepository interface {
	// CreateSeckill 在一个事务中写入优惠券及其秒杀信息，成功后回填 ID
	CreateSeckill(ctx context.Context, v *Voucher) error

	// FindByID 查询优惠券，不存在时返回 ErrVoucherNotFound
	FindByID(ctx context.Context, id int64) (*Voucher, error)

	// ListSeckill 返回全部秒杀券（含库存），启动时同步库存用
	ListSeckill(ctx context.Context) ([]*Voucher, error)
}

// OrderStore 提供秒杀订单落库所需的事务边界
type OrderStore interface {
	// WithinTx 在同一个数据库事务中执行 fn，fn 返回错误时回滚
	WithinTx(ctx context.Context, fn func(tx OrderTx) error) error
}

// OrderTx 是事务内可用的操作
type OrderTx interface {
	CountByUserAndVoucher(ctx context.Context, userID, voucherID int64) (int64, error)
	// DecrementStock 带 stock > 0 条件扣减库存，返回是否扣减成功
	DecrementStock(ctx context.Context, voucherID int64) (bool, error)
	// Insert 写入订单，唯一键冲突时返回 ErrOrderExists
	Insert(ctx context.Context, order *VoucherOrder) error
}
