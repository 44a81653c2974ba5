// internal/service/voucher/domain/order.go
package domain

import "time"

// OrderStatus 订单状态，秒杀链路只会产生未支付订单
type OrderStatus int

const (
	OrderStatusUnpaid OrderStatus = 1
)

// VoucherOrder 是秒杀成功后落库的订单。
// 同一 (UserID, VoucherID) 在系统生命周期内最多只有一条。
type VoucherOrder struct {
	ID        int64
	UserID    int64
	VoucherID int64
	PayType   int
	Status    OrderStatus
	CreatedAt time.Time
}

// OrderPersisted 是订单落库成功后对外发布的事件
type OrderPersisted struct {
	OrderID   int64     `json:"orderId"`
	UserID    int64     `json:"userId"`
	VoucherID int64     `json:"voucherId"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewOrderPersisted(o *VoucherOrder) OrderPersisted {
	return OrderPersisted{
		OrderID:   o.ID,
		UserID:    o.UserID,
		VoucherID: o.VoucherID,
		CreatedAt: o.CreatedAt,
	}
}
