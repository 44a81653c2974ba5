// internal/service/voucher/domain/voucher.go
package domain

import "time"

// VoucherType 优惠券类型
type VoucherType int

const (
	VoucherTypeNormal  VoucherType = 0
	VoucherTypeSeckill VoucherType = 1
)

// Voucher 是优惠券聚合。秒杀券额外携带库存和抢购时间窗口。
type Voucher struct {
	ID          int64
	ShopID      int64
	Title       string
	SubTitle    string
	Rules       string
	PayValue    int64 // 支付金额，单位分
	ActualValue int64 // 抵扣金额，单位分
	Type        VoucherType
	Status      int

	Stock     int
	BeginTime time.Time
	EndTime   time.Time
}

// IsSeckill 是否为秒杀券
func (v *Voucher) IsSeckill() bool {
	return v.Type == VoucherTypeSeckill
}

// Validate 校验新建秒杀券的基本约束
func (v *Voucher) Validate() error {
	if v.ShopID <= 0 || v.Title == "" {
		return ErrInvalidVoucher
	}
	if !v.IsSeckill() {
		return nil
	}
	if v.Stock < 0 {
		return ErrInvalidVoucher
	}
	if !v.BeginTime.IsZero() && !v.EndTime.IsZero() && !v.EndTime.After(v.BeginTime) {
		return ErrInvalidVoucher
	}
	return nil
}
