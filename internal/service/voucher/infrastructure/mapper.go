// internal/service/voucher/infrastructure/mapper.go
package infrastructure

import "flashdeal/internal/service/voucher/domain"

// ToDomainVoucher 将数据库模型转换为领域模型
func ToDomainVoucher(m *VoucherModel) *domain.Voucher {
	v := &domain.Voucher{
		ID:          m.ID,
		ShopID:      m.ShopID,
		Title:       m.Title,
		SubTitle:    m.SubTitle,
		Rules:       m.Rules,
		PayValue:    m.PayValue,
		ActualValue: m.ActualValue,
		Type:        m.Type,
		Status:      m.Status,
	}
	if m.Seckill != nil {
		v.Stock = m.Seckill.Stock
		v.BeginTime = m.Seckill.BeginTime
		v.EndTime = m.Seckill.EndTime
	}
	return v
}

// ToVoucherModel 将领域模型转换为数据库模型
func ToVoucherModel(v *domain.Voucher) *VoucherModel {
	m := &VoucherModel{
		ID:          v.ID,
		ShopID:      v.ShopID,
		Title:       v.Title,
		SubTitle:    v.SubTitle,
		Rules:       v.Rules,
		PayValue:    v.PayValue,
		ActualValue: v.ActualValue,
		Type:        v.Type,
		Status:      v.Status,
	}
	if v.IsSeckill() {
		m.Seckill = &SeckillVoucherModel{
			VoucherID: v.ID,
			Stock:     v.Stock,
			BeginTime: v.BeginTime,
			EndTime:   v.EndTime,
		}
	}
	return m
}

func ToVoucherOrderModel(o *domain.VoucherOrder) *VoucherOrderModel {
	return &VoucherOrderModel{
		ID:        o.ID,
		UserID:    o.UserID,
		VoucherID: o.VoucherID,
		PayType:   o.PayType,
		Status:    int(o.Status),
		CreatedAt: o.CreatedAt,
	}
}
