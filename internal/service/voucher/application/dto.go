// internal/service/voucher/application/dto.go
package application

import (
	"time"

	"flashdeal/internal/service/voucher/domain"
)

// AddSeckillVoucherRequest 新增秒杀券请求
type AddSeckillVoucherRequest struct {
	ShopID      int64     `json:"shopId"`
	Title       string    `json:"title"`
	SubTitle    string    `json:"subTitle"`
	Rules       string    `json:"rules"`
	PayValue    int64     `json:"payValue"`
	ActualValue int64     `json:"actualValue"`
	Stock       int       `json:"stock"`
	BeginTime   time.Time `json:"beginTime"`
	EndTime     time.Time `json:"endTime"`
}

func (r *AddSeckillVoucherRequest) ToDomain() *domain.Voucher {
	return &domain.Voucher{
		ShopID:      r.ShopID,
		Title:       r.Title,
		SubTitle:    r.SubTitle,
		Rules:       r.Rules,
		PayValue:    r.PayValue,
		ActualValue: r.ActualValue,
		Type:        domain.VoucherTypeSeckill,
		Status:      1,
		Stock:       r.Stock,
		BeginTime:   r.BeginTime,
		EndTime:     r.EndTime,
	}
}

// VoucherResponse 优惠券详情
type VoucherResponse struct {
	ID          int64      `json:"id"`
	ShopID      int64      `json:"shopId"`
	Title       string     `json:"title"`
	SubTitle    string     `json:"subTitle"`
	Rules       string     `json:"rules"`
	PayValue    int64      `json:"payValue"`
	ActualValue int64      `json:"actualValue"`
	Type        int        `json:"type"`
	Stock       int        `json:"stock,omitempty"`
	BeginTime   *time.Time `json:"beginTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
}

func NewVoucherResponse(v *domain.Voucher) *VoucherResponse {
	resp := &VoucherResponse{
		ID:          v.ID,
		ShopID:      v.ShopID,
		Title:       v.Title,
		SubTitle:    v.SubTitle,
		Rules:       v.Rules,
		PayValue:    v.PayValue,
		ActualValue: v.ActualValue,
		Type:        int(v.Type),
	}
	if v.IsSeckill() {
		resp.Stock = v.Stock
		if !v.BeginTime.IsZero() {
			resp.BeginTime = &v.BeginTime
		}
		if !v.EndTime.IsZero() {
			resp.EndTime = &v.EndTime
		}
	}
	return resp
}

// SeckillResponse 秒杀成功响应
type SeckillResponse struct {
	OrderID int64 `json:"orderId"`
}

// RejectionResponse 秒杀被拒绝或暂不可用时的响应
type RejectionResponse struct {
	Reason string `json:"reason"`
}
