// internal/service/voucher/domain/port/admission.go
package port

import (
	"context"
	"time"

	"flashdeal/internal/service/voucher/domain"
)

// AdmissionResult 是准入脚本的返回码
type AdmissionResult int

const (
	AdmissionOK AdmissionResult = iota
	AdmissionSoldOut
	AdmissionDuplicate
	AdmissionNotStarted
	AdmissionEnded
)

func (r AdmissionResult) String() string {
	switch r {
	case AdmissionOK:
		return "ok"
	case AdmissionSoldOut:
		return "sold_out"
	case AdmissionDuplicate:
		return "duplicate"
	case AdmissionNotStarted:
		return "not_started"
	case AdmissionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// AdmissionGate 是秒杀准入的出站端口。
// Admit 在共享存储中一次性原子完成：时间窗口校验、库存校验、一人一单校验、扣库存、记录购买用户、写入订单队列。
type AdmissionGate interface {
	Admit(ctx context.Context, voucherID, userID, orderID int64, now time.Time) (AdmissionResult, error)

	// PrepareVoucher 初始化秒杀券在共享存储中的库存、时间窗口，并清空购买用户集合
	PrepareVoucher(ctx context.Context, v *domain.Voucher) error

	// SyncStock 库存 key 缺失时用数据库库存补齐并刷新时间窗口，保留已购买用户集合；
	// 已存在的库存不覆盖，返回是否写入了库存
	SyncStock(ctx context.Context, v *domain.Voucher) (bool, error)
}

// IDGenerator 生成全局唯一 ID
type IDGenerator interface {
	NextID(ctx context.Context, prefix string) (int64, error)
}
