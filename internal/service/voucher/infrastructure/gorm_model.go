// internal/service/voucher/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"flashdeal/internal/service/voucher/domain"
)

// VoucherModel 对应数据库中的 tb_voucher 表
type VoucherModel struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	ShopID      int64 `gorm:"index"`
	Title       string
	SubTitle    string
	Rules       string             `gorm:"type:varchar(1024)"`
	PayValue    int64              // 分
	ActualValue int64              // 分
	Type        domain.VoucherType `gorm:"type:tinyint"`
	Status      int                `gorm:"type:tinyint;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Seckill *SeckillVoucherModel `gorm:"foreignKey:VoucherID"`
}

// TableName 指定 GORM 应该使用的表名
func (VoucherModel) TableName() string {
	return "tb_voucher"
}

// SeckillVoucherModel 对应数据库中的 tb_seckill_voucher 表，stock 是权威库存
type SeckillVoucherModel struct {
	VoucherID int64 `gorm:"primaryKey;autoIncrement:false"`
	Stock     int
	BeginTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (SeckillVoucherModel) TableName() string {
	return "tb_seckill_voucher"
}

// VoucherOrderModel 对应数据库中的 tb_voucher_order 表。
// (user_id, voucher_id) 唯一索引是一人一单的最后一道防线。
type VoucherOrderModel struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"`
	UserID    int64 `gorm:"uniqueIndex:uk_user_voucher"`
	VoucherID int64 `gorm:"uniqueIndex:uk_user_voucher"`
	PayType   int   `gorm:"type:tinyint;default:1"`
	Status    int   `gorm:"type:tinyint;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (VoucherOrderModel) TableName() string {
	return "tb_voucher_order"
}

// Models 返回需要迁移的所有模型
func Models() []interface{} {
	return []interface{}{&VoucherModel{}, &SeckillVoucherModel{}, &VoucherOrderModel{}}
}
