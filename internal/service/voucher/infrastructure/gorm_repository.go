// internal/service/voucher/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"flashdeal/internal/service/voucher/domain"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// mysqlDuplicateEntry 是 MySQL 唯一键冲突的错误码
const mysqlDuplicateEntry = 1062

// GormVoucherRepository 是 VoucherRepository 的 GORM 实现
type GormVoucherRepository struct {
	db *gorm.DB
}

func NewGormVoucherRepository(db *gorm.DB) *GormVoucherRepository {
	return &GormVoucherRepository{db: db}
}

// CreateSeckill 在一个事务内写入 tb_voucher 与 tb_seckill_voucher
func (r *GormVoucherRepository) CreateSeckill(ctx context.Context, v *domain.Voucher) error {
	model := ToVoucherModel(v)
	seckill := model.Seckill
	model.Seckill = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}
		if seckill == nil {
			return nil
		}
		seckill.VoucherID = model.ID
		return tx.Create(seckill).Error
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create voucher: %v", domain.ErrUnavailable, err)
	}
	v.ID = model.ID
	return nil
}

// FindByID 查询优惠券并预加载秒杀信息
func (r *GormVoucherRepository) FindByID(ctx context.Context, id int64) (*domain.Voucher, error) {
	var model VoucherModel
	err := r.db.WithContext(ctx).Preload("Seckill").First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return ToDomainVoucher(&model), nil
}

func (r *GormVoucherRepository) ListSeckill(ctx context.Context) ([]*domain.Voucher, error) {
	var models []VoucherModel
	err := r.db.WithContext(ctx).Preload("Seckill").
		Where("type = ?", domain.VoucherTypeSeckill).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	vouchers := make([]*domain.Voucher, 0, len(models))
	for i := range models {
		vouchers = append(vouchers, ToDomainVoucher(&models[i]))
	}
	return vouchers, nil
}

// GormOrderStore 是 OrderStore 的 GORM 实现
type GormOrderStore struct {
	db *gorm.DB
}

func NewGormOrderStore(db *gorm.DB) *GormOrderStore {
	return &GormOrderStore{db: db}
}

func (s *GormOrderStore) WithinTx(ctx context.Context, fn func(tx domain.OrderTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormOrderTx{tx: tx})
	})
}

type gormOrderTx struct {
	tx *gorm.DB
}

func (t *gormOrderTx) CountByUserAndVoucher(ctx context.Context, userID, voucherID int64) (int64, error) {
	var count int64
	err := t.tx.WithContext(ctx).Model(&VoucherOrderModel{}).
		Where("user_id = ? AND voucher_id = ?", userID, voucherID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return count, nil
}

// DecrementStock UPDATE tb_seckill_voucher SET stock = stock - 1 WHERE voucher_id = ? AND stock > 0
func (t *gormOrderTx) DecrementStock(ctx context.Context, voucherID int64) (bool, error) {
	res := t.tx.WithContext(ctx).Model(&SeckillVoucherModel{}).
		Where("voucher_id = ? AND stock > 0", voucherID).
		UpdateColumn("stock", gorm.Expr("stock - 1"))
	if res.Error != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrUnavailable, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormOrderTx) Insert(ctx context.Context, order *domain.VoucherOrder) error {
	err := t.tx.WithContext(ctx).Create(ToVoucherOrderModel(order)).Error
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDuplicateEntry {
		return domain.ErrOrderExists
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrOrderExists
	}
	return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
}
