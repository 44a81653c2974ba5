// internal/service/shop/infrastructure/gorm_repository.go
package infrastructure

import (
	"context"
	"errors"
	"fmt"

	"flashdeal/internal/service/shop/domain"

	"gorm.io/gorm"
)

// GormShopRepository 是 ShopRepository 的 GORM 实现
type GormShopRepository struct {
	db *gorm.DB
}

func NewGormShopRepository(db *gorm.DB) *GormShopRepository {
	return &GormShopRepository{db: db}
}

// Create 写入商铺，仅用于初始化数据
func (r *GormShopRepository) Create(ctx context.Context, s *domain.Shop) error {
	model := ToShopModel(s)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("%w: failed to create shop: %v", domain.ErrUnavailable, err)
	}
	s.ID = model.ID
	return nil
}

func (r *GormShopRepository) FindByID(ctx context.Context, id int64) (*domain.Shop, error) {
	var model ShopModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShopNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return ToDomainShop(&model), nil
}

// Update 全量更新商铺字段（包括零值）
func (r *GormShopRepository) Update(ctx context.Context, s *domain.Shop) error {
	model := ToShopModel(s)
	res := r.db.WithContext(ctx).Model(&ShopModel{}).Where("id = ?", s.ID).
		Select("name", "type_id", "images", "area", "address", "x", "y", "avg_price", "sold", "comments", "score", "open_hours").
		Updates(model)
	if res.Error != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		// MySQL 对未变化的行也返回 0，再确认一次是否存在
		if _, err := r.FindByID(ctx, s.ID); err != nil {
			return err
		}
	}
	return nil
}
