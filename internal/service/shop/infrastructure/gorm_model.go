// internal/service/shop/infrastructure/gorm_model.go
package infrastructure

import (
	"time"

	"flashdeal/internal/service/shop/domain"
)

// ShopModel 对应数据库中的 tb_shop 表
type ShopModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(128)"`
	TypeID    int64  `gorm:"index"`
	Images    string `gorm:"type:varchar(1024)"`
	Area      string `gorm:"type:varchar(128)"`
	Address   string `gorm:"type:varchar(255)"`
	X         float64
	Y         float64
	AvgPrice  int64
	Sold      int
	Comments  int
	Score     int
	OpenHours string `gorm:"type:varchar(32)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ShopModel) TableName() string {
	return "tb_shop"
}

// Models 返回需要 AutoMigrate 的模型
func Models() []interface{} {
	return []interface{}{&ShopModel{}}
}

func ToDomainShop(m *ShopModel) *domain.Shop {
	return &domain.Shop{
		ID:        m.ID,
		Name:      m.Name,
		TypeID:    m.TypeID,
		Images:    m.Images,
		Area:      m.Area,
		Address:   m.Address,
		X:         m.X,
		Y:         m.Y,
		AvgPrice:  m.AvgPrice,
		Sold:      m.Sold,
		Comments:  m.Comments,
		Score:     m.Score,
		OpenHours: m.OpenHours,
	}
}

func ToShopModel(s *domain.Shop) *ShopModel {
	return &ShopModel{
		ID:        s.ID,
		Name:      s.Name,
		TypeID:    s.TypeID,
		Images:    s.Images,
		Area:      s.Area,
		Address:   s.Address,
		X:         s.X,
		Y:         s.Y,
		AvgPrice:  s.AvgPrice,
		Sold:      s.Sold,
		Comments:  s.Comments,
		Score:     s.Score,
		OpenHours: s.OpenHours,
	}
}
