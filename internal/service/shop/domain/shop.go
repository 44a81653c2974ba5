// internal/service/shop/domain/shop.go
package domain

import (
	"context"
	"errors"
)

var (
	ErrShopNotFound = errors.New("shop not found")
	ErrInvalidShop  = errors.New("invalid shop")
	ErrUnavailable  = errors.New("service temporarily unavailable")
	// ErrBusy 热点 key 重建时等待超时
	ErrBusy = errors.New("shop is being rebuilt, try again")
)

// Shop 是商铺信息，读多写少，通过缓存对外提供
type Shop struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	TypeID    int64   `json:"typeId"`
	Images    string  `json:"images"`
	Area      string  `json:"area"`
	Address   string  `json:"address"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	AvgPrice  int64   `json:"avgPrice"`
	Sold      int     `json:"sold"`
	Comments  int     `json:"comments"`
	Score     int     `json:"score"`
	OpenHours string  `json:"openHours"`
}

// ShopRepository 商铺持久化接口
type ShopRepository interface {
	// FindByID 不存在时返回 ErrShopNotFound
	FindByID(ctx context.Context, id int64) (*Shop, error)
	// Update 不存在时返回 ErrShopNotFound
	Update(ctx context.Context, shop *Shop) error
}
