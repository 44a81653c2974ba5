// internal/service/shop/infrastructure/memory_repository.go
package infrastructure

import (
	"context"
	"sync"

	"flashdeal/internal/service/shop/domain"
)

// MemoryShopRepository 是 ShopRepository 的内存实现，未配置 MySQL 时使用
type MemoryShopRepository struct {
	mu     sync.RWMutex
	nextID int64
	shops  map[int64]domain.Shop
}

func NewMemoryShopRepository() *MemoryShopRepository {
	return &MemoryShopRepository{shops: make(map[int64]domain.Shop)}
}

func (r *MemoryShopRepository) Create(_ context.Context, s *domain.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		r.nextID++
		s.ID = r.nextID
	} else if s.ID > r.nextID {
		r.nextID = s.ID
	}
	r.shops[s.ID] = *s
	return nil
}

func (r *MemoryShopRepository) FindByID(_ context.Context, id int64) (*domain.Shop, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shops[id]
	if !ok {
		return nil, domain.ErrShopNotFound
	}
	return &s, nil
}

func (r *MemoryShopRepository) Update(_ context.Context, s *domain.Shop) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.shops[s.ID]; !ok {
		return domain.ErrShopNotFound
	}
	r.shops[s.ID] = *s
	return nil
}
