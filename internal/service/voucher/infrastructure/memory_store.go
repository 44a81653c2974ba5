// internal/service/voucher/infrastructure/memory_store.go
package infrastructure

import (
	"context"
	"sort"
	"sync"

	"flashdeal/internal/service/voucher/domain"
)

// MemoryStore 是 VoucherRepository 与 OrderStore 的内存实现，
// 未配置 MySQL 时用于本地运行，也用于单元测试。事务通过一把互斥锁串行化。
type MemoryStore struct {
	mu       sync.Mutex
	nextID   int64
	vouchers map[int64]domain.Voucher
	orders   map[int64]domain.VoucherOrder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		vouchers: make(map[int64]domain.Voucher),
		orders:   make(map[int64]domain.VoucherOrder),
	}
}

func (s *MemoryStore) CreateSeckill(_ context.Context, v *domain.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == 0 {
		s.nextID++
		v.ID = s.nextID
	} else if v.ID > s.nextID {
		s.nextID = v.ID
	}
	s.vouchers[v.ID] = *v
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id int64) (*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return nil, domain.ErrVoucherNotFound
	}
	return &v, nil
}

func (s *MemoryStore) ListSeckill(_ context.Context) ([]*domain.Voucher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Voucher
	for _, v := range s.vouchers {
		if v.IsSeckill() {
			v := v
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// WithinTx 在锁内执行 fn，fn 成功后才应用暂存的修改
func (s *MemoryStore) WithinTx(_ context.Context, fn func(tx domain.OrderTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, decrements: make(map[int64]int)}
	if err := fn(tx); err != nil {
		return err
	}
	for voucherID, n := range tx.decrements {
		v := s.vouchers[voucherID]
		v.Stock -= n
		s.vouchers[voucherID] = v
	}
	for _, o := range tx.inserts {
		s.orders[o.ID] = o
	}
	return nil
}

// Orders 返回按 ID 排序的订单快照
func (s *MemoryStore) Orders() []domain.VoucherOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.VoucherOrder, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type memoryTx struct {
	store      *MemoryStore
	decrements map[int64]int
	inserts    []domain.VoucherOrder
}

func (t *memoryTx) CountByUserAndVoucher(_ context.Context, userID, voucherID int64) (int64, error) {
	var n int64
	for _, o := range t.store.orders {
		if o.UserID == userID && o.VoucherID == voucherID {
			n++
		}
	}
	for _, o := range t.inserts {
		if o.UserID == userID && o.VoucherID == voucherID {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DecrementStock(_ context.Context, voucherID int64) (bool, error) {
	v, ok := t.store.vouchers[voucherID]
	if !ok || v.Stock-t.decrements[voucherID] <= 0 {
		return false, nil
	}
	t.decrements[voucherID]++
	return true, nil
}

func (t *memoryTx) Insert(ctx context.Context, order *domain.VoucherOrder) error {
	if _, ok := t.store.orders[order.ID]; ok {
		return domain.ErrOrderExists
	}
	if n, _ := t.CountByUserAndVoucher(ctx, order.UserID, order.VoucherID); n > 0 {
		return domain.ErrOrderExists
	}
	t.inserts = append(t.inserts, *order)
	return nil
}
