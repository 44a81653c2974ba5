// internal/service/voucher/application/voucher_service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"flashdeal/internal/pkg/cache"
	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/service/voucher/domain"
	"flashdeal/internal/service/voucher/domain/port"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// VoucherCacheKeyPrefix 优惠券详情缓存 key 前缀
const VoucherCacheKeyPrefix = "cache:voucher:"

// VoucherService 负责秒杀券的管理与查询
type VoucherService struct {
	repo     domain.VoucherRepository
	gate     port.AdmissionGate
	cache    *cache.Client
	cacheTTL time.Duration
	tracer   trace.Tracer
}

func NewVoucherService(repo domain.VoucherRepository, gate port.AdmissionGate, cacheClient *cache.Client, cacheTTL time.Duration, tracer trace.Tracer) *VoucherService {
	return &VoucherService{
		repo:     repo,
		gate:     gate,
		cache:    cacheClient,
		cacheTTL: cacheTTL,
		tracer:   tracer,
	}
}

// AddSeckillVoucher 先写数据库，再把库存和时间窗口同步到共享存储
func (s *VoucherService) AddSeckillVoucher(ctx context.Context, v *domain.Voucher) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "app.AddSeckillVoucher")
	defer span.End()

	v.Type = domain.VoucherTypeSeckill
	if err := v.Validate(); err != nil {
		return 0, err
	}

	if err := s.repo.CreateSeckill(ctx, v); err != nil {
		span.RecordError(err)
		return 0, err
	}
	span.SetAttributes(attribute.Int64("voucher.id", v.ID), attribute.Int("voucher.stock", v.Stock))

	if err := s.gate.PrepareVoucher(ctx, v); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	s.invalidateVoucher(ctx, v.ID)

	logger.Ctx(ctx).Info().Int64("voucher_id", v.ID).Int("stock", v.Stock).Msg("Seckill voucher added")
	return v.ID, nil
}

// SyncVoucherStock 共享存储缺失库存时用数据库库存补齐，用于运维修复。
// 已存在的库存保持不变：已准入但尚未落库的订单还没有扣减数据库库存。
func (s *VoucherService) SyncVoucherStock(ctx context.Context, voucherID int64) error {
	ctx, span := s.tracer.Start(ctx, "app.SyncVoucherStock")
	defer span.End()
	span.SetAttributes(attribute.Int64("voucher.id", voucherID))

	v, err := s.repo.FindByID(ctx, voucherID)
	if err != nil {
		return err
	}
	if !v.IsSeckill() {
		return fmt.Errorf("%w: voucher %d is not a seckill voucher", domain.ErrInvalidVoucher, voucherID)
	}
	seeded, err := s.gate.SyncStock(ctx, v)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	s.invalidateVoucher(ctx, voucherID)
	logger.Ctx(ctx).Info().Int64("voucher_id", voucherID).Int("stock", v.Stock).Bool("seeded", seeded).Msg("Seckill stock synced")
	return nil
}

// SyncAllStock 同步全部秒杀券的库存，返回同步的数量。共享存储数据丢失后启动时调用。
func (s *VoucherService) SyncAllStock(ctx context.Context) (int, error) {
	vouchers, err := s.repo.ListSeckill(ctx)
	if err != nil {
		return 0, err
	}
	seededCount := 0
	for _, v := range vouchers {
		seeded, err := s.gate.SyncStock(ctx, v)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
		}
		if seeded {
			seededCount++
		}
		s.invalidateVoucher(ctx, v.ID)
	}
	logger.Ctx(ctx).Info().Int("vouchers", len(vouchers)).Int("seeded", seededCount).Msg("✅ Seckill stock synced from database")
	return len(vouchers), nil
}

// GetVoucher 通过缓存读取优惠券详情
func (s *VoucherService) GetVoucher(ctx context.Context, voucherID int64) (*domain.Voucher, error) {
	v, err := cache.QueryWithPassThrough(ctx, s.cache, VoucherCacheKeyPrefix, voucherID, s.loadVoucher, s.cacheTTL)
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, cache.ErrNotFound):
		return nil, domain.ErrVoucherNotFound
	default:
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
}

func (s *VoucherService) loadVoucher(ctx context.Context, id int64) (*domain.Voucher, error) {
	v, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrVoucherNotFound) {
		return nil, nil
	}
	return v, err
}

// invalidateVoucher 删除优惠券详情缓存，失败只记录日志，缓存随 TTL 过期
func (s *VoucherService) invalidateVoucher(ctx context.Context, voucherID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, voucherKey(voucherID)); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("voucher_id", voucherID).Msg("Failed to invalidate voucher cache")
	}
}

func voucherKey(id int64) string {
	return VoucherCacheKeyPrefix + strconv.FormatInt(id, 10)
}
