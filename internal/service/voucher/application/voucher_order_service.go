// internal/service/voucher/application/voucher_order_service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"flashdeal/internal/pkg/cache"
	"flashdeal/internal/pkg/lock"
	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/pkg/metrics"
	"flashdeal/internal/service/voucher/domain"
	"flashdeal/internal/service/voucher/domain/port"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderIDPrefix   = "order"
	orderLockPrefix = "order:"
)

// VoucherOrderService 负责秒杀下单：同步准入 + 异步落库
type VoucherOrderService struct {
	gate    port.AdmissionGate
	ids     port.IDGenerator
	locks   lock.Factory
	orders  domain.OrderStore
	events  port.OrderEventPublisher
	cache   *cache.Client
	tracer  trace.Tracer
	lockTTL time.Duration
	now     func() time.Time
}

func NewVoucherOrderService(
	gate port.AdmissionGate,
	ids port.IDGenerator,
	locks lock.Factory,
	orders domain.OrderStore,
	events port.OrderEventPublisher,
	cacheClient *cache.Client,
	tracer trace.Tracer,
	lockTTL time.Duration,
) *VoucherOrderService {
	return &VoucherOrderService{
		gate:    gate,
		ids:     ids,
		locks:   locks,
		orders:  orders,
		events:  events,
		cache:   cacheClient,
		tracer:  tracer,
		lockTTL: lockTTL,
		now:     time.Now,
	}
}

// SetClock 替换时钟，测试中使用
func (s *VoucherOrderService) SetClock(now func() time.Time) {
	s.now = now
}

// SeckillVoucher 秒杀准入。成功时立即返回订单 ID，订单由后台消费者异步落库。
// 被拒绝时返回 ErrSoldOut / ErrDuplicatePurchase / ErrNotStarted / ErrEnded，
// 存储不可用时返回 ErrUnavailable。
func (s *VoucherOrderService) SeckillVoucher(ctx context.Context, userID, voucherID int64) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "app.SeckillVoucher")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("voucher.id", voucherID),
	)

	// 1. 预先生成订单 ID，脚本成功时直接把它写入订单队列
	orderID, err := s.ids.NextID(ctx, orderIDPrefix)
	if err != nil {
		metrics.SeckillAdmissions.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "id generator unavailable")
		return 0, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	// 2. 原子准入
	timer := prometheus.NewTimer(metrics.SeckillAdmissionLatency)
	result, err := s.gate.Admit(ctx, voucherID, userID, orderID, s.now())
	timer.ObserveDuration()
	if err != nil {
		metrics.SeckillAdmissions.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "admission gate unavailable")
		logger.Ctx(ctx).Error().Err(err).Int64("voucher_id", voucherID).Int64("user_id", userID).Msg("Admission gate failed")
		return 0, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	metrics.SeckillAdmissions.WithLabelValues(result.String()).Inc()
	span.SetAttributes(attribute.String("seckill.result", result.String()))

	// 3. 非 0 结果是面向用户的拒绝，不会产生任何订单
	switch result {
	case port.AdmissionOK:
		span.AddEvent("Seckill admitted, order queued.")
		logger.Ctx(ctx).Info().Int64("order_id", orderID).Int64("voucher_id", voucherID).Int64("user_id", userID).Msg("Seckill admitted")
		return orderID, nil
	case port.AdmissionSoldOut:
		return 0, domain.ErrSoldOut
	case port.AdmissionDuplicate:
		return 0, domain.ErrDuplicatePurchase
	case port.AdmissionNotStarted:
		return 0, domain.ErrNotStarted
	case port.AdmissionEnded:
		return 0, domain.ErrEnded
	default:
		return 0, fmt.Errorf("%w: unknown admission result %d", domain.ErrUnavailable, result)
	}
}

// HandleVoucherOrder 处理一条从队列取出的订单。
// 返回 nil 表示该记录可以确认（落库成功，或因业务校验失败而丢弃）；
// 返回错误表示需要保留在 pending 列表中稍后重试。
func (s *VoucherOrderService) HandleVoucherOrder(ctx context.Context, order *domain.VoucherOrder) error {
	ctx, span := s.tracer.Start(ctx, "app.HandleVoucherOrder")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.Int64("user.id", order.UserID),
		attribute.Int64("voucher.id", order.VoucherID),
	)
	log := logger.Ctx(ctx).With().
		Int64("order_id", order.ID).
		Int64("user_id", order.UserID).
		Int64("voucher_id", order.VoucherID).
		Logger()

	// 1. 用户级分布式锁
	lk := s.locks.NewLock(orderLockPrefix + strconv.FormatInt(order.UserID, 10))
	ok, err := lk.TryLock(ctx, s.lockTTL)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	if !ok {
		// 锁可能属于崩溃前的自己，记录留在 pending 中等锁过期后重试；
		// 重放由事务内的一人一单复查和唯一索引保证幂等
		metrics.OrderHandlerResults.WithLabelValues("lock_busy").Inc()
		log.Warn().Msg("Order lock for user is held, leaving record pending")
		return domain.ErrOrderLocked
	}
	defer func() {
		if err := lk.Unlock(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to release order lock")
		}
	}()

	// 2. 事务内落库
	err = s.CreateVoucherOrder(ctx, order)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrOrderExists):
		metrics.OrderHandlerResults.WithLabelValues("duplicate").Inc()
		log.Warn().Msg("Order already persisted, skipping")
		return nil
	case errors.Is(err, domain.ErrStockExhausted):
		metrics.OrderHandlerResults.WithLabelValues("stock_exhausted").Inc()
		log.Error().Msg("Database stock exhausted, order not persisted")
		return nil
	default:
		metrics.OrderHandlerResults.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist order failed")
		return err
	}

	metrics.OrderHandlerResults.WithLabelValues("persisted").Inc()
	log.Info().Msg("✅ Voucher order persisted")

	// 数据库库存已变化，删除优惠券详情缓存
	if s.cache != nil {
		if err := s.cache.Delete(ctx, voucherKey(order.VoucherID)); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate voucher cache")
		}
	}

	// 3. 通知下游，失败不影响确认
	if s.events != nil {
		if err := s.events.PublishOrderPersisted(ctx, order); err != nil {
			log.Warn().Err(err).Msg("Failed to publish order persisted event")
		}
	}
	return nil
}

// CreateVoucherOrder 在一个事务中完成：一人一单复查、带条件扣减库存、写入订单。
// 重放同一条记录时返回 ErrOrderExists，不会产生第二条订单。
func (s *VoucherOrderService) CreateVoucherOrder(ctx context.Context, order *domain.VoucherOrder) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.now()
	}
	if order.Status == 0 {
		order.Status = domain.OrderStatusUnpaid
	}

	return s.orders.WithinTx(ctx, func(tx domain.OrderTx) error {
		count, err := tx.CountByUserAndVoucher(ctx, order.UserID, order.VoucherID)
		if err != nil {
			return err
		}
		if count > 0 {
			return domain.ErrOrderExists
		}

		ok, err := tx.DecrementStock(ctx, order.VoucherID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrStockExhausted
		}

		return tx.Insert(ctx, order)
	})
}
