// internal/service/shop/application/shop_service.go
package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"flashdeal/internal/pkg/cache"
	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/service/shop/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ShopCacheKeyPrefix 商铺缓存 key 前缀
const ShopCacheKeyPrefix = "cache:shop:"

// 缓存策略，对应配置 cache.shopStrategy
const (
	StrategyPassThrough = "pass_through"
	StrategyMutex       = "mutex"
	StrategyLogical     = "logical"
)

// Options 商铺缓存参数
type Options struct {
	Strategy   string
	TTL        time.Duration // pass_through / mutex 的缓存 TTL
	LogicalTTL time.Duration // logical 策略的逻辑过期时间
}

// ShopService 商铺读写用例：读走缓存，写先更新数据库再删缓存
type ShopService struct {
	repo   domain.ShopRepository
	cache  *cache.Client
	opts   Options
	tracer trace.Tracer
}

func NewShopService(repo domain.ShopRepository, cacheClient *cache.Client, opts Options, tracer trace.Tracer) (*ShopService, error) {
	switch opts.Strategy {
	case StrategyPassThrough, StrategyMutex, StrategyLogical:
	default:
		return nil, fmt.Errorf("unknown shop cache strategy %q", opts.Strategy)
	}
	return &ShopService{repo: repo, cache: cacheClient, opts: opts, tracer: tracer}, nil
}

// QueryShopByID 按配置的策略读取商铺
func (s *ShopService) QueryShopByID(ctx context.Context, id int64) (*domain.Shop, error) {
	ctx, span := s.tracer.Start(ctx, "app.QueryShop")
	defer span.End()
	span.SetAttributes(attribute.Int64("shop.id", id), attribute.String("cache.strategy", s.opts.Strategy))

	var (
		shop *domain.Shop
		err  error
	)
	switch s.opts.Strategy {
	case StrategyMutex:
		shop, err = cache.QueryWithMutex(ctx, s.cache, ShopCacheKeyPrefix, id, s.loadShop, s.opts.TTL)
	case StrategyLogical:
		shop, err = cache.QueryWithLogicalExpire(ctx, s.cache, ShopCacheKeyPrefix, id, s.loadShop, s.opts.LogicalTTL)
	default:
		shop, err = cache.QueryWithPassThrough(ctx, s.cache, ShopCacheKeyPrefix, id, s.loadShop, s.opts.TTL)
	}

	switch {
	case err == nil:
		return shop, nil
	case errors.Is(err, cache.ErrNotFound):
		return nil, domain.ErrShopNotFound
	case errors.Is(err, cache.ErrLockContention):
		return nil, domain.ErrBusy
	default:
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
}

// UpdateShop 先写数据库，再删除缓存
func (s *ShopService) UpdateShop(ctx context.Context, shop *domain.Shop) error {
	ctx, span := s.tracer.Start(ctx, "app.UpdateShop")
	defer span.End()

	if shop.ID <= 0 {
		return fmt.Errorf("%w: shop id must not be empty", domain.ErrInvalidShop)
	}
	span.SetAttributes(attribute.Int64("shop.id", shop.ID))

	if err := s.repo.Update(ctx, shop); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.cache.Delete(ctx, shopKey(shop.ID)); err != nil {
		// 数据库已更新，缓存删除失败只能等 TTL 兜底
		logger.Ctx(ctx).Error().Err(err).Int64("shop_id", shop.ID).Msg("Failed to invalidate shop cache")
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return nil
}

// WarmShop 预热逻辑过期缓存，logical 策略只会返回已预热的商铺。ttl <= 0 时使用配置值。
func (s *ShopService) WarmShop(ctx context.Context, id int64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.opts.LogicalTTL
	}
	shop, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.cache.SetWithLogicalExpire(ctx, shopKey(id), shop, ttl); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	logger.Ctx(ctx).Info().Int64("shop_id", id).Dur("logical_ttl", ttl).Msg("Shop cache warmed")
	return nil
}

func (s *ShopService) loadShop(ctx context.Context, id int64) (*domain.Shop, error) {
	shop, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrShopNotFound) {
		return nil, nil
	}
	return shop, err
}

func shopKey(id int64) string {
	return ShopCacheKeyPrefix + strconv.FormatInt(id, 10)
}
