// cmd/voucher-service/wire.go
package main

import (
	"context"
	"strings"

	"flashdeal/internal/pkg/bootstrap"
	"flashdeal/internal/pkg/cache"
	"flashdeal/internal/pkg/config"
	"flashdeal/internal/pkg/database"
	"flashdeal/internal/pkg/idgen"
	"flashdeal/internal/pkg/lock"
	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/pkg/mq"
	"flashdeal/internal/pkg/redis"
	shopapp "flashdeal/internal/service/shop/application"
	shopdomain "flashdeal/internal/service/shop/domain"
	shopinfra "flashdeal/internal/service/shop/infrastructure"
	shopiface "flashdeal/internal/service/shop/interfaces"
	voucherapp "flashdeal/internal/service/voucher/application"
	voucherdomain "flashdeal/internal/service/voucher/domain"
	voucherinfra "flashdeal/internal/service/voucher/infrastructure"
	"flashdeal/internal/service/voucher/infrastructure/adapter"
	voucheriface "flashdeal/internal/service/voucher/interfaces"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

type application struct {
	voucherHandler *voucheriface.VoucherHandler
	shopHandler    *shopiface.ShopHandler
}

type stores struct {
	vouchers voucherdomain.VoucherRepository
	orders   voucherdomain.OrderStore
	shops    shopdomain.ShopRepository
}

// buildApp 按依赖顺序创建组件，每个组件启动后立即注册到 Lifecycle。
// Lifecycle 逆序关闭，因此消费者先于它依赖的存储与 writer 停止。
func buildApp(ctx context.Context, cfg config.Config, lc *bootstrap.Lifecycle) (*application, error) {
	// 1. 共享存储
	redisClient, err := redis.NewClient(ctx, redis.Options{
		Addrs:    cfg.Infra.Redis.Addrs,
		Password: cfg.Infra.Redis.Password,
		DB:       cfg.Infra.Redis.DB,
		PoolSize: cfg.Infra.Redis.PoolSize,
	})
	if err != nil {
		return nil, err
	}
	lc.Append("redis", func(context.Context) error { return redisClient.Close() })

	// 2. 数据库
	st, err := buildStores(cfg, lc)
	if err != nil {
		return nil, err
	}

	// 3. 分布式锁
	locks, err := buildLocks(cfg, redisClient, lc)
	if err != nil {
		return nil, err
	}

	// 4. 缓存
	pool := cache.NewRebuildPool(cfg.Cache.RebuildWorkers, cfg.Cache.RebuildQueueSize)
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}
	lc.Append("cache-rebuild-pool", pool.Stop)
	cacheClient := cache.NewClient(redisClient, locks, pool, cache.Options{
		NullTTL:    cfg.Cache.NullTTL,
		LockTTL:    cfg.Cache.MutexLockTTL,
		RetrySleep: cfg.Cache.RetrySleep,
		MaxRetries: cfg.Cache.MaxRetries,
	})

	// 5. Kafka
	brokers := splitList(cfg.Infra.Kafka.Brokers)
	eventWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.OrderEventTopic)
	lc.Append("kafka-order-event-writer", func(context.Context) error { return eventWriter.Close() })
	dltWriter := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.DeadLetterTopic)
	lc.Append("kafka-dlt-writer", func(context.Context) error { return dltWriter.Close() })

	// 6. 秒杀下单链路
	gate, err := adapter.NewAdmissionRedisAdapter(redisClient, cfg.Seckill.StreamName)
	if err != nil {
		return nil, err
	}
	tracer := otel.Tracer(cfg.App.Name)

	orderSvc := voucherapp.NewVoucherOrderService(
		gate,
		idgen.NewRedisIDWorker(redisClient),
		locks,
		st.orders,
		adapter.NewOrderEventKafkaAdapter(eventWriter),
		cacheClient,
		tracer,
		cfg.Seckill.OrderLockTTL,
	)
	voucherSvc := voucherapp.NewVoucherService(st.vouchers, gate, cacheClient, cfg.Cache.VoucherTTL, tracer)

	if cfg.App.SyncStockOnStart {
		if _, err := voucherSvc.SyncAllStock(ctx); err != nil {
			return nil, errors.Wrap(err, "failed to sync seckill stock on start")
		}
	}

	if cfg.Infra.Kafka.EnableDLTMonitor {
		reader := mq.NewKafkaReader(brokers, cfg.Infra.Kafka.DeadLetterTopic, cfg.Infra.Kafka.DeadLetterGroup)
		dltMonitor := voucheriface.NewDltConsumerAdapter(reader)
		if err := dltMonitor.Start(ctx); err != nil {
			_ = reader.Close()
			return nil, err
		}
		lc.Append("dlt-monitor", dltMonitor.Stop)
	}

	queue := mq.NewStreamQueue(redisClient, cfg.Seckill.StreamName, cfg.Seckill.GroupName, cfg.Seckill.ConsumerName)
	consumer := voucheriface.NewOrderStreamConsumer(
		queue,
		orderSvc,
		adapter.NewDeadLetterKafkaAdapter(dltWriter),
		cfg.Seckill.BlockTimeout,
		cfg.Seckill.PendingBackoff,
	)
	if err := consumer.Start(ctx); err != nil {
		return nil, err
	}
	lc.Append("order-stream-consumer", consumer.Stop)

	// 7. 商铺查询
	shopSvc, err := shopapp.NewShopService(st.shops, cacheClient, shopapp.Options{
		Strategy:   cfg.Cache.ShopStrategy,
		TTL:        cfg.Cache.ShopTTL,
		LogicalTTL: cfg.Cache.LogicalTTL,
	}, tracer)
	if err != nil {
		return nil, err
	}

	return &application{
		voucherHandler: voucheriface.NewVoucherHandler(orderSvc, voucherSvc),
		shopHandler:    shopiface.NewShopHandler(shopSvc),
	}, nil
}

// buildStores 未配置 DSN 时退回内存实现，便于本地演示
func buildStores(cfg config.Config, lc *bootstrap.Lifecycle) (stores, error) {
	if cfg.Infra.MySQL.DSN == "" {
		logger.Ctx(context.Background()).Warn().Msg("⚠️ MySQL DSN is empty, using in-memory stores. Data will not survive restarts.")
		mem := voucherinfra.NewMemoryStore()
		return stores{vouchers: mem, orders: mem, shops: shopinfra.NewMemoryShopRepository()}, nil
	}

	var models []interface{}
	if cfg.Infra.MySQL.AutoMigrate {
		models = append(models, voucherinfra.Models()...)
		models = append(models, shopinfra.Models()...)
	}
	db, err := database.OpenMySQL(database.Options{
		DSN:             cfg.Infra.MySQL.DSN,
		MaxOpenConns:    cfg.Infra.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.Infra.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.Infra.MySQL.ConnMaxLifetime,
	}, models...)
	if err != nil {
		return stores{}, err
	}
	lc.Append("mysql", func(context.Context) error { return database.Close(db) })

	return stores{
		vouchers: voucherinfra.NewGormVoucherRepository(db),
		orders:   voucherinfra.NewGormOrderStore(db),
		shops:    shopinfra.NewGormShopRepository(db),
	}, nil
}

func buildLocks(cfg config.Config, redisClient *redis.Client, lc *bootstrap.Lifecycle) (lock.Factory, error) {
	if cfg.Lock.Backend == "zookeeper" {
		conn, err := lock.ConnectZookeeper(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout)
		if err != nil {
			return nil, err
		}
		lc.Append("zookeeper", func(context.Context) error { conn.Close(); return nil })
		return lock.NewZookeeperFactory(conn)
	}
	return lock.NewRedisFactory(redisClient)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
