// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------
// 配置加载顺序: 代码内默认值 -> YAML 文件 (CONFIG_FILE) -> 环境变量覆盖
// 环境变量只在显式设置时才覆盖，因此这里的 envconfig 标签都不带 default。
// -----------------------------------------------------------------------------

type Config struct {
	App     AppConfig     `yaml:"app"`
	Log     LogConfig     `yaml:"log"`
	Infra   InfraConfig   `yaml:"infra"`
	Seckill SeckillConfig `yaml:"seckill"`
	Cache   CacheConfig   `yaml:"cache"`
	Lock    LockConfig    `yaml:"lock"`
}

type AppConfig struct {
	Name            string        `yaml:"name" envconfig:"APP_NAME"`
	HTTPPort        int           `yaml:"httpPort" envconfig:"HTTP_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// SyncStockOnStart 为 true 时，启动阶段为 Redis 中缺失的秒杀库存 key 补齐数据库库存，已存在的 key 不覆盖
	SyncStockOnStart bool `yaml:"syncStockOnStart" envconfig:"SYNC_STOCK_ON_START"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"` // json | console
}

type InfraConfig struct {
	Redis     RedisConfig     `yaml:"redis"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
	Nacos     NacosConfig     `yaml:"nacos"`
}

type RedisConfig struct {
	Addrs    string `yaml:"addrs" envconfig:"REDIS_ADDRS"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	PoolSize int    `yaml:"poolSize" envconfig:"REDIS_POOL_SIZE"`
}

type MySQLConfig struct {
	DSN             string        `yaml:"dsn" envconfig:"MYSQL_DSN"`
	MaxOpenConns    int           `yaml:"maxOpenConns" envconfig:"MYSQL_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"maxIdleConns" envconfig:"MYSQL_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" envconfig:"MYSQL_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `yaml:"autoMigrate" envconfig:"MYSQL_AUTO_MIGRATE"`
}

type KafkaConfig struct {
	Brokers          string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
	OrderEventTopic  string `yaml:"orderEventTopic" envconfig:"KAFKA_ORDER_EVENT_TOPIC"`
	DeadLetterTopic  string `yaml:"deadLetterTopic" envconfig:"KAFKA_DEAD_LETTER_TOPIC"`
	DeadLetterGroup  string `yaml:"deadLetterGroup" envconfig:"KAFKA_DEAD_LETTER_GROUP"`
	EnableDLTMonitor bool   `yaml:"enableDltMonitor" envconfig:"KAFKA_ENABLE_DLT_MONITOR"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint" envconfig:"JAEGER_ENDPOINT"`
	// SampleRatio 根 span 的采样比例，取值 [0, 1]
	SampleRatio float64 `yaml:"sampleRatio" envconfig:"JAEGER_SAMPLE_RATIO"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers" envconfig:"ZK_SERVERS"`
	SessionTimeout time.Duration `yaml:"sessionTimeout" envconfig:"ZK_SESSION_TIMEOUT"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"NACOS_ENABLED"`
	ServerAddrs string `yaml:"serverAddrs" envconfig:"NACOS_SERVER_ADDRS"`
	Namespace   string `yaml:"namespace" envconfig:"NACOS_NAMESPACE"`
	Group       string `yaml:"group" envconfig:"NACOS_GROUP"`
}

// SeckillConfig 对应秒杀下单链路 (Stream 消费者组) 的参数
type SeckillConfig struct {
	StreamName     string        `yaml:"streamName" envconfig:"SECKILL_STREAM"`
	GroupName      string        `yaml:"groupName" envconfig:"SECKILL_GROUP"`
	ConsumerName   string        `yaml:"consumerName" envconfig:"SECKILL_CONSUMER"`
	BlockTimeout   time.Duration `yaml:"blockTimeout" envconfig:"SECKILL_BLOCK_TIMEOUT"`
	PendingBackoff time.Duration `yaml:"pendingBackoff" envconfig:"SECKILL_PENDING_BACKOFF"`
	OrderLockTTL   time.Duration `yaml:"orderLockTtl" envconfig:"SECKILL_ORDER_LOCK_TTL"`
}

// CacheConfig 对应 CacheClient 的三种策略参数
type CacheConfig struct {
	ShopTTL          time.Duration `yaml:"shopTtl" envconfig:"CACHE_SHOP_TTL"`
	VoucherTTL       time.Duration `yaml:"voucherTtl" envconfig:"CACHE_VOUCHER_TTL"`
	NullTTL          time.Duration `yaml:"nullTtl" envconfig:"CACHE_NULL_TTL"`
	LogicalTTL       time.Duration `yaml:"logicalTtl" envconfig:"CACHE_LOGICAL_TTL"`
	MutexLockTTL     time.Duration `yaml:"mutexLockTtl" envconfig:"CACHE_MUTEX_LOCK_TTL"`
	RetrySleep       time.Duration `yaml:"retrySleep" envconfig:"CACHE_RETRY_SLEEP"`
	MaxRetries       int           `yaml:"maxRetries" envconfig:"CACHE_MAX_RETRIES"`
	RebuildWorkers   int           `yaml:"rebuildWorkers" envconfig:"CACHE_REBUILD_WORKERS"`
	RebuildQueueSize int           `yaml:"rebuildQueueSize" envconfig:"CACHE_REBUILD_QUEUE_SIZE"`
	ShopStrategy     string        `yaml:"shopStrategy" envconfig:"CACHE_SHOP_STRATEGY"` // pass_through | mutex | logical
}

type LockConfig struct {
	Backend string `yaml:"backend" envconfig:"LOCK_BACKEND"` // redis | zookeeper
}

// Default 返回本地开发可直接使用的默认配置
func Default() Config {
	return Config{
		App: AppConfig{
			Name:            "voucher-service",
			HTTPPort:        8081,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Infra: InfraConfig{
			Redis: RedisConfig{Addrs: "localhost:6379", PoolSize: 100},
			MySQL: MySQLConfig{
				DSN:             "root:root@tcp(localhost:3306)/hmdp?charset=utf8mb4&parseTime=True&loc=Local",
				MaxOpenConns:    50,
				MaxIdleConns:    10,
				ConnMaxLifetime: time.Hour,
			},
			Kafka: KafkaConfig{
				Brokers:         "localhost:9092",
				OrderEventTopic: "voucher-order-events",
				DeadLetterTopic: "voucher-order-dlt",
				DeadLetterGroup: "voucher-order-dlt-monitor",
			},
			Jaeger:    JaegerConfig{Endpoint: "http://localhost:14268/api/traces", SampleRatio: 0.1},
			Zookeeper: ZookeeperConfig{Servers: "localhost:2181", SessionTimeout: 10 * time.Second},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
		},
		Seckill: SeckillConfig{
			StreamName:     "stream.orders",
			GroupName:      "g1",
			ConsumerName:   "c1",
			BlockTimeout:   2 * time.Second,
			PendingBackoff: 20 * time.Millisecond,
			OrderLockTTL:   10 * time.Second,
		},
		Cache: CacheConfig{
			ShopTTL:          30 * time.Minute,
			VoucherTTL:       30 * time.Minute,
			NullTTL:          2 * time.Minute,
			LogicalTTL:       20 * time.Second,
			MutexLockTTL:     10 * time.Second,
			RetrySleep:       50 * time.Millisecond,
			MaxRetries:       40,
			RebuildWorkers:   10,
			RebuildQueueSize: 1024,
			ShopStrategy:     "pass_through",
		},
		Lock: LockConfig{Backend: "redis"},
	}
}

// Load 依次应用默认值、YAML 文件和环境变量。path 为空时跳过文件。
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to read config file %s", path)
		}
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse config file %s", path)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate 拒绝明显不可用的配置
func (c Config) Validate() error {
	switch {
	case c.Infra.Redis.Addrs == "":
		return errors.New("infra.redis.addrs must not be empty")
	case c.App.HTTPPort <= 0:
		return errors.New("app.httpPort must be positive")
	case c.Seckill.StreamName == "" || c.Seckill.GroupName == "" || c.Seckill.ConsumerName == "":
		return errors.New("seckill stream, group and consumer names are required")
	case c.Seckill.BlockTimeout <= 0:
		return errors.New("seckill.blockTimeout must be positive")
	case c.Seckill.OrderLockTTL <= 0:
		return errors.New("seckill.orderLockTtl must be positive")
	case c.Cache.NullTTL <= 0 || c.Cache.ShopTTL <= 0 || c.Cache.LogicalTTL <= 0 || c.Cache.MutexLockTTL <= 0:
		return errors.New("cache ttls must be positive")
	case c.Cache.MaxRetries <= 0:
		return errors.New("cache.maxRetries must be positive")
	case c.Cache.RebuildWorkers <= 0 || c.Cache.RebuildQueueSize <= 0:
		return errors.New("cache rebuild pool size must be positive")
	case c.Infra.Jaeger.SampleRatio < 0 || c.Infra.Jaeger.SampleRatio > 1:
		return fmt.Errorf("infra.jaeger.sampleRatio must be within [0, 1], got %v", c.Infra.Jaeger.SampleRatio)
	}

	switch c.Cache.ShopStrategy {
	case "pass_through", "mutex", "logical":
	default:
		return fmt.Errorf("unknown cache.shopStrategy %q", c.Cache.ShopStrategy)
	}

	switch c.Lock.Backend {
	case "redis", "zookeeper":
	default:
		return fmt.Errorf("unknown lock.backend %q", c.Lock.Backend)
	}
	return nil
}
