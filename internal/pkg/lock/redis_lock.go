// internal/pkg/lock/redis_lock.go
package lock

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"flashdeal/internal/pkg/redis"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	redisKeyPrefix   = "lock:"
	unlockScriptName = "lock:unlock"
)

// 只有 value 仍是自己的 token 时才删除，GET 与 DEL 必须在一个脚本里原子执行
const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// RedisFactory 基于 SET NX PX 的锁工厂
type RedisFactory struct {
	client *redis.Client
	// instanceID 区分不同进程，seq 区分同一进程内的每次获取
	instanceID string
	seq        atomic.Uint64
}

func NewRedisFactory(client *redis.Client) (*RedisFactory, error) {
	if err := client.LoadScriptFromContent(unlockScriptName, unlockScript); err != nil {
		return nil, errors.Wrap(err, "failed to load unlock script")
	}
	return &RedisFactory{
		client:     client,
		instanceID: uuid.NewString(),
	}, nil
}

func (f *RedisFactory) NewLock(name string) Lock {
	return &redisLock{factory: f, key: redisKeyPrefix + name}
}

type redisLock struct {
	factory *RedisFactory
	key     string

	mu    sync.Mutex
	token string
}

func (l *redisLock) TryLock(ctx context.Context, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// 同一个句柄不可重入，覆盖 token 会让原租约无法释放
	if l.token != "" {
		return false, nil
	}

	token := l.factory.instanceID + "-" + strconv.FormatUint(l.factory.seq.Add(1), 10)
	ok, err := l.factory.client.GetClient().SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire lock %s", l.key)
	}
	if !ok {
		return false, nil
	}
	l.token = token
	return true, nil
}

func (l *redisLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()

	if token == "" {
		return ErrNotHeld
	}

	res, err := l.factory.client.RunScript(ctx, unlockScriptName, []string{l.key}, token)
	if err != nil {
		return err
	}
	if n, _ := res.(int64); n == 0 {
		return ErrNotHeld
	}
	return nil
}
