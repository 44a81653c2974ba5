// internal/pkg/lock/lock.go
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotHeld 释放锁时发现锁已不属于调用方（过期后被他人获取，或从未获取成功）
var ErrNotHeld = errors.New("lock not held by caller")

// Lock 是一次性的互斥租约。TryLock 从不阻塞等待，拿不到立即返回 false；
// 已持有租约的实例再次 TryLock 也返回 false，不可重入。
type Lock interface {
	TryLock(ctx context.Context, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context) error
}

// Factory 按资源名创建锁，每次获取都应该使用新的 Lock 实例
type Factory interface {
	NewLock(name string) Lock
}
