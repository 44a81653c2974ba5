// internal/pkg/cache/rebuild_pool.go
package cache

import (
	"context"
	"fmt"
	"sync"

	"flashdeal/internal/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// RebuildPool 执行逻辑过期后的异步缓存重建。
// 由 main 显式创建并在启动/关闭时调用 Start/Stop，不存在包级全局线程池。
type RebuildPool struct {
	workers int
	tasks   chan func(context.Context)

	mu      sync.RWMutex
	started bool
	closed  bool
	group   *errgroup.Group
	cancel  context.CancelFunc
}

func NewRebuildPool(workers, queueSize int) *RebuildPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}
	return &RebuildPool{
		workers: workers,
		tasks:   make(chan func(context.Context), queueSize),
	}
}

// Start 启动 workers 个协程消费任务。任务拿到的是池自己的 ctx，而不是触发它的请求 ctx。
func (p *RebuildPool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("rebuild pool already started")
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.group, ctx = errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		p.group.Go(func() error {
			for task := range p.tasks {
				p.run(ctx, task)
			}
			return nil
		})
	}
	logger.Ctx(ctx).Info().Int("workers", p.workers).Msg("Cache rebuild pool started")
	return nil
}

// Submit 非阻塞提交，队列已满或池已关闭时返回 false
func (p *RebuildPool) Submit(task func(context.Context)) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.started || p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Stop 停止接收新任务并等待队列中的任务执行完；ctx 到期后取消仍在执行的任务
func (p *RebuildPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.group.Wait() }()

	select {
	case err := <-done:
		p.cancel()
		logger.Ctx(ctx).Info().Msg("Cache rebuild pool stopped")
		return err
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *RebuildPool) run(ctx context.Context, task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Ctx(ctx).Error().Interface("panic", r).Msg("Cache rebuild task panicked")
		}
	}()
	task(ctx)
}
