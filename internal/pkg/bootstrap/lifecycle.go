// internal/pkg/bootstrap/lifecycle.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"flashdeal/internal/pkg/logger"
)

type hook struct {
	name string
	stop func(ctx context.Context) error
}

// Lifecycle 记录需要在关停时释放的组件，按注册的逆序关闭
type Lifecycle struct {
	mu    sync.Mutex
	hooks []hook
}

// Append 注册一个关停函数。组件启动成功后立刻注册。
func (l *Lifecycle) Append(name string, stop func(ctx context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, hook{name: name, stop: stop})
}

// Stop 逆序调用所有关停函数。单个组件失败不会中断后续组件，所有错误合并返回。
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	hooks := l.hooks
	l.hooks = nil
	l.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.stop(ctx); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("component", h.name).Msg("Error stopping component")
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		logger.Ctx(ctx).Info().Str("component", h.name).Msg("Component stopped.")
	}
	return errors.Join(errs...)
}
