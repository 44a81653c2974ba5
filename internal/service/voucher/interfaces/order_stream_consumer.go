// internal/service/voucher/interfaces/order_stream_consumer.go
package interfaces

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/pkg/metrics"
	"flashdeal/internal/pkg/mq"
	"flashdeal/internal/service/voucher/domain"
	"flashdeal/internal/service/voucher/domain/port"
)

// OrderHandler 是消费者驱动的应用服务
type OrderHandler interface {
	HandleVoucherOrder(ctx context.Context, order *domain.VoucherOrder) error
}

// OrderStreamConsumer 是一个驱动适配器：单协程读取订单 stream 并驱动应用服务落库。
// 处理失败的记录不确认，转入 pending 列表恢复模式，直到 pending 列表清空再回到正常消费。
type OrderStreamConsumer struct {
	queue       *mq.StreamQueue
	handler     OrderHandler
	deadLetters port.DeadLetterPublisher

	block   time.Duration
	backoff time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrderStreamConsumer(queue *mq.StreamQueue, handler OrderHandler, deadLetters port.DeadLetterPublisher, block, backoff time.Duration) *OrderStreamConsumer {
	return &OrderStreamConsumer{
		queue:       queue,
		handler:     handler,
		deadLetters: deadLetters,
		block:       block,
		backoff:     backoff,
	}
}

// Start 确保消费者组存在后启动后台协程。循环只在 Stop 或 ctx 取消时退出。
func (c *OrderStreamConsumer) Start(ctx context.Context) error {
	if err := c.queue.EnsureGroup(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		logger.Ctx(loopCtx).Info().Str("stream", c.queue.Stream()).Msg("✅ Order stream consumer started.")

		// 上次进程退出时可能留有未确认的记录，先处理它们
		c.drainPending(loopCtx)
		c.run(loopCtx)

		logger.Ctx(loopCtx).Info().Msg("🛑 Order stream consumer shutting down.")
	}()
	return nil
}

// Stop 优雅地停止消费者，最多等待到 ctx 到期
func (c *OrderStreamConsumer) Stop(ctx context.Context) error {
	if c.cancel == nil {
		return nil
	}
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Ctx(ctx).Info().Msg("✅ Order stream consumer stopped.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *OrderStreamConsumer) run(ctx context.Context) {
	for ctx.Err() == nil {
		msgs, err := c.queue.ReadNew(ctx, 1, c.block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to read order stream, retrying")
			c.sleep(ctx)
			continue
		}

		for _, msg := range msgs {
			if err := c.process(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("stream_id", msg.ID).Msg("Failed to handle order, entering pending recovery")
				metrics.PendingRecoveries.Inc()
				c.drainPending(ctx)
				break
			}
		}
	}
}

// drainPending 反复读取本消费者未确认的记录并处理，直到 pending 列表为空
func (c *OrderStreamConsumer) drainPending(ctx context.Context) {
	for ctx.Err() == nil {
		msgs, err := c.queue.ReadPending(ctx, 1)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Ctx(ctx).Error().Err(err).Msg("Failed to read pending list, retrying")
			c.sleep(ctx)
			continue
		}
		if len(msgs) == 0 {
			return
		}

		for _, msg := range msgs {
			if err := c.process(ctx, msg); err != nil {
				logger.Ctx(ctx).Error().Err(err).Str("stream_id", msg.ID).Msg("Failed to handle pending order")
				c.sleep(ctx)
			}
		}
	}
}

// process 解析并处理一条记录，成功后确认。
// 无法解析的记录转入死信并直接确认，避免毒消息反复重试。
func (c *OrderStreamConsumer) process(ctx context.Context, msg mq.StreamMessage) error {
	order, err := decodeOrder(msg.Values)
	if err != nil {
		metrics.OrderHandlerResults.WithLabelValues("corrupt").Inc()
		logger.Ctx(ctx).Error().Err(err).Str("stream_id", msg.ID).Interface("values", msg.Values).Msg("🚨 Corrupt order record, moving to dead letter")
		if c.deadLetters != nil {
			if dlErr := c.deadLetters.PublishDeadLetter(ctx, c.queue.Stream(), msg.ID, msg.Values, err); dlErr != nil {
				logger.Ctx(ctx).Error().Err(dlErr).Str("stream_id", msg.ID).Msg("Failed to publish dead letter")
			}
		}
		return c.queue.Ack(ctx, msg.ID)
	}

	if err := c.handler.HandleVoucherOrder(ctx, order); err != nil {
		return err
	}
	return c.queue.Ack(ctx, msg.ID)
}

func (c *OrderStreamConsumer) sleep(ctx context.Context) {
	timer := time.NewTimer(c.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// decodeOrder 解析准入脚本写入的字段: id, userId, voucherId
func decodeOrder(values map[string]interface{}) (*domain.VoucherOrder, error) {
	id, err := int64Field(values, "id")
	if err != nil {
		return nil, err
	}
	userID, err := int64Field(values, "userId")
	if err != nil {
		return nil, err
	}
	voucherID, err := int64Field(values, "voucherId")
	if err != nil {
		return nil, err
	}
	return &domain.VoucherOrder{ID: id, UserID: userID, VoucherID: voucherID}, nil
}

func int64Field(values map[string]interface{}, name string) (int64, error) {
	raw, ok := values[name]
	if !ok {
		return 0, fmt.Errorf("%w: missing field %q", domain.ErrCorrupt, name)
	}
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("%w: field %q has type %T", domain.ErrCorrupt, name, raw)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: field %q=%q is not a positive integer", domain.ErrCorrupt, name, s)
	}
	return n, nil
}
