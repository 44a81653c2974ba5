// internal/service/voucher/domain/port/events.go
package port

import (
	"context"

	"flashdeal/internal/service/voucher/domain"
)

// OrderEventPublisher 订单落库后的事件出口
type OrderEventPublisher interface {
	PublishOrderPersisted(ctx context.Context, order *domain.VoucherOrder) error
}

// DeadLetterPublisher 无法解析的队列记录的去处
type DeadLetterPublisher interface {
	PublishDeadLetter(ctx context.Context, stream, entryID string, values map[string]interface{}, cause error) error
}
