// internal/service/voucher/infrastructure/adapter/order_event_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"flashdeal/internal/pkg/mq"
	"flashdeal/internal/service/voucher/domain"

	"github.com/segmentio/kafka-go"
)

// OrderEventKafkaAdapter 实现了 port.OrderEventPublisher 接口
type OrderEventKafkaAdapter struct {
	writer *kafka.Writer
}

func NewOrderEventKafkaAdapter(writer *kafka.Writer) *OrderEventKafkaAdapter {
	return &OrderEventKafkaAdapter{writer: writer}
}

// PublishOrderPersisted 以用户 ID 为 key 发送，同一用户的事件保持分区内有序
func (a *OrderEventKafkaAdapter) PublishOrderPersisted(ctx context.Context, order *domain.VoucherOrder) error {
	eventBytes, err := json.Marshal(domain.NewOrderPersisted(order))
	if err != nil {
		return fmt.Errorf("failed to marshal order persisted event: %w", err)
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(strconv.FormatInt(order.UserID, 10)), eventBytes)
}

// Close 关闭底层的 Kafka writer
func (a *OrderEventKafkaAdapter) Close() error {
	return a.writer.Close()
}
