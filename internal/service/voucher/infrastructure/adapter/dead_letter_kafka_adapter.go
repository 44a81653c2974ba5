// internal/service/voucher/infrastructure/adapter/dead_letter_kafka_adapter.go
package adapter

import (
	"context"
	"encoding/json"
	"fmt"

	"flashdeal/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// DeadLetterKafkaAdapter 把无法解析的 stream 记录原样转存到死信 topic
type DeadLetterKafkaAdapter struct {
	writer *kafka.Writer
}

func NewDeadLetterKafkaAdapter(writer *kafka.Writer) *DeadLetterKafkaAdapter {
	return &DeadLetterKafkaAdapter{writer: writer}
}

func (a *DeadLetterKafkaAdapter) PublishDeadLetter(ctx context.Context, stream, entryID string, values map[string]interface{}, cause error) error {
	payload, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter payload: %w", err)
	}

	headers := []kafka.Header{
		{Key: mq.HeaderOriginalStream, Value: []byte(stream)},
		{Key: mq.HeaderOriginalID, Value: []byte(entryID)},
		{Key: mq.HeaderExceptionMessage, Value: []byte(cause.Error())},
	}
	return mq.ProduceMessage(ctx, a.writer, []byte(entryID), payload, headers...)
}

func (a *DeadLetterKafkaAdapter) Close() error {
	return a.writer.Close()
}
