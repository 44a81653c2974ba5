// internal/pkg/mq/stream.go
package mq

import (
	"context"
	"errors"
	"strings"
	"time"

	"flashdeal/internal/pkg/redis"

	pkgerrors "github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// StreamMessage 是 Redis Stream 中的一条记录
type StreamMessage struct {
	ID     string
	Values map[string]interface{}
}

// StreamQueue 封装一个 stream + 消费者组 + 消费者身份。
// 同一组内每条记录只投递给一个消费者，ACK 前一直留在该消费者的 pending 列表中。
type StreamQueue struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
}

func NewStreamQueue(client *redis.Client, stream, group, consumer string) *StreamQueue {
	return &StreamQueue{client: client, stream: stream, group: group, consumer: consumer}
}

func (q *StreamQueue) Stream() string { return q.stream }

// EnsureGroup 创建消费者组（stream 不存在时一并创建），组已存在不算错误
func (q *StreamQueue) EnsureGroup(ctx context.Context) error {
	err := q.client.GetClient().XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return pkgerrors.Wrapf(err, "failed to create consumer group %s on %s", q.group, q.stream)
	}
	return nil
}

// Append 追加一条记录，返回记录 ID
func (q *StreamQueue) Append(ctx context.Context, values map[string]interface{}) (string, error) {
	id, err := q.client.GetClient().XAdd(ctx, &goredis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}).Result()
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to append to stream %s", q.stream)
	}
	return id, nil
}

// ReadNew 阻塞读取尚未投递给本组的新记录，最多等待 block；超时返回空结果而不是错误
func (q *StreamQueue) ReadNew(ctx context.Context, count int64, block time.Duration) ([]StreamMessage, error) {
	return q.read(ctx, ">", count, block)
}

// ReadPending 读取本消费者已投递但未 ACK 的记录，不阻塞
func (q *StreamQueue) ReadPending(ctx context.Context, count int64) ([]StreamMessage, error) {
	return q.read(ctx, "0", count, -1)
}

// Ack 确认记录。重复确认没有额外效果。
func (q *StreamQueue) Ack(ctx context.Context, ids ...string) error {
	if err := q.client.GetClient().XAck(ctx, q.stream, q.group, ids...).Err(); err != nil {
		return pkgerrors.Wrapf(err, "failed to ack %v on %s", ids, q.stream)
	}
	return nil
}

// PendingCount 返回本组尚未确认的记录数
func (q *StreamQueue) PendingCount(ctx context.Context) (int64, error) {
	res, err := q.client.GetClient().XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to query pending of %s", q.stream)
	}
	return res.Count, nil
}

func (q *StreamQueue) read(ctx context.Context, start string, count int64, block time.Duration) ([]StreamMessage, error) {
	streams, err := q.client.GetClient().XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    q.group,
		Consumer: q.consumer,
		Streams:  []string{q.stream, start},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read stream %s from %s", q.stream, start)
	}

	var msgs []StreamMessage
	for _, s := range streams {
		for _, m := range s.Messages {
			msgs = append(msgs, StreamMessage{ID: m.ID, Values: m.Values})
		}
	}
	return msgs, nil
}
