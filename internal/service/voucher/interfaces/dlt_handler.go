// internal/service/voucher/interfaces/dlt_handler.go
package interfaces

import (
	"context"
	"sync"

	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
)

// DltConsumerAdapter 监听死信 topic 并记录日志，供人工对账
type DltConsumerAdapter struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewDltConsumerAdapter(reader *kafka.Reader) *DltConsumerAdapter {
	return &DltConsumerAdapter{
		reader: reader,
	}
}

func (a *DltConsumerAdapter) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		logger.Ctx(loopCtx).Info().Str("topic", a.reader.Config().Topic).Msg("✅ DLT Consumer Adapter started.")
		for {
			msg, err := a.reader.FetchMessage(loopCtx)
			if err != nil {
				if loopCtx.Err() != nil {
					logger.Ctx(loopCtx).Info().Msg("🛑 DLT Consumer Adapter shutting down.")
					return
				}
				logger.Ctx(loopCtx).Warn().Err(err).Msg("Failed to fetch dead letter")
				continue
			}

			msgCtx := mq.ExtractTraceContext(loopCtx, msg.Headers)
			logDeadLetter(msgCtx, msg)

			// 死信记录日志后即视为已处理
			if err := a.reader.CommitMessages(loopCtx, msg); err != nil {
				logger.Ctx(msgCtx).Error().Err(err).Msg("Failed to commit dead letter")
			}
		}
	}()
	return nil
}

func (a *DltConsumerAdapter) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	err := a.reader.Close()
	logger.Ctx(ctx).Info().Str("topic", a.reader.Config().Topic).Msg("✅ DLT Consumer Adapter stopped.")
	return err
}

func logDeadLetter(ctx context.Context, msg kafka.Message) {
	headers := mq.HeaderMap(msg.Headers)

	// 使用结构化日志记录，便于后续分析
	logger.Ctx(ctx).Error().
		Str("reason", "dead_letter_message_received").
		Str("original_stream", headers[mq.HeaderOriginalStream]).
		Str("original_id", headers[mq.HeaderOriginalID]).
		Str("exception_message", headers[mq.HeaderExceptionMessage]).
		Str("key", string(msg.Key)).
		Str("value", string(msg.Value)).
		Msg("🚨 CRITICAL: Dead letter message received")
}
