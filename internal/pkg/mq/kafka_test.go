package mq_test

import (
	"context"
	"testing"

	"flashdeal/internal/pkg/mq"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36},
		SpanID:     trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	headers := []kafka.Header{{Key: mq.HeaderOriginalStream, Value: []byte("stream.orders")}}
	mq.InjectTraceContext(ctx, &headers)

	m := mq.HeaderMap(headers)
	assert.Equal(t, "stream.orders", m[mq.HeaderOriginalStream])
	assert.NotEmpty(t, m["traceparent"])

	extracted := trace.SpanContextFromContext(mq.ExtractTraceContext(context.Background(), headers))
	assert.Equal(t, spanCtx.TraceID(), extracted.TraceID())
	assert.Equal(t, spanCtx.SpanID(), extracted.SpanID())
}

func TestKafkaHeaderCarrier_SetReplaces(t *testing.T) {
	carrier := mq.KafkaHeaderCarrier{}
	carrier.Set("k", "v1")
	carrier.Set("k", "v2")

	assert.Equal(t, "v2", carrier.Get("k"))
	assert.Equal(t, []string{"k"}, carrier.Keys())
	assert.Empty(t, carrier.Get("missing"))
}
