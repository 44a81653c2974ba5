package tracing_test

import (
	"context"
	"testing"

	"flashdeal/internal/pkg/tracing"

	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var traceID = trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19}

func decide(sampler sdktrace.Sampler, ctx context.Context) sdktrace.SamplingDecision {
	return sampler.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       traceID,
		Name:          "http.SeckillVoucher",
		Kind:          trace.SpanKindServer,
	}).Decision
}

func TestNewSampler(t *testing.T) {
	ctx := context.Background()

	t.Run("full ratio samples every root span", func(t *testing.T) {
		assert.Equal(t, sdktrace.RecordAndSample, decide(tracing.NewSampler(1), ctx))
	})

	t.Run("zero ratio drops root spans", func(t *testing.T) {
		assert.Equal(t, sdktrace.Drop, decide(tracing.NewSampler(0), ctx))
	})

	t.Run("sampled parent wins over ratio", func(t *testing.T) {
		parent := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			TraceFlags: trace.FlagsSampled,
			Remote:     true,
		})
		parentCtx := trace.ContextWithRemoteSpanContext(ctx, parent)
		assert.Equal(t, sdktrace.RecordAndSample, decide(tracing.NewSampler(0), parentCtx))
	})
}
