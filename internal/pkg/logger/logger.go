// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 初始化全局 zerolog 日志器。format 为 "console" 时输出便于人读的格式。
func Init(level, format, serviceName string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05.000"}
	}

	log.Logger = zerolog.New(out).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回携带链路信息的日志器。
// ctx 中存在有效 Span 时会附带 trace_id 与 span_id，便于在 Jaeger 中关联日志。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := log.Logger
	if ctx == nil {
		return &l
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &l
	}
	l = l.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
