// cmd/voucher-service/main.go
package main

import (
	"context"
	"os"

	"flashdeal/internal/pkg/bootstrap"
	"flashdeal/internal/pkg/config"
	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/pkg/tracing"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("🛑 Failed to load config")
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.App.Name)

	ctx := context.Background()
	lc := &bootstrap.Lifecycle{}

	tp, err := tracing.InitTracerProvider(cfg.App.Name, cfg.Infra.Jaeger.Endpoint, cfg.Infra.Jaeger.SampleRatio)
	if err != nil {
		log.Fatal().Err(err).Msg("🛑 Failed to initialize tracer provider")
	}
	lc.Append("tracer-provider", tp.Shutdown)

	app, err := buildApp(ctx, cfg, lc)
	if err != nil {
		// 已经启动的组件也要关掉
		_ = lc.Stop(ctx)
		log.Fatal().Err(err).Msg("🛑 Failed to build application")
	}

	err = bootstrap.StartService(ctx, bootstrap.AppInfo{
		Config:    cfg,
		Lifecycle: lc,
		RegisterHandlers: func(r *mux.Router) {
			app.voucherHandler.RegisterRoutes(r)
			app.shopHandler.RegisterRoutes(r)
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("🛑 Service stopped with error")
	}
}
