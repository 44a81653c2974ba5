// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"flashdeal/internal/pkg/config"
	"flashdeal/internal/pkg/logger"
	"flashdeal/internal/pkg/nacos"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	Config           config.Config
	Lifecycle        *Lifecycle
	RegisterHandlers func(r *mux.Router) // 一个函数，允许每个服务注册自己独特的 HTTP 路由
}

// NewRouter 创建带 /healthz 与 /metrics 的路由
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// StartService 封装了微服务的通用启动和优雅关停逻辑，阻塞直到 ctx 结束或收到 SIGINT/SIGTERM。
// 关停时先停止 HTTP 服务器，再按注册的逆序关闭 Lifecycle 中的组件。
func StartService(ctx context.Context, info AppInfo) error {
	cfg := info.Config
	lc := info.Lifecycle
	if lc == nil {
		lc = &Lifecycle{}
	}
	log := logger.Ctx(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. 注册路由
	router := NewRouter()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(router)
	}
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.App.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 2. 先监听端口，确保注册到 Nacos 时服务已经可用
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Msgf("%s listening on %s", cfg.App.Name, server.Addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// 3. 服务注册（可选）
	if cfg.Infra.Nacos.Enabled {
		if err := registerNacos(cfg, lc); err != nil {
			_ = server.Close()
			return err
		}
	}

	// 4. 等待退出信号
	select {
	case <-ctx.Done():
		log.Info().Msgf("Shutting down service %s...", cfg.App.Name)
	case err := <-serveErr:
		log.Error().Err(err).Msg("🛑 HTTP server stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancel()

	// 5. 先停止接收新请求，再按逆序关闭组件
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down http server")
	} else {
		log.Info().Msg("HTTP server shut down.")
	}
	err = lc.Stop(shutdownCtx)

	log.Info().Msgf("Service %s gracefully shut down.", cfg.App.Name)
	return err
}

func registerNacos(cfg config.Config, lc *Lifecycle) error {
	nc := cfg.Infra.Nacos
	client, err := nacos.NewNacosClient(nc.ServerAddrs, nc.Namespace, nc.Group)
	if err != nil {
		return fmt.Errorf("failed to initialize nacos client: %w", err)
	}

	ip, err := GetOutboundIP()
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to get outbound IP address: %w", err)
	}
	if err := client.RegisterServiceInstance(cfg.App.Name, ip, cfg.App.HTTPPort); err != nil {
		client.Close()
		return err
	}

	// 最后注册、最先注销：停止组件前先从注册中心摘除
	lc.Append("nacos", func(context.Context) error {
		defer client.Close()
		return client.DeregisterServiceInstance(cfg.App.Name, ip, cfg.App.HTTPPort)
	})
	return nil
}

// GetOutboundIP 通过一次 UDP "连接" 拿到出口网卡的 IP，不会真正发送数据
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
