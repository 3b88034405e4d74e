package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"resume-analyzer/internal/api/handler"
	"resume-analyzer/internal/api/router"
	"resume-analyzer/internal/bootstrap"
	"resume-analyzer/internal/config"
	appLogger "resume-analyzer/internal/logger"
	"resume-analyzer/internal/metrics"
	"resume-analyzer/internal/storage"
	"resume-analyzer/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/spf13/pflag"
)

var version = "1.0.0" //nolint:gochecknoglobals

func main() {
	var (
		configPath string
		initConfig bool
		showVer    bool
	)
	pflag.StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")
	pflag.BoolVar(&initConfig, "init-config", false, "Write a sample config to --config and exit")
	pflag.BoolVarP(&showVer, "version", "v", false, "Print version and exit")
	pflag.Parse()

	if showVer {
		fmt.Println("resume-analyzer", version)
		return
	}
	if initConfig {
		if err := config.CreateSampleConfig(configPath); err != nil {
			glog.Fatalf("生成示例配置失败: %v", err)
		}
		fmt.Println("示例配置已写入", configPath)
		return
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	appLogger.Init(appLogger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	appLogger.Info().Str("version", version).Str("config", configPath).Msg("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		appLogger.Warn().Err(err).Msg("初始化链路追踪失败，继续运行")
		shutdownTracer = func(context.Context) error { return nil }
	}
	if cfg.Metrics.Enabled {
		metrics.InitMetrics()
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("初始化存储失败")
	}
	appLogger.Info().Str("cache_state", storageManager.Cache.State().String()).Msg("存储服务初始化完成")

	svc := bootstrap.NewResumeService(ctx, cfg, storageManager)

	maxUpload := int64(cfg.Server.MaxUploadMB) << 20
	resumeHandler := handler.NewResumeHandler(svc, storageManager.Cache, handler.WithMaxUploadBytes(maxUpload))

	serverOpts := []hertzconfig.Option{
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		// multipart 头部需要额外空间
		server.WithMaxRequestBodySize(int(maxUpload) + 1<<20),
		server.WithExitWaitTime(cfg.Server.ShutdownTimeout),
	}
	routeOpts := router.Options{APIKeys: cfg.Server.APIKeys}
	if cfg.Metrics.Enabled {
		routeOpts.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Tracing.Enabled {
		tracer, tracingCfg := hertztracing.NewServerTracer()
		serverOpts = append(serverOpts, tracer)
		routeOpts.Tracing = hertztracing.ServerMiddleware(tracingCfg)
	}

	h := server.New(serverOpts...)
	router.RegisterRoutes(h, resumeHandler, routeOpts)
	appLogger.Info().Str("address", cfg.Server.Address).Msg("HTTP 服务器启动中")

	go func() {
		if err := h.Run(); err != nil {
			appLogger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		appLogger.Error().Err(err).Msg("服务器关闭失败")
	}
	// 等待后台的归档和事件发布
	svc.Wait()
	storageManager.Close()
	if err := shutdownTracer(shutdownCtx); err != nil {
		appLogger.Warn().Err(err).Msg("关闭链路追踪失败")
	}
	appLogger.Info().Msg("优雅退出完成")
}
