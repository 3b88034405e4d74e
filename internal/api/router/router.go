package router

import (
	"context"
	"net/http"

	"resume-analyzer/internal/api/handler"
	"resume-analyzer/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options 路由可选项
type Options struct {
	// 非空时 /api 下的接口需要 X-API-Key
	APIKeys []string
	// 为空则不暴露指标
	MetricsPath string
	// 链路追踪中间件，由 server 创建时的 tracer 配套生成
	Tracing app.HandlerFunc
}

// RegisterRoutes 注册中间件和 API 路由
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, opts Options) {
	h.Use(Recovery())
	if opts.Tracing != nil {
		h.Use(opts.Tracing)
	}
	h.Use(RequestID(), AccessLog())

	h.GET("/", handler.HandleRoot)
	h.GET("/health", handler.HandleHealth)
	if opts.MetricsPath != "" {
		h.GET(opts.MetricsPath, wrapHTTPHandler(promhttp.Handler()))
	}

	api := h.Group("/api/resume")
	if auth := APIKeyAuth(opts.APIKeys); auth != nil {
		api.Use(auth)
	}
	api.POST("/analyze", resumeHandler.HandleAnalyze)
	api.POST("/match", resumeHandler.HandleMatch)
	api.GET("/cache/status", resumeHandler.HandleCacheStatus)
}

// wrapHTTPHandler 将 net/http 的 Handler 挂到 hertz 路由上
func wrapHTTPHandler(next http.Handler) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		req, err := adaptor.GetCompatRequest(&c.Request)
		if err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("转换 HTTP 请求失败")
			c.AbortWithStatus(consts.StatusInternalServerError)
			return
		}
		next.ServeHTTP(adaptor.GetCompatResponseWriter(&c.Response), req.WithContext(ctx))
	}
}
