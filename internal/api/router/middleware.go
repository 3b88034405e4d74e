package router

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"resume-analyzer/internal/api/handler"
	"resume-analyzer/internal/logger"
	"resume-analyzer/internal/metrics"
	"resume-analyzer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"github.com/hertz-contrib/keyauth"
)

// HeaderRequestID 请求ID头
const HeaderRequestID = "X-Request-ID"

// HeaderAPIKey API Key 头
const HeaderAPIKey = "X-API-Key"

// CodeUnauthenticated API Key 校验失败
const CodeUnauthenticated = "UNAUTHENTICATED"

const maxRequestIDLength = 128

// RequestID 读取或生成请求ID，写回响应头并放入日志上下文
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLength {
			if u, err := uuid.NewV7(); err == nil {
				id = u.String()
			} else {
				id = uuid.Must(uuid.NewV4()).String()
			}
		}
		c.Set(handler.RequestIDKey, id)
		c.Response.Header.Set(HeaderRequestID, id)
		c.Next(logger.WithRequestID(ctx, id))
	}
}

// AccessLog 记录访问日志和 HTTP 指标。route 使用注册路径，避免 label 基数膨胀
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response.StatusCode()
		metrics.ObserveHTTP(route, string(c.Method()), strconv.Itoa(status), elapsed)

		evt := logger.Ctx(ctx).Info()
		if status >= consts.StatusInternalServerError {
			evt = logger.Ctx(ctx).Error()
		} else if status >= consts.StatusBadRequest {
			evt = logger.Ctx(ctx).Warn()
		}
		evt.Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP请求")
	}
}

// Recovery panic 时返回统一的错误结构
func Recovery() app.HandlerFunc {
	return recovery.Recovery(recovery.WithRecoveryHandler(
		func(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte) {
			logger.Ctx(ctx).Error().
				Str("panic", fmt.Sprint(err)).
				Bytes("stack", stack).
				Msg("请求处理发生panic")
			body := types.ErrorBody{Error: types.ErrorDetail{Code: handler.CodeInternal, Message: "服务内部错误"}}
			if v, ok := c.Get(handler.RequestIDKey); ok {
				body.RequestID, _ = v.(string)
			}
			c.AbortWithStatusJSON(consts.StatusInternalServerError, body)
		},
	))
}

// APIKeyAuth 校验 X-API-Key，keys 为空时不启用
func APIKeyAuth(keys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAPIKey, ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			_, ok := allowed[key]
			return ok, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			body := types.ErrorBody{Error: types.ErrorDetail{Code: CodeUnauthenticated, Message: "缺少或无效的 API Key"}}
			if v, ok := c.Get(handler.RequestIDKey); ok {
				body.RequestID, _ = v.(string)
			}
			c.AbortWithStatusJSON(consts.StatusUnauthorized, body)
		}),
	)
}
