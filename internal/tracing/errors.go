package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 错误分类，写入 span 的 error.type 属性
type ErrorType string

const (
	ErrorTypeHTTP       ErrorType = "http"
	ErrorTypeRedis      ErrorType = "redis"
	ErrorTypeCache      ErrorType = "cache"
	ErrorTypeModel      ErrorType = "model"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeArchive    ErrorType = "archive"
	ErrorTypeMessaging  ErrorType = "messaging"
	ErrorTypeInternal   ErrorType = "internal"
)

// RecordError 记录错误并把 span 标记为失败
func RecordError(span trace.Span, err error, errorType ErrorType, attributes ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}

	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", TruncateString(err.Error(), DefaultMaxLength)),
	)
	if len(attributes) > 0 {
		span.SetAttributes(attributes...)
	}
	span.SetStatus(codes.Error, err.Error())
}

// RecordHTTPError 记录请求级错误，按状态码区分客户端或服务端错误
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}

	category := "unknown"
	switch {
	case statusCode >= 400 && statusCode < 500:
		category = "client_error"
	case statusCode >= 500:
		category = "server_error"
	}

	RecordError(span, err, ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}

// RecordDegradation 缓存从 Redis 切换到进程内存储时打点，span 状态不置为错误
func RecordDegradation(span trace.Span, reason error) {
	if span == nil {
		return
	}
	msg := "redis unavailable"
	if reason != nil {
		msg = reason.Error()
	}
	span.AddEvent("cache.degraded", trace.WithAttributes(
		attribute.String("error.type", string(ErrorTypeCache)),
		attribute.String("cache.degrade_reason", TruncateString(msg, DefaultMaxLength)),
	))
}
