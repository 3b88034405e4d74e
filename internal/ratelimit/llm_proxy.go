package ratelimit

import (
	"context"
	"errors"
	"time"

	"resume-analyzer/internal/logger"
	"resume-analyzer/internal/metrics"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedLLMModel 对LLM模型的调用进行限流的代理
type RateLimitedLLMModel struct {
	original    model.ToolCallingChatModel
	rateLimiter *TokenBucket
	wait        bool
	name        string // 用于指标和日志
}

// NewRateLimitedLLMModel 创建一个新的限流LLM模型代理
func NewRateLimitedLLMModel(original model.ToolCallingChatModel, qpm int, wait bool) *RateLimitedLLMModel {
	return &RateLimitedLLMModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2), // 容量为QPM的一半，允许一定的突发
		wait:        wait,
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedLLMModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedLLMModel {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// Generate 代理Generate方法
func (rl *RateLimitedLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := rl.rateLimiter.Do(ctx, rl.wait, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})
	rl.observe(ctx, err)
	return response, err
}

// Stream 代理Stream方法
func (rl *RateLimitedLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.rateLimiter.Do(ctx, rl.wait, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})
	rl.observe(ctx, err)
	return stream, err
}

func (rl *RateLimitedLLMModel) observe(ctx context.Context, err error) {
	if !errors.Is(err, ErrRateLimited) {
		return
	}
	metrics.RateLimited(rl.name)
	logger.Ctx(ctx).Warn().Str("model", rl.name).Msg("模型调用被本地限流拒绝")
}

// WithTools 代理WithTools方法，共享同一个令牌桶
func (rl *RateLimitedLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedLLMModel{
		original:    newModel,
		rateLimiter: rl.rateLimiter,
		wait:        rl.wait,
		name:        rl.name,
	}, nil
}

// NewLLMWithRateLimit 按模型名从配置中取QPM并创建限流模型
// 配置值按90%使用，未配置时使用 customQPM，仍为0时默认30
func NewLLMWithRateLimit(original model.ToolCallingChatModel, modelName string, cfg map[string]int, customQPM int, maxRetries int, retryWaitTime time.Duration, wait bool) model.ToolCallingChatModel {
	qpm := customQPM
	if modelQPM, ok := cfg[modelName]; ok && modelQPM > 0 {
		qpm = int(float64(modelQPM) * 0.9)
	}
	if qpm <= 0 {
		qpm = 30
	}

	limitedModel := NewRateLimitedLLMModel(original, qpm, wait)
	limitedModel.name = modelName
	limitedModel.WithRetryPolicy(retryWaitTime, maxRetries)
	return limitedModel
}
