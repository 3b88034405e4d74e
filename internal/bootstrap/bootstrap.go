package bootstrap

import (
	"context"
	"io"
	"log"
	"time"

	"resume-analyzer/internal/agent"
	"resume-analyzer/internal/config"
	appLogger "resume-analyzer/internal/logger"
	"resume-analyzer/internal/parser"
	"resume-analyzer/internal/processor"
	"resume-analyzer/internal/ratelimit"
	"resume-analyzer/internal/storage"

	"github.com/cloudwego/eino/components/model"
)

const rateLimitRetryWait = 2 * time.Second

// NewResumeService 按配置组装模型、文档解析和结果缓存
func NewResumeService(ctx context.Context, cfg *config.Config, st *storage.Storage) *processor.ResumeService {
	textModel, visionModel := NewModels(ctx, cfg)
	orchestrator := processor.NewOrchestrator(textModel, visionModel,
		processor.WithTextLimit(cfg.Extractor.TextLimit),
		processor.WithJobLimit(cfg.Extractor.JobLimit),
	)
	return processor.NewResumeService(NewExtractor(ctx, cfg), orchestrator, st.Cache,
		processor.WithArchive(st.Archive()),
		processor.WithEvents(st.Events()),
		processor.WithRenderDPI(cfg.Extractor.DPI),
		processor.WithMockWhenUnconfigured(cfg.Model.MockWhenUnconfigured),
	)
}

// NewModels 按 provider 创建文本与视觉模型，未配置 API Key 时返回 nil
func NewModels(ctx context.Context, cfg *config.Config) (model.BaseChatModel, model.BaseChatModel) {
	if !cfg.ModelConfigured() {
		if cfg.Model.MockWhenUnconfigured {
			appLogger.Warn().Msg("未配置模型API Key，将返回示例结果")
		} else {
			appLogger.Warn().Msg("未配置模型API Key，解析与匹配请求将失败")
		}
		return nil, nil
	}

	limit := func(m model.ToolCallingChatModel, name string) model.BaseChatModel {
		return ratelimit.NewLLMWithRateLimit(m, name, cfg.ModelQPMLimits, 0,
			cfg.Model.MaxRetries, rateLimitRetryWait, cfg.Model.RateLimitWait)
	}

	switch cfg.Model.Provider {
	case "gemini":
		text, err := newGeminiModel(ctx, cfg, cfg.Model.TextModel)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("初始化Gemini文本模型失败")
		}
		vision, err := newGeminiModel(ctx, cfg, cfg.Model.VisionModel)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("初始化Gemini视觉模型失败")
		}
		appLogger.Info().Str("text", cfg.Model.TextModel).Str("vision", cfg.Model.VisionModel).Msg("使用Gemini模型")
		return limit(text, cfg.Model.TextModel), limit(vision, cfg.Model.VisionModel)
	default:
		opts := []agent.QwenOption{
			agent.WithRequestTimeout(cfg.Model.Timeout),
			agent.WithTemperature(cfg.Model.Temperature),
			agent.WithQwenLogger(ComponentLogger(cfg, "[Qwen] ")),
		}
		text, err := agent.NewAliyunQwenChatModel(cfg.Model.APIKey, cfg.Model.TextModel, cfg.Model.APIURL, opts...)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("初始化通义千问文本模型失败")
		}
		vision, err := agent.NewAliyunQwenChatModel(cfg.Model.APIKey, cfg.Model.VisionModel, cfg.Model.APIURL, opts...)
		if err != nil {
			appLogger.Fatal().Err(err).Msg("初始化通义千问视觉模型失败")
		}
		appLogger.Info().Str("text", cfg.Model.TextModel).Str("vision", cfg.Model.VisionModel).Msg("使用通义千问模型")
		return limit(text, cfg.Model.TextModel), limit(vision, cfg.Model.VisionModel)
	}
}

func newGeminiModel(ctx context.Context, cfg *config.Config, modelName string) (*agent.GeminiChatModel, error) {
	return agent.NewGeminiChatModel(ctx, cfg.Model.GeminiAPIKey, modelName, agent.WithGeminiTimeout(cfg.Model.Timeout))
}

// NewExtractor 文本层按 eino、MuPDF、Tika 的顺序尝试，MuPDF 同时负责页面渲染
func NewExtractor(ctx context.Context, cfg *config.Config) *parser.DocumentExtractor {
	fitz := parser.NewFitzPDFExtractor(parser.WithFitzLogger(ComponentLogger(cfg, "[MuPDF] ")))

	var strategies []parser.TextStrategy
	eino, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(ComponentLogger(cfg, "[EinoPDF] ")))
	if err != nil {
		appLogger.Warn().Err(err).Msg("创建Eino PDF提取器失败，跳过")
	} else {
		strategies = append(strategies, eino)
	}
	strategies = append(strategies, fitz)
	if cfg.Extractor.TikaURL != "" {
		strategies = append(strategies, parser.NewTikaPDFExtractor(cfg.Extractor.TikaURL,
			parser.WithTimeout(cfg.Extractor.Timeout),
			parser.WithTikaLogger(ComponentLogger(cfg, "[Tika] ")),
		))
	}

	return parser.NewDocumentExtractor(strategies, fitz,
		parser.WithMaxPages(cfg.Extractor.MaxPages),
		parser.WithExtractTimeout(cfg.Extractor.Timeout),
		parser.WithExtractorLogger(ComponentLogger(cfg, "[Extractor] ")),
	)
}

// ComponentLogger debug 级别下输出到 zerolog，否则丢弃
func ComponentLogger(cfg *config.Config, prefix string) *log.Logger {
	if cfg.Logger.Level == "debug" {
		return appLogger.StdLogger(prefix)
	}
	return log.New(io.Discard, "", 0)
}
