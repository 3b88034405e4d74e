package processor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"resume-analyzer/internal/constants"
	"resume-analyzer/internal/logger"
	"resume-analyzer/internal/metrics"
	"resume-analyzer/internal/storage"
	"resume-analyzer/internal/types"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DocumentExtractor 文本提取、图片型判断与页面渲染
type DocumentExtractor interface {
	ExtractText(ctx context.Context, data []byte) string
	IsImageBased(ctx context.Context, data []byte) bool
	RenderPages(ctx context.Context, data []byte, dpi int) [][]byte
}

// ResultStore 结果缓存，所有方法都不返回错误
type ResultStore interface {
	GetResume(ctx context.Context, resumeID string) (*types.ResumeRecord, bool)
	PutResume(ctx context.Context, resumeID string, record *types.ResumeRecord)
	GetMatch(ctx context.Context, resumeID, jobID string) (*types.MatchResult, bool)
	PutMatch(ctx context.Context, resumeID, jobID string, result *types.MatchResult)
}

const (
	defaultRenderDPI  = 200
	sideEffectTimeout = 10 * time.Second
	pdfMIME           = "application/pdf"
	pdfSuffix         = ".pdf"
)

// ResumeService 处理解析与匹配请求：缓存优先，未命中时走文本优先、图片兜底的解析流程
type ResumeService struct {
	extractor    DocumentExtractor
	orchestrator *Orchestrator
	cache        ResultStore
	archive      storage.DocumentArchive
	events       storage.EventPublisher

	renderDPI            int
	mockWhenUnconfigured bool

	wg sync.WaitGroup
}

// ServiceOption 配置 ResumeService
type ServiceOption func(*ResumeService)

// WithArchive 解析成功后归档原始文件
func WithArchive(a storage.DocumentArchive) ServiceOption {
	return func(s *ResumeService) { s.archive = a }
}

// WithEvents 发布结果事件
func WithEvents(p storage.EventPublisher) ServiceOption {
	return func(s *ResumeService) { s.events = p }
}

// WithRenderDPI 图片路径的渲染分辨率
func WithRenderDPI(dpi int) ServiceOption {
	return func(s *ResumeService) {
		if dpi > 0 {
			s.renderDPI = dpi
		}
	}
}

// WithMockWhenUnconfigured 未配置模型时返回固定的占位结果
func WithMockWhenUnconfigured(enabled bool) ServiceOption {
	return func(s *ResumeService) { s.mockWhenUnconfigured = enabled }
}

// NewResumeService 创建服务
func NewResumeService(extractor DocumentExtractor, orchestrator *Orchestrator, cache ResultStore, opts ...ServiceOption) *ResumeService {
	s := &ResumeService{
		extractor:            extractor,
		orchestrator:         orchestrator,
		cache:                cache,
		renderDPI:            defaultRenderDPI,
		mockWhenUnconfigured: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze 解析上传的 PDF
func (s *ResumeService) Analyze(ctx context.Context, filename string, data []byte) (*types.AnalyzeResponse, error) {
	if !strings.EqualFold(filepath.Ext(filename), pdfSuffix) {
		return nil, &ProcessError{Op: "analyze", BaseErr: ErrUnsupportedDocument, Detail: "文件名必须以 .pdf 结尾"}
	}
	if mt := mimetype.Detect(data); !mt.Is(pdfMIME) {
		return nil, &ProcessError{Op: "analyze", BaseErr: ErrUnsupportedDocument, Detail: "文件内容不是 PDF: " + mt.String()}
	}

	resumeID := Fingerprint(data)
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("resume.id", resumeID))
	log := logger.Ctx(ctx).With().Str("resume_id", resumeID).Logger()

	if record, ok := s.cache.GetResume(ctx, resumeID); ok {
		log.Info().Msg("简历命中缓存")
		return &types.AnalyzeResponse{ResumeID: resumeID, Data: record, Message: constants.MessageCacheHit}, nil
	}

	text := s.extractor.ExtractText(ctx, data)
	imageBased := false
	if text == "" {
		imageBased = s.extractor.IsImageBased(ctx, data)
		if !imageBased {
			log.Warn().Msg("PDF 没有可提取的文本，也不是图片型文档")
			return nil, NewExtractionError(resumeID)
		}
	}

	var (
		record  *types.ResumeRecord
		message string
		path    string
		err     error
	)
	switch {
	case !s.orchestrator.Configured():
		if !s.mockWhenUnconfigured {
			return nil, &ProcessError{Op: "analyze", Phase: PhaseExtract, ResumeID: resumeID, BaseErr: ErrModelNotConfigured}
		}
		record, message, path = MockResumeRecord(), constants.MessageMockAPI, storage.PathMock
	case imageBased:
		pages := s.extractor.RenderPages(ctx, data, s.renderDPI)
		if len(pages) == 0 {
			return nil, NewRenderError(resumeID)
		}
		log.Info().Int("pages", len(pages)).Msg("检测到图片型 PDF，使用视觉模型解析")
		record, err = s.orchestrator.ExtractFromImages(ctx, pages)
		message, path = constants.MessageSuccessVision, storage.PathVision
	default:
		record, err = s.orchestrator.ExtractFromText(ctx, text)
		message, path = constants.MessageSuccess, storage.PathText
	}
	if err != nil {
		return nil, withResumeID(err, resumeID)
	}

	metrics.Extraction(path)
	s.cache.PutResume(ctx, resumeID, record)
	s.afterAnalyze(ctx, resumeID, path, data)

	log.Info().Str("path", path).Msg("简历解析完成")
	return &types.AnalyzeResponse{ResumeID: resumeID, Data: record, Message: message}, nil
}

// Match 评估已解析简历与 JD 的匹配度
func (s *ResumeService) Match(ctx context.Context, resumeID, jobDescription string) (*types.MatchResponse, error) {
	jobText := strings.TrimSpace(jobDescription)
	if jobText == "" {
		return nil, NewInvalidInputError("match", "岗位描述不能为空")
	}
	resumeID = strings.TrimSpace(resumeID)
	if resumeID == "" {
		return nil, NewInvalidInputError("match", "resume_id 不能为空")
	}

	jobID := JobFingerprint(jobText)
	log := logger.Ctx(ctx).With().Str("resume_id", resumeID).Str("job_id", jobID).Logger()

	if result, ok := s.cache.GetMatch(ctx, resumeID, jobID); ok {
		log.Info().Msg("匹配结果命中缓存")
		return &types.MatchResponse{ResumeID: resumeID, MatchResult: result, Message: constants.MessageCacheHit}, nil
	}

	record, ok := s.cache.GetResume(ctx, resumeID)
	if !ok {
		return nil, NewNotFoundError(resumeID)
	}

	var (
		result  *types.MatchResult
		message string
		mock    bool
	)
	if !s.orchestrator.Configured() {
		if !s.mockWhenUnconfigured {
			return nil, &ProcessError{Op: "match", Phase: PhaseScore, ResumeID: resumeID, BaseErr: ErrModelNotConfigured}
		}
		result, message, mock = MockMatchResult(), constants.MessageMockMatch, true
	} else {
		var err error
		result, err = s.orchestrator.Score(ctx, record, jobText)
		if err != nil {
			return nil, withResumeID(err, resumeID)
		}
		message = constants.MessageSuccess
	}

	metrics.ObserveMatchScore(result.Score)
	s.cache.PutMatch(ctx, resumeID, jobID, result)
	s.afterMatch(ctx, storage.ResumeMatchedEvent{ResumeID: resumeID, JobID: jobID, Score: result.Score, Mock: mock})

	log.Info().Int("score", result.Score).Msg("匹配评估完成")
	return &types.MatchResponse{ResumeID: resumeID, MatchResult: result, Message: message}, nil
}

// Wait 等待归档与事件发布完成
func (s *ResumeService) Wait() {
	s.wg.Wait()
}

// afterAnalyze 归档与事件在后台执行，失败只记录日志
func (s *ResumeService) afterAnalyze(ctx context.Context, resumeID, path string, data []byte) {
	if s.archive == nil && s.events == nil {
		return
	}
	s.goSideEffect(ctx, func(ctx context.Context) {
		evt := storage.ResumeAnalyzedEvent{ResumeID: resumeID, Path: path, AnalyzedAt: time.Now().UTC()}
		if s.archive != nil {
			objectName, err := s.archive.ArchiveOriginal(ctx, resumeID, data)
			if err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("归档原始文件失败")
			}
			evt.ArchivedPath = objectName
		}
		if s.events != nil {
			if err := s.events.PublishAnalyzed(ctx, evt); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("发布解析事件失败")
			}
		}
	})
}

func (s *ResumeService) afterMatch(ctx context.Context, evt storage.ResumeMatchedEvent) {
	if s.events == nil {
		return
	}
	s.goSideEffect(ctx, func(ctx context.Context) {
		evt.MatchedAt = time.Now().UTC()
		if err := s.events.PublishMatched(ctx, evt); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", evt.ResumeID).Msg("发布匹配事件失败")
		}
	})
}

// goSideEffect 与请求解耦，保留 trace 和日志上下文
func (s *ResumeService) goSideEffect(ctx context.Context, fn func(ctx context.Context)) {
	detached := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(detached, sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func withResumeID(err error, resumeID string) error {
	var pe *ProcessError
	if errors.As(err, &pe) && pe.ResumeID == "" {
		pe.ResumeID = resumeID
	}
	return err
}
