package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"resume-analyzer/internal/logger"
	"resume-analyzer/internal/processor"
	"resume-analyzer/internal/storage"
	"resume-analyzer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/go-playground/validator/v10"
)

// 错误响应中的 code 字段
const (
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeExtractionFailed = "EXTRACTION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeModelUnavailable = "MODEL_UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// RequestIDKey 请求ID在 RequestContext 中的键，由中间件写入
const RequestIDKey = "request_id"

// Banner 根路径返回的欢迎信息
const Banner = "Welcome to AI Resume Analyzer API."

const defaultMaxUploadBytes int64 = 20 << 20

// ResumeAnalyzer 解析与匹配的业务入口
type ResumeAnalyzer interface {
	Analyze(ctx context.Context, filename string, data []byte) (*types.AnalyzeResponse, error)
	Match(ctx context.Context, resumeID, jobDescription string) (*types.MatchResponse, error)
}

// CacheInspector 提供缓存状态
type CacheInspector interface {
	State() storage.CacheState
	FallbackLen() int
}

// ResumeHandler 简历解析与匹配接口
type ResumeHandler struct {
	svc            ResumeAnalyzer
	cache          CacheInspector
	validate       *validator.Validate
	maxUploadBytes int64
}

// HandlerOption 配置 ResumeHandler
type HandlerOption func(*ResumeHandler)

// WithMaxUploadBytes 上传文件大小上限
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *ResumeHandler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewResumeHandler 创建处理器，cache 可为 nil
func NewResumeHandler(svc ResumeAnalyzer, cache CacheInspector, opts ...HandlerOption) *ResumeHandler {
	v := validator.New()
	// 错误信息里使用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	h := &ResumeHandler{
		svc:            svc,
		cache:          cache,
		validate:       v,
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleAnalyze POST /api/resume/analyze，multipart 字段 file
func (h *ResumeHandler) HandleAnalyze(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		writeError(c, consts.StatusBadRequest, CodeInvalidArgument, "缺少上传文件字段 file")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		writeError(c, consts.StatusRequestEntityTooLarge, CodeInvalidArgument,
			fmt.Sprintf("文件大小超过上限 %d 字节", h.maxUploadBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		writeError(c, consts.StatusBadRequest, CodeInvalidArgument, "打开上传文件失败")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		writeError(c, consts.StatusBadRequest, CodeInvalidArgument, "读取上传文件失败")
		return
	}

	resp, err := h.svc.Analyze(ctx, fileHeader.Filename, data)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleMatch POST /api/resume/match
func (h *ResumeHandler) HandleMatch(ctx context.Context, c *app.RequestContext) {
	var req types.MatchRequest
	if err := c.Bind(&req); err != nil {
		writeError(c, consts.StatusBadRequest, CodeInvalidArgument, "请求体不是合法的JSON")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(c, consts.StatusBadRequest, CodeInvalidArgument, validationMessage(err))
		return
	}

	resp, err := h.svc.Match(ctx, req.ResumeID, req.JobDescription)
	if err != nil {
		h.fail(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleCacheStatus GET /api/resume/cache/status
func (h *ResumeHandler) HandleCacheStatus(ctx context.Context, c *app.RequestContext) {
	if h.cache == nil {
		c.JSON(consts.StatusOK, utils.H{"state": storage.StateDegraded.String(), "fallback_entries": 0})
		return
	}
	c.JSON(consts.StatusOK, utils.H{
		"state":            h.cache.State().String(),
		"fallback_entries": h.cache.FallbackLen(),
	})
}

// HandleHealth GET /health
func HandleHealth(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// HandleRoot GET /
func HandleRoot(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"message": Banner})
}

func (h *ResumeHandler) fail(ctx context.Context, c *app.RequestContext, err error) {
	status, code := StatusFor(err)
	evt := logger.Ctx(ctx).Warn()
	if status >= consts.StatusInternalServerError {
		evt = logger.Ctx(ctx).Error()
	}
	evt.Err(err).Int("status", status).Str("code", code).Str("path", string(c.Path())).Msg("请求处理失败")
	writeError(c, status, code, publicMessage(err, status))
}

// StatusFor 把业务错误映射为 HTTP 状态码和错误码
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, processor.ErrInvalidInput), errors.Is(err, processor.ErrUnsupportedDocument):
		return consts.StatusBadRequest, CodeInvalidArgument
	case errors.Is(err, processor.ErrExtractionFailed), errors.Is(err, processor.ErrRenderFailed):
		return consts.StatusBadRequest, CodeExtractionFailed
	case errors.Is(err, processor.ErrResumeNotFound):
		return consts.StatusNotFound, CodeNotFound
	case errors.Is(err, processor.ErrModelUnavailable), errors.Is(err, processor.ErrModelNotConfigured):
		return consts.StatusInternalServerError, CodeModelUnavailable
	default:
		return consts.StatusInternalServerError, CodeInternal
	}
}

// publicMessage 5xx 不暴露内部细节
func publicMessage(err error, status int) string {
	if status < consts.StatusInternalServerError {
		return err.Error()
	}
	var pe *processor.ProcessError
	if errors.As(err, &pe) {
		switch pe.Phase {
		case processor.PhaseExtract:
			return "简历解析阶段模型调用失败"
		case processor.PhaseScore:
			return "匹配评估阶段模型调用失败"
		}
	}
	return "服务内部错误"
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("字段 %s 不能为空", fe.Field())
	default:
		return fmt.Sprintf("字段 %s 校验失败: %s", fe.Field(), fe.Tag())
	}
}

func writeError(c *app.RequestContext, status int, code, message string) {
	body := types.ErrorBody{Error: types.ErrorDetail{Code: code, Message: message}}
	if v, ok := c.Get(RequestIDKey); ok {
		if id, ok := v.(string); ok {
			body.RequestID = id
		}
	}
	c.JSON(status, body)
}
