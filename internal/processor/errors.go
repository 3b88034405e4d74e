package processor

import (
	"errors"
	"fmt"
)

// 基础错误类型
var (
	ErrInvalidInput        = errors.New("请求参数无效")
	ErrUnsupportedDocument = errors.New("仅支持 PDF 文件")
	ErrExtractionFailed    = errors.New("无法从 PDF 中提取文本")
	ErrRenderFailed        = errors.New("PDF 页面转换图片失败")
	ErrModelNotConfigured  = errors.New("模型 API Key 未配置")
	ErrModelUnavailable    = errors.New("模型服务调用失败")
	ErrResumeNotFound      = errors.New("未找到简历数据，请重新上传")
)

// Phase 区分出错发生在解析阶段还是评分阶段
type Phase string

const (
	PhaseExtract Phase = "extract"
	PhaseScore   Phase = "score"
)

// ProcessError 带上下文的处理错误
type ProcessError struct {
	Op       string
	Phase    Phase
	ResumeID string
	BaseErr  error
	Detail   string
}

func (e *ProcessError) Error() string {
	var b []byte
	b = fmt.Appendf(b, "%s (操作:%s", e.BaseErr, e.Op)
	if e.Phase != "" {
		b = fmt.Appendf(b, ", 阶段:%s", e.Phase)
	}
	if e.ResumeID != "" {
		b = fmt.Appendf(b, ", ID:%s", e.ResumeID)
	}
	b = append(b, ')')
	if e.Detail != "" {
		b = fmt.Appendf(b, ": %s", e.Detail)
	}
	return string(b)
}

func (e *ProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// NewInvalidInputError 参数错误
func NewInvalidInputError(op, detail string) error {
	return &ProcessError{Op: op, BaseErr: ErrInvalidInput, Detail: detail}
}

// NewExtractionError 没有文本层且不是图片型 PDF
func NewExtractionError(resumeID string) error {
	return &ProcessError{Op: "analyze", Phase: PhaseExtract, ResumeID: resumeID, BaseErr: ErrExtractionFailed}
}

// NewRenderError 图片型 PDF 渲染失败
func NewRenderError(resumeID string) error {
	return &ProcessError{Op: "analyze", Phase: PhaseExtract, ResumeID: resumeID, BaseErr: ErrRenderFailed}
}

// NewNotFoundError 匹配时缓存中没有简历
func NewNotFoundError(resumeID string) error {
	return &ProcessError{Op: "match", Phase: PhaseScore, ResumeID: resumeID, BaseErr: ErrResumeNotFound}
}

// NewModelError 模型调用失败，cause 的详情保留在 Detail 中
func NewModelError(op string, phase Phase, cause error) error {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &ProcessError{Op: op, Phase: phase, BaseErr: ErrModelUnavailable, Detail: detail}
}

// PhaseOf 返回错误所处阶段，非 ProcessError 返回空
func PhaseOf(err error) Phase {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Phase
	}
	return ""
}
