package parser

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"
)

// ErrEmptyDocument 输入为空
var ErrEmptyDocument = errors.New("document is empty")

// TextStrategy 单一的文本层提取实现
type TextStrategy interface {
	Name() string
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// PageRenderer 逐页检查与渲染
type PageRenderer interface {
	PageTexts(ctx context.Context, data []byte) ([]string, error)
	RenderPNG(ctx context.Context, data []byte, dpi float64, maxPages int) ([][]byte, error)
}

// DocumentExtractor 将文档字节转为纯文本或页面图片。
// 所有方法都不返回错误，失败时退化为空结果，由调用方统一决定后续路径。
type DocumentExtractor struct {
	strategies []TextStrategy
	renderer   PageRenderer
	maxPages   int
	timeout    time.Duration
	logger     *log.Logger
}

// DocumentExtractorOption 配置选项
type DocumentExtractorOption func(*DocumentExtractor)

// WithMaxPages 渲染页数上限
func WithMaxPages(n int) DocumentExtractorOption {
	return func(d *DocumentExtractor) {
		if n > 0 {
			d.maxPages = n
		}
	}
}

// WithExtractTimeout 单次提取的超时
func WithExtractTimeout(timeout time.Duration) DocumentExtractorOption {
	return func(d *DocumentExtractor) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithExtractorLogger 配置日志
func WithExtractorLogger(logger *log.Logger) DocumentExtractorOption {
	return func(d *DocumentExtractor) {
		d.logger = logger
	}
}

// NewDocumentExtractor strategies 按顺序尝试，renderer 用于图片型判断和渲染，可以为 nil
func NewDocumentExtractor(strategies []TextStrategy, renderer PageRenderer, options ...DocumentExtractorOption) *DocumentExtractor {
	d := &DocumentExtractor{
		strategies: strategies,
		renderer:   renderer,
		maxPages:   4,
		timeout:    30 * time.Second,
		logger:     log.New(io.Discard, "", 0),
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// ExtractText 依次尝试各策略，返回第一个非空结果；全部为空时返回空字符串
func (d *DocumentExtractor) ExtractText(ctx context.Context, data []byte) string {
	if len(data) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	for _, s := range d.strategies {
		raw, err := s.ExtractText(ctx, data)
		if err != nil {
			d.logger.Printf("策略 %s 提取失败: %v", s.Name(), err)
			continue
		}
		if text := normalizeText(raw); text != "" {
			d.logger.Printf("策略 %s 提取成功: %d 字符", s.Name(), len([]rune(text)))
			return text
		}
		d.logger.Printf("策略 %s 未提取到文本", s.Name())
	}
	return ""
}

// IsImageBased 所有页面都没有非空白文本时返回 true；无法打开文档时返回 false
func (d *DocumentExtractor) IsImageBased(ctx context.Context, data []byte) bool {
	if d.renderer == nil || len(data) == 0 {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	pages, err := d.renderer.PageTexts(ctx, data)
	if err != nil {
		d.logger.Printf("图片型判断失败: %v", err)
		return false
	}
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// RenderPages 按指定 DPI 渲染前若干页为 PNG，失败时返回空切片
func (d *DocumentExtractor) RenderPages(ctx context.Context, data []byte, dpi int) [][]byte {
	if d.renderer == nil || len(data) == 0 {
		return nil
	}
	if dpi <= 0 {
		dpi = 200
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	images, err := d.renderer.RenderPNG(ctx, data, float64(dpi), d.maxPages)
	if err != nil {
		d.logger.Printf("页面渲染失败: %v", err)
		return nil
	}
	if len(images) > d.maxPages {
		images = images[:d.maxPages]
	}
	return images
}

// normalizeText 逐行去除首尾空白并丢弃空行
func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
