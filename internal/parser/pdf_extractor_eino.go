package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFTextExtractor 使用 Eino PDF Parser 提取文本层
type EinoPDFTextExtractor struct {
	parser *pdf.PDFParser
	logger *log.Logger
}

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		e.logger = logger
	}
}

var _ TextStrategy = (*EinoPDFTextExtractor)(nil)

// NewEinoPDFTextExtractor 初始化 Eino PDF 文本提取器
// 不按页面分割，以获取整个文档的连续文本
func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser: p,
		logger: log.New(io.Discard, "", 0),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

// Name 策略名
func (e *EinoPDFTextExtractor) Name() string { return "eino" }

// ExtractText 从字节数组提取文本
func (e *EinoPDFTextExtractor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrEmptyDocument
	}
	// 底层PDF库遇到畸形文件可能panic
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("eino PDF parser panicked: %v", r)
		}
	}()

	startTime := time.Now()
	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI("upload.pdf"),
		einoParser.WithExtraMeta(map[string]any{"size_bytes": len(data)}),
	)
	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("eino 提取失败: %v (用时 %.2f秒)", err, duration.Seconds())
		return "", fmt.Errorf("eino PDF parser failed: %w", err)
	}

	var buf bytes.Buffer
	for i, doc := range docs {
		if doc == nil {
			continue
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(doc.Content)
	}

	e.logger.Printf("eino 提取完成: %d 个文档, %d 字节 (用时 %.2f秒)", len(docs), buf.Len(), duration.Seconds())
	return buf.String(), nil
}
