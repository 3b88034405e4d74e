package parser

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"log"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// FitzPDFExtractor 基于 MuPDF 的实现，负责逐页文本、图片型判断和页面渲染
type FitzPDFExtractor struct {
	logger *log.Logger
}

// FitzOption 配置选项
type FitzOption func(*FitzPDFExtractor)

// WithFitzLogger 配置自定义日志记录器
func WithFitzLogger(logger *log.Logger) FitzOption {
	return func(f *FitzPDFExtractor) {
		f.logger = logger
	}
}

var (
	_ TextStrategy = (*FitzPDFExtractor)(nil)
	_ PageRenderer = (*FitzPDFExtractor)(nil)
)

// NewFitzPDFExtractor 创建 MuPDF 提取器
func NewFitzPDFExtractor(options ...FitzOption) *FitzPDFExtractor {
	f := &FitzPDFExtractor{logger: log.New(io.Discard, "", 0)}
	for _, option := range options {
		option(f)
	}
	return f
}

// Name 策略名
func (f *FitzPDFExtractor) Name() string { return "mupdf" }

// ExtractText 按页提取文本并拼接
func (f *FitzPDFExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	pages, err := f.PageTexts(ctx, data)
	if err != nil {
		return "", err
	}
	return strings.Join(pages, "\n"), nil
}

// PageTexts 返回每一页的原始文本
func (f *FitzPDFExtractor) PageTexts(ctx context.Context, data []byte) (pages []string, err error) {
	doc, err := openFitz(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	n := doc.NumPage()
	pages = make([]string, 0, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return pages, ctx.Err()
		}
		text, err := doc.Text(i)
		if err != nil {
			f.logger.Printf("第 %d 页文本提取失败: %v", i+1, err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// RenderPNG 将前 maxPages 页渲染为 PNG，单页失败时跳过
func (f *FitzPDFExtractor) RenderPNG(ctx context.Context, data []byte, dpi float64, maxPages int) ([][]byte, error) {
	doc, err := openFitz(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	n := doc.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	images := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return images, ctx.Err()
		}
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			f.logger.Printf("第 %d 页渲染失败: %v", i+1, err)
			continue
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			f.logger.Printf("第 %d 页PNG编码失败: %v", i+1, err)
			continue
		}
		images = append(images, buf.Bytes())
	}
	return images, nil
}

func openFitz(data []byte) (doc *fitz.Document, err error) {
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("mupdf panicked: %v", r)
		}
	}()
	doc, err = fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("mupdf open failed: %w", err)
	}
	return doc, nil
}
