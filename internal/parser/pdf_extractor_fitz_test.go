package parser

import (
	"bytes"
	"context"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitzPDFExtractor_ExtractText(t *testing.T) {
	f := NewFitzPDFExtractor()
	pdf := buildTestPDF([]string{"Name: Zhang Wei", "Phone: 13812345678"})

	text, err := f.ExtractText(context.Background(), pdf)
	require.NoError(t, err)
	assert.Contains(t, text, "Zhang Wei")
	assert.Contains(t, text, "13812345678")
}

func TestFitzPDFExtractor_PageTexts(t *testing.T) {
	f := NewFitzPDFExtractor()
	pdf := buildTestPDF(nil, []string{"second page"})

	pages, err := f.PageTexts(context.Background(), pdf)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Empty(t, bytes.TrimSpace([]byte(pages[0])))
	assert.Contains(t, pages[1], "second page")
}

func TestFitzPDFExtractor_RenderPNG(t *testing.T) {
	f := NewFitzPDFExtractor()
	pdf := buildTestPDF([]string{"p1"}, []string{"p2"}, []string{"p3"})

	images, err := f.RenderPNG(context.Background(), pdf, 72, 2)
	require.NoError(t, err)
	require.Len(t, images, 2, "应按上限截断页数")

	cfg, err := png.DecodeConfig(bytes.NewReader(images[0]))
	require.NoError(t, err)
	assert.Equal(t, 612, cfg.Width)
	assert.Equal(t, 792, cfg.Height)
}

func TestFitzPDFExtractor_InvalidInput(t *testing.T) {
	f := NewFitzPDFExtractor()
	ctx := context.Background()

	_, err := f.ExtractText(ctx, nil)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = f.PageTexts(ctx, []byte("definitely not a pdf"))
	assert.Error(t, err)
}

// TestDocumentExtractor_WithFitz 覆盖文本型与扫描型文档的完整判断路径
func TestDocumentExtractor_WithFitz(t *testing.T) {
	ctx := context.Background()
	f := NewFitzPDFExtractor()
	d := NewDocumentExtractor([]TextStrategy{f}, f)

	textPDF := buildTestPDF([]string{"Name: Zhang Wei"})
	assert.Contains(t, d.ExtractText(ctx, textPDF), "Zhang Wei")
	assert.False(t, d.IsImageBased(ctx, textPDF))

	blankPDF := buildTestPDF(nil, nil)
	assert.Equal(t, "", d.ExtractText(ctx, blankPDF))
	assert.True(t, d.IsImageBased(ctx, blankPDF))
	assert.Len(t, d.RenderPages(ctx, blankPDF, 72), 2)

	assert.Equal(t, "", d.ExtractText(ctx, nil))
	assert.False(t, d.IsImageBased(ctx, nil))
	assert.Empty(t, d.RenderPages(ctx, []byte("garbage"), 200))
}
