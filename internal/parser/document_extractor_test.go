package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubStrategy struct {
	name  string
	text  string
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) ExtractText(_ context.Context, _ []byte) (string, error) {
	s.calls++
	return s.text, s.err
}

type stubRenderer struct {
	pages    []string
	pagesErr error
	images   [][]byte
	imageErr error
	gotDPI   float64
	gotMax   int
}

func (r *stubRenderer) PageTexts(_ context.Context, _ []byte) ([]string, error) {
	return r.pages, r.pagesErr
}

func (r *stubRenderer) RenderPNG(_ context.Context, _ []byte, dpi float64, maxPages int) ([][]byte, error) {
	r.gotDPI, r.gotMax = dpi, maxPages
	return r.images, r.imageErr
}

func TestDocumentExtractor_ExtractText(t *testing.T) {
	ctx := context.Background()
	doc := []byte("%PDF-fake")

	t.Run("首个策略成功时不再调用后续策略", func(t *testing.T) {
		primary := &stubStrategy{name: "primary", text: "  Name: Zhang Wei  \n\n\n Phone: 13812345678 "}
		secondary := &stubStrategy{name: "secondary", text: "unused"}
		d := NewDocumentExtractor([]TextStrategy{primary, secondary}, nil)

		assert.Equal(t, "Name: Zhang Wei\nPhone: 13812345678", d.ExtractText(ctx, doc))
		assert.Equal(t, 0, secondary.calls)
	})

	t.Run("首个策略只有空白时回退", func(t *testing.T) {
		primary := &stubStrategy{name: "primary", text: " \n\t\n "}
		secondary := &stubStrategy{name: "secondary", text: "fallback text"}
		d := NewDocumentExtractor([]TextStrategy{primary, secondary}, nil)

		assert.Equal(t, "fallback text", d.ExtractText(ctx, doc))
		assert.Equal(t, 1, secondary.calls)
	})

	t.Run("首个策略报错时回退", func(t *testing.T) {
		primary := &stubStrategy{name: "primary", err: errors.New("broken xref")}
		secondary := &stubStrategy{name: "secondary", text: "ok"}
		d := NewDocumentExtractor([]TextStrategy{primary, secondary}, nil)

		assert.Equal(t, "ok", d.ExtractText(ctx, doc))
	})

	t.Run("全部失败返回空字符串", func(t *testing.T) {
		d := NewDocumentExtractor([]TextStrategy{
			&stubStrategy{name: "a", err: errors.New("x")},
			&stubStrategy{name: "b", text: "   "},
		}, nil)

		assert.Equal(t, "", d.ExtractText(ctx, doc))
	})

	t.Run("空输入不调用任何策略", func(t *testing.T) {
		s := &stubStrategy{name: "a", text: "x"}
		d := NewDocumentExtractor([]TextStrategy{s}, nil)

		assert.Equal(t, "", d.ExtractText(ctx, nil))
		assert.Equal(t, 0, s.calls)
	})
}

func TestDocumentExtractor_IsImageBased(t *testing.T) {
	ctx := context.Background()
	doc := []byte("%PDF-fake")

	testCases := []struct {
		name     string
		renderer PageRenderer
		data     []byte
		expected bool
	}{
		{"所有页面为空", &stubRenderer{pages: []string{"", "  \n "}}, doc, true},
		{"有一页包含文本", &stubRenderer{pages: []string{"", "hello"}}, doc, false},
		{"打开失败", &stubRenderer{pagesErr: errors.New("cannot open")}, doc, false},
		{"空输入", &stubRenderer{pages: []string{""}}, nil, false},
		{"没有渲染器", nil, doc, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDocumentExtractor(nil, tc.renderer)
			assert.Equal(t, tc.expected, d.IsImageBased(ctx, tc.data))
		})
	}
}

func TestDocumentExtractor_RenderPages(t *testing.T) {
	ctx := context.Background()
	doc := []byte("%PDF-fake")

	t.Run("传递DPI与页数上限", func(t *testing.T) {
		r := &stubRenderer{images: [][]byte{{1}, {2}}}
		d := NewDocumentExtractor(nil, r, WithMaxPages(3))

		images := d.RenderPages(ctx, doc, 150)
		assert.Len(t, images, 2)
		assert.Equal(t, float64(150), r.gotDPI)
		assert.Equal(t, 3, r.gotMax)
	})

	t.Run("默认200DPI", func(t *testing.T) {
		r := &stubRenderer{}
		d := NewDocumentExtractor(nil, r)
		d.RenderPages(ctx, doc, 0)
		assert.Equal(t, float64(200), r.gotDPI)
		assert.Equal(t, 4, r.gotMax)
	})

	t.Run("渲染器返回过多页面时截断", func(t *testing.T) {
		r := &stubRenderer{images: [][]byte{{1}, {2}, {3}, {4}, {5}, {6}}}
		d := NewDocumentExtractor(nil, r)
		assert.Len(t, d.RenderPages(ctx, doc, 200), 4)
	})

	t.Run("渲染失败返回空", func(t *testing.T) {
		r := &stubRenderer{imageErr: errors.New("boom")}
		d := NewDocumentExtractor(nil, r)
		assert.Empty(t, d.RenderPages(ctx, doc, 200))
	})
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a\nb", normalizeText("  a \n\n   \n b\n"))
	assert.Equal(t, "", normalizeText(" \n \t "))
}
