package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func TestGeminiChatModel_Generate(t *testing.T) {
	fake := &fakeGenerator{resp: textResponse(` {"score": 75} `)}
	g := newGeminiChatModel(fake, "")

	img := PNGDataURI([]byte("pngbytes"))
	resp, err := g.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("extract fields"),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: img}},
				{Type: schema.ChatMessagePartTypeText, Text: "read all text"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 75}`, resp.Content)

	assert.Equal(t, defaultGeminiModel, fake.model)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "extract fields", fake.config.SystemInstruction.Parts[0].Text)

	require.Len(t, fake.contents, 1)
	assert.Equal(t, genai.RoleUser, fake.contents[0].Role)
	parts := fake.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, []byte("pngbytes"), parts[0].InlineData.Data)
	assert.Equal(t, "read all text", parts[1].Text)
}

func TestGeminiChatModel_Errors(t *testing.T) {
	g := newGeminiChatModel(&fakeGenerator{err: errors.New("quota exceeded")}, "gemini-x")
	_, err := g.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})
	assert.ErrorContains(t, err, "quota exceeded")

	_, err = g.Generate(context.Background(), []*schema.Message{schema.SystemMessage("only system")})
	assert.Error(t, err)
}

func TestGeminiChatModel_EmptyReply(t *testing.T) {
	cases := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"no candidates", &genai.GenerateContentResponse{}},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}},
		{"blank text", textResponse("  \n ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGeminiChatModel(&fakeGenerator{resp: tc.resp}, "gemini-x")

			resp, err := g.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})

			require.NoError(t, err)
			assert.Equal(t, schema.Assistant, resp.Role)
			assert.Empty(t, resp.Content)
		})
	}
}

// blockingGenerator 一直等到 ctx 结束
type blockingGenerator struct{}

func (blockingGenerator) GenerateContent(ctx context.Context, _ string, _ []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGeminiChatModel_Timeout(t *testing.T) {
	g := newGeminiChatModel(blockingGenerator{}, "gemini-x", WithGeminiTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := g.Generate(context.Background(), []*schema.Message{schema.UserMessage("x")})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDecodeDataURI(t *testing.T) {
	mime, data, err := decodeDataURI(PNGDataURI([]byte{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, []byte{1, 2, 3}, data)

	_, _, err = decodeDataURI("https://example.com/a.png")
	assert.Error(t, err)
	_, _, err = decodeDataURI("data:image/png,raw")
	assert.Error(t, err)
}

func TestNewGeminiChatModel_EmptyKey(t *testing.T) {
	_, err := NewGeminiChatModel(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyAPIKey)
}
