package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// contentGenerator 抽象 genai.Models，便于测试
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiChatModel 以 eino ChatModel 的形式包装 Gemini API
type GeminiChatModel struct {
	models    contentGenerator
	modelName string
	timeout   time.Duration
}

// GeminiOption 配置选项
type GeminiOption func(*GeminiChatModel)

// WithGeminiTimeout 单次请求超时，<=0 表示只受调用方 ctx 约束
func WithGeminiTimeout(timeout time.Duration) GeminiOption {
	return func(g *GeminiChatModel) {
		g.timeout = timeout
	}
}

// NewGeminiChatModel 创建 Gemini 模型客户端
func NewGeminiChatModel(ctx context.Context, apiKey, modelName string, opts ...GeminiOption) (*GeminiChatModel, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrEmptyAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiChatModel(client.Models, modelName, opts...), nil
}

func newGeminiChatModel(models contentGenerator, modelName string, opts ...GeminiOption) *GeminiChatModel {
	if modelName = strings.TrimSpace(modelName); modelName == "" {
		modelName = defaultGeminiModel
	}
	g := &GeminiChatModel{models: models, modelName: modelName}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ModelName 当前使用的模型
func (g *GeminiChatModel) ModelName() string { return g.modelName }

// Timeout 单次请求超时
func (g *GeminiChatModel) Timeout() time.Duration { return g.timeout }

// Generate system 消息作为 SystemInstruction，其余消息按角色转换为 Content
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	common := model.GetCommonOptions(&model.Options{Model: &g.modelName}, options...)

	cfg := &genai.GenerateContentConfig{Temperature: common.Temperature}
	if common.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*common.MaxTokens)
	}

	var contents []*genai.Content
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if msg.Role == schema.System {
			cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: msg.Content}}}
			continue
		}
		parts, err := toGeminiParts(msg)
		if err != nil {
			return nil, err
		}
		role := genai.RoleUser
		if msg.Role == schema.Assistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini: no user content")
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.models.GenerateContent(ctx, *common.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	var builder strings.Builder
	if resp == nil {
		return schema.AssistantMessage("", nil), nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
	}
	// 无候选或全部被过滤时返回空内容，由结果解析器按空结果处理
	return schema.AssistantMessage(strings.TrimSpace(builder.String()), nil), nil
}

func toGeminiParts(msg *schema.Message) ([]*genai.Part, error) {
	var parts []*genai.Part
	for _, p := range msg.MultiContent {
		switch p.Type {
		case schema.ChatMessagePartTypeText:
			parts = append(parts, &genai.Part{Text: p.Text})
		case schema.ChatMessagePartTypeImageURL:
			if p.ImageURL == nil {
				continue
			}
			mime, data, err := decodeDataURI(p.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: data}})
		}
	}
	if msg.Content != "" {
		parts = append(parts, &genai.Part{Text: msg.Content})
	}
	return parts, nil
}

// decodeDataURI 解析 data:<mime>;base64,<payload>
func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("gemini: only data URI images are supported")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("gemini: malformed data URI")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("gemini: decode image: %w", err)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

// Stream 未实现
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("GeminiChatModel 不支持 Stream")
}

// BindTools 本服务不使用工具调用
func (g *GeminiChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		return fmt.Errorf("GeminiChatModel 不支持工具调用")
	}
	return nil
}

// WithTools 满足 model.ToolCallingChatModel 接口
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := g.BindTools(tools); err != nil {
		return nil, err
	}
	return g, nil
}

var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)
