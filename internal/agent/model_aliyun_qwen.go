package agent

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// OpenAI-compatible API endpoint for DashScope
	openAICompatibleQwenAPIURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"
	defaultQwenModelName       = "qwen-turbo"
	defaultRequestTimeout      = 60 * time.Second
)

// ErrEmptyAPIKey 未提供 API Key
var ErrEmptyAPIKey = errors.New("API 密钥不能为空")

// APIError 模型服务返回的非 200 响应
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API 请求失败，状态 %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API 请求失败，状态 %d: %s", e.StatusCode, e.Message)
}

// AliyunQwenChatModel 通过 DashScope 的 OpenAI 兼容接口调用通义千问，支持图片输入
type AliyunQwenChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	httpClient  *http.Client
	temperature *float32
	logger      *log.Logger
}

// QwenOption 配置选项
type QwenOption func(*AliyunQwenChatModel)

// WithHTTPClient 使用自定义的 http.Client
func WithHTTPClient(client *http.Client) QwenOption {
	return func(aq *AliyunQwenChatModel) {
		aq.httpClient = client
	}
}

// WithRequestTimeout 单次请求超时
func WithRequestTimeout(timeout time.Duration) QwenOption {
	return func(aq *AliyunQwenChatModel) {
		if timeout > 0 {
			aq.httpClient.Timeout = timeout
		}
	}
}

// WithTemperature 默认采样温度
func WithTemperature(t float32) QwenOption {
	return func(aq *AliyunQwenChatModel) {
		aq.temperature = &t
	}
}

// WithQwenLogger 配置日志
func WithQwenLogger(logger *log.Logger) QwenOption {
	return func(aq *AliyunQwenChatModel) {
		aq.logger = logger
	}
}

// NewAliyunQwenChatModel 创建一个新的 AliyunQwenChatModel 实例
func NewAliyunQwenChatModel(apiKey string, modelName string, apiURL string, opts ...QwenOption) (*AliyunQwenChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrEmptyAPIKey
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultQwenModelName
	}
	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = openAICompatibleQwenAPIURL
	}

	aq := &AliyunQwenChatModel{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(aq)
	}
	return aq, nil
}

// ModelName 当前使用的模型
func (aq *AliyunQwenChatModel) ModelName() string { return aq.modelName }

// --- OpenAI Compatible Request/Response Structures ---

type openAIChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature *float32        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
}

// openAIMessage 的 Content 为字符串，或图文混合时为 []openAIContentPart
type openAIMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAICompletionResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate 实现 model.ChatModel 接口
func (aq *AliyunQwenChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	common := model.GetCommonOptions(&model.Options{
		Temperature: aq.temperature,
		Model:       &aq.modelName,
	}, options...)

	reqPayload := openAIChatCompletionRequest{
		Model:       *common.Model,
		Messages:    make([]openAIMessage, 0, len(messages)),
		Temperature: common.Temperature,
		MaxTokens:   common.MaxTokens,
	}
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		reqPayload.Messages = append(reqPayload.Messages, toOpenAIMessage(msg))
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, aq.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+aq.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	aq.logger.Printf("发送请求到 %s，模型 %s，消息数 %d，请求体 %d 字节", aq.apiURL, reqPayload.Model, len(reqPayload.Messages), len(jsonData))

	httpResp, err := aq.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	aq.logger.Printf("收到响应: Status=%s, %d 字节, 用时 %s", httpResp.Status, len(bodyBytes), time.Since(startTime))

	var openAIResp openAICompletionResponse
	decodeErr := json.Unmarshal(bodyBytes, &openAIResp)

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: httpResp.StatusCode, Message: truncate(string(bodyBytes), 512)}
		if decodeErr == nil && openAIResp.Error != nil {
			apiErr.Code = openAIResp.Error.Code
			apiErr.Message = openAIResp.Error.Message
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", decodeErr)
	}
	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", truncate(string(bodyBytes), 512))
	}

	content := ""
	if c := openAIResp.Choices[0].Message.Content; c != nil {
		content = *c
	}
	return schema.AssistantMessage(content, nil), nil
}

// toOpenAIMessage 纯文本消息直接使用字符串，含图片时转换为 content 数组
func toOpenAIMessage(msg *schema.Message) openAIMessage {
	if len(msg.MultiContent) == 0 {
		return openAIMessage{Role: string(msg.Role), Content: msg.Content}
	}

	parts := make([]openAIContentPart, 0, len(msg.MultiContent)+1)
	for _, p := range msg.MultiContent {
		switch p.Type {
		case schema.ChatMessagePartTypeText:
			parts = append(parts, openAIContentPart{Type: "text", Text: p.Text})
		case schema.ChatMessagePartTypeImageURL:
			if p.ImageURL != nil {
				parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImageURL{URL: p.ImageURL.URL}})
			}
		}
	}
	if msg.Content != "" {
		parts = append(parts, openAIContentPart{Type: "text", Text: msg.Content})
	}
	return openAIMessage{Role: string(msg.Role), Content: parts}
}

// PNGDataURI 把 PNG 字节编码为 data URI，供 image_url 使用
func PNGDataURI(img []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img)
}

// Stream 未实现
func (aq *AliyunQwenChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("AliyunQwenChatModel 不支持 Stream")
}

// BindTools 本服务不使用工具调用
func (aq *AliyunQwenChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) > 0 {
		return fmt.Errorf("AliyunQwenChatModel 不支持工具调用")
	}
	return nil
}

// WithTools 满足 model.ToolCallingChatModel 接口
func (aq *AliyunQwenChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := aq.BindTools(tools); err != nil {
		return nil, err
	}
	return aq, nil
}

var (
	_ model.ChatModel            = (*AliyunQwenChatModel)(nil)
	_ model.ToolCallingChatModel = (*AliyunQwenChatModel)(nil)
)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
