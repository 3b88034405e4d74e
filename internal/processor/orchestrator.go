package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"resume-analyzer/internal/agent"
	"resume-analyzer/internal/constants"
	"resume-analyzer/internal/logger"
	"resume-analyzer/internal/metrics"
	"resume-analyzer/internal/parser"
	"resume-analyzer/internal/tracing"
	"resume-analyzer/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTextLimit = 3000
	defaultJobLimit  = 1000
	maxVisionPages   = 4
)

var orchestratorTracer = otel.Tracer("resume-analyzer/processor")

// Orchestrator 负责调用模型完成解析与评分，并把回复映射为领域结构
type Orchestrator struct {
	textModel   model.BaseChatModel
	visionModel model.BaseChatModel
	textLimit   int
	jobLimit    int
}

// OrchestratorOption 配置 Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithTextLimit 送入模型的简历文本最大字符数
func WithTextLimit(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.textLimit = n
		}
	}
}

// WithJobLimit 送入模型的 JD 最大字符数
func WithJobLimit(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.jobLimit = n
		}
	}
}

// NewOrchestrator textModel 为 nil 表示未配置模型；visionModel 为 nil 时图片解析同样不可用
func NewOrchestrator(textModel, visionModel model.BaseChatModel, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		textModel:   textModel,
		visionModel: visionModel,
		textLimit:   defaultTextLimit,
		jobLimit:    defaultJobLimit,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Configured 文本模型是否可用
func (o *Orchestrator) Configured() bool {
	return o != nil && o.textModel != nil
}

// ExtractFromText 文本路径解析
func (o *Orchestrator) ExtractFromText(ctx context.Context, text string) (*types.ResumeRecord, error) {
	if !o.Configured() {
		return nil, ErrModelNotConfigured
	}
	messages := []*schema.Message{
		schema.SystemMessage(extractionSystemPrompt),
		schema.UserMessage(fmt.Sprintf(extractionTextUserPrompt, truncateRunes(text, o.textLimit))),
	}
	reply, err := o.call(ctx, o.textModel, "text", messages)
	if err != nil {
		return nil, NewModelError("extract_from_text", PhaseExtract, err)
	}
	return mapResumeRecord(parser.ParseModelJSON(reply)), nil
}

// ExtractFromImages 图片路径解析，最多使用前 4 页
func (o *Orchestrator) ExtractFromImages(ctx context.Context, images [][]byte) (*types.ResumeRecord, error) {
	if o == nil || o.visionModel == nil {
		return nil, ErrModelNotConfigured
	}
	if len(images) > maxVisionPages {
		images = images[:maxVisionPages]
	}

	parts := make([]schema.ChatMessagePart, 0, len(images)+1)
	parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: extractionVisionUserPrompt})
	for _, img := range images {
		parts = append(parts, schema.ChatMessagePart{
			Type:     schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{URL: agent.PNGDataURI(img)},
		})
	}
	messages := []*schema.Message{
		schema.SystemMessage(extractionSystemPrompt),
		{Role: schema.User, MultiContent: parts},
	}

	reply, err := o.call(ctx, o.visionModel, "vision", messages)
	if err != nil {
		return nil, NewModelError("extract_from_images", PhaseExtract, err)
	}
	return mapResumeRecord(parser.ParseModelJSON(reply)), nil
}

// Score 评估简历与 JD 的匹配度
func (o *Orchestrator) Score(ctx context.Context, record *types.ResumeRecord, jobText string) (*types.MatchResult, error) {
	if !o.Configured() {
		return nil, ErrModelNotConfigured
	}
	resumeJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("序列化简历数据失败: %w", err)
	}
	messages := []*schema.Message{
		schema.SystemMessage(scoringSystemPrompt),
		schema.UserMessage(fmt.Sprintf(scoringUserPrompt, truncateRunes(jobText, o.jobLimit), resumeJSON)),
	}
	reply, err := o.call(ctx, o.textModel, "score", messages)
	if err != nil {
		return nil, NewModelError("score", PhaseScore, err)
	}
	return mapMatchResult(parser.ParseModelJSON(reply)), nil
}

func (o *Orchestrator) call(ctx context.Context, m model.BaseChatModel, phase string, messages []*schema.Message) (string, error) {
	ctx, span := orchestratorTracer.Start(ctx, "Orchestrator."+phase, trace.WithAttributes(attribute.String("model.phase", phase)))
	defer span.End()

	start := time.Now()
	resp, err := m.Generate(ctx, messages)
	elapsed := time.Since(start)
	metrics.ObserveModelCall(phase, elapsed, err)

	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeModel)
		logger.Ctx(ctx).Error().Err(err).Str("phase", phase).Dur("elapsed", elapsed).Msg("模型调用失败")
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	span.SetAttributes(attribute.Int("model.reply_length", len(resp.Content)))
	logger.Ctx(ctx).Debug().
		Str("phase", phase).
		Dur("elapsed", elapsed).
		Str("reply", tracing.SafeResumeText(resp.Content)).
		Msg("模型调用完成")
	return resp.Content, nil
}

// mapResumeRecord 缺失或类型不符的键映射为 nil
func mapResumeRecord(m map[string]any) *types.ResumeRecord {
	basic, _ := m["basic_info"].(map[string]any)
	return &types.ResumeRecord{
		BasicInfo: types.BasicInfo{
			Name:    optionalString(basic, "name"),
			Phone:   optionalString(basic, "phone"),
			Email:   optionalString(basic, "email"),
			Address: optionalString(basic, "address"),
		},
		JobIntention:        optionalString(m, "job_intention"),
		WorkYears:           optionalString(m, "work_years"),
		EducationBackground: optionalString(m, "education_background"),
		RawTextSummary:      optionalString(m, "raw_text_summary"),
	}
}

// mapMatchResult 分数缺失或非数值时为 0，超出范围时截断到 [0,100]
func mapMatchResult(m map[string]any) *types.MatchResult {
	return &types.MatchResult{
		Score:               clampScore(scoreValue(m["score"])),
		SkillsMatchRate:     stringOr(m, "skills_match_rate", constants.DefaultNotAvailable),
		ExperienceRelevance: stringOr(m, "experience_relevance", constants.DefaultNotAvailable),
		Comment:             stringOr(m, "comment", constants.DefaultMatchComment),
	}
}

func optionalString(m map[string]any, key string) *string {
	if m == nil {
		return nil
	}
	switch v := m[key].(type) {
	case string:
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	}
	return nil
}

func stringOr(m map[string]any, key, def string) string {
	if s := optionalString(m, key); s != nil {
		return *s
	}
	return def
}

func scoreValue(v any) int {
	switch s := v.(type) {
	case float64:
		if math.IsNaN(s) {
			return 0
		}
		return int(math.Round(s))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		return int(math.Round(f))
	}
	return 0
}

func clampScore(score int) int {
	return max(0, min(100, score))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n])
}
