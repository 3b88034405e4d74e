package bootstrap

import (
	"context"
	"testing"
	"time"

	"resume-analyzer/internal/config"
	"resume-analyzer/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelsUnconfigured(t *testing.T) {
	cfg := config.DefaultConfig()

	text, vision := NewModels(context.Background(), cfg)

	assert.Nil(t, text)
	assert.Nil(t, vision)
}

func TestNewModelsAliyun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.APIKey = "sk-test"

	text, vision := NewModels(context.Background(), cfg)

	assert.NotNil(t, text)
	assert.NotNil(t, vision)
}

func TestNewGeminiModelUsesModelTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Model.Provider = "gemini"
	cfg.Model.GeminiAPIKey = "test-key"
	cfg.Model.Timeout = 45 * time.Second

	m, err := newGeminiModel(context.Background(), cfg, "gemini-2.5-flash")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, m.Timeout())
	assert.Equal(t, "gemini-2.5-flash", m.ModelName())
}

func TestNewExtractorWithoutTika(t *testing.T) {
	cfg := config.DefaultConfig()

	ex := NewExtractor(context.Background(), cfg)
	require.NotNil(t, ex)

	// 空输入不报错，退化为空文本
	assert.Equal(t, "", ex.ExtractText(context.Background(), nil))
	assert.False(t, ex.IsImageBased(context.Background(), nil))
}

func TestNewResumeServiceUsesMockWhenUnconfigured(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	st := &storage.Storage{Cache: storage.NewResultCache(ctx, nil)}
	t.Cleanup(st.Close)

	svc := NewResumeService(ctx, cfg, st)
	t.Cleanup(svc.Wait)

	// 缓存中没有该简历
	_, err := svc.Match(ctx, "abc123", "Go 开发")
	require.Error(t, err)
}

func TestComponentLogger(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.NotNil(t, ComponentLogger(cfg, "[x] "))

	cfg.Logger.Level = "debug"
	assert.NotNil(t, ComponentLogger(cfg, "[x] "))
}
