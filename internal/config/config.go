package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultDashScopeURL 阿里云百炼 OpenAI 兼容模式的对话接口
const DefaultDashScopeURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"

// Config 应用程序配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	MinIO     MinIOConfig     `yaml:"minio"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logger    LoggerConfig    `yaml:"logger"`

	// 模型QPM限制，key为模型名
	ModelQPMLimits map[string]int `yaml:"model_qpm_limits"`
}

// ServerConfig 定义服务器配置
type ServerConfig struct {
	Address         string        `yaml:"address" env:"SERVER_ADDRESS"` // 例如 ":8000"
	MaxUploadMB     int           `yaml:"max_upload_mb" env:"SERVER_MAX_UPLOAD_MB"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	// 非空时 /api 下的接口需要携带 X-API-Key
	APIKeys []string `yaml:"api_keys" env:"SERVER_API_KEYS" envSeparator:","`
}

// ModelConfig 大模型配置
type ModelConfig struct {
	Provider    string        `yaml:"provider" env:"MODEL_PROVIDER"` // aliyun | gemini
	APIKey      string        `yaml:"api_key" env:"DASHSCOPE_API_KEY"`
	APIURL      string        `yaml:"api_url" env:"ALIYUN_API_URL"`
	TextModel   string        `yaml:"text_model" env:"MODEL_TEXT"`
	VisionModel string        `yaml:"vision_model" env:"MODEL_VISION"`
	Timeout     time.Duration `yaml:"timeout" env:"MODEL_TIMEOUT"`
	Temperature float32       `yaml:"temperature"`

	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`

	// 令牌桶等待，为 false 时超限直接报错
	RateLimitWait bool `yaml:"rate_limit_wait"`
	MaxRetries    int  `yaml:"max_retries"`

	// 未配置API Key时返回固定的示例结果，便于本地联调
	MockWhenUnconfigured bool `yaml:"mock_when_unconfigured" env:"MOCK_WHEN_UNCONFIGURED"`
}

// ExtractorConfig 文档解析配置
type ExtractorConfig struct {
	TextLimit int           `yaml:"text_limit"` // 送入模型的简历文本最大字符数
	JobLimit  int           `yaml:"job_limit"`  // 送入模型的JD最大字符数
	DPI       int           `yaml:"dpi"`
	MaxPages  int           `yaml:"max_pages"`
	Timeout   time.Duration `yaml:"timeout"`
	TikaURL   string        `yaml:"tika_url" env:"TIKA_URL"` // 为空则不启用Tika
}

// RedisConfig holds configuration for Redis
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST"`
	Port     int    `yaml:"port" env:"REDIS_PORT"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns"`
	// 超时设置，连接超时保持较短，避免Redis不可用时拖慢每个请求
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// Address 返回 host:port
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig 结果缓存配置
type CacheConfig struct {
	TTL                time.Duration `yaml:"ttl"`
	FallbackMaxEntries int           `yaml:"fallback_max_entries"` // 0 表示不限制
	ReprobeEnabled     bool          `yaml:"reprobe_enabled"`
	ReprobeMaxInterval time.Duration `yaml:"reprobe_max_interval"`
}

// MinIOConfig MinIO配置结构，Endpoint 为空则不归档原始文件
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT"`
	AccessKeyID     string `yaml:"accessKeyID" env:"MINIO_ACCESS_KEY"`
	SecretAccessKey string `yaml:"secretAccessKey" env:"MINIO_SECRET_KEY"`
	UseSSL          bool   `yaml:"useSSL"`
	BucketName      string `yaml:"bucketName"`
	Location        string `yaml:"location"`
}

// RabbitMQConfig RabbitMQ配置结构，URL 为空则不发布事件
type RabbitMQConfig struct {
	URL                string `yaml:"url" env:"RABBITMQ_URL"`
	Exchange           string `yaml:"exchange"`
	AnalyzedRoutingKey string `yaml:"analyzed_routing_key"`
	MatchedRoutingKey  string `yaml:"matched_routing_key"`
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"OTEL_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `yaml:"service_name" env:"OTEL_SERVICE_NAME"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// MetricsConfig Prometheus 配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error
	Format       string `yaml:"format" env:"LOG_FORMAT"`
	TimeFormat   string `yaml:"time_format"`
	ReportCaller bool   `yaml:"report_caller"`
}

// LoadConfig 从文件加载配置
// 文件不存在时使用默认配置，之后依次应用 .env 和环境变量覆盖
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("解析配置文件失败: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
			// 允许零配置启动
		default:
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	// .env 不存在时忽略
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("解析环境变量失败: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// DefaultConfig 返回全部默认值
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Model.MockWhenUnconfigured = true
	cfg.Metrics.Enabled = true
	cfg.Cache.FallbackMaxEntries = 10000
	return cfg
}

// applyDefaults 填充未设置的字段
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8000"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 20
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	if c.Model.Provider == "" {
		c.Model.Provider = "aliyun"
	}
	if c.Model.APIURL == "" {
		c.Model.APIURL = DefaultDashScopeURL
	}
	if c.Model.TextModel == "" {
		c.Model.TextModel = "qwen-turbo"
	}
	if c.Model.VisionModel == "" {
		c.Model.VisionModel = "qwen-vl-max"
	}
	if c.Model.Timeout <= 0 {
		c.Model.Timeout = 60 * time.Second
	}
	if c.Model.MaxRetries < 0 {
		c.Model.MaxRetries = 0
	}

	if c.Extractor.TextLimit <= 0 {
		c.Extractor.TextLimit = 3000
	}
	if c.Extractor.JobLimit <= 0 {
		c.Extractor.JobLimit = 1000
	}
	if c.Extractor.DPI <= 0 {
		c.Extractor.DPI = 200
	}
	if c.Extractor.MaxPages <= 0 {
		c.Extractor.MaxPages = 4
	}
	if c.Extractor.Timeout <= 0 {
		c.Extractor.Timeout = 30 * time.Second
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize <= 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.DialTimeout <= 0 {
		c.Redis.DialTimeout = 2 * time.Second
	}
	if c.Redis.ReadTimeout <= 0 {
		c.Redis.ReadTimeout = 2 * time.Second
	}
	if c.Redis.WriteTimeout <= 0 {
		c.Redis.WriteTimeout = 2 * time.Second
	}

	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 86400 * time.Second
	}
	if c.Cache.FallbackMaxEntries < 0 {
		c.Cache.FallbackMaxEntries = 0
	}
	if c.Cache.ReprobeMaxInterval <= 0 {
		c.Cache.ReprobeMaxInterval = 5 * time.Minute
	}

	if c.MinIO.BucketName == "" {
		c.MinIO.BucketName = "resume-originals"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "resume.analyzer.events"
	}
	if c.RabbitMQ.AnalyzedRoutingKey == "" {
		c.RabbitMQ.AnalyzedRoutingKey = "resume.analyzed"
	}
	if c.RabbitMQ.MatchedRoutingKey == "" {
		c.RabbitMQ.MatchedRoutingKey = "resume.matched"
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "resume-analyzer"
	}
	if c.Tracing.SampleRatio <= 0 {
		c.Tracing.SampleRatio = 1.0
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "json"
	}
}

// ModelConfigured 是否配置了当前provider的API Key
func (c *Config) ModelConfigured() bool {
	if c.Model.Provider == "gemini" {
		return c.Model.GeminiAPIKey != ""
	}
	return c.Model.APIKey != ""
}

// CreateSampleConfig 将默认配置写入指定路径，已存在时不覆盖
func CreateSampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("配置文件已存在: %s", path)
	}
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("序列化默认配置失败: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
