package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resume_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"route", "method"},
	)

	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_model_requests_total",
			Help: "Total number of model calls by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)
	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resume_model_request_duration_seconds",
			Help:    "Model call duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"phase"},
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_cache_lookups_total",
			Help: "Result cache lookups by kind and result",
		},
		[]string{"kind", "result"},
	)
	CacheDegraded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "resume_cache_degraded",
			Help: "1 when the result cache serves from process memory",
		},
	)

	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resume_extractions_total",
			Help: "Analyzed documents by extraction path",
		},
		[]string{"path"},
	)
	MatchScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resume_match_score",
			Help:    "Distribution of match scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)
)

// ModelRateLimitedTotal 非等待模式下被本地令牌桶拒绝的模型调用
var ModelRateLimitedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "resume_model_rate_limited_total",
		Help: "Model calls rejected by the local token bucket.",
	},
	[]string{"model"},
)

var registerOnce sync.Once

// InitMetrics 注册全部指标，可重复调用
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			ModelRequestsTotal,
			ModelRequestDuration,
			CacheLookupsTotal,
			CacheDegraded,
			ExtractionsTotal,
			MatchScore,
			ModelRateLimitedTotal,
		)
	})
}

// ObserveHTTP 记录一次 HTTP 请求
func ObserveHTTP(route, method, status string, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveModelCall 记录一次模型调用，phase 为 text/vision/score
func ObserveModelCall(phase string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ModelRequestsTotal.WithLabelValues(phase, outcome).Inc()
	ModelRequestDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// CacheHit / CacheMiss kind 为 resume 或 match
func CacheHit(kind string)  { CacheLookupsTotal.WithLabelValues(kind, "hit").Inc() }
func CacheMiss(kind string) { CacheLookupsTotal.WithLabelValues(kind, "miss").Inc() }

// SetCacheDegraded 更新缓存降级状态
func SetCacheDegraded(degraded bool) {
	if degraded {
		CacheDegraded.Set(1)
		return
	}
	CacheDegraded.Set(0)
}

// Extraction path 为 text/vision/mock
func Extraction(path string) { ExtractionsTotal.WithLabelValues(path).Inc() }

// ObserveMatchScore 记录匹配分
func ObserveMatchScore(score int) { MatchScore.Observe(float64(score)) }

// RateLimited 记录一次限流拒绝
func RateLimited(model string) { ModelRateLimitedTotal.WithLabelValues(model).Inc() }
