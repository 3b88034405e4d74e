package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"resume-analyzer/internal/api/handler"
	"resume-analyzer/internal/api/router"
	"resume-analyzer/internal/metrics"
	"resume-analyzer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopAnalyzer struct{}

func (noopAnalyzer) Analyze(ctx context.Context, filename string, data []byte) (*types.AnalyzeResponse, error) {
	return &types.AnalyzeResponse{}, nil
}

func (noopAnalyzer) Match(ctx context.Context, resumeID, jobDescription string) (*types.MatchResponse, error) {
	return &types.MatchResponse{ResumeID: resumeID, MatchResult: &types.MatchResult{Score: 1}}, nil
}

func newEngine(opts router.Options) *server.Hertz {
	h := server.New()
	router.RegisterRoutes(h, handler.NewResumeHandler(noopAnalyzer{}, nil), opts)
	return h
}

func matchRequest(h *server.Hertz, headers ...ut.Header) *ut.ResponseRecorder {
	body := bytes.NewBufferString(`{"resume_id":"abcdef","job_description":"Go"}`)
	headers = append(headers, ut.Header{Key: "Content-Type", Value: "application/json"})
	return ut.PerformRequest(h.Engine, http.MethodPost, "/api/resume/match",
		&ut.Body{Body: body, Len: body.Len()}, headers...)
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	h := newEngine(router.Options{})

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, resp.Header().Get(router.HeaderRequestID))

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil,
		ut.Header{Key: router.HeaderRequestID, Value: "req-123"})
	assert.Equal(t, "req-123", resp.Header().Get(router.HeaderRequestID))
}

func TestAPIKeyRequiredWhenConfigured(t *testing.T) {
	h := newEngine(router.Options{APIKeys: []string{"secret"}})

	resp := matchRequest(h)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	var body types.ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, router.CodeUnauthenticated, body.Error.Code)
	assert.NotEmpty(t, body.RequestID)

	resp = matchRequest(h, ut.Header{Key: router.HeaderAPIKey, Value: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = matchRequest(h, ut.Header{Key: router.HeaderAPIKey, Value: "secret"})
	assert.Equal(t, http.StatusOK, resp.Code)

	// 运维接口不需要 key
	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestNoAuthWhenKeysEmpty(t *testing.T) {
	h := newEngine(router.Options{APIKeys: []string{""}})

	resp := matchRequest(h)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.InitMetrics()
	h := newEngine(router.Options{MetricsPath: "/metrics"})

	ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil)
	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, resp.Body.String(), "resume_http_requests_total")
	assert.Contains(t, resp.Body.String(), `route="/health"`)
}

func TestRecoveryReturnsStructuredError(t *testing.T) {
	h := server.New()
	h.Use(router.Recovery(), router.RequestID())
	h.GET("/panic", func(ctx context.Context, c *app.RequestContext) {
		panic("boom")
	})

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/panic", nil)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	var body types.ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, handler.CodeInternal, body.Error.Code)
}
