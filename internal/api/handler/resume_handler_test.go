package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"testing"

	"resume-analyzer/internal/agent"
	"resume-analyzer/internal/api/handler"
	"resume-analyzer/internal/processor"
	"resume-analyzer/internal/storage"
	"resume-analyzer/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hexResumeID = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

type stubAnalyzer struct {
	analyzeResp *types.AnalyzeResponse
	matchResp   *types.MatchResponse
	err         error

	gotFilename string
	gotData     []byte
	gotResumeID string
	gotJob      string
}

func (s *stubAnalyzer) Analyze(ctx context.Context, filename string, data []byte) (*types.AnalyzeResponse, error) {
	s.gotFilename, s.gotData = filename, data
	return s.analyzeResp, s.err
}

func (s *stubAnalyzer) Match(ctx context.Context, resumeID, jobDescription string) (*types.MatchResponse, error) {
	s.gotResumeID, s.gotJob = resumeID, jobDescription
	return s.matchResp, s.err
}

type stubCache struct {
	state storage.CacheState
	n     int
}

func (s stubCache) State() storage.CacheState { return s.state }
func (s stubCache) FallbackLen() int          { return s.n }

func newTestEngine(h *handler.ResumeHandler) *server.Hertz {
	e := server.New()
	e.GET("/", handler.HandleRoot)
	e.GET("/health", handler.HandleHealth)
	e.POST("/api/resume/analyze", h.HandleAnalyze)
	e.POST("/api/resume/match", h.HandleMatch)
	e.GET("/api/resume/cache/status", h.HandleCacheStatus)
	return e
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postAnalyze(e *server.Hertz, body *bytes.Buffer, contentType string) *ut.ResponseRecorder {
	return ut.PerformRequest(e.Engine, http.MethodPost, "/api/resume/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
}

func postMatch(e *server.Hertz, payload string) *ut.ResponseRecorder {
	body := bytes.NewBufferString(payload)
	return ut.PerformRequest(e.Engine, http.MethodPost, "/api/resume/match",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func decodeError(t *testing.T, resp *ut.ResponseRecorder) types.ErrorBody {
	t.Helper()
	var body types.ErrorBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestHandleAnalyzePassesUpload(t *testing.T) {
	svc := &stubAnalyzer{analyzeResp: &types.AnalyzeResponse{ResumeID: "abc", Message: "Success"}}
	e := newTestEngine(handler.NewResumeHandler(svc, nil))

	body, ct := multipartBody(t, "file", "cv.pdf", []byte("%PDF-1.4 fake"))
	resp := postAnalyze(e, body, ct)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "cv.pdf", svc.gotFilename)
	assert.Equal(t, []byte("%PDF-1.4 fake"), svc.gotData)

	var got types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "abc", got.ResumeID)
}

func TestHandleAnalyzeMissingFile(t *testing.T) {
	e := newTestEngine(handler.NewResumeHandler(&stubAnalyzer{}, nil))

	body, ct := multipartBody(t, "document", "cv.pdf", []byte("%PDF-1.4"))
	resp := postAnalyze(e, body, ct)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, handler.CodeInvalidArgument, decodeError(t, resp).Error.Code)
}

func TestHandleAnalyzeTooLarge(t *testing.T) {
	svc := &stubAnalyzer{}
	e := newTestEngine(handler.NewResumeHandler(svc, nil, handler.WithMaxUploadBytes(8)))

	body, ct := multipartBody(t, "file", "cv.pdf", bytes.Repeat([]byte("x"), 64))
	resp := postAnalyze(e, body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	assert.Empty(t, svc.gotFilename, "oversized upload must not reach the service")
}

func TestHandleAnalyzeErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unsupported", &processor.ProcessError{Op: "analyze", BaseErr: processor.ErrUnsupportedDocument}, http.StatusBadRequest, handler.CodeInvalidArgument},
		{"extraction", processor.NewExtractionError("abc"), http.StatusBadRequest, handler.CodeExtractionFailed},
		{"render", processor.NewRenderError("abc"), http.StatusBadRequest, handler.CodeExtractionFailed},
		{"model", processor.NewModelError("extract", processor.PhaseExtract, errors.New("timeout")), http.StatusInternalServerError, handler.CodeModelUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, handler.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(handler.NewResumeHandler(&stubAnalyzer{err: tc.err}, nil))
			body, ct := multipartBody(t, "file", "cv.pdf", []byte("%PDF-1.4"))
			resp := postAnalyze(e, body, ct)

			require.Equal(t, tc.status, resp.Code)
			assert.Equal(t, tc.code, decodeError(t, resp).Error.Code)
		})
	}
}

func TestServerErrorsHideDetails(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:443: secret-host unreachable")
	e := newTestEngine(handler.NewResumeHandler(&stubAnalyzer{err: processor.NewModelError("score", processor.PhaseScore, cause)}, nil))

	resp := postMatch(e, `{"resume_id":"`+hexResumeID+`","job_description":"Go"}`)

	require.Equal(t, http.StatusInternalServerError, resp.Code)
	msg := decodeError(t, resp).Error.Message
	assert.NotContains(t, msg, "secret-host")
	assert.Equal(t, "匹配评估阶段模型调用失败", msg)
}

func TestHandleMatchValidation(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"malformed json", `{"resume_id":`},
		{"missing resume id", `{"job_description":"Go developer"}`},
		{"missing job", `{"resume_id":"` + hexResumeID + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubAnalyzer{}
			e := newTestEngine(handler.NewResumeHandler(svc, nil))

			resp := postMatch(e, tc.payload)

			require.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, handler.CodeInvalidArgument, decodeError(t, resp).Error.Code)
			assert.Empty(t, svc.gotResumeID)
		})
	}
}

func TestHandleMatchNotFound(t *testing.T) {
	e := newTestEngine(handler.NewResumeHandler(&stubAnalyzer{err: processor.NewNotFoundError(hexResumeID)}, nil))

	resp := postMatch(e, `{"resume_id":"`+hexResumeID+`","job_description":"Go developer"}`)

	require.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, handler.CodeNotFound, decodeError(t, resp).Error.Code)
}

func TestHandleCacheStatus(t *testing.T) {
	e := newTestEngine(handler.NewResumeHandler(&stubAnalyzer{}, stubCache{state: storage.StateDegraded, n: 3}))

	resp := ut.PerformRequest(e.Engine, http.MethodGet, "/api/resume/cache/status", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "degraded", got["state"])
	assert.EqualValues(t, 3, got["fallback_entries"])
}

func TestHealthAndRoot(t *testing.T) {
	e := newTestEngine(handler.NewResumeHandler(&stubAnalyzer{}, nil))

	resp := ut.PerformRequest(e.Engine, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())

	resp = ut.PerformRequest(e.Engine, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), handler.Banner)
}

type textOnlyExtractor struct{ text string }

func (f textOnlyExtractor) ExtractText(ctx context.Context, data []byte) string { return f.text }
func (f textOnlyExtractor) IsImageBased(ctx context.Context, data []byte) bool  { return false }
func (f textOnlyExtractor) RenderPages(ctx context.Context, data []byte, dpi int) [][]byte {
	return nil
}

// 真实的服务与缓存，模型用 mock，Redis 不可用
func TestAnalyzeThenMatchEndToEnd(t *testing.T) {
	ctx := context.Background()
	cache := storage.NewResultCache(ctx, nil)
	t.Cleanup(cache.Close)

	llm := agent.NewMockChatClientSequential([]agent.MockResponse{
		{Content: `{"basic_info":{"name":"张三","phone":null,"email":"zs@example.com","address":null},"job_intention":"后端开发","work_years":"5年","education_background":"本科","raw_text_summary":"Go 与分布式系统"}`},
		{Content: "```json\n{\"score\": 78, \"skills_match_rate\": \"80%\", \"experience_relevance\": \"高\", \"comment\": \"合适\"}\n```"},
	})
	orch := processor.NewOrchestrator(llm, llm)
	svc := processor.NewResumeService(textOnlyExtractor{text: "张三 Go 工程师"}, orch, cache)
	t.Cleanup(svc.Wait)
	e := newTestEngine(handler.NewResumeHandler(svc, cache))

	body, ct := multipartBody(t, "file", "resume.PDF", []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF"))
	resp := postAnalyze(e, body, ct)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var analyzed types.AnalyzeResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &analyzed))
	require.NotNil(t, analyzed.Data)
	require.NotNil(t, analyzed.Data.BasicInfo.Name)
	assert.Equal(t, "张三", *analyzed.Data.BasicInfo.Name)
	assert.Nil(t, analyzed.Data.BasicInfo.Phone)
	assert.Equal(t, "Success", analyzed.Message)

	resp = postMatch(e, `{"resume_id":"`+analyzed.ResumeID+`","job_description":"  Go 后端  "}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var matched types.MatchResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &matched))
	require.NotNil(t, matched.MatchResult)
	assert.Equal(t, 78, matched.MatchResult.Score)

	// 相同 JD（忽略首尾空白）命中缓存，不再调用模型
	resp = postMatch(e, `{"resume_id":"`+analyzed.ResumeID+`","job_description":"Go 后端"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &matched))
	assert.Equal(t, "Success (Cache Hit)", matched.Message)
	assert.Equal(t, 2, llm.CallCount())

	resp = ut.PerformRequest(e.Engine, http.MethodGet, "/api/resume/cache/status", nil)
	assert.Contains(t, resp.Body.String(), `"degraded"`)
}

// 未知的 resume_id 不论格式都返回 404，且不调用模型
func TestMatchUnknownResumeEndToEnd(t *testing.T) {
	cases := []struct {
		name     string
		resumeID string
	}{
		{"hex id", hexResumeID},
		{"free form id", "nonexistent_resume_id_12345"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cache := storage.NewResultCache(context.Background(), nil)
			t.Cleanup(cache.Close)
			llm := agent.NewMockChatClient(`{"score": 90}`, nil)
			svc := processor.NewResumeService(textOnlyExtractor{}, processor.NewOrchestrator(llm, llm), cache)
			t.Cleanup(svc.Wait)
			e := newTestEngine(handler.NewResumeHandler(svc, cache))

			resp := postMatch(e, `{"resume_id":"`+tc.resumeID+`","job_description":"Go developer"}`)

			require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())
			assert.Equal(t, handler.CodeNotFound, decodeError(t, resp).Error.Code)
			assert.Equal(t, 0, llm.CallCount())
		})
	}
}
