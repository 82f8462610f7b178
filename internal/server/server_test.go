package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luoluoluo22/baidu-search-api/internal/config"
	"github.com/luoluoluo22/baidu-search-api/internal/engine"
)

type stubSearcher struct {
	results []engine.SearchResult
	err     error
	last    engine.SearchRequest
}

func (s *stubSearcher) Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchResult, error) {
	s.last = req
	return s.results, s.err
}

func (s *stubSearcher) GetEngineNames() []string { return []string{"baidu", "zhihu"} }

func serve(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestSearchSuccess(t *testing.T) {
	searcher := &stubSearcher{results: []engine.SearchResult{
		{Title: "Go", URL: "https://www.zhihu.com/question/1/answer/2", Author: "gopher", Source: "zhihu", Engine: "zhihu"},
	}}
	s := New(config.DefaultConfig(), searcher, nil)

	rec, body := serve(t, s, http.MethodGet, "/search?q=golang&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, "golang", body["query"])
	assert.Equal(t, "zhihu", body["engine"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	assert.Equal(t, engine.SearchRequest{Query: "golang", Limit: 5, Page: 1, Engines: []string{"zhihu"}}, searcher.last)
}

func TestSearchEmptyResults(t *testing.T) {
	s := New(config.DefaultConfig(), &stubSearcher{}, nil)

	rec, body := serve(t, s, http.MethodGet, "/search?q=nothing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, body["data"])
	assert.Equal(t, float64(0), body["total"])
}

func TestSearchValidation(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Search.AllowedEngines = []string{"zhihu"}
	s := New(cfg, &stubSearcher{}, nil)

	tests := []struct {
		target  string
		message string
	}{
		{"/search", "请提供搜索关键词"},
		{"/search?q=go&engine=baidu", "不支持的搜索引擎: baidu"},
		{"/search?q=go&engine=google", "不支持的搜索引擎: google"},
		{"/search?q=go&limit=0", "limit 必须是正整数"},
		{"/search?q=go&page=abc", "page 必须是正整数"},
	}
	for _, tt := range tests {
		rec, body := serve(t, s, http.MethodGet, tt.target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.target)
		assert.Equal(t, "error", body["status"], tt.target)
		assert.Equal(t, tt.message, body["message"], tt.target)
	}
}

func TestSearchFailure(t *testing.T) {
	s := New(config.DefaultConfig(), &stubSearcher{err: errors.New("chrome not found")}, nil)

	rec, body := serve(t, s, http.MethodGet, "/search?q=golang", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "搜索失败: chrome not found", body["message"])
}

func TestSearchPreflight(t *testing.T) {
	s := New(config.DefaultConfig(), &stubSearcher{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/search?q=go", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	plain, _ := serve(t, s, http.MethodOptions, "/search", "")
	assert.Equal(t, http.StatusOK, plain.Code)
}

func TestRequestIDPropagates(t *testing.T) {
	s := New(config.DefaultConfig(), &stubSearcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	cfg := config.DefaultConfig()
	s := New(cfg, &stubSearcher{}, nil)

	rec, body := serve(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, cfg.MCP.ServerName, body["service"])
	assert.Equal(t, []any{"baidu", "zhihu"}, body["engines"])
}

func TestMCPSession(t *testing.T) {
	s := New(config.DefaultConfig(), &stubSearcher{}, nil)

	rec, body := serve(t, s, http.MethodPost, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	sessionID := rec.Header().Get("mcp-session-id")
	require.NotEmpty(t, sessionID)
	assert.Contains(t, body, "result")

	rec, _ = serve(t, s, http.MethodPost, "/mcp", `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set("mcp-session-id", sessionID)
	del := httptest.NewRecorder()
	s.Handler().ServeHTTP(del, req)
	assert.Equal(t, http.StatusOK, del.Code)

	del = httptest.NewRecorder()
	s.Handler().ServeHTTP(del, req)
	assert.Equal(t, http.StatusNotFound, del.Code)
}

func TestMCPParseError(t *testing.T) {
	s := New(config.DefaultConfig(), &stubSearcher{}, nil)

	rec, body := serve(t, s, http.MethodPost, "/mcp", `{not json`)
	require.Equal(t, http.StatusOK, rec.Code)
	rpcErr, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(-32700), rpcErr["code"])
}
