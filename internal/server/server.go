// Package server 提供搜索 REST 接口、健康检查和 MCP HTTP 端点
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/luoluoluo22/baidu-search-api/internal/config"
	"github.com/luoluoluo22/baidu-search-api/internal/engine"
	"github.com/luoluoluo22/baidu-search-api/internal/mcp"
)

const requestIDHeader = "X-Request-ID"

// Server 搜索 HTTP 服务器
type Server struct {
	config     *config.Config
	searcher   mcp.Searcher
	mcpHandler *mcp.Handler
	log        *zap.Logger
	httpServer *http.Server

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

// Session MCP 会话信息
type Session struct {
	ID        string
	CreatedAt time.Time
}

// SearchResponse /search 的响应信封
type SearchResponse struct {
	Status  string                `json:"status"`
	Message string                `json:"message,omitempty"`
	Data    []engine.SearchResult `json:"data"`
	Total   int                   `json:"total"`
	Query   string                `json:"query,omitempty"`
	Engine  string                `json:"engine,omitempty"`
}

// New 创建新的服务器实例
func New(cfg *config.Config, searcher mcp.Searcher, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		config:     cfg,
		searcher:   searcher,
		mcpHandler: mcp.NewHandler(cfg, searcher, log),
		log:        log.Named("server"),
		sessions:   make(map[string]*Session),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler 返回挂载了所有路由和中间件的 handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/health", s.handleHealth)

	var handler http.Handler = mux
	if s.config.Server.CORS.Enabled {
		c := cors.New(cors.Options{
			AllowedOrigins:       []string{s.config.Server.CORS.Origin},
			AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:       []string{"*"},
			ExposedHeaders:       []string{"mcp-session-id", requestIDHeader},
			AllowCredentials:     true,
			OptionsSuccessStatus: http.StatusOK,
		})
		handler = c.Handler(mux)
	}
	return s.withRequestID(handler)
}

// Start 启动 HTTP 服务器，Shutdown 之后返回 nil
func (s *Server) Start() error {
	addr := s.httpServer.Addr
	s.log.Info("🚀 Starting HTTP server", zap.String("addr", addr))
	s.log.Info("🔍 Search endpoint", zap.String("url", "http://"+addr+"/search"))
	s.log.Info("📡 MCP endpoint", zap.String("url", "http://"+addr+"/mcp"))
	s.log.Info("❤️ Health check", zap.String("url", "http://"+addr+"/health"))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭，等待进行中的请求完成
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("🛑 Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// withRequestID 为每个请求分配 X-Request-ID 并记录访问日志
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("📨 Request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// handleSearch GET /search?q=&engine=&limit=&page=
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	query := q.Get("q")
	engineName := q.Get("engine")
	if engineName == "" {
		engineName = s.config.Search.DefaultEngine
	}

	if query == "" {
		s.writeJSON(w, http.StatusBadRequest, SearchResponse{Status: "error", Message: "请提供搜索关键词", Engine: engineName})
		return
	}
	if !s.config.IsEngineAllowed(engineName) {
		s.writeJSON(w, http.StatusBadRequest, SearchResponse{
			Status:  "error",
			Message: "不支持的搜索引擎: " + engineName,
			Query:   query,
			Engine:  engineName,
		})
		return
	}

	limit, err := positiveInt(q.Get("limit"), s.config.Search.DefaultLimit)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, SearchResponse{Status: "error", Message: "limit 必须是正整数", Query: query, Engine: engineName})
		return
	}
	page, err := positiveInt(q.Get("page"), 1)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, SearchResponse{Status: "error", Message: "page 必须是正整数", Query: query, Engine: engineName})
		return
	}

	results, err := s.searcher.Search(r.Context(), engine.SearchRequest{
		Query:   query,
		Limit:   limit,
		Page:    page,
		Engines: []string{engineName},
	})
	if err != nil {
		s.log.Error("❌ Search API error",
			zap.String("request_id", w.Header().Get(requestIDHeader)),
			zap.String("query", query),
			zap.Error(err),
		)
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrEngineNotAllowed) || errors.Is(err, engine.ErrEmptyQuery) {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, SearchResponse{
			Status:  "error",
			Message: fmt.Sprintf("搜索失败: %v", err),
			Query:   query,
			Engine:  engineName,
		})
		return
	}

	if results == nil {
		results = []engine.SearchResult{}
	}
	s.writeJSON(w, http.StatusOK, SearchResponse{
		Status: "success",
		Data:   results,
		Total:  len(results),
		Query:  query,
		Engine: engineName,
	})
}

// handleMCP 处理 MCP 请求
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleMCPPost(w, r)
	case http.MethodDelete:
		s.handleMCPDelete(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMCPPost 处理 MCP POST 请求
func (s *Server) handleMCPPost(w http.ResponseWriter, r *http.Request) {
	var req mcp.JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusOK, mcp.JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &mcp.RPCError{Code: mcp.CodeParseError, Message: "Parse error: " + err.Error()},
		})
		return
	}

	sessionID := r.Header.Get("mcp-session-id")
	if req.Method == "initialize" && sessionID == "" {
		sessionID = s.createSession()
		w.Header().Set("mcp-session-id", sessionID)
	}

	resp := s.mcpHandler.HandleRequest(r.Context(), req)
	if req.IsNotification() {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleMCPDelete 关闭会话
func (s *Server) handleMCPDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("mcp-session-id")
	if sessionID == "" {
		http.Error(w, "Missing session ID", http.StatusBadRequest)
		return
	}

	s.sessionsMu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.sessionsMu.Unlock()

	if !ok {
		http.Error(w, "Invalid session ID", http.StatusNotFound)
		return
	}
	s.log.Info("🗑️ Deleted session", zap.String("session", sessionID))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) createSession() string {
	id := uuid.NewString()
	s.sessionsMu.Lock()
	s.sessions[id] = &Session{ID: id, CreatedAt: time.Now()}
	s.sessionsMu.Unlock()
	s.log.Info("📝 Created new session", zap.String("session", id))
	return id
}

// handleHealth 健康检查端点
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": s.config.MCP.ServerName,
		"version": s.config.MCP.ServerVersion,
		"engines": s.searcher.GetEngineNames(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("❌ Failed to encode response", zap.Error(err))
	}
}

// positiveInt 空串返回默认值
func positiveInt(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid positive integer %q", raw)
	}
	return n, nil
}
