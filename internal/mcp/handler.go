// Package mcp 实现 Model Context Protocol 的 JSON-RPC 方法，把搜索能力暴露为工具
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/luoluoluo22/baidu-search-api/internal/config"
	"github.com/luoluoluo22/baidu-search-api/internal/engine"
)

const (
	MCPVersion = "2024-11-05"
)

// Searcher 执行搜索，*engine.Manager 实现了它
type Searcher interface {
	Search(ctx context.Context, req engine.SearchRequest) ([]engine.SearchResult, error)
	GetEngineNames() []string
}

// Handler MCP 请求处理器
type Handler struct {
	config   *config.Config
	searcher Searcher
	log      *zap.Logger
}

// NewHandler 创建 MCP 处理器
func NewHandler(cfg *config.Config, searcher Searcher, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		config:   cfg,
		searcher: searcher,
		log:      log.Named("mcp"),
	}
}

// HandleRequest 处理 MCP JSON-RPC 请求。通知类请求返回的响应应被丢弃。
func (h *Handler) HandleRequest(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	h.log.Debug("📥 MCP request", zap.String("method", req.Method), zap.Any("id", req.ID))

	var result any
	var rpcErr *RPCError

	if req.JSONRPC != "2.0" || req.Method == "" {
		rpcErr = &RPCError{Code: CodeInvalidRequest, Message: "invalid request: jsonrpc must be \"2.0\" and method is required"}
		h.log.Warn("❌ MCP error", zap.Int("code", rpcErr.Code), zap.String("error", rpcErr.Message))
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}

	switch req.Method {
	case "initialize":
		result = h.handleInitialize()
	case "notifications/initialized", "notifications/cancelled":
		return JSONRPCResponse{}
	case "ping":
		result = struct{}{}
	case "tools/list":
		result = ListToolsResult{Tools: GetTools(h.config)}
	case "tools/call":
		result, rpcErr = h.handleToolsCall(ctx, req.Params)
	case "resources/list":
		result = ListResourcesResult{Resources: []any{}}
	case "prompts/list":
		result = ListPromptsResult{Prompts: []any{}}
	default:
		rpcErr = &RPCError{Code: CodeMethodNotFound, Message: "unknown method: " + req.Method}
	}

	if rpcErr != nil {
		h.log.Warn("❌ MCP error", zap.String("method", req.Method), zap.Int("code", rpcErr.Code), zap.String("error", rpcErr.Message))
		return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

// handleInitialize 处理初始化请求
func (h *Handler) handleInitialize() InitializeResult {
	return InitializeResult{
		ProtocolVersion: MCPVersion,
		Capabilities: Capabilities{
			Tools: ToolCapability{ListChanged: false},
		},
		ServerInfo: ServerInfo{
			Name:    h.config.MCP.ServerName,
			Version: h.config.MCP.ServerVersion,
		},
	}
}

// handleToolsCall 工具执行失败放在结果的 IsError 中，只有参数错误才返回 RPC 错误
func (h *Handler) handleToolsCall(ctx context.Context, raw json.RawMessage) (*CallToolResult, *RPCError) {
	var params CallToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid params: " + err.Error()}
	}

	h.log.Info("🔧 Tool call", zap.String("tool", params.Name), zap.ByteString("arguments", params.Arguments))

	if params.Name != h.config.MCP.SearchTool {
		return textResult("Unknown tool: "+params.Name, true), nil
	}

	var args searchArgs
	if len(params.Arguments) > 0 {
		if err := json.Unmarshal(params.Arguments, &args); err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid arguments: " + err.Error()}
		}
	}
	return h.handleSearch(ctx, args), nil
}

// handleSearch 执行搜索并把结果格式化为 JSON 文本
func (h *Handler) handleSearch(ctx context.Context, args searchArgs) *CallToolResult {
	if args.Query == "" {
		return textResult("query is required", true)
	}

	results, err := h.searcher.Search(ctx, engine.SearchRequest{
		Query:   args.Query,
		Limit:   args.Limit,
		Page:    args.Page,
		Engines: args.Engines,
	})
	if err != nil {
		return textResult(fmt.Sprintf("Search failed: %v", err), true)
	}

	resultJSON, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return textResult(fmt.Sprintf("Failed to format results: %v", err), true)
	}
	return textResult(string(resultJSON), false)
}
