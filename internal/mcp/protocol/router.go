package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MessageRouter routes tool calls to registered handlers.
type MessageRouter struct {
	logger       *logrus.Logger
	toolHandlers map[string]ToolHandler
	limiter      *rate.Limiter
	mu           sync.RWMutex
}

// ToolHandler defines the interface for MCP tool handlers
type ToolHandler interface {
	HandleTool(ctx context.Context, req *JSONRPC2Request) *JSONRPC2Response
	GetToolInfo() ToolInfo
	ValidateParams(params interface{}) error
}

// ToolInfo contains metadata about a tool
type ToolInfo struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// toolCallParams is the params object of a tools/call request.
type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewMessageRouter creates a new message router
func NewMessageRouter(logger *logrus.Logger) *MessageRouter {
	return &MessageRouter{
		logger:       logger,
		toolHandlers: make(map[string]ToolHandler),
	}
}

// SetRateLimit throttles tool calls to perSecond with the given burst.
// A non-positive perSecond removes the limit.
func (mr *MessageRouter) SetRateLimit(perSecond float64, burst int) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	if perSecond <= 0 {
		mr.limiter = nil
		return
	}
	if burst < 1 {
		burst = 1
	}
	mr.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// HandleRequest routes tools/list, tools/call, or a direct tool-name method.
func (mr *MessageRouter) HandleRequest(ctx context.Context, req *JSONRPC2Request) *JSONRPC2Response {
	mr.logger.WithField("method", req.Method).Debug("Routing message")

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, InvalidRequest, "Invalid Request", "JSON-RPC version must be 2.0")
	}

	switch req.Method {
	case "tools/list":
		return &JSONRPC2Response{
			JSONRPC: "2.0",
			Result:  map[string]interface{}{"tools": mr.ListTools()},
			ID:      req.ID,
		}
	case "tools/call":
		var params toolCallParams
		raw, err := json.Marshal(req.Params)
		if err == nil {
			err = json.Unmarshal(raw, &params)
		}
		if err != nil || params.Name == "" {
			return NewErrorResponse(req.ID, InvalidParams, "Invalid params", "tools/call requires a tool name")
		}
		var args interface{}
		if len(params.Arguments) > 0 {
			args = params.Arguments
		}
		return mr.CallTool(ctx, &JSONRPC2Request{JSONRPC: "2.0", Method: params.Name, Params: args, ID: req.ID})
	default:
		return mr.CallTool(ctx, req)
	}
}

// CallTool dispatches req to the handler registered under req.Method.
func (mr *MessageRouter) CallTool(ctx context.Context, req *JSONRPC2Request) *JSONRPC2Response {
	mr.mu.RLock()
	handler, exists := mr.toolHandlers[req.Method]
	limiter := mr.limiter
	mr.mu.RUnlock()

	if !exists {
		return NewErrorResponse(req.ID, MethodNotFound, "Method not found",
			fmt.Sprintf("No handler found for method: %s", req.Method))
	}

	if limiter != nil && !limiter.Allow() {
		mr.logger.WithField("tool", req.Method).Warn("Tool call rate limited")
		return NewErrorResponse(req.ID, MCPRateLimited, "Rate limit exceeded", req.Method)
	}

	response := handler.HandleTool(ctx, req)
	if response == nil {
		return NewErrorResponse(req.ID, InternalError, "Internal error", "tool returned no response")
	}
	response.JSONRPC = "2.0"
	response.ID = req.ID
	return response
}

// RegisterToolHandler registers a tool handler
func (mr *MessageRouter) RegisterToolHandler(name string, handler ToolHandler) {
	mr.mu.Lock()
	defer mr.mu.Unlock()

	mr.toolHandlers[name] = handler
	mr.logger.WithField("tool_name", name).Debug("Registered tool handler")
}

// GetToolHandlers returns all registered tool handlers
func (mr *MessageRouter) GetToolHandlers() map[string]ToolHandler {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	handlers := make(map[string]ToolHandler, len(mr.toolHandlers))
	for name, handler := range mr.toolHandlers {
		handlers[name] = handler
	}
	return handlers
}

// GetToolHandler retrieves a specific tool handler
func (mr *MessageRouter) GetToolHandler(name string) (ToolHandler, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	handler, exists := mr.toolHandlers[name]
	return handler, exists
}

// ListTools returns tool metadata sorted by name.
func (mr *MessageRouter) ListTools() []ToolInfo {
	handlers := mr.GetToolHandlers()
	infos := make([]ToolInfo, 0, len(handlers))
	for _, h := range handlers {
		infos = append(infos, h.GetToolInfo())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// GetStats returns router statistics
func (mr *MessageRouter) GetStats() map[string]interface{} {
	mr.mu.RLock()
	defer mr.mu.RUnlock()

	return map[string]interface{}{
		"registered_tools": len(mr.toolHandlers),
		"rate_limited":     mr.limiter != nil,
	}
}
