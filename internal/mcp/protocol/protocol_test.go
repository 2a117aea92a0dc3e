package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
)

type echoTool struct {
	name  string
	calls int
}

func (e *echoTool) HandleTool(ctx context.Context, req *JSONRPC2Request) *JSONRPC2Response {
	e.calls++
	return &JSONRPC2Response{Result: map[string]interface{}{"params": req.Params}}
}

func (e *echoTool) GetToolInfo() ToolInfo {
	return ToolInfo{
		Name:        e.name,
		Description: "echoes params",
		InputSchema: map[string]interface{}{"type": "object"},
	}
}

func (e *echoTool) ValidateParams(params interface{}) error { return nil }

type nilTool struct{ echoTool }

func (n *nilTool) HandleTool(ctx context.Context, req *JSONRPC2Request) *JSONRPC2Response {
	return nil
}

// TestMessageRouter tests message routing
func TestMessageRouter(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewMessageRouter(logger)
	tool := &echoTool{name: "echo"}
	router.RegisterToolHandler("echo", tool)

	ctx := context.Background()
	response := router.HandleRequest(ctx, &JSONRPC2Request{JSONRPC: "2.0", Method: "echo", Params: map[string]interface{}{"a": 1}, ID: 7})
	if response.Error != nil {
		t.Fatalf("direct call failed: %v", response.Error)
	}
	if response.ID != 7 || response.JSONRPC != "2.0" {
		t.Errorf("response envelope not stamped: %+v", response)
	}

	response = router.HandleRequest(ctx, &JSONRPC2Request{JSONRPC: "2.0", Method: "unknown_method", ID: 1})
	if response.Error == nil || response.Error.Code != MethodNotFound {
		t.Error("Unknown method should return method not found error")
	}

	if _, ok := router.GetToolHandler("echo"); !ok {
		t.Error("echo should be registered")
	}
	if tool.calls != 1 {
		t.Errorf("expected 1 call, got %d", tool.calls)
	}
}

func TestMessageRouter_ToolsList(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewMessageRouter(logger)
	router.RegisterToolHandler("zeta", &echoTool{name: "zeta"})
	router.RegisterToolHandler("alpha", &echoTool{name: "alpha"})

	response := router.HandleRequest(context.Background(), &JSONRPC2Request{JSONRPC: "2.0", Method: "tools/list", ID: 1})
	if response.Error != nil {
		t.Fatalf("tools/list failed: %v", response.Error)
	}
	tools := response.Result.(map[string]interface{})["tools"].([]ToolInfo)
	if len(tools) != 2 || tools[0].Name != "alpha" || tools[1].Name != "zeta" {
		t.Errorf("tools not sorted by name: %+v", tools)
	}
}

func TestMessageRouter_ToolsCall(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewMessageRouter(logger)
	router.RegisterToolHandler("echo", &echoTool{name: "echo"})

	var params interface{}
	if err := json.Unmarshal([]byte(`{"name":"echo","arguments":{"value":"12.5"}}`), &params); err != nil {
		t.Fatal(err)
	}
	response := router.HandleRequest(context.Background(), &JSONRPC2Request{JSONRPC: "2.0", Method: "tools/call", Params: params, ID: "x"})
	if response.Error != nil {
		t.Fatalf("tools/call failed: %v", response.Error)
	}
	raw := response.Result.(map[string]interface{})["params"].(json.RawMessage)
	if string(raw) != `{"value":"12.5"}` {
		t.Errorf("arguments not forwarded, got %s", raw)
	}

	response = router.HandleRequest(context.Background(), &JSONRPC2Request{JSONRPC: "2.0", Method: "tools/call", Params: map[string]interface{}{}, ID: "y"})
	if response.Error == nil || response.Error.Code != InvalidParams {
		t.Error("tools/call without a name should be invalid params")
	}
}

func TestMessageRouter_InvalidVersion(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewMessageRouter(logger)

	response := router.HandleRequest(context.Background(), &JSONRPC2Request{JSONRPC: "1.0", Method: "tools/list", ID: 1})
	if response.Error == nil || response.Error.Code != InvalidRequest {
		t.Error("wrong JSON-RPC version should be rejected")
	}
}

func TestMessageRouter_NilResponse(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewMessageRouter(logger)
	router.RegisterToolHandler("broken", &nilTool{echoTool{name: "broken"}})

	response := router.CallTool(context.Background(), &JSONRPC2Request{Method: "broken", ID: 3})
	if response.Error == nil || response.Error.Code != InternalError {
		t.Error("nil tool response should become an internal error")
	}
}

func TestMessageRouter_RateLimit(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewMessageRouter(logger)
	router.RegisterToolHandler("echo", &echoTool{name: "echo"})
	router.SetRateLimit(0.001, 2)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if resp := router.CallTool(ctx, &JSONRPC2Request{Method: "echo", ID: i}); resp.Error != nil {
			t.Fatalf("call %d within burst failed: %v", i, resp.Error)
		}
	}
	resp := router.CallTool(ctx, &JSONRPC2Request{Method: "echo", ID: 3})
	if resp.Error == nil || resp.Error.Code != MCPRateLimited {
		t.Error("call beyond burst should be rate limited")
	}

	router.SetRateLimit(0, 0)
	if resp := router.CallTool(ctx, &JSONRPC2Request{Method: "echo", ID: 4}); resp.Error != nil {
		t.Errorf("limit removal should allow calls, got %v", resp.Error)
	}
	if router.GetStats()["rate_limited"].(bool) {
		t.Error("stats should report no limiter")
	}
}

func TestRPCError_Error(t *testing.T) {
	err := &RPCError{Code: InvalidParams, Message: "Invalid params", Data: "value is required"}
	want := fmt.Sprintf("Invalid params (code %d): value is required", InvalidParams)
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if (&RPCError{Code: InternalError, Message: "boom"}).Error() != "boom (code -32603)" {
		t.Error("error without data formatted incorrectly")
	}
}

// TestErrorCodes tests JSON-RPC error code constants
func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected int
	}{
		{"ParseError", ParseError, -32700},
		{"InvalidRequest", InvalidRequest, -32600},
		{"MethodNotFound", MethodNotFound, -32601},
		{"InvalidParams", InvalidParams, -32602},
		{"InternalError", InternalError, -32603},
		{"MCPRateLimited", MCPRateLimited, -32001},
		{"MCPToolError", MCPToolError, -32003},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("Expected %s to be %d, got %d", tt.name, tt.expected, tt.code)
			}
		})
	}
}
