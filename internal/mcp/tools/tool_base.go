package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pathlab-mcp-server/internal/mcp/protocol"
)

// ParseParams decodes generic tool parameters into a target struct.
//
// Usage:
//
//	var params MyParams
//	if err := ParseParams(req.Params, &params); err != nil {
//	    return invalidParamsError("Invalid parameters", err.Error())
//	}
func ParseParams(params interface{}, target interface{}) error {
	if params == nil {
		return fmt.Errorf("missing required parameters")
	}

	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	if err := json.Unmarshal(paramsBytes, target); err != nil {
		return fmt.Errorf("failed to parse parameters: %w", err)
	}

	return nil
}

// ResultCache stores serialized tool results keyed by tool name and arguments.
type ResultCache interface {
	Get(ctx context.Context, toolName string, arguments json.RawMessage) (json.RawMessage, bool)
	Set(ctx context.Context, toolName string, arguments, result json.RawMessage, ttl time.Duration) error
	InvalidateByTool(ctx context.Context, toolName string) error
}

func invalidParamsError(msg string, data ...string) *protocol.JSONRPC2Response {
	resp := &protocol.JSONRPC2Response{
		Error: &protocol.RPCError{
			Code:    protocol.InvalidParams,
			Message: msg,
		},
	}
	if len(data) > 0 && data[0] != "" {
		resp.Error.Data = data[0]
	}
	return resp
}

func internalError(msg string, data string) *protocol.JSONRPC2Response {
	return &protocol.JSONRPC2Response{
		Error: &protocol.RPCError{
			Code:    protocol.InternalError,
			Message: msg,
			Data:    data,
		},
	}
}

func toolError(msg string, data string) *protocol.JSONRPC2Response {
	return &protocol.JSONRPC2Response{
		Error: &protocol.RPCError{
			Code:    protocol.MCPToolError,
			Message: msg,
			Data:    data,
		},
	}
}

// cachedResult serves a read-only tool from cache, computing and storing the
// result on a miss. A nil cache always computes.
func cachedResult(ctx context.Context, cache ResultCache, ttl time.Duration, tool string, params interface{},
	compute func() (interface{}, *protocol.JSONRPC2Response)) *protocol.JSONRPC2Response {

	var args json.RawMessage
	if cache != nil {
		if raw, err := json.Marshal(params); err == nil {
			args = raw
			if hit, ok := cache.Get(ctx, tool, args); ok {
				var result interface{}
				if err := json.Unmarshal(hit, &result); err == nil {
					return &protocol.JSONRPC2Response{Result: result}
				}
			}
		}
	}

	result, errResp := compute()
	if errResp != nil {
		return errResp
	}

	if cache != nil && args != nil {
		if raw, err := json.Marshal(result); err == nil {
			_ = cache.Set(ctx, tool, args, raw, ttl)
		}
	}
	return &protocol.JSONRPC2Response{Result: result}
}
