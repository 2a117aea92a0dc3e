package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/logging"
	"github.com/pathlab-mcp-server/internal/mcp/protocol"
	"github.com/pathlab-mcp-server/internal/mcp/tools"
)

// NewMCPToolHandler bridges MCP SDK tool calls to the internal tool registry.
// Tool failures are reported as error results so the client sees the message.
func NewMCPToolHandler(toolRegistry *tools.ToolRegistry, toolName string, logger *logrus.Logger) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logging.WithCorrelationID(ctx, uuid.NewString())
		log := logging.Entry(ctx, logger).WithField("tool", toolName)
		log.Debug("Handling MCP tool call")

		var params interface{}
		if req != nil && req.Params != nil && len(req.Params.Arguments) > 0 {
			params = req.Params.Arguments
		}

		response := toolRegistry.ExecuteTool(ctx, &protocol.JSONRPC2Request{
			JSONRPC: "2.0",
			Method:  toolName,
			Params:  params,
		})
		if response.Error != nil {
			log.WithFields(logrus.Fields{
				"code":  response.Error.Code,
				"error": response.Error.Message,
			}).Warn("Tool call failed")
			return errorResult(response.Error), nil
		}

		text, err := json.MarshalIndent(response.Result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s result: %w", toolName, err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: string(text)},
			},
		}, nil
	}
}

func errorResult(rpcErr *protocol.RPCError) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + rpcErr.Error()},
		},
	}
}

// toolSchema converts a ToolInfo input schema into the SDK's schema type.
func toolSchema(info protocol.ToolInfo) (*jsonschema.Schema, error) {
	if info.InputSchema == nil {
		return &jsonschema.Schema{Type: "object"}, nil
	}
	raw, err := json.Marshal(info.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", info.Name, err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("invalid schema for %s: %w", info.Name, err)
	}
	return &schema, nil
}
