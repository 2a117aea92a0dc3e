package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/mcp/protocol"
	"github.com/pathlab-mcp-server/internal/mcp/tools"
)

// Server exposes the lab report tools over MCP.
type Server struct {
	mcpServer    *mcp.Server
	toolRegistry *tools.ToolRegistry
	logger       *logrus.Logger
}

// NewServer registers the report tools against deps and wraps them in an
// MCP SDK server. rateLimit is tool calls per second; zero disables it.
func NewServer(cfg domain.MCPConfig, deps tools.Dependencies, rateLimit float64, logger *logrus.Logger) (*Server, error) {
	if cfg.ServerName == "" {
		cfg.ServerName = "pathlab-mcp-server"
	}
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "1.0.0"
	}

	router := protocol.NewMessageRouter(logger)
	router.SetRateLimit(rateLimit, int(rateLimit)+1)

	toolRegistry := tools.NewToolRegistry(logger, router, deps)
	if err := toolRegistry.RegisterAllTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	if err := toolRegistry.ValidateAllTools(); err != nil {
		return nil, fmt.Errorf("tool validation failed: %w", err)
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.ServerName,
			Version: cfg.ServerVersion,
		}, nil),
		toolRegistry: toolRegistry,
		logger:       logger,
	}
	if err := s.registerMCPTools(); err != nil {
		return nil, fmt.Errorf("failed to register MCP tools: %w", err)
	}
	return s, nil
}

// registerMCPTools registers tools with the MCP SDK.
func (s *Server) registerMCPTools() error {
	s.logger.Info("Registering tools with MCP SDK...")

	toolsInfo := s.toolRegistry.GetRegisteredToolsInfo()
	for _, toolInfo := range toolsInfo {
		schema, err := toolSchema(toolInfo)
		if err != nil {
			return err
		}
		s.mcpServer.AddTool(&mcp.Tool{
			Name:        toolInfo.Name,
			Description: toolInfo.Description,
			InputSchema: schema,
		}, NewMCPToolHandler(s.toolRegistry, toolInfo.Name, s.logger))

		s.logger.WithField("tool_name", toolInfo.Name).Debug("Registered MCP tool")
	}

	s.logger.WithField("tool_count", len(toolsInfo)).Info("Successfully registered all tools")
	return nil
}

// Start runs the MCP server over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Start(ctx context.Context) error {
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// ToolRegistry returns the registry backing the MCP tools.
func (s *Server) ToolRegistry() *tools.ToolRegistry {
	return s.toolRegistry
}
