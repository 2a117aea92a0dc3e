package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/mcp/protocol"
	"github.com/pathlab-mcp-server/internal/reports"
	"github.com/pathlab-mcp-server/internal/service"
)

// Dependencies are the services the report tools run against.
type Dependencies struct {
	Flags     *service.FlagService
	Reports   reports.Store
	Cache     ResultCache // optional
	CacheTTL  time.Duration
	LabID     string
	ExportDir string
}

// ToolRegistry manages registration of all MCP tools
type ToolRegistry struct {
	logger *logrus.Logger
	router *protocol.MessageRouter
	deps   Dependencies
}

// NewToolRegistry creates a new tool registry
func NewToolRegistry(logger *logrus.Logger, router *protocol.MessageRouter, deps Dependencies) *ToolRegistry {
	return &ToolRegistry{
		logger: logger,
		router: router,
		deps:   deps,
	}
}

// RegisterAllTools registers the classification and report tools with the router
func (tr *ToolRegistry) RegisterAllTools() error {
	if tr.deps.Flags == nil {
		return fmt.Errorf("flag service is required")
	}
	if tr.deps.Reports == nil {
		return fmt.Errorf("report store is required")
	}
	tr.logger.Info("Registering lab report tools")

	d := tr.deps
	handlers := []protocol.ToolHandler{
		NewClassifyResultTool(tr.logger, d.Flags, d.Cache, d.CacheTTL),
		NewFlagReportTool(tr.logger, d.Flags),
		NewSaveReportTool(tr.logger, d.Flags, d.Reports, d.Cache, d.LabID),
		NewGetReportTool(tr.logger, d.Reports, d.Cache, d.CacheTTL),
		NewListReportsTool(tr.logger, d.Reports, d.Cache, d.CacheTTL),
		NewExportReportsTool(tr.logger, d.Reports, d.ExportDir),
		NewImportReportsTool(tr.logger, d.Reports, d.Cache),
	}
	for _, h := range handlers {
		name := h.GetToolInfo().Name
		tr.router.RegisterToolHandler(name, h)
		tr.logger.WithField("tool", name).Debug("Registered tool")
	}

	tr.logger.WithField("tool_count", len(handlers)).Info("Successfully registered lab report tools")
	return nil
}

// ExecuteTool runs a tool call through the router.
func (tr *ToolRegistry) ExecuteTool(ctx context.Context, req *protocol.JSONRPC2Request) *protocol.JSONRPC2Response {
	return tr.router.CallTool(ctx, req)
}

// GetRegisteredToolsInfo returns information about all registered tools
func (tr *ToolRegistry) GetRegisteredToolsInfo() []protocol.ToolInfo {
	return tr.router.ListTools()
}

// ValidateAllTools checks that every registered tool is fully described.
func (tr *ToolRegistry) ValidateAllTools() error {
	tr.logger.Info("Validating all registered tools")

	for name, handler := range tr.router.GetToolHandlers() {
		toolInfo := handler.GetToolInfo()
		if toolInfo.Name == "" {
			return fmt.Errorf("tool %q is missing a name", name)
		}
		if toolInfo.Name != name {
			return fmt.Errorf("tool registered as %q reports name %q", name, toolInfo.Name)
		}
		if toolInfo.Description == "" {
			tr.logger.WithField("tool", name).Warn("Tool missing description")
		}
		if toolInfo.InputSchema == nil {
			return fmt.Errorf("tool %q is missing an input schema", name)
		}
	}

	tr.logger.Info("Tool validation completed")
	return nil
}
