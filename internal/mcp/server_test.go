package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathlab-mcp-server/internal/config"
	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/mcp/protocol"
	"github.com/pathlab-mcp-server/internal/mcp/tools"
	"github.com/pathlab-mcp-server/internal/reports"
	"github.com/pathlab-mcp-server/internal/service"
)

func newTestLiteServer(t *testing.T) *LiteServer {
	t.Helper()
	logger, _ := test.NewNullLogger()

	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.LabID = "lab-mcp"

	server, err := NewLiteServer(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	return server
}

func TestNewLiteServer(t *testing.T) {
	server := newTestLiteServer(t)

	assert.NotNil(t, server.core.mcpServer)
	assert.NotNil(t, server.GetReportStore())
	assert.NotNil(t, server.GetCache())
	assert.Nil(t, server.redisClient)
	assert.Len(t, server.ToolRegistry().GetRegisteredToolsInfo(), 7)
}

func TestNewLiteServer_UnreachableRedisFallsBack(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.RedisURL = "redis://127.0.0.1:1/0"

	server, err := NewLiteServer(cfg, WithLogger(logger))
	require.NoError(t, err)
	defer server.Close()

	assert.Nil(t, server.redisClient)
	assert.True(t, server.GetCache().IsHealthy(context.Background()))
}

func TestNewLiteServer_Options(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()

	store, err := reports.NewSQLiteStore(filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})

	server, err := NewLiteServer(cfg, WithLogger(logger), WithReportStore(store), WithRedisClient(client))
	require.NoError(t, err)
	defer server.Close()

	assert.Same(t, store, server.GetReportStore())
	assert.Same(t, client, server.redisClient)
}

func TestMCPToolHandler_Success(t *testing.T) {
	server := newTestLiteServer(t)
	ctx := context.Background()
	require.NoError(t, server.GetReportStore().Save(ctx, &domain.Report{
		LabID: "lab-mcp", TestName: "CBC", Status: domain.ReportDraft,
	}))

	handler := NewMCPToolHandler(server.ToolRegistry(), tools.ToolListReports, server.logger)
	result, err := handler(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	require.Len(t, result.Content, 1)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var list tools.ListReportsResult
	require.NoError(t, json.Unmarshal([]byte(text.Text), &list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "CBC", list.Reports[0].TestName)
}

func TestMCPToolHandler_ErrorResult(t *testing.T) {
	server := newTestLiteServer(t)

	handler := NewMCPToolHandler(server.ToolRegistry(), tools.ToolGetReport, server.logger)
	result, err := handler(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.IsError)

	text := result.Content[0].(*mcp.TextContent).Text
	assert.Contains(t, text, "Error: ")
	assert.Contains(t, text, "missing required parameters")
}

func TestToolSchema(t *testing.T) {
	schema, err := toolSchema(protocol.ToolInfo{
		Name: "classify_result",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"value": map[string]interface{}{"type": "string"},
			},
			"required": []string{"value"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "object", schema.Type)
	assert.Contains(t, schema.Properties, "value")
	assert.Equal(t, []string{"value"}, schema.Required)

	empty, err := toolSchema(protocol.ToolInfo{Name: "bare"})
	require.NoError(t, err)
	assert.Equal(t, "object", empty.Type)
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	logger, _ := test.NewNullLogger()

	_, err := NewServer(domain.MCPConfig{}, tools.Dependencies{}, 0, logger)
	assert.Error(t, err)
}

func TestNewServer_RateLimitedTools(t *testing.T) {
	lite := newTestLiteServer(t)
	logger, _ := test.NewNullLogger()

	deps := tools.Dependencies{
		Flags:   mustFlags(t),
		Reports: lite.GetReportStore(),
	}
	server, err := NewServer(domain.MCPConfig{ServerName: "pathlab-test"}, deps, 0.001, logger)
	require.NoError(t, err)

	handler := NewMCPToolHandler(server.ToolRegistry(), tools.ToolListReports, logger)
	first, err := handler(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, first.IsError)

	second, err := handler(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, second.IsError)
	assert.Contains(t, second.Content[0].(*mcp.TextContent).Text, "Rate limit exceeded")
}

func mustFlags(t *testing.T) *service.FlagService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	flags, err := service.NewFlagService(domain.ClassifierConfig{}, logger)
	require.NoError(t, err)
	return flags
}
