// Package mcp provides the MCP server implementation.
// This file contains the lightweight server that requires no external databases.
package mcp

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	litecfg "github.com/pathlab-mcp-server/internal/config"
	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/mcp/caching"
	"github.com/pathlab-mcp-server/internal/mcp/tools"
	"github.com/pathlab-mcp-server/internal/reports"
	"github.com/pathlab-mcp-server/internal/service"
)

const (
	serverName    = "pathlab-mcp-server-lite"
	serverVersion = "v0.1.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// Reports live in SQLite; tool results are cached in memory and optionally
// shared through Redis.
type LiteServer struct {
	config      *litecfg.LiteConfig
	core        *Server
	reportStore reports.Store
	cache       *caching.ToolResultCache
	redisClient *redis.Client
	logger      *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithReportStore sets a custom report store.
func WithReportStore(store reports.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.reportStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithRedisClient shares tool results through an existing Redis client
// instead of dialling cfg.RedisURL.
func WithRedisClient(client *redis.Client) LiteServerOption {
	return func(s *LiteServer) error {
		s.redisClient = client
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		server.logger.SetLevel(level)
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if server.reportStore == nil {
		store, err := reports.NewSQLiteStore(cfg.ReportsDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create report store: %w", err)
		}
		server.reportStore = store
	}

	if server.redisClient == nil && cfg.RedisURL != "" {
		server.redisClient = server.dialRedis(cfg.RedisURL)
	}

	server.cache = caching.NewToolResultCache(caching.CacheConfig{
		RedisClient: server.redisClient,
		DefaultTTL:  cfg.CacheTTL,
		MaxEntries:  cfg.CacheMaxItems,
		Enabled:     cfg.CacheTTL > 0,
	}, server.logger)

	flags, err := service.NewFlagService(domain.ClassifierConfig{
		MemoSize:         cfg.CacheMaxItems,
		CriticalEscalate: true,
	}, server.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create flag service: %w", err)
	}

	core, err := NewServer(domain.MCPConfig{
		ServerName:    serverName,
		ServerVersion: serverVersion,
	}, tools.Dependencies{
		Flags:     flags,
		Reports:   server.reportStore,
		Cache:     server.cache,
		CacheTTL:  cfg.CacheTTL,
		LabID:     cfg.LabID,
		ExportDir: cfg.ExportDir(),
	}, cfg.ToolRateLimit, server.logger)
	if err != nil {
		return nil, err
	}
	server.core = core

	server.logger.WithFields(logrus.Fields{
		"data_dir":    cfg.DataDir,
		"redis_cache": server.redisClient != nil,
	}).Info("Lite server initialized successfully")
	return server, nil
}

// dialRedis returns a connected client, or nil when Redis is unreachable so
// the server still runs with its in-memory cache.
func (s *LiteServer) dialRedis(url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		s.logger.WithError(err).Warn("Invalid Redis URL, tool results will be cached in memory only")
		return nil
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		s.logger.WithError(err).Warn("Redis unavailable, tool results will be cached in memory only")
		client.Close()
		return nil
	}
	return client
}

// Start runs the lite MCP server over stdio.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting Pathlab MCP Server (Lite) on stdio...")
	return s.core.Start(ctx)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	var firstErr error
	if s.reportStore != nil {
		if err := s.reportStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close report store")
			firstErr = err
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// GetReportStore returns the report store for external access.
func (s *LiteServer) GetReportStore() reports.Store {
	return s.reportStore
}

// GetCache returns the tool result cache for external access.
func (s *LiteServer) GetCache() *caching.ToolResultCache {
	return s.cache
}

// ToolRegistry returns the registry backing the MCP tools.
func (s *LiteServer) ToolRegistry() *tools.ToolRegistry {
	return s.core.ToolRegistry()
}
