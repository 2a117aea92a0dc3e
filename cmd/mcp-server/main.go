package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/config"
	"github.com/pathlab-mcp-server/internal/database"
	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/logging"
	"github.com/pathlab-mcp-server/internal/mcp"
	"github.com/pathlab-mcp-server/internal/mcp/caching"
	"github.com/pathlab-mcp-server/internal/mcp/tools"
	"github.com/pathlab-mcp-server/internal/reports"
	"github.com/pathlab-mcp-server/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	configManager, err := config.NewManager(os.Getenv("PATHLAB_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}
	cfg := configManager.GetConfig()

	// stdout carries the MCP stream
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down MCP server...")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("MCP server failed")
	}
	logger.Info("Pathlab MCP Server stopped")
}

func run(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) error {
	dbConfig := database.ConfigFromDomain(cfg.Database)

	runner, err := database.NewMigrationRunner(dbConfig.URL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	err = runner.Up(ctx)
	runner.Close()
	if err != nil {
		return err
	}

	store, err := reports.NewPostgresStoreFromURL(dbConfig.URL(), cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	var redisClient *redis.Client
	if cfg.MCP.EnableCaching && cfg.Cache.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Invalid Redis URL, tool results will be cached in memory only")
		} else {
			opts.MaxRetries = cfg.Cache.MaxRetries
			opts.PoolSize = cfg.Cache.PoolSize
			redisClient = redis.NewClient(opts)
			defer redisClient.Close()
		}
	}

	toolCache := caching.NewToolResultCache(caching.CacheConfig{
		RedisClient: redisClient,
		DefaultTTL:  cfg.MCP.ToolCacheTTL,
		MaxEntries:  cfg.Classifier.MemoSize,
		Enabled:     cfg.MCP.EnableCaching,
	}, logger)

	flags, err := service.NewFlagService(cfg.Classifier, logger)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(cfg.MCP, tools.Dependencies{
		Flags:     flags,
		Reports:   store,
		Cache:     toolCache,
		CacheTTL:  cfg.MCP.ToolCacheTTL,
		LabID:     cfg.MCP.LabID,
		ExportDir: cfg.MCP.ExportDir,
	}, cfg.MCP.ToolRateLimit, logger)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"server":        cfg.MCP.ServerName,
		"version":       cfg.MCP.ServerVersion,
		"redis_caching": redisClient != nil,
	}).Info("Starting Pathlab MCP Server on stdio")
	return server.Start(ctx)
}
