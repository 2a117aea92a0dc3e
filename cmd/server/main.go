package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pathlab-mcp-server/internal/api"
	"github.com/pathlab-mcp-server/internal/cache"
	"github.com/pathlab-mcp-server/internal/config"
	"github.com/pathlab-mcp-server/internal/database"
	"github.com/pathlab-mcp-server/internal/domain"
	"github.com/pathlab-mcp-server/internal/events"
	"github.com/pathlab-mcp-server/internal/logging"
	"github.com/pathlab-mcp-server/internal/notify"
	"github.com/pathlab-mcp-server/internal/reports"
	"github.com/pathlab-mcp-server/internal/repository"
	"github.com/pathlab-mcp-server/internal/service"
)

const version = "1.0.0"

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
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Pathlab server stopped")
}

func run(ctx context.Context, cfg *domain.Config, logger *logrus.Logger) error {
	dbConfig := database.ConfigFromDomain(cfg.Database)

	db, err := database.NewConnection(ctx, dbConfig, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateUp(ctx, dbConfig.URL(), cfg.Database.MigrationsPath, logger); err != nil {
		return err
	}

	store, err := reports.NewPostgresStoreFromURL(dbConfig.URL(), cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open report store: %w", err)
	}
	defer store.Close()

	var templateCache service.TemplateCache
	if cfg.Cache.RedisURL != "" {
		redisCache, err := cache.NewRedisTemplateCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, templates will be cached in memory only")
		} else {
			defer redisCache.Close()
			templateCache = redisCache
		}
	}

	templates, err := service.NewTemplateResolver(service.TemplateResolverConfig{
		MemoryCacheTTL: 5 * time.Minute,
		RedisCacheTTL:  cfg.Cache.DefaultTTL,
		MaxMemorySize:  cfg.Cache.TemplateLRUCap,
	}, repository.NewTemplateRepository(db.Pool, logger), templateCache, logger)
	if err != nil {
		return err
	}

	flags, err := service.NewFlagService(cfg.Classifier, logger)
	if err != nil {
		return err
	}

	hub := events.NewHub(cfg.Events.SubscriberBuffer, logger)
	var publisher events.Publisher = hub
	if cfg.Events.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Events, logger)
		if err != nil {
			logger.WithError(err).Warn("RabbitMQ unavailable, events will only reach WebSocket subscribers")
		} else {
			defer amqpPublisher.Close()
			publisher = events.NewFanout(logger,
				events.NamedPublisher{Name: "websocket", Publisher: hub},
				events.NamedPublisher{Name: "amqp", Publisher: amqpPublisher},
			)
		}
	}

	opts := []service.ReportServiceOption{
		service.WithTemplates(templates),
		service.WithEvents(publisher),
	}

	deps := api.Dependencies{
		Flags:     flags,
		Templates: templates,
		Events:    hub,
		Health: map[string]api.HealthCheck{
			"database": db.Health,
		},
		Version: version,
		Logger:  logger,
	}

	if cfg.Notifications.Enabled {
		wa, err := notify.NewWhatsAppClient(ctx, cfg.Notifications.WhatsAppStoreURL, logger)
		if err != nil {
			return fmt.Errorf("failed to open WhatsApp store: %w", err)
		}
		if err := wa.Connect(ctx, nil); err != nil {
			logger.WithError(err).Warn("WhatsApp connect failed, pair the device with labctl whatsapp pair")
		}
		defer wa.Disconnect()

		opts = append(opts, service.WithNotifier(notify.NewReportNotifier(cfg.Notifications, wa, logger)))
		deps.WhatsApp = wa
	} else {
		opts = append(opts, service.WithNotifier(notify.NewReportNotifier(cfg.Notifications, notify.NewLogSender(logger), logger)))
	}

	deps.Reports = service.NewReportService(store, flags, logger, opts...)

	server := api.NewServer(cfg.Server, deps)
	logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"version": version,
	}).Info("Starting Pathlab server")

	err = server.Start(ctx)
	deps.Reports.Wait()
	return err
}

func migrateUp(ctx context.Context, databaseURL, migrationsPath string, logger *logrus.Logger) error {
	runner, err := database.NewMigrationRunner(databaseURL, migrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()
	return runner.Up(ctx)
}
