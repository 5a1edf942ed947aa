package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/alerting"
	"github.com/pro-outcomes-server/internal/api"
	"github.com/pro-outcomes-server/internal/config"
	"github.com/pro-outcomes-server/internal/database"
	"github.com/pro-outcomes-server/internal/domain"
	"github.com/pro-outcomes-server/internal/repository"
	"github.com/pro-outcomes-server/internal/review"
	"github.com/pro-outcomes-server/internal/service"
	"github.com/pro-outcomes-server/internal/studyconfig"
	"github.com/pro-outcomes-server/pkg/notify"
)

const migrationsPath = "migrations"

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting PRO outcomes server")

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Database connection and migrations
	db, err := database.NewConnection(ctx, database.ConfigFrom(configManager.GetDatabaseConfig()), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	migrator, err := database.NewMigrationRunner(configManager.GetDatabaseConfig(), migrationsPath, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create migration runner")
	}
	if err := migrator.Up(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to apply database migrations")
	}
	migrator.Close()

	// Repositories
	configRepo := repository.NewStudyConfigRepository(db.Pool, logger)
	submissionRepo := repository.NewSubmissionRepository(db.Pool, logger)

	// Study configuration cache. Redis is optional; connection failures
	// degrade to memory-only caching rather than blocking startup.
	var redisClient *redis.Client
	if cfg.Cache.RedisURL != "" {
		client, err := studyconfig.NewRedisClient(cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to Redis, continuing with memory-only cache")
		} else {
			redisClient = client
			defer client.Close()
		}
	}

	configProvider, err := studyconfig.NewCachedProvider(configRepo, redisClient, studyconfig.ProviderConfig{
		MaxMemoryItems: cfg.Cache.MemoryMaxItems,
		MemoryTTL:      cfg.Cache.DefaultTTL,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create study configuration provider")
	}

	// Alert delivery: webhook (optional), live feed, review queue.
	var webhook domain.AlertNotifier
	if cfg.Notification.WebhookURL != "" {
		webhook, err = notify.NewWebhookNotifier(notify.WebhookConfig{
			URL:        cfg.Notification.WebhookURL,
			Timeout:    cfg.Notification.Timeout,
			RateLimit:  cfg.Notification.RateLimit,
			RetryCount: cfg.Notification.RetryCount,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create webhook notifier")
		}
	} else {
		logger.Warn("No alert webhook configured, alerts will only reach the review queue and live feed")
	}

	reviewStore, err := review.NewPostgresStoreFromURL(database.URLFrom(configManager.GetDatabaseConfig()))
	if err != nil {
		logger.WithError(err).Fatal("Failed to create alert review store")
	}
	defer reviewStore.Close()

	feed := alerting.NewFeed(logger)
	dispatcher := alerting.NewDispatcher(webhook, feed, reviewStore, logger)

	// Submission pipeline
	orchestrator := service.NewSubmissionService(logger, submissionRepo, dispatcher)

	server := api.NewServer(configManager, api.Dependencies{
		Orchestrator: orchestrator,
		Configs:      configProvider,
		Submissions:  submissionRepo,
		Reviews:      reviewStore,
		Feed:         feed,
	}, logger)

	// Start server
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

