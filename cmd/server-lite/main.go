// Standalone deployment entrypoint: no Postgres, no Redis. Study
// configuration is read from JSON files in the data directory and alert
// reviews are kept in a local SQLite database.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/alerting"
	"github.com/pro-outcomes-server/internal/api"
	"github.com/pro-outcomes-server/internal/config"
	"github.com/pro-outcomes-server/internal/domain"
	"github.com/pro-outcomes-server/internal/repository"
	"github.com/pro-outcomes-server/internal/review"
	"github.com/pro-outcomes-server/internal/service"
	"github.com/pro-outcomes-server/internal/studyconfig"
	"github.com/pro-outcomes-server/pkg/notify"
)

func main() {
	cfg := config.LoadLiteConfig()
	configManager := config.NewLiteManager(cfg)

	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger := logrus.New()
	if cfg.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	logger.WithFields(logrus.Fields{
		"data_dir": cfg.DataDir,
		"port":     cfg.HTTPPort,
	}).Info("Starting PRO outcomes server (lite)")

	if err := cfg.EnsureDataDir(); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Study configuration: JSON files on disk behind the memory cache tier.
	source := studyconfig.NewFileSource(cfg.DataDir, logger)
	configProvider, err := studyconfig.NewCachedProvider(source, nil, studyconfig.ProviderConfig{
		MaxMemoryItems: cfg.CacheMaxItems,
		MemoryTTL:      cfg.CacheTTL,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create study configuration provider")
	}

	reviewStore, err := review.NewSQLiteStore(cfg.ReviewDBPath())
	if err != nil {
		logger.WithError(err).Fatal("Failed to create alert review store")
	}
	defer reviewStore.Close()

	var webhook domain.AlertNotifier
	if cfg.WebhookURL != "" {
		webhook, err = notify.NewWebhookNotifier(notify.WebhookConfig{URL: cfg.WebhookURL}, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create webhook notifier")
		}
	}

	feed := alerting.NewFeed(logger)
	dispatcher := alerting.NewDispatcher(webhook, feed, reviewStore, logger)

	submissionRepo := repository.NewMemorySubmissionRepository()
	orchestrator := service.NewSubmissionService(logger, submissionRepo, dispatcher)

	server := api.NewServer(configManager, api.Dependencies{
		Orchestrator: orchestrator,
		Configs:      configProvider,
		Submissions:  submissionRepo,
		Reviews:      reviewStore,
		Feed:         feed,
	}, logger)

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}
