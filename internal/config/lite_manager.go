package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pro-outcomes-server/internal/domain"
)

// LiteManager adapts a LiteConfig to the domain.ConfigManager interface so
// the HTTP server can run without Postgres or Redis configuration.
type LiteManager struct {
	lite   *LiteConfig
	config *domain.Config
}

// NewLiteManager creates a configuration manager backed by a LiteConfig.
func NewLiteManager(lite *LiteConfig) *LiteManager {
	return &LiteManager{
		lite: lite,
		config: &domain.Config{
			Server: domain.ServerConfig{
				Host:           "0.0.0.0",
				Port:           lite.HTTPPort,
				ReadTimeout:    30 * time.Second,
				WriteTimeout:   30 * time.Second,
				IdleTimeout:    120 * time.Second,
				RateLimitRPS:   10,
				RateLimitBurst: 20,
			},
			Cache: domain.CacheConfig{
				DefaultTTL:     lite.CacheTTL,
				MemoryMaxItems: lite.CacheMaxItems,
			},
			Notification: domain.NotificationConfig{
				WebhookURL: lite.WebhookURL,
				Timeout:    10 * time.Second,
				RateLimit:  20,
				RetryCount: 3,
			},
			Logging: domain.LoggingConfig{
				Level:  lite.LogLevel,
				Format: lite.LogFormat,
				Output: "stdout",
			},
		},
	}
}

// GetConfig returns the complete configuration.
func (m *LiteManager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns an empty database configuration; the lite
// deployment has no Postgres.
func (m *LiteManager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration.
func (m *LiteManager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload re-reads the environment-based configuration.
func (m *LiteManager) Reload() error {
	*m = *NewLiteManager(LoadLiteConfig())
	return nil
}

// Validate validates the configuration.
func (m *LiteManager) Validate() error {
	if m.config.Server.Port <= 0 || m.config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", m.config.Server.Port)
	}
	if m.lite.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(m.config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", m.config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns an empty string; there is no database.
func (m *LiteManager) GetDatabaseConnectionString() string {
	return ""
}

// GetRedisConnectionString returns an empty string; there is no Redis.
func (m *LiteManager) GetRedisConnectionString() string {
	return ""
}

// IsProduction returns true if running in production mode.
func (m *LiteManager) IsProduction() bool {
	return false
}

// IsDevelopment returns true if running in development mode.
func (m *LiteManager) IsDevelopment() bool {
	return true
}
