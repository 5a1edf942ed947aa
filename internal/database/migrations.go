package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// URLFrom builds the URL form of the connection string from the database
// configuration. The migration runner and database/sql consumers need the
// URL form rather than the key=value DSN the pool uses.
func URLFrom(dc *domain.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(dc.Username), url.QueryEscape(dc.Password),
		dc.Host, dc.Port, dc.Database, dc.SSLMode)
}

// MigrationRunner applies the study data schema (instruments, safety rule
// sets, submissions and their results, alert reviews) from versioned SQL
// files.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Entry
}

// NewMigrationRunner creates a migration runner reading .up/.down SQL pairs
// from migrationsPath and applying them to the configured database.
func NewMigrationRunner(dc *domain.DatabaseConfig, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), URLFrom(dc))
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{
		migrate: m,
		log: logger.WithFields(logrus.Fields{
			"database":        dc.Database,
			"migrations_path": migrationsPath,
		}),
	}, nil
}

// Up applies all pending schema migrations.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	mr.log.Info("Applying study data schema migrations")

	if err := mr.migrate.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Info("Study data schema is up to date")
			return nil
		}
		return fmt.Errorf("applying migrations: %w", err)
	}

	mr.logSchemaVersion("Study data schema migrated successfully")
	return nil
}

// Down rolls back the most recent schema migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	mr.log.Info("Rolling back one schema migration")

	if err := mr.migrate.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mr.log.Info("No schema migrations to roll back")
			return nil
		}
		return fmt.Errorf("rolling back migration: %w", err)
	}

	mr.logSchemaVersion("Schema migration rolled back successfully")
	return nil
}

// Version returns the current schema version and whether it is dirty.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Close releases the runner's source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}

func (mr *MigrationRunner) logSchemaVersion(msg string) {
	version, dirty, err := mr.migrate.Version()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read schema version")
		return
	}
	mr.log.WithFields(logrus.Fields{
		"schema_version": version,
		"dirty":          dirty,
	}).Info(msg)
}
