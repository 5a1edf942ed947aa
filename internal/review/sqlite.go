package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite review store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	// Create schema
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanReview scans a row into an AlertReview struct.
func scanReview(s scanner) (*AlertReview, error) {
	rv := &AlertReview{}
	var status string

	err := s.Scan(
		&rv.ID, &rv.SubmissionID, &rv.RuleID, &rv.StudyID,
		&rv.Urgency, &status, &rv.Reviewer,
		&rv.Disposition, &rv.Notes, &rv.CreatedAt, &rv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rv.Status = Status(status)
	return rv, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS alert_reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		submission_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		study_id TEXT DEFAULT '',
		urgency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reviewer TEXT DEFAULT '',
		disposition TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(submission_id, rule_id)
	);

	CREATE INDEX IF NOT EXISTS idx_alert_reviews_submission ON alert_reviews(submission_id);
	CREATE INDEX IF NOT EXISTS idx_alert_reviews_status ON alert_reviews(status);
	CREATE INDEX IF NOT EXISTS idx_alert_reviews_created_at ON alert_reviews(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates the review for a triggered alert.
func (s *SQLiteStore) Save(ctx context.Context, review *AlertReview) error {
	now := time.Now()
	if review.Status == "" {
		review.Status = StatusPending
	}

	// Check if exists
	var existingID int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM alert_reviews WHERE submission_id = ? AND rule_id = ?",
		review.SubmissionID, review.RuleID,
	).Scan(&existingID)

	if err == nil {
		// Update existing
		review.ID = existingID
		review.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE alert_reviews SET
				study_id = ?,
				urgency = ?,
				status = ?,
				reviewer = ?,
				disposition = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			review.StudyID,
			review.Urgency,
			string(review.Status),
			review.Reviewer,
			review.Disposition,
			review.Notes,
			now,
			existingID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Insert new
	review.CreatedAt = now
	review.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_reviews (
			submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		review.SubmissionID,
		review.RuleID,
		review.StudyID,
		review.Urgency,
		string(review.Status),
		review.Reviewer,
		review.Disposition,
		review.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	review.ID = id

	return nil
}

// Get retrieves the review for one triggered alert.
func (s *SQLiteStore) Get(ctx context.Context, submissionID, ruleID string) (*AlertReview, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		FROM alert_reviews
		WHERE submission_id = ? AND rule_id = ?
		LIMIT 1
	`, submissionID, ruleID)

	rv, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rv, nil
}

// List returns all reviews with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*AlertReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		FROM alert_reviews
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*AlertReview
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rv)
	}
	return result, rows.Err()
}

// ListByStatus returns reviews in a given lifecycle state with pagination.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*AlertReview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		FROM alert_reviews
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*AlertReview
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rv)
	}
	return result, rows.Err()
}

// Count returns the total number of reviews.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_reviews").Scan(&count)
	return count, err
}

// Delete removes a review by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM alert_reviews WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all reviews to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list reviews: %w", err)
	}

	export := &ReviewExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Reviews:    all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports reviews from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export ReviewExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, rv := range export.Reviews {
		// Check if exists
		existing, err := s.Get(ctx, rv.SubmissionID, rv.RuleID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Import
		if err := s.Save(ctx, rv); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
