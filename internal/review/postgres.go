package review

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL review store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL review store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates the review for a triggered alert.
func (s *PostgresStore) Save(ctx context.Context, review *AlertReview) error {
	now := time.Now()
	if review.Status == "" {
		review.Status = StatusPending
	}

	// Use upsert (INSERT ... ON CONFLICT)
	query := `
		INSERT INTO alert_reviews (
			submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (submission_id, rule_id) DO UPDATE SET
			study_id = EXCLUDED.study_id,
			urgency = EXCLUDED.urgency,
			status = EXCLUDED.status,
			reviewer = EXCLUDED.reviewer,
			disposition = EXCLUDED.disposition,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
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
	).Scan(&review.ID, &review.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}

	review.UpdatedAt = now
	return nil
}

// Get retrieves the review for one triggered alert.
func (s *PostgresStore) Get(ctx context.Context, submissionID, ruleID string) (*AlertReview, error) {
	query := `
		SELECT id, submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		FROM alert_reviews
		WHERE submission_id = $1 AND rule_id = $2
		LIMIT 1
	`

	rv := &AlertReview{}
	var status string

	err := s.db.QueryRowContext(ctx, query, submissionID, ruleID).Scan(
		&rv.ID, &rv.SubmissionID, &rv.RuleID, &rv.StudyID,
		&rv.Urgency, &status, &rv.Reviewer,
		&rv.Disposition, &rv.Notes, &rv.CreatedAt, &rv.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	rv.Status = Status(status)
	return rv, nil
}

// List returns all reviews with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*AlertReview, error) {
	query := `
		SELECT id, submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		FROM alert_reviews
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

// ListByStatus returns reviews in a given lifecycle state with pagination.
func (s *PostgresStore) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*AlertReview, error) {
	query := `
		SELECT id, submission_id, rule_id, study_id, urgency, status,
			reviewer, disposition, notes, created_at, updated_at
		FROM alert_reviews
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews by status: %w", err)
	}
	defer rows.Close()

	return collectReviews(rows)
}

func collectReviews(rows *sql.Rows) ([]*AlertReview, error) {
	var result []*AlertReview
	for rows.Next() {
		rv := &AlertReview{}
		var status string

		err := rows.Scan(
			&rv.ID, &rv.SubmissionID, &rv.RuleID, &rv.StudyID,
			&rv.Urgency, &status, &rv.Reviewer,
			&rv.Disposition, &rv.Notes, &rv.CreatedAt, &rv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		rv.Status = Status(status)
		result = append(result, rv)
	}

	return result, rows.Err()
}

// Count returns the total number of reviews.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_reviews").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// Delete removes a review by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM alert_reviews WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	return nil
}

// pgMaxExportLimit is the maximum number of entries to export at once.
const pgMaxExportLimit = 1000000

// ExportJSON exports all reviews to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, pgMaxExportLimit, 0)
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
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
