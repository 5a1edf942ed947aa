// Package review provides storage for clinician review of triggered safety
// alerts. Every coordinator alert stays open until a reviewer records a
// disposition, so the review trail survives restarts and can be exported
// for study audits.
package review

import (
	"context"
	"io"
	"time"
)

// Status represents the review lifecycle of a triggered alert.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcknowledged Status = "acknowledged"
	StatusEscalated    Status = "escalated"
	StatusResolved     Status = "resolved"
)

// AlertReview represents a clinician's review of one triggered safety alert.
type AlertReview struct {
	ID           int64     `json:"id,omitempty"`
	SubmissionID string    `json:"submission_id"`          // Submission that triggered the alert
	RuleID       string    `json:"rule_id"`                // Safety rule that fired
	StudyID      string    `json:"study_id,omitempty"`     // Clinical context
	Urgency      string    `json:"urgency"`                // Urgency at the time of firing
	Status       Status    `json:"status"`                 // Review lifecycle state
	Reviewer     string    `json:"reviewer,omitempty"`     // Who reviewed
	Disposition  string    `json:"disposition,omitempty"`  // Action taken
	Notes        string    `json:"notes,omitempty"`        // Reviewer notes
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store defines the interface for alert review storage operations.
type Store interface {
	// Save stores or updates the review for a triggered alert.
	// If a review for the same submission+rule exists, it will be updated.
	Save(ctx context.Context, review *AlertReview) error

	// Get retrieves the review for one triggered alert.
	Get(ctx context.Context, submissionID, ruleID string) (*AlertReview, error)

	// List returns all reviews with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]*AlertReview, error)

	// ListByStatus returns reviews in a given lifecycle state with pagination.
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*AlertReview, error)

	// Count returns the total number of reviews.
	Count(ctx context.Context) (int64, error)

	// Delete removes a review by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports all reviews to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports reviews from a JSON reader.
	// Returns the number of imported and skipped entries.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Close closes the store and releases resources.
	Close() error
}

// ReviewExport represents the JSON export format.
type ReviewExport struct {
	Version    string         `json:"version"`
	ExportedAt time.Time      `json:"exported_at"`
	Count      int            `json:"count"`
	Reviews    []*AlertReview `json:"reviews"`
}
