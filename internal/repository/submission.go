package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// SubmissionRepository persists submissions and their terminal processing
// results. Responses and result payloads are stored as JSONB.
type SubmissionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *pgxpool.Pool, logger *logrus.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:  db,
		log: logger,
	}
}

// SaveSubmission inserts a submission as received, before processing
func (r *SubmissionRepository) SaveSubmission(ctx context.Context, submission *domain.Submission) error {
	responses, err := json.Marshal(submission.Responses)
	if err != nil {
		return fmt.Errorf("encoding responses: %w", err)
	}

	query := `
		INSERT INTO submissions (
			id, study_id, participant_id, instrument_id, responses, submitted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)
		ON CONFLICT (id) DO NOTHING`

	_, err = r.db.Exec(ctx, query,
		submission.ID,
		submission.StudyID,
		submission.ParticipantID,
		submission.InstrumentID,
		responses,
		submission.SubmittedAt,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": submission.ID,
			"study_id":      submission.StudyID,
			"error":         err,
		}).Error("Failed to save submission")
		return fmt.Errorf("saving submission: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": submission.ID,
		"study_id":      submission.StudyID,
		"instrument_id": submission.InstrumentID,
		"responses":     len(submission.Responses),
	}).Info("Submission saved successfully")

	return nil
}

// SaveResult upserts the terminal result for a submission
func (r *SubmissionRepository) SaveResult(ctx context.Context, result *domain.SubmissionResult) error {
	failures, err := json.Marshal(result.Failures)
	if err != nil {
		return fmt.Errorf("encoding failures: %w", err)
	}

	var score, safety []byte
	if result.Score != nil {
		if score, err = json.Marshal(result.Score); err != nil {
			return fmt.Errorf("encoding score: %w", err)
		}
	}
	if result.Safety != nil {
		if safety, err = json.Marshal(result.Safety); err != nil {
			return fmt.Errorf("encoding safety result: %w", err)
		}
	}

	query := `
		INSERT INTO submission_results (submission_id, state, failures, score, safety)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (submission_id) DO UPDATE
		SET state = EXCLUDED.state,
			failures = EXCLUDED.failures,
			score = EXCLUDED.score,
			safety = EXCLUDED.safety`

	_, err = r.db.Exec(ctx, query,
		result.SubmissionID,
		string(result.State),
		failures,
		score,
		safety,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": result.SubmissionID,
			"state":         result.State,
			"error":         err,
		}).Error("Failed to save submission result")
		return fmt.Errorf("saving submission result: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"submission_id": result.SubmissionID,
		"state":         result.State,
	}).Info("Submission result saved successfully")

	return nil
}

// GetResult retrieves the terminal result for a submission
func (r *SubmissionRepository) GetResult(ctx context.Context, submissionID string) (*domain.SubmissionResult, error) {
	query := `
		SELECT submission_id, state, failures, score, safety
		FROM submission_results
		WHERE submission_id = $1`

	var (
		result   domain.SubmissionResult
		state    string
		failures []byte
		score    []byte
		safety   []byte
	)

	err := r.db.QueryRow(ctx, query, submissionID).Scan(
		&result.SubmissionID,
		&state,
		&failures,
		&score,
		&safety,
	)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("result for submission %s not found: %w", submissionID, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"submission_id": submissionID,
			"error":         err,
		}).Error("Failed to get submission result")
		return nil, fmt.Errorf("getting submission result: %w", err)
	}

	result.State = domain.SubmissionState(state)
	if len(failures) > 0 {
		if err := json.Unmarshal(failures, &result.Failures); err != nil {
			return nil, fmt.Errorf("decoding failures: %w", err)
		}
	}
	if len(score) > 0 {
		if err := json.Unmarshal(score, &result.Score); err != nil {
			return nil, fmt.Errorf("decoding score: %w", err)
		}
	}
	if len(safety) > 0 {
		if err := json.Unmarshal(safety, &result.Safety); err != nil {
			return nil, fmt.Errorf("decoding safety result: %w", err)
		}
	}

	return &result, nil
}

// ListResultsByState retrieves result summaries in a given state, newest
// first, with pagination. Used by the review queue to page through rejected
// or completed submissions.
func (r *SubmissionRepository) ListResultsByState(ctx context.Context, state domain.SubmissionState, limit, offset int) ([]*domain.SubmissionResult, error) {
	query := `
		SELECT submission_id, state, failures, score, safety
		FROM submission_results
		WHERE state = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, string(state), limit, offset)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"state": state,
			"error": err,
		}).Error("Failed to list submission results")
		return nil, fmt.Errorf("listing submission results: %w", err)
	}
	defer rows.Close()

	var results []*domain.SubmissionResult
	for rows.Next() {
		var (
			result   domain.SubmissionResult
			rowState string
			failures []byte
			score    []byte
			safety   []byte
		)

		if err := rows.Scan(&result.SubmissionID, &rowState, &failures, &score, &safety); err != nil {
			return nil, fmt.Errorf("scanning submission result row: %w", err)
		}

		result.State = domain.SubmissionState(rowState)
		if len(failures) > 0 {
			if err := json.Unmarshal(failures, &result.Failures); err != nil {
				return nil, fmt.Errorf("decoding failures: %w", err)
			}
		}
		if len(score) > 0 {
			if err := json.Unmarshal(score, &result.Score); err != nil {
				return nil, fmt.Errorf("decoding score: %w", err)
			}
		}
		if len(safety) > 0 {
			if err := json.Unmarshal(safety, &result.Safety); err != nil {
				return nil, fmt.Errorf("decoding safety result: %w", err)
			}
		}

		results = append(results, &result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating submission result rows: %w", err)
	}

	return results, nil
}
