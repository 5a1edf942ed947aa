package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/pro-outcomes-server/internal/domain"
)

// MemorySubmissionRepository is an in-memory submission store for the
// standalone deployment, where results only need to survive for the lifetime
// of the process.
type MemorySubmissionRepository struct {
	mu          sync.RWMutex
	submissions map[string]*domain.Submission
	results     map[string]*domain.SubmissionResult
}

// NewMemorySubmissionRepository creates an empty in-memory submission store.
func NewMemorySubmissionRepository() *MemorySubmissionRepository {
	return &MemorySubmissionRepository{
		submissions: make(map[string]*domain.Submission),
		results:     make(map[string]*domain.SubmissionResult),
	}
}

// SaveSubmission records the raw submission. Resubmission of an existing ID
// keeps the first copy, matching the database store's idempotent insert.
func (r *MemorySubmissionRepository) SaveSubmission(ctx context.Context, submission *domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.submissions[submission.ID]; exists {
		return nil
	}
	copied := *submission
	r.submissions[submission.ID] = &copied
	return nil
}

// SaveResult records or replaces the terminal result for a submission.
func (r *MemorySubmissionRepository) SaveResult(ctx context.Context, result *domain.SubmissionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *result
	r.results[result.SubmissionID] = &copied
	return nil
}

// GetResult returns the terminal result for a submission.
func (r *MemorySubmissionRepository) GetResult(ctx context.Context, submissionID string) (*domain.SubmissionResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, ok := r.results[submissionID]
	if !ok {
		return nil, fmt.Errorf("result for submission %s: %w", submissionID, domain.ErrNotFound)
	}
	copied := *result
	return &copied, nil
}
