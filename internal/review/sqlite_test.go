package review

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *SQLiteStore {
	tmpDir := t.TempDir()
	store, err := NewSQLiteStore(filepath.Join(tmpDir, "reviews.db"))
	require.NoError(t, err)
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	// Create temp directory
	tmpDir, err := os.MkdirTemp("", "review-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	// Act
	store, err := NewSQLiteStore(dbPath)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	// Verify database file was created
	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_Save(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	review := &AlertReview{
		SubmissionID: "sub-001",
		RuleID:       "self-harm",
		StudyID:      "study-001",
		Urgency:      "immediate",
		Status:       StatusPending,
	}

	// Act
	err := store.Save(ctx, review)

	// Assert
	require.NoError(t, err)
	assert.NotZero(t, review.ID, "ID should be assigned")
	assert.False(t, review.CreatedAt.IsZero(), "CreatedAt should be set")
	assert.False(t, review.UpdatedAt.IsZero(), "UpdatedAt should be set")
}

func TestSQLiteStore_Save_Update(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Save initial review
	review := &AlertReview{
		SubmissionID: "sub-001",
		RuleID:       "self-harm",
		StudyID:      "study-001",
		Urgency:      "immediate",
	}
	err := store.Save(ctx, review)
	require.NoError(t, err)
	originalID := review.ID

	// Update with same submission + rule
	review.Status = StatusAcknowledged
	review.Reviewer = "dr.adams"
	review.Disposition = "Participant contacted, safety plan in place"

	err = store.Save(ctx, review)
	require.NoError(t, err)

	// Assert - should update, not create new
	assert.Equal(t, originalID, review.ID, "ID should not change on update")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "Should still have one review")

	retrieved, err := store.Get(ctx, "sub-001", "self-harm")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, StatusAcknowledged, retrieved.Status)
	assert.Equal(t, "dr.adams", retrieved.Reviewer)
}

func TestSQLiteStore_Get_NotFound(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	retrieved, err := store.Get(context.Background(), "missing", "rule")
	require.NoError(t, err)
	assert.Nil(t, retrieved, "Missing review should return nil, not error")
}

func TestSQLiteStore_Save_DefaultsToPending(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	review := &AlertReview{
		SubmissionID: "sub-002",
		RuleID:       "alt-elevation",
		Urgency:      "24hr",
	}

	require.NoError(t, store.Save(ctx, review))

	retrieved, err := store.Get(ctx, "sub-002", "alt-elevation")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, StatusPending, retrieved.Status)
}

func TestSQLiteStore_ListByStatus(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	reviews := []*AlertReview{
		{SubmissionID: "sub-001", RuleID: "self-harm", Urgency: "immediate", Status: StatusPending},
		{SubmissionID: "sub-002", RuleID: "self-harm", Urgency: "immediate", Status: StatusResolved},
		{SubmissionID: "sub-003", RuleID: "severity-high", Urgency: "routine", Status: StatusPending},
	}
	for _, rv := range reviews {
		require.NoError(t, store.Save(ctx, rv))
	}

	pending, err := store.ListByStatus(ctx, StatusPending, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
	for _, rv := range pending {
		assert.Equal(t, StatusPending, rv.Status)
	}

	resolved, err := store.ListByStatus(ctx, StatusResolved, 10, 0)
	require.NoError(t, err)
	assert.Len(t, resolved, 1)
	assert.Equal(t, "sub-002", resolved[0].SubmissionID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	review := &AlertReview{
		SubmissionID: "sub-001",
		RuleID:       "self-harm",
		Urgency:      "immediate",
	}
	require.NoError(t, store.Save(ctx, review))

	require.NoError(t, store.Delete(ctx, review.ID))

	retrieved, err := store.Get(ctx, "sub-001", "self-harm")
	require.NoError(t, err)
	assert.Nil(t, retrieved)
}

func TestSQLiteStore_ExportImportRoundTrip(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	reviews := []*AlertReview{
		{SubmissionID: "sub-001", RuleID: "self-harm", Urgency: "immediate", Status: StatusAcknowledged, Reviewer: "dr.adams"},
		{SubmissionID: "sub-002", RuleID: "alt-elevation", Urgency: "24hr", Status: StatusPending},
	}
	for _, rv := range reviews {
		require.NoError(t, store.Save(ctx, rv))
	}

	// Export
	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	// Import into a fresh store
	other := createTestStore(t)
	defer other.Close()

	imported, skipped, err := other.ImportJSON(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Equal(t, 0, skipped)

	count, err := other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Re-importing the same export skips everything
	var again bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &again))
	imported, skipped, err = other.ImportJSON(ctx, &again)
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 2, skipped)
}
