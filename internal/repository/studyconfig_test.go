package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pro-outcomes-server/internal/database"
	"github.com/pro-outcomes-server/internal/domain"
)

// generateTestPassword creates a secure random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a default test password if random generation fails
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	ctx := context.Background()

	// Generate secure random password for test database
	testPassword := generateTestPassword()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	// Get connection details
	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	// Create database connection
	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "testdb",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	// Run migrations
	migrationRunner, err := database.NewMigrationRunner(&domain.DatabaseConfig{
		Host:     host,
		Port:     port.Int(),
		Database: "testdb",
		Username: "testuser",
		Password: testPassword,
		SSLMode:  "disable",
	}, "../../migrations", logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}

	if err := migrationRunner.Up(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

func testInstrument(version int) *domain.Instrument {
	questions := make([]domain.Question, 0, 9)
	for i := 1; i <= 9; i++ {
		questions = append(questions, domain.Question{
			ID:       fmt.Sprintf("phq9_q%d", i),
			Text:     fmt.Sprintf("Question %d", i),
			Type:     domain.LikertScale,
			Scorable: true,
			Scale:    &domain.ScaleConstraints{Min: 0, Max: 3},
		})
	}

	return &domain.Instrument{
		ID:        "phq9",
		Name:      "Patient Health Questionnaire-9",
		Version:   version,
		Method:    domain.ScoringSum,
		Questions: questions,
		Range:     domain.ClinicalRange{Min: 0, Max: 27},
	}
}

func TestStudyConfigRepository_InstrumentRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewStudyConfigRepository(db.Pool, logger)

	ctx := context.Background()
	instrument := testInstrument(1)

	if err := repo.SaveInstrument(ctx, "study-001", instrument); err != nil {
		t.Fatalf("Failed to save instrument: %v", err)
	}

	retrieved, err := repo.Instrument(ctx, "study-001", "phq9")
	if err != nil {
		t.Fatalf("Failed to retrieve instrument: %v", err)
	}

	if retrieved.ID != instrument.ID {
		t.Errorf("Expected instrument ID %s, got %s", instrument.ID, retrieved.ID)
	}
	if len(retrieved.Questions) != 9 {
		t.Errorf("Expected 9 questions, got %d", len(retrieved.Questions))
	}
	if retrieved.Range.Max != 27 {
		t.Errorf("Expected clinical range max 27, got %d", retrieved.Range.Max)
	}
}

func TestStudyConfigRepository_LatestVersionWins(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewStudyConfigRepository(db.Pool, logger)

	ctx := context.Background()
	for _, version := range []int{1, 3, 2} {
		if err := repo.SaveInstrument(ctx, "study-001", testInstrument(version)); err != nil {
			t.Fatalf("Failed to save instrument version %d: %v", version, err)
		}
	}

	retrieved, err := repo.Instrument(ctx, "study-001", "phq9")
	if err != nil {
		t.Fatalf("Failed to retrieve instrument: %v", err)
	}
	if retrieved.Version != 3 {
		t.Errorf("Expected latest version 3, got %d", retrieved.Version)
	}

	pinned, err := repo.InstrumentVersion(ctx, "study-001", "phq9", 2)
	if err != nil {
		t.Fatalf("Failed to retrieve pinned version: %v", err)
	}
	if pinned.Version != 2 {
		t.Errorf("Expected pinned version 2, got %d", pinned.Version)
	}
}

func TestStudyConfigRepository_SafetyRulesRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewStudyConfigRepository(db.Pool, logger)

	ctx := context.Background()
	rules := &domain.SafetyRuleSet{
		StudyID: "study-001",
		Version: 1,
		PROAlerts: []domain.PROAlertRule{
			{
				ID:           "self-harm",
				InstrumentID: "phq9",
				Condition:    "item:phq9_q9 > 0",
				AlertType:    domain.CoordinatorAlert,
				Urgency:      domain.UrgencyImmediate,
				Message:      "Self-harm item endorsed",
			},
		},
		LabRules: []domain.LabThresholdRule{
			{
				ID:        "alt-elevation",
				Marker:    "ALT",
				Operator:  domain.OpGreater,
				Value:     100,
				Unit:      "U/L",
				AlertType: domain.CoordinatorAlert,
				Urgency:   domain.Urgency24Hr,
				Action:    "Repeat liver panel",
			},
		},
	}

	if err := repo.SaveSafetyRules(ctx, rules); err != nil {
		t.Fatalf("Failed to save safety rules: %v", err)
	}

	retrieved, err := repo.SafetyRules(ctx, "study-001")
	if err != nil {
		t.Fatalf("Failed to retrieve safety rules: %v", err)
	}

	if len(retrieved.PROAlerts) != 1 || len(retrieved.LabRules) != 1 {
		t.Fatalf("Expected 1 PRO alert and 1 lab rule, got %d and %d",
			len(retrieved.PROAlerts), len(retrieved.LabRules))
	}
	if retrieved.PROAlerts[0].Urgency != domain.UrgencyImmediate {
		t.Errorf("Expected immediate urgency, got %s", retrieved.PROAlerts[0].Urgency)
	}
}

func TestStudyConfigRepository_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewStudyConfigRepository(db.Pool, logger)

	ctx := context.Background()
	_, err := repo.Instrument(ctx, "study-001", "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	_, err = repo.SafetyRules(ctx, "study-without-rules")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSubmissionRepository_ResultRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewSubmissionRepository(db.Pool, logger)

	ctx := context.Background()
	submission := &domain.Submission{
		ID:            uuid.New().String(),
		StudyID:       "study-001",
		ParticipantID: "participant-42",
		InstrumentID:  "phq9",
		Responses: []domain.Response{
			{QuestionID: "phq9_q1", Value: 2.0},
			{QuestionID: "phq9_q9", Value: 0.0},
		},
		SubmittedAt: time.Now().UTC(),
	}

	if err := repo.SaveSubmission(ctx, submission); err != nil {
		t.Fatalf("Failed to save submission: %v", err)
	}

	result := &domain.SubmissionResult{
		SubmissionID: submission.ID,
		State:        domain.StateCompleted,
		Score: &domain.ScoreResult{
			InstrumentID:      "phq9",
			InstrumentVersion: 1,
			Total:             12,
			Raw:               map[string]int{"phq9_q1": 2},
			ScoredAt:          time.Now().UTC(),
		},
		Safety: &domain.SafetyEvaluationResult{
			EvaluatedAt: time.Now().UTC(),
		},
	}

	if err := repo.SaveResult(ctx, result); err != nil {
		t.Fatalf("Failed to save result: %v", err)
	}

	retrieved, err := repo.GetResult(ctx, submission.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve result: %v", err)
	}

	if retrieved.State != domain.StateCompleted {
		t.Errorf("Expected state %s, got %s", domain.StateCompleted, retrieved.State)
	}
	if retrieved.Score == nil || retrieved.Score.Total != 12 {
		t.Errorf("Expected score total 12, got %+v", retrieved.Score)
	}
	if len(retrieved.Failures) != 0 {
		t.Errorf("Expected no failures on completed result, got %d", len(retrieved.Failures))
	}
}

func TestSubmissionRepository_RejectedResult(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewSubmissionRepository(db.Pool, logger)

	ctx := context.Background()
	submission := &domain.Submission{
		ID:            uuid.New().String(),
		StudyID:       "study-001",
		ParticipantID: "participant-42",
		InstrumentID:  "phq9",
		Responses:     []domain.Response{{QuestionID: "phq9_q1", Value: 9.0}},
		SubmittedAt:   time.Now().UTC(),
	}

	if err := repo.SaveSubmission(ctx, submission); err != nil {
		t.Fatalf("Failed to save submission: %v", err)
	}

	result := &domain.SubmissionResult{
		SubmissionID: submission.ID,
		State:        domain.StateRejected,
		Failures: []domain.ValidationFailure{
			{QuestionID: "phq9_q1", Kind: domain.OutOfRange, Message: "value 9 outside scale [0,3]"},
			{QuestionID: "phq9_q2", Kind: domain.MissingRequiredAnswer, Message: "required question not answered"},
		},
	}

	if err := repo.SaveResult(ctx, result); err != nil {
		t.Fatalf("Failed to save rejected result: %v", err)
	}

	retrieved, err := repo.GetResult(ctx, submission.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve rejected result: %v", err)
	}

	if retrieved.State != domain.StateRejected {
		t.Errorf("Expected state %s, got %s", domain.StateRejected, retrieved.State)
	}
	if len(retrieved.Failures) != 2 {
		t.Fatalf("Expected 2 failures, got %d", len(retrieved.Failures))
	}
	if retrieved.Score != nil {
		t.Error("Expected no score on rejected result")
	}

	listed, err := repo.ListResultsByState(ctx, domain.StateRejected, 10, 0)
	if err != nil {
		t.Fatalf("Failed to list rejected results: %v", err)
	}
	if len(listed) != 1 {
		t.Errorf("Expected 1 rejected result, got %d", len(listed))
	}
}
