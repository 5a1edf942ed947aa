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

// StudyConfigRepository handles persistence of versioned study configuration:
// instrument definitions and safety rule sets. Definitions are stored as
// JSONB documents; a new version is a new row, existing rows are never
// updated in place.
type StudyConfigRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewStudyConfigRepository creates a new study configuration repository
func NewStudyConfigRepository(db *pgxpool.Pool, logger *logrus.Logger) *StudyConfigRepository {
	return &StudyConfigRepository{
		db:  db,
		log: logger,
	}
}

// SaveInstrument inserts a new instrument version for a study
func (r *StudyConfigRepository) SaveInstrument(ctx context.Context, studyID string, instrument *domain.Instrument) error {
	if err := instrument.Validate(); err != nil {
		return fmt.Errorf("validating instrument: %w", err)
	}

	definition, err := json.Marshal(instrument)
	if err != nil {
		return fmt.Errorf("encoding instrument definition: %w", err)
	}

	query := `
		INSERT INTO instruments (
			study_id, instrument_id, version, name, scoring_method, definition
		) VALUES (
			$1, $2, $3, $4, $5, $6
		)`

	_, err = r.db.Exec(ctx, query,
		studyID,
		instrument.ID,
		instrument.Version,
		instrument.Name,
		string(instrument.Method),
		definition,
	)

	if err != nil {
		r.log.WithFields(logrus.Fields{
			"study_id":      studyID,
			"instrument_id": instrument.ID,
			"version":       instrument.Version,
			"error":         err,
		}).Error("Failed to save instrument")
		return fmt.Errorf("saving instrument: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"study_id":      studyID,
		"instrument_id": instrument.ID,
		"version":       instrument.Version,
		"questions":     len(instrument.Questions),
	}).Info("Instrument saved successfully")

	return nil
}

// Instrument retrieves the latest version of an instrument for a study
func (r *StudyConfigRepository) Instrument(ctx context.Context, studyID, instrumentID string) (*domain.Instrument, error) {
	query := `
		SELECT definition
		FROM instruments
		WHERE study_id = $1 AND instrument_id = $2
		ORDER BY version DESC
		LIMIT 1`

	var definition []byte
	err := r.db.QueryRow(ctx, query, studyID, instrumentID).Scan(&definition)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("instrument %s not found: %w", instrumentID, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"study_id":      studyID,
			"instrument_id": instrumentID,
			"error":         err,
		}).Error("Failed to get instrument")
		return nil, fmt.Errorf("getting instrument: %w", err)
	}

	var instrument domain.Instrument
	if err := json.Unmarshal(definition, &instrument); err != nil {
		return nil, fmt.Errorf("decoding instrument definition: %w", err)
	}

	return &instrument, nil
}

// InstrumentVersion retrieves a specific instrument version for a study
func (r *StudyConfigRepository) InstrumentVersion(ctx context.Context, studyID, instrumentID string, version int) (*domain.Instrument, error) {
	query := `
		SELECT definition
		FROM instruments
		WHERE study_id = $1 AND instrument_id = $2 AND version = $3`

	var definition []byte
	err := r.db.QueryRow(ctx, query, studyID, instrumentID, version).Scan(&definition)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("instrument %s version %d not found: %w", instrumentID, version, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting instrument version: %w", err)
	}

	var instrument domain.Instrument
	if err := json.Unmarshal(definition, &instrument); err != nil {
		return nil, fmt.Errorf("decoding instrument definition: %w", err)
	}

	return &instrument, nil
}

// SaveSafetyRules inserts a new safety rule set version for a study
func (r *StudyConfigRepository) SaveSafetyRules(ctx context.Context, rules *domain.SafetyRuleSet) error {
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("validating safety rule set: %w", err)
	}

	definition, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encoding safety rule set: %w", err)
	}

	query := `
		INSERT INTO safety_rule_sets (study_id, version, definition)
		VALUES ($1, $2, $3)`

	_, err = r.db.Exec(ctx, query, rules.StudyID, rules.Version, definition)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"study_id": rules.StudyID,
			"version":  rules.Version,
			"error":    err,
		}).Error("Failed to save safety rule set")
		return fmt.Errorf("saving safety rule set: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"study_id":   rules.StudyID,
		"version":    rules.Version,
		"pro_alerts": len(rules.PROAlerts),
		"lab_rules":  len(rules.LabRules),
	}).Info("Safety rule set saved successfully")

	return nil
}

// SafetyRules retrieves the latest safety rule set version for a study
func (r *StudyConfigRepository) SafetyRules(ctx context.Context, studyID string) (*domain.SafetyRuleSet, error) {
	query := `
		SELECT definition
		FROM safety_rule_sets
		WHERE study_id = $1
		ORDER BY version DESC
		LIMIT 1`

	var definition []byte
	err := r.db.QueryRow(ctx, query, studyID).Scan(&definition)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("safety rules for study %s not found: %w", studyID, domain.ErrNotFound)
		}
		r.log.WithFields(logrus.Fields{
			"study_id": studyID,
			"error":    err,
		}).Error("Failed to get safety rule set")
		return nil, fmt.Errorf("getting safety rule set: %w", err)
	}

	var rules domain.SafetyRuleSet
	if err := json.Unmarshal(definition, &rules); err != nil {
		return nil, fmt.Errorf("decoding safety rule set: %w", err)
	}

	return &rules, nil
}
