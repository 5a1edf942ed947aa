package studyconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// FileSource loads study configuration from JSON files on disk. It backs the
// standalone deployment, where study definitions are dropped into a data
// directory instead of a database:
//
//	<root>/studies/<studyID>/instruments/<instrumentID>.json
//	<root>/studies/<studyID>/safety_rules.json
type FileSource struct {
	root   string
	logger *logrus.Logger
}

// NewFileSource creates a file-backed study configuration source rooted at
// the given data directory.
func NewFileSource(root string, logger *logrus.Logger) *FileSource {
	return &FileSource{root: root, logger: logger}
}

// Instrument loads an instrument definition from disk.
func (f *FileSource) Instrument(ctx context.Context, studyID, instrumentID string) (*domain.Instrument, error) {
	path := filepath.Join(f.root, "studies", studyID, "instruments", instrumentID+".json")

	instrument := &domain.Instrument{}
	if err := f.load(path, instrument); err != nil {
		return nil, err
	}

	if err := instrument.Validate(); err != nil {
		return nil, fmt.Errorf("invalid instrument definition %s: %w", path, err)
	}

	f.logger.WithFields(logrus.Fields{
		"study_id":      studyID,
		"instrument_id": instrumentID,
		"version":       instrument.Version,
	}).Debug("Loaded instrument from file")

	return instrument, nil
}

// SafetyRules loads a study's safety rule set from disk.
func (f *FileSource) SafetyRules(ctx context.Context, studyID string) (*domain.SafetyRuleSet, error) {
	path := filepath.Join(f.root, "studies", studyID, "safety_rules.json")

	rules := &domain.SafetyRuleSet{}
	if err := f.load(path, rules); err != nil {
		return nil, err
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid safety rule set %s: %w", path, err)
	}

	return rules, nil
}

func (f *FileSource) load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", path, domain.ErrNotFound)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	return nil
}
