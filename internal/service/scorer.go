package service

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// ScorerService reduces a validated response set into a score result using
// the instrument's declared algorithm. All accumulation is exact integer
// arithmetic; a mean aggregation performs one final division so no
// floating-point rounding can move a total across a clinical cutoff.
//
// Score assumes ValidateAll reported no failures. Any remaining gap in the
// scorable set indicates an upstream validation bug and is reported as an
// internal consistency error, never a silent zero.
type ScorerService struct {
	logger *logrus.Logger
}

// NewScorer creates a new instrument scorer.
func NewScorer(logger *logrus.Logger) *ScorerService {
	return &ScorerService{logger: logger}
}

// Score computes the total, subscales, and per-item contributions for one
// validated submission.
func (s *ScorerService) Score(instrument *domain.Instrument, responses []domain.Response) (*domain.ScoreResult, error) {
	byID := make(map[string]*domain.Response, len(responses))
	for i := range responses {
		if _, seen := byID[responses[i].QuestionID]; !seen {
			byID[responses[i].QuestionID] = &responses[i]
		}
	}

	raw := make(map[string]int)
	for i := range instrument.Questions {
		q := &instrument.Questions[i]
		if !q.Scorable {
			continue
		}

		resp, ok := byID[q.ID]
		if !ok || resp.IsEmpty() {
			if q.Optional {
				// A skipped optional item contributes nothing.
				continue
			}
			return nil, domain.NewInternalConsistencyError(
				domain.CodeIncompleteScorableSet,
				fmt.Sprintf("scorable question %q has no validated response", q.ID),
				fmt.Sprintf("instrument %s v%d", instrument.ID, instrument.Version),
			)
		}

		contribution, err := s.scorableValue(q, resp)
		if err != nil {
			return nil, err
		}
		raw[q.ID] = contribution
	}

	total, err := s.aggregate(instrument.Method, instrument.ScorableQuestionIDs(), raw)
	if err != nil {
		return nil, err
	}

	if total < float64(instrument.Range.Min) || total > float64(instrument.Range.Max) {
		return nil, domain.NewInternalConsistencyError(
			domain.CodeTotalOutOfRange,
			fmt.Sprintf("total %v outside documented range [%d,%d]",
				total, instrument.Range.Min, instrument.Range.Max),
			fmt.Sprintf("instrument %s v%d", instrument.ID, instrument.Version),
		)
	}

	subscales, err := s.computeSubscales(instrument, raw)
	if err != nil {
		return nil, err
	}

	result := &domain.ScoreResult{
		InstrumentID:      instrument.ID,
		InstrumentVersion: instrument.Version,
		Total:             total,
		Subscales:         subscales,
		Raw:               raw,
		ScoredAt:          time.Now().UTC(),
	}

	if s.logger != nil {
		s.logger.WithFields(result.LogFields()).Info("Instrument scored")
	}

	return result, nil
}

// scorableValue extracts the normalized integer contribution of one answered
// question, applying reverse scoring where declared.
func (s *ScorerService) scorableValue(q *domain.Question, resp *domain.Response) (int, error) {
	var value int

	switch q.Type {
	case domain.SingleChoice, domain.YesNo:
		selected, ok := resp.AsString()
		if !ok {
			return 0, inconsistentAnswer(q, "expected option value")
		}
		opt, ok := q.OptionByValue(selected)
		if !ok {
			return 0, inconsistentAnswer(q, fmt.Sprintf("unknown option %q", selected))
		}
		value = opt.Weight

	case domain.MultipleChoice:
		selected, ok := resp.AsStringSet()
		if !ok {
			return 0, inconsistentAnswer(q, "expected option value set")
		}
		for _, sv := range selected {
			opt, ok := q.OptionByValue(sv)
			if !ok {
				return 0, inconsistentAnswer(q, fmt.Sprintf("unknown option %q", sv))
			}
			value += opt.Weight
		}
		// Reverse scoring over a summed set has no defined item range.
		return value, nil

	case domain.NumericScale, domain.LikertScale, domain.VisualAnalogScale, domain.NumberInput:
		f, ok := resp.AsNumber()
		if !ok {
			return 0, inconsistentAnswer(q, "expected numeric value")
		}
		value = int(f)

	default:
		return 0, inconsistentAnswer(q, fmt.Sprintf("type %s has no numeric contribution", q.Type))
	}

	if min, max, ok := q.ItemRange(); ok {
		if value < min || value > max {
			return 0, domain.NewInternalConsistencyError(
				domain.CodeItemOutOfRange,
				fmt.Sprintf("question %q value %d outside item range [%d,%d]", q.ID, value, min, max),
				"",
			)
		}
		if q.Reverse {
			value = max - value + min
		}
	}

	return value, nil
}

// aggregate combines the contributions of the given question IDs. Sum stays
// in int64; mean is one exact integer sum followed by a single division.
func (s *ScorerService) aggregate(method domain.ScoringMethod, ids []string, raw map[string]int) (float64, error) {
	var sum int64
	count := 0
	for _, id := range ids {
		v, ok := raw[id]
		if !ok {
			// Skipped optional items are absent from raw.
			continue
		}
		sum += int64(v)
		count++
	}

	switch method {
	case domain.ScoringSum:
		return float64(sum), nil
	case domain.ScoringMean:
		if count == 0 {
			return 0, nil
		}
		return float64(sum) / float64(count), nil
	default:
		return 0, domain.NewConfigurationError(string(method), "unknown scoring method", domain.ErrInvalidScoring)
	}
}

func (s *ScorerService) computeSubscales(instrument *domain.Instrument, raw map[string]int) (map[string]float64, error) {
	if len(instrument.Subscales) == 0 {
		return nil, nil
	}

	subscales := make(map[string]float64, len(instrument.Subscales))
	for _, sub := range instrument.Subscales {
		for _, qid := range sub.QuestionIDs {
			q, ok := instrument.QuestionByID(qid)
			if !ok || !q.Scorable {
				return nil, domain.NewConfigurationError(instrument.ID,
					fmt.Sprintf("subscale %q references non-scorable question %q", sub.Name, qid), nil)
			}
		}
		method := sub.Method
		if method == "" {
			method = instrument.Method
		}
		v, err := s.aggregate(method, sub.QuestionIDs, raw)
		if err != nil {
			return nil, err
		}
		subscales[sub.Name] = v
	}
	return subscales, nil
}

func inconsistentAnswer(q *domain.Question, detail string) error {
	return domain.NewInternalConsistencyError(
		domain.CodeIncompleteScorableSet,
		fmt.Sprintf("question %q reached scoring with an invalid answer", q.ID),
		detail,
	)
}
