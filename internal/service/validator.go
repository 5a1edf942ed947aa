// Package service implements the PRO processing core: response validation,
// instrument scoring, safety-rule evaluation, and the submission orchestrator
// that composes them. All components are pure functions over their inputs;
// per-study configuration is passed explicitly into every call.
package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// ResponseValidatorService checks submitted answers against their questions'
// type-specific constraints, dispatching exhaustively over the question-type
// set.
type ResponseValidatorService struct {
	logger *logrus.Logger

	// now is injectable so future-date checks are deterministic in tests.
	now func() time.Time
}

// NewResponseValidator creates a new response validator.
func NewResponseValidator(logger *logrus.Logger) *ResponseValidatorService {
	return &ResponseValidatorService{
		logger: logger,
		now:    time.Now,
	}
}

// ValidateAll validates every response of a submission against the
// instrument, returning the complete set of failures: orphaned responses,
// missing required answers, and per-question constraint violations.
// An empty slice means the submission is fully well-formed.
func (v *ResponseValidatorService) ValidateAll(instrument *domain.Instrument, responses []domain.Response) []domain.ValidationFailure {
	failures := make([]domain.ValidationFailure, 0)

	// Orphaned responses: answers to questions the instrument doesn't have.
	for i := range responses {
		if _, ok := instrument.QuestionByID(responses[i].QuestionID); !ok {
			failures = append(failures, domain.ValidationFailure{
				QuestionID: responses[i].QuestionID,
				Kind:       domain.OrphanResponse,
				Message:    fmt.Sprintf("no question %q in instrument %q", responses[i].QuestionID, instrument.ID),
			})
		}
	}

	byID := make(map[string]*domain.Response, len(responses))
	for i := range responses {
		if _, seen := byID[responses[i].QuestionID]; !seen {
			byID[responses[i].QuestionID] = &responses[i]
		}
	}

	for i := range instrument.Questions {
		q := &instrument.Questions[i]
		resp, ok := byID[q.ID]
		if !ok || resp.IsEmpty() {
			if !q.Optional {
				failures = append(failures, domain.ValidationFailure{
					QuestionID: q.ID,
					Kind:       domain.MissingRequiredAnswer,
					Message:    "required question has no answer",
				})
			}
			continue
		}
		if f := v.Validate(q, resp); f != nil {
			failures = append(failures, *f)
		}
	}

	if len(failures) > 0 && v.logger != nil {
		v.logger.WithFields(logrus.Fields{
			"instrument_id": instrument.ID,
			"failures":      len(failures),
		}).Debug("Submission failed validation")
	}

	return failures
}

// Validate checks a single non-empty response against its question's
// constraints. Returns nil when the response is well-formed.
func (v *ResponseValidatorService) Validate(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	switch q.Type {
	case domain.SingleChoice, domain.YesNo:
		return v.validateSingleChoice(q, resp)
	case domain.MultipleChoice:
		return v.validateMultipleChoice(q, resp)
	case domain.NumericScale, domain.LikertScale, domain.VisualAnalogScale:
		return v.validateScale(q, resp)
	case domain.NumberInput:
		return v.validateNumber(q, resp)
	case domain.TimeInput:
		return v.validateTime(q, resp)
	case domain.DateInput:
		return v.validateDate(q, resp)
	case domain.DurationInput:
		return v.validateDuration(q, resp)
	case domain.TextInput:
		return v.validateText(q, resp)
	default:
		return &domain.ValidationFailure{
			QuestionID: q.ID,
			Kind:       domain.WrongValueType,
			Message:    fmt.Sprintf("question has unsupported type %q", q.Type),
		}
	}
}

func (v *ResponseValidatorService) validateSingleChoice(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	value, ok := resp.AsString()
	if !ok {
		return failure(q.ID, domain.WrongValueType, "answer must be a single option value")
	}
	if _, ok := q.OptionByValue(value); !ok {
		return failure(q.ID, domain.UnknownOption, fmt.Sprintf("%q is not an option", value))
	}
	return nil
}

func (v *ResponseValidatorService) validateMultipleChoice(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	values, ok := resp.AsStringSet()
	if !ok {
		return failure(q.ID, domain.WrongValueType, "answer must be a set of option values")
	}
	for _, value := range values {
		if _, ok := q.OptionByValue(value); !ok {
			return failure(q.ID, domain.UnknownOption, fmt.Sprintf("%q is not an option", value))
		}
	}
	return nil
}

func (v *ResponseValidatorService) validateScale(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	value, ok := resp.AsNumber()
	if !ok {
		return failure(q.ID, domain.WrongValueType, "answer must be numeric")
	}
	if value != math.Trunc(value) {
		// Clinical scales are integer-scaled; fractional answers cannot
		// contribute to an exact-integer total.
		return failure(q.ID, domain.WrongValueType, "scale answer must be a whole number")
	}
	s := q.Scale
	iv := int(value)
	if iv < s.Min || iv > s.Max {
		return failure(q.ID, domain.OutOfRange,
			fmt.Sprintf("value %d outside [%d,%d]", iv, s.Min, s.Max))
	}
	if s.Step > 0 && (iv-s.Min)%s.Step != 0 {
		return failure(q.ID, domain.StepMismatch,
			fmt.Sprintf("value %d not reachable from %d in steps of %d", iv, s.Min, s.Step))
	}
	return nil
}

func (v *ResponseValidatorService) validateNumber(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	value, ok := resp.AsNumber()
	if !ok {
		return failure(q.ID, domain.WrongValueType, "answer must be numeric")
	}
	if q.Scorable && value != math.Trunc(value) {
		return failure(q.ID, domain.WrongValueType, "scorable numeric answer must be a whole number")
	}
	if q.Bounds != nil {
		if q.Bounds.Min != nil && value < *q.Bounds.Min {
			return failure(q.ID, domain.OutOfRange,
				fmt.Sprintf("value %v below minimum %v", value, *q.Bounds.Min))
		}
		if q.Bounds.Max != nil && value > *q.Bounds.Max {
			return failure(q.ID, domain.OutOfRange,
				fmt.Sprintf("value %v above maximum %v", value, *q.Bounds.Max))
		}
	}
	return nil
}

func (v *ResponseValidatorService) validateTime(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	value, ok := resp.AsString()
	if !ok {
		return failure(q.ID, domain.WrongValueType, "answer must be a time string")
	}
	if _, err := time.Parse("15:04", value); err != nil {
		return failure(q.ID, domain.MalformedTime,
			fmt.Sprintf("%q is not a valid 24-hour time", value))
	}
	return nil
}

func (v *ResponseValidatorService) validateDate(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	value, ok := resp.AsString()
	if !ok {
		return failure(q.ID, domain.WrongValueType, "answer must be a date string")
	}
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return failure(q.ID, domain.MalformedDate,
			fmt.Sprintf("%q is not a valid calendar date", value))
	}
	if q.NoFutureDates {
		today := v.now().UTC().Truncate(24 * time.Hour)
		if d.After(today) {
			return failure(q.ID, domain.FutureDate,
				fmt.Sprintf("date %q is in the future", value))
		}
	}
	return nil
}

func (v *ResponseValidatorService) validateDuration(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	d, ok := resp.AsDuration()
	if !ok {
		return failure(q.ID, domain.MalformedDuration, "answer must be an {amount, unit} object")
	}
	if d.Amount < 0 {
		return failure(q.ID, domain.NegativeDuration,
			fmt.Sprintf("duration amount %v must not be negative", d.Amount))
	}
	if len(q.DurationUnits) > 0 {
		allowed := false
		for _, unit := range q.DurationUnits {
			if unit == d.Unit {
				allowed = true
				break
			}
		}
		if !allowed {
			return failure(q.ID, domain.UnsupportedUnit,
				fmt.Sprintf("unit %q not accepted for this question", d.Unit))
		}
	}
	return nil
}

func (v *ResponseValidatorService) validateText(q *domain.Question, resp *domain.Response) *domain.ValidationFailure {
	value, ok := resp.AsString()
	if !ok {
		return failure(q.ID, domain.WrongValueType, "answer must be text")
	}
	if strings.TrimSpace(value) == "" && !q.Optional {
		return failure(q.ID, domain.EmptyText, "answer must not be empty")
	}
	return nil
}

func failure(questionID string, kind domain.FailureKind, message string) *domain.ValidationFailure {
	return &domain.ValidationFailure{QuestionID: questionID, Kind: kind, Message: message}
}
