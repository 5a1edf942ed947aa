// Package domain contains core business entities and types for patient-reported
// outcome (PRO) processing: questionnaire validation, instrument scoring, and
// safety-rule evaluation for clinical self-study platforms.
//
// Instruments follow validated clinical questionnaires (e.g., PHQ-9, GAD-7);
// scoring and safety semantics are defined per study and must never be guessed.
package domain

import "errors"

// QuestionType represents the closed set of question variants an instrument
// may contain. Validation and scoring dispatch exhaustively over this set;
// an unknown type is a configuration error, never a silent fallback.
type QuestionType string

const (
	SingleChoice      QuestionType = "single_choice"
	MultipleChoice    QuestionType = "multiple_choice"
	NumericScale      QuestionType = "numeric_scale"
	LikertScale       QuestionType = "likert_scale"
	NumberInput       QuestionType = "number_input"
	TimeInput         QuestionType = "time_input"
	DateInput         QuestionType = "date_input"
	DurationInput     QuestionType = "duration_input"
	TextInput         QuestionType = "text_input"
	YesNo             QuestionType = "yes_no"
	VisualAnalogScale QuestionType = "visual_analog_scale"
)

// ScoringMethod represents how an instrument aggregates item contributions.
type ScoringMethod string

const (
	ScoringSum  ScoringMethod = "sum"
	ScoringMean ScoringMethod = "mean"
)

// AlertType represents the kind of action a triggered safety rule demands.
type AlertType string

const (
	CoordinatorAlert AlertType = "coordinator_alert"
	CrisisResources  AlertType = "crisis_resources"
	FollowUp         AlertType = "follow_up"
)

// Urgency represents how quickly a triggered alert must be acted on.
// The total order is immediate > 24hr > routine.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	Urgency24Hr      Urgency = "24hr"
	UrgencyRoutine   Urgency = "routine"
)

// SubmissionState represents the lifecycle of a single PRO submission
// through the processing pipeline. Rejected and Completed are terminal.
type SubmissionState string

const (
	StateReceived   SubmissionState = "received"
	StateValidating SubmissionState = "validating"
	StateRejected   SubmissionState = "rejected"
	StateValidated  SubmissionState = "validated"
	StateScoring    SubmissionState = "scoring"
	StateScored     SubmissionState = "scored"
	StateEvaluating SubmissionState = "evaluating"
	StateCompleted  SubmissionState = "completed"
)

// Validation errors for clinical data integrity
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidQuestionType = errors.New("invalid question type")
	ErrInvalidAlertType    = errors.New("invalid alert type")
	ErrInvalidUrgency      = errors.New("invalid urgency")
	ErrInvalidScoring      = errors.New("invalid scoring method")
)

// IsValid validates that the question type is one of the supported variants.
// Critical for rejecting malformed instrument definitions before evaluation.
func (qt QuestionType) IsValid() bool {
	switch qt {
	case SingleChoice, MultipleChoice, NumericScale, LikertScale, NumberInput,
		TimeInput, DateInput, DurationInput, TextInput, YesNo, VisualAnalogScale:
		return true
	default:
		return false
	}
}

// String returns the string representation of the question type.
func (qt QuestionType) String() string {
	return string(qt)
}

// IsScorableType reports whether the variant is capable of producing a numeric
// contribution at all. A question of a scorable type may still opt out via its
// Scorable flag; non-scorable types never contribute.
func (qt QuestionType) IsScorableType() bool {
	switch qt {
	case SingleChoice, MultipleChoice, NumericScale, LikertScale, NumberInput,
		YesNo, VisualAnalogScale:
		return true
	default:
		return false
	}
}

// IsValid validates the scoring method.
func (sm ScoringMethod) IsValid() bool {
	switch sm {
	case ScoringSum, ScoringMean:
		return true
	default:
		return false
	}
}

// String returns the string representation of the scoring method.
func (sm ScoringMethod) String() string {
	return string(sm)
}

// IsValid validates the alert type.
func (at AlertType) IsValid() bool {
	switch at {
	case CoordinatorAlert, CrisisResources, FollowUp:
		return true
	default:
		return false
	}
}

// String returns the string representation of the alert type.
func (at AlertType) String() string {
	return string(at)
}

// IsValid validates the urgency level.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyImmediate, Urgency24Hr, UrgencyRoutine:
		return true
	default:
		return false
	}
}

// String returns the string representation of the urgency.
func (u Urgency) String() string {
	return string(u)
}

// Rank returns the sort rank of the urgency, lower ranks sort first.
// Unknown urgencies rank last so a malformed rule can never outrank a valid one.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 0
	case Urgency24Hr:
		return 1
	case UrgencyRoutine:
		return 2
	default:
		return 3
	}
}

// LogFields returns structured logging fields for audit trails.
// Patient-safety decisions must be traceable after the fact.
func (u Urgency) LogFields() map[string]any {
	return map[string]any{
		"urgency":  string(u),
		"rank":     u.Rank(),
		"is_valid": u.IsValid(),
	}
}

// IsValid validates the submission state.
func (ss SubmissionState) IsValid() bool {
	switch ss {
	case StateReceived, StateValidating, StateRejected, StateValidated,
		StateScoring, StateScored, StateEvaluating, StateCompleted:
		return true
	default:
		return false
	}
}

// String returns the string representation of the submission state.
func (ss SubmissionState) String() string {
	return string(ss)
}

// IsTerminal reports whether no further transitions are possible.
func (ss SubmissionState) IsTerminal() bool {
	return ss == StateRejected || ss == StateCompleted
}
