package domain

import (
	"fmt"
	"time"
)

// FailureKind classifies a single response-validation failure. Validation
// failures are recoverable: the caller re-prompts the participant.
type FailureKind string

const (
	MissingRequiredAnswer FailureKind = "missing_required_answer"
	OrphanResponse        FailureKind = "orphan_response"
	WrongValueType        FailureKind = "wrong_value_type"
	UnknownOption         FailureKind = "unknown_option"
	OutOfRange            FailureKind = "out_of_range"
	StepMismatch          FailureKind = "step_mismatch"
	MalformedTime         FailureKind = "malformed_time"
	MalformedDate         FailureKind = "malformed_date"
	FutureDate            FailureKind = "future_date"
	MalformedDuration     FailureKind = "malformed_duration"
	NegativeDuration      FailureKind = "negative_duration"
	UnsupportedUnit       FailureKind = "unsupported_unit"
	EmptyText             FailureKind = "empty_text"
)

// IsValid validates the failure kind.
func (fk FailureKind) IsValid() bool {
	switch fk {
	case MissingRequiredAnswer, OrphanResponse, WrongValueType, UnknownOption,
		OutOfRange, StepMismatch, MalformedTime, MalformedDate, FutureDate,
		MalformedDuration, NegativeDuration, UnsupportedUnit, EmptyText:
		return true
	default:
		return false
	}
}

// String returns the string representation of the failure kind.
func (fk FailureKind) String() string {
	return string(fk)
}

// ValidationFailure records why one response failed validation. Failures are
// collected across the whole submission, not fail-fast, so a caller can
// report every problem in one round trip.
type ValidationFailure struct {
	QuestionID string      `json:"question_id"`
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
}

// Error implements the error interface.
func (f *ValidationFailure) Error() string {
	return fmt.Sprintf("validation failure for question %q: %s: %s", f.QuestionID, f.Kind, f.Message)
}

// ConfigurationError indicates a malformed instrument or safety-rule
// definition. It is fatal for the submission, not participant-caused, and
// must be surfaced to study operators rather than silently defaulted.
type ConfigurationError struct {
	Subject string `json:"subject"` // instrument ID, rule ID, or condition text
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error (%s): %s: %v", e.Subject, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Subject, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a ConfigurationError.
func NewConfigurationError(subject, message string, err error) *ConfigurationError {
	return &ConfigurationError{Subject: subject, Message: message, Err: err}
}

// InternalConsistencyError indicates an upstream validation bug, e.g. a
// scorable question with no validated response reaching the scorer, or a
// computed total outside the instrument's documented clinical range. Fatal;
// logged with full input for diagnosis; never converted to a partial score.
type InternalConsistencyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Internal consistency error codes
const (
	CodeIncompleteScorableSet = "INCOMPLETE_SCORABLE_SET"
	CodeTotalOutOfRange       = "TOTAL_OUT_OF_RANGE"
	CodeItemOutOfRange        = "ITEM_OUT_OF_RANGE"
)

// Error implements the error interface.
func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("internal consistency error [%s]: %s", e.Code, e.Message)
}

// NewInternalConsistencyError creates an InternalConsistencyError.
func NewInternalConsistencyError(code, message, detail string) *InternalConsistencyError {
	return &InternalConsistencyError{Code: code, Message: message, Detail: detail}
}

// APIError represents a structured error response from the HTTP surface.
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for API failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeValidation     = "VALIDATION_FAILED"
	ErrCodeConfiguration  = "CONFIGURATION_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeNotFoundAPI    = "NOT_FOUND"
	ErrCodeRateLimit      = "RATE_LIMIT_EXCEEDED"
)

// NewAPIError creates a new APIError with timestamp.
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
