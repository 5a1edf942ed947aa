package domain

import "context"

// ResponseValidator checks submitted answers against their questions'
// type-specific constraints. Validation collects every failure rather than
// stopping at the first.
type ResponseValidator interface {
	Validate(question *Question, response *Response) *ValidationFailure
	ValidateAll(instrument *Instrument, responses []Response) []ValidationFailure
}

// InstrumentScorer reduces a validated response set into a score result.
// Callable only after ValidateAll reports no failures; any remaining gap in
// the scorable set is an internal consistency error, not a silent zero.
type InstrumentScorer interface {
	Score(instrument *Instrument, responses []Response) (*ScoreResult, error)
}

// SafetyEvaluator evaluates a study's safety rules against a computed score
// result and optional lab values. Malformed rule conditions surface as
// configuration errors, never as skipped rules.
type SafetyEvaluator interface {
	Evaluate(rules *SafetyRuleSet, score *ScoreResult, labs LabValues) (*SafetyEvaluationResult, error)
}

// SubmissionResult is the terminal outcome of processing one submission.
// Exactly one of Failures (Rejected) or Score+Safety (Completed) is set.
type SubmissionResult struct {
	SubmissionID string                  `json:"submission_id"`
	State        SubmissionState         `json:"state"`
	Failures     []ValidationFailure     `json:"failures,omitempty"`
	Score        *ScoreResult            `json:"score,omitempty"`
	Safety       *SafetyEvaluationResult `json:"safety,omitempty"`
}

// SubmissionOrchestrator composes validation, scoring, and safety evaluation
// into one request/response cycle per incoming PRO submission. It is the only
// core component that talks to external collaborators.
type SubmissionOrchestrator interface {
	Process(ctx context.Context, instrument *Instrument, rules *SafetyRuleSet,
		submission *Submission, labs LabValues) (*SubmissionResult, error)
}

// StudyConfigProvider supplies the immutable, versioned per-study
// configuration (instrument + safety rules) for an evaluation.
type StudyConfigProvider interface {
	Instrument(ctx context.Context, studyID, instrumentID string) (*Instrument, error)
	SafetyRules(ctx context.Context, studyID string) (*SafetyRuleSet, error)
}

// SubmissionRepository persists submissions and their terminal results.
type SubmissionRepository interface {
	SaveSubmission(ctx context.Context, submission *Submission) error
	SaveResult(ctx context.Context, result *SubmissionResult) error
	GetResult(ctx context.Context, submissionID string) (*SubmissionResult, error)
}

// AlertNotifier delivers triggered safety alerts to the outbound notification
// collaborator. Delivery-channel choice is the collaborator's concern.
type AlertNotifier interface {
	NotifyAlerts(ctx context.Context, submission *Submission, alerts []TriggeredAlert) error
}

// ConfigManager defines the interface for application configuration.
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
