package domain

import (
	"errors"
	"fmt"
	"time"
)

// RuleKind distinguishes the two safety-rule families.
type RuleKind string

const (
	RulePROAlert     RuleKind = "pro_alert"
	RuleLabThreshold RuleKind = "lab_threshold"
)

// ComparisonOperator is the closed operator set of the safety condition
// grammar. Unknown operators in a rule definition are a configuration error.
type ComparisonOperator string

const (
	OpGreater      ComparisonOperator = ">"
	OpGreaterEqual ComparisonOperator = ">="
	OpLess         ComparisonOperator = "<"
	OpLessEqual    ComparisonOperator = "<="
	OpEqual        ComparisonOperator = "=="
)

// IsValid validates the comparison operator.
func (op ComparisonOperator) IsValid() bool {
	switch op {
	case OpGreater, OpGreaterEqual, OpLess, OpLessEqual, OpEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to left and right.
func (op ComparisonOperator) Compare(left, right float64) bool {
	switch op {
	case OpGreater:
		return left > right
	case OpGreaterEqual:
		return left >= right
	case OpLess:
		return left < right
	case OpLessEqual:
		return left <= right
	case OpEqual:
		return left == right
	default:
		return false
	}
}

// PROAlertRule fires on a condition over a just-computed score result.
// The condition is a single comparison in the explicit grammar
// "<variable> <operator> <number>", e.g. "total >= 20" or "item:phq9_q9 > 0".
type PROAlertRule struct {
	ID           string    `json:"id" validate:"required"`
	InstrumentID string    `json:"instrument_id" validate:"required"`
	Condition    string    `json:"condition" validate:"required"`
	AlertType    AlertType `json:"alert_type" validate:"required"`
	Urgency      Urgency   `json:"urgency" validate:"required"`
	Message      string    `json:"message"`

	// Timepoint names the follow-up schedule entry for follow_up rules.
	Timepoint string `json:"timepoint,omitempty"`
}

// Validate ensures the rule definition is well-formed apart from its
// condition, which the evaluator parses with the full grammar.
func (r *PROAlertRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("pro alert rule validation: %w", errors.New("ID is required"))
	}
	if r.InstrumentID == "" {
		return fmt.Errorf("pro alert rule validation (%s): %w", r.ID,
			errors.New("instrument ID is required"))
	}
	if r.Condition == "" {
		return fmt.Errorf("pro alert rule validation (%s): %w", r.ID,
			errors.New("condition is required"))
	}
	if !r.AlertType.IsValid() {
		return fmt.Errorf("pro alert rule validation (%s): %w: %q", r.ID, ErrInvalidAlertType, r.AlertType)
	}
	if !r.Urgency.IsValid() {
		return fmt.Errorf("pro alert rule validation (%s): %w: %q", r.ID, ErrInvalidUrgency, r.Urgency)
	}
	return nil
}

// LabThresholdRule fires when an externally supplied lab marker crosses a
// threshold. Lab rules are skipped entirely when no lab values accompany the
// evaluation; absence of labs never defaults to triggered.
type LabThresholdRule struct {
	ID        string             `json:"id" validate:"required"`
	Marker    string             `json:"marker" validate:"required"`
	Operator  ComparisonOperator `json:"operator" validate:"required"`
	Value     float64            `json:"value"`
	Unit      string             `json:"unit,omitempty"`
	AlertType AlertType          `json:"alert_type" validate:"required"`
	Urgency   Urgency            `json:"urgency" validate:"required"`
	Action    string             `json:"action,omitempty"`
	Timepoint string             `json:"timepoint,omitempty"`
}

// Validate ensures the lab rule definition is well-formed.
func (r *LabThresholdRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("lab threshold rule validation: %w", errors.New("ID is required"))
	}
	if r.Marker == "" {
		return fmt.Errorf("lab threshold rule validation (%s): %w", r.ID,
			errors.New("marker is required"))
	}
	if !r.Operator.IsValid() {
		return fmt.Errorf("lab threshold rule validation (%s): %w", r.ID,
			fmt.Errorf("unknown operator %q", r.Operator))
	}
	if !r.AlertType.IsValid() {
		return fmt.Errorf("lab threshold rule validation (%s): %w: %q", r.ID, ErrInvalidAlertType, r.AlertType)
	}
	if !r.Urgency.IsValid() {
		return fmt.Errorf("lab threshold rule validation (%s): %w: %q", r.ID, ErrInvalidUrgency, r.Urgency)
	}
	return nil
}

// SafetyRuleSet is a study's complete, versioned safety configuration.
// It is immutable for the lifetime of a study version; rule changes must
// produce a new version rather than mutate rules referenced by in-flight
// evaluations.
type SafetyRuleSet struct {
	StudyID   string             `json:"study_id" validate:"required"`
	Version   int                `json:"version"`
	PROAlerts []PROAlertRule     `json:"pro_alerts,omitempty"`
	LabRules  []LabThresholdRule `json:"lab_rules,omitempty"`
}

// Validate ensures every rule in the set is well-formed.
func (rs *SafetyRuleSet) Validate() error {
	if rs.StudyID == "" {
		return fmt.Errorf("safety rule set validation: %w", errors.New("study ID is required"))
	}
	for i := range rs.PROAlerts {
		if err := rs.PROAlerts[i].Validate(); err != nil {
			return fmt.Errorf("safety rule set validation (%s): %w", rs.StudyID, err)
		}
	}
	for i := range rs.LabRules {
		if err := rs.LabRules[i].Validate(); err != nil {
			return fmt.Errorf("safety rule set validation (%s): %w", rs.StudyID, err)
		}
	}
	return nil
}

// TriggeredAlert is one fired safety rule, preserved in full for the
// notification and audit collaborators.
type TriggeredAlert struct {
	RuleID    string    `json:"rule_id"`
	Kind      RuleKind  `json:"kind"`
	AlertType AlertType `json:"alert_type"`
	Urgency   Urgency   `json:"urgency"`
	Message   string    `json:"message"`

	// Condition (PRO alerts) or marker comparison (lab rules), rendered for
	// the audit trail.
	Matched string `json:"matched"`

	// Observed is the value that satisfied the rule.
	Observed  float64 `json:"observed"`
	Timepoint string  `json:"timepoint,omitempty"`
	Action    string  `json:"action,omitempty"`
}

// LogFields returns structured logging fields for audit trails. A triggered
// safety alert is a clinical event and must be reconstructible from logs.
func (a *TriggeredAlert) LogFields() map[string]any {
	return map[string]any{
		"rule_id":    a.RuleID,
		"rule_kind":  string(a.Kind),
		"alert_type": string(a.AlertType),
		"urgency":    string(a.Urgency),
		"matched":    a.Matched,
		"observed":   a.Observed,
	}
}

// SafetyEvaluationResult is the complete outcome of evaluating a study's
// safety rules against one score result and optional lab values. All matched
// rules are preserved, most urgent first; a lower-urgency alert is never
// suppressed because a higher one fired.
type SafetyEvaluationResult struct {
	TriggeredAlerts     []TriggeredAlert `json:"triggered_alerts"`
	ShowCrisisResources bool             `json:"show_crisis_resources"`
	FollowUpTimepoint   string           `json:"follow_up_timepoint,omitempty"`
	EvaluatedAt         time.Time        `json:"evaluated_at"`
}

// HasImmediate reports whether any triggered alert carries immediate urgency.
func (r *SafetyEvaluationResult) HasImmediate() bool {
	for i := range r.TriggeredAlerts {
		if r.TriggeredAlerts[i].Urgency == UrgencyImmediate {
			return true
		}
	}
	return false
}
