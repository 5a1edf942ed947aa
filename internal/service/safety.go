package service

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// SafetyRuleEngine evaluates a study's configured alert rules and lab
// thresholds against a just-computed score result. Every matched rule is
// preserved in the result: a lower-urgency alert is never suppressed because
// a higher one fired, and a PRO trigger and a lab trigger are independent.
type SafetyRuleEngine struct {
	logger *logrus.Logger
}

// NewSafetyRuleEngine creates a new safety rule engine.
func NewSafetyRuleEngine(logger *logrus.Logger) *SafetyRuleEngine {
	return &SafetyRuleEngine{logger: logger}
}

// Evaluate applies every applicable rule and returns all matches ordered by
// urgency descending, declaration order for ties. Lab rules are skipped when
// labs is empty; a malformed rule condition aborts the evaluation with a
// configuration error rather than being silently ignored.
func (e *SafetyRuleEngine) Evaluate(rules *domain.SafetyRuleSet, score *domain.ScoreResult, labs domain.LabValues) (*domain.SafetyEvaluationResult, error) {
	triggered := make([]domain.TriggeredAlert, 0)

	for i := range rules.PROAlerts {
		rule := &rules.PROAlerts[i]
		if rule.InstrumentID != score.InstrumentID {
			continue
		}

		cond, err := ParseCondition(rule.Condition)
		if err != nil {
			return nil, fmt.Errorf("evaluating rule %q: %w", rule.ID, err)
		}

		matched, observed, err := cond.Evaluate(score)
		if err != nil {
			return nil, fmt.Errorf("evaluating rule %q: %w", rule.ID, err)
		}
		if !matched {
			continue
		}

		triggered = append(triggered, domain.TriggeredAlert{
			RuleID:    rule.ID,
			Kind:      domain.RulePROAlert,
			AlertType: rule.AlertType,
			Urgency:   rule.Urgency,
			Message:   rule.Message,
			Matched:   rule.Condition,
			Observed:  observed,
			Timepoint: rule.Timepoint,
		})
	}

	// Lab rules evaluate only against supplied values. No labs means no lab
	// triggers, never "triggered by default".
	if len(labs) > 0 {
		for i := range rules.LabRules {
			rule := &rules.LabRules[i]
			if !rule.Operator.IsValid() {
				return nil, fmt.Errorf("evaluating lab rule %q: %w", rule.ID,
					domain.NewConfigurationError(rule.ID,
						fmt.Sprintf("unknown operator %q", rule.Operator), nil))
			}

			observed, ok := labs[rule.Marker]
			if !ok {
				continue
			}
			if !rule.Operator.Compare(observed, rule.Value) {
				continue
			}

			triggered = append(triggered, domain.TriggeredAlert{
				RuleID:    rule.ID,
				Kind:      domain.RuleLabThreshold,
				AlertType: rule.AlertType,
				Urgency:   rule.Urgency,
				Message:   rule.Action,
				Matched:   fmt.Sprintf("%s %s %v %s", rule.Marker, rule.Operator, rule.Value, rule.Unit),
				Observed:  observed,
				Timepoint: rule.Timepoint,
				Action:    rule.Action,
			})
		}
	}

	// Stable sort keeps declaration order within an urgency level.
	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Urgency.Rank() < triggered[j].Urgency.Rank()
	})

	result := &domain.SafetyEvaluationResult{
		TriggeredAlerts: triggered,
		EvaluatedAt:     time.Now().UTC(),
	}

	for i := range triggered {
		if triggered[i].AlertType == domain.CrisisResources {
			result.ShowCrisisResources = true
		}
		if triggered[i].AlertType == domain.FollowUp && result.FollowUpTimepoint == "" {
			result.FollowUpTimepoint = triggered[i].Timepoint
		}
	}

	if e.logger != nil {
		for i := range triggered {
			e.logger.WithFields(triggered[i].LogFields()).Warn("Safety rule triggered")
		}
		e.logger.WithFields(logrus.Fields{
			"study_id":        rules.StudyID,
			"rules_version":   rules.Version,
			"instrument_id":   score.InstrumentID,
			"triggered":       len(triggered),
			"crisis":          result.ShowCrisisResources,
			"follow_up":       result.FollowUpTimepoint,
			"lab_values_seen": len(labs),
		}).Info("Safety evaluation completed")
	}

	return result, nil
}
