package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// SubmissionService composes validation, scoring, and safety evaluation into
// one request/response cycle per incoming PRO submission. It is the only core
// component that talks to external collaborators: the submission repository
// and the alert notifier, both optional and injected.
//
// State machine per submission, terminal states only:
//
//	Received → Validating → {Rejected | Validated} → Scoring → Scored →
//	Evaluating → Completed
//
// Rejected is terminal and returned synchronously with the full failure set.
// Any failure inside scoring or evaluation is fatal for that submission: the
// core never guesses or defaults a partial score.
type SubmissionService struct {
	logger    *logrus.Logger
	validator domain.ResponseValidator
	scorer    domain.InstrumentScorer
	safety    domain.SafetyEvaluator
	repo      domain.SubmissionRepository
	notifier  domain.AlertNotifier
}

// NewSubmissionService creates a new submission orchestrator. repo and
// notifier may be nil for pure in-process evaluation (tests, lite mode
// without persistence).
func NewSubmissionService(
	logger *logrus.Logger,
	repo domain.SubmissionRepository,
	notifier domain.AlertNotifier,
) *SubmissionService {
	return &SubmissionService{
		logger:    logger,
		validator: NewResponseValidator(logger),
		scorer:    NewScorer(logger),
		safety:    NewSafetyRuleEngine(logger),
		repo:      repo,
		notifier:  notifier,
	}
}

// Process runs one submission through the full pipeline. A Rejected result is
// a normal terminal outcome, not an error; configuration and internal
// consistency failures return an error and no result.
func (s *SubmissionService) Process(ctx context.Context, instrument *domain.Instrument,
	rules *domain.SafetyRuleSet, submission *domain.Submission, labs domain.LabValues) (*domain.SubmissionResult, error) {

	log := s.logger.WithFields(logrus.Fields{
		"submission_id":  submission.ID,
		"study_id":       submission.StudyID,
		"participant_id": submission.ParticipantID,
		"instrument_id":  instrument.ID,
	})
	log.WithField("state", domain.StateReceived).Info("Processing PRO submission")

	// Configuration is authored upstream; reject malformed definitions
	// before any participant data is interpreted against them.
	if err := instrument.Validate(); err != nil {
		return nil, domain.NewConfigurationError(instrument.ID, "invalid instrument definition", err)
	}
	if rules != nil {
		if err := rules.Validate(); err != nil {
			return nil, domain.NewConfigurationError(rules.StudyID, "invalid safety rule set", err)
		}
	}

	log.WithField("state", domain.StateValidating).Debug("Validating responses")
	failures := s.validator.ValidateAll(instrument, submission.Responses)
	if len(failures) > 0 {
		result := &domain.SubmissionResult{
			SubmissionID: submission.ID,
			State:        domain.StateRejected,
			Failures:     failures,
		}
		log.WithFields(logrus.Fields{
			"state":    domain.StateRejected,
			"failures": len(failures),
		}).Info("Submission rejected")
		if err := s.persist(ctx, submission, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	log.WithField("state", domain.StateScoring).Debug("Scoring validated responses")
	score, err := s.scorer.Score(instrument, submission.Responses)
	if err != nil {
		log.WithError(err).Error("Scoring failed")
		return nil, fmt.Errorf("scoring submission %s: %w", submission.ID, err)
	}
	log.WithFields(score.LogFields()).WithField("state", domain.StateScored).Debug("Submission scored")

	log.WithField("state", domain.StateEvaluating).Debug("Evaluating safety rules")
	var safety *domain.SafetyEvaluationResult
	if rules != nil {
		safety, err = s.safety.Evaluate(rules, score, labs)
		if err != nil {
			log.WithError(err).Error("Safety evaluation failed")
			return nil, fmt.Errorf("evaluating safety for submission %s: %w", submission.ID, err)
		}
	} else {
		safety = &domain.SafetyEvaluationResult{TriggeredAlerts: []domain.TriggeredAlert{}}
	}

	result := &domain.SubmissionResult{
		SubmissionID: submission.ID,
		State:        domain.StateCompleted,
		Score:        score,
		Safety:       safety,
	}

	if err := s.persist(ctx, submission, result); err != nil {
		return nil, err
	}

	if safety.HasImmediate() {
		log.WithFields(logrus.Fields{
			"state":  domain.StateCompleted,
			"alerts": len(safety.TriggeredAlerts),
		}).Warn("Immediate-urgency safety alert triggered")
	}

	log.WithFields(logrus.Fields{
		"state":     domain.StateCompleted,
		"total":     score.Total,
		"alerts":    len(safety.TriggeredAlerts),
		"crisis":    safety.ShowCrisisResources,
		"follow_up": safety.FollowUpTimepoint,
	}).Info("Submission completed")

	if s.notifier != nil && len(safety.TriggeredAlerts) > 0 {
		if err := s.notifier.NotifyAlerts(ctx, submission, safety.TriggeredAlerts); err != nil {
			// The evaluation is complete and persisted; the caller owns the
			// retry decision for delivery, so it gets both.
			log.WithError(err).Error("Alert notification failed")
			return result, fmt.Errorf("notifying alerts for submission %s: %w", submission.ID, err)
		}
	}

	return result, nil
}

func (s *SubmissionService) persist(ctx context.Context, submission *domain.Submission, result *domain.SubmissionResult) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveSubmission(ctx, submission); err != nil {
		return fmt.Errorf("persisting submission %s: %w", submission.ID, err)
	}
	if err := s.repo.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("persisting result for submission %s: %w", submission.ID, err)
	}
	return nil
}
