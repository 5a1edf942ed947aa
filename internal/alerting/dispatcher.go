package alerting

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
	"github.com/pro-outcomes-server/internal/review"
)

// Dispatcher fans triggered alerts out to every configured sink: the live
// feed, the review queue, and the outbound webhook. It implements
// domain.AlertNotifier so the orchestrator sees a single collaborator.
//
// Only webhook failure is reported back; the webhook is the delivery
// contract, the other sinks are best effort with the review store as the
// durable fallback record.
type Dispatcher struct {
	webhook domain.AlertNotifier
	feed    *Feed
	reviews review.Store
	logger  *logrus.Logger
}

// NewDispatcher creates an alert dispatcher. Any sink may be nil.
func NewDispatcher(webhook domain.AlertNotifier, feed *Feed, reviews review.Store, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		webhook: webhook,
		feed:    feed,
		reviews: reviews,
		logger:  logger,
	}
}

// NotifyAlerts dispatches one submission's triggered alerts to all sinks.
func (d *Dispatcher) NotifyAlerts(ctx context.Context, submission *domain.Submission, alerts []domain.TriggeredAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	d.openReviews(ctx, submission, alerts)

	if d.feed != nil {
		d.feed.Broadcast(ctx, submission, alerts)
	}

	if d.webhook != nil {
		return d.webhook.NotifyAlerts(ctx, submission, alerts)
	}
	return nil
}

// openReviews records a pending review entry for every coordinator alert.
// Crisis-resource and follow-up alerts are participant-facing and do not
// enter the review queue.
func (d *Dispatcher) openReviews(ctx context.Context, submission *domain.Submission, alerts []domain.TriggeredAlert) {
	if d.reviews == nil {
		return
	}

	for _, alert := range alerts {
		if alert.AlertType != domain.CoordinatorAlert {
			continue
		}

		entry := &review.AlertReview{
			SubmissionID: submission.ID,
			RuleID:       alert.RuleID,
			StudyID:      submission.StudyID,
			Urgency:      string(alert.Urgency),
			Status:       review.StatusPending,
		}
		if err := d.reviews.Save(ctx, entry); err != nil {
			d.logger.WithFields(logrus.Fields{
				"submission_id": submission.ID,
				"rule_id":       alert.RuleID,
				"error":         err,
			}).Error("Failed to open alert review")
		}
	}
}
