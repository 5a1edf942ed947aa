// Package notify delivers triggered safety alerts to the configured outbound
// webhook. The webhook endpoint owns channel fan-out (pager, SMS, email);
// this package only guarantees the handoff: rate-limited, retried, and
// shielded by a circuit breaker so a dead endpoint cannot stall submission
// processing.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pro-outcomes-server/internal/domain"
)

// WebhookConfig represents webhook delivery configuration
type WebhookConfig struct {
	URL        string
	Timeout    time.Duration
	RateLimit  int // requests per second
	RetryCount int
}

// WebhookNotifier implements domain.AlertNotifier over an HTTP webhook.
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retryCount int
	logger     *logrus.Logger
}

// alertPayload is the wire format posted to the webhook.
type alertPayload struct {
	SubmissionID  string                  `json:"submission_id"`
	StudyID       string                  `json:"study_id"`
	ParticipantID string                  `json:"participant_id"`
	InstrumentID  string                  `json:"instrument_id"`
	Alerts        []domain.TriggeredAlert `json:"alerts"`
	SentAt        time.Time               `json:"sent_at"`
}

// NewWebhookNotifier creates a new webhook alert notifier
func NewWebhookNotifier(config WebhookConfig, logger *logrus.Logger) (*WebhookNotifier, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "alert-webhook",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Webhook circuit breaker state changed")
		},
	})

	return &WebhookNotifier{
		url: config.URL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		breaker:    breaker,
		retryCount: config.RetryCount,
		logger:     logger,
	}, nil
}

// NotifyAlerts posts the triggered alerts for one submission to the webhook.
// A nil error means the endpoint accepted the batch; the caller decides what
// to do with delivery failures.
func (n *WebhookNotifier) NotifyAlerts(ctx context.Context, submission *domain.Submission, alerts []domain.TriggeredAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	payload := alertPayload{
		SubmissionID:  submission.ID,
		StudyID:       submission.StudyID,
		ParticipantID: submission.ParticipantID,
		InstrumentID:  submission.InstrumentID,
		Alerts:        alerts,
		SentAt:        time.Now().UTC(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding alert payload: %w", err)
	}

	// Rate limiting
	if err := n.rateLimit.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait failed: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= n.retryCount; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return fmt.Errorf("alert delivery cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		_, err := n.breaker.Execute(func() (interface{}, error) {
			return nil, n.post(ctx, body)
		})
		if err == nil {
			n.logger.WithFields(logrus.Fields{
				"submission_id": submission.ID,
				"study_id":      submission.StudyID,
				"alerts":        len(alerts),
				"attempt":       attempt + 1,
			}).Info("Alerts delivered to webhook")
			return nil
		}

		lastErr = err
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			// No point retrying while the breaker rejects calls
			break
		}

		n.logger.WithFields(logrus.Fields{
			"submission_id": submission.ID,
			"attempt":       attempt + 1,
			"error":         err,
		}).Warn("Webhook delivery attempt failed")
	}

	return fmt.Errorf("delivering alerts for submission %s: %w", submission.ID, lastErr)
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
