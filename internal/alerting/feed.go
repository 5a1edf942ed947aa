// Package alerting provides a live WebSocket feed of triggered safety alerts
// for coordinator dashboards. The feed is a fan-out of what the notifier
// already delivered; dropping a slow subscriber never blocks submission
// processing.
package alerting

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// FeedEvent is the message pushed to every connected subscriber when a
// submission triggers alerts.
type FeedEvent struct {
	SubmissionID  string                  `json:"submission_id"`
	StudyID       string                  `json:"study_id"`
	ParticipantID string                  `json:"participant_id"`
	InstrumentID  string                  `json:"instrument_id"`
	Alerts        []domain.TriggeredAlert `json:"alerts"`
	EmittedAt     time.Time               `json:"emitted_at"`
}

// Feed is the hub managing WebSocket subscribers.
type Feed struct {
	logger *logrus.Logger

	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool
}

type subscriber struct {
	id   string
	conn *websocket.Conn
	send chan FeedEvent
}

// NewFeed creates a new alert feed hub
func NewFeed(logger *logrus.Logger) *Feed {
	return &Feed{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Dashboard origin policy is enforced by the reverse proxy
				return true
			},
		},
		subscribers: make(map[string]*subscriber),
	}
}

// ServeHTTP upgrades the request to a WebSocket subscription.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.WithError(err).Warn("Alert feed upgrade failed")
		return
	}

	sub := &subscriber{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan FeedEvent, sendBufferSize),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		conn.Close()
		return
	}
	f.subscribers[sub.id] = sub
	count := len(f.subscribers)
	f.mu.Unlock()

	f.logger.WithFields(logrus.Fields{
		"subscriber_id": sub.id,
		"subscribers":   count,
	}).Info("Alert feed subscriber connected")

	go f.writePump(sub)
	go f.readPump(sub)
}

// Broadcast pushes triggered alerts for one submission to all subscribers.
// Subscribers whose buffers are full miss the event; the review store is the
// durable record.
func (f *Feed) Broadcast(ctx context.Context, submission *domain.Submission, alerts []domain.TriggeredAlert) {
	if len(alerts) == 0 {
		return
	}

	event := FeedEvent{
		SubmissionID:  submission.ID,
		StudyID:       submission.StudyID,
		ParticipantID: submission.ParticipantID,
		InstrumentID:  submission.InstrumentID,
		Alerts:        alerts,
		EmittedAt:     time.Now().UTC(),
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, sub := range f.subscribers {
		select {
		case sub.send <- event:
		default:
			f.logger.WithField("subscriber_id", sub.id).Warn("Alert feed subscriber buffer full, event dropped")
		}
	}
}

// SubscriberCount returns the number of connected subscribers
func (f *Feed) SubscriberCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subscribers)
}

// Close disconnects all subscribers and stops accepting new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true

	for id, sub := range f.subscribers {
		close(sub.send)
		delete(f.subscribers, id)
	}

	f.logger.Info("Alert feed closed")
}

func (f *Feed) remove(sub *subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subscribers[sub.id]; ok {
		delete(f.subscribers, sub.id)
		close(sub.send)
	}
}

func (f *Feed) readPump(sub *subscriber) {
	defer func() {
		f.remove(sub)
		sub.conn.Close()
		f.logger.WithField("subscriber_id", sub.id).Info("Alert feed subscriber disconnected")
	}()

	sub.conn.SetReadLimit(512)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Subscribers are read-only; drain control frames until close
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *Feed) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sub.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
