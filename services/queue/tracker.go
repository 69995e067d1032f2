package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/clubpulse/activity-monitor/internal/observability"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"go.uber.org/zap"
)

// EventTypeOpened is the only provider event the tracker acts on
const EventTypeOpened = "email.opened"

// WebhookEvent is the email provider's webhook envelope
type WebhookEvent struct {
	Type      string      `json:"type"`
	CreatedAt *time.Time  `json:"created_at,omitempty"`
	Data      WebhookData `json:"data"`
}

// WebhookData is the event payload
type WebhookData struct {
	EmailID   string     `json:"email_id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	To        []string   `json:"to,omitempty"`
	Subject   string     `json:"subject,omitempty"`
}

// TrackOutcome describes what HandleEvent did with an event
type TrackOutcome string

const (
	TrackIgnored   TrackOutcome = "ignored"
	TrackUnmatched TrackOutcome = "unmatched"
	TrackDuplicate TrackOutcome = "duplicate"
	TrackOpened    TrackOutcome = "opened"
)

// ParseWebhookEvent decodes a webhook body. Only a malformed envelope is an error.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, services.ErrInvalidInput.WithDetail("reason", "malformed webhook payload")
	}
	if strings.TrimSpace(event.Type) == "" {
		return nil, services.ErrInvalidInput.WithDetail("reason", "missing event type")
	}
	return &event, nil
}

// Tracker records provider-reported opens
type Tracker struct {
	queue     repositories.QueueRepository
	auditLogs repositories.AuditLogRepository
	txMgr     repositories.TransactionManager
	publisher realtime.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewTracker creates a new Tracker
func NewTracker(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	publisher realtime.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Tracker {
	return &Tracker{
		queue:     repos.Queue,
		auditLogs: repos.AuditLogs,
		txMgr:     txMgr,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandleEvent applies an email.opened event to the matching SENT entry and its history row.
// Other event types and unknown message ids are acknowledged without changes.
func (t *Tracker) HandleEvent(ctx context.Context, event *WebhookEvent) (TrackOutcome, error) {
	if event == nil {
		return "", services.ErrInvalidInput.WithDetail("reason", "missing event")
	}
	if event.Type != EventTypeOpened {
		t.metrics.WebhookEvent(event.Type, string(TrackIgnored))
		return TrackIgnored, nil
	}

	messageID := strings.TrimSpace(event.Data.EmailID)
	if messageID == "" {
		return "", services.ErrInvalidInput.WithDetail("reason", "missing data.email_id")
	}

	openedAt := t.now()
	if event.Data.CreatedAt != nil {
		openedAt = event.Data.CreatedAt.UTC()
	}

	entry, err := t.queue.GetByProviderMessageID(ctx, messageID)
	if errors.Is(err, repositories.ErrNotFound) {
		t.logger.Info("open event for unknown message", zap.String("message_id", messageID))
		t.metrics.WebhookEvent(event.Type, string(TrackUnmatched))
		return TrackUnmatched, nil
	}
	if err != nil {
		return "", services.WrapInternal("failed to look up message", err)
	}

	outcome, err := services.WithTransactionResult(ctx, t.txMgr, func(txCtx context.Context) (TrackOutcome, error) {
		updated, err := t.queue.MarkOpened(txCtx, entry.ID, openedAt)
		if err != nil {
			return "", err
		}
		if !updated {
			return TrackDuplicate, nil
		}
		if err := t.auditLogs.MarkOpened(txCtx, entry.ID, openedAt); err != nil {
			return "", err
		}
		return TrackOpened, nil
	})
	if err != nil {
		t.logger.Error("failed to record open", zap.Int64("id", entry.ID), zap.Error(err))
		return "", services.WrapInternal("failed to record open", err)
	}

	t.metrics.WebhookEvent(event.Type, string(outcome))
	if outcome == TrackOpened {
		publish(t.publisher, EventOpened, map[string]interface{}{"id": entry.ID})
		t.logger.Info("email opened", zap.Int64("id", entry.ID), zap.String("message_id", messageID))
	}
	return outcome, nil
}
