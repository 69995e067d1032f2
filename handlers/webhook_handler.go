package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/queue"
	"github.com/clubpulse/activity-monitor/utils"
	"go.uber.org/zap"
)

const maxWebhookBytes = 1 << 20

// WebhookEventHandler applies provider events
type WebhookEventHandler interface {
	HandleEvent(ctx context.Context, event *queue.WebhookEvent) (queue.TrackOutcome, error)
}

// WebhookHandler receives email provider webhooks
type WebhookHandler struct {
	tracker WebhookEventHandler
	logger  *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(tracker WebhookEventHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// HandleEmailEvent handles POST /webhooks/email.
// Every well-formed event is acknowledged with 200, including types we ignore and unknown message ids.
func (h *WebhookHandler) HandleEmailEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Failed to read request body", nil)
		return
	}

	event, err := queue.ParseWebhookEvent(body)
	if err != nil {
		h.logger.Warn("malformed webhook", zap.String("request_id", requestID), zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	// ignored and unmatched events are acknowledged with 200; storage failures return 500
	// so the provider retries, which is safe because recording an open is idempotent
	outcome, err := h.tracker.HandleEvent(ctx, event)
	if err != nil {
		if !services.IsValidationError(err) {
			h.logger.Error("failed to apply webhook",
				zap.String("request_id", requestID),
				zap.String("type", event.Type),
				zap.String("email_id", event.Data.EmailID),
				zap.Error(err))
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]string{"outcome": string(outcome)})
}
