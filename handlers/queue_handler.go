package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/queue"
	"github.com/clubpulse/activity-monitor/utils"
	"go.uber.org/zap"
)

// QueueService defines the approval gate operations used by the dashboard
type QueueService interface {
	List(ctx context.Context, filter models.QueueFilter) ([]*models.QueueEntry, error)
	Counts(ctx context.Context) (models.QueueCounts, error)
	Get(ctx context.Context, id int64) (*models.QueueEntry, error)
	Transition(ctx context.Context, actor models.Actor, id int64, target models.QueueStatus) (*models.QueueEntry, error)
	ApproveAll(ctx context.Context, actor models.Actor) (*queue.BulkResult, error)
}

// TransitionRequest represents a request to move a queue entry to a new status
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// QueueListResponse is the body of GET /api/v1/queue
type QueueListResponse struct {
	Entries []*models.QueueEntry `json:"entries"`
	Counts  models.QueueCounts   `json:"counts"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// QueueHandler handles warning queue HTTP requests
type QueueHandler struct {
	service QueueService
	logger  *zap.Logger
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(service QueueService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{
		service: service,
		logger:  logger,
	}
}

// HandleList handles GET /api/v1/queue
func (h *QueueHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset, err := parsePagination(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	filter := models.QueueFilter{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := models.ParseQueueStatus(raw)
		if !ok {
			HandleServiceError(w, services.ErrInvalidStatus.WithDetail("status", raw), h.logger)
			return
		}
		filter.Status = &status
	}

	entries, err := h.service.List(ctx, filter)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	counts, err := h.service.Counts(ctx)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, QueueListResponse{
		Entries: entries,
		Counts:  counts,
		Limit:   limit,
		Offset:  offset,
	})
}

// HandleGet handles GET /api/v1/queue/{id}. The rendered body is included for preview.
func (h *QueueHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, entry)
}

// HandleApprove handles POST /api/v1/queue/{id}/approve
func (h *QueueHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.QueueStatusApproved)
}

// HandleCancel handles POST /api/v1/queue/{id}/cancel
func (h *QueueHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.QueueStatusCanceled)
}

// HandleTransition handles POST /api/v1/queue/{id}/transition
func (h *QueueHandler) HandleTransition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	status, ok := models.ParseQueueStatus(req.Status)
	if !ok {
		HandleServiceError(w, services.ErrInvalidStatus.WithDetail("status", req.Status), h.logger)
		return
	}

	h.transition(w, r, status)
}

func (h *QueueHandler) transition(w http.ResponseWriter, r *http.Request, target models.QueueStatus) {
	ctx := r.Context()

	actor, err := actorFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	id, err := parseID(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	entry, err := h.service.Transition(ctx, actor, id, target)
	if err != nil {
		h.logger.Info("queue transition rejected",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Int64("id", id),
			zap.String("target", string(target)),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOKMessage(w, "Entry "+strings.ToLower(string(entry.Status)), entry)
}

// HandleApproveAll handles POST /api/v1/queue/approve-all
func (h *QueueHandler) HandleApproveAll(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	result, err := h.service.ApproveAll(r.Context(), actor)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOKMessage(w, "Queued entries approved", result)
}
