package handlers

import (
	"context"
	"net/http"

	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/services/queue"
	"github.com/clubpulse/activity-monitor/services/scan"
	"github.com/clubpulse/activity-monitor/utils"
	"go.uber.org/zap"
)

// ScanRunner runs the activity scan
type ScanRunner interface {
	Run(ctx context.Context, actor models.Actor, settings scan.Settings) (*scan.Report, error)
}

// DispatchRunner sends approved warnings
type DispatchRunner interface {
	RunAs(ctx context.Context, actor models.Actor, settings queue.Settings) (*queue.DispatchReport, error)
}

// JobHandler exposes the scan and dispatch jobs to operators and to the cron caller
type JobHandler struct {
	scanner    ScanRunner
	dispatcher DispatchRunner
	settings   scan.Settings
	logger     *zap.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(scanner ScanRunner, dispatcher DispatchRunner, settings scan.Settings, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		scanner:    scanner,
		dispatcher: dispatcher,
		settings:   settings,
		logger:     logger,
	}
}

// HandleScan handles POST /api/v1/jobs/scan
func (h *JobHandler) HandleScan(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.scan(w, r, actor)
}

// HandleDispatch handles POST /api/v1/jobs/dispatch
func (h *JobHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	h.dispatch(w, r, actor)
}

// HandleCronScan handles POST /cron/scan. CronAuth has already checked the shared secret.
func (h *JobHandler) HandleCronScan(w http.ResponseWriter, r *http.Request) {
	h.scan(w, r, models.SystemActor)
}

// HandleCronDispatch handles POST /cron/dispatch
func (h *JobHandler) HandleCronDispatch(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, models.SystemActor)
}

func (h *JobHandler) scan(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	report, err := h.scanner.Run(ctx, actor, h.settings)
	if err != nil {
		h.logger.Warn("scan failed",
			zap.String("request_id", requestID),
			zap.String("actor", actor.ID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("scan completed",
		zap.String("request_id", requestID),
		zap.String("actor", actor.ID),
		zap.Int("flagged", report.Flagged),
		zap.Int("queued", report.Queued))

	_ = utils.WriteOKMessage(w, "Scan completed", report)
}

func (h *JobHandler) dispatch(w http.ResponseWriter, r *http.Request, actor models.Actor) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	report, err := h.dispatcher.RunAs(ctx, actor, h.settings.Queue)
	if err != nil {
		h.logger.Warn("dispatch failed",
			zap.String("request_id", requestID),
			zap.String("actor", actor.ID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOKMessage(w, "Dispatch completed", report)
}
