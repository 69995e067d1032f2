package handlers

import (
	"context"
	"net/http"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ThresholdService defines the role threshold operations
type ThresholdService interface {
	List(ctx context.Context) ([]*models.RoleThreshold, error)
	Upsert(ctx context.Context, actor models.Actor, role string, threshold int) (*models.RoleThreshold, error)
	Delete(ctx context.Context, actor models.Actor, role string) error
}

// UpsertThresholdRequest represents a request to set a role threshold
type UpsertThresholdRequest struct {
	Threshold *int `json:"threshold" validate:"required,gte=0"`
}

// ThresholdListResponse is the body of GET /api/v1/thresholds
type ThresholdListResponse struct {
	DefaultThreshold int                     `json:"default_threshold"`
	Overrides        []*models.RoleThreshold `json:"overrides"`
}

// ThresholdHandler handles role threshold HTTP requests
type ThresholdHandler struct {
	service          ThresholdService
	defaultThreshold int
	logger           *zap.Logger
}

// NewThresholdHandler creates a new ThresholdHandler
func NewThresholdHandler(service ThresholdService, defaultThreshold int, logger *zap.Logger) *ThresholdHandler {
	return &ThresholdHandler{
		service:          service,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

// HandleList handles GET /api/v1/thresholds
func (h *ThresholdHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	overrides, err := h.service.List(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, ThresholdListResponse{
		DefaultThreshold: h.defaultThreshold,
		Overrides:        overrides,
	})
}

// HandleUpsert handles PUT /api/v1/thresholds/{role}
func (h *ThresholdHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	var req UpsertThresholdRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	threshold, err := h.service.Upsert(r.Context(), actor, chi.URLParam(r, "role"), *req.Threshold)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOKMessage(w, "Threshold saved", threshold)
}

// HandleDelete handles DELETE /api/v1/thresholds/{role}
func (h *ThresholdHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "role")); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	utils.WriteNoContent(w)
}
