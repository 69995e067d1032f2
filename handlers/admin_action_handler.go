package handlers

import (
	"net/http"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/utils"
	"go.uber.org/zap"
)

// AdminActionListResponse is the body of GET /api/v1/admin-actions
type AdminActionListResponse struct {
	Actions []*models.AdminAction `json:"actions"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
}

// AdminActionHandler serves the operator action trail
type AdminActionHandler struct {
	repo   repositories.AdminActionRepository
	logger *zap.Logger
}

// NewAdminActionHandler creates a new AdminActionHandler
func NewAdminActionHandler(repo repositories.AdminActionRepository, logger *zap.Logger) *AdminActionHandler {
	return &AdminActionHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/admin-actions
func (h *AdminActionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parsePagination(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	actions, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list admin actions", err), h.logger)
		return
	}
	if actions == nil {
		actions = []*models.AdminAction{}
	}

	_ = utils.WriteOK(w, AdminActionListResponse{
		Actions: actions,
		Limit:   limit,
		Offset:  offset,
	})
}
