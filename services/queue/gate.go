package queue

import (
	"context"
	"errors"

	"github.com/clubpulse/activity-monitor/internal/observability"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"go.uber.org/zap"
)

// errAuditLogMissing means the queue entry exists but its history row does not
var errAuditLogMissing = errors.New("audit log entry missing for queue entry")

// BulkResult reports a bulk approval
type BulkResult struct {
	Count int     `json:"count"`
	IDs   []int64 `json:"ids"`
}

// Gate is the human approval step between queueing and dispatch
type Gate struct {
	queue        repositories.QueueRepository
	auditLogs    repositories.AuditLogRepository
	adminActions repositories.AdminActionRepository
	txMgr        repositories.TransactionManager
	publisher    realtime.Publisher
	metrics      *observability.Metrics
	logger       *zap.Logger
	adminRoles   []string
}

// NewGate creates a new Gate. adminRoles lists the session roles allowed to approve.
func NewGate(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	publisher realtime.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
	adminRoles []string,
) *Gate {
	return &Gate{
		queue:        repos.Queue,
		auditLogs:    repos.AuditLogs,
		adminActions: repos.AdminActions,
		txMgr:        txMgr,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		adminRoles:   adminRoles,
	}
}

// Transition moves a QUEUED entry to APPROVED or CANCELED
func (g *Gate) Transition(ctx context.Context, actor models.Actor, id int64, target models.QueueStatus) (*models.QueueEntry, error) {
	if target != models.QueueStatusApproved && target != models.QueueStatusCanceled {
		return nil, services.ErrInvalidTransition.
			WithDetail("status", string(target)).
			WithDetail("allowed", []string{string(models.QueueStatusApproved), string(models.QueueStatusCanceled)})
	}
	if !actor.HasAnyRole(g.adminRoles) {
		return nil, services.ErrUnauthorized
	}

	action := models.AdminActionQueueApproved
	if target == models.QueueStatusCanceled {
		action = models.AdminActionQueueCanceled
	}

	entry, err := services.WithTransactionResult(ctx, g.txMgr, func(txCtx context.Context) (*models.QueueEntry, error) {
		entry, err := g.queue.TransitionStatus(txCtx, id, models.QueueStatusQueued, target)
		if err != nil {
			return nil, err
		}
		if err := g.auditLogs.UpdateStatus(txCtx, id, target); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, errAuditLogMissing
			}
			return nil, err
		}

		record := models.NewAdminAction(actor, action, "queue_entry").
			WithQueueEntry(id).
			WithDetails(map[string]interface{}{
				"from":      models.QueueStatusQueued,
				"to":        target,
				"recipient": entry.RecipientEmail,
			})
		if err := g.adminActions.Insert(txCtx, record); err != nil {
			return nil, err
		}
		return entry, nil
	})
	if err != nil {
		return nil, g.transitionError(ctx, id, err)
	}

	g.metrics.QueueTransition(string(target), 1)
	publish(g.publisher, EventUpdated, map[string]interface{}{"id": id, "status": target})

	g.logger.Info("queue entry transitioned",
		zap.Int64("id", id),
		zap.String("status", string(target)),
		zap.String("actor_id", actor.ID))

	return entry, nil
}

func (g *Gate) transitionError(ctx context.Context, id int64, err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return services.ErrQueueEntryNotFound.WithDetail("id", id)
	case errors.Is(err, repositories.ErrStatusMismatch):
		conflict := services.ErrStatusConflict.
			WithDetail("id", id).
			WithDetail("expected", string(models.QueueStatusQueued))
		if current, getErr := g.queue.GetByID(ctx, id); getErr == nil {
			conflict = conflict.WithDetail("status", string(current.Status))
		}
		return conflict
	}
	g.logger.Error("failed to transition queue entry", zap.Int64("id", id), zap.Error(err))
	return services.WrapInternal("failed to transition queue entry", err)
}

// ApproveAll approves every QUEUED entry in one transaction and records a single summarizing action
func (g *Gate) ApproveAll(ctx context.Context, actor models.Actor) (*BulkResult, error) {
	if !actor.HasAnyRole(g.adminRoles) {
		return nil, services.ErrUnauthorized
	}

	ids, err := services.WithTransactionResult(ctx, g.txMgr, func(txCtx context.Context) ([]int64, error) {
		ids, err := g.queue.TransitionAll(txCtx, models.QueueStatusQueued, models.QueueStatusApproved)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return ids, nil
		}
		if err := g.auditLogs.UpdateStatusBulk(txCtx, ids, models.QueueStatusApproved); err != nil {
			return nil, err
		}

		record := models.NewAdminAction(actor, models.AdminActionQueueBulkApproved, "queue_entry").
			WithDetails(map[string]interface{}{"count": len(ids), "ids": ids})
		if err := g.adminActions.Insert(txCtx, record); err != nil {
			return nil, err
		}
		return ids, nil
	})
	if err != nil {
		g.logger.Error("failed to approve queue", zap.Error(err))
		return nil, services.WrapInternal("failed to approve queue", err)
	}
	if ids == nil {
		ids = []int64{}
	}

	if len(ids) > 0 {
		g.metrics.QueueTransition(string(models.QueueStatusApproved), len(ids))
		publish(g.publisher, EventUpdated, map[string]interface{}{"ids": ids, "status": models.QueueStatusApproved})
	}

	g.logger.Info("approved queued warnings", zap.Int("count", len(ids)), zap.String("actor_id", actor.ID))
	return &BulkResult{Count: len(ids), IDs: ids}, nil
}

// List returns entries for the dashboard, newest first
func (g *Gate) List(ctx context.Context, filter models.QueueFilter) ([]*models.QueueEntry, error) {
	entries, err := g.queue.List(ctx, filter)
	if err != nil {
		return nil, services.WrapInternal("failed to list queue", err)
	}
	if entries == nil {
		entries = []*models.QueueEntry{}
	}
	return entries, nil
}

// Counts returns the number of entries per status
func (g *Gate) Counts(ctx context.Context) (models.QueueCounts, error) {
	counts, err := g.queue.CountByStatus(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to count queue", err)
	}
	return counts, nil
}

// Get returns one entry including its stored body
func (g *Gate) Get(ctx context.Context, id int64) (*models.QueueEntry, error) {
	entry, err := g.queue.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrQueueEntryNotFound.WithDetail("id", id)
		}
		return nil, services.WrapInternal("failed to get queue entry", err)
	}
	return entry, nil
}
