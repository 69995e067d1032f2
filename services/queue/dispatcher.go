package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clubpulse/activity-monitor/clients/email"
	"github.com/clubpulse/activity-monitor/internal/observability"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"go.uber.org/zap"
)

// DispatchResult is the outcome for one entry
type DispatchResult struct {
	ID        int64              `json:"id"`
	Recipient string             `json:"recipient"`
	Status    models.QueueStatus `json:"status"`
	MessageID string             `json:"message_id,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// DispatchReport summarizes one dispatch run
type DispatchReport struct {
	Attempted int              `json:"attempted"`
	Sent      int              `json:"sent"`
	Failed    int              `json:"failed"`
	Results   []DispatchResult `json:"results"`
}

// Dispatcher sends APPROVED entries through the email provider
type Dispatcher struct {
	queue        repositories.QueueRepository
	auditLogs    repositories.AuditLogRepository
	adminActions repositories.AdminActionRepository
	txMgr        repositories.TransactionManager
	sender       email.Sender
	publisher    realtime.Publisher
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
	mu           sync.Mutex
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	sender email.Sender,
	publisher realtime.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		queue:        repos.Queue,
		auditLogs:    repos.AuditLogs,
		adminActions: repos.AdminActions,
		txMgr:        txMgr,
		sender:       sender,
		publisher:    publisher,
		metrics:      metrics,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// RunAs runs a dispatch for actor. Operator-triggered runs are recorded as an AdminAction.
func (d *Dispatcher) RunAs(ctx context.Context, actor models.Actor, settings Settings) (*DispatchReport, error) {
	report, err := d.Run(ctx, settings)
	if err != nil || actor.IsSystem() || d.adminActions == nil {
		return report, err
	}

	action := models.NewAdminAction(actor, models.AdminActionDispatchTriggered, "job").
		WithTarget("dispatch").
		WithDetails(map[string]int{"attempted": report.Attempted, "sent": report.Sent, "failed": report.Failed})
	if err := d.adminActions.Insert(ctx, action); err != nil {
		d.logger.Warn("failed to record dispatch trigger", zap.String("actor_id", actor.ID), zap.Error(err))
	}
	return report, nil
}

// Run sends every APPROVED entry once. Failed sends are marked FAILED and not retried.
// Only one run may be active per process; an overlapping call returns ErrDispatchInProgress.
func (d *Dispatcher) Run(ctx context.Context, settings Settings) (*DispatchReport, error) {
	if d.sender == nil {
		return nil, services.ErrEmailNotConfigured
	}
	if !d.mu.TryLock() {
		return nil, services.ErrDispatchInProgress
	}
	defer d.mu.Unlock()

	entries, err := d.queue.ListByStatus(ctx, models.QueueStatusApproved)
	if err != nil {
		return nil, services.WrapInternal("failed to load approved entries", err)
	}

	report := &DispatchReport{Results: make([]DispatchResult, 0, len(entries))}
	for _, entry := range entries {
		if ctx.Err() != nil {
			d.logger.Warn("dispatch interrupted", zap.Int("remaining", len(entries)-report.Attempted))
			break
		}

		report.Attempted++
		result := d.dispatchOne(ctx, entry, settings)
		if result.Status == models.QueueStatusSent {
			report.Sent++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, result)
	}

	publish(d.publisher, EventDispatched, map[string]int{"sent": report.Sent, "failed": report.Failed})

	d.logger.Info("dispatch completed",
		zap.String("provider", d.sender.Name()),
		zap.Int("attempted", report.Attempted),
		zap.Int("sent", report.Sent),
		zap.Int("failed", report.Failed))

	return report, ctx.Err()
}

func (d *Dispatcher) dispatchOne(ctx context.Context, entry *models.QueueEntry, settings Settings) DispatchResult {
	result := DispatchResult{ID: entry.ID, Recipient: entry.RecipientEmail}

	sent, err := d.send(ctx, entry, settings)
	if err != nil {
		d.logger.Warn("email send failed",
			zap.Int64("id", entry.ID),
			zap.String("provider", d.sender.Name()),
			zap.Error(err))
		return d.fail(ctx, result, err)
	}

	// the provider accepted the message, so the delivery is recorded even if ctx is canceled
	sentAt := d.now()
	writeCtx := context.WithoutCancel(ctx)
	err = services.WithTransaction(writeCtx, d.txMgr, func(txCtx context.Context) error {
		if err := d.queue.MarkSent(txCtx, entry.ID, sent.ID, sentAt); err != nil {
			return err
		}
		return d.auditLogs.MarkSent(txCtx, entry.ID, sentAt)
	})
	if err != nil {
		// the entry must still leave APPROVED
		d.logger.Error("failed to record sent email",
			zap.Int64("id", entry.ID),
			zap.String("message_id", sent.ID),
			zap.Error(err))
		return d.fail(ctx, result, fmt.Errorf("failed to record delivery: %w", err))
	}

	d.metrics.DispatchOutcome("sent")
	d.metrics.QueueTransition(string(models.QueueStatusSent), 1)

	result.Status = models.QueueStatusSent
	result.MessageID = sent.ID
	return result
}

// send calls the provider and converts a panic into an error
func (d *Dispatcher) send(ctx context.Context, entry *models.QueueEntry, settings Settings) (res *email.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("email sender panicked: %v", r)
		}
	}()

	res, err = d.sender.Send(ctx, email.Message{
		To:      entry.RecipientEmail,
		Subject: entry.Subject,
		HTML:    entry.Body,
		From:    settings.From,
		ReplyTo: settings.ReplyTo,
	})
	if err == nil && (res == nil || res.ID == "") {
		err = errors.New("email provider returned no message id")
	}
	return res, err
}

func (d *Dispatcher) fail(ctx context.Context, result DispatchResult, cause error) DispatchResult {
	result.Status = models.QueueStatusFailed
	result.Error = cause.Error()

	// written even when ctx was canceled mid-send
	writeCtx := context.WithoutCancel(ctx)
	err := services.WithTransaction(writeCtx, d.txMgr, func(txCtx context.Context) error {
		if err := d.queue.MarkFailed(txCtx, result.ID); err != nil {
			return err
		}
		return d.auditLogs.UpdateStatus(txCtx, result.ID, models.QueueStatusFailed)
	})
	if err != nil {
		d.logger.Error("failed to mark queue entry failed", zap.Int64("id", result.ID), zap.Error(err))
	}

	d.metrics.DispatchOutcome("failed")
	d.metrics.QueueTransition(string(models.QueueStatusFailed), 1)
	return result
}
