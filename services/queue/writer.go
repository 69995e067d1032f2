package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/clubpulse/activity-monitor/internal/observability"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/clubpulse/activity-monitor/services/realtime"
	"github.com/clubpulse/activity-monitor/services/templates"
	"go.uber.org/zap"
)

const reasonRenderFailed = "template render failed"

// WriteReport summarizes one Enqueue call
type WriteReport struct {
	Queued  int                  `json:"queued"`
	Skipped int                  `json:"skipped"`
	Entries []*models.QueueEntry `json:"-"`
	Errors  []models.RowError    `json:"errors"`
}

// Renderer produces the subject and body for a role bucket
type Renderer interface {
	Render(bucket templates.Bucket, data templates.Data, subjectPrefix string) (*templates.Rendered, error)
}

// Writer turns flagged members into QUEUED entries with their paired history rows
type Writer struct {
	queue     repositories.QueueRepository
	auditLogs repositories.AuditLogRepository
	txMgr     repositories.TransactionManager
	catalog   Renderer
	publisher realtime.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewWriter creates a new Writer
func NewWriter(
	repos *repositories.Repositories,
	txMgr repositories.TransactionManager,
	catalog Renderer,
	publisher realtime.Publisher,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Writer {
	return &Writer{
		queue:     repos.Queue,
		auditLogs: repos.AuditLogs,
		txMgr:     txMgr,
		catalog:   catalog,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Enqueue queues a warning for every flagged member that does not already hold an active entry.
// Render failures are reported per member and the batch continues. Storage failures abort the
// batch and return the partial report with the error.
func (w *Writer) Enqueue(ctx context.Context, flagged []models.FlaggedMember, settings Settings) (*WriteReport, error) {
	report := &WriteReport{Errors: []models.RowError{}}
	if settings.Aliases == nil {
		settings.Aliases = templates.DefaultAliases()
	}

	for _, member := range flagged {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		active, err := w.queue.HasActiveEntry(ctx, member.Email)
		if err != nil {
			w.logger.Error("failed to check active queue entry", zap.Int("row", member.Row), zap.Error(err))
			return report, services.WrapInternal("failed to check queue", err)
		}
		if active {
			report.Skipped++
			continue
		}

		bucket := settings.Aliases.Resolve(member.Role)
		rendered, err := w.catalog.Render(bucket, templates.Data{
			Name:          member.Name,
			ActivityCount: member.ActivityCount,
			Threshold:     member.Threshold,
			Role:          member.Role,
		}, settings.SubjectPrefix)
		if err != nil {
			w.logger.Warn("failed to render warning",
				zap.Int("row", member.Row),
				zap.String("template_id", string(bucket)),
				zap.Error(err))
			report.Errors = append(report.Errors, models.RowError{
				Row:    member.Row,
				Reason: fmt.Sprintf("%s: %v", reasonRenderFailed, err),
				Raw:    member.Raw,
			})
			continue
		}

		entry := &models.QueueEntry{
			RecipientEmail: member.Email,
			RecipientName:  member.Name,
			Subject:        rendered.Subject,
			Body:           rendered.Body,
			TemplateID:     rendered.TemplateID,
			Status:         models.QueueStatusQueued,
			Role:           member.Role,
			ActivityCount:  member.ActivityCount,
			Threshold:      member.Threshold,
		}

		err = services.WithTransaction(ctx, w.txMgr, func(txCtx context.Context) error {
			if err := w.queue.Insert(txCtx, entry); err != nil {
				return err
			}
			return w.auditLogs.Insert(txCtx, models.NewAuditLogEntry(entry))
		})
		if errors.Is(err, repositories.ErrDuplicateActiveEntry) {
			report.Skipped++
			continue
		}
		if err != nil {
			w.logger.Error("failed to queue warning", zap.Int("row", member.Row), zap.Error(err))
			return report, services.WrapInternal("failed to queue warning", err)
		}

		report.Queued++
		report.Entries = append(report.Entries, entry)
	}

	if report.Queued > 0 {
		w.metrics.QueueTransition(string(models.QueueStatusQueued), report.Queued)
		publish(w.publisher, EventCreated, map[string]int{"count": report.Queued})
	}

	w.logger.Info("enqueued warnings",
		zap.Int("flagged", len(flagged)),
		zap.Int("queued", report.Queued),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)))

	return report, nil
}
