package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

const auditLogColumns = `id, queue_entry_id, recipient_email, recipient_name, template_id, status,
		       activity_count, threshold, email_opened, opened_at, sent_at, created_at, updated_at`

// AuditLogRepository implements the repositories.AuditLogRepository interface
type AuditLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *DB, logger *zap.Logger) repositories.AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

func scanAuditLogEntry(row rowScanner) (*models.AuditLogEntry, error) {
	entry := &models.AuditLogEntry{}
	var openedAt, sentAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.QueueEntryID,
		&entry.RecipientEmail,
		&entry.RecipientName,
		&entry.TemplateID,
		&entry.Status,
		&entry.ActivityCount,
		&entry.Threshold,
		&entry.EmailOpened,
		&openedAt,
		&sentAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if openedAt.Valid {
		entry.OpenedAt = &openedAt.Time
	}
	if sentAt.Valid {
		entry.SentAt = &sentAt.Time
	}
	return entry, nil
}

// Insert inserts the history row for a queue entry
func (r *AuditLogRepository) Insert(ctx context.Context, entry *models.AuditLogEntry) error {
	query := `
		INSERT INTO audit_log_entries (
			queue_entry_id, recipient_email, recipient_name, template_id, status,
			activity_count, threshold
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query,
		entry.QueueEntryID,
		entry.RecipientEmail,
		entry.RecipientName,
		entry.TemplateID,
		entry.Status,
		entry.ActivityCount,
		entry.Threshold,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to insert audit log entry: %w", err)
	}

	r.logger.Debug("audit log entry inserted",
		zap.Int64("id", entry.ID),
		zap.Int64("queue_entry_id", entry.QueueEntryID))
	return nil
}

// UpdateStatus mirrors a queue entry status change
func (r *AuditLogRepository) UpdateStatus(ctx context.Context, queueEntryID int64, status models.QueueStatus) error {
	query := `
		UPDATE audit_log_entries
		SET status = $2, updated_at = NOW()
		WHERE queue_entry_id = $1
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, queueEntryID, status)
	if err != nil {
		return fmt.Errorf("failed to update audit log status: %w", err)
	}
	return requireAffected(result, repositories.ErrNotFound)
}

// UpdateStatusBulk mirrors a bulk status change
func (r *AuditLogRepository) UpdateStatusBulk(ctx context.Context, queueEntryIDs []int64, status models.QueueStatus) error {
	if len(queueEntryIDs) == 0 {
		return nil
	}

	query := `
		UPDATE audit_log_entries
		SET status = $2, updated_at = NOW()
		WHERE queue_entry_id = ANY($1)
	`

	if _, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, pq.Array(queueEntryIDs), status); err != nil {
		return fmt.Errorf("failed to bulk update audit log status: %w", err)
	}
	return nil
}

// MarkSent records the send timestamp and SENT status
func (r *AuditLogRepository) MarkSent(ctx context.Context, queueEntryID int64, sentAt time.Time) error {
	query := `
		UPDATE audit_log_entries
		SET status = 'SENT', sent_at = $2, updated_at = NOW()
		WHERE queue_entry_id = $1
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, queueEntryID, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark audit log sent: %w", err)
	}
	return requireAffected(result, repositories.ErrNotFound)
}

// MarkOpened propagates an open. An already opened row keeps its first timestamp.
func (r *AuditLogRepository) MarkOpened(ctx context.Context, queueEntryID int64, openedAt time.Time) error {
	query := `
		UPDATE audit_log_entries
		SET email_opened = TRUE, opened_at = COALESCE(opened_at, $2), updated_at = NOW()
		WHERE queue_entry_id = $1
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, queueEntryID, openedAt)
	if err != nil {
		return fmt.Errorf("failed to mark audit log opened: %w", err)
	}
	return requireAffected(result, repositories.ErrNotFound)
}

// GetByQueueEntryID retrieves the history row for a queue entry
func (r *AuditLogRepository) GetByQueueEntryID(ctx context.Context, queueEntryID int64) (*models.AuditLogEntry, error) {
	query := `SELECT ` + auditLogColumns + ` FROM audit_log_entries WHERE queue_entry_id = $1`

	entry, err := scanAuditLogEntry(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, queueEntryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get audit log entry: %w", err)
	}
	return entry, nil
}

// ListByRecipient retrieves every history row for a recipient, newest first
func (r *AuditLogRepository) ListByRecipient(ctx context.Context, email string) ([]*models.AuditLogEntry, error) {
	query := `SELECT ` + auditLogColumns + ` FROM audit_log_entries
		WHERE lower(recipient_email) = lower($1)
		ORDER BY created_at DESC, id DESC`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, email)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditLogEntry
	for rows.Next() {
		entry, err := scanAuditLogEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log entries: %w", err)
	}
	return entries, nil
}
