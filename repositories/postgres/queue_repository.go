package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"go.uber.org/zap"
)

const activeRecipientIndex = "ux_queue_entries_active_recipient"

const queueColumns = `id, recipient_email, recipient_name, subject, body, template_id, status, role,
		       activity_count, threshold, provider_message_id, sent_at, opened_at, created_at, updated_at`

// QueueRepository implements the repositories.QueueRepository interface
type QueueRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewQueueRepository creates a new queue repository
func NewQueueRepository(db *DB, logger *zap.Logger) repositories.QueueRepository {
	return &QueueRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueEntry(row rowScanner) (*models.QueueEntry, error) {
	entry := &models.QueueEntry{}
	var messageID sql.NullString
	var sentAt, openedAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.RecipientEmail,
		&entry.RecipientName,
		&entry.Subject,
		&entry.Body,
		&entry.TemplateID,
		&entry.Status,
		&entry.Role,
		&entry.ActivityCount,
		&entry.Threshold,
		&messageID,
		&sentAt,
		&openedAt,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if messageID.Valid {
		entry.ProviderMessageID = &messageID.String
	}
	if sentAt.Valid {
		entry.SentAt = &sentAt.Time
	}
	if openedAt.Valid {
		entry.OpenedAt = &openedAt.Time
	}
	return entry, nil
}

// Insert inserts a new QUEUED entry
func (r *QueueRepository) Insert(ctx context.Context, entry *models.QueueEntry) error {
	query := `
		INSERT INTO queue_entries (
			recipient_email, recipient_name, subject, body, template_id, status, role,
			activity_count, threshold
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	if entry.Status == "" {
		entry.Status = models.QueueStatusQueued
	}

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		entry.RecipientEmail,
		entry.RecipientName,
		entry.Subject,
		entry.Body,
		entry.TemplateID,
		entry.Status,
		entry.Role,
		entry.ActivityCount,
		entry.Threshold,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, activeRecipientIndex) {
			return repositories.ErrDuplicateActiveEntry
		}
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}

	r.logger.Debug("queue entry inserted",
		zap.Int64("id", entry.ID),
		zap.String("template_id", entry.TemplateID))
	return nil
}

// GetByID retrieves an entry by ID
func (r *QueueRepository) GetByID(ctx context.Context, id int64) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE id = $1`

	entry, err := scanQueueEntry(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}
	return entry, nil
}

// GetByProviderMessageID retrieves an entry by the provider's message id
func (r *QueueRepository) GetByProviderMessageID(ctx context.Context, messageID string) (*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries WHERE provider_message_id = $1`

	entry, err := scanQueueEntry(GetExecutor(ctx, r.db).QueryRowContext(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get queue entry by message id: %w", err)
	}
	return entry, nil
}

// HasActiveEntry reports whether the recipient holds a non-FAILED entry
func (r *QueueRepository) HasActiveEntry(ctx context.Context, email string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM queue_entries
			WHERE lower(recipient_email) = lower($1) AND status <> 'FAILED'
		)
	`

	var exists bool
	if err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check active queue entry: %w", err)
	}
	return exists, nil
}

// List retrieves entries, newest first
func (r *QueueRepository) List(ctx context.Context, filter models.QueueFilter) ([]*models.QueueEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	if filter.Status != nil {
		query := `SELECT ` + queueColumns + ` FROM queue_entries
		WHERE status = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
		return r.queryEntries(ctx, query, *filter.Status, limit, filter.Offset)
	}

	query := `SELECT ` + queueColumns + ` FROM queue_entries
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	return r.queryEntries(ctx, query, limit, filter.Offset)
}

// ListByStatus retrieves every entry in a status, oldest first
func (r *QueueRepository) ListByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueEntry, error) {
	query := `SELECT ` + queueColumns + ` FROM queue_entries
		WHERE status = $1
		ORDER BY created_at ASC, id ASC`
	return r.queryEntries(ctx, query, status)
}

// CountByStatus returns the number of entries per status
func (r *QueueRepository) CountByStatus(ctx context.Context) (models.QueueCounts, error) {
	query := `SELECT status, COUNT(*) FROM queue_entries GROUP BY status`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue entries: %w", err)
	}
	defer rows.Close()

	counts := models.QueueCounts{}
	for rows.Next() {
		var status models.QueueStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan queue count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue counts: %w", err)
	}
	return counts, nil
}

// TransitionStatus moves an entry from one status to another with a guarded update
func (r *QueueRepository) TransitionStatus(ctx context.Context, id int64, from, to models.QueueStatus) (*models.QueueEntry, error) {
	query := `
		UPDATE queue_entries
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + queueColumns

	executor := GetExecutor(ctx, r.db)
	entry, err := scanQueueEntry(executor.QueryRowContext(ctx, query, id, from, to))
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to transition queue entry: %w", err)
	}

	var current models.QueueStatus
	err = executor.QueryRowContext(ctx, `SELECT status FROM queue_entries WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load queue entry status: %w", err)
	}
	return nil, fmt.Errorf("%w: entry %d is %s", repositories.ErrStatusMismatch, id, current)
}

// TransitionAll moves every entry in from to to
func (r *QueueRepository) TransitionAll(ctx context.Context, from, to models.QueueStatus) ([]int64, error) {
	query := `
		UPDATE queue_entries
		SET status = $2, updated_at = NOW()
		WHERE status = $1
		RETURNING id
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to transition queue entries: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entry ids: %w", err)
	}
	return ids, nil
}

// MarkSent records a successful delivery
func (r *QueueRepository) MarkSent(ctx context.Context, id int64, messageID string, sentAt time.Time) error {
	query := `
		UPDATE queue_entries
		SET status = 'SENT', provider_message_id = NULLIF($2, ''), sent_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'APPROVED'
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, messageID, sentAt)
	if err != nil {
		return fmt.Errorf("failed to mark queue entry sent: %w", err)
	}
	return requireAffected(result, repositories.ErrStatusMismatch)
}

// MarkFailed moves a non-terminal entry to FAILED
func (r *QueueRepository) MarkFailed(ctx context.Context, id int64) error {
	query := `
		UPDATE queue_entries
		SET status = 'FAILED', updated_at = NOW()
		WHERE id = $1 AND status IN ('QUEUED', 'APPROVED')
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue entry failed: %w", err)
	}
	return requireAffected(result, repositories.ErrStatusMismatch)
}

// MarkOpened sets opened_at once on a SENT entry
func (r *QueueRepository) MarkOpened(ctx context.Context, id int64, openedAt time.Time) (bool, error) {
	query := `
		UPDATE queue_entries
		SET opened_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'SENT' AND opened_at IS NULL
	`

	result, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, id, openedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark queue entry opened: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *QueueRepository) queryEntries(ctx context.Context, query string, args ...interface{}) ([]*models.QueueEntry, error) {
	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueueEntry
	for rows.Next() {
		entry, err := scanQueueEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}
	return entries, nil
}

func requireAffected(result sql.Result, notAffected error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return notAffected
	}
	return nil
}
