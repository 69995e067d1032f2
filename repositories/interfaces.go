package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/clubpulse/activity-monitor/models"
)

var (
	// ErrNotFound is returned when a row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateActiveEntry is returned when the recipient already holds a non-FAILED queue entry
	ErrDuplicateActiveEntry = errors.New("recipient already has an active queue entry")

	// ErrStatusMismatch is returned when a guarded update finds the row in another status
	ErrStatusMismatch = errors.New("queue entry is not in the expected status")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context; repositories called with it join the transaction
	Context() context.Context
}

// QueueRepository handles warning queue data operations
type QueueRepository interface {
	// Insert inserts a QUEUED entry and fills ID and timestamps.
	// Returns ErrDuplicateActiveEntry when the active-recipient unique index rejects the row.
	Insert(ctx context.Context, entry *models.QueueEntry) error

	// GetByID retrieves an entry by ID
	GetByID(ctx context.Context, id int64) (*models.QueueEntry, error)

	// GetByProviderMessageID retrieves an entry by the email provider's message id
	GetByProviderMessageID(ctx context.Context, messageID string) (*models.QueueEntry, error)

	// HasActiveEntry reports whether the recipient has an entry in any of models.ActiveQueueStatuses
	HasActiveEntry(ctx context.Context, email string) (bool, error)

	// List retrieves entries, newest first
	List(ctx context.Context, filter models.QueueFilter) ([]*models.QueueEntry, error)

	// ListByStatus retrieves every entry in a status, oldest first
	ListByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueEntry, error)

	// CountByStatus returns the number of entries per status
	CountByStatus(ctx context.Context) (models.QueueCounts, error)

	// TransitionStatus moves an entry from one status to another.
	// Returns ErrNotFound if the id does not exist and ErrStatusMismatch if it is not in from.
	TransitionStatus(ctx context.Context, id int64, from, to models.QueueStatus) (*models.QueueEntry, error)

	// TransitionAll moves every entry in from to to and returns the affected ids
	TransitionAll(ctx context.Context, from, to models.QueueStatus) ([]int64, error)

	// MarkSent records a successful delivery for an APPROVED entry
	MarkSent(ctx context.Context, id int64, messageID string, sentAt time.Time) error

	// MarkFailed moves an entry to FAILED regardless of its current non-terminal status
	MarkFailed(ctx context.Context, id int64) error

	// MarkOpened sets opened_at on a SENT entry that has not been opened yet.
	// Returns false when nothing matched.
	MarkOpened(ctx context.Context, id int64, openedAt time.Time) (bool, error)
}

// AuditLogRepository handles warning history operations
type AuditLogRepository interface {
	// Insert inserts the history row linked to a queue entry
	Insert(ctx context.Context, entry *models.AuditLogEntry) error

	// UpdateStatus mirrors a queue entry status change
	UpdateStatus(ctx context.Context, queueEntryID int64, status models.QueueStatus) error

	// UpdateStatusBulk mirrors a bulk status change
	UpdateStatusBulk(ctx context.Context, queueEntryIDs []int64, status models.QueueStatus) error

	// MarkSent records the send timestamp
	MarkSent(ctx context.Context, queueEntryID int64, sentAt time.Time) error

	// MarkOpened propagates an open
	MarkOpened(ctx context.Context, queueEntryID int64, openedAt time.Time) error

	// GetByQueueEntryID retrieves the history row for a queue entry
	GetByQueueEntryID(ctx context.Context, queueEntryID int64) (*models.AuditLogEntry, error)

	// ListByRecipient retrieves every history row for a recipient, newest first
	ListByRecipient(ctx context.Context, email string) ([]*models.AuditLogEntry, error)
}

// RoleThresholdRepository handles per-role threshold overrides
type RoleThresholdRepository interface {
	// List retrieves every override
	List(ctx context.Context) ([]*models.RoleThreshold, error)

	// Get retrieves one override
	Get(ctx context.Context, role string) (*models.RoleThreshold, error)

	// Upsert creates or replaces an override
	Upsert(ctx context.Context, threshold *models.RoleThreshold) error

	// Delete removes an override
	Delete(ctx context.Context, role string) error
}

// AdminActionRepository handles the operator action trail
type AdminActionRepository interface {
	// Insert appends an action
	Insert(ctx context.Context, action *models.AdminAction) error

	// List retrieves actions newest first with pagination
	List(ctx context.Context, limit, offset int) ([]*models.AdminAction, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Queue        QueueRepository
	AuditLogs    AuditLogRepository
	Thresholds   RoleThresholdRepository
	AdminActions AdminActionRepository
}
