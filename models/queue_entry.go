package models

import (
	"strings"
	"time"
)

// QueueStatus represents the lifecycle state of a warning email
type QueueStatus string

const (
	QueueStatusQueued   QueueStatus = "QUEUED"
	QueueStatusApproved QueueStatus = "APPROVED"
	QueueStatusCanceled QueueStatus = "CANCELED"
	QueueStatusSent     QueueStatus = "SENT"
	QueueStatusFailed   QueueStatus = "FAILED"
)

// ActiveQueueStatuses are the statuses that block a recipient from being queued again.
// FAILED is absent: a failed send may be re-queued by the next scan.
var ActiveQueueStatuses = []QueueStatus{
	QueueStatusQueued,
	QueueStatusApproved,
	QueueStatusCanceled,
	QueueStatusSent,
}

// allowedTransitions lists the forward-only edges of the queue state machine
var allowedTransitions = map[QueueStatus][]QueueStatus{
	QueueStatusQueued:   {QueueStatusApproved, QueueStatusCanceled},
	QueueStatusApproved: {QueueStatusSent, QueueStatusFailed},
}

// ParseQueueStatus parses a status string, case-insensitively
func ParseQueueStatus(s string) (QueueStatus, bool) {
	switch QueueStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case QueueStatusQueued:
		return QueueStatusQueued, true
	case QueueStatusApproved:
		return QueueStatusApproved, true
	case QueueStatusCanceled:
		return QueueStatusCanceled, true
	case QueueStatusSent:
		return QueueStatusSent, true
	case QueueStatusFailed:
		return QueueStatusFailed, true
	}
	return "", false
}

// CanTransitionTo reports whether the state machine allows moving from s to next
func (s QueueStatus) CanTransitionTo(next QueueStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for SENT, CANCELED and FAILED
func (s QueueStatus) IsTerminal() bool {
	return s == QueueStatusSent || s == QueueStatusCanceled || s == QueueStatusFailed
}

// BlocksRequeue returns true if an entry in this status prevents a new entry for the same recipient
func (s QueueStatus) BlocksRequeue() bool {
	return s != QueueStatusFailed
}

// QueueEntry represents one pending or handled warning email
type QueueEntry struct {
	ID                int64       `json:"id" db:"id"`
	RecipientEmail    string      `json:"recipient_email" db:"recipient_email"`
	RecipientName     string      `json:"recipient_name" db:"recipient_name"`
	Subject           string      `json:"subject" db:"subject"`
	Body              string      `json:"body" db:"body"`
	TemplateID        string      `json:"template_id" db:"template_id"`
	Status            QueueStatus `json:"status" db:"status"`
	Role              string      `json:"role" db:"role"`
	ActivityCount     int         `json:"activity_count" db:"activity_count"`
	Threshold         int         `json:"threshold" db:"threshold"`
	ProviderMessageID *string     `json:"provider_message_id,omitempty" db:"provider_message_id"`
	SentAt            *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	OpenedAt          *time.Time  `json:"opened_at,omitempty" db:"opened_at"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the QueueEntry model
func (QueueEntry) TableName() string {
	return "queue_entries"
}

// Opened reports whether the provider has reported an open for this entry
func (q *QueueEntry) Opened() bool {
	return q.OpenedAt != nil
}

// QueueFilter narrows queue listings
type QueueFilter struct {
	Status *QueueStatus
	Limit  int
	Offset int
}

// QueueCounts is the number of entries per status
type QueueCounts map[QueueStatus]int
