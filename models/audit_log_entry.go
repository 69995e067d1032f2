package models

import (
	"time"
)

// AuditLogEntry is the historical record of a warning event. It mirrors the lifecycle of the
// QueueEntry it is linked to and is kept for reporting after the queue row is gone or re-queued.
type AuditLogEntry struct {
	ID             int64       `json:"id" db:"id"`
	QueueEntryID   int64       `json:"queue_entry_id" db:"queue_entry_id"`
	RecipientEmail string      `json:"recipient_email" db:"recipient_email"`
	RecipientName  string      `json:"recipient_name" db:"recipient_name"`
	TemplateID     string      `json:"template_id" db:"template_id"`
	Status         QueueStatus `json:"status" db:"status"`
	ActivityCount  int         `json:"activity_count" db:"activity_count"`
	Threshold      int         `json:"threshold" db:"threshold"`
	EmailOpened    bool        `json:"email_opened" db:"email_opened"`
	OpenedAt       *time.Time  `json:"opened_at,omitempty" db:"opened_at"`
	SentAt         *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the AuditLogEntry model
func (AuditLogEntry) TableName() string {
	return "audit_log_entries"
}

// NewAuditLogEntry creates the QUEUED history row for a freshly inserted queue entry
func NewAuditLogEntry(entry *QueueEntry) *AuditLogEntry {
	return &AuditLogEntry{
		QueueEntryID:   entry.ID,
		RecipientEmail: entry.RecipientEmail,
		RecipientName:  entry.RecipientName,
		TemplateID:     entry.TemplateID,
		Status:         QueueStatusQueued,
		ActivityCount:  entry.ActivityCount,
		Threshold:      entry.Threshold,
	}
}
