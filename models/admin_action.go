package models

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// AdminActionType represents the kind of operator action being recorded
type AdminActionType string

const (
	AdminActionQueueApproved     AdminActionType = "queue_entry_approved"
	AdminActionQueueCanceled     AdminActionType = "queue_entry_canceled"
	AdminActionQueueBulkApproved AdminActionType = "queue_bulk_approved"
	AdminActionThresholdUpdated  AdminActionType = "threshold_updated"
	AdminActionThresholdDeleted  AdminActionType = "threshold_deleted"
	AdminActionScanTriggered     AdminActionType = "scan_triggered"
	AdminActionDispatchTriggered AdminActionType = "dispatch_triggered"
)

// AdminAction is an immutable record of an operator's approve/cancel/threshold-change action
type AdminAction struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	ActorEmail string          `json:"actor_email" db:"actor_email"`
	Action     AdminActionType `json:"action" db:"action"`
	TargetType string          `json:"target_type" db:"target_type"` // queue_entry, role_threshold, job
	TargetID   *string         `json:"target_id,omitempty" db:"target_id"`
	Details    json.RawMessage `json:"details" db:"details"` // JSONB
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the AdminAction model
func (AdminAction) TableName() string {
	return "admin_actions"
}

// NewAdminAction creates a new AdminAction instance
func NewAdminAction(actor Actor, action AdminActionType, targetType string) *AdminAction {
	return &AdminAction{
		ID:         uuid.New(),
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     action,
		TargetType: targetType,
		Details:    json.RawMessage(`{}`),
		CreatedAt:  time.Now().UTC(),
	}
}

// WithTarget sets the target identifier
func (a *AdminAction) WithTarget(targetID string) *AdminAction {
	a.TargetID = &targetID
	return a
}

// WithQueueEntry sets a queue entry as the target
func (a *AdminAction) WithQueueEntry(id int64) *AdminAction {
	return a.WithTarget(strconv.FormatInt(id, 10))
}

// WithDetails sets the details
func (a *AdminAction) WithDetails(details interface{}) *AdminAction {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}
