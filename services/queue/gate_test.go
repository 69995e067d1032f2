package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/clubpulse/activity-monitor/repositories/mocks"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestGate(set *mocks.Set, pub *recordingPublisher) *Gate {
	return NewGate(set.Repositories(), set.Tx, pub, nil, zap.NewNop(), []string{"admin"})
}

func TestGate_Transition_Approve(t *testing.T) {
	set := mocks.NewSet()
	pub := &recordingPublisher{}
	gate := newTestGate(set, pub)

	approved := &models.QueueEntry{ID: 42, RecipientEmail: "a@x.com", Status: models.QueueStatusApproved}
	set.Queue.On("TransitionStatus", mock.MatchedBy(mocks.InTx), int64(42), models.QueueStatusQueued, models.QueueStatusApproved).
		Return(approved, nil)
	set.AuditLogs.On("UpdateStatus", mock.MatchedBy(mocks.InTx), int64(42), models.QueueStatusApproved).Return(nil)
	set.AdminActions.On("Insert", mock.MatchedBy(mocks.InTx), mock.MatchedBy(func(a *models.AdminAction) bool {
		var details map[string]string
		_ = json.Unmarshal(a.Details, &details)
		return a.Action == models.AdminActionQueueApproved &&
			a.ActorID == "u-1" &&
			a.TargetID != nil && *a.TargetID == "42" &&
			details["to"] == "APPROVED"
	})).Return(nil).Once()

	entry, err := gate.Transition(context.Background(), adminActor, 42, models.QueueStatusApproved)

	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusApproved, entry.Status)
	assert.Equal(t, 1, set.Tx.Commits)
	assert.Equal(t, []string{"queue:updated"}, pub.names())
	set.AssertExpectations(t)
}

func TestGate_Transition_Cancel(t *testing.T) {
	set := mocks.NewSet()
	gate := newTestGate(set, &recordingPublisher{})

	set.Queue.On("TransitionStatus", mock.Anything, int64(7), models.QueueStatusQueued, models.QueueStatusCanceled).
		Return(&models.QueueEntry{ID: 7, Status: models.QueueStatusCanceled}, nil)
	set.AuditLogs.On("UpdateStatus", mock.Anything, int64(7), models.QueueStatusCanceled).Return(nil)
	set.AdminActions.On("Insert", mock.Anything, mock.MatchedBy(func(a *models.AdminAction) bool {
		return a.Action == models.AdminActionQueueCanceled
	})).Return(nil)

	_, err := gate.Transition(context.Background(), adminActor, 7, models.QueueStatusCanceled)
	require.NoError(t, err)
	set.AssertExpectations(t)
}

func TestGate_Transition_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		actor  models.Actor
		target models.QueueStatus
		check  func(error) bool
	}{
		{"sent is not a gate target", adminActor, models.QueueStatusSent, services.IsValidationError},
		{"failed is not a gate target", adminActor, models.QueueStatusFailed, services.IsValidationError},
		{"queued is not a gate target", adminActor, models.QueueStatusQueued, services.IsValidationError},
		{"non admin", models.Actor{ID: "u-2", Roles: []string{"member"}}, models.QueueStatusApproved, services.IsUnauthorizedError},
		{"no roles", models.Actor{ID: "u-3"}, models.QueueStatusCanceled, services.IsUnauthorizedError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := mocks.NewSet()
			gate := newTestGate(set, &recordingPublisher{})

			_, err := gate.Transition(context.Background(), tt.actor, 1, tt.target)

			assert.True(t, tt.check(err), "unexpected error %v", err)
			set.Queue.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Zero(t, set.Tx.Commits+set.Tx.Rollbacks)
		})
	}
}

func TestGate_Transition_FromNonQueuedIsConflict(t *testing.T) {
	for _, current := range []models.QueueStatus{
		models.QueueStatusApproved, models.QueueStatusCanceled, models.QueueStatusSent, models.QueueStatusFailed,
	} {
		t.Run(string(current), func(t *testing.T) {
			set := mocks.NewSet()
			pub := &recordingPublisher{}
			gate := newTestGate(set, pub)

			set.Queue.On("TransitionStatus", mock.Anything, int64(9), models.QueueStatusQueued, models.QueueStatusApproved).
				Return(nil, fmt.Errorf("%w: entry 9 is %s", repositories.ErrStatusMismatch, current))
			set.Queue.On("GetByID", mock.Anything, int64(9)).Return(&models.QueueEntry{ID: 9, Status: current}, nil)

			_, err := gate.Transition(context.Background(), adminActor, 9, models.QueueStatusApproved)

			require.True(t, services.IsConflictError(err))
			assert.Equal(t, string(current), services.GetErrorDetails(err)["status"])
			assert.Equal(t, 1, set.Tx.Rollbacks)
			assert.Empty(t, pub.names())
			set.AuditLogs.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
			set.AdminActions.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
		})
	}
}

func TestGate_Transition_NotFound(t *testing.T) {
	set := mocks.NewSet()
	gate := newTestGate(set, &recordingPublisher{})

	set.Queue.On("TransitionStatus", mock.Anything, int64(404), models.QueueStatusQueued, models.QueueStatusApproved).
		Return(nil, repositories.ErrNotFound)

	_, err := gate.Transition(context.Background(), adminActor, 404, models.QueueStatusApproved)
	assert.True(t, services.IsNotFoundError(err))
}

func TestGate_Transition_MissingAuditRowIsInternal(t *testing.T) {
	set := mocks.NewSet()
	pub := &recordingPublisher{}
	gate := newTestGate(set, pub)

	set.Queue.On("TransitionStatus", mock.Anything, int64(9), models.QueueStatusQueued, models.QueueStatusApproved).
		Return(&models.QueueEntry{ID: 9, Status: models.QueueStatusApproved}, nil)
	set.AuditLogs.On("UpdateStatus", mock.Anything, int64(9), models.QueueStatusApproved).Return(repositories.ErrNotFound)

	_, err := gate.Transition(context.Background(), adminActor, 9, models.QueueStatusApproved)

	assert.True(t, services.IsInternalError(err))
	assert.False(t, services.IsNotFoundError(err))
	assert.Equal(t, 1, set.Tx.Rollbacks)
	set.AdminActions.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	assert.Empty(t, pub.names())
}

func TestGate_Transition_AdminActionFailureRollsBack(t *testing.T) {
	set := mocks.NewSet()
	pub := &recordingPublisher{}
	gate := newTestGate(set, pub)

	set.Queue.On("TransitionStatus", mock.Anything, int64(3), models.QueueStatusQueued, models.QueueStatusApproved).
		Return(&models.QueueEntry{ID: 3, Status: models.QueueStatusApproved}, nil)
	set.AuditLogs.On("UpdateStatus", mock.Anything, int64(3), models.QueueStatusApproved).Return(nil)
	set.AdminActions.On("Insert", mock.Anything, mock.Anything).Return(errBoom)

	_, err := gate.Transition(context.Background(), adminActor, 3, models.QueueStatusApproved)

	assert.True(t, services.IsInternalError(err))
	assert.Equal(t, 1, set.Tx.Rollbacks)
	assert.Empty(t, pub.names())
}

func TestGate_ApproveAll(t *testing.T) {
	t.Run("approves every queued entry with one action", func(t *testing.T) {
		set := mocks.NewSet()
		pub := &recordingPublisher{}
		gate := newTestGate(set, pub)

		ids := []int64{1, 2, 5}
		set.Queue.On("TransitionAll", mock.MatchedBy(mocks.InTx), models.QueueStatusQueued, models.QueueStatusApproved).Return(ids, nil)
		set.AuditLogs.On("UpdateStatusBulk", mock.MatchedBy(mocks.InTx), ids, models.QueueStatusApproved).Return(nil)
		set.AdminActions.On("Insert", mock.MatchedBy(mocks.InTx), mock.MatchedBy(func(a *models.AdminAction) bool {
			var details struct {
				Count int     `json:"count"`
				IDs   []int64 `json:"ids"`
			}
			_ = json.Unmarshal(a.Details, &details)
			return a.Action == models.AdminActionQueueBulkApproved && details.Count == 3 && len(details.IDs) == 3
		})).Return(nil).Once()

		result, err := gate.ApproveAll(context.Background(), adminActor)

		require.NoError(t, err)
		assert.Equal(t, 3, result.Count)
		assert.Equal(t, ids, result.IDs)
		assert.Equal(t, []string{"queue:updated"}, pub.names())
		set.AssertExpectations(t)
	})

	t.Run("nothing queued", func(t *testing.T) {
		set := mocks.NewSet()
		pub := &recordingPublisher{}
		gate := newTestGate(set, pub)

		set.Queue.On("TransitionAll", mock.Anything, models.QueueStatusQueued, models.QueueStatusApproved).Return([]int64{}, nil)

		result, err := gate.ApproveAll(context.Background(), adminActor)

		require.NoError(t, err)
		assert.Equal(t, 0, result.Count)
		assert.Empty(t, pub.names())
		set.AdminActions.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("non admin", func(t *testing.T) {
		set := mocks.NewSet()
		gate := newTestGate(set, &recordingPublisher{})

		_, err := gate.ApproveAll(context.Background(), models.Actor{ID: "u-9"})
		assert.True(t, services.IsUnauthorizedError(err))
	})
}

func TestGate_GetReturnsStoredBody(t *testing.T) {
	set := mocks.NewSet()
	gate := newTestGate(set, &recordingPublisher{})

	body := "<p>Hi Alice,</p>\n<p>You logged <strong>3</strong> activities &amp; more.</p>"
	set.Queue.On("GetByID", mock.Anything, int64(12)).
		Return(&models.QueueEntry{ID: 12, TemplateID: "executive", Body: body}, nil)
	set.Queue.On("GetByID", mock.Anything, int64(13)).Return(nil, repositories.ErrNotFound)

	entry, err := gate.Get(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, body, entry.Body)

	_, err = gate.Get(context.Background(), 13)
	assert.True(t, services.IsNotFoundError(err))
}

func TestGate_List(t *testing.T) {
	set := mocks.NewSet()
	gate := newTestGate(set, &recordingPublisher{})

	status := models.QueueStatusQueued
	filter := models.QueueFilter{Status: &status, Limit: 20}
	set.Queue.On("List", mock.Anything, filter).Return(nil, nil)

	entries, err := gate.List(context.Background(), filter)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
