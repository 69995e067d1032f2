package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/clubpulse/activity-monitor/clients/email"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories/mocks"
	"github.com/clubpulse/activity-monitor/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestDispatcher(set *mocks.Set, sender email.Sender, pub *recordingPublisher) *Dispatcher {
	d := NewDispatcher(set.Repositories(), set.Tx, sender, pub, nil, zap.NewNop())
	d.now = func() time.Time { return fixedNow }
	return d
}

func approvedEntry(id int64, to string) *models.QueueEntry {
	return &models.QueueEntry{
		ID:             id,
		RecipientEmail: to,
		Subject:        "Officer activity check-in",
		Body:           "<p>body</p>",
		Status:         models.QueueStatusApproved,
	}
}

func TestDispatcher_Run_Success(t *testing.T) {
	set := mocks.NewSet()
	pub := &recordingPublisher{}
	sender := &fakeSender{send: func(msg email.Message) (*email.Result, error) {
		return &email.Result{ID: "msg-" + msg.To}, nil
	}}
	d := newTestDispatcher(set, sender, pub)

	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).
		Return([]*models.QueueEntry{approvedEntry(1, "a@x.com")}, nil)
	set.Queue.On("MarkSent", mock.MatchedBy(mocks.InTx), int64(1), "msg-a@x.com", fixedNow).Return(nil)
	set.AuditLogs.On("MarkSent", mock.MatchedBy(mocks.InTx), int64(1), fixedNow).Return(nil)

	report, err := d.Run(context.Background(), testSettings())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "msg-a@x.com", report.Results[0].MessageID)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "club@x.org", sender.sent[0].From)
	assert.Equal(t, "board@x.org", sender.sent[0].ReplyTo)
	assert.Equal(t, "<p>body</p>", sender.sent[0].HTML)
	assert.Equal(t, []string{"queue:dispatched"}, pub.names())
	set.AssertExpectations(t)
}

func TestDispatcher_Run_ProviderErrorMarksFailed(t *testing.T) {
	set := mocks.NewSet()
	sender := &fakeSender{send: func(msg email.Message) (*email.Result, error) {
		if msg.To == "bounce@x.com" {
			return nil, &email.SendError{Provider: "fake", Code: "bounce", Message: "bounce"}
		}
		return &email.Result{ID: "ok-1"}, nil
	}}
	d := newTestDispatcher(set, sender, &recordingPublisher{})

	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).
		Return([]*models.QueueEntry{approvedEntry(1, "bounce@x.com"), approvedEntry(2, "ok@x.com")}, nil)
	set.Queue.On("MarkFailed", mock.Anything, int64(1)).Return(nil).Once()
	set.AuditLogs.On("UpdateStatus", mock.Anything, int64(1), models.QueueStatusFailed).Return(nil).Once()
	set.Queue.On("MarkSent", mock.Anything, int64(2), "ok-1", fixedNow).Return(nil)
	set.AuditLogs.On("MarkSent", mock.Anything, int64(2), fixedNow).Return(nil)

	report, err := d.Run(context.Background(), testSettings())

	require.NoError(t, err)
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, models.QueueStatusFailed, report.Results[0].Status)
	assert.Empty(t, report.Results[0].MessageID)
	assert.Contains(t, report.Results[0].Error, "bounce")
	set.Queue.AssertNotCalled(t, "MarkSent", mock.Anything, int64(1), mock.Anything, mock.Anything)
	assert.Equal(t, 2, sender.calls)
	set.AssertExpectations(t)
}

func TestDispatcher_Run_PanicMarksFailed(t *testing.T) {
	set := mocks.NewSet()
	sender := &fakeSender{send: func(email.Message) (*email.Result, error) { panic("nil map") }}
	d := newTestDispatcher(set, sender, &recordingPublisher{})

	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).
		Return([]*models.QueueEntry{approvedEntry(5, "p@x.com")}, nil)
	set.Queue.On("MarkFailed", mock.Anything, int64(5)).Return(nil)
	set.AuditLogs.On("UpdateStatus", mock.Anything, int64(5), models.QueueStatusFailed).Return(nil)

	report, err := d.Run(context.Background(), testSettings())

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Results[0].Error, "panicked")
}

func TestDispatcher_Run_RecordFailureAfterSendMarksFailed(t *testing.T) {
	set := mocks.NewSet()
	sender := &fakeSender{send: func(email.Message) (*email.Result, error) { return &email.Result{ID: "m-1"}, nil }}
	d := newTestDispatcher(set, sender, &recordingPublisher{})

	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).
		Return([]*models.QueueEntry{approvedEntry(8, "x@x.com")}, nil)
	set.Queue.On("MarkSent", mock.Anything, int64(8), "m-1", fixedNow).Return(nil)
	set.AuditLogs.On("MarkSent", mock.Anything, int64(8), fixedNow).Return(errBoom)
	set.Queue.On("MarkFailed", mock.Anything, int64(8)).Return(nil)
	set.AuditLogs.On("UpdateStatus", mock.Anything, int64(8), models.QueueStatusFailed).Return(nil)

	report, err := d.Run(context.Background(), testSettings())

	require.NoError(t, err)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, set.Tx.Rollbacks)
	set.AssertExpectations(t)
}

func TestDispatcher_Run_MissingMessageIDIsFailure(t *testing.T) {
	set := mocks.NewSet()
	sender := &fakeSender{send: func(email.Message) (*email.Result, error) { return &email.Result{}, nil }}
	d := newTestDispatcher(set, sender, &recordingPublisher{})

	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).
		Return([]*models.QueueEntry{approvedEntry(2, "y@x.com")}, nil)
	set.Queue.On("MarkFailed", mock.Anything, int64(2)).Return(nil)
	set.AuditLogs.On("UpdateStatus", mock.Anything, int64(2), models.QueueStatusFailed).Return(nil)

	report, err := d.Run(context.Background(), testSettings())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestDispatcher_Run_Overlap(t *testing.T) {
	set := mocks.NewSet()
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	sender := &fakeSender{send: func(email.Message) (*email.Result, error) {
		once.Do(func() { close(started) })
		<-release
		return &email.Result{ID: "m"}, nil
	}}
	d := newTestDispatcher(set, sender, &recordingPublisher{})

	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).
		Return([]*models.QueueEntry{approvedEntry(1, "a@x.com")}, nil)
	set.Queue.On("MarkSent", mock.Anything, int64(1), "m", fixedNow).Return(nil)
	set.AuditLogs.On("MarkSent", mock.Anything, int64(1), fixedNow).Return(nil)

	done := make(chan error, 1)
	go func() {
		_, err := d.Run(context.Background(), testSettings())
		done <- err
	}()
	<-started

	_, err := d.Run(context.Background(), testSettings())
	assert.True(t, errors.Is(err, services.ErrDispatchInProgress))

	close(release)
	require.NoError(t, <-done)
}

func TestDispatcher_Run_NoSender(t *testing.T) {
	d := NewDispatcher(mocks.NewSet().Repositories(), nil, nil, nil, nil, zap.NewNop())
	_, err := d.Run(context.Background(), testSettings())
	assert.True(t, services.IsConfigurationError(err))
}

func TestDispatcher_RunAs_RecordsOperatorTrigger(t *testing.T) {
	set := mocks.NewSet()
	d := newTestDispatcher(set, &fakeSender{}, &recordingPublisher{})

	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).Return([]*models.QueueEntry{}, nil)
	set.AdminActions.On("Insert", mock.Anything, mock.MatchedBy(func(a *models.AdminAction) bool {
		return a.Action == models.AdminActionDispatchTriggered && a.ActorID == adminActor.ID
	})).Return(nil).Once()

	_, err := d.RunAs(context.Background(), adminActor, testSettings())
	require.NoError(t, err)

	_, err = d.RunAs(context.Background(), models.SystemActor, testSettings())
	require.NoError(t, err)

	set.AssertExpectations(t)
}

func TestDispatcher_Run_CanceledAfterAcceptStillRecordsSent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	set := mocks.NewSet()
	sender := &fakeSender{send: func(email.Message) (*email.Result, error) {
		cancel()
		return &email.Result{ID: "m-1"}, nil
	}}
	d := newTestDispatcher(set, sender, &recordingPublisher{})

	var queueCtxErr, auditCtxErr error
	set.Queue.On("ListByStatus", mock.Anything, models.QueueStatusApproved).
		Return([]*models.QueueEntry{approvedEntry(8, "x@x.com")}, nil)
	set.Queue.On("MarkSent", mock.MatchedBy(mocks.InTx), int64(8), "m-1", fixedNow).
		Run(func(args mock.Arguments) { queueCtxErr = args.Get(0).(context.Context).Err() }).
		Return(nil)
	set.AuditLogs.On("MarkSent", mock.MatchedBy(mocks.InTx), int64(8), fixedNow).
		Run(func(args mock.Arguments) { auditCtxErr = args.Get(0).(context.Context).Err() }).
		Return(nil)

	report, err := d.Run(ctx, testSettings())

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.NoError(t, queueCtxErr)
	assert.NoError(t, auditCtxErr)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "m-1", report.Results[0].MessageID)
	assert.Equal(t, models.QueueStatusSent, report.Results[0].Status)
	set.Queue.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
	assert.Equal(t, 1, set.Tx.Commits)
	set.AssertExpectations(t)
}
