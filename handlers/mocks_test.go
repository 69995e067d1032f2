package handlers

import (
	"context"
	"net/http"

	"github.com/clubpulse/activity-monitor/middleware"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/services/queue"
	"github.com/clubpulse/activity-monitor/services/scan"
	"github.com/stretchr/testify/mock"
)

type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) List(ctx context.Context, filter models.QueueFilter) ([]*models.QueueEntry, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.QueueEntry), args.Error(1)
}

func (m *MockQueueService) Counts(ctx context.Context) (models.QueueCounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.QueueCounts), args.Error(1)
}

func (m *MockQueueService) Get(ctx context.Context, id int64) (*models.QueueEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueEntry), args.Error(1)
}

func (m *MockQueueService) Transition(ctx context.Context, actor models.Actor, id int64, target models.QueueStatus) (*models.QueueEntry, error) {
	args := m.Called(ctx, actor, id, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueEntry), args.Error(1)
}

func (m *MockQueueService) ApproveAll(ctx context.Context, actor models.Actor) (*queue.BulkResult, error) {
	args := m.Called(ctx, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.BulkResult), args.Error(1)
}

type MockThresholdService struct {
	mock.Mock
}

func (m *MockThresholdService) List(ctx context.Context) ([]*models.RoleThreshold, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RoleThreshold), args.Error(1)
}

func (m *MockThresholdService) Upsert(ctx context.Context, actor models.Actor, role string, threshold int) (*models.RoleThreshold, error) {
	args := m.Called(ctx, actor, role, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoleThreshold), args.Error(1)
}

func (m *MockThresholdService) Delete(ctx context.Context, actor models.Actor, role string) error {
	args := m.Called(ctx, actor, role)
	return args.Error(0)
}

type MockScanRunner struct {
	mock.Mock
}

func (m *MockScanRunner) Run(ctx context.Context, actor models.Actor, settings scan.Settings) (*scan.Report, error) {
	args := m.Called(ctx, actor, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scan.Report), args.Error(1)
}

type MockDispatchRunner struct {
	mock.Mock
}

func (m *MockDispatchRunner) RunAs(ctx context.Context, actor models.Actor, settings queue.Settings) (*queue.DispatchReport, error) {
	args := m.Called(ctx, actor, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.DispatchReport), args.Error(1)
}

type MockWebhookEventHandler struct {
	mock.Mock
}

func (m *MockWebhookEventHandler) HandleEvent(ctx context.Context, event *queue.WebhookEvent) (queue.TrackOutcome, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(queue.TrackOutcome), args.Error(1)
}

var adminClaims = &middleware.Claims{Sub: "admin-1", Email: "admin@club.org", Roles: []string{"admin"}}

// withAdmin injects session claims the way RequireAuth would
func withAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), adminClaims)))
	})
}
