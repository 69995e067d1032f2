// Package mocks provides testify mocks of the repository interfaces for service tests.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/stretchr/testify/mock"
)

// QueueRepository is a mock implementation of repositories.QueueRepository
type QueueRepository struct {
	mock.Mock
}

func (m *QueueRepository) Insert(ctx context.Context, entry *models.QueueEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *QueueRepository) GetByID(ctx context.Context, id int64) (*models.QueueEntry, error) {
	args := m.Called(ctx, id)
	if entry := args.Get(0); entry != nil {
		return entry.(*models.QueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) GetByProviderMessageID(ctx context.Context, messageID string) (*models.QueueEntry, error) {
	args := m.Called(ctx, messageID)
	if entry := args.Get(0); entry != nil {
		return entry.(*models.QueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) HasActiveEntry(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *QueueRepository) List(ctx context.Context, filter models.QueueFilter) ([]*models.QueueEntry, error) {
	args := m.Called(ctx, filter)
	if entries := args.Get(0); entries != nil {
		return entries.([]*models.QueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) ListByStatus(ctx context.Context, status models.QueueStatus) ([]*models.QueueEntry, error) {
	args := m.Called(ctx, status)
	if entries := args.Get(0); entries != nil {
		return entries.([]*models.QueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) CountByStatus(ctx context.Context) (models.QueueCounts, error) {
	args := m.Called(ctx)
	if counts := args.Get(0); counts != nil {
		return counts.(models.QueueCounts), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) TransitionStatus(ctx context.Context, id int64, from, to models.QueueStatus) (*models.QueueEntry, error) {
	args := m.Called(ctx, id, from, to)
	if entry := args.Get(0); entry != nil {
		return entry.(*models.QueueEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) TransitionAll(ctx context.Context, from, to models.QueueStatus) ([]int64, error) {
	args := m.Called(ctx, from, to)
	if ids := args.Get(0); ids != nil {
		return ids.([]int64), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *QueueRepository) MarkSent(ctx context.Context, id int64, messageID string, sentAt time.Time) error {
	args := m.Called(ctx, id, messageID, sentAt)
	return args.Error(0)
}

func (m *QueueRepository) MarkFailed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *QueueRepository) MarkOpened(ctx context.Context, id int64, openedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, openedAt)
	return args.Bool(0), args.Error(1)
}

// AuditLogRepository is a mock implementation of repositories.AuditLogRepository
type AuditLogRepository struct {
	mock.Mock
}

func (m *AuditLogRepository) Insert(ctx context.Context, entry *models.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *AuditLogRepository) UpdateStatus(ctx context.Context, queueEntryID int64, status models.QueueStatus) error {
	args := m.Called(ctx, queueEntryID, status)
	return args.Error(0)
}

func (m *AuditLogRepository) UpdateStatusBulk(ctx context.Context, queueEntryIDs []int64, status models.QueueStatus) error {
	args := m.Called(ctx, queueEntryIDs, status)
	return args.Error(0)
}

func (m *AuditLogRepository) MarkSent(ctx context.Context, queueEntryID int64, sentAt time.Time) error {
	args := m.Called(ctx, queueEntryID, sentAt)
	return args.Error(0)
}

func (m *AuditLogRepository) MarkOpened(ctx context.Context, queueEntryID int64, openedAt time.Time) error {
	args := m.Called(ctx, queueEntryID, openedAt)
	return args.Error(0)
}

func (m *AuditLogRepository) GetByQueueEntryID(ctx context.Context, queueEntryID int64) (*models.AuditLogEntry, error) {
	args := m.Called(ctx, queueEntryID)
	if entry := args.Get(0); entry != nil {
		return entry.(*models.AuditLogEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *AuditLogRepository) ListByRecipient(ctx context.Context, email string) ([]*models.AuditLogEntry, error) {
	args := m.Called(ctx, email)
	if entries := args.Get(0); entries != nil {
		return entries.([]*models.AuditLogEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

// RoleThresholdRepository is a mock implementation of repositories.RoleThresholdRepository
type RoleThresholdRepository struct {
	mock.Mock
}

func (m *RoleThresholdRepository) List(ctx context.Context) ([]*models.RoleThreshold, error) {
	args := m.Called(ctx)
	if list := args.Get(0); list != nil {
		return list.([]*models.RoleThreshold), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoleThresholdRepository) Get(ctx context.Context, role string) (*models.RoleThreshold, error) {
	args := m.Called(ctx, role)
	if t := args.Get(0); t != nil {
		return t.(*models.RoleThreshold), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RoleThresholdRepository) Upsert(ctx context.Context, threshold *models.RoleThreshold) error {
	args := m.Called(ctx, threshold)
	return args.Error(0)
}

func (m *RoleThresholdRepository) Delete(ctx context.Context, role string) error {
	args := m.Called(ctx, role)
	return args.Error(0)
}

// AdminActionRepository is a mock implementation of repositories.AdminActionRepository
type AdminActionRepository struct {
	mock.Mock
}

func (m *AdminActionRepository) Insert(ctx context.Context, action *models.AdminAction) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *AdminActionRepository) List(ctx context.Context, limit, offset int) ([]*models.AdminAction, error) {
	args := m.Called(ctx, limit, offset)
	if list := args.Get(0); list != nil {
		return list.([]*models.AdminAction), args.Error(1)
	}
	return nil, args.Error(1)
}

// TransactionManager runs fn inline and records whether each transaction committed or rolled back
type TransactionManager struct {
	mu        sync.Mutex
	BeginErr  error
	Commits   int
	Rollbacks int
}

type txKey struct{}

// InTx reports whether ctx was produced by TransactionManager
func InTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

// Begin is not used by the services; it returns BeginErr
func (m *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return nil, m.BeginErr
}

func (m *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if m.BeginErr != nil {
		return m.BeginErr
	}
	if InTx(ctx) {
		return fn(ctx, nil)
	}

	err := fn(context.WithValue(ctx, txKey{}, true), nil)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.Rollbacks++
		return err
	}
	m.Commits++
	return nil
}

// Set bundles one mock per repository
type Set struct {
	Queue        *QueueRepository
	AuditLogs    *AuditLogRepository
	Thresholds   *RoleThresholdRepository
	AdminActions *AdminActionRepository
	Tx           *TransactionManager
}

// NewSet creates fresh mocks
func NewSet() *Set {
	return &Set{
		Queue:        new(QueueRepository),
		AuditLogs:    new(AuditLogRepository),
		Thresholds:   new(RoleThresholdRepository),
		AdminActions: new(AdminActionRepository),
		Tx:           new(TransactionManager),
	}
}

// Repositories returns the mocks behind the aggregate interface struct
func (s *Set) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Queue:        s.Queue,
		AuditLogs:    s.AuditLogs,
		Thresholds:   s.Thresholds,
		AdminActions: s.AdminActions,
	}
}

// AssertExpectations asserts every mock in the set
func (s *Set) AssertExpectations(t mock.TestingT) {
	s.Queue.AssertExpectations(t)
	s.AuditLogs.AssertExpectations(t)
	s.Thresholds.AssertExpectations(t)
	s.AdminActions.AssertExpectations(t)
}
