package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/clubpulse/activity-monitor/models"
	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuditLogRepository_Insert(t *testing.T) {
	ctx := context.Background()

	t.Run("links to queue entry", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAuditLogRepository(db, zap.NewNop())
		now := time.Now()

		mock.ExpectQuery("INSERT INTO audit_log_entries").
			WithArgs(int64(42), "a@x.org", "Ada", "member", models.QueueStatusQueued, 1, 5).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(9, now, now))

		entry := models.NewAuditLogEntry(&models.QueueEntry{
			ID: 42, RecipientEmail: "a@x.org", RecipientName: "Ada", TemplateID: "member", ActivityCount: 1, Threshold: 5,
		})
		require.NoError(t, repo.Insert(ctx, entry))
		assert.Equal(t, int64(9), entry.ID)
	})

	t.Run("missing queue entry", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAuditLogRepository(db, zap.NewNop())

		mock.ExpectQuery("INSERT INTO audit_log_entries").
			WillReturnError(&pq.Error{Code: "23503"})

		err := repo.Insert(ctx, &models.AuditLogEntry{QueueEntryID: 1})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestAuditLogRepository_UpdateStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditLogRepository(db, zap.NewNop())

	mock.ExpectExec("UPDATE audit_log_entries").
		WithArgs(int64(42), models.QueueStatusCanceled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE audit_log_entries").
		WithArgs(int64(43), models.QueueStatusCanceled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.UpdateStatus(context.Background(), 42, models.QueueStatusCanceled))
	assert.ErrorIs(t, repo.UpdateStatus(context.Background(), 43, models.QueueStatusCanceled), repositories.ErrNotFound)
}

func TestAuditLogRepository_UpdateStatusBulk(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditLogRepository(db, zap.NewNop())

	assert.NoError(t, repo.UpdateStatusBulk(context.Background(), nil, models.QueueStatusApproved))

	mock.ExpectExec("queue_entry_id = ANY").
		WithArgs(sqlmock.AnyArg(), models.QueueStatusApproved).
		WillReturnResult(sqlmock.NewResult(0, 2))
	assert.NoError(t, repo.UpdateStatusBulk(context.Background(), []int64{1, 2}, models.QueueStatusApproved))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLogRepository_MarkOpened(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAuditLogRepository(db, zap.NewNop())
	openedAt := time.Now()

	mock.ExpectExec("SET email_opened = TRUE").
		WithArgs(int64(42), openedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkOpened(context.Background(), 42, openedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRoleThresholdRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert normalizes role", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleThresholdRepository(db, zap.NewNop())
		now := time.Now()

		mock.ExpectQuery("INSERT INTO role_thresholds").
			WithArgs("officer", 3, "admin-1").
			WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))

		threshold := &models.RoleThreshold{Role: "  Officer ", Threshold: 3, UpdatedBy: "admin-1"}
		require.NoError(t, repo.Upsert(ctx, threshold))
		assert.Equal(t, "officer", threshold.Role)
		assert.Equal(t, now, threshold.UpdatedAt)
	})

	t.Run("list", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleThresholdRepository(db, zap.NewNop())
		now := time.Now()

		mock.ExpectQuery("FROM role_thresholds ORDER BY role").
			WillReturnRows(sqlmock.NewRows([]string{"role", "threshold", "updated_by", "updated_at"}).
				AddRow("executive", 8, "admin-1", now).
				AddRow("officer", 3, "admin-1", now))

		thresholds, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, models.ThresholdMap{"executive": 8, "officer": 3}, models.NewThresholdMap(thresholds))
	})

	t.Run("delete missing role", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewRoleThresholdRepository(db, zap.NewNop())

		mock.ExpectExec("DELETE FROM role_thresholds").
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, "Ghost"), repositories.ErrNotFound)
	})
}

func TestAdminActionRepository(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewAdminActionRepository(db, zap.NewNop())

	actor := models.Actor{ID: "admin-1", Email: "admin@club.org"}
	action := models.NewAdminAction(actor, models.AdminActionQueueApproved, "queue_entry").
		WithQueueEntry(42).
		WithDetails(map[string]string{"from": "QUEUED"})

	mock.ExpectExec("INSERT INTO admin_actions").
		WithArgs(action.ID, "admin-1", "admin@club.org", models.AdminActionQueueApproved, "queue_entry", sqlmock.AnyArg(), sqlmock.AnyArg(), action.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Insert(ctx, action))

	id := uuid.New()
	mock.ExpectQuery("FROM admin_actions").
		WithArgs(10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "actor_id", "actor_email", "action", "target_type", "target_id", "details", "created_at"}).
			AddRow(id.String(), "admin-1", "admin@club.org", "threshold_updated", "role_threshold", "officer", []byte(`{"threshold":3}`), time.Now()))

	actions, err := repo.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, id, actions[0].ID)
	assert.Equal(t, models.AdminActionThresholdUpdated, actions[0].Action)
	require.NotNil(t, actions[0].TargetID)
	assert.Equal(t, "officer", *actions[0].TargetID)
	assert.JSONEq(t, `{"threshold":3}`, string(actions[0].Details))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionManager_InTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits and routes repositories through the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		repo := NewAuditLogRepository(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE audit_log_entries").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(txCtx context.Context, tx repositories.Transaction) error {
			_, ok := GetTransactionFromContext(txCtx)
			assert.True(t, ok)
			return repo.UpdateStatus(txCtx, 1, models.QueueStatusApproved)
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := tm.InTransaction(ctx, func(context.Context, repositories.Transaction) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested call joins outer transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tm := NewTransactionManager(db, zap.NewNop())

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tm.InTransaction(ctx, func(txCtx context.Context, outer repositories.Transaction) error {
			return tm.InTransaction(txCtx, func(_ context.Context, inner repositories.Transaction) error {
				assert.Same(t, outer, inner)
				return nil
			})
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
