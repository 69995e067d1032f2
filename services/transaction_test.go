package services

import (
	"context"
	"errors"
	"testing"

	"github.com/clubpulse/activity-monitor/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type txKey struct{}

// MockTransactionManager is a mock implementation of TransactionManager
type MockTransactionManager struct {
	mock.Mock
}

func (m *MockTransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	args := m.Called(ctx)
	if tx := args.Get(0); tx != nil {
		return tx.(repositories.Transaction), args.Error(1)
	}
	return nil, args.Error(1)
}

// InTransaction records the call and runs fn with a marked context unless an error is configured
func (m *MockTransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, txKey{}, true), nil)
}

func TestWithTransaction_Success(t *testing.T) {
	ctx := context.Background()
	txMgr := new(MockTransactionManager)
	txMgr.On("InTransaction", ctx).Return(nil)

	var sawTx bool
	err := WithTransaction(ctx, txMgr, func(txCtx context.Context) error {
		sawTx, _ = txCtx.Value(txKey{}).(bool)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, sawTx)
	txMgr.AssertExpectations(t)
}

func TestWithTransaction_ErrorInFunction(t *testing.T) {
	ctx := context.Background()
	txMgr := new(MockTransactionManager)
	txMgr.On("InTransaction", ctx).Return(nil)
	expectedErr := errors.New("operation failed")

	err := WithTransaction(ctx, txMgr, func(context.Context) error { return expectedErr })

	assert.ErrorIs(t, err, expectedErr)
}

func TestWithTransaction_BeginFails(t *testing.T) {
	ctx := context.Background()
	txMgr := new(MockTransactionManager)
	txMgr.On("InTransaction", ctx).Return(errors.New("connection refused"))

	called := false
	err := WithTransaction(ctx, txMgr, func(context.Context) error {
		called = true
		return nil
	})

	assert.Error(t, err)
	assert.False(t, called)
}

func TestWithTransaction_NilManager(t *testing.T) {
	called := false
	err := WithTransaction(context.Background(), nil, func(context.Context) error {
		called = true
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithTransactionResult(t *testing.T) {
	ctx := context.Background()

	t.Run("returns value", func(t *testing.T) {
		txMgr := new(MockTransactionManager)
		txMgr.On("InTransaction", ctx).Return(nil)

		got, err := WithTransactionResult(ctx, txMgr, func(context.Context) (int, error) { return 42, nil })
		require.NoError(t, err)
		assert.Equal(t, 42, got)
	})

	t.Run("zero value on error", func(t *testing.T) {
		txMgr := new(MockTransactionManager)
		txMgr.On("InTransaction", ctx).Return(nil)

		got, err := WithTransactionResult(ctx, txMgr, func(context.Context) (string, error) {
			return "partial", errors.New("boom")
		})
		assert.Error(t, err)
		assert.Empty(t, got)
	})
}
