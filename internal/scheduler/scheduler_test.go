package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_AddValidation(t *testing.T) {
	s := New(zap.NewNop(), nil, time.Second)
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add(Job{Name: "scan", Spec: "0 9 * * 1", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "scan", Spec: "0 9 * * 1", Run: noop}), "duplicate name")
	assert.Error(t, s.Add(Job{Name: "dispatch", Spec: "not a spec", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "", Spec: "* * * * *", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "x", Spec: "* * * * *"}))
}

func TestScheduler_TriggerAppliesTimeout(t *testing.T) {
	s := New(zap.NewNop(), time.UTC, 50*time.Millisecond)

	var sawDeadline atomic.Bool
	require.NoError(t, s.Add(Job{Name: "dispatch", Spec: "*/15 * * * *", Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		return nil
	}}))

	require.NoError(t, s.Trigger("dispatch"))
	assert.True(t, sawDeadline.Load())

	assert.Error(t, s.Trigger("unknown"))
}

func TestScheduler_TriggerReturnsJobError(t *testing.T) {
	s := New(zap.NewNop(), nil, time.Second)
	boom := errors.New("sheet unavailable")
	require.NoError(t, s.Add(Job{Name: "scan", Spec: "@every 1h", Run: func(context.Context) error { return boom }}))

	assert.ErrorIs(t, s.Trigger("scan"), boom)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(zap.NewNop(), nil, time.Second)
	require.NoError(t, s.Add(Job{Name: "scan", Spec: "@every 1h", Run: func(context.Context) error { return nil }}))

	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = LoadLocation("Mars/Olympus_Mons")
	assert.Error(t, err)
}
