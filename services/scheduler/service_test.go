package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowRecordsStatus(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	s := NewService("catalog build", func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	}, time.Hour)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.RunNow(context.Background()))
	st := s.Status()
	assert.Equal(t, 1, st.Runs)
	assert.Empty(t, st.LastError)
	require.NotNil(t, st.LastRunAt)
	assert.Equal(t, fixed, *st.LastRunAt)

	assert.ErrorIs(t, s.RunNow(context.Background()), boom)
	st = s.Status()
	assert.Equal(t, 2, st.Runs)
	assert.Equal(t, "boom", st.LastError)
	assert.False(t, st.Running)
}

func TestRunNowRejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	s := NewService("catalog build", func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	}, time.Hour)

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background()) }()
	<-entered

	assert.True(t, s.Status().Running)
	assert.ErrorIs(t, s.RunNow(context.Background()), ErrAlreadyRunning)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, s.Status().Runs)
}

func TestStartRunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	s := NewService("catalog build", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}, 10*time.Millisecond)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestStartDisabledWithoutInterval(t *testing.T) {
	s := NewService("catalog build", func(ctx context.Context) error {
		t.Error("job must not run")
		return nil
	}, 0)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
	assert.False(t, s.started)
}
