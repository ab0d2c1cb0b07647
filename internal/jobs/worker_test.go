package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_EnqueueAsyncTracksFailures(t *testing.T) {
	w := NewWorker(1)
	var ran atomic.Int32

	w.EnqueueAsync(func(ctx context.Context) error {
		ran.Add(1)
		return nil
	})
	w.EnqueueAsync(func(ctx context.Context) error {
		ran.Add(1)
		return errors.New("push failed")
	})
	w.EnqueueAsync(func(ctx context.Context) error {
		ran.Add(1)
		panic("boom")
	})

	assert.Eventually(t, func() bool {
		return w.GetStats().CompletedJobs == 3
	}, time.Second, 5*time.Millisecond)
	w.Shutdown()

	stats := w.GetStats()
	assert.Equal(t, int32(3), ran.Load())
	assert.Equal(t, int64(2), stats.FailedJobs)
	assert.Equal(t, 0, stats.ActiveJobs)
	assert.Equal(t, 0, stats.QueueLength)
	assert.Equal(t, 10, stats.MaxConcurrent)
}

func TestWorker_ScheduleEveryImmediateRunsAtStart(t *testing.T) {
	w := NewWorker(1)
	var runs atomic.Int32

	w.ScheduleEveryImmediate("reminder_sweep", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("smtp down")
	})

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	w.Shutdown()
	assert.Equal(t, int32(1), runs.Load())

	stats := w.GetStats()
	require.Len(t, stats.Schedules, 1)
	st := stats.Schedules[0]
	assert.Equal(t, "reminder_sweep", st.Name)
	assert.Equal(t, "1h0m0s", st.Interval)
	assert.Equal(t, int64(1), st.Runs)
	assert.NotNil(t, st.LastRunAt)
	assert.Equal(t, "smtp down", st.LastError)
}

func TestWorker_ScheduleEveryWaitsForInterval(t *testing.T) {
	w := NewWorker(1)
	var runs atomic.Int32

	w.ScheduleEvery("tick", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	assert.Equal(t, int32(0), runs.Load())

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	w.Shutdown()
}

func TestWorker_ShutdownWaitsForAsyncJobs(t *testing.T) {
	w := NewWorker(1)
	var finished atomic.Bool

	w.EnqueueAsync(func(ctx context.Context) error {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	w.Shutdown()
	assert.True(t, finished.Load())
}
