package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sjperalta/autolease-api/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker runs fire-and-forget jobs (notification fan-out after a payment or
// a sale) with bounded concurrency, plus named recurring jobs such as the
// reminder sweep.
type Worker struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{}

	mu        sync.RWMutex
	stats     WorkerStats
	schedules map[string]*ScheduleStatus
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int   `json:"active_jobs"`
	CompletedJobs int64 `json:"completed_jobs"`
	FailedJobs    int64 `json:"failed_jobs"`
	QueueLength   int   `json:"queue_length"`
	MaxConcurrent int   `json:"max_concurrent"`

	Schedules []ScheduleStatus `json:"schedules"`
}

// ScheduleStatus describes one recurring job
type ScheduleStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Runs      int64      `json:"runs"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// NewWorker creates a worker that runs at most max(concurrency*2, 10) async
// jobs at once.
func NewWorker(concurrency int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	limit := concurrency * 2
	if limit < 10 {
		limit = 10
	}
	return &Worker{
		ctx:       ctx,
		cancel:    cancel,
		sem:       make(chan struct{}, limit),
		schedules: make(map[string]*ScheduleStatus),
	}
}

// EnqueueAsync runs a job in a new goroutine once a slot is free.
// Shutdown waits for jobs enqueued before it was called.
func (w *Worker) EnqueueAsync(job Job) {
	w.wg.Add(1)
	w.track(func(s *WorkerStats) { s.QueueLength++ })
	go func() {
		defer w.wg.Done()
		w.sem <- struct{}{}
		defer func() { <-w.sem }()
		w.track(func(s *WorkerStats) { s.QueueLength-- })

		if err := w.run(job); err != nil {
			logger.Error("[Worker] Async job failed", slog.Any("error", err))
		}
	}()
}

// ScheduleEvery runs job every interval, first after one interval
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, false, job)
}

// ScheduleEveryImmediate runs job once at startup, then every interval, so
// a restart does not push the next reminder sweep out by a full interval.
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.schedule(name, interval, true, job)
}

func (w *Worker) schedule(name string, interval time.Duration, immediate bool, job Job) {
	w.mu.Lock()
	w.schedules[name] = &ScheduleStatus{Name: name, Interval: interval.String()}
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if immediate {
			w.runScheduled(name, job)
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runScheduled(name, job)
			}
		}
	}()
}

func (w *Worker) runScheduled(name string, job Job) {
	start := time.Now()
	err := w.run(job)

	w.mu.Lock()
	if st, ok := w.schedules[name]; ok {
		st.Runs++
		st.LastRunAt = &start
		st.LastError = ""
		if err != nil {
			st.LastError = err.Error()
		}
	}
	w.mu.Unlock()

	if err != nil {
		logger.Error("[Scheduler] Job failed", slog.String("job", name), slog.Any("error", err))
		return
	}
	logger.Info("[Scheduler] Job completed", slog.String("job", name), slog.Duration("elapsed", time.Since(start)))
}

// run executes job with panic recovery and updates the counters. A failed
// job is still counted as completed, so FailedJobs is a subset.
func (w *Worker) run(job Job) (err error) {
	w.track(func(s *WorkerStats) { s.ActiveJobs++ })
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		w.track(func(s *WorkerStats) {
			s.ActiveJobs--
			s.CompletedJobs++
			if err != nil {
				s.FailedJobs++
			}
		})
	}()
	return job(w.ctx)
}

func (w *Worker) track(update func(*WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	update(&w.stats)
}

// Shutdown cancels scheduled jobs and waits for running ones
func (w *Worker) Shutdown() {
	w.cancel()
	w.wg.Wait()
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	stats := w.stats
	stats.MaxConcurrent = cap(w.sem)
	stats.Schedules = make([]ScheduleStatus, 0, len(w.schedules))
	for _, st := range w.schedules {
		stats.Schedules = append(stats.Schedules, *st)
	}
	return stats
}
