package services

import (
	"github.com/sjperalta/autolease-api/internal/jobs"
)

type JobService struct {
	worker *jobs.Worker
	sweep  *ReminderService
}

func NewJobService(worker *jobs.Worker, sweep *ReminderService) *JobService {
	return &JobService{
		worker: worker,
		sweep:  sweep,
	}
}

// GetStatus reports worker counters and the last reminder sweep. Without a
// worker, jobs run inline and only the sweep is reported.
func (s *JobService) GetStatus() map[string]interface{} {
	status := map[string]interface{}{}
	if s.worker != nil {
		stats := s.worker.GetStats()
		status["active_jobs"] = stats.ActiveJobs
		status["completed_jobs"] = stats.CompletedJobs
		status["failed_jobs"] = stats.FailedJobs
		status["queue_length"] = stats.QueueLength
		status["max_concurrent"] = stats.MaxConcurrent
		status["schedules"] = stats.Schedules
	}
	if s.sweep != nil {
		status["reminder_sweep"] = s.sweep.LastRun()
	}
	return status
}
