package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sjperalta/autolease-api/internal/ledger"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

// ErrSweepInProgress is returned when a sweep is requested while one runs
var ErrSweepInProgress = errors.New("reminder sweep already running")

// SweepResult counts what one reminder sweep did
type SweepResult struct {
	DueTomorrowSent int       `json:"due_tomorrow_sent"`
	OverdueSent     int       `json:"overdue_sent"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// ReminderService sends due-tomorrow and overdue reminders for active loans.
// Reminders go through the dedup gate, so repeated sweeps send each one once.
type ReminderService struct {
	repos           *repository.Repositories
	notificationSvc *NotificationService
	overdueDays     int

	running atomic.Bool
	mu      sync.RWMutex
	last    *SweepResult
}

func NewReminderService(repos *repository.Repositories, notificationSvc *NotificationService, overdueDays int) *ReminderService {
	if overdueDays < 1 {
		overdueDays = 7
	}
	return &ReminderService{
		repos:           repos,
		notificationSvc: notificationSvc,
		overdueDays:     overdueDays,
	}
}

// Sweep dispatches DueTomorrow for every unpaid entry dated tomorrow and
// Overdue for every unpaid entry within the last overdueDays days. Only one
// sweep runs at a time.
func (s *ReminderService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.running.Store(false)

	now = now.UTC()
	result := &SweepResult{StartedAt: now}

	loans, err := s.repos.Loan.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	ledgers, err := loanLedgers(ctx, s.repos, loans)
	if err != nil {
		return nil, err
	}

	tomorrow := now.AddDate(0, 0, 1)
	oldest := now.AddDate(0, 0, -s.overdueDays)
	yesterday := now.AddDate(0, 0, -1)

	for i := range loans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loan := &loans[i]
		l := ledgers[loan.ID]

		for _, e := range l.Entries(tomorrow, tomorrow, now) {
			if e.IsPaid() {
				continue
			}
			s.count(ctx, result, &result.DueTomorrowSent, DueTomorrow{
				LoanID:     loan.ID,
				CustomerID: loan.CustomerID,
				DueDate:    e.DueDate,
				Amount:     e.Remaining,
			})
		}
		for _, e := range l.Entries(oldest, yesterday, now) {
			if e.Status != ledger.StatusOverdue {
				continue
			}
			s.count(ctx, result, &result.OverdueSent, Overdue{
				LoanID:     loan.ID,
				CustomerID: loan.CustomerID,
				DueDate:    e.DueDate,
				Amount:     e.Remaining,
			})
		}
	}

	result.FinishedAt = time.Now().UTC()
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	logger.Info("Reminder sweep finished",
		"due_tomorrow_sent", result.DueTomorrowSent,
		"overdue_sent", result.OverdueSent,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"loans", len(loans))
	return result, nil
}

func (s *ReminderService) count(ctx context.Context, result *SweepResult, sent *int, event NotificationEvent) {
	ok, err := s.notificationSvc.Dispatch(ctx, event)
	switch {
	case err != nil:
		logger.Warn("Reminder dispatch failed", "type", event.Type(), "scope_key", event.ScopeKey(), "error", err)
		result.Failed++
	case ok:
		*sent++
	default:
		result.Skipped++
	}
}

// Running reports whether a sweep is in progress
func (s *ReminderService) Running() bool {
	return s.running.Load()
}

// LastRun returns the result of the most recent completed sweep, if any
func (s *ReminderService) LastRun() *SweepResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	last := *s.last
	return &last
}
