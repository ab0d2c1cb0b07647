package services

import (
	"context"
	"sort"
	"time"

	"github.com/sjperalta/autolease-api/internal/ledger"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/schedule"
)

// CalendarPayment is a completed payment amount landing on a calendar date
type CalendarPayment struct {
	PaymentID     uint   `json:"payment_id"`
	LoanID        uint   `json:"loan_id"`
	CustomerID    uint   `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	VehicleName   string `json:"vehicle_name"`
	DueDate       string `json:"due_date"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	PaymentMode   string `json:"payment_mode"`
}

// CalendarDay is the admin view of a single date
type CalendarDay struct {
	Date         string            `json:"date"`
	Paid         []CalendarPayment `json:"paid"`
	Pending      []DueItem         `json:"pending"`
	Overdue      []DueItem         `json:"overdue"`
	PaidCount    int               `json:"paid_count"`
	PendingCount int               `json:"pending_count"`
	OverdueCount int               `json:"overdue_count"`
}

type CalendarService struct {
	repos *repository.Repositories
}

func NewCalendarService(repos *repository.Repositories) *CalendarService {
	return &CalendarService{repos: repos}
}

// ForDate lists what was paid on date, what is still due on it and what was
// already overdue on it. Overdue is judged as of date itself.
func (s *CalendarService) ForDate(ctx context.Context, date, today time.Time) (*CalendarDay, error) {
	date = date.UTC()
	key := schedule.DateKey(date)

	loans, err := s.repos.Loan.FindForReport(ctx, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(loans))
	for _, l := range loans {
		ids = append(ids, l.ID)
	}
	byLoan, err := s.repos.Payment.FindByLoans(ctx, ids)
	if err != nil {
		return nil, err
	}

	day := &CalendarDay{
		Date:    key,
		Paid:    []CalendarPayment{},
		Pending: []DueItem{},
		Overdue: []DueItem{},
	}
	for i := range loans {
		loan := &loans[i]
		payments := byLoan[loan.ID]
		day.Paid = append(day.Paid, paidOn(loan, payments, key)...)

		if !loan.IsActive() {
			continue
		}
		l := ledger.New(ledger.TermsOf(loan), payments)
		for _, e := range l.Entries(date, date, today) {
			if !e.IsPaid() {
				day.Pending = append(day.Pending, dueItem(loan, e))
			}
		}
		for _, e := range l.Overdue(date) {
			day.Overdue = append(day.Overdue, dueItem(loan, e))
		}
	}

	sort.SliceStable(day.Paid, func(i, j int) bool {
		if day.Paid[i].LoanID != day.Paid[j].LoanID {
			return day.Paid[i].LoanID < day.Paid[j].LoanID
		}
		return day.Paid[i].PaymentID < day.Paid[j].PaymentID
	})
	sortByDueThenLoan(day.Pending)
	sortByDueThenLoan(day.Overdue)

	day.PaidCount = len(day.Paid)
	day.PendingCount = len(day.Pending)
	day.OverdueCount = len(day.Overdue)
	return day, nil
}

// paidOn returns the completed amounts of payments bucketed on key
func paidOn(loan *models.Loan, payments []models.Payment, key string) []CalendarPayment {
	var out []CalendarPayment
	for i := range payments {
		p := &payments[i]
		if !p.IsCompleted() {
			continue
		}
		applied := p.AppliedInstallments
		if len(applied) == 0 {
			applied = []models.AppliedInstallment{{DueDate: p.DueDate, AppliedAmount: p.Amount}}
		}
		for _, a := range applied {
			if schedule.DateKey(a.DueDate.UTC()) != key {
				continue
			}
			cp := CalendarPayment{
				PaymentID:     p.ID,
				LoanID:        loan.ID,
				CustomerID:    loan.CustomerID,
				DueDate:       key,
				Amount:        money.NonNegative(a.AppliedAmount).StringFixed(2),
				PaymentMethod: p.PaymentMethod,
				PaymentMode:   p.PaymentMode,
			}
			if loan.Customer.ID != 0 {
				cp.CustomerName = loan.Customer.FullName()
			}
			if loan.Vehicle.ID != 0 {
				cp.VehicleName = loan.Vehicle.DisplayName()
			}
			out = append(out, cp)
		}
	}
	return out
}
