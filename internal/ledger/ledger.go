// Package ledger reconciles a loan's recorded payments against its derived
// schedule. It is pure: callers load the loan and its payments and the ledger
// answers which due dates are satisfied, what is still owed, and how a new
// amount should be spread across what is owed.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/schedule"
)

const (
	// LookaheadYears bounds the search for the next unpaid due date.
	LookaheadYears = 2
	// ValidationWindowDays is how far around a candidate date the schedule
	// is regenerated when validating it.
	ValidationWindowDays = 60
)

// Status classifies a schedule entry.
type Status string

const (
	StatusPaid     Status = "paid"
	StatusUpcoming Status = "upcoming"
	StatusOverdue  Status = "overdue"
)

// LoanTerms are the loan attributes the schedule is derived from.
type LoanTerms struct {
	LoanID      uint
	CreatedAt   time.Time
	TermMonths  float64
	Frequency   schedule.Frequency
	Installment decimal.Decimal
	// FinalInstallment is owed on the last due date; zero means Installment
	FinalInstallment decimal.Decimal
	Active           bool
}

// TermsOf extracts the schedule terms of a loan. Times are normalized to UTC
// so schedule dates and stored due dates share one calendar.
func TermsOf(l *models.Loan) LoanTerms {
	freq := schedule.ParseFrequency(l.PaymentFrequency)
	terms := LoanTerms{
		LoanID:      l.ID,
		CreatedAt:   l.CreatedAt.UTC(),
		TermMonths:  l.TermMonths,
		Frequency:   freq,
		Installment: l.InstallmentAmount,
		Active:      l.IsActive(),
	}
	if principal := l.TotalPurchasePrice.Sub(l.DownPayment); principal.IsPositive() {
		terms.FinalInstallment = schedule.FinalInstallment(principal, l.InstallmentAmount, schedule.InstallmentCount(l.TermMonths, freq))
	}
	return terms
}

// Entry is one derived due date with its reconciliation state.
type Entry struct {
	DueDate      time.Time
	Installment  decimal.Decimal
	Paid         decimal.Decimal
	Remaining    decimal.Decimal
	Status       Status
	DaysOverdue  int
	DaysUntilDue int
}

// IsPaid reports whether nothing meaningful is left on the entry.
func (e Entry) IsPaid() bool {
	return e.Status == StatusPaid
}

// DateKey is the entry's calendar date as YYYY-MM-DD.
func (e Entry) DateKey() string {
	return schedule.DateKey(e.DueDate)
}

// Ledger holds the bucketed payments of one loan.
type Ledger struct {
	terms     LoanTerms
	dates     []time.Time
	finalKey  string
	buckets   map[string]decimal.Decimal
	waived    map[string]bool
	attempted map[string]bool
}

// New buckets payments by due date. Only completed payments contribute to
// the buckets; every payment regardless of status marks its dates as
// attempted.
func New(terms LoanTerms, payments []models.Payment) *Ledger {
	if terms.FinalInstallment.IsZero() {
		terms.FinalInstallment = terms.Installment
	}
	l := &Ledger{
		terms:     terms,
		dates:     schedule.Full(terms.CreatedAt, terms.TermMonths, terms.Frequency),
		buckets:   make(map[string]decimal.Decimal),
		waived:    make(map[string]bool),
		attempted: make(map[string]bool),
	}
	if len(l.dates) > 0 {
		l.finalKey = dateKey(l.dates[len(l.dates)-1])
	}
	for i := range payments {
		p := &payments[i]
		for _, a := range spread(p) {
			key := dateKey(a.DueDate)
			l.attempted[key] = true
			if !p.IsCompleted() {
				continue
			}
			l.buckets[key] = money.Round2(l.buckets[key].Add(money.NonNegative(a.AppliedAmount)))
			if p.IsWaiver() {
				l.waived[key] = true
			}
		}
	}
	return l
}

// spread returns how a payment distributes over due dates: its applied
// installments when present, otherwise the whole amount on its due date.
func spread(p *models.Payment) []models.AppliedInstallment {
	if len(p.AppliedInstallments) > 0 {
		return p.AppliedInstallments
	}
	return []models.AppliedInstallment{{DueDate: p.DueDate, AppliedAmount: p.Amount}}
}

func dateKey(t time.Time) string {
	return schedule.DateKey(t.UTC())
}

// Terms returns the terms the ledger was built with.
func (l *Ledger) Terms() LoanTerms {
	return l.terms
}

// PaidByDueDate returns the completed amount bucketed per calendar date.
func (l *Ledger) PaidByDueDate() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.buckets))
	for k, v := range l.buckets {
		out[k] = v
	}
	return out
}

// Schedule returns the loan's due dates within [from, to].
func (l *Ledger) Schedule(from, to time.Time) []time.Time {
	return schedule.LoanDueDates(l.terms.CreatedAt, l.terms.TermMonths, l.terms.Frequency, from.UTC(), to.UTC())
}

// FullSchedule returns every due date of the loan.
func (l *Ledger) FullSchedule() []time.Time {
	out := make([]time.Time, len(l.dates))
	copy(out, l.dates)
	return out
}

// installment is what the due date keyed key owes
func (l *Ledger) installment(key string) decimal.Decimal {
	if key == l.finalKey {
		return l.terms.FinalInstallment
	}
	return l.terms.Installment
}

func (l *Ledger) entry(due, today time.Time) Entry {
	key := dateKey(due)
	paid := l.buckets[key]
	owed := l.installment(key)
	remaining := money.NonNegative(money.Round2(owed.Sub(paid)))
	if l.waived[key] {
		remaining = decimal.Zero
	}

	e := Entry{
		DueDate:     due,
		Installment: owed,
		Paid:        paid,
		Remaining:   remaining,
	}
	switch {
	case money.Settled(remaining):
		e.Status = StatusPaid
	case schedule.DayNumber(due) < schedule.DayNumber(today.UTC()):
		e.Status = StatusOverdue
		e.DaysOverdue = schedule.DaysBetween(due, today.UTC())
	default:
		e.Status = StatusUpcoming
		e.DaysUntilDue = schedule.DaysBetween(today.UTC(), due)
	}
	return e
}

// Entries classifies every scheduled due date within [from, to] as of today.
func (l *Ledger) Entries(from, to, today time.Time) []Entry {
	dates := l.Schedule(from, to)
	out := make([]Entry, 0, len(dates))
	for _, d := range dates {
		out = append(out, l.entry(d, today))
	}
	return out
}

// AllEntries classifies the loan's whole schedule as of today.
func (l *Ledger) AllEntries(today time.Time) []Entry {
	out := make([]Entry, 0, len(l.dates))
	for _, d := range l.dates {
		out = append(out, l.entry(d, today))
	}
	return out
}

// Unpaid lists every unpaid entry of the schedule, oldest first.
func (l *Ledger) Unpaid(today time.Time) []Entry {
	var out []Entry
	for _, e := range l.AllEntries(today) {
		if !e.IsPaid() {
			out = append(out, e)
		}
	}
	return out
}

// Outstanding lists the unpaid entries from the loan's creation through to,
// oldest first.
func (l *Ledger) Outstanding(to, today time.Time) []Entry {
	var out []Entry
	for _, e := range l.Entries(l.terms.CreatedAt, to, today) {
		if !e.IsPaid() {
			out = append(out, e)
		}
	}
	return out
}

// Overdue lists the unpaid entries strictly before today. Closed loans
// have none.
func (l *Ledger) Overdue(today time.Time) []Entry {
	if !l.terms.Active {
		return nil
	}
	var out []Entry
	for _, e := range l.Entries(l.terms.CreatedAt, today.AddDate(0, 0, -1), today) {
		if e.Status == StatusOverdue {
			out = append(out, e)
		}
	}
	return out
}

// NextUnpaid returns the earliest unpaid entry dated today or later, within
// the lookahead. Closed loans have no next due date.
func (l *Ledger) NextUnpaid(today time.Time) (Entry, bool) {
	if !l.terms.Active {
		return Entry{}, false
	}
	for _, e := range l.Entries(today, today.AddDate(LookaheadYears, 0, 0), today) {
		if !e.IsPaid() {
			return e, true
		}
	}
	return Entry{}, false
}

// ValidateDueDate confirms that candidate is the calendar date of a real,
// currently unpaid entry of an active loan. Paid status here considers
// completed payments only, so a failed payment never blocks a retry.
func (l *Ledger) ValidateDueDate(candidate, today time.Time) (Entry, bool) {
	if !l.terms.Active {
		return Entry{}, false
	}
	from := candidate.AddDate(0, 0, -ValidationWindowDays)
	to := candidate.AddDate(0, 0, ValidationWindowDays)
	want := dateKey(candidate)
	for _, d := range l.Schedule(from, to) {
		if dateKey(d) != want {
			continue
		}
		e := l.entry(d, today)
		if e.IsPaid() {
			return Entry{}, false
		}
		return e, true
	}
	return Entry{}, false
}

// PaidDueDatesCompleted is the set of scheduled dates fully satisfied by
// completed payments or waivers.
func (l *Ledger) PaidDueDatesCompleted() map[string]bool {
	out := make(map[string]bool)
	for _, d := range l.dates {
		key := dateKey(d)
		if l.waived[key] || money.Settled(money.NonNegative(l.installment(key).Sub(l.buckets[key]))) {
			out[key] = true
		}
	}
	return out
}

// PaidDueDatesAnyStatus is the set of dates touched by any recorded payment,
// failed ones included. It only feeds history displays that flag attempted
// dates; validation must use PaidDueDatesCompleted.
func (l *Ledger) PaidDueDatesAnyStatus() map[string]bool {
	out := make(map[string]bool, len(l.attempted))
	for k := range l.attempted {
		out[k] = true
	}
	return out
}

// Allocate spreads amount greedily over outstanding entries, oldest first.
// Any remainder once every entry is satisfied lands on the last entry
// touched, so the allocations always sum to amount.
func Allocate(amount decimal.Decimal, outstanding []Entry) []models.AppliedInstallment {
	left := money.Round2(amount)
	if !left.IsPositive() || len(outstanding) == 0 {
		return nil
	}

	var out []models.AppliedInstallment
	for _, e := range outstanding {
		if !left.IsPositive() {
			break
		}
		take := money.Round2(money.Min(left, e.Remaining))
		if !take.IsPositive() {
			continue
		}
		out = append(out, models.AppliedInstallment{DueDate: e.DueDate, AppliedAmount: take})
		left = money.Round2(left.Sub(take))
	}

	if left.IsPositive() {
		if len(out) == 0 {
			return []models.AppliedInstallment{{DueDate: outstanding[0].DueDate, AppliedAmount: left}}
		}
		last := &out[len(out)-1]
		last.AppliedAmount = money.Round2(last.AppliedAmount.Add(left))
	}
	return out
}

// Sum totals the applied amounts of an allocation.
func Sum(applied []models.AppliedInstallment) decimal.Decimal {
	total := decimal.Zero
	for _, a := range applied {
		total = total.Add(a.AppliedAmount)
	}
	return money.Round2(total)
}

// Totals folds entries into paid, pending and overdue amounts.
type Totals struct {
	Collected decimal.Decimal
	Pending   decimal.Decimal
	Overdue   decimal.Decimal
}

// Fold accumulates entries into t. Paid entries add what was paid, others
// add what remains.
func (t *Totals) Fold(entries []Entry) {
	for _, e := range entries {
		switch e.Status {
		case StatusPaid:
			t.Collected = money.Round2(t.Collected.Add(money.NonNegative(e.Paid)))
		case StatusOverdue:
			t.Overdue = money.Round2(t.Overdue.Add(e.Remaining))
		default:
			t.Pending = money.Round2(t.Pending.Add(e.Remaining))
		}
	}
}
