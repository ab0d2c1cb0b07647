// Package schedule derives the due dates of a lease from its creation time,
// term and payment frequency. Schedules are never stored; every caller
// recomputes them from the loan's attributes.
package schedule

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sjperalta/autolease-api/internal/money"
)

// Frequency is the payment cadence of a lease.
type Frequency string

const (
	BiWeekly    Frequency = "bi_weekly"
	Monthly     Frequency = "monthly"
	SemiMonthly Frequency = "semi_monthly"
)

const (
	biWeeklyStep = 14
	iterBuffer   = 24
)

// ParseFrequency maps a stored value to a Frequency. Unknown values fall back
// to BiWeekly.
func ParseFrequency(s string) Frequency {
	switch Frequency(s) {
	case Monthly:
		return Monthly
	case SemiMonthly:
		return SemiMonthly
	default:
		return BiWeekly
	}
}

// Valid reports whether s names a supported frequency.
func Valid(s string) bool {
	switch Frequency(s) {
	case BiWeekly, Monthly, SemiMonthly:
		return true
	}
	return false
}

// Describe returns the customer-facing label of a frequency.
func Describe(f Frequency) string {
	switch f {
	case Monthly:
		return "Monthly (same day each month)"
	case SemiMonthly:
		return "Twice per month (1st and 15th)"
	default:
		return "Every 2 weeks (bi-weekly)"
	}
}

// DueDates returns the scheduled due datetimes that fall within [from, to]
// (inclusive, compared by calendar date), ascending and without duplicates.
// A term <= 0 or a window whose end precedes its start yields nil.
func DueDates(createdAt time.Time, termMonths float64, freq Frequency, from, to time.Time) []time.Time {
	if termMonths <= 0 || DayNumber(to) < DayNumber(from) {
		return nil
	}

	switch ParseFrequency(string(freq)) {
	case Monthly:
		return monthly(createdAt, termMonths, from, to)
	case SemiMonthly:
		return semiMonthly(createdAt, termMonths, from, to)
	default:
		return biWeekly(createdAt, termMonths, from, to)
	}
}

func biWeekly(createdAt time.Time, termMonths float64, from, to time.Time) []time.Time {
	lo, hi := DayNumber(from), DayNumber(to)
	var out []time.Time
	d := createdAt.AddDate(0, 0, biWeeklyStep)
	for i := 0; i < int(termMonths*2)+iterBuffer; i++ {
		n := DayNumber(d)
		if n > hi {
			break
		}
		if n >= lo {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, biWeeklyStep)
	}
	return out
}

func monthly(createdAt time.Time, termMonths float64, from, to time.Time) []time.Time {
	lo, hi := DayNumber(from), DayNumber(to)
	var out []time.Time
	for k := 1; k <= int(termMonths)+iterBuffer; k++ {
		d := AddMonthsClamped(createdAt, k)
		n := DayNumber(d)
		if n > hi {
			break
		}
		if n >= lo {
			out = append(out, d)
		}
	}
	return out
}

func semiMonthly(createdAt time.Time, termMonths float64, from, to time.Time) []time.Time {
	lo, hi := DayNumber(from), DayNumber(to)
	start := DayNumber(createdAt)
	y, m, _ := createdAt.Date()
	hh, mm, ss := createdAt.Clock()
	loc := createdAt.Location()

	var out []time.Time
	// limit counts dates from creation on, including those before from
	emitted := 0
	limit := int(termMonths*2) + iterBuffer
	for month := 0; emitted < limit; month++ {
		for _, day := range []int{1, 15} {
			d := time.Date(y, m+time.Month(month), day, hh, mm, ss, createdAt.Nanosecond(), loc)
			n := DayNumber(d)
			if n < start {
				continue
			}
			if n > hi {
				return out
			}
			emitted++
			if n >= lo {
				out = append(out, d)
			}
		}
	}
	return out
}

// Full is the whole schedule of one lease: exactly InstallmentCount due
// dates from creation on. A term <= 0 has no schedule.
func Full(createdAt time.Time, termMonths float64, freq Frequency) []time.Time {
	horizon := AddMonthsClamped(createdAt, int(math.Ceil(termMonths))+2)
	all := DueDates(createdAt, termMonths, freq, createdAt, horizon)
	if n := InstallmentCount(termMonths, freq); len(all) > n {
		all = all[:n]
	}
	return all
}

// LoanDueDates is the part of the lease schedule within [from, to].
func LoanDueDates(createdAt time.Time, termMonths float64, freq Frequency, from, to time.Time) []time.Time {
	all := Full(createdAt, termMonths, freq)
	lo, hi := DayNumber(from), DayNumber(to)
	out := make([]time.Time, 0, len(all))
	for _, d := range all {
		if n := DayNumber(d); n >= lo && n <= hi {
			out = append(out, d)
		}
	}
	return out
}

// FinalDueDate is the last due date of the lease, or createdAt when the
// term yields no schedule.
func FinalDueDate(createdAt time.Time, termMonths float64, freq Frequency) time.Time {
	all := Full(createdAt, termMonths, freq)
	if len(all) == 0 {
		return createdAt
	}
	return all[len(all)-1]
}

// AddMonthsClamped moves t forward by k calendar months keeping its day of
// month, clamped to the last day of shorter months, and its time of day.
func AddMonthsClamped(t time.Time, k int) time.Time {
	y, m, d := t.Date()
	target := m + time.Month(k)
	lastDay := time.Date(y, target+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	hh, mm, ss := t.Clock()
	return time.Date(y, target, d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// InstallmentCount is the number of installments a term produces.
func InstallmentCount(termMonths float64, freq Frequency) int {
	var n int
	if ParseFrequency(string(freq)) == Monthly {
		n = int(termMonths)
	} else {
		n = int(termMonths * 2)
	}
	if n < 1 {
		n = 1
	}
	return n
}

// InstallmentAmount is the flat, zero-interest amount owed per due date.
func InstallmentAmount(amountFinanced decimal.Decimal, termMonths float64, freq Frequency) decimal.Decimal {
	if !amountFinanced.IsPositive() {
		return decimal.Zero
	}
	count := decimal.NewFromInt(int64(InstallmentCount(termMonths, freq)))
	return money.Round2(amountFinanced.Div(count))
}

// FinalInstallment is what the last due date owes: the amount financed less
// count-1 regular installments, so the schedule sums to the amount financed
// exactly.
func FinalInstallment(amountFinanced, installment decimal.Decimal, count int) decimal.Decimal {
	if count <= 1 {
		return money.Round2(amountFinanced)
	}
	rest := installment.Mul(decimal.NewFromInt(int64(count - 1)))
	return money.NonNegative(money.Round2(amountFinanced.Sub(rest)))
}

// DayNumber converts t to a day ordinal using its own calendar date, so that
// comparisons ignore time of day.
func DayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// DateKey renders the calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SameDay reports whether a and b fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return DayNumber(a) == DayNumber(b)
}

// DaysBetween returns the whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DayNumber(b) - DayNumber(a))
}
