package schedule

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDueDates_BiWeeklyFullSchedule(t *testing.T) {
	created := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	got := Full(created, 6, BiWeekly)

	require.Len(t, got, 12)
	for i, d := range got {
		assert.Equal(t, created.AddDate(0, 0, 14*(i+1)), d)
	}
	assert.Equal(t, "100.00", InstallmentAmount(decimal.NewFromInt(1200), 6, BiWeekly).StringFixed(2))
}

func TestDueDates_Deterministic(t *testing.T) {
	created := time.Date(2025, 11, 20, 14, 0, 0, 0, time.UTC)
	from, to := date(2025, 11, 1), date(2027, 1, 1)

	for _, f := range []Frequency{BiWeekly, Monthly, SemiMonthly} {
		t.Run(string(f), func(t *testing.T) {
			a := DueDates(created, 12, f, from, to)
			b := DueDates(created, 12, f, from, to)
			require.Equal(t, a, b)
			require.NotEmpty(t, a)
			for i := 1; i < len(a); i++ {
				assert.True(t, a[i].After(a[i-1]), "dates must be strictly ascending")
			}
		})
	}
}

func TestDueDates_MonthlyClampsToMonthEnd(t *testing.T) {
	created := time.Date(2026, 1, 31, 10, 15, 0, 0, time.UTC)

	got := Full(created, 4, Monthly)

	require.Len(t, got, 4)
	assert.Equal(t, time.Date(2026, 2, 28, 10, 15, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2026, 3, 31, 10, 15, 0, 0, time.UTC), got[1])
	assert.Equal(t, time.Date(2026, 4, 30, 10, 15, 0, 0, time.UTC), got[2])
	assert.Equal(t, time.Date(2026, 5, 31, 10, 15, 0, 0, time.UTC), got[3])
}

func TestLoanDueDates_TruncatesToInstallmentCount(t *testing.T) {
	created := date(2026, 1, 1)
	raw := DueDates(created, 6, BiWeekly, created, date(2026, 12, 31))
	require.Greater(t, len(raw), 12)

	got := LoanDueDates(created, 6, BiWeekly, date(2026, 6, 1), date(2026, 12, 31))
	require.Len(t, got, 2)
	assert.Equal(t, raw[10], got[0])
	assert.Equal(t, raw[11], got[1])
}

func TestFull_LengthMatchesInstallmentCount(t *testing.T) {
	terms := []float64{1, 3, 6, 12, 36, 2.5}
	for _, f := range []Frequency{BiWeekly, Monthly, SemiMonthly} {
		for _, term := range terms {
			want := InstallmentCount(term, f)
			for c := date(2026, 1, 1); c.Year() == 2026; c = c.AddDate(0, 0, 1) {
				created := c.Add(17 * time.Hour)
				got := Full(created, term, f)
				if !assert.Len(t, got, want, "%s term %.1f created %s", f, term, DateKey(created)) {
					return
				}
				assert.Equal(t, got[len(got)-1], FinalDueDate(created, term, f))
			}
		}
	}
}

func TestFull_MonthlyKeepsLastDateAfterApproximateEnd(t *testing.T) {
	created := date(2026, 3, 1)
	got := Full(created, 3, Monthly)
	require.Len(t, got, 3)
	assert.Equal(t, date(2026, 6, 1), got[2])
	assert.Empty(t, Full(created, 0, Monthly))
	assert.Equal(t, created, FinalDueDate(created, 0, Monthly))
}

func TestFinalInstallment_AbsorbsRounding(t *testing.T) {
	financed := decimal.NewFromInt(1000)
	emi := InstallmentAmount(financed, 12, Monthly)
	assert.Equal(t, "83.33", emi.StringFixed(2))

	last := FinalInstallment(financed, emi, 12)
	assert.Equal(t, "83.37", last.StringFixed(2))
	assert.True(t, emi.Mul(decimal.NewFromInt(11)).Add(last).Equal(financed))

	assert.Equal(t, "66.66", FinalInstallment(decimal.NewFromInt(200), InstallmentAmount(decimal.NewFromInt(200), 3, Monthly), 3).StringFixed(2))
	assert.Equal(t, "500.00", FinalInstallment(decimal.NewFromInt(500), decimal.NewFromInt(500), 1).StringFixed(2))
}

func TestDueDates_MonthlyLeapYear(t *testing.T) {
	created := time.Date(2028, 1, 30, 0, 0, 0, 0, time.UTC)
	got := DueDates(created, 2, Monthly, date(2028, 2, 1), date(2028, 2, 29))
	require.Len(t, got, 1)
	assert.Equal(t, 29, got[0].Day())
}

func TestDueDates_SemiMonthlySkipsDatesBeforeCreation(t *testing.T) {
	created := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	got := DueDates(created, 1, SemiMonthly, date(2026, 3, 1), date(2026, 4, 30))

	require.Len(t, got, 3)
	assert.Equal(t, time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC), got[1])
	assert.Equal(t, time.Date(2026, 4, 15, 8, 0, 0, 0, time.UTC), got[2])
}

func TestDueDates_WindowIsInclusiveByDate(t *testing.T) {
	created := time.Date(2026, 1, 1, 18, 0, 0, 0, time.UTC)
	first := date(2026, 1, 15)

	got := DueDates(created, 6, BiWeekly, first, first)

	require.Len(t, got, 1)
	assert.True(t, SameDay(first, got[0]))
}

func TestDueDates_EmptyCases(t *testing.T) {
	created := date(2026, 1, 1)
	assert.Empty(t, DueDates(created, 6, BiWeekly, date(2026, 6, 1), date(2026, 5, 1)))
	assert.Empty(t, DueDates(created, 0, Monthly, created, date(2027, 1, 1)))
	assert.Empty(t, DueDates(created, 6, BiWeekly, date(2026, 1, 2), date(2026, 1, 14)))
}

func TestDueDates_UnknownFrequencyFallsBackToBiWeekly(t *testing.T) {
	created := date(2026, 1, 1)
	to := date(2026, 3, 1)
	assert.Equal(t, DueDates(created, 6, BiWeekly, created, to), DueDates(created, 6, Frequency("weekly"), created, to))
}

func TestInstallmentCount(t *testing.T) {
	assert.Equal(t, 12, InstallmentCount(12, Monthly))
	assert.Equal(t, 24, InstallmentCount(12, BiWeekly))
	assert.Equal(t, 24, InstallmentCount(12, SemiMonthly))
	assert.Equal(t, 1, InstallmentCount(0.2, Monthly))
	assert.True(t, InstallmentAmount(decimal.Zero, 12, Monthly).IsZero())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Every 2 weeks (bi-weekly)", Describe(BiWeekly))
	assert.Equal(t, "Monthly (same day each month)", Describe(Monthly))
	assert.Equal(t, "Twice per month (1st and 15th)", Describe(SemiMonthly))
}
