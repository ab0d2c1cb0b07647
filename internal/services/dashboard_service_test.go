package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/autolease-api/internal/models"
)

func TestDashboardSummary_CachedUntilPayment(t *testing.T) {
	f := newFixture(t)
	dashboard := NewDashboardService(f.repos)
	ctx := context.Background()
	now := day(2, 10)

	first, err := dashboard.Summary(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.SummaryStats.TotalCustomers)
	assert.Equal(t, int64(1), first.SummaryStats.ActiveLoans)
	assert.Equal(t, 1, first.SummaryStats.OverdueAccounts)
	require.Len(t, first.OverdueAccountsList, 1)
	assert.Equal(t, "2026-02-01", first.OverdueAccountsList[0].DueDate)
	assert.Equal(t, 9, first.OverdueAccountsList[0].DaysOverdue)
	require.Len(t, first.UpcomingPayments, 1)
	assert.Equal(t, "2026-03-01", first.UpcomingPayments[0].DueDate)
	assert.Nil(t, first.SummaryStats.RevenueGrowth)

	cached, err := dashboard.Summary(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, cached.GeneratedAt.Equal(first.GeneratedAt))

	_, err = f.payments(nil, now).ApplyExact(ctx, ApplyExactInput{
		LoanID:        f.loan.ID,
		DueDate:       day(2, 1),
		Amount:        dec("100"),
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	fresh, err := dashboard.Summary(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, fresh.GeneratedAt.Equal(first.GeneratedAt))
	assert.Zero(t, fresh.SummaryStats.OverdueAccounts)
	assert.Equal(t, "100.00", fresh.SummaryStats.MonthlyRevenue)
	require.Len(t, fresh.RecentPayments, 1)
	assert.Equal(t, "Ana Lopez", fresh.RecentPayments[0].CustomerName)
}

func TestGrowth(t *testing.T) {
	assert.Nil(t, growth(dec("10"), dec("0")))
	g := growth(dec("15"), dec("10"))
	require.NotNil(t, g)
	assert.InDelta(t, 50.0, *g, 0.001)
}

func TestCalendarForDate(t *testing.T) {
	f := newFixture(t)
	calendar := NewCalendarService(f.repos)
	ctx := context.Background()

	before, err := calendar.ForDate(ctx, day(2, 1), day(2, 10))
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", before.Date)
	assert.Zero(t, before.PaidCount)
	assert.Equal(t, 1, before.PendingCount)
	assert.Zero(t, before.OverdueCount)

	_, err = f.payments(nil, day(2, 10)).ApplyFlexible(ctx, ApplyFlexibleInput{
		LoanID:        f.loan.ID,
		Amount:        dec("150"),
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)

	feb, err := calendar.ForDate(ctx, day(2, 1), day(2, 10))
	require.NoError(t, err)
	require.Equal(t, 1, feb.PaidCount)
	assert.Equal(t, "100.00", feb.Paid[0].Amount)
	assert.Zero(t, feb.PendingCount)

	mar, err := calendar.ForDate(ctx, day(3, 1), day(2, 10))
	require.NoError(t, err)
	require.Equal(t, 1, mar.PaidCount)
	assert.Equal(t, "50.00", mar.Paid[0].Amount)
	require.Equal(t, 1, mar.PendingCount)
	assert.Equal(t, "50.00", mar.Pending[0].Remaining)

	// as of Apr 2, Mar 1 is still half unpaid
	apr, err := calendar.ForDate(ctx, day(4, 2), day(2, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, apr.OverdueCount)
}
