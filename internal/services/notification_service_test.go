package services

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/autolease-api/internal/models"
)

func TestDispatch_SendsOncePerScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := DueTomorrow{LoanID: f.loan.ID, CustomerID: f.customer.ID, DueDate: day(2, 1), Amount: dec("100")}

	sent, err := f.notifier.Dispatch(ctx, event)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = f.notifier.Dispatch(ctx, event)
	require.NoError(t, err)
	assert.False(t, sent)

	assert.Equal(t, 1, f.push.count())
	assert.Equal(t, int64(1), f.countLogs(t, models.NotificationDueTomorrow))

	// same date, different type
	sent, err = f.notifier.Dispatch(ctx, Overdue{LoanID: f.loan.ID, CustomerID: f.customer.ID, DueDate: day(2, 1), Amount: dec("100")})
	require.NoError(t, err)
	assert.True(t, sent)
}

func TestDispatch_RedisMarkerShortCircuits(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	notifier := NewNotificationService(f.repos.Notification, f.repos.NotificationLog, f.repos.User, f.push, nil, rdb)
	ctx := context.Background()
	event := PaymentReceived{PaymentID: 42, LoanID: f.loan.ID, CustomerID: f.customer.ID, Amount: dec("100")}

	sent, err := notifier.Dispatch(ctx, event)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.True(t, mr.Exists(markerKey(event.Type(), event.ScopeKey())))

	sent, err = notifier.Dispatch(ctx, event)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, f.push.count())
}

func TestDispatch_LogWinsWhenMarkerMissing(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	notifier := NewNotificationService(f.repos.Notification, f.repos.NotificationLog, f.repos.User, f.push, nil, rdb)
	ctx := context.Background()
	event := PaymentReceived{PaymentID: 7, LoanID: f.loan.ID, CustomerID: f.customer.ID, Amount: dec("50")}

	_, err := notifier.Dispatch(ctx, event)
	require.NoError(t, err)
	mr.FlushAll()

	sent, err := notifier.Dispatch(ctx, event)
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Equal(t, 1, f.push.count())
	// the marker is restored from the log
	assert.True(t, mr.Exists(markerKey(event.Type(), event.ScopeKey())))
}

func TestDispatch_UnknownCustomer(t *testing.T) {
	f := newFixture(t)

	_, err := f.notifier.Dispatch(context.Background(), DueTomorrow{LoanID: f.loan.ID, CustomerID: 999, DueDate: day(2, 1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNotifyCustomers_RequiresTitleAndBody(t *testing.T) {
	f := newFixture(t)

	_, err := f.notifier.NotifyCustomers(context.Background(), nil, "", "body")
	assert.ErrorIs(t, err, ErrValidation)

	result, err := f.notifier.NotifyCustomers(context.Background(), nil, "Office closed", "We are closed on Monday.")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Targeted)
	assert.Equal(t, 1, result.Pushed)
}

func TestReminderSweep_SendsEachReminderOnce(t *testing.T) {
	f := newFixture(t)
	reminders := NewReminderService(f.repos, f.notifier, 7)
	ctx := context.Background()

	result, err := reminders.Sweep(ctx, day(1, 31))
	require.NoError(t, err)
	assert.Equal(t, 1, result.DueTomorrowSent)
	assert.Zero(t, result.OverdueSent)

	result, err = reminders.Sweep(ctx, day(1, 31))
	require.NoError(t, err)
	assert.Zero(t, result.DueTomorrowSent)
	assert.Equal(t, 1, result.Skipped)

	result, err = reminders.Sweep(ctx, day(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 1, result.OverdueSent)

	// outside the overdue window
	result, err = reminders.Sweep(ctx, day(2, 20))
	require.NoError(t, err)
	assert.Zero(t, result.OverdueSent)
	assert.Zero(t, result.Skipped)

	require.NotNil(t, reminders.LastRun())
	assert.False(t, reminders.Running())
	assert.Equal(t, 2, f.push.count())
}

func TestReminderSweep_SkipsPaidDates(t *testing.T) {
	f := newFixture(t)
	payments := f.payments(nil, day(1, 20))
	ctx := context.Background()
	_, err := payments.ApplyExact(ctx, ApplyExactInput{
		LoanID:        f.loan.ID,
		DueDate:       day(2, 1),
		Amount:        dec("100"),
		PaymentMethod: models.PaymentMethodCash,
	})
	require.NoError(t, err)
	pushed := f.push.count()

	result, err := NewReminderService(f.repos, f.notifier, 7).Sweep(ctx, day(1, 31))
	require.NoError(t, err)
	assert.Zero(t, result.DueTomorrowSent)
	assert.Equal(t, pushed, f.push.count())
}
