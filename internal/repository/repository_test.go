package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sjperalta/autolease-api/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Vehicle{}, &models.Loan{}, &models.Payment{},
		&models.NotificationLog{}, &models.Notification{}, &models.RefreshToken{}, &models.DashboardCache{},
	))
	return db
}

func seedLoan(t *testing.T, repos *Repositories) *models.Loan {
	t.Helper()
	ctx := context.Background()
	customer := &models.User{Email: "ana@example.com", EncryptedPassword: "x", FirstName: "Ana", LastName: "Lopez"}
	require.NoError(t, repos.User.Create(ctx, customer))
	vehicle := &models.Vehicle{VIN: "1HGCM82633A004352", Make: "Honda", Model: "Accord", Year: 2022,
		PurchasePrice: decimal.NewFromInt(20000), LeasePrice: decimal.NewFromInt(24000)}
	require.NoError(t, repos.Vehicle.Create(ctx, vehicle))
	loan := &models.Loan{
		CustomerID:         customer.ID,
		VehicleID:          vehicle.ID,
		TotalPurchasePrice: decimal.NewFromInt(1400),
		DownPayment:        decimal.NewFromInt(200),
		AmountFinanced:     decimal.NewFromInt(1200),
		InstallmentAmount:  decimal.NewFromInt(100),
		TermMonths:         6,
		PaymentFrequency:   "bi_weekly",
		Status:             models.LoanStatusActive,
		CreatedAt:          time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repos.Loan.Create(ctx, loan))
	return loan
}

func TestWithinLoanTx_CommitAndRollback(t *testing.T) {
	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	loan := seedLoan(t, repos)

	err := repos.WithinLoanTx(ctx, loan.ID, func(tx *Repositories, l *models.Loan) error {
		l.AmountFinanced = decimal.NewFromInt(1100)
		return tx.Loan.Update(ctx, l)
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = repos.WithinLoanTx(ctx, loan.ID, func(tx *Repositories, l *models.Loan) error {
		l.AmountFinanced = decimal.Zero
		if err := tx.Loan.Update(ctx, l); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := repos.Loan.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, "1100.00", got.AmountFinanced.StringFixed(2))
}

func TestWithinLoanTx_MissingLoan(t *testing.T) {
	repos := NewRepositories(openTestDB(t))
	err := repos.WithinLoanTx(context.Background(), 99, func(*Repositories, *models.Loan) error { return nil })
	assert.True(t, IsNotFound(err))
}

func TestNotificationLog_UniqueTypeAndScope(t *testing.T) {
	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	loan := seedLoan(t, repos)

	entry := func() *models.NotificationLog {
		return &models.NotificationLog{
			NotificationType: models.NotificationOverdue,
			ScopeKey:         "loan:1:due:2026-01-15",
			CustomerID:       loan.CustomerID,
			SentAt:           time.Now().UTC(),
		}
	}
	require.NoError(t, repos.NotificationLog.Create(ctx, entry()))
	assert.ErrorIs(t, repos.NotificationLog.Create(ctx, entry()), ErrDuplicate)

	other := entry()
	other.NotificationType = models.NotificationDueTomorrow
	require.NoError(t, repos.NotificationLog.Create(ctx, other))

	exists, err := repos.NotificationLog.Exists(ctx, models.NotificationOverdue, "loan:1:due:2026-01-15")
	require.NoError(t, err)
	assert.True(t, exists)

	logs, total, err := repos.NotificationLog.ListByCustomer(ctx, loan.CustomerID, NewListQuery())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)
}

func TestPaymentRepository_TotalsAndBatches(t *testing.T) {
	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	loan := seedLoan(t, repos)
	paidAt := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)

	for _, p := range []models.Payment{
		{Amount: decimal.NewFromInt(100), Status: models.PaymentStatusCompleted},
		{Amount: decimal.NewFromInt(50), Status: models.PaymentStatusFailed},
		{Amount: decimal.Zero, Status: models.PaymentStatusCompleted, PaymentMethod: models.PaymentMethodWaived},
	} {
		p.LoanID = loan.ID
		p.CustomerID = loan.CustomerID
		p.PaymentDate = paidAt
		p.DueDate = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
		if p.PaymentMethod == "" {
			p.PaymentMethod = models.PaymentMethodCard
		}
		require.NoError(t, repos.Payment.Create(ctx, &p))
	}

	totals, err := repos.Payment.Totals(ctx, &PaymentQuery{ListQuery: NewListQuery(), LoanID: loan.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), totals.Total)
	assert.Equal(t, int64(2), totals.CompletedCount)
	assert.Equal(t, int64(1), totals.FailedCount)
	assert.Equal(t, "150.00", totals.TotalAmount.StringFixed(2))

	sum, err := repos.Payment.SumCompletedBetween(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "100.00", sum.StringFixed(2))

	byLoan, err := repos.Payment.FindByLoans(ctx, []uint{loan.ID, 42})
	require.NoError(t, err)
	assert.Len(t, byLoan[loan.ID], 3)
	assert.Empty(t, byLoan[42])
}

func TestVehicleRepository_DuplicateVIN(t *testing.T) {
	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	seedLoan(t, repos)

	dup := &models.Vehicle{VIN: "1HGCM82633A004352", Make: "Honda", Model: "Civic", Year: 2021,
		PurchasePrice: decimal.NewFromInt(1), LeasePrice: decimal.NewFromInt(1)}
	assert.ErrorIs(t, repos.Vehicle.Create(ctx, dup), ErrDuplicate)

	count, err := repos.Loan.CountByVehicle(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDashboardCache_SetGetExpire(t *testing.T) {
	repos := NewRepositories(openTestDB(t))
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repos.DashboardCache.Set(ctx, "summary", map[string]int{"a": 1}, now.Add(5*time.Minute)))
	require.NoError(t, repos.DashboardCache.Set(ctx, "summary", map[string]int{"a": 2}, now.Add(5*time.Minute)))

	got, err := repos.DashboardCache.Get(ctx, "summary", now)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(got.Data))

	_, err = repos.DashboardCache.Get(ctx, "summary", now.Add(10*time.Minute))
	assert.True(t, IsNotFound(err))
}
