package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sjperalta/autolease-api/internal/database"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/repository"
)

// loanCreated is the creation time of the seeded lease. Its monthly
// schedule is Feb 1, Mar 1 and Apr 1 2026 at 100.00 each.
var loanCreated = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func day(m time.Month, d int) time.Time {
	return time.Date(2026, m, d, 9, 0, 0, 0, time.UTC)
}

func openServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	return db
}

type recordingPush struct {
	mu   sync.Mutex
	sent []string
}

func (p *recordingPush) Send(_ context.Context, token, title, _ string, _ map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, title)
	return nil
}

func (p *recordingPush) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

type fakeCapturer struct {
	result *CaptureResult
	err    error
	calls  []CaptureRequest
}

func (c *fakeCapturer) Capture(_ context.Context, req CaptureRequest) (*CaptureResult, error) {
	c.calls = append(c.calls, req)
	if c.err != nil {
		return nil, c.err
	}
	if c.result != nil {
		return c.result, nil
	}
	return &CaptureResult{
		Reference:      "pi_test",
		AmountReceived: decimal.New(req.AmountCents, -2),
	}, nil
}

type fixture struct {
	db       *gorm.DB
	repos    *repository.Repositories
	push     *recordingPush
	notifier *NotificationService
	audit    *AuditService
	customer *models.User
	vehicle  *models.Vehicle
	loan     *models.Loan
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := openServiceDB(t)
	repos := repository.NewRepositories(db)
	push := &recordingPush{}

	token := "device-token-1"
	customer := &models.User{
		Email:             "ana@example.com",
		EncryptedPassword: "x",
		FirstName:         "Ana",
		LastName:          "Lopez",
		Role:              models.RoleCustomer,
		DeviceToken:       &token,
	}
	require.NoError(t, repos.User.Create(ctx, customer))
	admin := &models.User{Email: "admin@example.com", EncryptedPassword: "x", FirstName: "Ada", Role: models.RoleAdmin}
	require.NoError(t, repos.User.Create(ctx, admin))

	vehicle := &models.Vehicle{
		VIN: "1HGCM82633A004352", Make: "Honda", Model: "Accord", Year: 2022,
		PurchasePrice: decimal.NewFromInt(20000), LeasePrice: decimal.NewFromInt(24000),
		Status: models.VehicleStatusLeased,
	}
	require.NoError(t, repos.Vehicle.Create(ctx, vehicle))

	loan := &models.Loan{
		CustomerID:         customer.ID,
		VehicleID:          vehicle.ID,
		TotalPurchasePrice: decimal.NewFromInt(400),
		DownPayment:        decimal.NewFromInt(100),
		AmountFinanced:     decimal.NewFromInt(300),
		InstallmentAmount:  decimal.NewFromInt(100),
		TermMonths:         3,
		PaymentFrequency:   "monthly",
		Status:             models.LoanStatusActive,
		TotalPaid:          decimal.NewFromInt(100),
		CreatedAt:          loanCreated,
	}
	require.NoError(t, repos.Loan.Create(ctx, loan))

	return &fixture{
		db:       db,
		repos:    repos,
		push:     push,
		notifier: NewNotificationService(repos.Notification, repos.NotificationLog, repos.User, push, nil, nil),
		audit:    NewAuditService(db),
		customer: customer,
		vehicle:  vehicle,
		loan:     loan,
	}
}

// payments returns a payment service with a nil worker, so post-commit
// effects run inline, and a fixed clock.
func (f *fixture) payments(capturer PaymentCapturer, now time.Time) *PaymentService {
	svc := NewPaymentService(f.repos, capturer, f.notifier, nil, f.audit, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func (f *fixture) reloadLoan(t *testing.T) *models.Loan {
	t.Helper()
	loan, err := f.repos.Loan.FindByID(context.Background(), f.loan.ID)
	require.NoError(t, err)
	return loan
}

func (f *fixture) countLogs(t *testing.T, notificationType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.NotificationLog{}).Where("notification_type = ?", notificationType).Count(&n).Error)
	return n
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
