package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/models"
	"gorm.io/gorm"
)

// PaymentRepository defines the interface for payment data access.
// Payments are append-only apart from admin status changes.
type PaymentRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Payment, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, id uint, status string) error
	FindByLoan(ctx context.Context, loanID uint) ([]models.Payment, error)
	FindByLoans(ctx context.Context, loanIDs []uint) (map[uint][]models.Payment, error)
	List(ctx context.Context, query *PaymentQuery) ([]models.Payment, int64, error)
	Totals(ctx context.Context, query *PaymentQuery) (*PaymentTotals, error)
	SumCompletedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	Recent(ctx context.Context, limit int) ([]models.Payment, error)
}

// PaymentQuery extends ListQuery with payment-specific filters
type PaymentQuery struct {
	*ListQuery
	CustomerID uint
	LoanID     uint
	Status     string
	From       *time.Time
	To         *time.Time
}

// PaymentTotals summarizes the payments matching a query
type PaymentTotals struct {
	Total          int64
	TotalAmount    decimal.Decimal
	CompletedCount int64
	FailedCount    int64
}

type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) FindByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Loan.Vehicle").
		First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Omit("Loan", "Customer").Create(payment).Error
}

func (r *paymentRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// FindByLoan returns every payment of a loan regardless of status
func (r *paymentRepository) FindByLoan(ctx context.Context, loanID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("payment_date ASC, id ASC").
		Find(&payments).Error
	return payments, err
}

// FindByLoans batches FindByLoan for reporting folds
func (r *paymentRepository) FindByLoans(ctx context.Context, loanIDs []uint) (map[uint][]models.Payment, error) {
	out := make(map[uint][]models.Payment, len(loanIDs))
	if len(loanIDs) == 0 {
		return out, nil
	}
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("loan_id IN ?", loanIDs).
		Order("payment_date ASC, id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		out[p.LoanID] = append(out[p.LoanID], p)
	}
	return out, nil
}

func (r *paymentRepository) filtered(ctx context.Context, query *PaymentQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Payment{})
	if query.CustomerID > 0 {
		db = db.Where("payments.customer_id = ?", query.CustomerID)
	}
	if query.LoanID > 0 {
		db = db.Where("payments.loan_id = ?", query.LoanID)
	}
	if query.Status != "" {
		db = db.Where("payments.status = ?", query.Status)
	}
	if query.From != nil {
		db = db.Where("payments.payment_date >= ?", query.From.UTC())
	}
	if query.To != nil {
		db = db.Where("payments.payment_date < ?", query.To.UTC())
	}
	return db
}

func (r *paymentRepository) List(ctx context.Context, query *PaymentQuery) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	db := r.filtered(ctx, query)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = applySort(db, query.ListQuery, "payments.payment_date DESC, payments.id DESC", "payment_date", "amount", "due_date", "status")
	db = applyPage(db, query.ListQuery)

	err := db.Preload("Customer").Preload("Loan.Vehicle").Find(&payments).Error
	return payments, total, err
}

// Totals counts matching payments and sums their non-negative amounts
func (r *paymentRepository) Totals(ctx context.Context, query *PaymentQuery) (*PaymentTotals, error) {
	var row struct {
		Total          int64
		TotalAmount    float64
		CompletedCount int64
		FailedCount    int64
	}
	err := r.filtered(ctx, query).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN payments.amount > 0 THEN payments.amount ELSE 0 END), 0) AS total_amount,
			COALESCE(SUM(CASE WHEN payments.status = ? THEN 1 ELSE 0 END), 0) AS completed_count,
			COALESCE(SUM(CASE WHEN payments.status = ? THEN 1 ELSE 0 END), 0) AS failed_count`,
			models.PaymentStatusCompleted, models.PaymentStatusFailed).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &PaymentTotals{
		Total:          row.Total,
		TotalAmount:    decimal.NewFromFloat(row.TotalAmount).Round(2),
		CompletedCount: row.CompletedCount,
		FailedCount:    row.FailedCount,
	}, nil
}

// SumCompletedBetween sums completed, non-negative amounts paid in [from, to)
func (r *paymentRepository) SumCompletedBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Select("COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0)").
		Where("status = ? AND payment_date >= ? AND payment_date < ?", models.PaymentStatusCompleted, from.UTC(), to.UTC()).
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(total).Round(2), nil
}

func (r *paymentRepository) Recent(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ?", models.PaymentStatusCompleted).
		Preload("Customer").
		Preload("Loan.Vehicle").
		Order("payment_date DESC, id DESC").
		Limit(limit).
		Find(&payments).Error
	return payments, err
}
