package repository

import (
	"context"
	"strings"
	"time"

	"github.com/sjperalta/autolease-api/internal/models"
	"gorm.io/gorm"
)

// LoanRepository defines the interface for loan data access
type LoanRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Loan, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error)
	FindByCustomer(ctx context.Context, customerID uint) ([]models.Loan, error)
	FindActive(ctx context.Context) ([]models.Loan, error)
	FindForReport(ctx context.Context, filter *LoanFilter) ([]models.Loan, error)
	Create(ctx context.Context, loan *models.Loan) error
	Update(ctx context.Context, loan *models.Loan) error
	List(ctx context.Context, query *LoanQuery) ([]models.Loan, int64, error)
	CountByVehicle(ctx context.Context, vehicleID uint) (int64, error)
	CountActive(ctx context.Context) (int64, error)
	CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
	GetSalesStats(ctx context.Context, monthStart time.Time) (*SalesStats, error)
}

// LoanQuery extends ListQuery with loan-specific filters
type LoanQuery struct {
	*ListQuery
	CustomerID uint
	VehicleID  uint
	Status     string
	From       *time.Time
	To         *time.Time
}

// LoanFilter narrows the loans folded by reporting views
type LoanFilter struct {
	CustomerID uint
	LoanID     uint
	Search     string
	ActiveOnly bool
}

// SalesStats aggregates loans for the sales summary
type SalesStats struct {
	TotalSales  int64
	TotalValue  float64
	ActiveLoans int64
	ThisMonth   int64
}

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) FindByID(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).First(&loan, id).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByIDWithDetails(ctx context.Context, id uint) (*models.Loan, error) {
	var loan models.Loan
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Preload("Vehicle").
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_date ASC, id ASC")
		}).
		First(&loan, id).Error
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *loanRepository) FindByCustomer(ctx context.Context, customerID uint) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Preload("Vehicle").
		Order("created_at ASC").
		Find(&loans).Error
	return loans, err
}

func (r *loanRepository) FindActive(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ?", models.LoanStatusActive).
		Preload("Customer").
		Preload("Vehicle").
		Order("id ASC").
		Find(&loans).Error
	return loans, err
}

// FindForReport loads loans with their customer and vehicle for reporting
func (r *loanRepository) FindForReport(ctx context.Context, filter *LoanFilter) ([]models.Loan, error) {
	var loans []models.Loan
	db := r.db.WithContext(ctx).Model(&models.Loan{})

	if filter != nil {
		if filter.CustomerID > 0 {
			db = db.Where("loans.customer_id = ?", filter.CustomerID)
		}
		if filter.LoanID > 0 {
			db = db.Where("loans.id = ?", filter.LoanID)
		}
		if filter.ActiveOnly {
			db = db.Where("loans.status = ?", models.LoanStatusActive)
		}
		if filter.Search != "" {
			search := "%" + strings.ToLower(filter.Search) + "%"
			db = db.Joins("JOIN users ON users.id = loans.customer_id").
				Where("LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ? OR LOWER(users.email) LIKE ? OR users.phone LIKE ?",
					search, search, search, search)
		}
	}

	err := db.Preload("Customer").
		Preload("Vehicle").
		Order("loans.id ASC").
		Find(&loans).Error
	return loans, err
}

func (r *loanRepository) Create(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Create(loan).Error
}

func (r *loanRepository) Update(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).Omit("Customer", "Vehicle", "Payments").Save(loan).Error
}

func (r *loanRepository) List(ctx context.Context, query *LoanQuery) ([]models.Loan, int64, error) {
	var loans []models.Loan
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Loan{})

	if query.CustomerID > 0 {
		db = db.Where("loans.customer_id = ?", query.CustomerID)
	}
	if query.VehicleID > 0 {
		db = db.Where("loans.vehicle_id = ?", query.VehicleID)
	}
	if query.Status != "" {
		db = db.Where("loans.status = ?", query.Status)
	}
	if query.From != nil {
		db = db.Where("loans.created_at >= ?", query.From.UTC())
	}
	if query.To != nil {
		db = db.Where("loans.created_at < ?", query.To.UTC())
	}
	if query.Search != "" {
		search := "%" + strings.ToLower(query.Search) + "%"
		db = db.Joins("JOIN users ON users.id = loans.customer_id").
			Joins("JOIN vehicles ON vehicles.id = loans.vehicle_id").
			Where("LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(vehicles.vin) LIKE ? OR LOWER(vehicles.make) LIKE ? OR LOWER(vehicles.model) LIKE ?",
				search, search, search, search, search, search)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = applySort(db, query.ListQuery, "loans.created_at DESC", "created_at", "amount_financed", "total_purchase_price", "status")
	db = applyPage(db, query.ListQuery)

	err := db.Preload("Customer").Preload("Vehicle").Find(&loans).Error
	return loans, total, err
}

func (r *loanRepository) CountByVehicle(ctx context.Context, vehicleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("vehicle_id = ?", vehicleID).
		Count(&count).Error
	return count, err
}

func (r *loanRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("status = ?", models.LoanStatusActive).
		Count(&count).Error
	return count, err
}

func (r *loanRepository) CountCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Count(&count).Error
	return count, err
}

func (r *loanRepository) GetSalesStats(ctx context.Context, monthStart time.Time) (*SalesStats, error) {
	stats := &SalesStats{}
	db := r.db.WithContext(ctx).Model(&models.Loan{})

	if err := db.Count(&stats.TotalSales).Error; err != nil {
		return nil, err
	}
	err := r.db.WithContext(ctx).Model(&models.Loan{}).
		Select("COALESCE(SUM(total_purchase_price), 0)").
		Scan(&stats.TotalValue).Error
	if err != nil {
		return nil, err
	}
	if stats.ActiveLoans, err = r.CountActive(ctx); err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Model(&models.Loan{}).
		Where("created_at >= ?", monthStart.UTC()).
		Count(&stats.ThisMonth).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}
