package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sjperalta/autolease-api/internal/models"
)

// Repositories holds all repository instances
type Repositories struct {
	db *gorm.DB

	User            UserRepository
	Vehicle         VehicleRepository
	Loan            LoanRepository
	Payment         PaymentRepository
	NotificationLog NotificationLogRepository
	Notification    NotificationRepository
	RefreshToken    RefreshTokenRepository
	DashboardCache  DashboardCacheRepository
}

// NewRepositories creates all repository instances
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:              db,
		User:            NewUserRepository(db),
		Vehicle:         NewVehicleRepository(db),
		Loan:            NewLoanRepository(db),
		Payment:         NewPaymentRepository(db),
		NotificationLog: NewNotificationLogRepository(db),
		Notification:    NewNotificationRepository(db),
		RefreshToken:    NewRefreshTokenRepository(db),
		DashboardCache:  NewDashboardCacheRepository(db),
	}
}

// DB exposes the underlying connection for health checks
func (r *Repositories) DB() *gorm.DB {
	return r.db
}

// TxFunc runs inside a transaction with repositories bound to it
type TxFunc func(tx *Repositories) error

// LoanTxFunc additionally receives the loan row, locked for update
type LoanTxFunc func(tx *Repositories, loan *models.Loan) error

// WithinTx runs fn in a database transaction
func (r *Repositories) WithinTx(ctx context.Context, fn TxFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// WithinLoanTx runs fn in a transaction after locking the loan row with
// SELECT ... FOR UPDATE, so balance reads and writes on one loan serialize.
func (r *Repositories) WithinLoanTx(ctx context.Context, loanID uint, fn LoanTxFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var loan models.Loan
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&loan, loanID).Error
		if err != nil {
			return err
		}
		return fn(NewRepositories(tx), &loan)
	})
}
