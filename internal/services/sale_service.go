package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/jobs"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/schedule"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

// SaleService creates loans for vehicle sales and reports on them
type SaleService struct {
	repos           *repository.Repositories
	notificationSvc *NotificationService
	auditSvc        *AuditService
	exportSvc       *ExportService
	worker          *jobs.Worker
	now             func() time.Time
}

func NewSaleService(
	repos *repository.Repositories,
	notificationSvc *NotificationService,
	auditSvc *AuditService,
	exportSvc *ExportService,
	worker *jobs.Worker,
) *SaleService {
	return &SaleService{
		repos:           repos,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
		exportSvc:       exportSvc,
		worker:          worker,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// CreateSaleInput describes a vehicle sale to a customer
type CreateSaleInput struct {
	CustomerID       uint
	VehicleID        uint
	SaleAmount       decimal.Decimal
	DownPayment      decimal.Decimal
	TermMonths       float64
	PaymentFrequency string
	Actor            Actor
}

// InstallmentEstimate is a zero-interest installment quote
type InstallmentEstimate struct {
	SaleAmount        string  `json:"sale_amount"`
	DownPayment       string  `json:"down_payment"`
	AmountFinanced    string  `json:"amount_financed"`
	TermMonths        float64 `json:"term_months"`
	PaymentFrequency  string  `json:"payment_frequency"`
	InstallmentCount  int     `json:"installment_count"`
	InstallmentAmount string  `json:"installment_amount"`
	FinalInstallment  string  `json:"final_installment"` // absorbs the rounding of the others
}

func validateSaleTerms(sale, down decimal.Decimal, termMonths float64, frequency string) (decimal.Decimal, error) {
	if !sale.IsPositive() {
		return decimal.Zero, validationError("sale_amount must be greater than zero")
	}
	if down.IsNegative() {
		return decimal.Zero, validationError("down_payment cannot be negative")
	}
	if down.GreaterThan(sale) {
		return decimal.Zero, validationError("down_payment cannot exceed sale_amount")
	}
	if termMonths <= 0 {
		return decimal.Zero, validationError("term_months must be greater than zero")
	}
	if frequency != "" && !schedule.Valid(frequency) {
		return decimal.Zero, validationError("invalid payment_frequency %q", frequency)
	}
	return money.Round2(sale.Sub(down)), nil
}

// EstimateInstallment quotes the installment for a prospective sale
func (s *SaleService) EstimateInstallment(sale, down decimal.Decimal, termMonths float64, frequency string) (*InstallmentEstimate, error) {
	financed, err := validateSaleTerms(sale, down, termMonths, frequency)
	if err != nil {
		return nil, err
	}
	freq := schedule.ParseFrequency(frequency)
	count := schedule.InstallmentCount(termMonths, freq)
	installment := schedule.InstallmentAmount(financed, termMonths, freq)
	return &InstallmentEstimate{
		SaleAmount:        money.Round2(sale).StringFixed(2),
		DownPayment:       money.Round2(down).StringFixed(2),
		AmountFinanced:    financed.StringFixed(2),
		TermMonths:        termMonths,
		PaymentFrequency:  string(freq),
		InstallmentCount:  count,
		InstallmentAmount: installment.StringFixed(2),
		FinalInstallment:  schedule.FinalInstallment(financed, installment, count).StringFixed(2),
	}, nil
}

// CreateSale records the loan for a sale and marks the vehicle leased. A
// sale paid in full by the down payment creates a closed loan.
func (s *SaleService) CreateSale(ctx context.Context, in CreateSaleInput) (*models.Loan, error) {
	financed, err := validateSaleTerms(in.SaleAmount, in.DownPayment, in.TermMonths, in.PaymentFrequency)
	if err != nil {
		return nil, err
	}
	freq := schedule.ParseFrequency(in.PaymentFrequency)
	now := s.now()

	var loan *models.Loan
	err = s.repos.WithinTx(ctx, func(tx *repository.Repositories) error {
		customer, err := tx.User.FindByID(ctx, in.CustomerID)
		if err != nil {
			return notFound(err, "customer")
		}
		if !customer.IsCustomer() {
			return fmt.Errorf("%w: customer", ErrNotFound)
		}
		if !customer.IsActive() {
			return validationError("customer account is inactive")
		}

		vehicle, err := tx.Vehicle.FindByID(ctx, in.VehicleID)
		if err != nil {
			return notFound(err, "vehicle")
		}
		if vehicle.IsAssigned() {
			return validationError("vehicle is already leased")
		}

		end := schedule.FinalDueDate(now, in.TermMonths, freq)
		loan = &models.Loan{
			CustomerID:         customer.ID,
			VehicleID:          vehicle.ID,
			TotalPurchasePrice: money.Round2(in.SaleAmount),
			DownPayment:        money.Round2(in.DownPayment),
			AmountFinanced:     financed,
			InstallmentAmount:  schedule.InstallmentAmount(financed, in.TermMonths, freq),
			TermMonths:         in.TermMonths,
			PaymentFrequency:   string(freq),
			Status:             models.LoanStatusActive,
			TotalPaid:          money.Round2(in.DownPayment),
			LeaseStartDate:     &now,
			LeaseEndDate:       &end,
			CreatedAt:          now,
		}
		if money.Settled(financed) {
			loan.Status = models.LoanStatusClosed
			loan.AmountFinanced = decimal.Zero
			loan.ClosedAt = &now
		}
		if err := tx.Loan.Create(ctx, loan); err != nil {
			return err
		}
		if err := tx.Vehicle.SetStatus(ctx, vehicle.ID, models.VehicleStatusLeased); err != nil {
			return err
		}
		vehicle.Status = models.VehicleStatusLeased
		loan.Customer, loan.Vehicle = *customer, *vehicle
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, in.Actor, AuditCreate, models.EntityLoan, loan.ID,
		fmt.Sprintf("sale of vehicle %d to customer %d: %s financed over %.2f months", loan.VehicleID, loan.CustomerID, money.Format(loan.AmountFinanced), loan.TermMonths))
	if err := s.repos.DashboardCache.Invalidate(ctx, DashboardCacheKey); err != nil {
		logger.Warn("Failed to invalidate dashboard cache", "error", err)
	}

	if s.notificationSvc != nil {
		loanID, customerID := loan.ID, loan.CustomerID
		vehicleName := loan.Vehicle.DisplayName()
		runAsync(s.worker, func(ctx context.Context) error {
			msg := fmt.Sprintf("Your lease for the %s has been created.", vehicleName)
			if err := s.notificationSvc.NotifyUser(ctx, customerID, models.Notice{Title: "Lease created", Message: msg, Type: models.NoticeLoanCreated, LoanID: loanID}); err != nil {
				logger.Warn("Failed to notify customer of new lease", "loan_id", loanID, "error", err)
			}
			return s.notificationSvc.NotifyAdmins(ctx, models.Notice{
				Title:   "New sale",
				Message: fmt.Sprintf("Lease #%d was created for the %s.", loanID, vehicleName),
				Type:    models.NoticeLoanCreated,
				LoanID:  loanID,
			})
		})
	}
	return loan, nil
}

// SalesSummary aggregates every loan
type SalesSummary struct {
	TotalSales  int64  `json:"total_sales"`
	TotalValue  string `json:"total_value"`
	ActiveLoans int64  `json:"active_loans"`
	ThisMonth   int64  `json:"this_month"`
}

// SalesList is a page of sales with the overall summary
type SalesList struct {
	Sales   []models.LoanResponse `json:"sales"`
	Total   int64                 `json:"total"`
	Page    int                   `json:"page"`
	PerPage int                   `json:"per_page"`
	Summary SalesSummary          `json:"summary"`
}

func (s *SaleService) ListSales(ctx context.Context, query *repository.LoanQuery) (*SalesList, error) {
	loans, total, err := s.repos.Loan.List(ctx, query)
	if err != nil {
		return nil, err
	}
	now := s.now()
	stats, err := s.repos.Loan.GetSalesStats(ctx, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}

	out := &SalesList{
		Sales:   make([]models.LoanResponse, 0, len(loans)),
		Total:   total,
		Page:    query.Page,
		PerPage: query.PerPage,
		Summary: SalesSummary{
			TotalSales:  stats.TotalSales,
			TotalValue:  money.NonNegative(decimal.NewFromFloat(stats.TotalValue)).StringFixed(2),
			ActiveLoans: stats.ActiveLoans,
			ThisMonth:   stats.ThisMonth,
		},
	}
	for i := range loans {
		out.Sales = append(out.Sales, loans[i].ToResponse())
	}
	return out, nil
}

// FindLoan returns a loan with its customer, vehicle and payments
func (s *SaleService) FindLoan(ctx context.Context, id uint) (*models.Loan, error) {
	loan, err := s.repos.Loan.FindByIDWithDetails(ctx, id)
	if err != nil {
		return nil, notFound(err, "loan")
	}
	return loan, nil
}

// ExportSales renders every loan matching query as an xlsx workbook
func (s *SaleService) ExportSales(ctx context.Context, query *repository.LoanQuery) ([]byte, string, error) {
	query.ListQuery.Page, query.ListQuery.PerPage = 1, 0
	loans, _, err := s.repos.Loan.List(ctx, query)
	if err != nil {
		return nil, "", err
	}
	return s.exportSvc.SalesWorkbook(loans, s.now())
}
