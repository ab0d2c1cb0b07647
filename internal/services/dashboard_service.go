package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/ledger"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

const (
	// DashboardCacheKey is the cache row holding the admin dashboard
	DashboardCacheKey = "dashboard:summary"
	dashboardCacheTTL = 5 * time.Minute

	dashboardListLimit   = 10
	upcomingWindowDays   = 30
	recentPaymentsLimit  = 10
	maxRecentPaymentsReq = 100
)

// DashboardStats are the headline admin numbers
type DashboardStats struct {
	TotalCustomers  int64    `json:"total_customers"`
	ActiveLoans     int64    `json:"active_loans"`
	OverdueAccounts int      `json:"overdue_accounts"`
	MonthlyRevenue  string   `json:"monthly_revenue"`
	CustomersGrowth *float64 `json:"customers_growth"`
	LoansGrowth     *float64 `json:"loans_growth"`
	RevenueGrowth   *float64 `json:"revenue_growth"`
}

// RecentPayment is a completed payment on the dashboard
type RecentPayment struct {
	PaymentID     uint      `json:"payment_id"`
	CustomerID    uint      `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	LoanID        uint      `json:"loan_id"`
	VehicleName   string    `json:"vehicle_name,omitempty"`
	PaymentDate   time.Time `json:"payment_date"`
	Amount        string    `json:"amount"`
	EMIAmount     string    `json:"emi_amount"`
	PaymentMethod string    `json:"payment_method"`
	Status        string    `json:"status"`
}

// OverdueAccount is an active loan with at least one overdue due date
type OverdueAccount struct {
	CustomerID    uint   `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	LoanID        uint   `json:"loan_id"`
	DueDate       string `json:"due_date"`
	OverdueAmount string `json:"overdue_amount"`
	OverdueCount  int    `json:"overdue_count"`
	EMIAmount     string `json:"emi_amount"`
	DaysOverdue   int    `json:"days_overdue"`
}

// UpcomingPayment is an unpaid due date in the coming days
type UpcomingPayment struct {
	CustomerID    uint   `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	LoanID        uint   `json:"loan_id"`
	DueDate       string `json:"due_date"`
	PaymentAmount string `json:"payment_amount"`
	EMIAmount     string `json:"emi_amount"`
	DaysUntilDue  int    `json:"days_until_due"`
}

// DashboardResponse is the cached admin dashboard
type DashboardResponse struct {
	SummaryStats        DashboardStats    `json:"summary_stats"`
	RecentPayments      []RecentPayment   `json:"recent_payments"`
	OverdueAccountsList []OverdueAccount  `json:"overdue_accounts_list"`
	UpcomingPayments    []UpcomingPayment `json:"upcoming_payments"`
	GeneratedAt         time.Time         `json:"generated_at"`
}

type DashboardService struct {
	repos *repository.Repositories
}

func NewDashboardService(repos *repository.Repositories) *DashboardService {
	return &DashboardService{repos: repos}
}

// Summary returns the dashboard, from cache when a fresh snapshot exists
func (s *DashboardService) Summary(ctx context.Context, now time.Time) (*DashboardResponse, error) {
	now = now.UTC()
	if cached, err := s.repos.DashboardCache.Get(ctx, DashboardCacheKey, now); err == nil {
		var resp DashboardResponse
		if err := json.Unmarshal(cached.Data, &resp); err == nil {
			return &resp, nil
		}
	}

	resp, err := s.build(ctx, now)
	if err != nil {
		return nil, err
	}
	if err := s.repos.DashboardCache.Set(ctx, DashboardCacheKey, resp, now.Add(dashboardCacheTTL)); err != nil {
		logger.Warn("Failed to cache dashboard", "error", err)
	}
	return resp, nil
}

// Invalidate drops the cached dashboard
func (s *DashboardService) Invalidate(ctx context.Context) {
	if err := s.repos.DashboardCache.Invalidate(ctx, DashboardCacheKey); err != nil {
		logger.Warn("Failed to invalidate dashboard cache", "error", err)
	}
}

func (s *DashboardService) build(ctx context.Context, now time.Time) (*DashboardResponse, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevMonthStart := monthStart.AddDate(0, -1, 0)
	nextMonthStart := monthStart.AddDate(0, 1, 0)

	var stats DashboardStats
	var err error
	if stats.TotalCustomers, err = s.repos.User.CountCustomers(ctx); err != nil {
		return nil, err
	}
	if stats.ActiveLoans, err = s.repos.Loan.CountActive(ctx); err != nil {
		return nil, err
	}

	customersCur, err := s.repos.User.CountCustomersCreatedBetween(ctx, monthStart, nextMonthStart)
	if err != nil {
		return nil, err
	}
	customersPrev, err := s.repos.User.CountCustomersCreatedBetween(ctx, prevMonthStart, monthStart)
	if err != nil {
		return nil, err
	}
	loansCur, err := s.repos.Loan.CountCreatedBetween(ctx, monthStart, nextMonthStart)
	if err != nil {
		return nil, err
	}
	loansPrev, err := s.repos.Loan.CountCreatedBetween(ctx, prevMonthStart, monthStart)
	if err != nil {
		return nil, err
	}
	revenueCur, err := s.repos.Payment.SumCompletedBetween(ctx, monthStart, nextMonthStart)
	if err != nil {
		return nil, err
	}
	revenuePrev, err := s.repos.Payment.SumCompletedBetween(ctx, prevMonthStart, monthStart)
	if err != nil {
		return nil, err
	}

	stats.MonthlyRevenue = money.NonNegative(revenueCur).StringFixed(2)
	stats.CustomersGrowth = growth(decimal.NewFromInt(customersCur), decimal.NewFromInt(customersPrev))
	stats.LoansGrowth = growth(decimal.NewFromInt(loansCur), decimal.NewFromInt(loansPrev))
	stats.RevenueGrowth = growth(revenueCur, revenuePrev)

	recent, err := s.RecentPayments(ctx, recentPaymentsLimit)
	if err != nil {
		return nil, err
	}

	loans, err := s.repos.Loan.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	ledgers, err := loanLedgers(ctx, s.repos, loans)
	if err != nil {
		return nil, err
	}

	overdue := []OverdueAccount{}
	upcoming := []UpcomingPayment{}
	for i := range loans {
		loan := &loans[i]
		l := ledgers[loan.ID]

		if entries := l.Overdue(now); len(entries) > 0 {
			total := decimal.Zero
			for _, e := range entries {
				total = total.Add(e.Remaining)
			}
			overdue = append(overdue, OverdueAccount{
				CustomerID:    loan.CustomerID,
				CustomerName:  loan.Customer.FullName(),
				LoanID:        loan.ID,
				DueDate:       entries[0].DateKey(),
				OverdueAmount: money.Round2(total).StringFixed(2),
				OverdueCount:  len(entries),
				EMIAmount:     loan.InstallmentAmount.StringFixed(2),
				DaysOverdue:   entries[0].DaysOverdue,
			})
		}

		for _, e := range l.Entries(now, now.AddDate(0, 0, upcomingWindowDays), now) {
			if e.Status != ledger.StatusUpcoming {
				continue
			}
			upcoming = append(upcoming, UpcomingPayment{
				CustomerID:    loan.CustomerID,
				CustomerName:  loan.Customer.FullName(),
				LoanID:        loan.ID,
				DueDate:       e.DateKey(),
				PaymentAmount: e.Remaining.StringFixed(2),
				EMIAmount:     e.Installment.StringFixed(2),
				DaysUntilDue:  e.DaysUntilDue,
			})
		}
	}
	stats.OverdueAccounts = len(overdue)

	sort.SliceStable(overdue, func(i, j int) bool {
		if overdue[i].DaysOverdue != overdue[j].DaysOverdue {
			return overdue[i].DaysOverdue > overdue[j].DaysOverdue
		}
		return overdue[i].LoanID < overdue[j].LoanID
	})
	sort.SliceStable(upcoming, func(i, j int) bool {
		if upcoming[i].DueDate != upcoming[j].DueDate {
			return upcoming[i].DueDate < upcoming[j].DueDate
		}
		return upcoming[i].LoanID < upcoming[j].LoanID
	})
	if len(upcoming) > dashboardListLimit {
		upcoming = upcoming[:dashboardListLimit]
	}

	return &DashboardResponse{
		SummaryStats:        stats,
		RecentPayments:      recent,
		OverdueAccountsList: overdue,
		UpcomingPayments:    upcoming,
		GeneratedAt:         now,
	}, nil
}

// RecentPayments returns the newest completed payments
func (s *DashboardService) RecentPayments(ctx context.Context, limit int) ([]RecentPayment, error) {
	if limit < 1 {
		limit = recentPaymentsLimit
	}
	if limit > maxRecentPaymentsReq {
		limit = maxRecentPaymentsReq
	}
	payments, err := s.repos.Payment.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RecentPayment, 0, len(payments))
	for i := range payments {
		out = append(out, recentPayment(&payments[i]))
	}
	return out, nil
}

func recentPayment(p *models.Payment) RecentPayment {
	emi := decimal.Zero
	if p.EMIAmount != nil {
		emi = *p.EMIAmount
	}
	rp := RecentPayment{
		PaymentID:     p.ID,
		CustomerID:    p.CustomerID,
		CustomerName:  p.Customer.FullName(),
		LoanID:        p.LoanID,
		PaymentDate:   p.PaymentDate,
		Amount:        p.DisplayAmount().StringFixed(2),
		EMIAmount:     emi.StringFixed(2),
		PaymentMethod: p.PaymentMethod,
		Status:        p.Status,
	}
	if p.Loan.Vehicle.ID != 0 {
		rp.VehicleName = p.Loan.Vehicle.DisplayName()
	}
	return rp
}

// growth is the percentage change from prev to cur, nil when prev is zero
func growth(cur, prev decimal.Decimal) *float64 {
	if prev.IsZero() {
		return nil
	}
	pct, _ := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return &pct
}
