package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/ledger"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/schedule"
)

// summaryLookaheadDays is the default end of the admin summary window
const summaryLookaheadDays = 30

// SummaryFilter narrows the admin payment summary
type SummaryFilter struct {
	Search     string
	From       *time.Time
	To         *time.Time
	CustomerID uint
	LoanID     uint
}

// DueItem is one scheduled due date in a report
type DueItem struct {
	LoanID        uint   `json:"loan_id"`
	CustomerID    uint   `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	VehicleName   string `json:"vehicle_name"`
	DueDate       string `json:"due_date"`
	Amount        string `json:"amount"`
	Paid          string `json:"paid"`
	Remaining     string `json:"remaining"`
	Status        string `json:"status"`
	DaysOverdue   int    `json:"days_overdue"`
	DaysUntilDue  int    `json:"days_until_due"`

	due         time.Time
	installment decimal.Decimal
	remaining   decimal.Decimal
}

// PaymentSummary is the admin view of collected, pending and overdue dues
type PaymentSummary struct {
	PaidDues         []DueItem `json:"paid_dues"`
	UnpaidDues       []DueItem `json:"unpaid_dues"`
	OverduePayments  []DueItem `json:"overdue_payments"`
	TotalCollected   string    `json:"total_collected"`
	PendingAmount    string    `json:"pending_amount"`
	OverdueAmount    string    `json:"overdue_amount"`
	TotalPaymentLeft string    `json:"total_payment_left"`
}

// OverdueReport is a paginated list of overdue dues on active loans
type OverdueReport struct {
	Items            []DueItem `json:"items"`
	TotalCount       int       `json:"total_count"`
	TotalOutstanding string    `json:"total_outstanding"`
	AvgDaysOverdue   float64   `json:"avg_days_overdue"`
	Page             int       `json:"page"`
	PerPage          int       `json:"per_page"`
}

// TransactionList is a page of payments with totals over the whole filter
type TransactionList struct {
	Transactions   []models.PaymentResponse `json:"transactions"`
	Total          int64                    `json:"total"`
	TotalAmount    string                   `json:"total_amount"`
	CompletedCount int64                    `json:"completed_count"`
	FailedCount    int64                    `json:"failed_count"`
	Page           int                      `json:"page"`
	PerPage        int                      `json:"per_page"`
}

// loanLedgers loads the payments of loans and builds one ledger per loan
func loanLedgers(ctx context.Context, repos *repository.Repositories, loans []models.Loan) (map[uint]*ledger.Ledger, error) {
	ids := make([]uint, 0, len(loans))
	for _, l := range loans {
		ids = append(ids, l.ID)
	}
	byLoan, err := repos.Payment.FindByLoans(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[uint]*ledger.Ledger, len(loans))
	for i := range loans {
		out[loans[i].ID] = ledger.New(ledger.TermsOf(&loans[i]), byLoan[loans[i].ID])
	}
	return out, nil
}

func dueItem(loan *models.Loan, e ledger.Entry) DueItem {
	item := DueItem{
		LoanID:       loan.ID,
		CustomerID:   loan.CustomerID,
		DueDate:      e.DateKey(),
		Amount:       e.Installment.StringFixed(2),
		Paid:         money.NonNegative(e.Paid).StringFixed(2),
		Remaining:    e.Remaining.StringFixed(2),
		Status:       string(e.Status),
		DaysOverdue:  e.DaysOverdue,
		DaysUntilDue: e.DaysUntilDue,
		due:          e.DueDate,
		installment:  e.Installment,
		remaining:    e.Remaining,
	}
	if loan.Customer.ID != 0 {
		item.CustomerName = loan.Customer.FullName()
		item.CustomerEmail = loan.Customer.Email
		item.CustomerPhone = loan.Customer.Phone
	}
	if loan.Vehicle.ID != 0 {
		item.VehicleName = loan.Vehicle.DisplayName()
	}
	return item
}

func sortByDueThenLoan(items []DueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := schedule.DayNumber(items[i].due), schedule.DayNumber(items[j].due)
		if di != dj {
			return di < dj
		}
		return items[i].LoanID < items[j].LoanID
	})
}

// AdminSummary folds every matching loan's schedule between the window
// bounds into paid, unpaid and overdue dues. Closed loans only contribute
// their paid history.
func (s *PaymentService) AdminSummary(ctx context.Context, filter SummaryFilter) (*PaymentSummary, error) {
	loans, err := s.repos.Loan.FindForReport(ctx, &repository.LoanFilter{
		CustomerID: filter.CustomerID,
		LoanID:     filter.LoanID,
		Search:     strings.TrimSpace(filter.Search),
	})
	if err != nil {
		return nil, err
	}
	ledgers, err := loanLedgers(ctx, s.repos, loans)
	if err != nil {
		return nil, err
	}

	now := s.now()
	to := now.AddDate(0, 0, summaryLookaheadDays)
	if filter.To != nil {
		to = filter.To.UTC()
	}

	summary := &PaymentSummary{
		PaidDues:        []DueItem{},
		UnpaidDues:      []DueItem{},
		OverduePayments: []DueItem{},
	}
	var totals ledger.Totals
	for i := range loans {
		loan := &loans[i]
		from := loan.CreatedAt.UTC()
		if filter.From != nil {
			from = filter.From.UTC()
		}
		entries := ledgers[loan.ID].Entries(from, to, now)
		if !loan.IsActive() {
			entries = paidOnly(entries)
		}
		totals.Fold(entries)
		for _, e := range entries {
			item := dueItem(loan, e)
			switch e.Status {
			case ledger.StatusPaid:
				summary.PaidDues = append(summary.PaidDues, item)
			case ledger.StatusOverdue:
				summary.OverduePayments = append(summary.OverduePayments, item)
			default:
				summary.UnpaidDues = append(summary.UnpaidDues, item)
			}
		}
	}

	sortByDueThenLoan(summary.PaidDues)
	sortByDueThenLoan(summary.UnpaidDues)
	sortByDueThenLoan(summary.OverduePayments)

	summary.TotalCollected = totals.Collected.StringFixed(2)
	summary.PendingAmount = totals.Pending.StringFixed(2)
	summary.OverdueAmount = totals.Overdue.StringFixed(2)
	summary.TotalPaymentLeft = money.Round2(totals.Pending.Add(totals.Overdue)).StringFixed(2)
	return summary, nil
}

func paidOnly(entries []ledger.Entry) []ledger.Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.IsPaid() {
			out = append(out, e)
		}
	}
	return out
}

// overdueItems lists every overdue due of active loans, most overdue first
func (s *PaymentService) overdueItems(ctx context.Context, now time.Time) ([]DueItem, error) {
	loans, err := s.repos.Loan.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	ledgers, err := loanLedgers(ctx, s.repos, loans)
	if err != nil {
		return nil, err
	}

	var items []DueItem
	for i := range loans {
		for _, e := range ledgers[loans[i].ID].Overdue(now) {
			items = append(items, dueItem(&loans[i], e))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DaysOverdue != items[j].DaysOverdue {
			return items[i].DaysOverdue > items[j].DaysOverdue
		}
		return items[i].LoanID < items[j].LoanID
	})
	return items, nil
}

// OverdueReport pages through overdue dues on active loans
func (s *PaymentService) OverdueReport(ctx context.Context, page, perPage int) (*OverdueReport, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	items, err := s.overdueItems(ctx, s.now())
	if err != nil {
		return nil, err
	}

	outstanding := decimal.Zero
	days := 0
	for _, it := range items {
		outstanding = outstanding.Add(it.remaining)
		days += it.DaysOverdue
	}
	avg := 0.0
	if len(items) > 0 {
		avg, _ = decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(int64(len(items)))).Round(2).Float64()
	}

	report := &OverdueReport{
		Items:            []DueItem{},
		TotalCount:       len(items),
		TotalOutstanding: money.Round2(outstanding).StringFixed(2),
		AvgDaysOverdue:   avg,
		Page:             page,
		PerPage:          perPage,
	}
	start := (page - 1) * perPage
	if start < len(items) {
		end := start + perPage
		if end > len(items) {
			end = len(items)
		}
		report.Items = items[start:end]
	}
	return report, nil
}

// ListTransactions lists payments for admins
func (s *PaymentService) ListTransactions(ctx context.Context, query *repository.PaymentQuery) (*TransactionList, error) {
	payments, total, err := s.repos.Payment.List(ctx, query)
	if err != nil {
		return nil, err
	}
	totals, err := s.repos.Payment.Totals(ctx, query)
	if err != nil {
		return nil, err
	}

	list := &TransactionList{
		Transactions:   make([]models.PaymentResponse, 0, len(payments)),
		Total:          total,
		TotalAmount:    totals.TotalAmount.StringFixed(2),
		CompletedCount: totals.CompletedCount,
		FailedCount:    totals.FailedCount,
		Page:           query.Page,
		PerPage:        query.PerPage,
	}
	for i := range payments {
		list.Transactions = append(list.Transactions, payments[i].ToResponse())
	}
	return list, nil
}

// ListMyTransactions lists one customer's own payments
func (s *PaymentService) ListMyTransactions(ctx context.Context, customerID uint, query *repository.PaymentQuery) (*TransactionList, error) {
	query.CustomerID = customerID
	return s.ListTransactions(ctx, query)
}

// ExportOverdue renders every overdue due as an xlsx workbook
func (s *PaymentService) ExportOverdue(ctx context.Context, export *ExportService) ([]byte, string, error) {
	now := s.now()
	items, err := s.overdueItems(ctx, now)
	if err != nil {
		return nil, "", err
	}
	return export.OverdueWorkbook(items, now)
}
