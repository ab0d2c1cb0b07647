package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/sjperalta/autolease-api/internal/ledger"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/schedule"
)

// StatementService renders loan statements as PDF
type StatementService struct {
	repos *repository.Repositories
	now   func() time.Time
}

func NewStatementService(repos *repository.Repositories) *StatementService {
	return &StatementService{
		repos: repos,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// LoanStatement lists the loan terms, its payments, and its schedule with
// status. A non-zero customerID must own the loan.
func (s *StatementService) LoanStatement(ctx context.Context, loanID, customerID uint) ([]byte, string, error) {
	loan, err := s.repos.Loan.FindByIDWithDetails(ctx, loanID)
	if err != nil {
		return nil, "", notFound(err, "loan")
	}
	if customerID != 0 && loan.CustomerID != customerID {
		return nil, "", ErrForbidden
	}

	now := s.now()
	l := ledger.New(ledger.TermsOf(loan), loan.Payments)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Lease #%d statement", loan.ID), false)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("Lease Statement #%d", loan.ID))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, "Generated "+now.Format("2006-01-02 15:04")+" UTC")
	pdf.Ln(10)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Terms")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 10)
	terms := [][2]string{
		{"Customer", loan.Customer.FullName()},
		{"Vehicle", loan.Vehicle.DisplayName()},
		{"VIN", loan.Vehicle.VIN},
		{"Purchase price", money.Format(loan.TotalPurchasePrice)},
		{"Down payment", money.Format(loan.DownPayment)},
		{"Installment", money.Format(loan.InstallmentAmount)},
		{"Term", fmt.Sprintf("%.1f months", loan.TermMonths)},
		{"Frequency", schedule.Describe(schedule.ParseFrequency(loan.PaymentFrequency))},
		{"Total paid", money.Format(loan.TotalPaid)},
		{"Remaining balance", money.Format(loan.AmountFinanced)},
		{"Status", loan.Status},
	}
	for _, row := range terms {
		pdf.Cell(50, 6, row[0]+":")
		pdf.Cell(0, 6, row[1])
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Payments")
	pdf.Ln(8)
	header := func(cols []string, widths []float64) {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(224, 224, 224)
		for i, c := range cols {
			pdf.CellFormat(widths[i], 7, c, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	payWidths := []float64{15, 30, 30, 28, 28, 25, 30}
	header([]string{"ID", "Paid on", "Due date", "Amount", "Method", "Status", "Mode"}, payWidths)
	if len(loan.Payments) == 0 {
		pdf.CellFormat(186, 7, "No payments recorded", "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}
	for _, p := range loan.Payments {
		cells := []string{
			fmt.Sprintf("%d", p.ID),
			p.PaymentDate.UTC().Format("2006-01-02"),
			schedule.DateKey(p.DueDate.UTC()),
			money.Format(p.Amount),
			p.PaymentMethod,
			p.Status,
			p.PaymentMode,
		}
		for i, c := range cells {
			pdf.CellFormat(payWidths[i], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Schedule")
	pdf.Ln(8)
	schedWidths := []float64{35, 35, 35, 35, 46}
	header([]string{"Due date", "Installment", "Paid", "Remaining", "Status"}, schedWidths)
	for _, e := range l.AllEntries(now) {
		status := string(e.Status)
		if !loan.IsActive() && !e.IsPaid() {
			status = "closed"
		}
		cells := []string{
			e.DateKey(),
			money.Format(e.Installment),
			money.Format(e.Paid),
			money.Format(e.Remaining),
			status,
		}
		for i, c := range cells {
			pdf.CellFormat(schedWidths[i], 6, c, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("lease_%d_statement_%s.pdf", loan.ID, now.Format("2006-01-02")), nil
}
