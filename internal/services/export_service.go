package services

import (
	"fmt"
	"time"

	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/xuri/excelize/v2"
)

// Sales export column headers
var salesHeaders = []string{
	"Loan ID", "Customer", "Vehicle", "Sale Amount", "Down Payment",
	"Amount Financed", "Payment", "Term", "Status", "Created At",
}

var overdueHeaders = []string{
	"Loan ID", "Customer", "Email", "Phone", "Vehicle",
	"Due Date", "Installment", "Remaining", "Days Overdue",
}

// ExportService renders reports as xlsx workbooks
type ExportService struct{}

func NewExportService() *ExportService {
	return &ExportService{}
}

func newWorkbook(sheet string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return f, nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}

// SalesWorkbook lists loans, one row per sale
func (s *ExportService) SalesWorkbook(loans []models.Loan, now time.Time) ([]byte, string, error) {
	const sheet = "Sales"
	f, err := newWorkbook(sheet, salesHeaders)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	for i := range loans {
		l := &loans[i]
		price, _ := l.TotalPurchasePrice.Float64()
		down, _ := l.DownPayment.Float64()
		financed, _ := l.AmountFinanced.Float64()
		installment, _ := l.InstallmentAmount.Float64()
		vehicle := ""
		if l.Vehicle.ID != 0 {
			vehicle = l.Vehicle.DisplayName()
		}
		setRow(f, sheet, i+2, []interface{}{
			l.ID,
			l.Customer.FullName(),
			vehicle,
			price,
			down,
			financed,
			installment,
			l.TermMonths,
			l.Status,
			l.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	_ = f.SetColWidth(sheet, "B", "C", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("sales_%s.xlsx", now.Format("2006-01-02")), nil
}

// OverdueWorkbook lists overdue dues, most overdue first
func (s *ExportService) OverdueWorkbook(items []DueItem, now time.Time) ([]byte, string, error) {
	const sheet = "Overdue"
	f, err := newWorkbook(sheet, overdueHeaders)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	for i, it := range items {
		installment, _ := it.installment.Float64()
		remaining, _ := it.remaining.Float64()
		setRow(f, sheet, i+2, []interface{}{
			it.LoanID,
			it.CustomerName,
			it.CustomerEmail,
			it.CustomerPhone,
			it.VehicleName,
			it.DueDate,
			installment,
			remaining,
			it.DaysOverdue,
		})
	}
	_ = f.SetColWidth(sheet, "B", "E", 24)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), fmt.Sprintf("overdue_%s.xlsx", now.Format("2006-01-02")), nil
}
