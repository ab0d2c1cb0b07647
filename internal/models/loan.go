package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Loan is one vehicle lease agreement. AmountFinanced is the outstanding
// principal and decreases as payments are applied.
type Loan struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	CustomerID         uint            `gorm:"not null;index" json:"customer_id"`
	VehicleID          uint            `gorm:"not null;index" json:"vehicle_id"`
	TotalPurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_purchase_price"`
	DownPayment        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"down_payment"`
	AmountFinanced     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_financed"`
	InstallmentAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"installment_amount"`
	TermMonths         float64         `gorm:"type:decimal(6,2);not null" json:"term_months"`
	PaymentFrequency   string          `gorm:"default:bi_weekly;not null" json:"payment_frequency"`
	Status             string          `gorm:"default:active;not null;index" json:"status"`
	TotalPaid          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_paid"`
	LeaseStartDate     *time.Time      `json:"lease_start_date"`
	LeaseEndDate       *time.Time      `json:"lease_end_date"`
	ClosedAt           *time.Time      `json:"closed_at"`
	CreatedAt          time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	// Associations
	Customer User      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Vehicle  Vehicle   `gorm:"foreignKey:VehicleID" json:"vehicle,omitempty"`
	Payments []Payment `gorm:"foreignKey:LoanID" json:"payments,omitempty"`
}

// TableName specifies the table name for Loan
func (Loan) TableName() string {
	return "loans"
}

// Loan status constants
const (
	LoanStatusActive = "active"
	LoanStatusClosed = "closed"
)

// IsActive returns true if the loan still accepts payments
func (l *Loan) IsActive() bool {
	return l.Status == LoanStatusActive
}

// IsClosed returns true if the loan has been paid off
func (l *Loan) IsClosed() bool {
	return l.Status == LoanStatusClosed
}

// LoanResponse is the JSON response format for loans
type LoanResponse struct {
	ID                 uint       `json:"id"`
	CustomerID         uint       `json:"customer_id"`
	CustomerName       string     `json:"customer_name,omitempty"`
	CustomerEmail      string     `json:"customer_email,omitempty"`
	VehicleID          uint       `json:"vehicle_id"`
	VehicleName        string     `json:"vehicle_name,omitempty"`
	VIN                string     `json:"vin,omitempty"`
	TotalPurchasePrice string     `json:"total_purchase_price"`
	DownPayment        string     `json:"down_payment"`
	AmountFinanced     string     `json:"amount_financed"`
	InstallmentAmount  string     `json:"installment_amount"`
	TermMonths         float64    `json:"term_months"`
	PaymentFrequency   string     `json:"payment_frequency"`
	Status             string     `json:"status"`
	TotalPaid          string     `json:"total_paid"`
	LeaseStartDate     *time.Time `json:"lease_start_date"`
	LeaseEndDate       *time.Time `json:"lease_end_date"`
	ClosedAt           *time.Time `json:"closed_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// ToResponse converts Loan to LoanResponse
func (l *Loan) ToResponse() LoanResponse {
	resp := LoanResponse{
		ID:                 l.ID,
		CustomerID:         l.CustomerID,
		VehicleID:          l.VehicleID,
		TotalPurchasePrice: l.TotalPurchasePrice.StringFixed(2),
		DownPayment:        l.DownPayment.StringFixed(2),
		AmountFinanced:     l.AmountFinanced.StringFixed(2),
		InstallmentAmount:  l.InstallmentAmount.StringFixed(2),
		TermMonths:         l.TermMonths,
		PaymentFrequency:   l.PaymentFrequency,
		Status:             l.Status,
		TotalPaid:          l.TotalPaid.StringFixed(2),
		LeaseStartDate:     l.LeaseStartDate,
		LeaseEndDate:       l.LeaseEndDate,
		ClosedAt:           l.ClosedAt,
		CreatedAt:          l.CreatedAt,
	}
	if l.Customer.ID != 0 {
		resp.CustomerName = l.Customer.FullName()
		resp.CustomerEmail = l.Customer.Email
	}
	if l.Vehicle.ID != 0 {
		resp.VehicleName = l.Vehicle.DisplayName()
		resp.VIN = l.Vehicle.VIN
	}
	return resp
}
