package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Payment is one captured, manually recorded or waived payment event.
// Amounts are immutable once created.
type Payment struct {
	ID                  uint                                    `gorm:"primaryKey" json:"id"`
	LoanID              uint                                    `gorm:"not null;index" json:"loan_id"`
	CustomerID          uint                                    `gorm:"not null;index" json:"customer_id"`
	Amount              decimal.Decimal                         `gorm:"type:decimal(12,2);not null" json:"amount"`
	EMIAmount           *decimal.Decimal                        `gorm:"column:emi_amount;type:decimal(12,2)" json:"emi_amount"`
	PaymentMethod       string                                  `gorm:"not null" json:"payment_method"`
	PaymentDate         time.Time                               `gorm:"not null;index" json:"payment_date"`
	DueDate             time.Time                               `gorm:"not null;index" json:"due_date"`
	Status              string                                  `gorm:"default:completed;not null;index" json:"status"`
	PaymentMode         string                                  `gorm:"default:installment;not null" json:"payment_mode"`
	AppliedInstallments datatypes.JSONSlice[AppliedInstallment] `json:"applied_installments"`
	Note                *string                                 `gorm:"type:text" json:"note"`
	ProviderReference   *string                                 `gorm:"index" json:"provider_reference"`
	CreatedAt           time.Time                               `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time                               `json:"updated_at"`

	// Associations
	Loan     Loan `gorm:"foreignKey:LoanID" json:"-"`
	Customer User `gorm:"foreignKey:CustomerID" json:"-"`
}

// TableName specifies the table name for Payment
func (Payment) TableName() string {
	return "payments"
}

// AppliedInstallment is the share of a payment applied to one due date
type AppliedInstallment struct {
	DueDate       time.Time       `json:"due_date"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
}

// Payment status constants
const (
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Payment method constants
const (
	PaymentMethodCard   = "card"
	PaymentMethodCash   = "cash"
	PaymentMethodOnline = "online"
	PaymentMethodCheck  = "check"
	PaymentMethodWaived = "waived"
)

// Payment mode constants. The mode describes the channel only.
const (
	PaymentModeInstallment = "installment"
	PaymentModeManual      = "manual"
	PaymentModeCheckout    = "checkout"
)

// ValidManualPaymentMethod reports whether an admin may record method m
func ValidManualPaymentMethod(m string) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOnline, PaymentMethodCheck:
		return true
	}
	return false
}

// IsCompleted returns true if the payment counts toward the ledger
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// IsWaiver returns true for zero-amount waivers
func (p *Payment) IsWaiver() bool {
	return p.PaymentMethod == PaymentMethodWaived
}

// DisplayAmount never surfaces a negative amount
func (p *Payment) DisplayAmount() decimal.Decimal {
	if p.Amount.IsNegative() {
		return decimal.Zero
	}
	return p.Amount
}

// PaymentResponse is the JSON response format for payments
type PaymentResponse struct {
	ID                  uint                         `json:"id"`
	LoanID              uint                         `json:"loan_id"`
	CustomerID          uint                         `json:"customer_id"`
	CustomerName        string                       `json:"customer_name,omitempty"`
	VehicleName         string                       `json:"vehicle_name,omitempty"`
	Amount              string                       `json:"amount"`
	EMIAmount           *string                      `json:"emi_amount"`
	PaymentMethod       string                       `json:"payment_method"`
	PaymentDate         time.Time                    `json:"payment_date"`
	DueDate             string                       `json:"due_date"`
	Status              string                       `json:"status"`
	PaymentMode         string                       `json:"payment_mode"`
	AppliedInstallments []AppliedInstallmentResponse `json:"applied_installments,omitempty"`
	Note                *string                      `json:"note"`
	CreatedAt           time.Time                    `json:"created_at"`
}

// AppliedInstallmentResponse renders an allocation with a date-only due date
type AppliedInstallmentResponse struct {
	DueDate       string `json:"due_date"`
	AppliedAmount string `json:"applied_amount"`
}

// ToResponse converts Payment to PaymentResponse
func (p *Payment) ToResponse() PaymentResponse {
	resp := PaymentResponse{
		ID:            p.ID,
		LoanID:        p.LoanID,
		CustomerID:    p.CustomerID,
		Amount:        p.DisplayAmount().StringFixed(2),
		PaymentMethod: p.PaymentMethod,
		PaymentDate:   p.PaymentDate,
		DueDate:       p.DueDate.Format("2006-01-02"),
		Status:        p.Status,
		PaymentMode:   p.PaymentMode,
		Note:          p.Note,
		CreatedAt:     p.CreatedAt,
	}
	if p.EMIAmount != nil {
		s := p.EMIAmount.StringFixed(2)
		resp.EMIAmount = &s
	}
	for _, a := range p.AppliedInstallments {
		resp.AppliedInstallments = append(resp.AppliedInstallments, AppliedInstallmentResponse{
			DueDate:       a.DueDate.Format("2006-01-02"),
			AppliedAmount: a.AppliedAmount.StringFixed(2),
		})
	}
	if p.Customer.ID != 0 {
		resp.CustomerName = p.Customer.FullName()
	}
	if p.Loan.Vehicle.ID != 0 {
		resp.VehicleName = p.Loan.Vehicle.DisplayName()
	}
	return resp
}
