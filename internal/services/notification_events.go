package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/schedule"
)

// NotificationEvent is a customer notification that is sent at most once per
// (Type, ScopeKey).
type NotificationEvent interface {
	Type() string
	ScopeKey() string
	Customer() uint
	Title() string
	Body() string
	Data() map[string]string
}

// PaymentReceived is sent when a payment has been applied to a loan
type PaymentReceived struct {
	PaymentID  uint
	LoanID     uint
	CustomerID uint
	Amount     decimal.Decimal
}

func (e PaymentReceived) Type() string     { return models.NotificationPaymentReceived }
func (e PaymentReceived) ScopeKey() string { return paymentScope(e.PaymentID) }
func (e PaymentReceived) Customer() uint   { return e.CustomerID }
func (e PaymentReceived) Title() string    { return "Payment received" }
func (e PaymentReceived) Body() string {
	return fmt.Sprintf("Your payment of %s has been received.", money.Format(e.Amount))
}
func (e PaymentReceived) Data() map[string]string {
	return map[string]string{
		"type":       e.Type(),
		"payment_id": strconv.FormatUint(uint64(e.PaymentID), 10),
		"loan_id":    strconv.FormatUint(uint64(e.LoanID), 10),
		"amount":     money.NonNegative(e.Amount).StringFixed(2),
	}
}

// PaymentConfirmed is sent when an admin moves a failed payment back to
// completed
type PaymentConfirmed struct {
	PaymentID  uint
	LoanID     uint
	CustomerID uint
	Amount     decimal.Decimal
}

func (e PaymentConfirmed) Type() string     { return models.NotificationPaymentConfirmed }
func (e PaymentConfirmed) ScopeKey() string { return paymentScope(e.PaymentID) }
func (e PaymentConfirmed) Customer() uint   { return e.CustomerID }
func (e PaymentConfirmed) Title() string    { return "Payment confirmed" }
func (e PaymentConfirmed) Body() string {
	return fmt.Sprintf("Your payment of %s has been confirmed.", money.Format(e.Amount))
}
func (e PaymentConfirmed) Data() map[string]string {
	return map[string]string{
		"type":       e.Type(),
		"payment_id": strconv.FormatUint(uint64(e.PaymentID), 10),
		"loan_id":    strconv.FormatUint(uint64(e.LoanID), 10),
		"amount":     money.NonNegative(e.Amount).StringFixed(2),
	}
}

// DueTomorrow reminds a customer of an unpaid installment due the next day
type DueTomorrow struct {
	LoanID     uint
	CustomerID uint
	DueDate    time.Time
	Amount     decimal.Decimal
}

func (e DueTomorrow) Type() string     { return models.NotificationDueTomorrow }
func (e DueTomorrow) ScopeKey() string { return dueScope(e.LoanID, e.DueDate) }
func (e DueTomorrow) Customer() uint   { return e.CustomerID }
func (e DueTomorrow) Title() string    { return "Payment due tomorrow" }
func (e DueTomorrow) Body() string {
	return fmt.Sprintf("Your payment of %s is due tomorrow.", money.Format(e.Amount))
}
func (e DueTomorrow) Data() map[string]string {
	return dueData(e.Type(), e.LoanID, e.DueDate, e.Amount)
}

// Overdue tells a customer an installment is past due
type Overdue struct {
	LoanID     uint
	CustomerID uint
	DueDate    time.Time
	Amount     decimal.Decimal
}

func (e Overdue) Type() string     { return models.NotificationOverdue }
func (e Overdue) ScopeKey() string { return dueScope(e.LoanID, e.DueDate) }
func (e Overdue) Customer() uint   { return e.CustomerID }
func (e Overdue) Title() string    { return "Payment overdue" }
func (e Overdue) Body() string {
	return fmt.Sprintf("Your payment of %s was due on %s and is now overdue.",
		money.Format(e.Amount), schedule.DateKey(e.DueDate.UTC()))
}
func (e Overdue) Data() map[string]string {
	return dueData(e.Type(), e.LoanID, e.DueDate, e.Amount)
}

func paymentScope(paymentID uint) string {
	return fmt.Sprintf("payment:%d", paymentID)
}

func dueScope(loanID uint, due time.Time) string {
	return fmt.Sprintf("loan:%d:due:%s", loanID, schedule.DateKey(due.UTC()))
}

func dueData(notificationType string, loanID uint, due time.Time, amount decimal.Decimal) map[string]string {
	return map[string]string{
		"type":     notificationType,
		"loan_id":  strconv.FormatUint(uint64(loanID), 10),
		"due_date": schedule.DateKey(due.UTC()),
		"amount":   money.NonNegative(amount).StringFixed(2),
	}
}

// DescribeNotification renders the title and body of a logged notification.
// The amount is not stored on the log, so the texts are generic.
func DescribeNotification(log *models.NotificationLog) (string, string) {
	switch log.NotificationType {
	case models.NotificationPaymentReceived:
		return "Payment received", "Your payment has been received."
	case models.NotificationPaymentConfirmed:
		return "Payment confirmed", "Your payment has been confirmed."
	case models.NotificationDueTomorrow:
		return "Payment due tomorrow", "Your payment is due tomorrow."
	case models.NotificationOverdue:
		if date := dueDateOfScope(log.ScopeKey); date != "" {
			return "Payment overdue", fmt.Sprintf("Your payment due on %s is now overdue.", date)
		}
		return "Payment overdue", "Your payment is now overdue."
	}
	return log.NotificationType, ""
}

func dueDateOfScope(scopeKey string) string {
	_, date, ok := strings.Cut(scopeKey, ":due:")
	if !ok {
		return ""
	}
	return date
}
