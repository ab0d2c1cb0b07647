package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

func TestEmailService_checkEmailPreconditions(t *testing.T) {
	logger.Setup("test")
	customer := &models.User{ID: 1, Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz"}

	tests := []struct {
		name    string
		cfg     config.Config
		user    *models.User
		wantOK  bool
		wantErr string
	}{
		{
			name: "notifications disabled",
			cfg:  config.Config{EnableEmailNotifications: false, ResendAPIKey: "re_key"},
			user: customer,
		},
		{
			name:   "configured",
			cfg:    config.Config{EnableEmailNotifications: true, ResendAPIKey: "re_key", FromEmail: "billing@autolease.app"},
			user:   customer,
			wantOK: true,
		},
		{
			name:    "missing api key",
			cfg:     config.Config{EnableEmailNotifications: true, FromEmail: "billing@autolease.app"},
			user:    customer,
			wantErr: "RESEND_API_KEY is not set",
		},
		{
			name:    "customer without email",
			cfg:     config.Config{EnableEmailNotifications: true, ResendAPIKey: "re_key"},
			user:    &models.User{ID: 2, FirstName: "Luis"},
			wantErr: "email address is empty",
		},
		{
			name:    "no recipient",
			cfg:     config.Config{EnableEmailNotifications: true, ResendAPIKey: "re_key"},
			wantErr: "email address is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			ok, err := NewEmailService(&cfg).checkEmailPreconditions(tt.user, "send payment receipt")
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEmailService_DisabledSendsAreNoops(t *testing.T) {
	service := NewEmailService(&config.Config{EnableEmailNotifications: false})
	user := &models.User{ID: 1, Email: "ana@example.com"}

	assert.NoError(t, service.SendAccountCreated(context.Background(), user))
	assert.NoError(t, service.SendNotification(context.Background(), user, "Payment due tomorrow", "Pay soon"))
	assert.NoError(t, service.SendPaymentReceipt(context.Background(), user, &models.Payment{}, &models.Loan{}))
}

func TestEmailService_renderTemplates(t *testing.T) {
	service := NewEmailService(&config.Config{})

	body, err := service.renderTemplate("notification.html", struct {
		Name, Title, Body, AppURL string
	}{"Ana Diaz", "Payment due tomorrow", "Your payment of $100.00 is due tomorrow.", appURL})
	require.NoError(t, err)
	assert.Contains(t, body, "Your payment of $100.00 is due tomorrow.")
	assert.Contains(t, body, "Hi Ana Diaz")

	_, err = service.renderTemplate("missing.html", nil)
	assert.Error(t, err)
}

func TestEmailService_PaymentReceipt(t *testing.T) {
	service := NewEmailService(&config.Config{})
	user := &models.User{ID: 1, Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz"}
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	payment := &models.Payment{
		ID:            42,
		Amount:        decimal.NewFromInt(150),
		PaymentMethod: models.PaymentMethodCash,
		PaymentDate:   due.Add(9 * time.Hour),
		DueDate:       due,
		AppliedInstallments: datatypes.JSONSlice[models.AppliedInstallment]{
			{DueDate: due, AppliedAmount: decimal.NewFromInt(100)},
			{DueDate: due.AddDate(0, 1, 0), AppliedAmount: decimal.NewFromInt(50)},
		},
	}
	loan := &models.Loan{ID: 7, AmountFinanced: decimal.NewFromInt(150), Status: models.LoanStatusActive}

	view := newReceiptView(user, payment, loan)
	assert.Equal(t, "$150.00", view.Amount)
	assert.Equal(t, "$150.00", view.RemainingBalance)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, receiptLine{DueDate: "2026-04-01", Amount: "$50.00"}, view.Lines[1])

	body, err := service.renderTemplate("payment_receipt.html", view)
	require.NoError(t, err)
	assert.Contains(t, body, "Payment receipt #42")
	assert.Contains(t, body, "2026-03-01")
	assert.Contains(t, body, "Remaining balance")

	loan.Status = models.LoanStatusClosed
	body, err = service.renderTemplate("payment_receipt.html", newReceiptView(user, payment, loan))
	require.NoError(t, err)
	assert.Contains(t, body, "fully paid")
	assert.NotContains(t, body, "Remaining balance")
}
