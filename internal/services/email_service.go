package services

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"

	"github.com/resend/resend-go/v2"
	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

//go:embed templates/email/*.html
var emailTemplates embed.FS

const appURL = "https://app.autolease.app"

// EmailTransport delivers customer notifications by email
type EmailTransport interface {
	SendNotification(ctx context.Context, user *models.User, title, body string) error
}

type EmailService struct {
	config       *config.Config
	resendClient *resend.Client
}

func NewEmailService(cfg *config.Config) *EmailService {
	client := resend.NewClient(cfg.ResendAPIKey)
	return &EmailService{
		config:       cfg,
		resendClient: client,
	}
}

// checkEmailPreconditions reports whether an email should be sent at all.
// Disabled notifications are not an error; missing configuration or a
// missing address is.
func (s *EmailService) checkEmailPreconditions(user *models.User, operation string) (bool, error) {
	if !s.config.EnableEmailNotifications {
		logger.Debug("Email notifications disabled, skipping", "operation", operation)
		return false, nil
	}
	if s.config.ResendAPIKey == "" {
		return false, fmt.Errorf("cannot %s: RESEND_API_KEY is not set", operation)
	}
	if user == nil || user.Email == "" {
		return false, errors.New("email address is empty")
	}
	return true, nil
}

func (s *EmailService) SendAccountCreated(ctx context.Context, user *models.User) error {
	ok, err := s.checkEmailPreconditions(user, "send welcome email")
	if !ok {
		return err
	}

	data := struct {
		Name   string
		Email  string
		AppURL string
	}{
		Name:   user.FullName(),
		Email:  user.Email,
		AppURL: appURL,
	}
	return s.send(ctx, user.Email, "Welcome to AutoLease", "account_created.html", data)
}

// SendPaymentReceipt emails the customer a receipt for one applied payment
func (s *EmailService) SendPaymentReceipt(ctx context.Context, user *models.User, payment *models.Payment, loan *models.Loan) error {
	ok, err := s.checkEmailPreconditions(user, "send payment receipt")
	if !ok {
		return err
	}
	return s.send(ctx, user.Email, fmt.Sprintf("Payment receipt #%d", payment.ID), "payment_receipt.html", newReceiptView(user, payment, loan))
}

type receiptLine struct {
	DueDate string
	Amount  string
}

// receiptView is what payment_receipt.html renders. A flexible payment
// lists every installment it touched.
type receiptView struct {
	Name             string
	PaymentID        uint
	LoanID           uint
	Amount           string
	Method           string
	PaidAt           string
	DueDate          string
	Lines            []receiptLine
	RemainingBalance string
	Closed           bool
	AppURL           string
}

func newReceiptView(user *models.User, payment *models.Payment, loan *models.Loan) receiptView {
	lines := make([]receiptLine, 0, len(payment.AppliedInstallments))
	for _, a := range payment.AppliedInstallments {
		lines = append(lines, receiptLine{DueDate: a.DueDate.Format("2006-01-02"), Amount: money.Format(a.AppliedAmount)})
	}
	return receiptView{
		Name:             user.FullName(),
		PaymentID:        payment.ID,
		LoanID:           loan.ID,
		Amount:           money.Format(payment.Amount),
		Method:           payment.PaymentMethod,
		PaidAt:           payment.PaymentDate.Format("2006-01-02 15:04"),
		DueDate:          payment.DueDate.Format("2006-01-02"),
		Lines:            lines,
		RemainingBalance: money.Format(loan.AmountFinanced),
		Closed:           loan.IsClosed(),
		AppURL:           appURL,
	}
}

// SendNotification mirrors a push notification by email
func (s *EmailService) SendNotification(ctx context.Context, user *models.User, title, body string) error {
	ok, err := s.checkEmailPreconditions(user, "send notification email")
	if !ok {
		return err
	}

	data := struct {
		Name   string
		Title  string
		Body   string
		AppURL string
	}{
		Name:   user.FullName(),
		Title:  title,
		Body:   body,
		AppURL: appURL,
	}
	return s.send(ctx, user.Email, title, "notification.html", data)
}

func (s *EmailService) send(ctx context.Context, to, subject, tmpl string, data interface{}) error {
	body, err := s.renderTemplate(tmpl, data)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    s.config.FromEmail,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.resendClient.Emails.Send(params); err != nil {
		logger.Error("Failed to send email", "to", to, "subject", subject, "error", err)
		return err
	}

	logger.Info("Email sent", "to", to, "subject", subject)
	return nil
}

func (s *EmailService) renderTemplate(name string, data interface{}) (string, error) {
	tmpl, err := template.ParseFS(emailTemplates, "templates/email/"+name)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template %s: %w", name, err)
	}

	return buf.String(), nil
}
