package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/jobs"
	"github.com/sjperalta/autolease-api/internal/ledger"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/money"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/schedule"
	"github.com/sjperalta/autolease-api/internal/statemachine"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

// Checkout payment types
const (
	PaymentTypeNext     = "next"
	PaymentTypeDue      = "due"
	PaymentTypeFlexible = "flexible"
)

// PaymentService applies payments to loans. Every mutation runs in a
// transaction holding the loan row lock, and the ledger is rebuilt from the
// payments read inside that transaction.
type PaymentService struct {
	repos           *repository.Repositories
	capturer        PaymentCapturer
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	worker          *jobs.Worker
	now             func() time.Time
}

func NewPaymentService(
	repos *repository.Repositories,
	capturer PaymentCapturer,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	worker *jobs.Worker,
) *PaymentService {
	if capturer == nil {
		capturer = disabledCapturer{}
	}
	return &PaymentService{
		repos:           repos,
		capturer:        capturer,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		worker:          worker,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// ApplyExactInput applies an amount to one scheduled due date
type ApplyExactInput struct {
	LoanID            uint
	CustomerID        uint
	DueDate           time.Time
	Amount            decimal.Decimal
	PaymentMethod     string
	PaymentMode       string
	Note              *string
	ProviderReference *string
	Actor             Actor
}

// ApplyFlexibleInput spreads an amount over the oldest unpaid due dates
type ApplyFlexibleInput struct {
	LoanID            uint
	CustomerID        uint
	Amount            decimal.Decimal
	PaymentMethod     string
	PaymentMode       string
	Note              *string
	ProviderReference *string
	Actor             Actor
}

// WaiveInput waives one scheduled due date
type WaiveInput struct {
	LoanID     uint
	CustomerID uint
	DueDate    time.Time
	Note       *string
	Actor      Actor
}

// ApplyResult describes an applied payment
type ApplyResult struct {
	Payment       *models.Payment
	Loan          *models.Loan
	Charged       decimal.Decimal
	ExcessIgnored decimal.Decimal
	LoanClosed    bool
}

// ApplyExact records amount against the scheduled due date. It returns
// ErrAlreadyApplied when a completed payment already exists for that date,
// and ErrDueDateUnavailable when the date is not an unpaid scheduled date.
func (s *PaymentService) ApplyExact(ctx context.Context, in ApplyExactInput) (*ApplyResult, error) {
	if !in.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}

	var result *ApplyResult
	err := s.repos.WithinLoanTx(ctx, in.LoanID, func(tx *repository.Repositories, loan *models.Loan) error {
		if err := checkApplicable(loan, in.CustomerID); err != nil {
			return err
		}
		payments, err := tx.Payment.FindByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}
		now := s.now()
		entry, err := validateExact(ledger.New(ledger.TermsOf(loan), payments), payments, in.DueDate, now)
		if err != nil {
			return err
		}

		charged := money.Round2(money.Min(in.Amount, loan.AmountFinanced))
		payment := newPayment(loan, charged, in.PaymentMethod, in.PaymentMode, now)
		payment.DueDate = entry.DueDate
		payment.Note = in.Note
		payment.ProviderReference = in.ProviderReference
		if err := tx.Payment.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		closed, err := s.applyToLoan(ctx, tx, loan, charged, now)
		if err != nil {
			return err
		}
		result = &ApplyResult{
			Payment:       payment,
			Loan:          loan,
			Charged:       charged,
			ExcessIgnored: money.NonNegative(money.Round2(in.Amount.Sub(charged))),
			LoanClosed:    closed,
		}
		return nil
	})
	if err != nil {
		return nil, loanTxError(err)
	}

	s.afterApplied(ctx, result, in.Actor, AuditPayment)
	return result, nil
}

// ApplyFlexible charges min(amount, balance) and allocates it to unpaid due
// dates oldest first. The payment's due date is the first date touched.
func (s *PaymentService) ApplyFlexible(ctx context.Context, in ApplyFlexibleInput) (*ApplyResult, error) {
	if !in.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}

	var result *ApplyResult
	err := s.repos.WithinLoanTx(ctx, in.LoanID, func(tx *repository.Repositories, loan *models.Loan) error {
		if err := checkApplicable(loan, in.CustomerID); err != nil {
			return err
		}
		charged := money.Round2(money.Min(in.Amount, loan.AmountFinanced))
		if !charged.IsPositive() {
			return ErrLoanClosed
		}

		payments, err := tx.Payment.FindByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}
		now := s.now()
		applied := allocate(ledger.New(ledger.TermsOf(loan), payments), charged, now)

		payment := newPayment(loan, charged, in.PaymentMethod, in.PaymentMode, now)
		payment.DueDate = applied[0].DueDate
		payment.AppliedInstallments = applied
		payment.Note = in.Note
		payment.ProviderReference = in.ProviderReference
		if err := tx.Payment.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		closed, err := s.applyToLoan(ctx, tx, loan, charged, now)
		if err != nil {
			return err
		}
		result = &ApplyResult{
			Payment:       payment,
			Loan:          loan,
			Charged:       charged,
			ExcessIgnored: money.NonNegative(money.Round2(in.Amount.Sub(charged))),
			LoanClosed:    closed,
		}
		return nil
	})
	if err != nil {
		return nil, loanTxError(err)
	}

	s.afterApplied(ctx, result, in.Actor, AuditPayment)
	return result, nil
}

// Waive satisfies one scheduled due date without collecting money. When no
// scheduled date is left unpaid afterwards the loan closes.
func (s *PaymentService) Waive(ctx context.Context, in WaiveInput) (*ApplyResult, error) {
	var result *ApplyResult
	err := s.repos.WithinLoanTx(ctx, in.LoanID, func(tx *repository.Repositories, loan *models.Loan) error {
		if err := checkApplicable(loan, in.CustomerID); err != nil {
			return err
		}
		payments, err := tx.Payment.FindByLoan(ctx, loan.ID)
		if err != nil {
			return err
		}
		now := s.now()
		entry, err := validateExact(ledger.New(ledger.TermsOf(loan), payments), payments, in.DueDate, now)
		if err != nil {
			return err
		}

		payment := newPayment(loan, decimal.Zero, models.PaymentMethodWaived, models.PaymentModeManual, now)
		payment.DueDate = entry.DueDate
		payment.Note = in.Note
		if err := tx.Payment.Create(ctx, payment); err != nil {
			return fmt.Errorf("failed to record waiver: %w", err)
		}

		// waiving the last outstanding due date settles the lease
		after := ledger.New(ledger.TermsOf(loan), append(payments, *payment))
		if len(after.Unpaid(now)) == 0 {
			loan.AmountFinanced = decimal.Zero
		}

		closed, err := s.applyToLoan(ctx, tx, loan, decimal.Zero, now)
		if err != nil {
			return err
		}
		result = &ApplyResult{Payment: payment, Loan: loan, Charged: decimal.Zero, ExcessIgnored: decimal.Zero, LoanClosed: closed}
		return nil
	})
	if err != nil {
		return nil, manualError(loanTxError(err))
	}

	s.afterApplied(ctx, result, in.Actor, AuditWaive)
	return result, nil
}

// WaiveEarliestOverdue waives the oldest overdue due date of a loan
func (s *PaymentService) WaiveEarliestOverdue(ctx context.Context, customerID, loanID uint, note *string, actor Actor) (*ApplyResult, error) {
	loan, err := s.repos.Loan.FindByID(ctx, loanID)
	if err != nil {
		return nil, notFound(err, "loan")
	}
	if err := checkApplicable(loan, customerID); err != nil {
		return nil, err
	}
	payments, err := s.repos.Payment.FindByLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	overdue := ledger.New(ledger.TermsOf(loan), payments).Overdue(s.now())
	if len(overdue) == 0 {
		return nil, fmt.Errorf("%w: no overdue installment to waive", ErrDueDateUnavailable)
	}
	return s.Waive(ctx, WaiveInput{
		LoanID:     loanID,
		CustomerID: customerID,
		DueDate:    overdue[0].DueDate,
		Note:       note,
		Actor:      actor,
	})
}

// ManualPaymentInput is an admin-recorded payment received outside the card
// processor. DueDate selects exact mode; without it the amount is applied
// flexibly.
type ManualPaymentInput struct {
	LoanID        uint
	CustomerID    uint
	DueDate       *time.Time
	Amount        decimal.Decimal
	PaymentMethod string
	Note          *string
	Actor         Actor
}

// RecordManualPayment applies an admin-recorded payment without capture
func (s *PaymentService) RecordManualPayment(ctx context.Context, in ManualPaymentInput) (*ApplyResult, error) {
	if !models.ValidManualPaymentMethod(in.PaymentMethod) {
		return nil, validationError("payment_method must be one of cash, card, online, check")
	}
	if !in.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}

	if in.DueDate != nil {
		result, err := s.ApplyExact(ctx, ApplyExactInput{
			LoanID:        in.LoanID,
			CustomerID:    in.CustomerID,
			DueDate:       *in.DueDate,
			Amount:        in.Amount,
			PaymentMethod: in.PaymentMethod,
			PaymentMode:   models.PaymentModeManual,
			Note:          in.Note,
			Actor:         in.Actor,
		})
		return result, manualError(err)
	}
	return s.ApplyFlexible(ctx, ApplyFlexibleInput{
		LoanID:        in.LoanID,
		CustomerID:    in.CustomerID,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		PaymentMode:   models.PaymentModeManual,
		Note:          in.Note,
		Actor:         in.Actor,
	})
}

// MakePaymentInput is a customer card checkout
type MakePaymentInput struct {
	CustomerID     uint
	LoanID         uint
	CardToken      string
	PaymentType    string
	DueDate        *time.Time
	Amount         *decimal.Decimal
	IdempotencyKey string
	Actor          Actor
}

// MakePaymentResult is returned to the customer after checkout
type MakePaymentResult struct {
	Success       bool                    `json:"success"`
	Message       string                  `json:"message"`
	Transaction   *models.PaymentResponse `json:"transaction"`
	ExcessIgnored string                  `json:"excess_ignored"`
	LoanClosed    bool                    `json:"loan_closed"`
}

// MakePayment resolves the amount owed, captures it on the card, and only
// then applies the captured amount. A failed capture leaves the loan
// untouched.
func (s *PaymentService) MakePayment(ctx context.Context, in MakePaymentInput) (*MakePaymentResult, error) {
	loan, err := s.repos.Loan.FindByIDWithDetails(ctx, in.LoanID)
	if err != nil {
		return nil, notFound(err, "loan")
	}
	if loan.CustomerID != in.CustomerID {
		return nil, fmt.Errorf("%w: you can only pay for your own loan", ErrForbidden)
	}
	if !loan.IsActive() {
		return nil, ErrLoanClosed
	}

	l := ledger.New(ledger.TermsOf(loan), loan.Payments)
	now := s.now()

	var (
		amount  decimal.Decimal
		dueDate *time.Time
	)
	switch in.PaymentType {
	case PaymentTypeNext:
		e, ok := l.NextUnpaid(now)
		if !ok {
			return nil, validationError("no next payment due for this loan")
		}
		amount, dueDate = e.Remaining, &e.DueDate
	case PaymentTypeDue:
		if in.DueDate == nil {
			return nil, validationError("due_date is required when payment_type is 'due'")
		}
		e, ok := l.ValidateDueDate(*in.DueDate, now)
		if !ok {
			return nil, fmt.Errorf("%w: invalid or already paid due date for this loan", ErrDueDateUnavailable)
		}
		amount, dueDate = e.Remaining, &e.DueDate
	case PaymentTypeFlexible:
		if in.Amount == nil || !in.Amount.IsPositive() {
			return nil, validationError("amount is required when payment_type is 'flexible'")
		}
		amount = *in.Amount
	default:
		return nil, validationError("payment_type must be one of next, due, flexible")
	}

	requested := money.Round2(amount)
	amount = money.Round2(money.Min(requested, loan.AmountFinanced))
	if money.ToCents(amount) < money.MinCaptureCents {
		return nil, validationError("amount too small for card payment (minimum $0.50)")
	}

	capture, err := s.capturer.Capture(ctx, CaptureRequest{
		LoanID:         loan.ID,
		CustomerID:     loan.CustomerID,
		CustomerEmail:  loan.Customer.Email,
		AmountCents:    money.ToCents(amount),
		CardToken:      in.CardToken,
		Description:    fmt.Sprintf("Lease #%d payment", loan.ID),
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		if errors.Is(err, ErrPaymentsNotConfigured) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		if !errors.Is(err, ErrCaptureFailed) {
			err = fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		s.reportCaptureFailure(loan, amount, err)
		return nil, err
	}

	method, mode := models.PaymentMethodCard, models.PaymentModeCheckout
	var result *ApplyResult
	if dueDate != nil {
		result, err = s.ApplyExact(ctx, ApplyExactInput{
			LoanID:            loan.ID,
			CustomerID:        loan.CustomerID,
			DueDate:           *dueDate,
			Amount:            capture.AmountReceived,
			PaymentMethod:     method,
			PaymentMode:       mode,
			ProviderReference: &capture.Reference,
			Actor:             in.Actor,
		})
		if errors.Is(err, ErrAlreadyApplied) || errors.Is(err, ErrDueDateUnavailable) {
			// the date was settled between resolution and capture; keep the money
			logger.Warn("Due date settled during checkout, applying flexibly",
				"loan_id", loan.ID, "due_date", schedule.DateKey(*dueDate), "reference", capture.Reference)
			dueDate = nil
		}
	}
	if dueDate == nil {
		result, err = s.ApplyFlexible(ctx, ApplyFlexibleInput{
			LoanID:            loan.ID,
			CustomerID:        loan.CustomerID,
			Amount:            capture.AmountReceived,
			PaymentMethod:     method,
			PaymentMode:       mode,
			ProviderReference: &capture.Reference,
			Actor:             in.Actor,
		})
	}
	if err != nil {
		logger.Error("Captured payment could not be applied",
			"loan_id", loan.ID, "reference", capture.Reference, "amount", capture.AmountReceived.StringFixed(2), "error", err)
		return nil, err
	}

	resp := result.Payment.ToResponse()
	excess := money.NonNegative(money.Round2(requested.Sub(result.Charged)))
	return &MakePaymentResult{
		Success:       true,
		Message:       "Payment completed successfully",
		Transaction:   &resp,
		ExcessIgnored: excess.StringFixed(2),
		LoanClosed:    result.LoanClosed,
	}, nil
}

// UpdatePaymentStatus moves a payment between completed and failed. The loan
// balance is not restored when a payment fails.
func (s *PaymentService) UpdatePaymentStatus(ctx context.Context, paymentID uint, status string, actor Actor) (*models.Payment, error) {
	payment, err := s.repos.Payment.FindByIDWithDetails(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	previous := payment.Status

	pfsm := statemachine.NewPaymentFSM(payment)
	if err := pfsm.Transition(ctx, status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if err := s.repos.Payment.UpdateStatus(ctx, payment.ID, payment.Status); err != nil {
		return nil, err
	}

	s.auditSvc.Record(ctx, actor, AuditStatusChange, models.EntityPayment, payment.ID,
		fmt.Sprintf("status %s -> %s", previous, payment.Status))

	if payment.IsCompleted() {
		event := PaymentConfirmed{
			PaymentID:  payment.ID,
			LoanID:     payment.LoanID,
			CustomerID: payment.CustomerID,
			Amount:     payment.Amount,
		}
		s.async(func(ctx context.Context) error {
			_, err := s.notificationSvc.Dispatch(ctx, event)
			return err
		})
	}
	return payment, nil
}

func checkApplicable(loan *models.Loan, customerID uint) error {
	if customerID != 0 && loan.CustomerID != customerID {
		return fmt.Errorf("%w: loan %d does not belong to customer %d", ErrForbidden, loan.ID, customerID)
	}
	if !loan.IsActive() {
		return ErrLoanClosed
	}
	return nil
}

// validateExact rejects a date that already has a completed exact-mode
// payment, then requires the date to be an unpaid scheduled date.
func validateExact(l *ledger.Ledger, payments []models.Payment, due, now time.Time) (ledger.Entry, error) {
	key := schedule.DateKey(due.UTC())
	for i := range payments {
		p := &payments[i]
		if p.IsCompleted() && len(p.AppliedInstallments) == 0 && schedule.DateKey(p.DueDate.UTC()) == key {
			return ledger.Entry{}, ErrAlreadyApplied
		}
	}
	entry, ok := l.ValidateDueDate(due, now)
	if !ok {
		return ledger.Entry{}, fmt.Errorf("%w: %s", ErrDueDateUnavailable, key)
	}
	return entry, nil
}

// allocate spreads amount over every unpaid date of the schedule. With
// nothing outstanding the amount lands on the final scheduled date.
func allocate(l *ledger.Ledger, amount decimal.Decimal, now time.Time) []models.AppliedInstallment {
	if applied := ledger.Allocate(amount, l.Unpaid(now)); len(applied) > 0 {
		return applied
	}
	target := now
	if dates := l.FullSchedule(); len(dates) > 0 {
		target = dates[len(dates)-1]
	}
	return []models.AppliedInstallment{{DueDate: target, AppliedAmount: amount}}
}

func newPayment(loan *models.Loan, amount decimal.Decimal, method, mode string, now time.Time) *models.Payment {
	emi := loan.InstallmentAmount
	if mode == "" {
		mode = models.PaymentModeInstallment
	}
	return &models.Payment{
		LoanID:        loan.ID,
		CustomerID:    loan.CustomerID,
		Amount:        amount,
		EMIAmount:     &emi,
		PaymentMethod: method,
		PaymentDate:   now,
		Status:        models.PaymentStatusCompleted,
		PaymentMode:   mode,
	}
}

// applyToLoan decrements the balance, raises the total paid, and closes the
// loan once the balance is settled. It reports whether the loan closed.
func (s *PaymentService) applyToLoan(ctx context.Context, tx *repository.Repositories, loan *models.Loan, applied decimal.Decimal, now time.Time) (bool, error) {
	loan.AmountFinanced = money.NonNegative(money.Round2(loan.AmountFinanced.Sub(applied)))
	loan.TotalPaid = money.Round2(loan.TotalPaid.Add(money.NonNegative(applied)))

	closed := false
	if loan.IsActive() && money.Settled(loan.AmountFinanced) {
		loan.AmountFinanced = decimal.Zero
		if err := statemachine.NewLoanFSM(loan).Close(ctx, now); err != nil {
			return false, err
		}
		closed = true
	}
	if err := tx.Loan.Update(ctx, loan); err != nil {
		return false, fmt.Errorf("failed to update loan: %w", err)
	}
	return closed, nil
}

func loanTxError(err error) error {
	if repository.IsNotFound(err) {
		return fmt.Errorf("%w: loan", ErrNotFound)
	}
	return err
}

// manualError surfaces an already-satisfied date as unavailable for admin
// flows.
func manualError(err error) error {
	if errors.Is(err, ErrAlreadyApplied) {
		return fmt.Errorf("%w: a completed payment already exists for this due date", ErrDueDateUnavailable)
	}
	return err
}

// afterApplied runs the post-commit effects of an applied payment
func (s *PaymentService) afterApplied(ctx context.Context, result *ApplyResult, actor Actor, action string) {
	payment, loan := result.Payment, result.Loan

	if err := s.repos.DashboardCache.Invalidate(ctx, DashboardCacheKey); err != nil {
		logger.Warn("Failed to invalidate dashboard cache", "error", err)
	}
	s.auditSvc.Record(ctx, actor, action, models.EntityPayment, payment.ID,
		fmt.Sprintf("loan %d: %s %s via %s (%s)", loan.ID, payment.PaymentMethod, money.Format(payment.Amount), payment.PaymentMode, schedule.DateKey(payment.DueDate.UTC())))

	event := PaymentReceived{
		PaymentID:  payment.ID,
		LoanID:     loan.ID,
		CustomerID: loan.CustomerID,
		Amount:     payment.Amount,
	}
	paymentCopy, loanCopy := *payment, *loan
	s.async(func(ctx context.Context) error {
		if _, err := s.notificationSvc.Dispatch(ctx, event); err != nil {
			logger.Error("Failed to dispatch payment notification", "payment_id", paymentCopy.ID, "error", err)
		}
		if s.emailSvc != nil && !paymentCopy.IsWaiver() {
			customer, err := s.repos.User.FindByID(ctx, loanCopy.CustomerID)
			if err == nil {
				if err := s.emailSvc.SendPaymentReceipt(ctx, customer, &paymentCopy, &loanCopy); err != nil {
					logger.Warn("Failed to send payment receipt", "payment_id", paymentCopy.ID, "error", err)
				}
			}
		}
		if result.LoanClosed {
			msg := fmt.Sprintf("Lease #%d has been paid in full and closed.", loanCopy.ID)
			if err := s.notificationSvc.NotifyAdmins(ctx, models.Notice{Title: "Lease closed", Message: msg, Type: models.NoticeLoanClosed, LoanID: loanCopy.ID}); err != nil {
				logger.Warn("Failed to notify admins of loan closure", "loan_id", loanCopy.ID, "error", err)
			}
		}
		return nil
	})

	if payment.IsWaiver() {
		notice := models.Notice{
			Title:   "Installment waived",
			Message: fmt.Sprintf("Installment due %s on lease #%d was waived.", schedule.DateKey(payment.DueDate.UTC()), loan.ID),
			Type:    models.NoticePaymentWaived,
			LoanID:  loan.ID,
		}
		s.async(func(ctx context.Context) error {
			return s.notificationSvc.NotifyAdmins(ctx, notice)
		})
	}
}

func (s *PaymentService) reportCaptureFailure(loan *models.Loan, amount decimal.Decimal, cause error) {
	logger.Warn("Card capture failed", "loan_id", loan.ID, "customer_id", loan.CustomerID, "amount", amount.StringFixed(2), "error", cause)
	notice := models.Notice{
		Title:   "Card payment failed",
		Message: fmt.Sprintf("Card payment of %s for lease #%d failed: %v", money.Format(amount), loan.ID, cause),
		Type:    models.NoticeCaptureFailed,
		LoanID:  loan.ID,
	}
	s.async(func(ctx context.Context) error {
		return s.notificationSvc.NotifyAdmins(ctx, notice)
	})
}

func (s *PaymentService) async(job jobs.Job) {
	runAsync(s.worker, job)
}

// runAsync runs job on the worker, or inline when no worker is configured
func runAsync(worker *jobs.Worker, job jobs.Job) {
	if worker == nil {
		if err := job(context.Background()); err != nil {
			logger.Warn("Inline job failed", "error", err)
		}
		return
	}
	worker.EnqueueAsync(job)
}
