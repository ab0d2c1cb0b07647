package services

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/jobs"
	"github.com/sjperalta/autolease-api/internal/ledger"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/schedule"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

// CustomerService manages customer accounts and their self-service views
type CustomerService struct {
	repos           *repository.Repositories
	worker          *jobs.Worker
	emailSvc        *EmailService
	notificationSvc *NotificationService
	auditSvc        *AuditService
	imageSvc        *ImageService
}

func NewCustomerService(
	repos *repository.Repositories,
	worker *jobs.Worker,
	emailSvc *EmailService,
	notificationSvc *NotificationService,
	auditSvc *AuditService,
	imageSvc *ImageService,
) *CustomerService {
	return &CustomerService{
		repos:           repos,
		worker:          worker,
		emailSvc:        emailSvc,
		notificationSvc: notificationSvc,
		auditSvc:        auditSvc,
		imageSvc:        imageSvc,
	}
}

// CreateCustomerInput is the admin payload for a new customer
type CreateCustomerInput struct {
	Email               string
	Password            string
	FirstName           string
	LastName            string
	Phone               string
	Address             *string
	DriverLicenseNumber *string
	EmployerName        *string
	Note                *string
}

// Create registers a customer, then sends the welcome email and tells the
// admins in the background.
func (s *CustomerService) Create(ctx context.Context, in CreateCustomerInput, actor Actor) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("invalid email address")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, validationError("first and last name are required")
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:               email,
		EncryptedPassword:   hash,
		Role:                models.RoleCustomer,
		Status:              models.StatusActive,
		FirstName:           strings.TrimSpace(in.FirstName),
		LastName:            strings.TrimSpace(in.LastName),
		Phone:               strings.TrimSpace(in.Phone),
		Address:             in.Address,
		DriverLicenseNumber: in.DriverLicenseNumber,
		EmployerName:        in.EmployerName,
		Note:                in.Note,
	}
	if actor.UserID != 0 {
		user.CreatedBy = &actor.UserID
	}
	if err := s.repos.User.Create(ctx, user); err != nil {
		return nil, duplicate(err)
	}

	s.auditSvc.Record(ctx, actor, AuditCreate, models.EntityUser, user.ID, fmt.Sprintf("customer created: %s (%s)", user.FullName(), user.Email))

	created := *user
	runAsync(s.worker, func(ctx context.Context) error {
		if s.emailSvc != nil {
			if err := s.emailSvc.SendAccountCreated(ctx, &created); err != nil {
				logger.Warn("Failed to send welcome email", "user_id", created.ID, "error", err)
			}
		}
		if s.notificationSvc != nil {
			msg := fmt.Sprintf("New customer %s (%s) was registered.", created.FullName(), created.Email)
			return s.notificationSvc.NotifyAdmins(ctx, models.Notice{Title: "New customer", Message: msg, Type: models.NoticeNewCustomer})
		}
		return nil
	})
	return user, nil
}

// List pages through customers. Search matches name, email and phone.
func (s *CustomerService) List(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
	if query.Filters == nil {
		query.Filters = map[string]string{}
	}
	query.Filters["role"] = models.RoleCustomer
	return s.repos.User.List(ctx, query)
}

// CustomerDetail is a customer with their loans
type CustomerDetail struct {
	Customer models.UserResponse   `json:"customer"`
	Loans    []models.LoanResponse `json:"loans"`
}

// Detail returns a customer and their loans
func (s *CustomerService) Detail(ctx context.Context, id uint) (*CustomerDetail, error) {
	user, err := s.findCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	loans, err := s.repos.Loan.FindByCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &CustomerDetail{Customer: user.ToResponse(), Loans: make([]models.LoanResponse, 0, len(loans))}
	for i := range loans {
		detail.Loans = append(detail.Loans, loans[i].ToResponse())
	}
	return detail, nil
}

// SetActive activates or deactivates a customer account. Deactivation also
// revokes the customer's refresh tokens.
func (s *CustomerService) SetActive(ctx context.Context, id uint, active bool, actor Actor) (*models.User, error) {
	user, err := s.findCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	status := models.StatusInactive
	if active {
		status = models.StatusActive
	}
	if user.Status == status {
		return user, nil
	}
	user.Status = status
	if err := s.repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	if !active {
		if err := s.repos.RefreshToken.DeleteByUser(ctx, id); err != nil {
			logger.Warn("Failed to revoke refresh tokens", "user_id", id, "error", err)
		}
	}
	s.auditSvc.Record(ctx, actor, AuditStatusChange, models.EntityUser, id, "status changed to "+status)
	return user, nil
}

// UpdateProfileInput carries the fields a customer may edit on their profile
type UpdateProfileInput struct {
	FirstName    *string
	LastName     *string
	Phone        *string
	Address      *string
	EmployerName *string
}

// UpdateProfile applies the non-nil fields of in
func (s *CustomerService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return nil, validationError("first name cannot be empty")
		}
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if strings.TrimSpace(*in.LastName) == "" {
			return nil, validationError("last name cannot be empty")
		}
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		user.Address = in.Address
	}
	if in.EmployerName != nil {
		user.EmployerName = in.EmployerName
	}
	if err := s.repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetDeviceToken registers the push token of the caller's device. An empty
// token clears it.
func (s *CustomerService) SetDeviceToken(ctx context.Context, userID uint, token string) error {
	token = strings.TrimSpace(token)
	var value *string
	if token != "" {
		value = &token
	}
	return s.repos.User.SetDeviceToken(ctx, userID, value)
}

// UploadProfilePicture stores a resized picture and saves its URL
func (s *CustomerService) UploadProfilePicture(ctx context.Context, userID uint, filename string, r io.Reader) (*models.User, error) {
	if s.imageSvc == nil {
		return nil, fmt.Errorf("%w: image storage is not configured", ErrInvalidState)
	}
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	url, err := s.imageSvc.ProcessProfilePicture(ctx, userID, filename, r)
	if err != nil {
		return nil, err
	}
	user.ProfilePicURL = &url
	if err := s.repos.User.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one
func (s *CustomerService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.repos.User.FindByID(ctx, userID)
	if err != nil {
		return notFound(err, "user")
	}
	if !VerifyPassword(current, user.EncryptedPassword) {
		return fmt.Errorf("%w: current password is incorrect", ErrInvalidPassword)
	}
	if len(next) < minPasswordLength {
		return validationError("password must be at least %d characters", minPasswordLength)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	user.EncryptedPassword = hash
	if err := s.repos.User.Update(ctx, user); err != nil {
		return err
	}
	s.auditSvc.Record(ctx, Actor{UserID: userID}, AuditUpdate, models.EntityUser, userID, "password changed")
	return nil
}

func (s *CustomerService) findCustomer(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repos.User.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "customer")
	}
	if !user.IsCustomer() {
		return nil, fmt.Errorf("%w: customer", ErrNotFound)
	}
	return user, nil
}

// HomeLoan is one loan on the customer's home page
type HomeLoan struct {
	LoanID            uint    `json:"loan_id"`
	Status            string  `json:"status"`
	VehicleID         uint    `json:"vehicle_id"`
	VehicleName       string  `json:"vehicle_name"`
	VIN               string  `json:"vin"`
	NextDueDate       *string `json:"next_due_date"`
	NextDueAmount     *string `json:"next_due_amount"`
	RemainingBalance  string  `json:"remaining_balance"`
	InstallmentAmount string  `json:"installment_amount"`
	PaymentsRemaining int     `json:"payments_remaining"`
	OverdueCount      int     `json:"overdue_count"`
	OverdueAmount     string  `json:"overdue_amount"`
	PaymentFrequency  string  `json:"payment_frequency"`
	ScheduleSummary   string  `json:"schedule_summary"`
}

// HomePage summarizes every loan of the customer as of today
type HomePage struct {
	Customer models.UserResponse `json:"customer"`
	Loans    []HomeLoan          `json:"loans"`
}

func (s *CustomerService) HomePage(ctx context.Context, customerID uint, today time.Time) (*HomePage, error) {
	user, err := s.repos.User.FindByID(ctx, customerID)
	if err != nil {
		return nil, notFound(err, "customer")
	}
	loans, err := s.repos.Loan.FindByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	ledgers, err := loanLedgers(ctx, s.repos, loans)
	if err != nil {
		return nil, err
	}

	page := &HomePage{Customer: user.ToResponse(), Loans: make([]HomeLoan, 0, len(loans))}
	for i := range loans {
		page.Loans = append(page.Loans, homeLoan(&loans[i], ledgers[loans[i].ID], today))
	}
	return page, nil
}

func homeLoan(loan *models.Loan, l *ledger.Ledger, today time.Time) HomeLoan {
	freq := schedule.ParseFrequency(loan.PaymentFrequency)
	h := HomeLoan{
		LoanID:            loan.ID,
		Status:            loan.Status,
		VehicleID:         loan.VehicleID,
		RemainingBalance:  loan.AmountFinanced.StringFixed(2),
		InstallmentAmount: loan.InstallmentAmount.StringFixed(2),
		PaymentFrequency:  string(freq),
		ScheduleSummary:   schedule.Describe(freq),
		OverdueAmount:     "0.00",
	}
	if loan.Vehicle.ID != 0 {
		h.VehicleName = loan.Vehicle.DisplayName()
		h.VIN = loan.Vehicle.VIN
	}
	if !loan.IsActive() {
		return h
	}

	if next, ok := l.NextUnpaid(today); ok {
		date, amount := next.DateKey(), next.Remaining.StringFixed(2)
		h.NextDueDate, h.NextDueAmount = &date, &amount
	}
	for _, e := range l.AllEntries(today) {
		if !e.IsPaid() {
			h.PaymentsRemaining++
		}
	}
	overdue := l.Overdue(today)
	total := decimal.Zero
	for _, e := range overdue {
		total = total.Add(e.Remaining)
	}
	h.OverdueCount = len(overdue)
	h.OverdueAmount = total.StringFixed(2)
	return h
}

// ScheduleEntry is one due date in a customer's schedule
type ScheduleEntry struct {
	DueDate      string `json:"due_date"`
	Amount       string `json:"amount"`
	Paid         string `json:"paid"`
	Remaining    string `json:"remaining"`
	Status       string `json:"status"`
	DaysOverdue  int    `json:"days_overdue"`
	DaysUntilDue int    `json:"days_until_due"`
	Attempted    bool   `json:"attempted"`
}

// LoanSchedule is the full schedule of one loan with its totals
type LoanSchedule struct {
	LoanID            uint            `json:"loan_id"`
	Status            string          `json:"status"`
	PaymentFrequency  string          `json:"payment_frequency"`
	ScheduleSummary   string          `json:"schedule_summary"`
	InstallmentAmount string          `json:"installment_amount"`
	RemainingBalance  string          `json:"remaining_balance"`
	Entries           []ScheduleEntry `json:"entries"`
	TotalCollected    string          `json:"total_collected"`
	PendingAmount     string          `json:"pending_amount"`
	OverdueAmount     string          `json:"overdue_amount"`
}

// Schedule lists every scheduled due date of the customer's loan. Attempted
// flags dates that any payment touched, failed ones included.
func (s *CustomerService) Schedule(ctx context.Context, customerID, loanID uint, today time.Time) (*LoanSchedule, error) {
	loan, err := s.repos.Loan.FindByID(ctx, loanID)
	if err != nil {
		return nil, notFound(err, "loan")
	}
	if loan.CustomerID != customerID {
		return nil, fmt.Errorf("%w: loan does not belong to this customer", ErrForbidden)
	}
	payments, err := s.repos.Payment.FindByLoan(ctx, loan.ID)
	if err != nil {
		return nil, err
	}
	return loanSchedule(loan, ledger.New(ledger.TermsOf(loan), payments), today), nil
}

func loanSchedule(loan *models.Loan, l *ledger.Ledger, today time.Time) *LoanSchedule {
	freq := schedule.ParseFrequency(loan.PaymentFrequency)
	attempted := l.PaidDueDatesAnyStatus()
	entries := l.AllEntries(today)

	var totals ledger.Totals
	totals.Fold(entries)
	if !loan.IsActive() {
		totals.Pending, totals.Overdue = decimal.Zero, decimal.Zero
	}

	out := &LoanSchedule{
		LoanID:            loan.ID,
		Status:            loan.Status,
		PaymentFrequency:  string(freq),
		ScheduleSummary:   schedule.Describe(freq),
		InstallmentAmount: loan.InstallmentAmount.StringFixed(2),
		RemainingBalance:  loan.AmountFinanced.StringFixed(2),
		Entries:           make([]ScheduleEntry, 0, len(entries)),
		TotalCollected:    totals.Collected.StringFixed(2),
		PendingAmount:     totals.Pending.StringFixed(2),
		OverdueAmount:     totals.Overdue.StringFixed(2),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, ScheduleEntry{
			DueDate:      e.DateKey(),
			Amount:       e.Installment.StringFixed(2),
			Paid:         e.Paid.StringFixed(2),
			Remaining:    e.Remaining.StringFixed(2),
			Status:       string(e.Status),
			DaysOverdue:  e.DaysOverdue,
			DaysUntilDue: e.DaysUntilDue,
			Attempted:    attempted[e.DateKey()],
		})
	}
	return out
}
