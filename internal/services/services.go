package services

import (
	"github.com/redis/go-redis/v9"
	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/jobs"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/storage"
	"gorm.io/gorm"
)

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	Customer     *CustomerService
	Vehicle      *VehicleService
	Sale         *SaleService
	Payment      *PaymentService
	Notification *NotificationService
	Reminder     *ReminderService
	Dashboard    *DashboardService
	Calendar     *CalendarService
	Statement    *StatementService
	Audit        *AuditService
	Email        *EmailService
	Export       *ExportService
	Job          *JobService
}

// Transports are the outbound integrations, built by the caller so tests
// and the sweep command can swap them.
type Transports struct {
	Push     PushTransport
	Capturer PaymentCapturer
	Redis    *redis.Client
	Store    storage.FileStore
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, cfg *config.Config, db *gorm.DB, t Transports) *Services {
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(db)
	exportSvc := NewExportService()
	notificationSvc := NewNotificationService(repos.Notification, repos.NotificationLog, repos.User, t.Push, emailSvc, t.Redis)
	reminderSvc := NewReminderService(repos, notificationSvc, cfg.OverdueDaysForNotification)

	var imageSvc *ImageService
	if t.Store != nil {
		imageSvc = NewImageService(t.Store)
	}

	return &Services{
		Auth:         NewAuthService(repos.User, repos.RefreshToken, auditSvc, cfg),
		Customer:     NewCustomerService(repos, worker, emailSvc, notificationSvc, auditSvc, imageSvc),
		Vehicle:      NewVehicleService(repos.Vehicle, repos.Loan, auditSvc),
		Sale:         NewSaleService(repos, notificationSvc, auditSvc, exportSvc, worker),
		Payment:      NewPaymentService(repos, t.Capturer, notificationSvc, emailSvc, auditSvc, worker),
		Notification: notificationSvc,
		Reminder:     reminderSvc,
		Dashboard:    NewDashboardService(repos),
		Calendar:     NewCalendarService(repos),
		Statement:    NewStatementService(repos),
		Audit:        auditSvc,
		Email:        emailSvc,
		Export:       exportSvc,
		Job:          NewJobService(worker, reminderSvc),
	}
}
