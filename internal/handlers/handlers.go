package handlers

import (
	"github.com/sjperalta/autolease-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Auth         *AuthHandler
	Customer     *CustomerHandler
	Vehicle      *VehicleHandler
	Sale         *SaleHandler
	Payment      *PaymentHandler
	Dashboard    *DashboardHandler
	Notification *NotificationHandler
	Audit        *AuditHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Auth:         NewAuthHandler(svcs.Auth),
		Customer:     NewCustomerHandler(svcs.Customer),
		Vehicle:      NewVehicleHandler(svcs.Vehicle),
		Sale:         NewSaleHandler(svcs.Sale, svcs.Statement),
		Payment:      NewPaymentHandler(svcs.Payment, svcs.Export),
		Dashboard:    NewDashboardHandler(svcs.Dashboard, svcs.Calendar),
		Notification: NewNotificationHandler(svcs.Notification),
		Audit:        NewAuditHandler(svcs.Audit),
		Job:          NewJobHandler(svcs.Job, svcs.Reminder),
	}
}
