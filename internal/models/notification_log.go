package models

import "time"

// NotificationLog records that a customer notification was dispatched. The
// (notification_type, scope_key) pair is unique; rows are never updated.
type NotificationLog struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	NotificationType string    `gorm:"size:32;not null;uniqueIndex:uq_notification_type_scope_key,priority:1" json:"notification_type"`
	ScopeKey         string    `gorm:"size:128;not null;uniqueIndex:uq_notification_type_scope_key,priority:2" json:"scope_key"`
	CustomerID       uint      `gorm:"not null;index" json:"customer_id"`
	SentAt           time.Time `gorm:"not null;index" json:"sent_at"`

	// Associations
	Customer User `gorm:"foreignKey:CustomerID" json:"-"`
}

// TableName specifies the table name for NotificationLog
func (NotificationLog) TableName() string {
	return "payment_notification_logs"
}

// Customer notification types
const (
	NotificationPaymentReceived  = "payment_received"
	NotificationPaymentConfirmed = "payment_confirmed"
	NotificationDueTomorrow      = "due_tomorrow"
	NotificationOverdue          = "overdue"
)

// NotificationLogResponse is the JSON response format for logged notifications
type NotificationLogResponse struct {
	ID               uint      `json:"id"`
	NotificationType string    `json:"notification_type"`
	ScopeKey         string    `json:"scope_key"`
	CustomerID       uint      `json:"customer_id"`
	CustomerName     string    `json:"customer_name,omitempty"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	SentAt           time.Time `json:"sent_at"`
}
