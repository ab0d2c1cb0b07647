package models

import (
	"time"
)

// Notification is an in-app notice shown to a user. Notices about a lease
// carry its LoanID so the app can link to it.
type Notification struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	LoanID           *uint      `gorm:"index" json:"loan_id"`
	Title            string     `gorm:"not null" json:"title"`
	Message          string     `gorm:"not null" json:"message"`
	NotificationType *string    `gorm:"index" json:"notification_type"`
	ReadAt           *time.Time `gorm:"index:idx_notifications_user_read,priority:2" json:"read_at"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}

// In-app notice types
const (
	NoticeLoanCreated   = "loan_created"
	NoticeLoanClosed    = "loan_closed"
	NoticeCaptureFailed = "capture_failed"
	NoticePaymentWaived = "payment_waived"
	NoticeBroadcast     = "broadcast"
	NoticeNewCustomer   = "create_new_customer"
	NoticeSystemError   = "system_error"
)

// Notice is the content of an in-app notification before it is addressed
type Notice struct {
	Title   string
	Message string
	Type    string
	LoanID  uint
}

// For addresses the notice to one user
func (n Notice) For(userID uint) Notification {
	noticeType := n.Type
	out := Notification{
		UserID:           userID,
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: &noticeType,
	}
	if n.LoanID != 0 {
		loanID := n.LoanID
		out.LoanID = &loanID
	}
	return out
}

func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

type NotificationResponse struct {
	ID               uint       `json:"id"`
	LoanID           *uint      `json:"loan_id,omitempty"`
	Title            string     `json:"title"`
	Message          string     `json:"message"`
	NotificationType *string    `json:"notification_type"`
	Read             bool       `json:"read"`
	ReadAt           *time.Time `json:"read_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (n *Notification) ToResponse() NotificationResponse {
	return NotificationResponse{
		ID:               n.ID,
		LoanID:           n.LoanID,
		Title:            n.Title,
		Message:          n.Message,
		NotificationType: n.NotificationType,
		Read:             n.IsRead(),
		ReadAt:           n.ReadAt,
		CreatedAt:        n.CreatedAt,
	}
}
