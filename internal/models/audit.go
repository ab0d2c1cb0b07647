package models

import (
	"time"
)

// Audited entity names
const (
	EntityUser    = "User"
	EntityVehicle = "Vehicle"
	EntityLoan    = "Loan"
	EntityPayment = "Payment"
)

// AuditLog records who changed what. Entries for one record are found by
// (entity, entity_id).
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Action    string    `gorm:"size:50;not null;index" json:"action"`
	Entity    string    `gorm:"size:50;not null;index:idx_audit_entity,priority:1" json:"entity"`
	EntityID  uint      `gorm:"index:idx_audit_entity,priority:2" json:"entity_id"`
	Details   string    `gorm:"type:text" json:"details"`
	IPAddress string    `gorm:"size:45" json:"ip_address"`
	UserAgent string    `gorm:"size:255" json:"user_agent"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
