package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User represents an admin or a customer. Customers own loans.
type User struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	EncryptedPassword   string     `gorm:"column:encrypted_password;not null" json:"-"`
	Role                string     `gorm:"default:customer;index" json:"role"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Phone               string     `gorm:"index" json:"phone"`
	Address             *string    `json:"address"`
	DriverLicenseNumber *string    `json:"driver_license_number"`
	EmployerName        *string    `json:"employer_name"`
	Status              string     `gorm:"default:active;index" json:"status"`
	DeviceToken         *string    `json:"-"`
	ProfilePicURL       *string    `json:"profile_pic_url"`
	CreatedBy           *uint      `json:"created_by"`
	Note                *string    `json:"note"`
	DiscardedAt         *time.Time `gorm:"index" json:"-"`
	CreatedAt           time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	// Associations
	Loans         []Loan         `gorm:"foreignKey:CustomerID" json:"loans,omitempty"`
	Notifications []Notification `gorm:"foreignKey:UserID" json:"notifications,omitempty"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// BeforeCreate hook for setting defaults
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleCustomer
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	return nil
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAdmin returns true if user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsCustomer returns true if user has customer role
func (u *User) IsCustomer() bool {
	return u.Role == RoleCustomer
}

// IsActive returns true if user status is active
func (u *User) IsActive() bool {
	return u.Status == StatusActive && u.DiscardedAt == nil
}

// IsDiscarded returns true if user is soft-deleted
func (u *User) IsDiscarded() bool {
	return u.DiscardedAt != nil
}

// HasDeviceToken reports whether push notifications can reach the user
func (u *User) HasDeviceToken() bool {
	return u.DeviceToken != nil && *u.DeviceToken != ""
}

// Role constants
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// Status constants
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// UserResponse is the JSON response format for users
type UserResponse struct {
	ID                  uint      `json:"id"`
	Email               string    `json:"email"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	FullName            string    `json:"full_name"`
	Phone               string    `json:"phone"`
	Role                string    `json:"role"`
	Status              string    `json:"status"`
	Address             *string   `json:"address"`
	DriverLicenseNumber *string   `json:"driver_license_number"`
	EmployerName        *string   `json:"employer_name"`
	ProfilePicURL       *string   `json:"profile_pic_url"`
	HasDeviceToken      bool      `json:"has_device_token"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:                  u.ID,
		Email:               u.Email,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		FullName:            u.FullName(),
		Phone:               u.Phone,
		Role:                u.Role,
		Status:              u.Status,
		Address:             u.Address,
		DriverLicenseNumber: u.DriverLicenseNumber,
		EmployerName:        u.EmployerName,
		ProfilePicURL:       u.ProfilePicURL,
		HasDeviceToken:      u.HasDeviceToken(),
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}
