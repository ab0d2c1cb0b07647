package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle is a unit in the lease inventory
type Vehicle struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	VIN           string          `gorm:"column:vin;uniqueIndex;size:17;not null" json:"vin"`
	Make          string          `gorm:"not null" json:"make"`
	Model         string          `gorm:"not null" json:"model"`
	Year          int             `gorm:"not null" json:"year"`
	Color         *string         `json:"color"`
	Mileage       int             `gorm:"default:0" json:"mileage"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"purchase_price"`
	LeasePrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"lease_price"`
	Status        string          `gorm:"default:available;index" json:"status"`
	Condition     string          `gorm:"default:good" json:"condition"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Vehicle
func (Vehicle) TableName() string {
	return "vehicles"
}

// Vehicle status constants. VehicleStatusSold is a legacy value that counts
// as leased.
const (
	VehicleStatusAvailable = "available"
	VehicleStatusLeased    = "leased"
	VehicleStatusSold      = "sold"
)

// Vehicle condition constants
const (
	VehicleConditionBad       = "bad"
	VehicleConditionGood      = "good"
	VehicleConditionExcellent = "excellent"
)

// IsAssigned returns true if the vehicle is already on a lease
func (v *Vehicle) IsAssigned() bool {
	return v.Status == VehicleStatusLeased || v.Status == VehicleStatusSold
}

// DisplayName is "Year Make Model"
func (v *Vehicle) DisplayName() string {
	return fmt.Sprintf("%d %s %s", v.Year, v.Make, v.Model)
}

// ValidVehicleStatus reports whether s is a known vehicle status
func ValidVehicleStatus(s string) bool {
	switch s {
	case VehicleStatusAvailable, VehicleStatusLeased, VehicleStatusSold:
		return true
	}
	return false
}

// ValidVehicleCondition reports whether s is a known condition
func ValidVehicleCondition(s string) bool {
	switch s {
	case VehicleConditionBad, VehicleConditionGood, VehicleConditionExcellent:
		return true
	}
	return false
}
