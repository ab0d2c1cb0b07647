package models

import (
	"encoding/json"
	"time"
)

// DashboardCache stores a rendered dashboard snapshot until ExpiresAt
type DashboardCache struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	CacheKey  string          `gorm:"not null;uniqueIndex" json:"cache_key"`
	Data      json.RawMessage `gorm:"not null" json:"data"`
	ExpiresAt time.Time       `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for DashboardCache
func (DashboardCache) TableName() string {
	return "dashboard_cache"
}

// IsExpired reports whether the snapshot is stale at now
func (c *DashboardCache) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
