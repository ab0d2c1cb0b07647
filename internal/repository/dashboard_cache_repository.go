package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sjperalta/autolease-api/internal/models"
	"gorm.io/gorm"
)

// DashboardCacheRepository stores short-lived dashboard snapshots
type DashboardCacheRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*models.DashboardCache, error)
	Set(ctx context.Context, key string, data any, expiresAt time.Time) error
	Invalidate(ctx context.Context, key string) error
	CleanExpired(ctx context.Context, now time.Time) error
}

type dashboardCacheRepository struct {
	db *gorm.DB
}

// NewDashboardCacheRepository creates a new dashboard cache repository
func NewDashboardCacheRepository(db *gorm.DB) DashboardCacheRepository {
	return &dashboardCacheRepository{db: db}
}

func (r *dashboardCacheRepository) Get(ctx context.Context, key string, now time.Time) (*models.DashboardCache, error) {
	var cache models.DashboardCache
	err := r.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, now.UTC()).
		First(&cache).Error
	if err != nil {
		return nil, err
	}
	return &cache, nil
}

func (r *dashboardCacheRepository) Set(ctx context.Context, key string, data any, expiresAt time.Time) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	var existing models.DashboardCache
	err = r.db.WithContext(ctx).Where("cache_key = ?", key).First(&existing).Error
	if err == nil {
		return r.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
			"data":       payload,
			"expires_at": expiresAt.UTC(),
		}).Error
	}
	if !IsNotFound(err) {
		return err
	}

	return r.db.WithContext(ctx).Create(&models.DashboardCache{
		CacheKey:  key,
		Data:      payload,
		ExpiresAt: expiresAt.UTC(),
	}).Error
}

func (r *dashboardCacheRepository) Invalidate(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&models.DashboardCache{}).Error
}

func (r *dashboardCacheRepository) CleanExpired(ctx context.Context, now time.Time) error {
	return r.db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&models.DashboardCache{}).Error
}
