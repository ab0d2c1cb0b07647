package repository

import (
	"context"
	"fmt"

	"github.com/sjperalta/autolease-api/internal/models"
	"gorm.io/gorm"
)

// NotificationLogRepository persists the notification dedup log
type NotificationLogRepository interface {
	Exists(ctx context.Context, notificationType, scopeKey string) (bool, error)
	// Create inserts the log row. A unique violation on
	// (notification_type, scope_key) returns ErrDuplicate.
	Create(ctx context.Context, entry *models.NotificationLog) error
	ListByCustomer(ctx context.Context, customerID uint, query *ListQuery) ([]models.NotificationLog, int64, error)
	List(ctx context.Context, query *ListQuery) ([]models.NotificationLog, int64, error)
}

type notificationLogRepository struct {
	db *gorm.DB
}

// NewNotificationLogRepository creates a new notification log repository
func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func (r *notificationLogRepository) Exists(ctx context.Context, notificationType, scopeKey string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NotificationLog{}).
		Where("notification_type = ? AND scope_key = ?", notificationType, scopeKey).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

func (r *notificationLogRepository) Create(ctx context.Context, entry *models.NotificationLog) error {
	if err := r.db.WithContext(ctx).Omit("Customer").Create(entry).Error; err != nil {
		if IsDuplicateKeyError(err, "uq_notification_type_scope_key") {
			return fmt.Errorf("%w: %s %s", ErrDuplicate, entry.NotificationType, entry.ScopeKey)
		}
		return err
	}
	return nil
}

func (r *notificationLogRepository) ListByCustomer(ctx context.Context, customerID uint, query *ListQuery) ([]models.NotificationLog, int64, error) {
	var logs []models.NotificationLog
	var total int64

	db := r.db.WithContext(ctx).Model(&models.NotificationLog{}).Where("customer_id = ?", customerID)
	if query.Filters["type"] != "" {
		db = db.Where("notification_type = ?", query.Filters["type"])
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = applyPage(db.Order("sent_at DESC, id DESC"), query)
	err := db.Find(&logs).Error
	return logs, total, err
}

func (r *notificationLogRepository) List(ctx context.Context, query *ListQuery) ([]models.NotificationLog, int64, error) {
	var logs []models.NotificationLog
	var total int64

	db := r.db.WithContext(ctx).Model(&models.NotificationLog{})
	if query.Filters["type"] != "" {
		db = db.Where("notification_type = ?", query.Filters["type"])
	}
	if query.Filters["customer_id"] != "" {
		db = db.Where("customer_id = ?", query.Filters["customer_id"])
	}
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = applyPage(db.Order("sent_at DESC, id DESC"), query)
	err := db.Preload("Customer").Find(&logs).Error
	return logs, total, err
}
