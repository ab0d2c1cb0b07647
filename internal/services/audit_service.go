package services

import (
	"context"
	"strings"

	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/pkg/logger"
	"gorm.io/gorm"
)

// Audit actions
const (
	AuditCreate       = "CREATE"
	AuditUpdate       = "UPDATE"
	AuditDelete       = "DELETE"
	AuditLogin        = "LOGIN"
	AuditPayment      = "PAYMENT"
	AuditWaive        = "WAIVE"
	AuditStatusChange = "STATUS_CHANGE"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Log records an audit entry
func (s *AuditService) Log(ctx context.Context, userID uint, action, entity string, entityID uint, details, ip, userAgent string) error {
	logEntry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	return s.db.WithContext(ctx).Create(logEntry).Error
}

// Record is Log for callers that must not fail on audit errors
func (s *AuditService) Record(ctx context.Context, actor Actor, action, entity string, entityID uint, details string) {
	if s == nil {
		return
	}
	if err := s.Log(ctx, actor.UserID, action, entity, entityID, details, actor.IP, actor.UserAgent); err != nil {
		logger.Warn("Failed to write audit log", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// AuditFilter narrows an audit listing. Zero values match everything.
type AuditFilter struct {
	Entity   string
	EntityID uint
	UserID   uint
	Action   string
}

// List retrieves audit logs matching f, newest first
func (s *AuditService) List(ctx context.Context, f AuditFilter, limit, offset int) ([]models.AuditLog, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", strings.ToUpper(f.Action))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var logs []models.AuditLog
	err := q.Preload("User").Order("created_at desc, id desc").Limit(limit).Offset(offset).Find(&logs).Error
	return logs, total, err
}

// Actor identifies who triggered a change, for audit entries
type Actor struct {
	UserID    uint
	IP        string
	UserAgent string
}
