package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

// markerTTL bounds how long a sent marker is kept in Redis. The log table
// remains the source of truth after it expires.
const markerTTL = 30 * 24 * time.Hour

type NotificationService struct {
	repo     repository.NotificationRepository
	logRepo  repository.NotificationLogRepository
	userRepo repository.UserRepository
	push     PushTransport
	email    EmailTransport
	markers  *redis.Client
}

func NewNotificationService(
	repo repository.NotificationRepository,
	logRepo repository.NotificationLogRepository,
	userRepo repository.UserRepository,
	push PushTransport,
	email EmailTransport,
	markers *redis.Client,
) *NotificationService {
	if push == nil {
		push = logPushTransport{}
	}
	return &NotificationService{
		repo:     repo,
		logRepo:  logRepo,
		userRepo: userRepo,
		push:     push,
		email:    email,
		markers:  markers,
	}
}

// Dispatch sends event to its customer unless a notification with the same
// type and scope key was already sent. It reports whether this call sent it.
// Transport failures are logged and do not prevent the log row from being
// written.
func (s *NotificationService) Dispatch(ctx context.Context, event NotificationEvent) (bool, error) {
	notificationType, scopeKey := event.Type(), event.ScopeKey()

	if s.markerSeen(ctx, notificationType, scopeKey) {
		return false, nil
	}
	exists, err := s.logRepo.Exists(ctx, notificationType, scopeKey)
	if err != nil {
		return false, fmt.Errorf("failed to check notification log: %w", err)
	}
	if exists {
		s.mark(ctx, notificationType, scopeKey)
		return false, nil
	}

	customer, err := s.userRepo.FindByID(ctx, event.Customer())
	if err != nil {
		return false, notFound(err, "customer")
	}

	if customer.HasDeviceToken() {
		if err := s.push.Send(ctx, *customer.DeviceToken, event.Title(), event.Body(), event.Data()); err != nil {
			logger.Warn("Push delivery failed", "type", notificationType, "scope_key", scopeKey, "customer_id", customer.ID, "error", err)
			sentry.CaptureException(err)
		}
	}
	if s.email != nil {
		if err := s.email.SendNotification(ctx, customer, event.Title(), event.Body()); err != nil {
			logger.Warn("Notification email failed", "type", notificationType, "scope_key", scopeKey, "customer_id", customer.ID, "error", err)
		}
	}

	entry := &models.NotificationLog{
		NotificationType: notificationType,
		ScopeKey:         scopeKey,
		CustomerID:       customer.ID,
		SentAt:           time.Now().UTC(),
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.mark(ctx, notificationType, scopeKey)
			return false, nil
		}
		return false, fmt.Errorf("failed to write notification log: %w", err)
	}
	s.mark(ctx, notificationType, scopeKey)

	logger.Info("Notification sent", "type", notificationType, "scope_key", scopeKey, "customer_id", customer.ID)
	return true, nil
}

func markerKey(notificationType, scopeKey string) string {
	return "notif:" + notificationType + ":" + scopeKey
}

func (s *NotificationService) markerSeen(ctx context.Context, notificationType, scopeKey string) bool {
	if s.markers == nil {
		return false
	}
	n, err := s.markers.Exists(ctx, markerKey(notificationType, scopeKey)).Result()
	if err != nil {
		logger.Warn("Notification marker lookup failed", "error", err)
		return false
	}
	return n > 0
}

func (s *NotificationService) mark(ctx context.Context, notificationType, scopeKey string) {
	if s.markers == nil {
		return
	}
	if err := s.markers.Set(ctx, markerKey(notificationType, scopeKey), 1, markerTTL).Err(); err != nil {
		logger.Warn("Notification marker write failed", "error", err)
	}
}

// ListForCustomer returns the notifications sent to one customer
func (s *NotificationService) ListForCustomer(ctx context.Context, customerID uint, query *repository.ListQuery) ([]models.NotificationLogResponse, int64, error) {
	logs, total, err := s.logRepo.ListByCustomer(ctx, customerID, query)
	if err != nil {
		return nil, 0, err
	}
	return notificationLogResponses(logs), total, nil
}

// ListAll returns every logged customer notification, for admins
func (s *NotificationService) ListAll(ctx context.Context, query *repository.ListQuery) ([]models.NotificationLogResponse, int64, error) {
	logs, total, err := s.logRepo.List(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	return notificationLogResponses(logs), total, nil
}

func notificationLogResponses(logs []models.NotificationLog) []models.NotificationLogResponse {
	out := make([]models.NotificationLogResponse, 0, len(logs))
	for i := range logs {
		l := &logs[i]
		title, body := DescribeNotification(l)
		resp := models.NotificationLogResponse{
			ID:               l.ID,
			NotificationType: l.NotificationType,
			ScopeKey:         l.ScopeKey,
			CustomerID:       l.CustomerID,
			Title:            title,
			Body:             body,
			SentAt:           l.SentAt,
		}
		if l.Customer.ID != 0 {
			resp.CustomerName = l.Customer.FullName()
		}
		out = append(out, resp)
	}
	return out
}

// BroadcastResult counts the outcome of a customer broadcast
type BroadcastResult struct {
	Targeted int `json:"targeted"`
	Pushed   int `json:"pushed"`
	Failed   int `json:"failed"`
}

// NotifyCustomers pushes an admin message to the given active customers, or
// to every active customer when ids is empty. Broadcasts are not
// deduplicated.
func (s *NotificationService) NotifyCustomers(ctx context.Context, ids []uint, title, body string) (*BroadcastResult, error) {
	if title == "" || body == "" {
		return nil, validationError("title and body are required")
	}
	customers, err := s.userRepo.FindActiveCustomers(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := &BroadcastResult{Targeted: len(customers)}
	notices := make([]models.Notification, 0, len(customers))
	notice := models.Notice{Title: title, Message: body, Type: models.NoticeBroadcast}
	data := map[string]string{"type": models.NoticeBroadcast}
	for i := range customers {
		c := &customers[i]
		notices = append(notices, notice.For(c.ID))
		if !c.HasDeviceToken() {
			continue
		}
		if err := s.push.Send(ctx, *c.DeviceToken, title, body, data); err != nil {
			logger.Warn("Broadcast push failed", "customer_id", c.ID, "error", err)
			result.Failed++
			continue
		}
		result.Pushed++
	}
	if len(notices) > 0 {
		if err := s.repo.CreateMany(ctx, notices); err != nil {
			return result, fmt.Errorf("failed to record broadcast notices: %w", err)
		}
	}
	return result, nil
}

// In-app notices

func (s *NotificationService) FindByUser(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Notification, int64, error) {
	return s.repo.FindByUser(ctx, userID, query)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uint) error {
	if err := s.repo.MarkAsRead(ctx, userID, id); err != nil {
		return notFound(err, "notification")
	}
	return nil
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// NotifyUser stores an in-app notice for one user
func (s *NotificationService) NotifyUser(ctx context.Context, userID uint, notice models.Notice) error {
	n := notice.For(userID)
	return s.repo.Create(ctx, &n)
}

// NotifyAdmins stores an in-app notice for every admin
func (s *NotificationService) NotifyAdmins(ctx context.Context, notice models.Notice) error {
	admins, err := s.userRepo.FindAdmins(ctx)
	if err != nil {
		return err
	}
	notices := make([]models.Notification, 0, len(admins))
	for _, admin := range admins {
		notices = append(notices, notice.For(admin.ID))
	}
	if len(notices) == 0 {
		return nil
	}
	return s.repo.CreateMany(ctx, notices)
}
