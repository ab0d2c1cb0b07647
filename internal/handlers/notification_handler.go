package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/autolease-api/internal/middleware"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
}

func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// @Summary List notices
// @Description In-app notices of the current user, newest first
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "read or unread"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) Index(c *gin.Context) {
	userID := middleware.GetUserID(c)
	query := listQuery(c)
	query.Filters["status"] = c.Query("status")

	notifications, total, err := h.notificationService.FindByUser(c.Request.Context(), userID, query)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notificationService.CountUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		responses = append(responses, notifications[i].ToResponse())
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": responses,
		"unread_count":  unread,
		"pagination":    pagination(query, total),
	})
}

// @Summary Mark notice read
// @Tags Notifications
// @Produce json
// @Param notification_id path int true "Notification ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/{notification_id}/read [put]
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	id, ok := parseIDParam(c, "notification_id")
	if !ok {
		return
	}
	if err := h.notificationService.MarkAsRead(c.Request.Context(), middleware.GetUserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}

// @Summary Mark all notices read
// @Tags Notifications
// @Produce json
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /notifications/mark_all_as_read [post]
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.notificationService.MarkAllAsRead(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read"})
}

// @Summary My payment notifications
// @Description Payment and reminder notifications sent to the current customer
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /customers/me/notifications [get]
func (h *NotificationHandler) Mine(c *gin.Context) {
	query := listQuery(c)
	logs, total, err := h.notificationService.ListForCustomer(c.Request.Context(), middleware.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": logs, "pagination": pagination(query, total)})
}

// @Summary Sent notifications
// @Description Every payment and reminder notification sent to customers
// @Tags Notifications
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param type query string false "payment_received, payment_confirmed, due_tomorrow or overdue"
// @Param customer_id query int false "Customer"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/notifications [get]
func (h *NotificationHandler) Sent(c *gin.Context) {
	query := listQuery(c)
	query.Filters["type"] = c.Query("type")
	query.Filters["customer_id"] = c.Query("customer_id")
	logs, total, err := h.notificationService.ListAll(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": logs, "pagination": pagination(query, total)})
}

type BroadcastRequest struct {
	CustomerIDs []uint `json:"customer_ids"`
	Title       string `json:"title" binding:"required"`
	Body        string `json:"body" binding:"required"`
}

// @Summary Broadcast to customers
// @Description Pushes a message to the listed active customers, or to all of them when customer_ids is empty
// @Tags Notifications
// @Accept json
// @Produce json
// @Param request body BroadcastRequest true "Message"
// @Success 200 {object} services.BroadcastResult
// @Security BearerAuth
// @Router /admin/notifications/broadcast [post]
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "title and body are required")
		return
	}
	result, err := h.notificationService.NotifyCustomers(c.Request.Context(), req.CustomerIDs, req.Title, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
