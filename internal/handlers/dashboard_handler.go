package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/autolease-api/internal/services"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
	calendarService  *services.CalendarService
}

func NewDashboardHandler(dashboardService *services.DashboardService, calendarService *services.CalendarService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService, calendarService: calendarService}
}

// @Summary Admin dashboard
// @Description Portfolio stats, recent payments, overdue accounts and upcoming dues. Cached for five minutes.
// @Tags Dashboard
// @Produce json
// @Success 200 {object} services.DashboardResponse
// @Security BearerAuth
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Index(c *gin.Context) {
	summary, err := h.dashboardService.Summary(c.Request.Context(), today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Recent payments
// @Tags Dashboard
// @Produce json
// @Param limit query int false "Number of payments" default(10)
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/dashboard/recent-payments [get]
func (h *DashboardHandler) RecentPayments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	payments, err := h.dashboardService.RecentPayments(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// @Summary Payment calendar
// @Description What was paid, what is pending and what is overdue on one date
// @Tags Dashboard
// @Produce json
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} services.CalendarDay
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /admin/calendar [get]
func (h *DashboardHandler) Calendar(c *gin.Context) {
	now := today()
	date, ok := parseOptionalDate(c, "date")
	if !ok {
		return
	}
	if date == nil {
		date = &now
	}
	day, err := h.calendarService.ForDate(c.Request.Context(), *date, now)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}
