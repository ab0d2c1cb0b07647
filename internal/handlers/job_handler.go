package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/autolease-api/internal/services"
)

type JobHandler struct {
	jobService      *services.JobService
	reminderService *services.ReminderService
}

func NewJobHandler(jobSvc *services.JobService, reminderSvc *services.ReminderService) *JobHandler {
	return &JobHandler{
		jobService:      jobSvc,
		reminderService: reminderSvc,
	}
}

// Status returns the current worker status
// @Summary Get background job status
// @Description Worker statistics and the outcome of the last reminder sweep
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /admin/jobs/stats [get]
func (h *JobHandler) Status(c *gin.Context) {
	status := h.jobService.GetStatus()
	c.JSON(http.StatusOK, status)
}

// @Summary Run reminder sweep
// @Description Sends due-tomorrow and overdue reminders now. Reminders already sent are skipped.
// @Tags Jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {object} services.SweepResult
// @Failure 409 {object} map[string]string
// @Router /admin/jobs/reminders [post]
func (h *JobHandler) RunReminders(c *gin.Context) {
	result, err := h.reminderService.Sweep(c.Request.Context(), today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type AuditHandler struct {
	auditService *services.AuditService
}

func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// @Summary List Audit Logs
// @Description Get a paginated list of system audit logs
// @Tags Audit
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(50)
// @Param entity query string false "User, Vehicle, Loan or Payment"
// @Param entity_id query int false "Record ID, with entity"
// @Param user_id query int false "Acting user"
// @Param action query string false "CREATE, UPDATE, DELETE, LOGIN, PAYMENT, WAIVE or STATUS_CHANGE"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/audits [get]
func (h *AuditHandler) Index(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	filter := services.AuditFilter{
		Entity: c.Query("entity"),
		Action: c.Query("action"),
	}
	if v, err := strconv.ParseUint(c.Query("entity_id"), 10, 64); err == nil {
		filter.EntityID = uint(v)
	}
	if v, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil {
		filter.UserID = uint(v)
	}

	logs, total, err := h.auditService.List(c.Request.Context(), filter, perPage, (page-1)*perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"audits": logs, "pagination": gin.H{"total": total, "page": page, "per_page": perPage}})
}
