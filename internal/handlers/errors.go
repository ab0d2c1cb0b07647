package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"

	"github.com/sjperalta/autolease-api/internal/middleware"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/services"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

// dateLayout is the wire format for due dates and report dates
const dateLayout = "2006-01-02"

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrUnauthorized), errors.Is(err, services.ErrInvalidPassword):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrDuplicate), errors.Is(err, services.ErrAlreadyApplied):
		return http.StatusConflict
	case errors.Is(err, services.ErrDueDateUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrCaptureFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrLoanClosed), errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrSweepInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrPaymentsNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status its sentinel maps to. Unexpected
// errors are logged and reported, and their text is not sent to the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		if hub := sentry.GetHubFromContext(c.Request.Context()); hub != nil {
			hub.CaptureException(err)
		} else {
			sentry.CaptureException(err)
		}
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// actorFrom identifies the caller for audit entries
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{
		UserID:    middleware.GetUserID(c),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, fmt.Sprintf("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), time.UTC)
}

// parseOptionalDate parses a query parameter, returning nil when it is absent
func parseOptionalDate(c *gin.Context, name string) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	t, err := parseDate(raw)
	if err != nil {
		badRequest(c, fmt.Sprintf("%s must be a date in YYYY-MM-DD format", name))
		return nil, false
	}
	return &t, true
}

// listQuery reads the paging, search and sort parameters shared by list endpoints
func listQuery(c *gin.Context) *repository.ListQuery {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PerPage < 1 || query.PerPage > 100 {
		query.PerPage = 20
	}
	query.Search = strings.TrimSpace(c.Query("search"))
	query.SortBy = c.Query("sort_by")
	query.SortDir = c.DefaultQuery("sort_dir", "asc")
	return query
}

func pagination(query *repository.ListQuery, total int64) gin.H {
	totalPages := 0
	if query.PerPage > 0 {
		totalPages = int((total + int64(query.PerPage) - 1) / int64(query.PerPage))
	}
	return gin.H{
		"page":        query.Page,
		"per_page":    query.PerPage,
		"total":       total,
		"total_pages": totalPages,
	}
}

// today is the current UTC date, replaced in tests
var today = func() time.Time { return time.Now().UTC() }

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func sendFile(c *gin.Context, data []byte, filename, contentType string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
