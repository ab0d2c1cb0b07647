package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/autolease-api/internal/middleware"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/services"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
	exportService  *services.ExportService
}

func NewPaymentHandler(paymentService *services.PaymentService, exportService *services.ExportService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, exportService: exportService}
}

// applyResponse renders an applied payment
func applyResponse(r *services.ApplyResult) gin.H {
	return gin.H{
		"payment":        r.Payment.ToResponse(),
		"loan":           r.Loan.ToResponse(),
		"charged":        r.Charged.StringFixed(2),
		"excess_ignored": r.ExcessIgnored.StringFixed(2),
		"loan_closed":    r.LoanClosed,
	}
}

func optionalDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type CheckoutRequest struct {
	LoanID    uint   `json:"loan_id" binding:"required"`
	CardToken string `json:"card_token" binding:"required"`
	// PaymentType is next, due or flexible
	PaymentType string           `json:"payment_type" binding:"required,oneof=next due flexible"`
	DueDate     *string          `json:"due_date"`
	Amount      *decimal.Decimal `json:"amount"`
}

// @Summary Pay with card
// @Description Captures the amount owed on the card, then applies it to the loan. A failed capture leaves the loan untouched.
// @Tags Payments
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Client idempotency key"
// @Param request body CheckoutRequest true "Checkout"
// @Success 201 {object} services.MakePaymentResult
// @Failure 402 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Security BearerAuth
// @Router /payments [post]
func (h *PaymentHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "loan_id, card_token and a payment_type of next, due or flexible are required")
		return
	}
	dueDate, err := optionalDate(req.DueDate)
	if err != nil {
		badRequest(c, "due_date must be a date in YYYY-MM-DD format")
		return
	}

	result, err := h.paymentService.MakePayment(c.Request.Context(), services.MakePaymentInput{
		CustomerID:     middleware.GetUserID(c),
		LoanID:         req.LoanID,
		CardToken:      req.CardToken,
		PaymentType:    req.PaymentType,
		DueDate:        dueDate,
		Amount:         req.Amount,
		IdempotencyKey: c.GetHeader(middleware.IdempotencyHeader),
		Actor:          actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

type ManualPaymentRequest struct {
	LoanID        uint            `json:"loan_id" binding:"required"`
	CustomerID    uint            `json:"customer_id" binding:"required"`
	DueDate       *string         `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" binding:"required"`
	Note          *string         `json:"note"`
}

// @Summary Record manual payment
// @Description Records a payment received outside the card processor. With due_date the amount settles that date, otherwise it is spread over the oldest unpaid dates.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body ManualPaymentRequest true "Payment"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /admin/payments/manual [post]
func (h *PaymentHandler) RecordManual(c *gin.Context) {
	var req ManualPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "loan_id, customer_id, amount and payment_method are required")
		return
	}
	dueDate, err := optionalDate(req.DueDate)
	if err != nil {
		badRequest(c, "due_date must be a date in YYYY-MM-DD format")
		return
	}

	result, err := h.paymentService.RecordManualPayment(c.Request.Context(), services.ManualPaymentInput{
		LoanID:        req.LoanID,
		CustomerID:    req.CustomerID,
		DueDate:       dueDate,
		Amount:        req.Amount,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		Note:          req.Note,
		Actor:         actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, applyResponse(result))
}

type WaiveRequest struct {
	LoanID     uint    `json:"loan_id" binding:"required"`
	CustomerID uint    `json:"customer_id" binding:"required"`
	DueDate    string  `json:"due_date" binding:"required"`
	Note       *string `json:"note"`
}

// @Summary Waive a due date
// @Description Marks one scheduled due date as waived without changing the balance
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body WaiveRequest true "Waiver"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /admin/payments/waive [post]
func (h *PaymentHandler) Waive(c *gin.Context) {
	var req WaiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "loan_id, customer_id and due_date are required")
		return
	}
	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		badRequest(c, "due_date must be a date in YYYY-MM-DD format")
		return
	}

	result, err := h.paymentService.Waive(c.Request.Context(), services.WaiveInput{
		LoanID:     req.LoanID,
		CustomerID: req.CustomerID,
		DueDate:    dueDate,
		Note:       req.Note,
		Actor:      actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, applyResponse(result))
}

type WaiveOverdueRequest struct {
	LoanID     uint    `json:"loan_id" binding:"required"`
	CustomerID uint    `json:"customer_id" binding:"required"`
	Note       *string `json:"note"`
}

// @Summary Waive the earliest overdue date
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body WaiveOverdueRequest true "Waiver"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /admin/payments/waive-overdue [post]
func (h *PaymentHandler) WaiveOverdue(c *gin.Context) {
	var req WaiveOverdueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "loan_id and customer_id are required")
		return
	}

	result, err := h.paymentService.WaiveEarliestOverdue(c.Request.Context(), req.CustomerID, req.LoanID, req.Note, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, applyResponse(result))
}

type UpdatePaymentStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// @Summary Update payment status
// @Description Moves a payment between completed and failed. Failing a payment does not restore the loan balance.
// @Tags Payments
// @Accept json
// @Produce json
// @Param payment_id path int true "Payment ID"
// @Param request body UpdatePaymentStatusRequest true "Status"
// @Success 200 {object} models.PaymentResponse
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/payments/{payment_id}/status [patch]
func (h *PaymentHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseIDParam(c, "payment_id")
	if !ok {
		return
	}
	var req UpdatePaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}

	payment, err := h.paymentService.UpdatePaymentStatus(c.Request.Context(), id, strings.ToLower(strings.TrimSpace(req.Status)), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payment.ToResponse())
}

// paymentQuery reads the transaction filters
func paymentQuery(c *gin.Context) (*repository.PaymentQuery, bool) {
	query := &repository.PaymentQuery{ListQuery: listQuery(c), Status: c.Query("status")}
	if v := c.Query("customer_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			badRequest(c, "invalid customer_id")
			return nil, false
		}
		query.CustomerID = uint(id)
	}
	if v := c.Query("loan_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			badRequest(c, "invalid loan_id")
			return nil, false
		}
		query.LoanID = uint(id)
	}
	var ok bool
	if query.From, ok = parseOptionalDate(c, "from"); !ok {
		return nil, false
	}
	if query.To, ok = parseOptionalDate(c, "to"); !ok {
		return nil, false
	}
	return query, true
}

// @Summary List payments
// @Description Admin list of payments with totals over the whole filter
// @Tags Payments
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param customer_id query int false "Customer"
// @Param loan_id query int false "Loan"
// @Param status query string false "completed or failed"
// @Param from query string false "Payment date from (YYYY-MM-DD)"
// @Param to query string false "Payment date to (YYYY-MM-DD)"
// @Success 200 {object} services.TransactionList
// @Security BearerAuth
// @Router /admin/payments [get]
func (h *PaymentHandler) Index(c *gin.Context) {
	query, ok := paymentQuery(c)
	if !ok {
		return
	}
	list, err := h.paymentService.ListTransactions(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary My payments
// @Description The caller's own payments
// @Tags Payments
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param loan_id query int false "Loan"
// @Param status query string false "completed or failed"
// @Success 200 {object} services.TransactionList
// @Security BearerAuth
// @Router /payments/me [get]
func (h *PaymentHandler) Mine(c *gin.Context) {
	query, ok := paymentQuery(c)
	if !ok {
		return
	}
	list, err := h.paymentService.ListMyTransactions(c.Request.Context(), middleware.GetUserID(c), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Payment summary
// @Description Paid, unpaid and overdue dues per loan between from (default loan start) and to (default 30 days ahead)
// @Tags Payments
// @Produce json
// @Param search query string false "Customer name, email or VIN"
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end (YYYY-MM-DD)"
// @Param customer_id query int false "Customer"
// @Param loan_id query int false "Loan"
// @Success 200 {object} services.PaymentSummary
// @Security BearerAuth
// @Router /admin/payments/summary [get]
func (h *PaymentHandler) Summary(c *gin.Context) {
	query, ok := paymentQuery(c)
	if !ok {
		return
	}
	summary, err := h.paymentService.AdminSummary(c.Request.Context(), services.SummaryFilter{
		Search:     query.Search,
		From:       query.From,
		To:         query.To,
		CustomerID: query.CustomerID,
		LoanID:     query.LoanID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// @Summary Overdue payments
// @Description Overdue dues on active loans, oldest first
// @Tags Payments
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Success 200 {object} services.OverdueReport
// @Security BearerAuth
// @Router /admin/payments/overdue [get]
func (h *PaymentHandler) Overdue(c *gin.Context) {
	query := listQuery(c)
	report, err := h.paymentService.OverdueReport(c.Request.Context(), query.Page, query.PerPage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// @Summary Export overdue payments
// @Tags Payments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Security BearerAuth
// @Router /admin/payments/overdue/export [get]
func (h *PaymentHandler) ExportOverdue(c *gin.Context) {
	data, filename, err := h.paymentService.ExportOverdue(c.Request.Context(), h.exportService)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, data, filename, xlsxContentType)
}
