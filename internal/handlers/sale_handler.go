package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/autolease-api/internal/middleware"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/services"
)

type SaleHandler struct {
	saleService      *services.SaleService
	statementService *services.StatementService
}

func NewSaleHandler(saleService *services.SaleService, statementService *services.StatementService) *SaleHandler {
	return &SaleHandler{saleService: saleService, statementService: statementService}
}

type CreateSaleRequest struct {
	CustomerID       uint            `json:"customer_id"`
	VehicleID        uint            `json:"vehicle_id"`
	SaleAmount       decimal.Decimal `json:"sale_amount"`
	DownPayment      decimal.Decimal `json:"down_payment"`
	TermMonths       float64         `json:"term_months"`
	PaymentFrequency string          `json:"payment_frequency"`
}

// @Summary Create sale
// @Description Sells a vehicle to a customer on a zero-interest lease and marks the vehicle leased
// @Tags Sales
// @Accept json
// @Produce json
// @Param request body CreateSaleRequest true "Sale"
// @Success 201 {object} models.LoanResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/sales [post]
func (h *SaleHandler) Create(c *gin.Context) {
	var req CreateSaleRequest
	if err := BindNestedOrFlat(c, "sale", &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	loan, err := h.saleService.CreateSale(c.Request.Context(), services.CreateSaleInput{
		CustomerID:       req.CustomerID,
		VehicleID:        req.VehicleID,
		SaleAmount:       req.SaleAmount,
		DownPayment:      req.DownPayment,
		TermMonths:       req.TermMonths,
		PaymentFrequency: req.PaymentFrequency,
		Actor:            actorFrom(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, loan.ToResponse())
}

// @Summary Estimate installment
// @Tags Sales
// @Produce json
// @Param sale_amount query number true "Sale amount"
// @Param down_payment query number false "Down payment"
// @Param term_months query number true "Term in months"
// @Param payment_frequency query string false "monthly, bi_weekly or weekly"
// @Success 200 {object} services.InstallmentEstimate
// @Failure 400 {object} map[string]string
// @Security BearerAuth
// @Router /admin/sales/estimate [get]
func (h *SaleHandler) Estimate(c *gin.Context) {
	sale, err := decimal.NewFromString(c.Query("sale_amount"))
	if err != nil {
		badRequest(c, "sale_amount must be a number")
		return
	}
	down, err := decimal.NewFromString(c.DefaultQuery("down_payment", "0"))
	if err != nil {
		badRequest(c, "down_payment must be a number")
		return
	}
	term, err := strconv.ParseFloat(c.Query("term_months"), 64)
	if err != nil {
		badRequest(c, "term_months must be a number")
		return
	}

	estimate, err := h.saleService.EstimateInstallment(sale, down, term, c.Query("payment_frequency"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, estimate)
}

// loanQuery reads the sale filters
func loanQuery(c *gin.Context) (*repository.LoanQuery, bool) {
	query := &repository.LoanQuery{ListQuery: listQuery(c), Status: c.Query("status")}
	if v := c.Query("customer_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			badRequest(c, "invalid customer_id")
			return nil, false
		}
		query.CustomerID = uint(id)
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

// @Summary List sales
// @Tags Sales
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search query string false "Customer name or VIN"
// @Param status query string false "active or closed"
// @Param customer_id query int false "Customer"
// @Param from query string false "Created from (YYYY-MM-DD)"
// @Param to query string false "Created before (YYYY-MM-DD)"
// @Success 200 {object} services.SalesList
// @Security BearerAuth
// @Router /admin/sales [get]
func (h *SaleHandler) Index(c *gin.Context) {
	query, ok := loanQuery(c)
	if !ok {
		return
	}
	list, err := h.saleService.ListSales(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get sale
// @Tags Sales
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} models.LoanResponse
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/sales/{loan_id} [get]
func (h *SaleHandler) Show(c *gin.Context) {
	id, ok := parseIDParam(c, "loan_id")
	if !ok {
		return
	}
	loan, err := h.saleService.FindLoan(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loan.ToResponse())
}

// @Summary Export sales
// @Description Every sale matching the filters as an xlsx workbook
// @Tags Sales
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Success 200 {file} file
// @Security BearerAuth
// @Router /admin/sales/export [get]
func (h *SaleHandler) Export(c *gin.Context) {
	query, ok := loanQuery(c)
	if !ok {
		return
	}
	data, filename, err := h.saleService.ExportSales(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, data, filename, xlsxContentType)
}

// @Summary Loan statement
// @Description PDF with the loan terms, its payments and its schedule. Customers may only download their own.
// @Tags Sales
// @Produce application/pdf
// @Param loan_id path int true "Loan ID"
// @Success 200 {file} file
// @Failure 403 {object} map[string]string
// @Security BearerAuth
// @Router /loans/{loan_id}/statement [get]
func (h *SaleHandler) Statement(c *gin.Context) {
	id, ok := parseIDParam(c, "loan_id")
	if !ok {
		return
	}
	var owner uint
	if !middleware.IsAdmin(c) {
		owner = middleware.GetUserID(c)
	}
	data, filename, err := h.statementService.LoanStatement(c.Request.Context(), id, owner)
	if err != nil {
		respondError(c, err)
		return
	}
	sendFile(c, data, filename, "application/pdf")
}
