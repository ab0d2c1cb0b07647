package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/database"
	"github.com/sjperalta/autolease-api/internal/middleware"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/schedule"
	"github.com/sjperalta/autolease-api/internal/services"
)

const testJWTSecret = "handler-test-secret"

// testLoanCreated pins the sale date so the loan schedule does not follow the
// wall clock. Mar 1 puts the last monthly date past 91 days.
var testLoanCreated = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: amount must be positive", services.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: loan", services.ErrNotFound), http.StatusNotFound},
		{services.ErrForbidden, http.StatusForbidden},
		{services.ErrUnauthorized, http.StatusUnauthorized},
		{services.ErrDuplicate, http.StatusConflict},
		{services.ErrAlreadyApplied, http.StatusConflict},
		{services.ErrDueDateUnavailable, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: card declined", services.ErrCaptureFailed), http.StatusPaymentRequired},
		{services.ErrLoanClosed, http.StatusConflict},
		{services.ErrPaymentsNotConfigured, http.StatusServiceUnavailable},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestRespondError_HidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/x", nil)

	respondError(c, errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

type mockUserRepo struct {
	repository.UserRepository
	mockList func(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error)
}

func (m *mockUserRepo) List(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
	return m.mockList(ctx, query)
}

func TestCustomerHandler_Index_DefaultStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mockRepo := &mockUserRepo{}
	customerService := services.NewCustomerService(&repository.Repositories{User: mockRepo}, nil, nil, nil, nil, nil)
	handler := NewCustomerHandler(customerService)

	var capturedStatus, capturedRole string
	mockRepo.mockList = func(ctx context.Context, query *repository.ListQuery) ([]models.User, int64, error) {
		capturedStatus = query.Filters["status"]
		capturedRole = query.Filters["role"]
		return []models.User{}, 0, nil
	}

	// no status: active customers only
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/admin/customers", nil)
	handler.Index(c)
	assert.Equal(t, models.StatusActive, capturedStatus)
	assert.Equal(t, models.RoleCustomer, capturedRole)

	// "all" drops the filter
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/admin/customers?status=all", nil)
	handler.Index(c)
	assert.Equal(t, "", capturedStatus)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/admin/customers?status=inactive", nil)
	handler.Index(c)
	assert.Equal(t, "inactive", capturedStatus)
	assert.JSONEq(t, `{"customers":[],"pagination":{"page":1,"per_page":20,"total":0,"total_pages":0}}`, w.Body.String())
}

// testAPI wires real services over an in-memory database
type testAPI struct {
	router   *gin.Engine
	svcs     *services.Services
	admin    *models.User
	customer *models.User
	other    *models.User
	loan     *models.Loan
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))

	repos := repository.NewRepositories(db)
	cfg := &config.Config{JWTSecret: testJWTSecret, OverdueDaysForNotification: 7}
	svcs := services.NewServices(repos, nil, cfg, db, services.Transports{})

	admin, err := svcs.Auth.CreateAdmin(ctx, services.CreateAdminInput{
		Email: "admin@example.com", Password: "admin-pass-1", FirstName: "Ada", LastName: "Admin",
	}, services.Actor{})
	require.NoError(t, err)
	customer, err := svcs.Customer.Create(ctx, services.CreateCustomerInput{
		Email: "ana@example.com", Password: "customer-pass", FirstName: "Ana", LastName: "Lopez",
	}, services.Actor{})
	require.NoError(t, err)
	other, err := svcs.Customer.Create(ctx, services.CreateCustomerInput{
		Email: "luis@example.com", Password: "customer-pass", FirstName: "Luis", LastName: "Mejia",
	}, services.Actor{})
	require.NoError(t, err)

	vin, brand, model, year := "1HGCM82633A004352", "Honda", "Accord", 2022
	price := decimal.NewFromInt(400)
	vehicle, err := svcs.Vehicle.Create(ctx, services.VehicleInput{
		VIN: &vin, Make: &brand, Model: &model, Year: &year, PurchasePrice: &price,
	}, services.Actor{})
	require.NoError(t, err)
	loan, err := svcs.Sale.CreateSale(ctx, services.CreateSaleInput{
		CustomerID:       customer.ID,
		VehicleID:        vehicle.ID,
		SaleAmount:       decimal.NewFromInt(400),
		DownPayment:      decimal.NewFromInt(100),
		TermMonths:       3,
		PaymentFrequency: "monthly",
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(loan).Update("created_at", testLoanCreated).Error)
	loan.CreatedAt = testLoanCreated

	h := NewHandlers(svcs)
	r := gin.New()
	api := r.Group("/api/v1")
	api.GET("/health", h.Health.Index)

	authed := api.Group("", middleware.Auth(testJWTSecret))
	authed.POST("/payments", middleware.RequireCustomer(), h.Payment.Checkout)
	authed.GET("/payments/me", h.Payment.Mine)
	authed.GET("/customers/me/loans/:loan_id/schedule", h.Customer.Schedule)
	authed.GET("/loans/:loan_id/statement", h.Sale.Statement)

	admin2 := authed.Group("/admin", middleware.RequireAdmin())
	admin2.POST("/payments/manual", h.Payment.RecordManual)
	admin2.POST("/payments/waive", h.Payment.Waive)
	admin2.GET("/payments", h.Payment.Index)
	admin2.GET("/calendar", h.Dashboard.Calendar)
	admin2.GET("/sales/estimate", h.Sale.Estimate)

	return &testAPI{router: r, svcs: svcs, admin: admin, customer: customer, other: other, loan: loan}
}

func (a *testAPI) token(t *testing.T, u *models.User) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": u.ID,
		"email":   u.Email,
		"role":    u.Role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return s
}

func (a *testAPI) do(t *testing.T, as *models.User, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(t, as))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(t, nil, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "autolease-api")
}

func TestRecordManualPayment(t *testing.T) {
	api := newTestAPI(t)
	body := fmt.Sprintf(`{"loan_id":%d,"customer_id":%d,"amount":"100","payment_method":"Cash"}`, api.loan.ID, api.customer.ID)

	w := api.do(t, api.admin, http.MethodPost, "/api/v1/admin/payments/manual", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Charged    string `json:"charged"`
		LoanClosed bool   `json:"loan_closed"`
		Loan       struct {
			AmountFinanced string `json:"amount_financed"`
		} `json:"loan"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "100.00", resp.Charged)
	assert.False(t, resp.LoanClosed)

	// customers cannot record manual payments
	w = api.do(t, api.customer, http.MethodPost, "/api/v1/admin/payments/manual", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, api.admin, http.MethodPost, "/api/v1/admin/payments/manual",
		fmt.Sprintf(`{"loan_id":%d,"customer_id":%d,"amount":"100","payment_method":"waived"}`, api.loan.ID, api.customer.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, api.admin, http.MethodGet, fmt.Sprintf("/api/v1/admin/payments?loan_id=%d", api.loan.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	var list services.TransactionList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, "100.00", list.TotalAmount)
}

func TestWaive_UnscheduledDate(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, api.admin, http.MethodPost, "/api/v1/admin/payments/waive",
		fmt.Sprintf(`{"loan_id":%d,"customer_id":%d,"due_date":"2000-01-01"}`, api.loan.ID, api.customer.ID))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = api.do(t, api.admin, http.MethodPost, "/api/v1/admin/payments/waive",
		fmt.Sprintf(`{"loan_id":%d,"customer_id":%d,"due_date":"01/02/2026"}`, api.loan.ID, api.customer.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckout(t *testing.T) {
	api := newTestAPI(t)
	path := "/api/v1/payments"

	w := api.do(t, nil, http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(t, api.customer, http.MethodPost, path,
		fmt.Sprintf(`{"loan_id":%d,"card_token":"pm_card_visa","payment_type":"weekly"}`, api.loan.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, api.other, http.MethodPost, path,
		fmt.Sprintf(`{"loan_id":%d,"card_token":"pm_card_visa","payment_type":"flexible","amount":"50"}`, api.loan.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// no processor key configured
	w = api.do(t, api.customer, http.MethodPost, path,
		fmt.Sprintf(`{"loan_id":%d,"card_token":"pm_card_visa","payment_type":"flexible","amount":"50"}`, api.loan.ID))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = api.do(t, api.admin, http.MethodPost, path,
		fmt.Sprintf(`{"loan_id":%d,"card_token":"pm_card_visa","payment_type":"flexible","amount":"50"}`, api.loan.ID))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestScheduleAndStatement_OwnLoanOnly(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, api.customer, http.MethodGet, fmt.Sprintf("/api/v1/customers/me/loans/%d/schedule", api.loan.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	var sched services.LoanSchedule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sched))
	require.Len(t, sched.Entries, schedule.InstallmentCount(3, schedule.Monthly))
	assert.Equal(t, "2026-04-01", sched.Entries[0].DueDate)
	assert.Equal(t, "2026-06-01", sched.Entries[2].DueDate)
	for _, e := range sched.Entries {
		assert.Equal(t, "100.00", e.Amount)
	}
	assert.Equal(t, "300.00", sched.RemainingBalance)

	w = api.do(t, api.other, http.MethodGet, fmt.Sprintf("/api/v1/customers/me/loans/%d/schedule", api.loan.ID), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, api.customer, http.MethodGet, "/api/v1/customers/me/loans/abc/schedule", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, api.customer, http.MethodGet, fmt.Sprintf("/api/v1/loans/%d/statement", api.loan.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "%PDF"))

	w = api.do(t, api.other, http.MethodGet, fmt.Sprintf("/api/v1/loans/%d/statement", api.loan.ID), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(t, api.admin, http.MethodGet, fmt.Sprintf("/api/v1/loans/%d/statement", api.loan.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCalendarAndEstimate(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, api.admin, http.MethodGet, "/api/v1/admin/calendar?date=not-a-date", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, api.admin, http.MethodGet, "/api/v1/admin/calendar", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, api.admin, http.MethodGet, "/api/v1/admin/sales/estimate?sale_amount=10000&down_payment=1000&term_months=6&payment_frequency=bi_weekly", "")
	require.Equal(t, http.StatusOK, w.Code)
	var est services.InstallmentEstimate
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &est))
	assert.Equal(t, "750.00", est.InstallmentAmount)

	w = api.do(t, api.admin, http.MethodGet, "/api/v1/admin/sales/estimate?sale_amount=abc&term_months=6", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
