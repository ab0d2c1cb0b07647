package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sjperalta/autolease-api/internal/middleware"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/services"
)

// maxProfilePictureBytes bounds profile photo uploads
const maxProfilePictureBytes = 5 << 20

type CustomerHandler struct {
	customerService *services.CustomerService
}

func NewCustomerHandler(customerService *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{customerService: customerService}
}

// @Summary List customers
// @Description Get a paginated list of customers
// @Tags Customers
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search query string false "Search by name, email or phone"
// @Param status query string false "active (default), inactive or all"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/customers [get]
func (h *CustomerHandler) Index(c *gin.Context) {
	query := listQuery(c)

	status := c.Query("status")
	if status == "" {
		status = models.StatusActive
	} else if status == "all" {
		status = ""
	}
	query.Filters["status"] = status

	users, total, err := h.customerService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	responses := make([]models.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, users[i].ToResponse())
	}

	c.JSON(http.StatusOK, gin.H{
		"customers":  responses,
		"pagination": pagination(query, total),
	})
}

// @Summary Get customer
// @Description Get a customer with their loans
// @Tags Customers
// @Produce json
// @Param customer_id path int true "Customer ID"
// @Success 200 {object} services.CustomerDetail
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/customers/{customer_id} [get]
func (h *CustomerHandler) Show(c *gin.Context) {
	id, ok := parseIDParam(c, "customer_id")
	if !ok {
		return
	}
	detail, err := h.customerService.Detail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type CreateCustomerRequest struct {
	Email               string  `json:"email"`
	Password            string  `json:"password"`
	FirstName           string  `json:"first_name"`
	LastName            string  `json:"last_name"`
	Phone               string  `json:"phone"`
	Address             *string `json:"address"`
	DriverLicenseNumber *string `json:"driver_license_number"`
	EmployerName        *string `json:"employer_name"`
	Note                *string `json:"note"`
}

// @Summary Create customer
// @Description Registers a customer account and sends the welcome email
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body CreateCustomerRequest true "Customer"
// @Success 201 {object} models.UserResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	var req CreateCustomerRequest
	if err := BindNestedOrFlat(c, "customer", &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.customerService.Create(c.Request.Context(), services.CreateCustomerInput{
		Email:               req.Email,
		Password:            req.Password,
		FirstName:           req.FirstName,
		LastName:            req.LastName,
		Phone:               req.Phone,
		Address:             req.Address,
		DriverLicenseNumber: req.DriverLicenseNumber,
		EmployerName:        req.EmployerName,
		Note:                req.Note,
	}, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user.ToResponse())
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// @Summary Activate or deactivate customer
// @Description Deactivating a customer revokes their refresh tokens
// @Tags Customers
// @Accept json
// @Produce json
// @Param customer_id path int true "Customer ID"
// @Param request body SetActiveRequest true "Active flag"
// @Success 200 {object} models.UserResponse
// @Security BearerAuth
// @Router /admin/customers/{customer_id}/status [patch]
func (h *CustomerHandler) SetActive(c *gin.Context) {
	id, ok := parseIDParam(c, "customer_id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "active is required")
		return
	}
	user, err := h.customerService.SetActive(c.Request.Context(), id, *req.Active, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

// @Summary Customer home page
// @Description Next due date, remaining balance and overdue totals for each of the customer's loans
// @Tags Customers
// @Produce json
// @Success 200 {object} services.HomePage
// @Security BearerAuth
// @Router /customers/me/home [get]
func (h *CustomerHandler) Home(c *gin.Context) {
	page, err := h.customerService.HomePage(c.Request.Context(), middleware.GetUserID(c), today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// @Summary Loan schedule
// @Description Every scheduled due date of one of the customer's loans with its status
// @Tags Customers
// @Produce json
// @Param loan_id path int true "Loan ID"
// @Success 200 {object} services.LoanSchedule
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /customers/me/loans/{loan_id}/schedule [get]
func (h *CustomerHandler) Schedule(c *gin.Context) {
	loanID, ok := parseIDParam(c, "loan_id")
	if !ok {
		return
	}
	schedule, err := h.customerService.Schedule(c.Request.Context(), middleware.GetUserID(c), loanID, today())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

type UpdateProfileRequest struct {
	FirstName    *string `json:"first_name"`
	LastName     *string `json:"last_name"`
	Phone        *string `json:"phone"`
	Address      *string `json:"address"`
	EmployerName *string `json:"employer_name"`
}

// @Summary Update own profile
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Profile"
// @Success 200 {object} models.UserResponse
// @Security BearerAuth
// @Router /customers/me [patch]
func (h *CustomerHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := BindNestedOrFlat(c, "customer", &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, err := h.customerService.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), services.UpdateProfileInput{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		Address:      req.Address,
		EmployerName: req.EmployerName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}

type DeviceTokenRequest struct {
	Token string `json:"token"`
}

// @Summary Register device token
// @Description Sets the push token of the caller's device. An empty token disables push.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body DeviceTokenRequest true "Device token"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /customers/me/device_token [put]
func (h *CustomerHandler) SetDeviceToken(c *gin.Context) {
	var req DeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := h.customerService.SetDeviceToken(c.Request.Context(), middleware.GetUserID(c), req.Token); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device token updated"})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// @Summary Change password
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Security BearerAuth
// @Router /me/password [patch]
func (h *CustomerHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "current_password and new_password are required")
		return
	}
	if err := h.customerService.ChangePassword(c.Request.Context(), middleware.GetUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// @Summary Upload profile picture
// @Tags Customers
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Image"
// @Success 200 {object} models.UserResponse
// @Security BearerAuth
// @Router /customers/me/profile_picture [post]
func (h *CustomerHandler) UploadProfilePicture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxProfilePictureBytes)
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	defer file.Close()

	user, err := h.customerService.UploadProfilePicture(c.Request.Context(), middleware.GetUserID(c), header.Filename, file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToResponse())
}
