package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sjperalta/autolease-api/internal/services"
)

type VehicleHandler struct {
	vehicleService *services.VehicleService
}

func NewVehicleHandler(vehicleService *services.VehicleService) *VehicleHandler {
	return &VehicleHandler{vehicleService: vehicleService}
}

type VehicleRequest struct {
	VIN           *string          `json:"vin"`
	Make          *string          `json:"make"`
	Model         *string          `json:"model"`
	Year          *int             `json:"year"`
	Color         *string          `json:"color"`
	Mileage       *int             `json:"mileage"`
	PurchasePrice *decimal.Decimal `json:"purchase_price"`
	LeasePrice    *decimal.Decimal `json:"lease_price"`
	Status        *string          `json:"status"`
	Condition     *string          `json:"condition"`
}

func (r VehicleRequest) input() services.VehicleInput {
	return services.VehicleInput{
		VIN:           r.VIN,
		Make:          r.Make,
		Model:         r.Model,
		Year:          r.Year,
		Color:         r.Color,
		Mileage:       r.Mileage,
		PurchasePrice: r.PurchasePrice,
		LeasePrice:    r.LeasePrice,
		Status:        r.Status,
		Condition:     r.Condition,
	}
}

// @Summary List vehicles
// @Tags Vehicles
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param search query string false "VIN, make or model"
// @Param status query string false "available, leased or sold"
// @Param condition query string false "Vehicle condition"
// @Success 200 {object} map[string]interface{}
// @Security BearerAuth
// @Router /admin/vehicles [get]
func (h *VehicleHandler) Index(c *gin.Context) {
	query := listQuery(c)
	query.Filters["status"] = c.Query("status")
	query.Filters["condition"] = c.Query("condition")

	vehicles, total, err := h.vehicleService.List(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vehicles":   vehicles,
		"pagination": pagination(query, total),
	})
}

// @Summary Get vehicle
// @Tags Vehicles
// @Produce json
// @Param vehicle_id path int true "Vehicle ID"
// @Success 200 {object} models.Vehicle
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/vehicles/{vehicle_id} [get]
func (h *VehicleHandler) Show(c *gin.Context) {
	id, ok := parseIDParam(c, "vehicle_id")
	if !ok {
		return
	}
	vehicle, err := h.vehicleService.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// @Summary Find vehicle by VIN
// @Tags Vehicles
// @Produce json
// @Param vin path string true "VIN"
// @Success 200 {object} models.Vehicle
// @Failure 404 {object} map[string]string
// @Security BearerAuth
// @Router /admin/vehicles/vin/{vin} [get]
func (h *VehicleHandler) ShowByVIN(c *gin.Context) {
	vehicle, err := h.vehicleService.FindByVIN(c.Request.Context(), c.Param("vin"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// @Summary Create vehicle
// @Tags Vehicles
// @Accept json
// @Produce json
// @Param request body VehicleRequest true "Vehicle"
// @Success 201 {object} models.Vehicle
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/vehicles [post]
func (h *VehicleHandler) Create(c *gin.Context) {
	var req VehicleRequest
	if err := BindNestedOrFlat(c, "vehicle", &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	vehicle, err := h.vehicleService.Create(c.Request.Context(), req.input(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

// @Summary Update vehicle
// @Description Only the fields present in the body are changed
// @Tags Vehicles
// @Accept json
// @Produce json
// @Param vehicle_id path int true "Vehicle ID"
// @Param request body VehicleRequest true "Vehicle"
// @Success 200 {object} models.Vehicle
// @Security BearerAuth
// @Router /admin/vehicles/{vehicle_id} [put]
func (h *VehicleHandler) Update(c *gin.Context) {
	id, ok := parseIDParam(c, "vehicle_id")
	if !ok {
		return
	}
	var req VehicleRequest
	if err := BindNestedOrFlat(c, "vehicle", &req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	vehicle, err := h.vehicleService.Update(c.Request.Context(), id, req.input(), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// @Summary Delete vehicle
// @Description Refused while a loan references the vehicle
// @Tags Vehicles
// @Produce json
// @Param vehicle_id path int true "Vehicle ID"
// @Success 200 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Security BearerAuth
// @Router /admin/vehicles/{vehicle_id} [delete]
func (h *VehicleHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c, "vehicle_id")
	if !ok {
		return
	}
	if err := h.vehicleService.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "vehicle deleted"})
}
