package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/repository"
)

// VehicleInput carries vehicle fields. Nil fields are left unchanged on
// update and defaulted on create.
type VehicleInput struct {
	VIN           *string
	Make          *string
	Model         *string
	Year          *int
	Color         *string
	Mileage       *int
	PurchasePrice *decimal.Decimal
	LeasePrice    *decimal.Decimal
	Status        *string
	Condition     *string
}

type VehicleService struct {
	vehicleRepo repository.VehicleRepository
	loanRepo    repository.LoanRepository
	auditSvc    *AuditService
}

func NewVehicleService(vehicleRepo repository.VehicleRepository, loanRepo repository.LoanRepository, auditSvc *AuditService) *VehicleService {
	return &VehicleService{vehicleRepo: vehicleRepo, loanRepo: loanRepo, auditSvc: auditSvc}
}

func (s *VehicleService) Create(ctx context.Context, in VehicleInput, actor Actor) (*models.Vehicle, error) {
	if in.VIN == nil || in.Make == nil || in.Model == nil || in.Year == nil || in.PurchasePrice == nil {
		return nil, validationError("vin, make, model, year and purchase_price are required")
	}
	v := &models.Vehicle{
		Status:    models.VehicleStatusAvailable,
		Condition: models.VehicleConditionGood,
	}
	if err := applyVehicleInput(v, in); err != nil {
		return nil, err
	}
	if in.LeasePrice == nil {
		v.LeasePrice = v.PurchasePrice
	}
	if err := s.vehicleRepo.Create(ctx, v); err != nil {
		return nil, duplicate(err)
	}
	s.auditSvc.Record(ctx, actor, AuditCreate, models.EntityVehicle, v.ID, "vehicle created: "+v.VIN)
	return v, nil
}

func (s *VehicleService) FindByID(ctx context.Context, id uint) (*models.Vehicle, error) {
	v, err := s.vehicleRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "vehicle")
	}
	return v, nil
}

func (s *VehicleService) FindByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	v, err := s.vehicleRepo.FindByVIN(ctx, strings.TrimSpace(vin))
	if err != nil {
		return nil, notFound(err, "vehicle")
	}
	return v, nil
}

func (s *VehicleService) List(ctx context.Context, query *repository.ListQuery) ([]models.Vehicle, int64, error) {
	if st := query.Filters["status"]; st != "" && !models.ValidVehicleStatus(st) {
		return nil, 0, validationError("invalid status %q", st)
	}
	if c := query.Filters["condition"]; c != "" && !models.ValidVehicleCondition(c) {
		return nil, 0, validationError("invalid condition %q", c)
	}
	return s.vehicleRepo.List(ctx, query)
}

func (s *VehicleService) Update(ctx context.Context, id uint, in VehicleInput, actor Actor) (*models.Vehicle, error) {
	v, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyVehicleInput(v, in); err != nil {
		return nil, err
	}
	if err := s.vehicleRepo.Update(ctx, v); err != nil {
		return nil, duplicate(err)
	}
	s.auditSvc.Record(ctx, actor, AuditUpdate, models.EntityVehicle, v.ID, "vehicle updated: "+v.VIN)
	return v, nil
}

// Delete removes a vehicle that no loan references
func (s *VehicleService) Delete(ctx context.Context, id uint, actor Actor) error {
	v, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.loanRepo.CountByVehicle(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: cannot delete a vehicle that has loans", ErrInvalidState)
	}
	if err := s.vehicleRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.auditSvc.Record(ctx, actor, AuditDelete, models.EntityVehicle, id, "vehicle deleted: "+v.VIN)
	return nil
}

func applyVehicleInput(v *models.Vehicle, in VehicleInput) error {
	if in.VIN != nil {
		vin := strings.ToUpper(strings.TrimSpace(*in.VIN))
		if vin == "" || len(vin) > 17 {
			return validationError("vin must be 1 to 17 characters")
		}
		v.VIN = vin
	}
	if in.Make != nil {
		if strings.TrimSpace(*in.Make) == "" {
			return validationError("make is required")
		}
		v.Make = strings.TrimSpace(*in.Make)
	}
	if in.Model != nil {
		if strings.TrimSpace(*in.Model) == "" {
			return validationError("model is required")
		}
		v.Model = strings.TrimSpace(*in.Model)
	}
	if in.Year != nil {
		if *in.Year < 1900 || *in.Year > 2100 {
			return validationError("year is out of range")
		}
		v.Year = *in.Year
	}
	if in.Color != nil {
		v.Color = in.Color
	}
	if in.Mileage != nil {
		if *in.Mileage < 0 {
			return validationError("mileage cannot be negative")
		}
		v.Mileage = *in.Mileage
	}
	if in.PurchasePrice != nil {
		if in.PurchasePrice.IsNegative() {
			return validationError("purchase_price cannot be negative")
		}
		v.PurchasePrice = in.PurchasePrice.Round(2)
	}
	if in.LeasePrice != nil {
		if in.LeasePrice.IsNegative() {
			return validationError("lease_price cannot be negative")
		}
		v.LeasePrice = in.LeasePrice.Round(2)
	}
	if in.Status != nil {
		if !models.ValidVehicleStatus(*in.Status) {
			return validationError("invalid status %q", *in.Status)
		}
		v.Status = *in.Status
	}
	if in.Condition != nil {
		if !models.ValidVehicleCondition(*in.Condition) {
			return validationError("invalid condition %q", *in.Condition)
		}
		v.Condition = *in.Condition
	}
	return nil
}
