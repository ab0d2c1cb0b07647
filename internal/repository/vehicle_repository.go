package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/sjperalta/autolease-api/internal/models"
	"gorm.io/gorm"
)

// VehicleRepository defines the interface for vehicle data access
type VehicleRepository interface {
	FindByID(ctx context.Context, id uint) (*models.Vehicle, error)
	FindByVIN(ctx context.Context, vin string) (*models.Vehicle, error)
	Create(ctx context.Context, vehicle *models.Vehicle) error
	Update(ctx context.Context, vehicle *models.Vehicle) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, query *ListQuery) ([]models.Vehicle, int64, error)
	SetStatus(ctx context.Context, id uint, status string) error
}

type vehicleRepository struct {
	db *gorm.DB
}

// NewVehicleRepository creates a new vehicle repository
func NewVehicleRepository(db *gorm.DB) VehicleRepository {
	return &vehicleRepository{db: db}
}

func (r *vehicleRepository) FindByID(ctx context.Context, id uint) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := r.db.WithContext(ctx).First(&vehicle, id).Error; err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *vehicleRepository) FindByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	err := r.db.WithContext(ctx).
		Where("UPPER(vin) = ?", strings.ToUpper(vin)).
		First(&vehicle).Error
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

func (r *vehicleRepository) Create(ctx context.Context, vehicle *models.Vehicle) error {
	if err := r.db.WithContext(ctx).Create(vehicle).Error; err != nil {
		if IsDuplicateKeyError(err, "") {
			return fmt.Errorf("%w: vehicle with VIN %s already exists", ErrDuplicate, vehicle.VIN)
		}
		return err
	}
	return nil
}

func (r *vehicleRepository) Update(ctx context.Context, vehicle *models.Vehicle) error {
	if err := r.db.WithContext(ctx).Save(vehicle).Error; err != nil {
		if IsDuplicateKeyError(err, "") {
			return fmt.Errorf("%w: vehicle with VIN %s already exists", ErrDuplicate, vehicle.VIN)
		}
		return err
	}
	return nil
}

func (r *vehicleRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Vehicle{}, id).Error
}

func (r *vehicleRepository) SetStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Vehicle{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *vehicleRepository) List(ctx context.Context, query *ListQuery) ([]models.Vehicle, int64, error) {
	var vehicles []models.Vehicle
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Vehicle{})

	if query.Search != "" {
		search := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(vin) LIKE ? OR LOWER(make) LIKE ? OR LOWER(model) LIKE ?", search, search, search)
	}
	if query.Filters["status"] != "" {
		db = db.Where("status = ?", query.Filters["status"])
	}
	if query.Filters["condition"] != "" {
		db = db.Where("condition = ?", query.Filters["condition"])
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = applySort(db, query, "created_at DESC", "created_at", "year", "make", "lease_price", "mileage")
	db = applyPage(db, query)

	err := db.Find(&vehicles).Error
	return vehicles, total, err
}
