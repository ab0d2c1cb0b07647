package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sjperalta/autolease-api/internal/models"
	"gorm.io/gorm"
)

// UserRepository stores admins and customers. Discarded accounts are never
// returned.
type UserRepository interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetDeviceToken(ctx context.Context, userID uint, token *string) error
	List(ctx context.Context, query *ListQuery) ([]models.User, int64, error)
	FindAdmins(ctx context.Context) ([]models.User, error)
	FindActiveCustomers(ctx context.Context, ids []uint) ([]models.User, error)
	CountAdmins(ctx context.Context) (int64, error)
	CountCustomers(ctx context.Context) (int64, error)
	CountCustomersCreatedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func kept(db *gorm.DB) *gorm.DB {
	return db.Where("discarded_at IS NULL")
}

func withRole(role string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("role = ?", role)
	}
}

func activeOnly(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", models.StatusActive)
}

func (r *userRepository) users(ctx context.Context, scopes ...func(*gorm.DB) *gorm.DB) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{}).Scopes(kept).Scopes(scopes...)
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.users(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByEmail matches case-insensitively
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.users(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if IsDuplicateKeyError(err, "") {
		return fmt.Errorf("%w: a user with this email already exists", ErrDuplicate)
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// SetDeviceToken stores the push token, or clears it when token is nil
func (r *userRepository) SetDeviceToken(ctx context.Context, userID uint, token *string) error {
	return r.users(ctx).Where("id = ?", userID).Update("device_token", token).Error
}

// List supports the "role" and "status" filters. Search matches name,
// email and phone.
func (r *userRepository) List(ctx context.Context, query *ListQuery) ([]models.User, int64, error) {
	db := r.users(ctx)

	if query.Search != "" {
		like := "%" + strings.ToLower(query.Search) + "%"
		db = db.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?",
			like, like, like, like)
	}
	if role := query.Filters["role"]; role != "" {
		db = db.Scopes(withRole(role))
	}
	if status := query.Filters["status"]; status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	db = applySort(db, query, "created_at DESC", "created_at", "first_name", "last_name", "email", "status")
	err := applyPage(db, query).Find(&users).Error
	return users, total, err
}

func (r *userRepository) FindAdmins(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.users(ctx, withRole(models.RoleAdmin), activeOnly).Find(&users).Error
	return users, err
}

// FindActiveCustomers returns active customers, restricted to ids when given
func (r *userRepository) FindActiveCustomers(ctx context.Context, ids []uint) ([]models.User, error) {
	db := r.users(ctx, withRole(models.RoleCustomer), activeOnly)
	if len(ids) > 0 {
		db = db.Where("id IN ?", ids)
	}
	var users []models.User
	err := db.Order("id").Find(&users).Error
	return users, err
}

func (r *userRepository) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.users(ctx, withRole(models.RoleAdmin)).Count(&n).Error
	return n, err
}

func (r *userRepository) CountCustomers(ctx context.Context) (int64, error) {
	var n int64
	err := r.users(ctx, withRole(models.RoleCustomer)).Count(&n).Error
	return n, err
}

// CountCustomersCreatedBetween counts customers created in [from, to)
func (r *userRepository) CountCustomersCreatedBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var n int64
	err := r.users(ctx, withRole(models.RoleCustomer)).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Count(&n).Error
	return n, err
}
