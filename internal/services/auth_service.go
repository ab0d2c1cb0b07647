package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/models"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

const (
	refreshTokenTTL   = 30 * 24 * time.Hour
	minPasswordLength = 8
)

// AuthService handles authentication operations
type AuthService struct {
	userRepo         repository.UserRepository
	refreshTokenRepo repository.RefreshTokenRepository
	auditSvc         *AuditService
	cfg              *config.Config
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo repository.UserRepository, rtRepo repository.RefreshTokenRepository, auditSvc *AuditService, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: rtRepo,
		auditSvc:         auditSvc,
		cfg:              cfg,
	}
}

// LoginResult represents the result of a login attempt
type LoginResult struct {
	Token        string              `json:"token"`
	RefreshToken string              `json:"refresh_token"`
	User         models.UserResponse `json:"user"`
}

// Login authenticates a user and returns tokens. A non-empty role restricts
// the login to accounts holding it.
func (s *AuthService) Login(ctx context.Context, email, password, role string, actor Actor) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if role != "" && user.Role != role {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: account is inactive", ErrForbidden)
	}
	if !VerifyPassword(password, user.EncryptedPassword) {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	result, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}
	actor.UserID = user.ID
	s.auditSvc.Record(ctx, actor, AuditLogin, models.EntityUser, user.ID, "login as "+user.Role)
	return result, nil
}

// RefreshToken validates a refresh token and rotates it
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*LoginResult, error) {
	rt, err := s.refreshTokenRepo.FindByToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	if rt.IsExpired() {
		_ = s.refreshTokenRepo.Delete(ctx, refreshToken)
		return nil, fmt.Errorf("%w: refresh token expired", ErrUnauthorized)
	}

	user, err := s.userRepo.FindByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}
	if !user.IsActive() {
		return nil, fmt.Errorf("%w: account is inactive", ErrForbidden)
	}

	if err := s.refreshTokenRepo.Delete(ctx, refreshToken); err != nil {
		logger.Warn("Failed to delete rotated refresh token", "user_id", user.ID, "error", err)
	}
	return s.issue(ctx, user)
}

// Logout invalidates a refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.refreshTokenRepo.Delete(ctx, refreshToken)
}

// CreateAdminInput is the payload for a new admin account
type CreateAdminInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// CreateAdmin creates an admin account. Only admins may call it.
func (s *AuthService) CreateAdmin(ctx context.Context, in CreateAdminInput, actor Actor) (*models.User, error) {
	user, err := s.newUser(in, models.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if actor.UserID != 0 {
		user.CreatedBy = &actor.UserID
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, duplicate(err)
	}
	s.auditSvc.Record(ctx, actor, AuditCreate, models.EntityUser, user.ID, "admin created: "+user.Email)
	return user, nil
}

// EnsureBootstrapAdmin creates the first admin when none exists. It reports
// whether an account was created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	count, err := s.userRepo.CountAdmins(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	user, err := s.CreateAdmin(ctx, CreateAdminInput{Email: email, Password: password, FirstName: "Admin"}, Actor{})
	if err != nil {
		return false, err
	}
	logger.Info("Bootstrap admin created", "user_id", user.ID, "email", user.Email)
	return true, nil
}

func (s *AuthService) newUser(in CreateAdminInput, role string) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationError("invalid email address")
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:             email,
		EncryptedPassword: hash,
		Role:              role,
		FirstName:         strings.TrimSpace(in.FirstName),
		LastName:          strings.TrimSpace(in.LastName),
		Phone:             strings.TrimSpace(in.Phone),
		Status:            models.StatusActive,
	}, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*LoginResult, error) {
	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	refreshToken, err := s.generateRefreshToken(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}
	return &LoginResult{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user.ToResponse(),
	}, nil
}

// generateJWT creates a new JWT token for a user
func (s *AuthService) generateJWT(user *models.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     now.Add(time.Duration(s.cfg.JWTExpirationHours) * time.Hour).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// generateRefreshToken creates and stores a random refresh token
func (s *AuthService) generateRefreshToken(ctx context.Context, userID uint) (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(bytes)

	expiresAt := time.Now().Add(refreshTokenTTL)
	rt := &models.RefreshToken{
		UserID:    userID,
		TokenHash: models.HashToken(token),
		ExpiresAt: &expiresAt,
	}
	if err := s.refreshTokenRepo.Create(ctx, rt); err != nil {
		return "", err
	}
	return token, nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword compares a password with a hash
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
