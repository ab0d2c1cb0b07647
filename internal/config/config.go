package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MinNotificationInterval is the shortest reminder sweep interval accepted
const MinNotificationInterval = 60 * time.Second

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// JWT
	JWTSecret          string
	JWTExpirationHours int

	// Storage
	StoragePath     string
	S3BucketName    string
	AWSRegion       string
	S3ProfilePrefix string

	// Background Workers
	WorkerCount int

	// CORS
	AllowedOrigins []string

	// Email (Resend)
	ResendAPIKey             string
	FromEmail                string
	EnableEmailNotifications bool

	// Sentry
	SentryDSN string

	// Card capture (Stripe)
	StripeSecretKey string
	StripeCurrency  string

	// Push notifications (Firebase Cloud Messaging)
	FirebaseCredentialsJSON string
	FirebaseCredentialsPath string

	// Redis (notification markers, idempotency keys)
	RedisURL       string
	IdempotencyTTL time.Duration

	// Reminder sweep
	NotificationInterval       time.Duration
	OverdueDaysForNotification int

	// HTTP rate limiting
	RateLimitPerMinute int

	// First admin account, created at startup when no admin exists
	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                       getEnv("PORT", "8080"),
		Environment:                getEnv("ENVIRONMENT", "development"),
		DatabaseURL:                getEnv("DATABASE_URL", ""),
		JWTSecret:                  getEnv("JWT_SECRET", ""),
		JWTExpirationHours:         getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		StoragePath:                getEnv("STORAGE_PATH", "./storage"),
		S3BucketName:               getEnv("S3_BUCKET_NAME", ""),
		AWSRegion:                  getEnv("AWS_REGION", "us-east-1"),
		S3ProfilePrefix:            getEnv("S3_PROFILE_PREFIX", "profile_pics"),
		WorkerCount:                getEnvAsInt("WORKER_COUNT", 5),
		AllowedOrigins:             getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		ResendAPIKey:               getEnv("RESEND_API_KEY", ""),
		FromEmail:                  getEnv("FROM_EMAIL", "noreply@autolease.app"),
		EnableEmailNotifications:   getEnvAsBool("ENABLE_EMAIL_NOTIFICATIONS", true),
		SentryDSN:                  getEnv("SENTRY_DSN", ""),
		StripeSecretKey:            getEnv("STRIPE_SECRET_KEY", ""),
		StripeCurrency:             strings.ToLower(getEnv("STRIPE_CURRENCY", "usd")),
		FirebaseCredentialsJSON:    getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		FirebaseCredentialsPath:    getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		RedisURL:                   getEnv("REDIS_URL", ""),
		IdempotencyTTL:             getEnvAsDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		NotificationInterval:       getEnvAsDuration("NOTIFICATION_INTERVAL", time.Hour),
		OverdueDaysForNotification: getEnvAsInt("OVERDUE_DAYS_FOR_NOTIFICATION", 7),
		RateLimitPerMinute:         getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
		BootstrapAdminEmail:        getEnv("BOOTSTRAP_ADMIN_EMAIL", ""),
		BootstrapAdminPassword:     getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	if cfg.NotificationInterval < MinNotificationInterval {
		cfg.NotificationInterval = MinNotificationInterval
	}
	if cfg.OverdueDaysForNotification < 1 {
		cfg.OverdueDaysForNotification = 1
	}

	return cfg, nil
}

// PaymentsEnabled reports whether card capture is configured
func (c *Config) PaymentsEnabled() bool {
	return c.StripeSecretKey != ""
}

// PushEnabled reports whether FCM credentials are configured
func (c *Config) PushEnabled() bool {
	return c.FirebaseCredentialsJSON != "" || c.FirebaseCredentialsPath != ""
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool reads an environment variable as boolean
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration reads an environment variable as a duration ("90s", "2h").
// A bare number is taken as hours.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if hours, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(hours * float64(time.Hour))
	}
	return defaultValue
}

// getEnvAsSlice reads a comma-separated list, dropping blanks
func getEnvAsSlice(key string, defaultValue []string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
