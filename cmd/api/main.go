package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/autolease-api/docs" // Swagger docs
	"github.com/sjperalta/autolease-api/internal/cache"
	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/database"
	"github.com/sjperalta/autolease-api/internal/handlers"
	"github.com/sjperalta/autolease-api/internal/jobs"
	"github.com/sjperalta/autolease-api/internal/middleware"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/services"
	"github.com/sjperalta/autolease-api/internal/storage"
	"github.com/sjperalta/autolease-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title AutoLease API
// @version 1.0
// @description REST API for vehicle sales, payment schedules and collections

// @host localhost:8080
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.Environment)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	if cfg.ResendAPIKey == "" {
		logger.Warn("Resend email disabled: RESEND_API_KEY not set")
	}
	if !cfg.PaymentsEnabled() {
		logger.Warn("Card payments disabled: STRIPE_SECRET_KEY not set")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = cache.OpenRedis(cfg.RedisURL)
		if err != nil {
			// Notification dedup falls back to the database log alone
			logger.Warn("Redis unavailable, continuing without it", "error", err)
			rdb = nil
		} else {
			logger.Info("Connected to Redis")
		}
	}

	ctx := context.Background()

	var store storage.FileStore
	var local *storage.LocalStorage
	if cfg.S3BucketName != "" {
		s3Store, err := storage.NewS3Storage(ctx, cfg.S3BucketName, cfg.AWSRegion, cfg.S3ProfilePrefix)
		if err != nil {
			logger.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		store = s3Store
		logger.Info("Initialized S3 storage", "bucket", cfg.S3BucketName)
	} else {
		local, err = storage.NewLocalStorage(cfg.StoragePath)
		if err != nil {
			logger.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		store = local
		logger.Info("Initialized local storage", "path", local.BasePath())
	}

	repos := repository.NewRepositories(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, worker, cfg, db, services.Transports{
		Push:     services.NewPushTransport(ctx, cfg),
		Capturer: services.NewPaymentCapturer(cfg),
		Redis:    rdb,
		Store:    store,
	})

	if created, err := svcs.Auth.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		logger.Error("Failed to create bootstrap admin", "error", err)
	} else if created {
		logger.Info("Created bootstrap admin", "email", cfg.BootstrapAdminEmail)
	}

	scheduleJobs(worker, svcs, cfg)

	h := handlers.NewHandlers(svcs)

	rl := middleware.NewRateLimiter(cfg.RateLimitPerMinute, 0)
	router := setupRouter(h, cfg, rl, rdb, local)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	rl.Stop()
	worker.Shutdown()
	logger.Info("Background worker stopped")

	if rdb != nil {
		_ = rdb.Close()
	}

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config, rl *middleware.RateLimiter, rdb *redis.Client, local *storage.LocalStorage) *gin.Engine {
	router := gin.New()

	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	if local != nil {
		router.Static(storage.PublicPrefix, local.BasePath())
	}

	idempotent := middleware.Idempotency(rdb, cfg.IdempotencyTTL)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(rl))
	{
		v1.GET("/health", h.Health.Index)

		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			protected.PATCH("/me/password", h.Customer.ChangePassword)
			protected.GET("/loans/:loan_id/statement", h.Sale.Statement)

			// Static route first so "mark_all_as_read" is not matched as :notification_id
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
				notifications.PUT("/:notification_id/read", h.Notification.MarkAsRead)
			}

			customer := protected.Group("")
			customer.Use(middleware.RequireCustomer())
			{
				customer.GET("/customers/me/home", h.Customer.Home)
				customer.GET("/customers/me/loans/:loan_id/schedule", h.Customer.Schedule)
				customer.GET("/customers/me/notifications", h.Notification.Mine)
				customer.PATCH("/customers/me", h.Customer.UpdateProfile)
				customer.PUT("/customers/me/device_token", h.Customer.SetDeviceToken)
				customer.POST("/customers/me/profile_picture", h.Customer.UploadProfilePicture)

				customer.POST("/payments", idempotent, h.Payment.Checkout)
				customer.GET("/payments/me", h.Payment.Mine)
			}

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.POST("/admins", h.Auth.CreateAdmin)

				admin.GET("/customers", h.Customer.Index)
				admin.POST("/customers", h.Customer.Create)
				admin.GET("/customers/:customer_id", h.Customer.Show)
				admin.PATCH("/customers/:customer_id/status", h.Customer.SetActive)

				admin.GET("/vehicles", h.Vehicle.Index)
				admin.POST("/vehicles", h.Vehicle.Create)
				admin.GET("/vehicles/vin/:vin", h.Vehicle.ShowByVIN)
				admin.GET("/vehicles/:vehicle_id", h.Vehicle.Show)
				admin.PUT("/vehicles/:vehicle_id", h.Vehicle.Update)
				admin.DELETE("/vehicles/:vehicle_id", h.Vehicle.Delete)

				admin.GET("/sales", h.Sale.Index)
				admin.POST("/sales", idempotent, h.Sale.Create)
				admin.GET("/sales/estimate", h.Sale.Estimate)
				admin.GET("/sales/export", h.Sale.Export)
				admin.GET("/sales/:loan_id", h.Sale.Show)

				admin.GET("/payments", h.Payment.Index)
				admin.GET("/payments/summary", h.Payment.Summary)
				admin.GET("/payments/overdue", h.Payment.Overdue)
				admin.GET("/payments/overdue/export", h.Payment.ExportOverdue)
				admin.POST("/payments/manual", idempotent, h.Payment.RecordManual)
				admin.POST("/payments/waive", idempotent, h.Payment.Waive)
				admin.POST("/payments/waive-overdue", idempotent, h.Payment.WaiveOverdue)
				admin.PATCH("/payments/:payment_id/status", h.Payment.UpdateStatus)

				admin.GET("/dashboard", h.Dashboard.Index)
				admin.GET("/dashboard/recent-payments", h.Dashboard.RecentPayments)
				admin.GET("/calendar", h.Dashboard.Calendar)

				admin.GET("/notifications", h.Notification.Sent)
				admin.POST("/notifications/broadcast", h.Notification.Broadcast)

				admin.GET("/jobs/stats", h.Job.Status)
				admin.POST("/jobs/reminders", h.Job.RunReminders)

				admin.GET("/audits", h.Audit.Index)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	worker.ScheduleEveryImmediate("reminder_sweep", cfg.NotificationInterval, func(ctx context.Context) error {
		result, err := svcs.Reminder.Sweep(ctx, time.Now())
		if err != nil {
			return err
		}
		logger.Info("[Job] Reminder sweep finished",
			"due_tomorrow", result.DueTomorrowSent,
			"overdue", result.OverdueSent,
			"skipped", result.Skipped,
			"failed", result.Failed,
		)
		return nil
	})

	logger.Info("Scheduled recurring jobs", "reminder_interval", cfg.NotificationInterval.String())
}
