// Command sweep runs one reminder sweep and exits. It is meant for cron
// deployments that do not keep the API's scheduler running.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/sjperalta/autolease-api/internal/cache"
	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/internal/database"
	"github.com/sjperalta/autolease-api/internal/repository"
	"github.com/sjperalta/autolease-api/internal/services"
	"github.com/sjperalta/autolease-api/pkg/logger"
)

func main() {
	date := flag.String("date", "", "Sweep as of this date (YYYY-MM-DD), defaults to today")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Setup(cfg.Environment)

	now := time.Now()
	if *date != "" {
		now, err = time.Parse("2006-01-02", *date)
		if err != nil {
			log.Fatalf("Invalid -date %q: %v", *date, err)
		}
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		if rdb, err = cache.OpenRedis(cfg.RedisURL); err != nil {
			logger.Warn("Redis unavailable, continuing without it", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// A nil worker makes every notification side effect run inline
	svcs := services.NewServices(repository.NewRepositories(db), nil, cfg, db, services.Transports{
		Push:  services.NewPushTransport(ctx, cfg),
		Redis: rdb,
	})

	result, err := svcs.Reminder.Sweep(ctx, now)
	if err != nil {
		log.Fatalf("Reminder sweep failed: %v", err)
	}

	log.Printf("Reminder sweep done: due_tomorrow=%d overdue=%d skipped=%d failed=%d",
		result.DueTomorrowSent, result.OverdueSent, result.Skipped, result.Failed)
}
