package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gamified-task-system/config"
	"gamified-task-system/handlers"
	"gamified-task-system/middleware"
	"gamified-task-system/models"
	"gamified-task-system/services"
	"gamified-task-system/utils"
	"gamified-task-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  parseLogLevel(cfg.DBLogLevel),
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.UserStats{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Task{},
		&models.CompletionEvent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Icon storage is optional
	var icons services.IconUploader
	if cfg.R2.Enabled() {
		uploader, err := utils.InitR2(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
		icons = uploader
	} else {
		log.Println("⚠️  R2 not configured, achievement icon uploads disabled")
	}

	badgeService := services.NewBadgeService(db, icons)
	progressionService := services.NewProgressionService(db, badgeService)
	taskService := services.NewTaskService(db, progressionService)

	if err := badgeService.SeedAchievements(ctx); err != nil {
		log.Fatal("failed to seed achievements:", err)
	}

	var calendar handlers.CalendarSyncer
	if cfg.CalendarEnabled() {
		worker := workers.NewCalendarSyncWorker(db, cfg.CalendarServiceURL, cfg.CalendarServiceToken, cfg.Location)
		sched, err := services.StartCalendarScheduler(ctx, worker, cfg.CalendarSyncInterval)
		if err != nil {
			log.Fatal("failed to start calendar scheduler:", err)
		}
		defer sched.Shutdown()
		calendar = worker
	} else {
		log.Println("⚠️  CALENDAR_SERVICE_URL not set, calendar mirror disabled")
	}

	app := fiber.New(fiber.Config{
		AppName:   "gamified-task-system",
		BodyLimit: 4 * 1024 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// SSE authenticates with its own token, before the gateway check
	if cfg.AuthServiceURL != "" {
		authClient := services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.AuthServiceToken)
		handlers.SetupStreamRoutes(app, authClient, badgeService)
	} else {
		log.Println("⚠️  AUTH_SERVICE_URL not set, achievement stream disabled")
	}

	// 🔐❗ Everything below requires the gateway token
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	handlers.SetupTaskRoutes(app, taskService, cfg.Location)
	handlers.SetupProgressionRoutes(app, progressionService, badgeService)
	handlers.SetupCalendarRoutes(app, calendar)
	handlers.SetupAdminRoutes(app, badgeService)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ Civil calendar for streaks: %s", cfg.Location)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func parseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
