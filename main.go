package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"media-studio/backends"
	"media-studio/config"
	"media-studio/handlers"
	"media-studio/logger"
	"media-studio/repository"
	"media-studio/repository/sqlite"
	"media-studio/services/pipeline"
	"media-studio/services/records"
	"media-studio/services/usage"
	"media-studio/staging"
	"media-studio/storage"
	"media-studio/validation"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.Init(cfg.LogDir, cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Database is optional: without it, metering and records are no-ops.
	var fileRepo repository.FileRepository
	var usageRepo repository.UsageRepository
	if cfg.Database.Path != "" {
		db, err := sqlite.InitDB(cfg.Database.Path, sqlite.DBConfig{
			MaxConnections:     cfg.Database.MaxConnections,
			MaxIdleConnections: cfg.Database.MaxIdleConnections,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		fileRepo = sqlite.NewFileRepository(db)
		usageRepo = sqlite.NewUsageRepository(db)
	} else {
		appLogger.Warn("no database configured, metering and file records are disabled")
	}

	var objectStore records.ObjectStore
	if cfg.Storage.Configured() {
		store, err := storage.NewSpacesClient(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize object storage: %v", err)
		}
		objectStore = store
	}

	stagingDir, err := staging.NewDir(cfg.TempDir)
	if err != nil {
		log.Fatalf("Failed to initialize staging directory: %v", err)
	}

	usageService := usage.NewService(usage.Config{
		MonthlyLimitMinutes: cfg.Quota.MonthlyLimitMinutes,
	}, usageRepo, appLogger)
	recordsService := records.NewService(fileRepo, objectStore, appLogger)

	provider := backends.NewProvider(cfg, cfg.TempDir, appLogger)
	pipelineService := pipeline.NewService(pipeline.Config{
		SummaryMaxLength: cfg.Text.SummaryMaxLength,
		AnswerMaxLength:  cfg.Text.AnswerMaxLength,
	}, provider, stagingDir, usageService, recordsService, appLogger)

	validator := validation.NewValidator(cfg)

	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           cfg.IdleTimeout,
		BodyLimit:             int(cfg.MaxUploadSize),
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: !cfg.Debug,
		StrictRouting:         true,
		CaseSensitive:         true,
		AppName:               "media-studio " + cfg.Version,
	})

	setupMiddleware(app, cfg)

	mediaHandler := handlers.NewMediaHandler(pipelineService, validator, stagingDir, cfg.RequestTimeout)
	recordsHandler := handlers.NewRecordsHandler(recordsService, usageService)

	app.Post("/api/transcribe", mediaHandler.Transcribe)
	app.Post("/api/transcribe/url", mediaHandler.TranscribeURL)
	app.Post("/api/ocr", mediaHandler.OCR)
	app.Post("/api/convert", mediaHandler.Convert)
	app.Post("/api/summarize", mediaHandler.Summarize)
	app.Post("/api/answer", mediaHandler.Answer)
	app.Get("/api/formats", mediaHandler.Formats)
	app.Get("/api/files", recordsHandler.ListFiles)
	app.Get("/api/files/:id", recordsHandler.GetFile)
	app.Get("/api/usage", recordsHandler.GetUsage)
	app.Get("/health", handlers.HealthCheck)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-shutdownChan
		appLogger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			appLogger.WithError(err).Error("Server shutdown error")
		}
	}()

	serverAddr := ":" + cfg.ServerPort
	appLogger.WithFields(logrus.Fields{
		"addr":    serverAddr,
		"version": cfg.Version,
	}).Info("Server starting")

	if err := app.Listen(serverAddr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}

func setupMiddleware(app *fiber.App, cfg *config.Config) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Debug,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	if cfg.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.CORS.AllowedOrigins, ","),
			AllowMethods:     strings.Join(cfg.CORS.AllowedMethods, ","),
			AllowHeaders:     strings.Join(cfg.CORS.AllowedHeaders, ","),
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}))
	}

	if cfg.RateLimit.Enabled {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit.RequestsPerMinute,
			Expiration: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Rate limit exceeded",
				})
			},
		}))
	}

	app.Use(compress.New(compress.Config{
		Level: compress.LevelDefault,
	}))

	if cfg.Debug {
		app.Use(func(c *fiber.Ctx) error {
			c.Set("X-Debug-Mode", "true")
			return c.Next()
		})
	}
}
