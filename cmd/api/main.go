package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/praxia/praxia-go-api/internal/config"
	"github.com/praxia/praxia-go-api/internal/database"
	"github.com/praxia/praxia-go-api/internal/handler"
	"github.com/praxia/praxia-go-api/internal/middleware"
	"github.com/praxia/praxia-go-api/internal/models"
	"github.com/praxia/praxia-go-api/internal/queue"
	"github.com/praxia/praxia-go-api/internal/repository"
	"github.com/praxia/praxia-go-api/internal/router"
	"github.com/praxia/praxia-go-api/internal/service"
	"github.com/praxia/praxia-go-api/pkg/ai"
	cloud "github.com/praxia/praxia-go-api/pkg/cloudinary"
	"github.com/praxia/praxia-go-api/pkg/ocr"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Attempt{},
		&models.LearningProfile{},
		&models.MistakePattern{},
		&models.GamificationState{},
		&models.Badge{},
		&models.Achievement{},
		&models.Alert{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	extractor, err := ocr.NewOpenAIExtractor(ocr.OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey,
		Model:  cfg.OpenAIVisionModel,
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("failed to create ocr extractor: %v", err)
	}

	analyzer, err := buildAnalyzer(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create analyzer: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	attemptRepo := repository.NewAttemptRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	gamificationRepo := repository.NewGamificationRepository(db)
	alertRepo := repository.NewAlertRepository(db)

	profileService := service.NewProfileService(profileRepo, logger)
	gamificationService := service.NewGamificationService(gamificationRepo, redisClient, service.DefaultRuleTable(), logger)
	summaryService := service.NewSummaryService(gamificationService, attemptRepo, redisClient, cfg.SummaryCacheTTL, logger)
	alertService := service.NewAlertService(alertRepo, attemptRepo, gamificationRepo, profileRepo, logger)
	stash := service.NewRedisImageStash(redisClient, cfg.ImageStashTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The queue and the assessment service reference each other: the service
	// enqueues accepted attempts and the queue drives Process. Wire the
	// processor through a late-bound indirection.
	var assessmentService service.AssessmentService
	processor := queue.ProcessorFunc(func(ctx context.Context, attemptID uint) error {
		return assessmentService.Process(ctx, attemptID)
	})

	var enqueuer service.Enqueuer
	var startQueue func() error
	if cfg.NATSURL != "" {
		natsConn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()

		natsQueue := queue.NewNATSQueue(natsConn, cfg.QueueSubject, cfg.QueueGroup, processor, logger)
		enqueuer = natsQueue
		startQueue = func() error { return natsQueue.Start(ctx) }
	} else {
		inProcess := queue.NewInProcessQueue(processor, cfg.QueueWorkers, 64, logger)
		enqueuer = inProcess
		startQueue = func() error { return inProcess.Start(ctx) }
	}

	assessmentService = service.NewAssessmentService(
		attemptRepo,
		studentRepo,
		uploader,
		extractor,
		analyzer,
		profileService,
		gamificationService,
		enqueuer,
		stash,
		validate,
		logger,
		service.AssessmentConfig{
			AdapterTimeout: cfg.AdapterTimeout,
			HistoryLimit:   cfg.HistoryLimit,
			StaleCeiling:   cfg.StaleCeiling,
		},
	)

	if err := startQueue(); err != nil {
		log.Fatalf("failed to start attempt queue: %v", err)
	}

	activityService := service.NewActivityService(attemptRepo, studentRepo, gamificationService, validate, logger)

	go runTicker(ctx, cfg.StaleSweepInterval, func(tickCtx context.Context) {
		if _, err := assessmentService.SweepStale(tickCtx); err != nil {
			logger.Error().Err(err).Msg("stale attempt sweep failed")
		}
	})
	go runTicker(ctx, cfg.AlertExpiryInterval, func(tickCtx context.Context) {
		if _, err := alertService.ExpireOverdue(tickCtx); err != nil {
			logger.Error().Err(err).Msg("alert expiry sweep failed")
		}
	})

	assessmentHandler := handler.NewAssessmentHandler(assessmentService, logger)
	activityHandler := handler.NewActivityHandler(activityService, logger)
	studentHandler := handler.NewStudentHandler(summaryService, profileService, logger)
	alertHandler := handler.NewAlertHandler(alertService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    16 * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AssessmentHandler: assessmentHandler,
		ActivityHandler:   activityHandler,
		StudentHandler:    studentHandler,
		AlertHandler:      alertHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
}

func buildAnalyzer(cfg config.Config, logger zerolog.Logger) (ai.Analyzer, error) {
	switch cfg.AIProvider {
	case "anthropic":
		return ai.NewAnthropicAnalyzer(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
	default:
		return ai.NewOpenAIAnalyzer(ai.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIAnalysisModel,
			Logger: logger,
		})
	}
}

func runTicker(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, time.Minute)
			fn(tickCtx)
			cancel()
		}
	}
}

func waitForShutdown(ctx context.Context, app *fiber.App) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
