package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/monquest-api/internal/config"
	"github.com/noah-isme/monquest-api/internal/database"
	"github.com/noah-isme/monquest-api/internal/handler"
	"github.com/noah-isme/monquest-api/internal/middleware"
	"github.com/noah-isme/monquest-api/internal/models"
	"github.com/noah-isme/monquest-api/internal/repository"
	"github.com/noah-isme/monquest-api/internal/router"
	"github.com/noah-isme/monquest-api/internal/service"
	"github.com/noah-isme/monquest-api/internal/utils"
	"github.com/noah-isme/monquest-api/pkg/ai"
	cloud "github.com/noah-isme/monquest-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Bounty{}, &models.Submission{}, &models.ReviewRun{}, &models.MediaAsset{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis not configured; bounty cache disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var storage service.FileStorage
	if cfg.CloudinaryConfigured() {
		uploader, err := cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = uploader
	} else {
		logger.Warn().Msg("cloudinary not configured; media uploads disabled")
	}

	judge, err := buildJudge(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create AI judge: %v", err)
	}
	if judge == nil {
		logger.Warn().Str("provider", cfg.AIProvider).Msg("AI key missing; reviews disabled")
	}

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	validate := utils.NewValidator()

	bountyRepo := repository.NewBountyRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	reviewRunRepo := repository.NewReviewRunRepository(db)
	mediaRepo := repository.NewMediaRepository(db)

	events := service.NewReviewEventPublisher(redisClient, natsConn, cfg.EventsChannel, logger)
	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	events.Start(eventsCtx)

	cache := service.NewBountyCache(redisClient, cfg.CacheTTL, logger)
	extractor := service.NewAttachmentExtractor(
		service.NewHTTPFetcher(cfg.Review.FetchTimeout, cfg.Review.MaxImageBytes, cfg.Review.FetchAllowPrivate),
		cfg.Review.FetchConcurrency,
		logger,
	)

	bountyService := service.NewBountyService(bountyRepo, submissionRepo, cache, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, bountyRepo, cache, validate, logger)
	mediaService := service.NewMediaService(storage, mediaRepo, cfg.UploadMaxSizeMB, logger)
	reviewService := service.NewReviewService(service.ReviewServiceConfig{
		Judge:       judge,
		Bounties:    bountyRepo,
		Submissions: submissionRepo,
		Runs:        reviewRunRepo,
		Prompts:     service.NewPromptBuilder(extractor),
		Applier:     service.NewSelectionApplier(submissionRepo, cfg.Review.ApplyConcurrency, logger),
		Locker:      buildLocker(cfg, redisClient),
		Events:      events,
		Cache:       cache,
		Options: service.ReviewOptions{
			BufferSize:        cfg.Review.BufferSize,
			StreamTimeout:     cfg.Review.StreamTimeout,
			AbortOnDisconnect: cfg.Review.AbortOnDisconnect,
		},
		Logger: logger,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AccessLog: cfg.AppEnv == "development"})
	router.Register(app, cfg, router.Dependencies{
		BountyHandler:     handler.NewBountyHandler(bountyService, reviewService, logger),
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		ProfileHandler:    handler.NewProfileHandler(bountyService, logger),
		ReviewHandler:     handler.NewReviewHandler(reviewService, validate, logger),
		MediaHandler:      handler.NewMediaHandler(mediaService, logger),
		ReviewFeedHandler: handler.NewReviewFeedHandler(events, logger),
		HealthProbes:      probes,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

// buildJudge returns nil without an error when the provider has no key.
func buildJudge(cfg config.Config, logger zerolog.Logger) (ai.Judge, error) {
	if cfg.AIKey() == "" {
		return nil, nil
	}

	switch cfg.AIProvider {
	case "anthropic":
		return ai.NewAnthropicJudge(ai.AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AIModel,
			MaxTokens: int64(cfg.AIMaxTokens),
			Logger:    logger,
		})
	default:
		return ai.NewOpenAIJudge(ai.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.AIModel,
			MaxTokens: cfg.AIMaxTokens,
			Logger:    logger,
		})
	}
}

func buildLocker(cfg config.Config, redisClient *redis.Client) service.ReviewLocker {
	switch cfg.Review.Lock {
	case config.ReviewLockRedis:
		return service.NewRedisReviewLocker(redisClient, cfg.Review.LockTTL)
	case config.ReviewLockNone:
		return service.NewNoopReviewLocker()
	default:
		return service.NewLocalReviewLocker()
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
