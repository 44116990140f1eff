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
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-studyplan-api/internal/config"
	"github.com/noah-isme/gema-studyplan-api/internal/database"
	"github.com/noah-isme/gema-studyplan-api/internal/handler"
	"github.com/noah-isme/gema-studyplan-api/internal/middleware"
	"github.com/noah-isme/gema-studyplan-api/internal/repository"
	"github.com/noah-isme/gema-studyplan-api/internal/router"
	"github.com/noah-isme/gema-studyplan-api/internal/service"
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

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not configured, student stats cache disabled")
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName, logger)
	if err != nil {
		log.Fatalf("failed to connect to nats: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Drain()
	} else {
		logger.Warn().Msg("nats url not configured, lifecycle events disabled")
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	templateRepo := repository.NewPlanTemplateRepository(db)
	planRepo := repository.NewStudyPlanRepository(db)
	taskRepo := repository.NewStudyTaskRepository(db)
	assignmentRepo := repository.NewPlanAssignmentRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	snapshotRepo := repository.NewPerformanceSnapshotRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	publisher := service.NewLifecyclePublisher(natsConn, cfg.EventsSubject, logger)
	activityService := service.NewActivityService(activityRepo, logger)
	aggregator := service.NewCompletionAggregator(planRepo, taskRepo, snapshotRepo, validate, redisClient, cfg.StatsCacheTTL, logger)
	templateService := service.NewPlanTemplateService(templateRepo, validate, activityService, logger)
	planService := service.NewPlanInstanceService(planRepo, templateRepo, taskRepo, aggregator, validate, publisher, activityService, logger)
	assignmentResolver := service.NewAssignmentResolver(planRepo, assignmentRepo, groupRepo, aggregator, validate, publisher, activityService, logger)
	lifecycleService := service.NewTaskLifecycleService(taskRepo, groupRepo, planService, aggregator, validate, publisher, activityService, logger)
	retentionScheduler := service.NewRetentionScheduler(schoolRepo, planRepo, planService, aggregator, validate, publisher, activityService, logger)

	probes := map[string]handler.HealthProbe{
		"postgres": func(ctx context.Context) error {
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

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		PlanTemplateHandler: handler.NewPlanTemplateHandler(templateService, planService, logger),
		StudyPlanHandler:    handler.NewStudyPlanHandler(planService, assignmentResolver, aggregator, logger),
		StudyTaskHandler:    handler.NewStudyTaskHandler(lifecycleService, logger),
		StatsHandler:        handler.NewStatsHandler(aggregator, logger),
		RetentionHandler:    handler.NewRetentionHandler(retentionScheduler, logger),
		ActivityHandler:     handler.NewActivityHandler(activityService, logger),
		HealthProbes:        probes,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RetentionEnabled {
		go retentionScheduler.Start(ctx, cfg.RetentionInterval)
	}

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(ctx, app)
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
