package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"proactiveCacher/app/echo-server/metrics"
	"proactiveCacher/app/echo-server/router"
	"proactiveCacher/business/cachemanager"
	"proactiveCacher/business/recommender"
	"proactiveCacher/business/scheduler"
	userService "proactiveCacher/business/user"
	videoService "proactiveCacher/business/video"
	"proactiveCacher/internal/middleware"
	"proactiveCacher/internal/repository/notification"
	psqlRepo "proactiveCacher/internal/repository/postgres"
	redisRepo "proactiveCacher/internal/repository/redis"
	"proactiveCacher/internal/rest"
	"proactiveCacher/internal/supervisor"
	"proactiveCacher/pkg/config"
	"proactiveCacher/pkg/database/postgres"
	"proactiveCacher/pkg/database/redis"
	"proactiveCacher/pkg/logger"
	pkgmetrics "proactiveCacher/pkg/metrics"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	logger.Info("Starting "+cfg.App.Name, "version", cfg.App.Version)

	metrics.Init()
	pkgmetrics.Init()

	db, err := postgres.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	taskStore := newTaskStore(cfg, db)

	// Init push transport
	apnsCfg := notification.DefaultAPNsConfig()
	apnsCfg.KeyPath = cfg.APNs.KeyPath
	apnsCfg.KeyID = cfg.APNs.KeyID
	apnsCfg.TeamID = cfg.APNs.TeamID
	apnsCfg.Topic = cfg.APNs.Topic
	apnsCfg.Production = cfg.APNs.Production
	apns, err := notification.NewAPNsRepository(apnsCfg)
	if err != nil {
		logger.Fatal("Failed to init APNs client", "error", err)
	}

	// Init validate
	validate := validator.New()

	// Init repo
	userRepo := psqlRepo.NewUserRepository(db)
	videoRepo := psqlRepo.NewVideoRepository(db)
	ratingRepo := psqlRepo.NewRatingRepository(db)
	logRepo := psqlRepo.NewLogRepository(db)
	pushRepo := psqlRepo.NewPushRecordRepository(db)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	registry := userService.NewRegistry(userRepo)
	if err := registry.Refresh(startCtx); err != nil {
		logger.Fatal("Failed to load users", "error", err)
	}
	logger.Info("User registry loaded", "users", registry.Len())

	// Init caching engine
	als := recommender.NewALS(recommender.ALSConfig{
		NumFactors:     cfg.Recommender.NumFactors,
		NumIterations:  cfg.Recommender.NumIterations,
		Regularization: cfg.Recommender.Regularization,
		NumWorkers:     cfg.Recommender.NumWorkers,
	})
	sched := scheduler.NewScheduler(taskStore, cfg.CacheManager.RestoreGrace)

	cacheService := cachemanager.NewService(
		cachemanager.Repositories{
			Users:       userRepo,
			Videos:      videoRepo,
			Ratings:     ratingRepo,
			Logs:        logRepo,
			PushRecords: pushRepo,
		},
		apns,
		als,
		sched,
		registry,
		cachemanager.Config{
			SlotDuration:      cfg.CacheManager.SlotDuration,
			WiFiThreshold:     cfg.CacheManager.WiFiThreshold,
			FallbackPushDelay: cfg.CacheManager.FallbackPushDelay,
			Location:          cfg.CacheManager.Location(),
		},
	)
	sched.SetHandler(cacheService.ExecutePush)

	if purged, err := cacheService.PurgeOrphanedRatings(startCtx); err != nil {
		logger.Error("Startup rating purge failed", "error", err)
	} else {
		logger.Info("Startup rating purge done", "purged", purged)
	}
	cancelStart()

	// Init service
	userService := userService.NewUserService(userRepo, logRepo, registry, cacheService, validate)
	videoService := videoService.NewVideoService(videoRepo, ratingRepo, validate)

	// Init handler
	userHandler := rest.NewUserHandler(userService)
	videoHandler := rest.NewVideoHandler(videoService)
	cacheHandler := rest.NewCacheAdminHandler(cacheService, pushRepo)
	adminHandler := rest.NewAdminHandler(rest.AdminCredentials{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		JWTSecret:    cfg.Admin.JWTSecret,
		TokenTTL:     cfg.Admin.TokenTTL,
	})

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// HTTP error handler
	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(metrics.Middleware())

	// Setup routes
	router.SetupDeviceRoutes(e, userHandler, videoHandler,
		middleware.DeviceAuth(userService),
		middleware.DeviceAuthQuery(userService),
	)
	router.SetupAdminRoutes(e, adminHandler, cacheHandler, userHandler, videoHandler,
		middleware.AdminAuth(cfg.Admin.JWTSecret),
		middleware.AdminOnly(),
	)
	router.SetupMetricsRoute(e, echo.WrapHandler(promhttp.Handler()))

	// Supervised services
	tree := supervisor.NewTree(logger.Slog(), supervisor.DefaultTreeConfig())
	tree.AddEngineService(supervisor.NewLoop("push-scheduler", sched.Serve))
	if cfg.CacheManager.NetworkProbeEnabled {
		tree.AddEngineService(cachemanager.NewProbeLoop(cacheService, cfg.CacheManager.NetworkProbeInterval))
	}
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	tree.AddAPIService(supervisor.NewHTTPService(e, addr, 10*time.Second))

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Server starting", "address", addr)
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Supervisor stopped", "error", err)
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		logger.Warn("Services did not stop in time", "services", len(report))
	}

	logger.Info("Server stopped")
}

// newTaskStore keeps pending pushes in redis when it is configured and in
// postgres otherwise.
func newTaskStore(cfg *config.Config, db *gorm.DB) scheduler.TaskStore {
	if cfg.Redis.RedisHost != "" {
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("Failed to connect to redis", "error", err)
		}
		logger.Info("Pending pushes stored in redis")
		return redisRepo.NewPendingPushStore(client)
	}

	store, err := psqlRepo.NewPendingPushStore(db)
	if err != nil {
		logger.Fatal("Failed to prepare pending push table", "error", err)
	}
	logger.Info("Pending pushes stored in postgres")
	return store
}
