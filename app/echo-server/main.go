package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpmetrics "customerIntel/app/echo-server/metrics"
	"customerIntel/app/echo-server/router"
	"customerIntel/business/attribution"
	"customerIntel/business/churn"
	"customerIntel/business/customer"
	"customerIntel/business/duplicate"
	"customerIntel/business/ltv"
	"customerIntel/business/scheduler"
	"customerIntel/business/tracking"
	"customerIntel/domain"
	"customerIntel/internal/middleware"
	psqlRepo "customerIntel/internal/repository/postgres"
	redisRepo "customerIntel/internal/repository/redis"
	sqsRepo "customerIntel/internal/repository/sqs"
	"customerIntel/internal/rest"
	"customerIntel/pkg/config"
	"customerIntel/pkg/database"
	redisdb "customerIntel/pkg/database/redis"
	"customerIntel/pkg/logger"
	"customerIntel/pkg/metrics"
	"customerIntel/pkg/piicrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.App.Environment)
	defer logger.Sync()
	logger.Info("Starting "+cfg.App.Name, "version", cfg.App.Version)

	metrics.Init()
	httpmetrics.Init()

	db, err := database.InitPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	logger.Info("Database connected successfully")

	cipher, err := piicrypt.New(cfg.PII.Secret)
	if err != nil {
		logger.Fatal("Failed to init pii cipher", "error", err)
	}

	// LTV benchmarks fall back to an in-process cache without Redis
	var benchmarkCache ltv.BenchmarkCache
	if cfg.Redis.Enabled {
		redisClient, err := redisdb.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, using in-process benchmark cache", "error", err)
		} else {
			defer redisdb.CloseRedisClient(redisClient)
			benchmarkCache = redisRepo.NewBenchmarkCache(redisClient)
		}
	}

	var publisher tracking.ConversionPublisher
	if cfg.SQS.Enabled {
		sqsClient, err := sqsRepo.NewClient(context.Background(), cfg.SQS)
		if err != nil {
			logger.Fatal("Failed to init sqs client", "error", err)
		}
		publisher = sqsRepo.NewConversionPublisher(sqsClient, cfg.SQS.QueueURL)
	}

	// Init repo
	customerRepo := psqlRepo.NewCustomerRepository(db)
	sessionRepo := psqlRepo.NewSessionRepository(db)
	eventRepo := psqlRepo.NewEventRepository(db)
	conversionRepo := psqlRepo.NewConversionRepository(db)
	churnRepo := psqlRepo.NewChurnRepository(db)
	ltvRepo := psqlRepo.NewLtvRepository(db)
	duplicateRepo := psqlRepo.NewDuplicateRepository(db)

	// Init service
	customerService := customer.NewCustomerService(customerRepo, cipher, cfg.Analytics.BatchSize)
	trackingService := tracking.NewTrackingService(
		customerRepo,
		sessionRepo,
		eventRepo,
		conversionRepo,
		eventRepo,
		publisher,
		cipher,
		tracking.Config{
			SessionIdleTimeout: cfg.Analytics.SessionIdleTimeout,
			BatchSize:          cfg.Analytics.BatchSize,
			MaxRetries:         cfg.Analytics.ConversionMaxRetries,
		},
	)
	attributionService := attribution.NewAttributionService(eventRepo, attribution.Config{
		WindowDays:   cfg.Analytics.AttributionWindowDays,
		HalfLifeDays: cfg.Analytics.DecayHalfLifeDays,
	})
	churnService := churn.NewChurnService(churnRepo, churn.Config{
		ThresholdDays: cfg.Analytics.ChurnThresholdDays,
		BatchSize:     cfg.Analytics.BatchSize,
	})
	ltvService := ltv.NewLtvService(ltvRepo, benchmarkCache, ltv.Config{
		BatchSize:    cfg.Analytics.BatchSize,
		BenchmarkTTL: cfg.Analytics.BenchmarkTTL,
	})
	duplicateService := duplicate.NewDuplicateService(duplicateRepo, customerService, cipher, duplicate.Config{
		Threshold: cfg.Analytics.DuplicateThreshold,
	})

	// Init handler
	trackingHandler := rest.NewTrackingHandler(trackingService)
	attributionHandler := rest.NewAttributionHandler(attributionService)
	churnHandler := rest.NewChurnHandler(churnService)
	ltvHandler := rest.NewLtvHandler(ltvService)
	duplicateHandler := rest.NewDuplicateHandler(duplicateService)
	customerHandler := rest.NewCustomerHandler(customerService)
	conversionHandler := rest.NewConversionHandler(trackingService)

	// Init echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = middleware.ErrorHandler

	// Global middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(httpmetrics.RequestLatency())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Setup routes
	api := e.Group("/api/v1")
	router.SetupTrackingRoutes(api, trackingHandler)

	admin := api.Group("/admin", middleware.AuthMiddleware(), middleware.AdminOnly())
	router.SetupAttributionRoutes(admin, attributionHandler)
	router.SetupChurnRoutes(admin, churnHandler)
	router.SetupLtvRoutes(admin, ltvHandler)
	router.SetupDuplicateRoutes(admin, duplicateHandler)
	router.SetupCustomerRoutes(admin, customerHandler)
	router.SetupConversionRoutes(admin, conversionHandler)
	router.SetupRealTimeRoutes(admin, trackingHandler)

	schedCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()

	if cfg.Analytics.SchedulerEnabled {
		runner := scheduler.NewRunner(cfg.Analytics.ScheduleInterval)
		runner.Register("sessions", trackingService.CloseIdleSessions)
		runner.Register("rfm", func(ctx context.Context) (domain.BatchResult, error) {
			return customerService.RecalculateRFM(ctx, nil)
		})
		runner.Register("churn", func(ctx context.Context) (domain.BatchResult, error) {
			return churnService.UpdateChurnScores(ctx, nil)
		})
		runner.Register("ltv", func(ctx context.Context) (domain.BatchResult, error) {
			return ltvService.UpdatePredictedLtv(ctx, nil)
		})
		runner.Register("duplicates", duplicateService.ScanAndStore)
		if publisher != nil {
			runner.Register("conversions", func(ctx context.Context) (domain.BatchResult, error) {
				res, err := trackingService.ProcessPendingConversions(ctx)
				return domain.BatchResult{Updated: res.Success, Errors: res.Failed}, err
			})
		}

		go runner.Start(schedCtx)
		logger.Info("Analytics scheduler started", "interval", cfg.Analytics.ScheduleInterval)
	}

	// Goroutine server
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server starting", "address", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
