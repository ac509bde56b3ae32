package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/goal-tracker-api/api/swagger"
	"github.com/noah-isme/goal-tracker-api/internal/handler"
	"github.com/noah-isme/goal-tracker-api/internal/repository"
	"github.com/noah-isme/goal-tracker-api/internal/service"
	"github.com/noah-isme/goal-tracker-api/pkg/cache"
	"github.com/noah-isme/goal-tracker-api/pkg/config"
	"github.com/noah-isme/goal-tracker-api/pkg/database"
	"github.com/noah-isme/goal-tracker-api/pkg/jobs"
	"github.com/noah-isme/goal-tracker-api/pkg/logger"
	"github.com/noah-isme/goal-tracker-api/pkg/storage"
)

// @title Goal Tracker Analytics API
// @version 1.0.0
// @description Goal completion, backlog and attendance analytics with asynchronous exports
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const cacheNamespace = "goal-tracker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	metrics := service.NewMetricsService()
	readiness := map[string]handler.Pinger{"postgres": db}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics caching disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, cacheNamespace, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, redisClient != nil)
	if redisClient != nil {
		readiness["redis"] = cacheRepo
		if cfg.Database.AutoMigrate {
			// Reports cached before a migration may no longer match the schema.
			_ = cacheSvc.Invalidate(ctx, "analytics:*")
		}
	}

	validate := validator.New()
	authSvc := service.NewAuthService(repository.NewUserRepository(db), validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		SingleSession:      cfg.JWT.SingleSession,
	})
	analyticsSvc := service.NewAnalyticsService(repository.NewAnalyticsRepository(db), cacheSvc, metrics, logr, service.AnalyticsOptions{
		DefaultRangeDays: cfg.Analytics.DefaultRangeDays,
		CacheTTL:         cfg.Analytics.CacheTTL,
	})

	deps := routeDeps{
		cfg:       cfg,
		logger:    logr,
		metrics:   metrics,
		auth:      authSvc,
		analytics: analyticsSvc,
		readiness: readiness,
	}

	if cfg.Reports.Enabled {
		reportSvc, queue, err := startReports(ctx, cfg, db, analyticsSvc, metrics, validate, logr)
		if err != nil {
			return err
		}
		defer queue.Stop()
		deps.reports = reportSvc
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logr.Info("http server stopped")
	return nil
}

func startReports(ctx context.Context, cfg *config.Config, db *sqlx.DB, analytics *service.AnalyticsService, metrics *service.MetricsService, validate *validator.Validate, logr *zap.Logger) (*service.ReportService, *jobs.Queue, error) {
	store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		return nil, nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	exporter := service.NewExportService(analytics, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Reports.SignedURLTTL,
	}, logr)

	reportRepo := repository.NewReportRepository(db)
	worker := service.NewReportWorker(reportRepo, exporter, metrics, cfg.Reports.WorkerRetries, logr)
	queue := jobs.NewQueue("analytics-exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)

	reports := service.NewReportService(reportRepo, queue, exporter, validate, logr, service.ReportServiceConfig{
		ResultTTL:        cfg.Reports.SignedURLTTL,
		CleanupInterval:  cfg.Reports.CleanupInterval,
		DefaultRangeDays: cfg.Analytics.DefaultRangeDays,
	})
	reports.RecoverPendingJobs(ctx)
	reports.StartCleanup(ctx)
	return reports, queue, nil
}
