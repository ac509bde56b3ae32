package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/goal-tracker-api/internal/dto"
	"github.com/noah-isme/goal-tracker-api/internal/handler"
	"github.com/noah-isme/goal-tracker-api/internal/middleware"
	"github.com/noah-isme/goal-tracker-api/internal/models"
	"github.com/noah-isme/goal-tracker-api/internal/service"
	"github.com/noah-isme/goal-tracker-api/pkg/config"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
	"github.com/noah-isme/goal-tracker-api/pkg/logger"
	"github.com/noah-isme/goal-tracker-api/pkg/middleware/cors"
	"github.com/noah-isme/goal-tracker-api/pkg/middleware/requestid"
	"github.com/noah-isme/goal-tracker-api/pkg/response"
)

type authBackend interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
	Logout(ctx context.Context, userID string, req models.LogoutRequest) error
	ValidateToken(token string) (*models.JWTClaims, error)
}

type analyticsBackend interface {
	Overview(ctx context.Context, query models.AnalyticsQuery) (*models.GoalOverview, bool, error)
	Completions(ctx context.Context, query models.AnalyticsQuery) ([]models.CompletionPoint, bool, error)
	ByStudent(ctx context.Context, query models.AnalyticsQuery) ([]models.StudentCompletion, bool, error)
	Throughput(ctx context.Context, query models.AnalyticsQuery) ([]models.ThroughputPoint, bool, error)
	Backlog(ctx context.Context, query models.AnalyticsQuery) (*models.BacklogReport, bool, error)
	Overdue(ctx context.Context, query models.AnalyticsQuery) (*models.OverdueReport, bool, error)
	TimeToComplete(ctx context.Context, query models.AnalyticsQuery) (*models.TimeToCompleteStats, bool, error)
	Attendance(ctx context.Context, query models.AnalyticsQuery) ([]models.AttendancePoint, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

type reportBackend interface {
	CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ReportDownload, error)
}

type routeDeps struct {
	cfg       *config.Config
	logger    *zap.Logger
	metrics   *service.MetricsService
	auth      authBackend
	analytics analyticsBackend
	reports   reportBackend
	readiness map[string]handler.Pinger
}

func newRouter(deps routeDeps) *gin.Engine {
	cfg := deps.cfg
	logr := deps.logger
	if logr == nil {
		logr = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(cors.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.readiness)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	authenticated := middleware.JWT(deps.auth)

	authHandler := handler.NewAuthHandler(deps.auth)
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authenticated, authHandler.Logout)

	analytics := api.Group("/analytics", authenticated, middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	if !cfg.Analytics.Enabled {
		analytics.Use(featureDisabled("analytics"))
	}
	analyticsHandler := handler.NewAnalyticsHandler(deps.analytics)
	analytics.GET("/overview", analyticsHandler.Overview)
	analytics.GET("/completions", analyticsHandler.Completions)
	analytics.GET("/by-student", analyticsHandler.ByStudent)
	analytics.GET("/throughput", analyticsHandler.Throughput)
	analytics.GET("/backlog", analyticsHandler.Backlog)
	analytics.GET("/overdue", analyticsHandler.Overdue)
	analytics.GET("/time-to-complete", analyticsHandler.TimeToComplete)
	analytics.GET("/attendance", analyticsHandler.Attendance)
	analytics.GET("/system", analyticsHandler.System)

	if deps.reports != nil {
		reportHandler := handler.NewReportHandler(deps.reports)
		analytics.POST("/exports", reportHandler.CreateExport)
		analytics.GET("/exports/:id", reportHandler.ExportStatus)
		api.GET("/export/:token", reportHandler.DownloadExport)
	} else {
		disabled := featureDisabled("reports")
		analytics.POST("/exports", disabled)
		analytics.GET("/exports/:id", disabled)
		api.GET("/export/:token", disabled)
	}

	return r
}

func featureDisabled(feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, feature+" feature is disabled"))
		c.Abort()
	}
}
