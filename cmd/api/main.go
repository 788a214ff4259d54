package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/api/swagger"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/handler"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/middleware"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/models"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/repository"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/internal/service"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/cache"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/config"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/database"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/export"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/jobs"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/logger"
	corsmiddleware "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/middleware/cors"
	reqidmiddleware "github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/middleware/requestid"
	"github.com/Srishanth-023/IQAC-Approval-Portal-sub000/pkg/storage"
)

// @title IQAC Approval Portal API
// @version 1.0.0
// @description Event request approval workflow for institutional quality assurance
// @BasePath /api/v1
// @schemes http https

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)

	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare report storage", "error", err)
	}
	letterStorage, err := storage.NewLocalStorage(cfg.Letters.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare letter storage", "error", err)
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
	letterSigner := storage.NewSignedURLSigner(cfg.Letters.SignedURLSecret, cfg.Letters.SignedURLTTL)

	validate := validator.New()
	requestRepo := repository.NewRequestRepository(db)
	userRepo := repository.NewUserRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	reportSvc := service.NewReportService(requestRepo, reportStorage, reportSigner, logr, service.ReportServiceConfig{
		MaxFileSize: cfg.Reports.MaxFileSizeBytes,
		APIPrefix:   cfg.APIPrefix,
	})
	letterSvc := service.NewLetterService(requestRepo, export.NewLetterRenderer(cfg.Letters.InstitutionName), letterStorage, letterSigner, logr, service.LetterServiceConfig{
		APIPrefix: cfg.APIPrefix,
		Metrics:   metricsSvc,
	})
	dashboardSvc := service.NewDashboardService(requestRepo, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	letterQueue := letterSvc.WarmQueue(cfg.Letters.Workers, cfg.Letters.QueueSize, logr)
	letterQueue.Start(rootCtx)
	defer letterQueue.Stop()

	workflowSvc := service.NewWorkflowService(requestRepo, validate, logr,
		service.WithMetrics(metricsSvc),
		service.WithCompletionHook(func(requestID string) {
			dashboardSvc.Invalidate(context.Background())
			if err := letterQueue.Enqueue(jobs.Job{
				ID:      "warm-" + requestID,
				Type:    "letter-warm",
				Payload: requestID,
			}); err != nil {
				logr.Warn("failed to enqueue letter warm job", zap.String("request_id", requestID), zap.Error(err))
			}
		}),
	)

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(workflowSvc, reportSvc)
	letterHandler := handler.NewLetterHandler(letterSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))
	authed.GET("/auth/me", authHandler.Me)

	authed.POST("/requests", middleware.RequireRoles(models.RoleStaff), middleware.Audit(logr, "request.submit"), requestHandler.Create)
	authed.GET("/requests", requestHandler.List)
	authed.GET("/requests/:id", requestHandler.Get)
	authed.POST("/requests/:id/approve", middleware.RequireRoles(models.ApproverRoles()...), middleware.Audit(logr, "request.approve"), requestHandler.Approve)
	authed.POST("/requests/:id/recreate", middleware.RequireRoles(models.ApproverRoles()...), middleware.Audit(logr, "request.recreate"), requestHandler.Recreate)
	authed.POST("/requests/:id/resubmit", middleware.RequireRoles(models.RoleStaff), middleware.Audit(logr, "request.resubmit"), requestHandler.Resubmit)
	authed.GET("/requests/:id/report", requestHandler.ReportURL)
	authed.GET("/requests/:id/letter", letterHandler.LetterURL)
	authed.GET("/dashboard/summary", dashboardHandler.Summary)
	authed.GET("/dashboard/register", middleware.RequireRoles(models.RoleIQAC, models.RoleAdmin), dashboardHandler.ExportRegister)
	authed.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	// Signed-token downloads authenticate via the token itself so links can be
	// opened outside an authenticated session.
	api.GET("/requests/:id/report/download", requestHandler.ReportDownload)
	api.GET("/requests/:id/letter/download", letterHandler.LetterDownload)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
