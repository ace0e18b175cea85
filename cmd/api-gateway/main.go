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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/sgta/sgta-api/api/swagger"
	"github.com/sgta/sgta-api/internal/handler"
	internalmiddleware "github.com/sgta/sgta-api/internal/middleware"
	"github.com/sgta/sgta-api/internal/models"
	"github.com/sgta/sgta-api/internal/repository"
	"github.com/sgta/sgta-api/internal/service"
	"github.com/sgta/sgta-api/pkg/cache"
	"github.com/sgta/sgta-api/pkg/config"
	"github.com/sgta/sgta-api/pkg/database"
	"github.com/sgta/sgta-api/pkg/export"
	"github.com/sgta/sgta-api/pkg/logger"
	corsmiddleware "github.com/sgta/sgta-api/pkg/middleware/cors"
	reqidmiddleware "github.com/sgta/sgta-api/pkg/middleware/requestid"
)

// @title SGTA Academic API
// @version 1.0.0
// @description Academic periods, enrollments and grade tracking
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	var redisClient *redis.Client
	if cfg.StatsCache.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, statistics cache disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close() //nolint:errcheck
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	periodRepo := repository.NewPeriodRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	var cacheRepo *repository.CacheRepository
	var cacheStore service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient)
		cacheStore = cacheRepo
	}

	cacheSvc := service.NewCacheService(cacheStore, metricsSvc, cfg.StatsCache.TTL, logr, cfg.StatsCache.Enabled)
	periodSvc := service.NewPeriodService(periodRepo, validate, metricsSvc, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, periodRepo, subjectRepo, cacheSvc, metricsSvc, validate, logr, service.EnrollmentServiceConfig{
		WriteRetries: cfg.Enrollments.WriteRetries,
		StatsTTL:     cfg.StatsCache.TTL,
	})
	reportSvc := service.NewReportService(periodRepo, enrollmentRepo, export.NewCSVExporter(), export.NewPDFExporter(), validate, logr)
	tokenSvc := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	sweeper := service.NewPeriodSweeper(periodSvc, service.PeriodSweeperConfig{Logger: logr})

	dependencies := map[string]handler.Pinger{"postgres": db}
	if cacheRepo != nil {
		dependencies["redis"] = cacheRepo
	}

	handlers := routeHandlers{
		periods:     handler.NewPeriodHandler(periodSvc, sweeper),
		enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		reports:     handler.NewReportHandler(reportSvc),
		metrics:     handler.NewMetricsHandler(metricsSvc, dependencies),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	registerRoutes(r, cfg, tokenSvc, handlers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PeriodSweep.Enabled {
		sweeper.Start(ctx, cfg.PeriodSweep.Interval)
		defer sweeper.Stop()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type routeHandlers struct {
	periods     *handler.PeriodHandler
	enrollments *handler.EnrollmentHandler
	reports     *handler.ReportHandler
	metrics     *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, tokens internalmiddleware.TokenValidator, h routeHandlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.JWT(tokens))

	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	staff := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	api.GET("/metrics/summary", admin, h.metrics.Snapshot)

	periods := api.Group("/periods")
	periods.GET("", h.periods.List)
	periods.GET("/current", h.periods.Current)
	periods.GET("/overlaps", admin, h.periods.Overlaps)
	periods.GET("/sweep", admin, h.periods.SweepStatus)
	periods.GET("/sweep/pending", admin, h.periods.PendingRefresh)
	periods.POST("/sweep", admin, h.periods.Sweep)
	periods.GET("/:id", h.periods.Get)
	periods.GET("/:id/enrollments", staff, h.enrollments.ListByPeriod)
	periods.POST("", admin, h.periods.Create)
	periods.PATCH("/:id", admin, h.periods.Update)
	periods.POST("/:id/activate", admin, h.periods.Activate)
	periods.POST("/:id/finish", admin, h.periods.Finish)
	periods.POST("/:id/cancel", admin, h.periods.Cancel)
	periods.DELETE("/:id", admin, h.periods.Delete)

	api.GET("/students/:studentID/enrollments",
		internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleTeacher), internalmiddleware.SelfParam+":studentID"),
		h.enrollments.ListByStudent)

	enrollments := api.Group("/enrollments")
	enrollments.POST("", admin, h.enrollments.Create)
	enrollments.GET("/statistics", staff, h.enrollments.Statistics)
	enrollments.GET("/:id", staff, h.enrollments.Get)
	enrollments.PATCH("/:id/status", admin, h.enrollments.UpdateStatus)
	enrollments.POST("/:id/subjects", admin, h.enrollments.AddSubject)
	enrollments.DELETE("/:id/subjects/:subjectID", admin, h.enrollments.RemoveSubject)
	enrollments.POST("/:id/subjects/:subjectID/start", staff, h.enrollments.StartSubject)
	enrollments.POST("/:id/subjects/:subjectID/withdraw", admin, h.enrollments.WithdrawSubject)
	enrollments.PUT("/:id/subjects/:subjectID/grades", staff, h.enrollments.PostGrade)

	if cfg.Reports.Enabled {
		reports := api.Group("/reports", staff)
		reports.GET("/grade-sheet", h.reports.GradeSheet)
	}
}
