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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/contravention-api/api/swagger"
	"github.com/noah-isme/contravention-api/internal/escalation"
	"github.com/noah-isme/contravention-api/internal/fiscal"
	"github.com/noah-isme/contravention-api/internal/handler"
	internalmiddleware "github.com/noah-isme/contravention-api/internal/middleware"
	"github.com/noah-isme/contravention-api/internal/models"
	"github.com/noah-isme/contravention-api/internal/repository"
	"github.com/noah-isme/contravention-api/internal/service"
	"github.com/noah-isme/contravention-api/pkg/cache"
	"github.com/noah-isme/contravention-api/pkg/config"
	"github.com/noah-isme/contravention-api/pkg/database"
	"github.com/noah-isme/contravention-api/pkg/jobs"
	"github.com/noah-isme/contravention-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/contravention-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/contravention-api/pkg/middleware/requestid"
)

// @title Contravention API
// @version 1.0.0
// @description Procurement contravention points ledger and escalation tracker
// @BasePath /api/v1
// @schemes http
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
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	matrix, err := escalation.Load(cfg.Escalation)
	if err != nil {
		logr.Fatal("failed to load escalation matrix", zap.Error(err))
	}
	calendar, err := fiscal.NewCalendar(cfg.Fiscal)
	if err != nil {
		logr.Fatal("invalid fiscal calendar", zap.Error(err))
	}
	logr.Info("escalation matrix loaded", zap.String("profile", matrix.Profile()), zap.Int("tiers", len(matrix.Tiers())))

	metrics := service.NewMetricsService()
	validate := validator.New()
	checks := map[string]handler.Pinger{"postgres": db}

	var (
		cacheRepo service.CacheRepository
		publisher *cache.Publisher
	)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		defer client.Close() //nolint:errcheck
		redisRepo := repository.NewCacheRepository(client)
		cacheRepo = redisRepo
		checks["redis"] = handler.PingFunc(redisRepo.Ping)
		if cfg.Notifications.Enabled {
			publisher = cache.NewPublisher(client, cfg.Notifications.Channel)
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cacheRepo != nil)

	// A nil *cache.Publisher must not reach the publisher interface.
	notifier := service.NewNotificationService(nil, metrics, logr)
	if publisher != nil {
		notifier = service.NewNotificationService(publisher, metrics, logr)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queue *jobs.Queue
	if cfg.Notifications.Enabled {
		queue = jobs.NewQueue("escalation-events", notifier.Handle, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
			Logger:     logr,
		})
		queue.Start(rootCtx)
		notifier.AttachQueue(queue)
	}

	auditRepo := repository.NewAuditRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	typeRepo := repository.NewContraventionTypeRepository(db)
	contraventionRepo := repository.NewContraventionRepository(db)
	escalationRepo := repository.NewEscalationRepository(db)
	trainingRepo := repository.NewTrainingRepository(db)
	pointsRepo := repository.NewPointsRepository(db, cfg.Database.TxRetries)
	fiscalRepo := repository.NewFiscalResetRepository(db)
	reportRepo := repository.NewReportRepository(db)

	pointsSvc := service.NewPointsService(pointsRepo, matrix, cfg.Points, cfg.Escalation.DueDays, logr,
		service.WithEscalationNotifier(notifier),
		service.WithReportCache(cacheSvc),
		service.WithPointsMetrics(metrics),
	)
	escalationSvc := service.NewEscalationService(pointsSvc, escalationRepo, auditRepo, logr,
		service.WithEscalationMetrics(metrics),
		service.WithRecalculationConcurrency(cfg.Points.RecalcConcurrency),
	)
	employeeSvc := service.NewEmployeeService(employeeRepo, validate, logr)
	typeSvc := service.NewContraventionTypeService(typeRepo, auditRepo, validate, logr)
	contraventionSvc := service.NewContraventionService(pointsSvc, contraventionRepo, employeeRepo, typeRepo, auditRepo, validate, logr)
	trainingSvc := service.NewTrainingService(pointsSvc, trainingRepo, employeeRepo, escalationRepo, auditRepo, validate, logr)
	fiscalSvc := service.NewFiscalResetService(pointsSvc, fiscalRepo, calendar, auditRepo, metrics, cfg.Points.RecalcConcurrency, logr)
	reportSvc := service.NewReportService(reportRepo, cacheSvc, cfg.Reports.CacheTTL, logr)
	authSvc := service.NewAuthService(cfg.JWT)

	scheduler := service.NewFiscalScheduler(fiscalSvc, cfg.Fiscal.CheckInterval, cfg.Fiscal.SchedulerEnabled, logr)
	scheduler.Start()

	contraventionHandler := handler.NewContraventionHandler(contraventionSvc)
	typeHandler := handler.NewContraventionTypeHandler(typeSvc)
	employeeHandler := handler.NewEmployeeHandler(employeeSvc, pointsSvc, escalationSvc)
	escalationHandler := handler.NewEscalationHandler(escalationSvc)
	trainingHandler := handler.NewTrainingHandler(trainingSvc)
	fiscalHandler := handler.NewFiscalHandler(fiscalSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := string(models.RoleAdmin)
	approver := string(models.RoleApprover)
	submitter := string(models.RoleSubmitter)
	employee := string(models.RoleEmployee)

	api := r.Group(cfg.APIPrefix)

	// The training provider authenticates with a shared token, not a user session.
	api.POST("/training/completions", internalmiddleware.ServiceToken(cfg.Training.CallbackToken), trainingHandler.Completed)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	contraventions := secured.Group("/contraventions")
	contraventions.GET("", internalmiddleware.RBAC(admin, approver, submitter), contraventionHandler.List)
	contraventions.POST("", internalmiddleware.RBAC(admin, approver, submitter), contraventionHandler.Create)
	contraventions.GET("/:id", internalmiddleware.RBAC(admin, approver, submitter, employee), contraventionHandler.Get)
	contraventions.POST("/:id/approve", internalmiddleware.RBAC(admin, approver), contraventionHandler.Approve)
	contraventions.POST("/:id/acknowledge", internalmiddleware.RBAC(admin, employee), contraventionHandler.Acknowledge)
	contraventions.POST("/:id/dispute", internalmiddleware.RBAC(admin, employee), contraventionHandler.Dispute)
	contraventions.POST("/:id/complete-review", internalmiddleware.RBAC(admin, approver), contraventionHandler.CompleteReview)
	contraventions.POST("/:id/reject", internalmiddleware.RBAC(admin, approver), contraventionHandler.Reject)
	contraventions.POST("/:id/re-edit", internalmiddleware.RBAC(admin, submitter), contraventionHandler.ReEdit)
	contraventions.PATCH("/:id/points", internalmiddleware.RBAC(admin), contraventionHandler.AdjustPoints)
	contraventions.DELETE("/:id", internalmiddleware.RBAC(admin), contraventionHandler.Withdraw)

	types := secured.Group("/contravention-types")
	types.GET("", typeHandler.List)
	types.POST("", internalmiddleware.RBAC(admin), typeHandler.Create)
	types.PUT("/:name", internalmiddleware.RBAC(admin), typeHandler.Update)

	employees := secured.Group("/employees")
	employees.GET("", internalmiddleware.RBAC(admin, approver, submitter), employeeHandler.List)
	employees.POST("", internalmiddleware.RBAC(admin), employeeHandler.Create)
	employees.GET("/:id/points",
		internalmiddleware.RBAC(admin, approver, internalmiddleware.Self),
		internalmiddleware.Audit(auditRepo, logr, "POINTS_VIEW", "employee_points"),
		employeeHandler.Points,
	)
	employees.GET("/:id/escalations", internalmiddleware.RBAC(admin, approver, internalmiddleware.Self), employeeHandler.Escalations)
	employees.GET("/:id/training", internalmiddleware.RBAC(admin, approver, internalmiddleware.Self), trainingHandler.ListAssignments)

	escalations := secured.Group("/escalations")
	escalations.GET("", internalmiddleware.RBAC(admin, approver), escalationHandler.List)
	escalations.PATCH("/:id/complete-action", internalmiddleware.RBAC(admin, approver), escalationHandler.CompleteAction)
	escalations.POST("/recalculate", internalmiddleware.RBAC(admin), escalationHandler.Recalculate)

	training := secured.Group("/training")
	training.GET("/courses", trainingHandler.ListCourses)
	training.POST("/courses", internalmiddleware.RBAC(admin), trainingHandler.CreateCourse)
	training.POST("/assign", internalmiddleware.RBAC(admin, approver), trainingHandler.Assign)
	training.POST("/assignments/:id/complete", internalmiddleware.RBAC(admin), trainingHandler.CompleteAssignment)

	secured.POST("/points/fiscal-reset", internalmiddleware.RBAC(admin), fiscalHandler.Reset)
	secured.GET("/reports/standings", internalmiddleware.RBAC(admin, approver), reportHandler.Standings)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	if queue != nil {
		queue.Stop()
	}
}
