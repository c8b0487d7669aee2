package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/leave-decision-api/api/swagger"
	"github.com/noah-isme/leave-decision-api/internal/handler"
	internalmiddleware "github.com/noah-isme/leave-decision-api/internal/middleware"
	"github.com/noah-isme/leave-decision-api/internal/models"
	"github.com/noah-isme/leave-decision-api/internal/repository"
	"github.com/noah-isme/leave-decision-api/internal/service"
	"github.com/noah-isme/leave-decision-api/pkg/authz"
	"github.com/noah-isme/leave-decision-api/pkg/cache"
	"github.com/noah-isme/leave-decision-api/pkg/config"
	"github.com/noah-isme/leave-decision-api/pkg/database"
	"github.com/noah-isme/leave-decision-api/pkg/events"
	"github.com/noah-isme/leave-decision-api/pkg/export"
	"github.com/noah-isme/leave-decision-api/pkg/jobs"
	"github.com/noah-isme/leave-decision-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/leave-decision-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/leave-decision-api/pkg/middleware/requestid"
	"github.com/noah-isme/leave-decision-api/pkg/storage"
)

// @title Leave Decision API
// @version 1.0.0
// @description Leave requests, working day calculation and decision documents
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const decisionDownloadRoute = "/decisions/download/"

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	checks := map[string]handler.Pinger{"postgres": db}

	metricsSvc := service.NewMetricsService()
	if err := metricsSvc.WatchDB(db.DB, "postgres"); err != nil {
		logr.Warn("failed to export connection pool metrics", zap.Error(err))
	}

	var cacheRepo service.CacheRepository
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect redis", zap.Error(err))
		}
		redisRepo := repository.NewCacheRepository(client, logr)
		defer redisRepo.Close() //nolint:errcheck
		cacheRepo = redisRepo
		checks["redis"] = redisPinger{client: client}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Holidays.CacheTTL, logr, cfg.Redis.Enabled)

	enforcer, err := authz.New()
	if err != nil {
		logr.Fatal("failed to load permission matrix", zap.Error(err))
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		writer := events.NewKafkaWriter(cfg.Events.Brokers, cfg.Events.Topic)
		defer writer.Close() //nolint:errcheck
		publisher = events.NewKafkaPublisher(writer)
	}
	dispatcher := events.NewDispatcher(publisher, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
		RetryDelay: time.Second,
		Logger:     logr,
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	files, err := storage.NewLocalStorage(cfg.Decisions.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare decision storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Decisions.SignedURLSecret, cfg.Decisions.SignedURLTTL)
	renderer := export.NewDecisionRenderer(export.DecisionRendererConfig{
		FontPath:   cfg.Decisions.FontPath,
		FontFamily: cfg.Decisions.FontFamily,
	})

	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	leaveTypeRepo := repository.NewLeaveTypeRepository(db)
	holidayRepo := repository.NewHolidayRepository(db)
	headerRepo := repository.NewHeaderRepository(db)
	leaveRequestRepo := repository.NewLeaveRequestRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, employeeRepo, auditRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		EmailDomain:        cfg.Organization.EmailDomain,
	})
	userSvc := service.NewUserService(userRepo, auditRepo, validate, logr)
	directorySvc := service.NewDirectoryService(employeeRepo, directoryRepo, auditRepo, logr)
	leaveTypeSvc := service.NewLeaveTypeService(leaveTypeRepo, auditRepo, validate, logr)
	holidaySvc := service.NewHolidayService(holidayRepo, cacheSvc, auditRepo, validate, logr, cfg.Holidays.CacheTTL)
	headerSvc := service.NewHeaderService(headerRepo, auditRepo, validate, logr, cfg.Organization.DefaultHeader)
	leaveRequestSvc := service.NewLeaveRequestService(service.LeaveRequestDeps{
		Requests:     leaveRequestRepo,
		LeaveTypes:   leaveTypeRepo,
		Employees:    employeeRepo,
		Headers:      headerSvc,
		Calendar:     holidaySvc,
		Subordinates: directorySvc,
		Events:       dispatcher,
		Audit:        auditRepo,
		Metrics:      metricsSvc,
	}, validate, logr)
	decisionSvc := service.NewDecisionService(service.DecisionDeps{
		Requests:   leaveRequestRepo,
		LeaveTypes: leaveTypeRepo,
		Employees:  employeeRepo,
		Calendar:   holidaySvc,
		Approver:   leaveRequestSvc,
		Renderer:   renderer,
		Storage:    files,
		Signer:     signer,
		Events:     dispatcher,
		Audit:      auditRepo,
		Metrics:    metricsSvc,
	}, logr, service.DecisionServiceConfig{
		DownloadPath: strings.TrimRight(cfg.APIPrefix, "/") + decisionDownloadRoute,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	directoryHandler := handler.NewDirectoryHandler(directorySvc)
	leaveTypeHandler := handler.NewLeaveTypeHandler(leaveTypeSvc)
	holidayHandler := handler.NewHolidayHandler(holidaySvc)
	headerHandler := handler.NewHeaderHandler(headerSvc)
	leaveRequestHandler := handler.NewLeaveRequestHandler(leaveRequestSvc, decisionSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	perm := func(resource, action string) gin.HandlerFunc {
		return internalmiddleware.RequirePermission(enforcer, logr, resource, action)
	}
	admin := internalmiddleware.RequireRoles(models.RoleAdministrator)

	api := r.Group(cfg.APIPrefix)

	limiter := internalmiddleware.NewRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst)
	auth := api.Group("/auth")
	{
		public := auth.Group("", limiter.Middleware())
		public.POST("/register", authHandler.Register)
		public.POST("/login", authHandler.Login)
		public.POST("/refresh", authHandler.Refresh)

		secured := auth.Group("", internalmiddleware.JWT(authSvc))
		secured.POST("/logout", authHandler.Logout)
		secured.POST("/change-password", authHandler.ChangePassword)
		secured.GET("/me", authHandler.Me)
	}

	// Possession of a signed token is the credential for downloads; a bearer
	// token, when sent, only attributes the download in the request log.
	api.GET(decisionDownloadRoute+":token", internalmiddleware.OptionalJWT(authSvc), leaveRequestHandler.Download)

	protected := api.Group("", internalmiddleware.JWT(authSvc))

	users := protected.Group("/users")
	users.GET("", perm(authz.ResourceUser, authz.ActionView), userHandler.List)
	users.GET("/:id", internalmiddleware.RBAC(string(models.RoleAdministrator), "SELF"), userHandler.Get)
	users.PUT("/:id/role", admin, userHandler.AssignRole)
	users.DELETE("/:id", admin, userHandler.Deactivate)

	employees := protected.Group("/employees")
	employees.GET("", perm(authz.ResourceEmployee, authz.ActionView), directoryHandler.ListEmployees)
	employees.GET("/:id", directoryHandler.GetEmployee)

	departments := protected.Group("/departments")
	departments.GET("", perm(authz.ResourceDepartment, authz.ActionView), directoryHandler.ListDepartments)
	departments.PUT("/:id/head", perm(authz.ResourceDepartment, authz.ActionChange), directoryHandler.AppointHead)

	leaveTypes := protected.Group("/leave-types")
	leaveTypes.GET("", perm(authz.ResourceLeaveType, authz.ActionView), leaveTypeHandler.List)
	leaveTypes.POST("", perm(authz.ResourceLeaveType, authz.ActionAdd), leaveTypeHandler.Create)
	leaveTypes.PUT("/:id", perm(authz.ResourceLeaveType, authz.ActionChange), leaveTypeHandler.Update)
	leaveTypes.DELETE("/:id", perm(authz.ResourceLeaveType, authz.ActionDelete), leaveTypeHandler.Delete)

	holidays := protected.Group("/holidays")
	holidays.GET("", perm(authz.ResourceHoliday, authz.ActionView), holidayHandler.List)
	holidays.GET("/working-days", perm(authz.ResourceHoliday, authz.ActionView), holidayHandler.WorkingDays)
	holidays.POST("", perm(authz.ResourceHoliday, authz.ActionAdd), holidayHandler.Create)
	holidays.PUT("/:id", perm(authz.ResourceHoliday, authz.ActionChange), holidayHandler.Update)
	holidays.DELETE("/:id", perm(authz.ResourceHoliday, authz.ActionDelete), holidayHandler.Delete)

	headers := protected.Group("/headers")
	headers.GET("", perm(authz.ResourceHeader, authz.ActionView), headerHandler.History)
	headers.GET("/active", perm(authz.ResourceHeader, authz.ActionView), headerHandler.Active)
	headers.POST("", perm(authz.ResourceHeader, authz.ActionAdd), headerHandler.Publish)

	requests := protected.Group("/leave-requests")
	requests.POST("", perm(authz.ResourceLeaveRequest, authz.ActionAdd), leaveRequestHandler.Create)
	requests.GET("/mine", leaveRequestHandler.ListMine)
	requests.GET("/subordinates", internalmiddleware.RequireRoles(models.RoleDepartmentHead, models.RoleAdministrator), leaveRequestHandler.ListSubordinates)
	requests.GET("/export", perm(authz.ResourceLeaveRequest, authz.ActionChange), leaveRequestHandler.Export)
	requests.GET("", perm(authz.ResourceLeaveRequest, authz.ActionChange), leaveRequestHandler.ListAll)
	requests.GET("/:id", perm(authz.ResourceLeaveRequest, authz.ActionView), leaveRequestHandler.Get)
	requests.GET("/:id/decision", perm(authz.ResourceLeaveRequest, authz.ActionView), leaveRequestHandler.DecisionLink)
	requests.POST("/:id/approve", perm(authz.ResourceLeaveRequest, authz.ActionChange), leaveRequestHandler.Approve)
	requests.POST("/:id/reject", perm(authz.ResourceLeaveRequest, authz.ActionChange), leaveRequestHandler.Reject)
	requests.POST("/:id/decision", perm(authz.ResourceLeaveRequest, authz.ActionChange), leaveRequestHandler.IssueDecision)
	requests.POST("/:id/approve-and-issue", perm(authz.ResourceLeaveRequest, authz.ActionChange), leaveRequestHandler.ApproveAndIssue)
	requests.DELETE("/:id", perm(authz.ResourceLeaveRequest, authz.ActionDelete), leaveRequestHandler.Delete)

	protected.GET("/metrics/snapshot", admin, metricsHandler.Snapshot)

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

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
