package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/uni-course-api/api/swagger"
	"github.com/noah-isme/uni-course-api/internal/handler"
	"github.com/noah-isme/uni-course-api/internal/middleware"
	"github.com/noah-isme/uni-course-api/internal/repository"
	"github.com/noah-isme/uni-course-api/internal/service"
	"github.com/noah-isme/uni-course-api/pkg/cache"
	"github.com/noah-isme/uni-course-api/pkg/config"
	"github.com/noah-isme/uni-course-api/pkg/database"
	"github.com/noah-isme/uni-course-api/pkg/jobs"
	"github.com/noah-isme/uni-course-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/uni-course-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/uni-course-api/pkg/middleware/requestid"
)

// @title Uni Course API
// @version 1.0.0
// @description Course administration API with bulk student-import reconciliation
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, roster cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	// Repositories.
	identityRepo := repository.NewIdentityRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	stagingRepo := repository.NewStagingRepository(db)
	offeringRepo := repository.NewOfferingRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	txRunner := repository.NewTxRunner(db)

	// Services.
	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	offeringSvc := service.NewOfferingService(offeringRepo, validate, logr)
	rosterSvc := service.NewRosterService(enrollmentRepo, offeringRepo, cacheRepo, cfg.Roster.CacheTTL, logr)
	classifier := service.NewRowClassifier(identityRepo, enrollmentRepo, accountRepo, logr)
	importSvc := service.NewImportService(
		stagingRepo,
		offeringRepo,
		classifier,
		identityRepo,
		accountRepo,
		enrollmentRepo,
		txRunner,
		rosterSvc,
		metricsSvc,
		validate,
		logr,
		service.ImportConfig{
			SessionTTL: cfg.Import.SessionTTL,
			MaxRows:    cfg.Import.MaxRows,
		},
	)
	exportSvc := service.NewExportService(importSvc, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	offeringHandler := handler.NewOfferingHandler(offeringSvc, rosterSvc)
	importHandler := handler.NewImportHandler(importSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Scrape)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/offerings", offeringHandler.List)
	protected.POST("/offerings", offeringHandler.Create)
	protected.GET("/offerings/:offeringId", offeringHandler.Get)
	protected.GET("/offerings/:offeringId/roster", offeringHandler.Roster)

	protected.POST("/offerings/:offeringId/import/preview", importHandler.CreatePreview)
	protected.GET("/offerings/:offeringId/import/:sessionId", importHandler.GetSession)
	protected.PUT("/offerings/:offeringId/import/:sessionId/rows/:index", importHandler.EditRow)
	protected.DELETE("/offerings/:offeringId/import/:sessionId/rows/:index", importHandler.DeleteRow)
	protected.POST("/offerings/:offeringId/import/:sessionId/confirm", importHandler.Confirm)
	protected.GET("/offerings/:offeringId/import/:sessionId/export", importHandler.Export)

	// Background purge of abandoned import sessions.
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	purgeQueue := jobs.NewQueue("import-purge", func(ctx context.Context, job jobs.Job) error {
		_, err := importSvc.PurgeExpired(ctx)
		return err
	}, jobs.QueueConfig{Workers: cfg.Import.CleanupWorkers, Logger: logr})
	purgeQueue.Start(rootCtx)
	defer purgeQueue.Stop()

	go func() {
		ticker := time.NewTicker(cfg.Import.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rootCtx.Done():
				return
			case <-ticker.C:
				if err := purgeQueue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: "purge_expired_sessions"}); err != nil {
					logr.Sugar().Warnw("failed to enqueue purge job", "error", err)
				}
			}
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
