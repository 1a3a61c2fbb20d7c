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

	_ "github.com/opsgrid/patchwin-api/api/swagger"
	"github.com/opsgrid/patchwin-api/internal/handler"
	"github.com/opsgrid/patchwin-api/internal/middleware"
	"github.com/opsgrid/patchwin-api/internal/models"
	"github.com/opsgrid/patchwin-api/internal/platform"
	"github.com/opsgrid/patchwin-api/internal/repository"
	"github.com/opsgrid/patchwin-api/internal/service"
	"github.com/opsgrid/patchwin-api/pkg/cache"
	"github.com/opsgrid/patchwin-api/pkg/config"
	"github.com/opsgrid/patchwin-api/pkg/database"
	"github.com/opsgrid/patchwin-api/pkg/jobs"
	"github.com/opsgrid/patchwin-api/pkg/logger"
	"github.com/opsgrid/patchwin-api/pkg/mailer"
	corsmiddleware "github.com/opsgrid/patchwin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/opsgrid/patchwin-api/pkg/middleware/requestid"
)

// @title PatchWin API
// @version 0.1.0
// @description Maintenance window realignment service for patch cycles
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	runRepo := repository.NewRunRepository(db)
	operatorRepo := repository.NewOperatorRepository(db)
	reportCache := repository.NewReportCache(redisClient)

	mail := mailer.New(cfg.SMTP)
	mailQueue := jobs.NewQueue("report_mail", func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(service.MailPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		return mail.SendHTML(payload.Recipient, payload.Subject, payload.HTMLBody)
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	mailQueue.Start(ctx)
	defer mailQueue.Stop()

	validate := validator.New()
	metrics := service.NewMetricsService()

	authSvc := service.NewAuthService(operatorRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	platformClient := platform.NewClient(cfg.Platform)
	realignSvc := service.NewRealignService(platformClient, runRepo, mailQueue, reportCache, metrics, validate, logr)
	realignSvc.StartAutoRun(ctx, cfg.Realign, time.Hour)

	authHandler := handler.NewAuthHandler(authSvc)
	realignHandler := handler.NewRealignHandler(realignSvc, reportCache)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := r.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	realign := r.Group("/realign", middleware.JWT(authSvc))
	realign.POST("/runs", middleware.RequireRoles(models.RoleAdmin), realignHandler.TriggerRun)
	realign.GET("/runs", realignHandler.ListRuns)
	realign.GET("/runs/:id", realignHandler.GetRun)
	realign.GET("/runs/:id/report", realignHandler.GetReport)
	realign.GET("/runs/:id/export", realignHandler.Export)
	realign.GET("/report/latest", realignHandler.LatestReport)
	realign.GET("/preview", realignHandler.Preview)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
