package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/scholarhub/journal-req-api/api/swagger"
	"github.com/scholarhub/journal-req-api/internal/handler"
	"github.com/scholarhub/journal-req-api/internal/middleware"
	"github.com/scholarhub/journal-req-api/internal/models"
	"github.com/scholarhub/journal-req-api/internal/repository"
	"github.com/scholarhub/journal-req-api/internal/service"
	"github.com/scholarhub/journal-req-api/pkg/cache"
	"github.com/scholarhub/journal-req-api/pkg/config"
	"github.com/scholarhub/journal-req-api/pkg/database"
	"github.com/scholarhub/journal-req-api/pkg/export"
	"github.com/scholarhub/journal-req-api/pkg/logger"
	corsmiddleware "github.com/scholarhub/journal-req-api/pkg/middleware/cors"
	reqidmiddleware "github.com/scholarhub/journal-req-api/pkg/middleware/requestid"
)

const tokenIssuer = "journal-req-api"

// @title Journal Requirements API
// @version 1.0.0
// @description Tracks academic journal submission requirements
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	journalRepo := repository.NewJournalRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             tokenIssuer,
	})
	journalSvc := service.NewJournalService(journalRepo, userRepo, cacheSvc, validate, logr)
	exportSvc := service.NewExportService(journalSvc, export.NewCSVExporter(), export.NewPDFExporter(), logr)

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := authSvc.SeedAdmin(seedCtx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		logr.Sugar().Warnw("admin seeding failed", "error", err)
	}
	cancel()

	authHandler := handler.NewAuthHandler(authSvc)
	journalHandler := handler.NewJournalHandler(journalSvc, exportSvc)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	{
		secured.POST("/auth/logout", authHandler.Logout)
		secured.POST("/auth/change-password", authHandler.ChangePassword)
		secured.GET("/auth/me", authHandler.Me)

		journals := secured.Group("/journals")
		{
			journals.GET("", journalHandler.List)
			journals.POST("", journalHandler.Create)
			journals.GET("/:id", journalHandler.Get)
			journals.PUT("/:id", journalHandler.Update)
			journals.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), journalHandler.Delete)
			journals.POST("/:id/flag", journalHandler.Flag)
			journals.POST("/:id/comments", journalHandler.AddComment)
			journals.GET("/:id/export", journalHandler.Export)
		}

		secured.GET("/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Prometheus)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
