package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codeconnects/backend/internal/config"
	"github.com/codeconnects/backend/internal/database"
	"github.com/codeconnects/backend/internal/handlers"
	"github.com/codeconnects/backend/internal/kernel"
	"github.com/codeconnects/backend/internal/logger"
	"github.com/codeconnects/backend/internal/middleware"
	"github.com/codeconnects/backend/internal/telemetry"
	"github.com/codeconnects/backend/internal/websocket"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "codeconnects-api"

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Log.Info("=== CodeConnects server starting ===", zap.String("environment", cfg.Environment))

	if err := cfg.Validate(); err != nil {
		logger.FatalWithFields("Invalid configuration", err)
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	tp, err := telemetry.InitTracer(ctx, telemetry.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Enabled:      cfg.OTLPEndpoint != "",
		SamplingRate: cfg.SamplingRate,
	})
	if err != nil {
		logger.WarnWithFields("Tracing disabled", err)
	}

	k, err := kernel.Bootstrap(ctx, cfg)
	if err != nil {
		logger.FatalWithFields("Failed to initialize dependencies", err)
	}
	k.OnCleanup(func(ctx context.Context) error { return telemetry.Shutdown(ctx, tp) })

	wsHandler := websocket.NewHandler(k.Hub(), k.Auth())
	if cfg.IsDevelopment() {
		wsHandler = websocket.NewHandler(k.Hub(), k.Auth(), "*")
	}

	h := handlers.NewHandlers(k.Registry(), k.Auth())
	h.SetWebSocketHandler(wsHandler)
	h.SetMessaging(k.Messages())
	h.EnableDevTokens(cfg.IsDevelopment())
	if db := k.DB(); db != nil {
		h.SetHealthCheck(func(context.Context) error { return database.Health(db) })
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.TracingMiddleware(serviceName)...)
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.GinLoggerMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	redisClient := k.Redis()
	h.RegisterRoutes(r, handlers.RouteLimits{
		Read:  middleware.RedisRateLimitMiddleware(redisClient, middleware.DefaultRateLimitConfig()),
		Write: middleware.RedisRateLimitMiddleware(redisClient, middleware.WriteRateLimitConfig()),
		Auth:  middleware.RedisRateLimitMiddleware(redisClient, middleware.AuthRateLimitConfig()),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("CodeConnects backend listening", zap.String("port", cfg.Port), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.FatalWithFields("Failed to start server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := wsHandler.Shutdown(shutdownCtx); err != nil {
		logger.WarnWithFields("WebSocket shutdown warning", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithFields("Server forced to shutdown", err)
	}
	if err := k.Cleanup(shutdownCtx); err != nil {
		logger.WarnWithFields("Cleanup finished with errors", err)
	}

	logger.Log.Info("Server exited")
}
