package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lanbeam/lanbeam/internal/blob"
	"github.com/lanbeam/lanbeam/internal/ingest"
	"github.com/lanbeam/lanbeam/internal/presence"
	"github.com/lanbeam/lanbeam/internal/ratelimit"
	"github.com/lanbeam/lanbeam/internal/session"
	"github.com/lanbeam/lanbeam/pkg/config"
)

func main() {
	// Load configuration
	cfg := config.LoadFromEnv()

	// Setup logging
	setupLogging(cfg.Logging)

	log.Info().Msg("starting lanbeam server")

	// Initialize the blob store
	store, err := blob.New(cfg.Storage.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize blob store")
	}

	// Initialize services
	pipeline := ingest.New(store)
	registry := presence.New(cfg.Presence.Timeout)
	guard := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	intervals := session.Intervals{
		Heartbeat:     cfg.Session.HeartbeatInterval,
		ClientTimeout: cfg.Session.ClientTimeout,
		Broadcast:     cfg.Session.BroadcastInterval,
	}

	// Setup HTTP server
	router := setupRouter(store, pipeline, registry, guard, intervals)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	} else {
		log.Info().Msg("server shutdown complete")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func setupRouter(store *blob.Store, pipeline *ingest.Pipeline, registry *presence.Registry, guard *ratelimit.Guard, intervals session.Intervals) *gin.Engine {
	// Set Gin mode based on environment
	if zerolog.GlobalLevel() == zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "lanbeam",
			"devices": registry.Count(),
			"time":    time.Now().UTC(),
		})
	})

	// API routes, all behind the shared admission guard
	api := router.Group("/api")
	api.Use(rateLimitMiddleware(guard))
	{
		api.POST("/upload", handleUpload(pipeline))
		api.GET("/files", handleListFiles(store))
		api.GET("/files/:id", handleDownload(store))
		api.GET("/ws", session.Handler(registry, intervals))
	}

	return router
}
