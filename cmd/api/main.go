// Package main provides the entrypoint for the SafeWalk API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api"
	"github.com/safewalk/safewalk/internal/api/middleware"
	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/cache"
	"github.com/safewalk/safewalk/internal/database"
	"github.com/safewalk/safewalk/internal/imagery"
	"github.com/safewalk/safewalk/internal/imagery/streetview"
	"github.com/safewalk/safewalk/internal/preview"
	"github.com/safewalk/safewalk/internal/provider/resilience"
	"github.com/safewalk/safewalk/internal/scoring"
	"github.com/safewalk/safewalk/internal/scoring/cloudvision"
	"github.com/safewalk/safewalk/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "safewalk-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SafeWalk API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	// Cache store: Postgres when DATABASE_URL is set, in-memory otherwise.
	// The in-memory store is fine for a single instance; previews, imagery
	// and analyses just won't survive a restart.
	dbConfig := database.ConfigFromEnv()
	var (
		store cache.Store
		pool  *pgxpool.Pool
	)
	if dbConfig.Configured() {
		p, err := database.Connect(ctx, dbConfig)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer p.Close()

		pgStore := cache.NewPostgresStore(p)
		if err := pgStore.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to migrate cache schema")
		}
		store = pgStore
		pool = p
		log.Info().Msg("postgres cache store initialized")
	} else {
		store = cache.NewMemoryStore(cache.MemoryStoreConfig{})
		log.Warn().Msg("DATABASE_URL not set, using in-memory cache store")
	}

	// Shared provider health registry
	registry := resilience.NewRegistry()

	// Street View imagery provider
	streetviewKey := os.Getenv("STREETVIEW_API_KEY")
	if streetviewKey == "" {
		log.Warn().Msg("STREETVIEW_API_KEY not set - imagery lookups will fail")
	}
	streetviewClient := streetview.NewClient(streetview.ClientConfig{
		APIKey:   streetviewKey,
		Registry: registry,
	})

	// Cloud Vision analysis provider
	visionKey := os.Getenv("VISION_API_KEY")
	if visionKey == "" {
		log.Warn().Msg("VISION_API_KEY not set - image analysis will fail")
	}
	visionClient := cloudvision.NewClient(cloudvision.ClientConfig{
		APIKey:   visionKey,
		Registry: registry,
	})

	// Domain services
	imageryService := imagery.NewService(imagery.ServiceConfig{
		Provider: streetviewClient,
		Logger:   log,
		Cache:    store,
		Metrics:  providerMetrics,
	})
	scoringService := scoring.NewService(scoring.ServiceConfig{
		Extractor: visionClient,
		Logger:    log,
		Cache:     store,
		Metrics:   providerMetrics,
	})
	previewService := preview.NewService(preview.ServiceConfig{
		Imagery: imageryService,
		Scorer:  scoringService,
		Cache:   store,
		Logger:  log,
	})
	log.Info().Msg("preview pipeline initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Previews:    previewService,
		Registry:    registry,
		DB:          pool,
	})

	// Create HTTP server. The write timeout must outlast the largest
	// generation budget a request can ask for (models.MaxTimeoutSeconds),
	// or the server kills the connection while the pipeline is still
	// inside its budget.
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(models.MaxTimeoutSeconds+15) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
