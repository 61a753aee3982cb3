// Package api provides the HTTP API for SafeWalk.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/api/handler"
	"github.com/safewalk/safewalk/internal/api/middleware"
	"github.com/safewalk/safewalk/internal/preview"
	"github.com/safewalk/safewalk/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Previews    *preview.Service
	Registry    *resilience.Registry
	DB          *pgxpool.Pool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Set default service name if not provided
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "safewalk-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type
	r.Use(middleware.RequireJSON)          // Reject non-JSON bodies

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.DB)
	previewHandler := handler.NewPreviewHandler(cfg.Previews, cfg.Logger)

	// Create rate limit middleware for different endpoint categories
	generateRateLimit := middleware.RateLimitByIP(middleware.GenerateRateLimit) // 10 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 60 req/min

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Preview generation - expensive compute, strict rate limiting
		r.With(generateRateLimit).Post("/previews:generate", previewHandler.GeneratePreview)

		// Fallback previews are cheap (no provider calls)
		r.With(standardRateLimit).Post("/previews:fallback", previewHandler.FallbackPreview)

		// Cached preview lookup
		r.With(standardRateLimit).Get("/previews/cached", previewHandler.GetCachedPreview)

		// Cache management
		r.With(standardRateLimit).Delete("/caches", previewHandler.ClearCaches)
	})

	return r
}
