package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/safewalk/safewalk/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// RequestLimit is the number of requests allowed per window.
	RequestLimit int
	// WindowLength is the window duration.
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// GenerateRateLimit applies to full preview generation, which fans out
	// to paid provider APIs (10 req/min).
	GenerateRateLimit = RateLimitConfig{
		RequestLimit: 10,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to cheap read and fallback endpoints
	// (60 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 60,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter keyed on the client IP address. The
// real IP is extracted upstream by chi's RealIP middleware.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceededHandler),
	)
}

// rateLimitExceededHandler writes an RFC7807 Problem response when the rate
// limit is exceeded.
func rateLimitExceededHandler(w http.ResponseWriter, r *http.Request) {
	problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
	problem.Instance = r.URL.Path

	// httprate does not expose the exact reset time; use the window as a
	// conservative estimate.
	w.Header().Set("Retry-After", strconv.Itoa(60))

	problem.Write(w)
}
