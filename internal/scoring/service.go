package scoring

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/cache"
	"github.com/safewalk/safewalk/internal/telemetry"
)

// ServiceConfig holds configuration for the scoring service.
type ServiceConfig struct {
	// Extractor is the visual-feature extraction provider.
	Extractor Extractor

	// Logger for service operations.
	Logger zerolog.Logger

	// Cache is the shared key-value store. Analyses are cached under the
	// "analysis:" namespace keyed by image URL, without a TTL: identical
	// imagery always yields an identical analysis.
	Cache cache.Store

	// Metrics records provider request and cache outcomes. Optional.
	Metrics *telemetry.ProviderMetrics
}

// Service scores images with caching and failure isolation.
type Service struct {
	extractor Extractor
	logger    zerolog.Logger
	cache     cache.Store
	metrics   *telemetry.ProviderMetrics
}

// NewService creates a new scoring service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Cache
	if store == nil {
		store = cache.NewMemoryStore(cache.MemoryStoreConfig{})
	}

	return &Service{
		extractor: cfg.Extractor,
		logger:    cfg.Logger,
		cache:     store,
		metrics:   cfg.Metrics,
	}
}

// Analyze scores the image at the given URL. Extraction failures are caught
// here and converted to the neutral fallback analysis; this method never
// returns an error so batch analysis stays resilient.
func (s *Service) Analyze(ctx context.Context, imageURL string) *Analysis {
	key := cache.PrefixAnalysis + imageURL

	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var analysis Analysis
		if err := json.Unmarshal(raw, &analysis); err == nil {
			s.logger.Debug().Str("image_url", imageURL).Msg("analysis cache hit")
			s.metrics.RecordCacheHit(s.extractor.Name(), "extract")
			return &analysis
		}
	} else if err != nil {
		s.logger.Warn().Err(err).Str("image_url", imageURL).Msg("analysis cache read failed")
	}

	s.metrics.RecordCacheMiss(s.extractor.Name(), "extract")

	extractStart := time.Now()
	features, err := s.extractor.Extract(ctx, imageURL)
	s.metrics.RecordRequest(s.extractor.Name(), "extract", time.Since(extractStart), err)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("image_url", imageURL).
			Str("provider", s.extractor.Name()).
			Msg("feature extraction failed, using neutral fallback score")
		return Fallback(err.Error())
	}

	analysis := Analyze(features)

	if raw, err := json.Marshal(analysis); err == nil {
		if err := s.cache.Put(ctx, key, raw, 0); err != nil {
			s.logger.Warn().Err(err).Str("image_url", imageURL).Msg("analysis cache write failed")
		}
	}

	return analysis
}
