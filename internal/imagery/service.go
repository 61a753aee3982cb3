package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/cache"
	"github.com/safewalk/safewalk/internal/sampling"
	"github.com/safewalk/safewalk/internal/telemetry"
)

// ProgressFunc reports per-point resolution progress as (current, total).
type ProgressFunc func(current, total int)

// ServiceConfig holds configuration for the imagery service.
type ServiceConfig struct {
	// Provider is the street-level imagery provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// Cache is the shared key-value store. Resolved imagery is cached under
	// the "imagery:" namespace without a TTL; imagery rarely changes.
	Cache cache.Store

	// RateDelay is the pause after each network-bound lookup, as backpressure
	// against the provider's rate limits (default: 100ms). Cache hits skip it.
	RateDelay time.Duration

	// Metrics records provider request and cache outcomes. Optional.
	Metrics *telemetry.ProviderMetrics
}

// Service resolves sampled points to image descriptors with caching.
type Service struct {
	provider  Provider
	logger    zerolog.Logger
	cache     cache.Store
	rateDelay time.Duration
	metrics   *telemetry.ProviderMetrics
}

// cachedImage is the cache payload for a resolved point. Per-route fields
// (index, distance, type) are not cached; they are re-applied from the
// sampled point on every hit.
type cachedImage struct {
	URL         string `json:"url"`
	PanoID      string `json:"panoId,omitempty"`
	CaptureDate string `json:"captureDate,omitempty"`
}

// NewService creates a new imagery service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Cache
	if store == nil {
		store = cache.NewMemoryStore(cache.MemoryStoreConfig{})
	}

	rateDelay := cfg.RateDelay
	if rateDelay == 0 {
		rateDelay = 100 * time.Millisecond
	}

	return &Service{
		provider:  cfg.Provider,
		logger:    cfg.Logger,
		cache:     store,
		rateDelay: rateDelay,
		metrics:   cfg.Metrics,
	}
}

// ResolveBatch resolves all points in order, reporting progress after each.
// Individual lookup failures degrade to unavailable descriptors; the only
// errors returned are ErrNoProvider and the context's, so a cancelled or
// expired context aborts the batch.
func (s *Service) ResolveBatch(ctx context.Context, points []sampling.Point, onProgress ProgressFunc) ([]*Descriptor, error) {
	if s.provider == nil {
		return nil, ErrNoProvider
	}

	descriptors := make([]*Descriptor, 0, len(points))

	for i, pt := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		desc, hit := s.Resolve(ctx, pt)
		descriptors = append(descriptors, desc)

		if onProgress != nil {
			onProgress(i+1, len(points))
		}

		if !hit {
			if err := s.pause(ctx); err != nil {
				return nil, err
			}
		}
	}

	return descriptors, nil
}

// Resolve resolves a single sampled point. The second return value reports
// whether the point was served from cache. Lookup failures are treated as
// unavailable imagery, never returned as errors: one missing point must not
// abort a batch.
func (s *Service) Resolve(ctx context.Context, pt sampling.Point) (*Descriptor, bool) {
	key := s.cacheKey(pt)

	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var img cachedImage
		if err := json.Unmarshal(raw, &img); err == nil {
			s.logger.Debug().
				Str("cache_key", key).
				Int("index", pt.Index).
				Msg("imagery cache hit")
			s.metrics.RecordCacheHit(s.provider.Name(), "lookup")
			return s.descriptorFor(pt, true, img), true
		}
	} else if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("imagery cache read failed")
	}

	s.metrics.RecordCacheMiss(s.provider.Name(), "lookup")

	lookupStart := time.Now()
	meta, err := s.provider.Lookup(ctx, pt.Coordinate)
	s.metrics.RecordRequest(s.provider.Name(), "lookup", time.Since(lookupStart), err)
	if err != nil {
		s.logger.Warn().Err(err).
			Float64("lat", pt.Coordinate.Lat).
			Float64("lon", pt.Coordinate.Lon).
			Str("provider", s.provider.Name()).
			Msg("imagery lookup failed, treating point as unavailable")
		return s.descriptorFor(pt, false, cachedImage{}), false
	}

	if !meta.Available {
		// Negative results are not cached so later retries can succeed.
		return s.descriptorFor(pt, false, cachedImage{}), false
	}

	img := cachedImage{
		URL:         s.provider.ImageURL(pt.Coordinate, headingOrZero(pt.Heading)),
		PanoID:      meta.PanoID,
		CaptureDate: meta.CaptureDate,
	}

	if raw, err := json.Marshal(img); err == nil {
		if err := s.cache.Put(ctx, key, raw, 0); err != nil {
			s.logger.Warn().Err(err).Str("cache_key", key).Msg("imagery cache write failed")
		}
	}

	return s.descriptorFor(pt, true, img), false
}

// Describe builds a descriptor for a point without a metadata lookup. The
// image URL is constructed directly from the provider, so availability is
// assumed rather than verified. Used by degraded previews that must not
// touch the network.
func (s *Service) Describe(pt sampling.Point) *Descriptor {
	img := cachedImage{
		URL: s.provider.ImageURL(pt.Coordinate, headingOrZero(pt.Heading)),
	}
	return s.descriptorFor(pt, true, img)
}

// cacheKey builds the point cache key from the coordinate rounded to six
// decimals plus the heading.
func (s *Service) cacheKey(pt sampling.Point) string {
	heading := "-"
	if pt.Heading != nil {
		heading = fmt.Sprintf("%.0f", *pt.Heading)
	}
	return fmt.Sprintf("%s%.6f,%.6f,%s", cache.PrefixImagery, pt.Coordinate.Lat, pt.Coordinate.Lon, heading)
}

func (s *Service) descriptorFor(pt sampling.Point, available bool, img cachedImage) *Descriptor {
	return &Descriptor{
		Index:             pt.Index,
		Coordinate:        pt.Coordinate,
		DistanceFromStart: pt.DistanceFromStart,
		Heading:           pt.Heading,
		Type:              pt.Type,
		IsKeyPoint:        pt.IsKeyPoint,
		Available:         available,
		URL:               img.URL,
		PanoID:            img.PanoID,
		CaptureDate:       img.CaptureDate,
	}
}

// pause sleeps for the rate-limit delay, aborting early if the context ends.
func (s *Service) pause(ctx context.Context) error {
	timer := time.NewTimer(s.rateDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func headingOrZero(h *float64) float64 {
	if h == nil {
		return 0
	}
	return *h
}
