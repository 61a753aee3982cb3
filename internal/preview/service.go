package preview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/safewalk/safewalk/internal/cache"
	"github.com/safewalk/safewalk/internal/imagery"
	"github.com/safewalk/safewalk/internal/sampling"
	"github.com/safewalk/safewalk/internal/scoring"
	"github.com/safewalk/safewalk/pkg/geo"
)

// Generation defaults.
const (
	DefaultSamplingDistance = 200
	DefaultMaxPoints        = 10
	DefaultTimeout          = 30 * time.Second

	// PreviewTTL is how long a cached preview stays valid, measured from its
	// GeneratedAt timestamp, never from access time.
	PreviewTTL = 24 * time.Hour

	// minAnalysisBudget is the floor of the per-image analysis time budget.
	minAnalysisBudget = 3 * time.Second

	// Fallback previews sample coarser and cap harder than full ones.
	fallbackSamplingDistance = 300
	fallbackMaxPoints        = 5
)

// GenerateOptions holds per-call options for preview generation.
type GenerateOptions struct {
	// SamplingDistance is the sampling interval in meters (default: 200).
	SamplingDistance float64

	// MaxPoints caps the number of sampled points (default: 10). Above the
	// cap the sampled sequence is decimated deterministically.
	MaxPoints int

	// Timeout is the wall-clock budget for the whole generation
	// (default: 30s).
	Timeout time.Duration

	// OnProgress receives stage and per-item progress events.
	OnProgress ProgressFunc
}

// ServiceConfig holds configuration for the preview service.
type ServiceConfig struct {
	// Imagery resolves sampled points to image descriptors.
	Imagery *imagery.Service

	// Scorer analyzes resolved images.
	Scorer *scoring.Service

	// Cache is the shared key-value store for the preview namespace.
	Cache cache.Store

	// Logger for service operations.
	Logger zerolog.Logger
}

// Service generates route safety previews. The pipeline is single-threaded
// per request; concurrent requests for different routes share only the
// underlying caches.
type Service struct {
	imagery *imagery.Service
	scorer  *scoring.Service
	cache   cache.Store
	logger  zerolog.Logger
}

// NewService creates a new preview service.
func NewService(cfg ServiceConfig) *Service {
	store := cfg.Cache
	if store == nil {
		store = cache.NewMemoryStore(cache.MemoryStoreConfig{})
	}

	return &Service{
		imagery: cfg.Imagery,
		scorer:  cfg.Scorer,
		cache:   store,
		logger:  cfg.Logger,
	}
}

// Generate runs the full preview pipeline for a route. A live cached preview
// short-circuits everything; otherwise the route is sampled, imagery is
// fetched under a hard batch timeout, each available image is analyzed under
// a soft per-image budget, and the results are aggregated, cached, and
// returned.
func (s *Service) Generate(ctx context.Context, coords []geo.Coordinate, opts GenerateOptions) (*RoutePreview, error) {
	if len(coords) < 2 {
		return nil, ErrInvalidRoute
	}
	for _, c := range coords {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRoute, err)
		}
	}

	if opts.SamplingDistance <= 0 {
		opts.SamplingDistance = DefaultSamplingDistance
	}
	if opts.MaxPoints <= 0 {
		opts.MaxPoints = DefaultMaxPoints
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if cached := s.GetCached(ctx, coords); cached != nil {
		s.logger.Debug().Msg("serving cached route preview")
		return cached, nil
	}

	start := time.Now()
	deadline := start.Add(opts.Timeout)

	// Stage 1: sampling
	points, err := sampling.Sample(coords, opts.SamplingDistance)
	if err != nil {
		return nil, err
	}
	points = sampling.Decimate(points, opts.MaxPoints)
	s.emit(opts.OnProgress, Progress{Stage: StageSampling, Fraction: 0.1})

	// Stage 2: fetching, raced against the remaining budget. All-or-nothing:
	// a timeout here fails the whole preview.
	descriptors, err := s.fetchBatch(ctx, deadline, points, opts.OnProgress)
	if err != nil {
		return nil, err
	}

	available := make([]*imagery.Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Available {
			available = append(available, d)
		}
	}
	if len(available) == 0 {
		return nil, ErrNoImagery
	}

	// Stage 3: analyzing, one image at a time so per-image budgets never
	// overlap. Best-effort: failures and timeouts degrade single images.
	analyses := s.analyzeBatch(ctx, deadline, available, opts.OnProgress)

	// Stage 4: finalizing
	s.emit(opts.OnProgress, Progress{Stage: StageFinalizing, Fraction: 0.95})

	previewPoints := make([]Point, 0, len(descriptors))
	for _, d := range descriptors {
		previewPoints = append(previewPoints, Point{
			Descriptor: *d,
			Analysis:   analyses[d.Index],
		})
	}

	result := &RoutePreview{
		RouteCoordinates: coords,
		SampledPoints:    previewPoints,
		Statistics:       Aggregate(previewPoints),
		Metadata: &Metadata{
			GeneratedAt:      time.Now(),
			TotalPoints:      len(points),
			AnalyzedPoints:   len(analyses),
			SamplingDistance: opts.SamplingDistance,
			GenerationTimeMS: time.Since(start).Milliseconds(),
		},
	}

	s.cachePreview(ctx, coords, result)

	s.logger.Info().
		Int("total_points", len(points)).
		Int("analyzed_points", len(analyses)).
		Float64("overall_score", result.Statistics.OverallSafetyScore).
		Dur("generation_time", time.Since(start)).
		Msg("route preview generated")

	return result, nil
}

// Fallback generates a degraded preview without any safety scoring: coarser
// sampling, at most five points, image URLs built without metadata lookups.
// It performs no network work, so it succeeds even when the full pipeline
// cannot.
func (s *Service) Fallback(ctx context.Context, coords []geo.Coordinate) (*RoutePreview, error) {
	if len(coords) < 2 {
		return nil, ErrInvalidRoute
	}

	start := time.Now()

	points, err := sampling.Sample(coords, fallbackSamplingDistance)
	if err != nil {
		return nil, err
	}
	points = sampling.Decimate(points, fallbackMaxPoints)

	previewPoints := make([]Point, 0, len(points))
	for _, pt := range points {
		desc := s.imagery.Describe(pt)
		previewPoints = append(previewPoints, Point{Descriptor: *desc})
	}

	stats := neutralStatistics()
	stats.Note = "Street-level safety analysis was skipped for this preview"

	s.logger.Info().
		Int("points", len(points)).
		Msg("fallback route preview generated")

	return &RoutePreview{
		RouteCoordinates: coords,
		SampledPoints:    previewPoints,
		Statistics:       stats,
		Metadata: &Metadata{
			GeneratedAt:      time.Now(),
			TotalPoints:      len(points),
			SamplingDistance: fallbackSamplingDistance,
			GenerationTimeMS: time.Since(start).Milliseconds(),
		},
	}, nil
}

// GetCached returns the cached preview for a route, or nil. Expiry is
// computed from the preview's GeneratedAt timestamp; stale entries are
// evicted on read.
func (s *Service) GetCached(ctx context.Context, coords []geo.Coordinate) *RoutePreview {
	if len(coords) < 2 {
		return nil
	}

	key := previewKey(coords)
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("preview cache read failed")
		return nil
	}
	if !ok {
		return nil
	}

	var cached RoutePreview
	if err := json.Unmarshal(raw, &cached); err != nil {
		s.logger.Warn().Err(err).Str("cache_key", key).Msg("discarding corrupt cached preview")
		_ = s.cache.Delete(ctx, key)
		return nil
	}

	if cached.Metadata == nil || time.Since(cached.Metadata.GeneratedAt) > PreviewTTL {
		_ = s.cache.Delete(ctx, key)
		return nil
	}

	return &cached
}

// ClearAll removes every cached preview, imagery resolution, and per-image
// analysis. The three namespaces are independently keyed but must be cleared
// together.
func (s *Service) ClearAll(ctx context.Context) error {
	var firstErr error
	total := 0
	for _, prefix := range []string{cache.PrefixPreview, cache.PrefixImagery, cache.PrefixAnalysis} {
		removed, err := s.cache.DeletePrefix(ctx, prefix)
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("clear %q namespace: %w", prefix, err)
		}
		total += removed
	}

	s.logger.Info().Int("entries_removed", total).Msg("cleared all preview caches")
	return firstErr
}

// fetchBatch resolves imagery for all points, racing the batch against the
// generation deadline.
func (s *Service) fetchBatch(ctx context.Context, deadline time.Time, points []sampling.Point, onProgress ProgressFunc) ([]*imagery.Descriptor, error) {
	fetchCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	type fetchResult struct {
		descriptors []*imagery.Descriptor
		err         error
	}

	done := make(chan fetchResult, 1)
	go func() {
		descriptors, err := s.imagery.ResolveBatch(fetchCtx, points, func(current, total int) {
			s.emit(onProgress, Progress{
				Stage:    StageFetching,
				Current:  current,
				Total:    total,
				Fraction: 0.1 + 0.4*float64(current)/float64(total),
			})
		})
		done <- fetchResult{descriptors, err}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			if errors.Is(result.err, context.DeadlineExceeded) {
				return nil, ErrFetchTimeout
			}
			return nil, result.err
		}
		return result.descriptors, nil
	case <-fetchCtx.Done():
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrFetchTimeout
		}
		return nil, fetchCtx.Err()
	}
}

// analyzeBatch scores each available image sequentially under a per-image
// budget of max(3s, remaining/left), recomputed every iteration against the
// global deadline. Returns analyses keyed by point index.
func (s *Service) analyzeBatch(ctx context.Context, deadline time.Time, available []*imagery.Descriptor, onProgress ProgressFunc) map[int]*scoring.Analysis {
	analyses := make(map[int]*scoring.Analysis, len(available))

	for i, desc := range available {
		if time.Now().After(deadline) {
			s.logger.Warn().
				Int("analyzed", i).
				Int("total", len(available)).
				Msg("preview timeout reached mid-analysis, keeping partial results")
			break
		}

		budget := time.Until(deadline) / time.Duration(len(available)-i)
		if budget < minAnalysisBudget {
			budget = minAnalysisBudget
		}

		analyses[desc.Index] = s.analyzeOne(ctx, desc.URL, budget)

		s.emit(onProgress, Progress{
			Stage:    StageAnalyzing,
			Current:  i + 1,
			Total:    len(available),
			Fraction: 0.5 + 0.4*float64(i+1)/float64(len(available)),
		})
	}

	return analyses
}

// analyzeOne races a single image analysis against its budget. A timeout
// degrades to the neutral fallback analysis, same as any extraction failure.
func (s *Service) analyzeOne(ctx context.Context, imageURL string, budget time.Duration) *scoring.Analysis {
	imgCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan *scoring.Analysis, 1)
	go func() {
		done <- s.scorer.Analyze(imgCtx, imageURL)
	}()

	select {
	case analysis := <-done:
		return analysis
	case <-imgCtx.Done():
		// The abandoned goroutine resolves late and is discarded.
		return scoring.Fallback("analysis timed out")
	}
}

func (s *Service) cachePreview(ctx context.Context, coords []geo.Coordinate, p *RoutePreview) {
	raw, err := json.Marshal(p)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode preview for caching")
		return
	}
	if err := s.cache.Put(ctx, previewKey(coords), raw, PreviewTTL); err != nil {
		s.logger.Warn().Err(err).Msg("preview cache write failed")
	}
}

func (s *Service) emit(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}

// previewKey builds the preview cache key from the rounded route endpoints.
func previewKey(coords []geo.Coordinate) string {
	start := coords[0]
	end := coords[len(coords)-1]
	return fmt.Sprintf("%s%.4f,%.4f:%.4f,%.4f",
		cache.PrefixPreview, start.Lat, start.Lon, end.Lat, end.Lon)
}
