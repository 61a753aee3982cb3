// Package preview orchestrates the route safety preview pipeline: sampling,
// imagery resolution, per-image scoring, and route-level aggregation.
package preview

import (
	"errors"
	"time"

	"github.com/safewalk/safewalk/internal/imagery"
	"github.com/safewalk/safewalk/internal/scoring"
	"github.com/safewalk/safewalk/pkg/geo"
)

// Sentinel errors for preview generation.
var (
	// ErrInvalidRoute indicates the route has fewer than two coordinates.
	ErrInvalidRoute = errors.New("route needs at least two coordinates")
	// ErrFetchTimeout indicates the imagery fetch stage exceeded the preview
	// timeout. The whole generation fails; callers may fall back.
	ErrFetchTimeout = errors.New("imagery fetch timed out")
	// ErrNoImagery indicates no sampled point had street-level imagery.
	ErrNoImagery = errors.New("no imagery available along this route")
)

// Stage identifies a pipeline stage for progress reporting. Stages are
// delivered in order: sampling, fetching, analyzing, finalizing.
type Stage string

const (
	StageSampling   Stage = "sampling"
	StageFetching   Stage = "fetching"
	StageAnalyzing  Stage = "analyzing"
	StageFinalizing Stage = "finalizing"
)

// Progress is one progress event. Current and Total are zero for stages
// without per-item updates; Fraction is an overall 0-1 estimate.
type Progress struct {
	Stage    Stage
	Current  int
	Total    int
	Fraction float64
}

// ProgressFunc consumes progress events. Callbacks run synchronously on the
// generating goroutine and should return quickly.
type ProgressFunc func(Progress)

// Point is one sampled point of a preview, carrying its resolved imagery and,
// once scored, its analysis. Points without imagery keep a nil Analysis.
type Point struct {
	imagery.Descriptor
	Analysis *scoring.Analysis `json:"analysis,omitempty"`
}

// LocatedConcern is a concern annotated with where on the route it applies.
type LocatedConcern struct {
	Concern  string `json:"concern"`
	Location string `json:"location"`
	Index    int    `json:"index"`
}

// ProblemSegment is a sampled point whose overall score fell below the
// problem threshold.
type ProblemSegment struct {
	Index      int      `json:"index"`
	Distance   int      `json:"distance"`
	Score      float64  `json:"score"`
	MainIssues []string `json:"mainIssues"`
}

// ScoreBreakdown holds the five averaged sub-scores of a route.
type ScoreBreakdown struct {
	Lighting     float64 `json:"lighting"`
	Sidewalk     float64 `json:"sidewalk"`
	CrowdDensity float64 `json:"crowdDensity"`
	Isolation    float64 `json:"isolation"`
	BuildingType float64 `json:"buildingType"`
}

// RouteStatistics aggregates all per-point analyses of one preview. It is
// recomputed wholesale on each aggregation, never updated incrementally.
type RouteStatistics struct {
	OverallSafetyScore float64          `json:"overallSafetyScore"`
	Grade              scoring.Grade    `json:"grade"`
	Color              string           `json:"color"`
	Breakdown          ScoreBreakdown   `json:"breakdown"`
	Concerns           []LocatedConcern `json:"concerns"`
	Positives          []string         `json:"positives"`
	Recommendations    []string         `json:"recommendations"`
	ProblemSegments    []ProblemSegment `json:"problemSegments"`
	SegmentCount       int              `json:"segmentCount"`
	Note               string           `json:"note,omitempty"`
}

// Metadata describes how a preview was generated.
type Metadata struct {
	GeneratedAt      time.Time `json:"generatedAt"`
	TotalPoints      int       `json:"totalPoints"`
	AnalyzedPoints   int       `json:"analyzedPoints"`
	SamplingDistance float64   `json:"samplingDistance"`
	GenerationTimeMS int64     `json:"generationTime"`
}

// RoutePreview is the top-level preview artifact.
type RoutePreview struct {
	RouteCoordinates []geo.Coordinate `json:"routeCoordinates"`
	SampledPoints    []Point          `json:"sampledPoints"`
	Statistics       *RouteStatistics `json:"statistics"`
	Metadata         *Metadata        `json:"metadata"`
}

// IsValid reports whether a preview is structurally usable: at least one
// sampled point, a statistics object, and a metadata object.
func IsValid(p *RoutePreview) bool {
	return p != nil && len(p.SampledPoints) >= 1 && p.Statistics != nil && p.Metadata != nil
}
