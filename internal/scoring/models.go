// Package scoring computes per-image safety analyses from extracted visual
// features using a weighted multi-factor model.
package scoring

import (
	"context"
)

// Extractor defines the interface for visual-feature extraction providers.
type Extractor interface {
	// Extract returns the visual features of the image at the given URL.
	Extract(ctx context.Context, imageURL string) (*VisionResult, error)

	// Name returns the provider identifier for logging.
	Name() string
}

// VisionResult is the raw feature extraction result for one image.
type VisionResult struct {
	Labels         []Label         `json:"labels"`
	Objects        []Object        `json:"objects"`
	DominantColors []DominantColor `json:"dominantColors"`
}

// Label is a detected scene label with a confidence in [0, 1].
type Label struct {
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Object is a localized object detection.
type Object struct {
	Name string `json:"name"`
}

// RGB is a color channel triple with components in [0, 255].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// DominantColor is one dominant image color with its pixel-area fraction.
type DominantColor struct {
	Color         RGB     `json:"color"`
	PixelFraction float64 `json:"pixelFraction"`
}

// Grade buckets an overall score into a human-readable rating.
type Grade string

const (
	GradeExcellent Grade = "Excellent"
	GradeGood      Grade = "Good"
	GradeModerate  Grade = "Moderate"
	GradeFair      Grade = "Fair"
	GradePoor      Grade = "Poor"
	// GradeUnknown marks analyses that failed and carry the neutral fallback.
	GradeUnknown Grade = "Unknown"
)

// Color tokens for each grade, consumed by the presentation layer.
const (
	ColorGreen      = "green"
	ColorLightGreen = "light-green"
	ColorYellow     = "yellow"
	ColorOrange     = "orange"
	ColorRed        = "red"
	ColorGray       = "gray"
)

// LightLevel classifies the lighting sub-score.
type LightLevel string

const (
	LightBright   LightLevel = "bright"
	LightModerate LightLevel = "moderate"
	LightPoor     LightLevel = "poor"
)

// CrowdDensity classifies the crowd sub-score.
type CrowdDensity string

const (
	CrowdHigh     CrowdDensity = "high"
	CrowdModerate CrowdDensity = "moderate"
	CrowdLow      CrowdDensity = "low"
)

// LightingFactor is the lighting sub-score.
type LightingFactor struct {
	Score    float64    `json:"score"`
	Level    LightLevel `json:"level"`
	Evidence []string   `json:"evidence,omitempty"`
}

// SidewalkFactor is the sidewalk-presence sub-score.
type SidewalkFactor struct {
	Score    float64  `json:"score"`
	Detected bool     `json:"detected"`
	Evidence []string `json:"evidence,omitempty"`
}

// CrowdFactor is the crowd-density sub-score.
type CrowdFactor struct {
	Score       float64      `json:"score"`
	Density     CrowdDensity `json:"density"`
	PersonCount int          `json:"personCount"`
	Evidence    []string     `json:"evidence,omitempty"`
}

// IsolationFactor is the isolation sub-score.
type IsolationFactor struct {
	Score    float64  `json:"score"`
	Isolated bool     `json:"isolated"`
	Evidence []string `json:"evidence,omitempty"`
}

// BuildingFactor is the building-type sub-score.
type BuildingFactor struct {
	Score      float64  `json:"score"`
	Commercial bool     `json:"commercial"`
	Evidence   []string `json:"evidence,omitempty"`
}

// Breakdown holds the five sub-scores of one analysis.
type Breakdown struct {
	Lighting     LightingFactor  `json:"lighting"`
	Sidewalk     SidewalkFactor  `json:"sidewalk"`
	CrowdDensity CrowdFactor     `json:"crowdDensity"`
	Isolation    IsolationFactor `json:"isolation"`
	BuildingType BuildingFactor  `json:"buildingType"`
}

// Score is the weighted overall safety score for one image.
type Score struct {
	Overall   float64   `json:"overall"`
	Grade     Grade     `json:"grade"`
	Color     string    `json:"color"`
	Breakdown Breakdown `json:"breakdown"`
}

// Recommendations is the derived recommendation triple.
type Recommendations struct {
	Positives []string `json:"positives"`
	Concerns  []string `json:"concerns"`
	Tips      []string `json:"tips"`
}

// Analysis is the per-image scoring result. A failed extraction yields an
// analysis with Error set and the neutral fallback score; analyses are never
// mutated after creation.
type Analysis struct {
	Score           Score           `json:"score"`
	Recommendations Recommendations `json:"recommendations"`
	Error           string          `json:"error,omitempty"`
}

// OK reports whether the analysis succeeded.
func (a *Analysis) OK() bool {
	return a != nil && a.Error == ""
}
