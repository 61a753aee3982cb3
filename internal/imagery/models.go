// Package imagery resolves street-level imagery for sampled route points.
package imagery

import (
	"context"
	"errors"

	"github.com/safewalk/safewalk/internal/sampling"
	"github.com/safewalk/safewalk/pkg/geo"
)

// ErrNoProvider indicates the service was constructed without a provider.
var ErrNoProvider = errors.New("imagery provider not configured")

// Standard image fetch parameters. Imagery is requested at a fixed size and
// field of view so identical points always produce identical URLs.
const (
	ImageWidth  = 600
	ImageHeight = 400
	FieldOfView = 90
	Pitch       = 0
)

// Metadata describes imagery availability at a coordinate.
type Metadata struct {
	Available   bool
	PanoID      string
	CaptureDate string
}

// Provider defines the interface for street-level imagery providers.
type Provider interface {
	// Lookup queries imagery availability at a coordinate.
	Lookup(ctx context.Context, c geo.Coordinate) (*Metadata, error)

	// ImageURL deterministically constructs a fetchable image URL for a
	// coordinate and heading. Pure construction, no network call.
	ImageURL(c geo.Coordinate, heading float64) string

	// Name returns the provider identifier for logging.
	Name() string
}

// Descriptor is the resolved imagery for one sampled point. Points without
// imagery carry Available=false and no URL, and still propagate through the
// pipeline as placeholders.
type Descriptor struct {
	Index             int                `json:"index"`
	Coordinate        geo.Coordinate     `json:"coordinate"`
	DistanceFromStart float64            `json:"distanceFromStart"`
	Heading           *float64           `json:"heading,omitempty"`
	Type              sampling.PointType `json:"type"`
	IsKeyPoint        bool               `json:"isKeyPoint"`
	Available         bool               `json:"available"`
	URL               string             `json:"url,omitempty"`
	PanoID            string             `json:"panoId,omitempty"`
	CaptureDate       string             `json:"captureDate,omitempty"`
}
