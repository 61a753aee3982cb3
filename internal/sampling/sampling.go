// Package sampling converts a route polyline into a bounded, evenly spaced
// sequence of sample points for street-level imagery lookup.
package sampling

import (
	"errors"

	"github.com/safewalk/safewalk/pkg/geo"
)

// ErrTooFewCoordinates indicates the route has fewer than two coordinates.
var ErrTooFewCoordinates = errors.New("route needs at least two coordinates")

// DefaultInterval is the default sampling distance in meters.
const DefaultInterval = 200

// PointType classifies a sampled point's position on the route.
type PointType string

const (
	// PointTypeStart is the first coordinate of the route.
	PointTypeStart PointType = "start"
	// PointTypeSample is an interior sample point.
	PointTypeSample PointType = "sample"
	// PointTypeDestination is the last coordinate of the route.
	PointTypeDestination PointType = "destination"
)

// Point is one sampled point along a route. The sequence produced by Sample
// is ordered by ascending DistanceFromStart and must never be re-sorted.
type Point struct {
	Coordinate        geo.Coordinate `json:"coordinate"`
	DistanceFromStart float64        `json:"distanceFromStart"`
	Heading           *float64       `json:"heading,omitempty"`
	Index             int            `json:"index"`
	IsKeyPoint        bool           `json:"isKeyPoint"`
	Type              PointType      `json:"type"`
}

// Sample walks the polyline and emits points at roughly intervalMeters
// spacing. The first and last coordinates are always emitted, as start and
// destination, regardless of where the sampling thresholds fall. Interior
// samples are interpolated linearly within their segment and carry the
// segment's great-circle bearing as heading; the start point has no heading.
//
// A route shorter than one interval yields exactly the start and destination.
func Sample(coords []geo.Coordinate, intervalMeters float64) ([]Point, error) {
	if len(coords) < 2 {
		return nil, ErrTooFewCoordinates
	}
	if intervalMeters <= 0 {
		intervalMeters = DefaultInterval
	}

	total := geo.PathLength(coords)

	points := []Point{{
		Coordinate: coords[0],
		Type:       PointTypeStart,
		IsKeyPoint: true,
	}}

	// Interior thresholds fall at k*interval for k = 1..floor(total/interval)-1,
	// so the last interval before the destination is never sampled.
	lastThreshold := total - intervalMeters

	accumulated := 0.0
	nextThreshold := intervalMeters

	for i := 1; i < len(coords); i++ {
		segStart := coords[i-1]
		segEnd := coords[i]
		segLen := geo.Haversine(segStart, segEnd)

		for segLen > 0 && accumulated+segLen >= nextThreshold && nextThreshold <= lastThreshold {
			fraction := (nextThreshold - accumulated) / segLen
			heading := geo.Bearing(segStart, segEnd)

			points = append(points, Point{
				Coordinate:        geo.Interpolate(segStart, segEnd, fraction),
				DistanceFromStart: nextThreshold,
				Heading:           &heading,
				Type:              PointTypeSample,
			})

			nextThreshold += intervalMeters
		}

		accumulated += segLen
	}

	destHeading := geo.Bearing(coords[len(coords)-2], coords[len(coords)-1])
	points = append(points, Point{
		Coordinate:        coords[len(coords)-1],
		DistanceFromStart: total,
		Heading:           &destHeading,
		Type:              PointTypeDestination,
		IsKeyPoint:        true,
	})

	for i := range points {
		points[i].Index = i
	}

	return points, nil
}

// Decimate reduces a sampled sequence to at most max points. The first and
// last points are always kept; interior points are picked at a fixed integer
// step, a deterministic decimation rather than random sampling.
func Decimate(points []Point, max int) []Point {
	if max < 2 || len(points) <= max {
		return points
	}

	step := (len(points) - 2) / (max - 2)
	if step < 1 {
		step = 1
	}

	decimated := []Point{points[0]}
	for i := step; i < len(points)-1 && len(decimated) < max-1; i += step {
		decimated = append(decimated, points[i])
	}
	decimated = append(decimated, points[len(points)-1])

	for i := range decimated {
		decimated[i].Index = i
	}

	return decimated
}
