package preview

import (
	"fmt"
	"math"

	"github.com/safewalk/safewalk/internal/scoring"
)

// problemThreshold is the overall score below which a point becomes a
// problem segment.
const problemThreshold = 4.0

// maxPositives caps the deduplicated positives list.
const maxPositives = 5

// Aggregate combines all per-point analyses of one route into route-level
// statistics. Points whose analysis failed are excluded from every average;
// with zero valid analyses the result carries the neutral score.
func Aggregate(points []Point) *RouteStatistics {
	var valid []Point
	for _, p := range points {
		if p.Analysis.OK() {
			valid = append(valid, p)
		}
	}

	if len(valid) == 0 {
		return neutralStatistics()
	}

	var sumOverall float64
	var sums ScoreBreakdown
	for _, p := range valid {
		b := p.Analysis.Score.Breakdown
		sumOverall += p.Analysis.Score.Overall
		sums.Lighting += b.Lighting.Score
		sums.Sidewalk += b.Sidewalk.Score
		sums.CrowdDensity += b.CrowdDensity.Score
		sums.Isolation += b.Isolation.Score
		sums.BuildingType += b.BuildingType.Score
	}

	n := float64(len(valid))
	overall := roundTo1(sumOverall / n)
	grade, color := scoring.GradeFor(overall)

	stats := &RouteStatistics{
		OverallSafetyScore: overall,
		Grade:              grade,
		Color:              color,
		Breakdown: ScoreBreakdown{
			Lighting:     roundTo1(sums.Lighting / n),
			Sidewalk:     roundTo1(sums.Sidewalk / n),
			CrowdDensity: roundTo1(sums.CrowdDensity / n),
			Isolation:    roundTo1(sums.Isolation / n),
			BuildingType: roundTo1(sums.BuildingType / n),
		},
		SegmentCount: len(valid),
	}

	seenPositives := make(map[string]bool)
	seenTips := make(map[string]bool)

	for _, p := range valid {
		rec := p.Analysis.Recommendations

		for _, concern := range rec.Concerns {
			stats.Concerns = append(stats.Concerns, LocatedConcern{
				Concern:  concern,
				Location: fmt.Sprintf("%dm from start", int(math.Round(p.DistanceFromStart))),
				Index:    p.Index,
			})
		}

		for _, positive := range rec.Positives {
			if !seenPositives[positive] {
				seenPositives[positive] = true
				stats.Positives = append(stats.Positives, positive)
			}
		}

		for _, tip := range rec.Tips {
			if !seenTips[tip] {
				seenTips[tip] = true
				stats.Recommendations = append(stats.Recommendations, tip)
			}
		}

		if p.Analysis.Score.Overall < problemThreshold {
			stats.ProblemSegments = append(stats.ProblemSegments, ProblemSegment{
				Index:      p.Index,
				Distance:   int(math.Round(p.DistanceFromStart)),
				Score:      p.Analysis.Score.Overall,
				MainIssues: rec.Concerns,
			})
		}
	}

	if len(stats.Positives) > maxPositives {
		stats.Positives = stats.Positives[:maxPositives]
	}

	return stats
}

// neutralStatistics is the aggregate used when nothing could be analyzed.
func neutralStatistics() *RouteStatistics {
	return &RouteStatistics{
		OverallSafetyScore: 5,
		Grade:              scoring.GradeUnknown,
		Color:              scoring.ColorGray,
		Breakdown: ScoreBreakdown{
			Lighting:     5,
			Sidewalk:     5,
			CrowdDensity: 5,
			Isolation:    5,
			BuildingType: 5,
		},
	}
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
