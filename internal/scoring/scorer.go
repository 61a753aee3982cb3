package scoring

import (
	"math"
	"strings"
)

// Sub-score weights. The five weights sum to 1 and are fixed, not
// configurable per call.
const (
	weightLighting = 0.30
	weightSidewalk = 0.20
	weightCrowd    = 0.25
	weightIsolate  = 0.15
	weightBuilding = 0.10
)

// Grade thresholds on the overall score.
const (
	thresholdExcellent = 7.5
	thresholdGood      = 6.0
	thresholdModerate  = 4.5
	thresholdFair      = 3.0
)

// Keyword lists matched against label descriptions (lowercased substring
// match).
var (
	lightingKeywords = []string{
		"street light", "lamp post", "streetlight", "bright", "daylight",
		"well lit", "well-lit", "illuminated",
	}
	sidewalkKeywords = []string{
		"sidewalk", "footpath", "pavement", "walkway", "pedestrian zone",
	}
	crowdKeywords = []string{
		"crowd", "people", "pedestrian", "group",
	}
	isolationKeywords = []string{
		"dark", "forest", "abandoned", "alley", "tunnel", "isolated",
		"overgrown", "deserted", "vacant",
	}
	commercialKeywords = []string{
		"store", "shop", "restaurant", "cafe", "retail", "business",
	}
)

// Analyze scores one image's extracted visual features. Pure computation;
// identical features always yield an identical analysis.
func Analyze(features *VisionResult) *Analysis {
	breakdown := Breakdown{
		Lighting:     scoreLighting(features),
		Sidewalk:     scoreSidewalk(features),
		CrowdDensity: scoreCrowd(features),
		Isolation:    scoreIsolation(features),
		BuildingType: scoreBuilding(features),
	}

	overall := roundTo1(weightLighting*breakdown.Lighting.Score +
		weightSidewalk*breakdown.Sidewalk.Score +
		weightCrowd*breakdown.CrowdDensity.Score +
		weightIsolate*breakdown.Isolation.Score +
		weightBuilding*breakdown.BuildingType.Score)

	grade, color := GradeFor(overall)

	return &Analysis{
		Score: Score{
			Overall:   overall,
			Grade:     grade,
			Color:     color,
			Breakdown: breakdown,
		},
		Recommendations: deriveRecommendations(breakdown),
	}
}

// Fallback returns the neutral analysis used when feature extraction fails.
func Fallback(errMessage string) *Analysis {
	return &Analysis{
		Score: Score{
			Overall: 5,
			Grade:   GradeUnknown,
			Color:   ColorGray,
			Breakdown: Breakdown{
				Lighting:     LightingFactor{Score: 5, Level: LightModerate},
				Sidewalk:     SidewalkFactor{Score: 5},
				CrowdDensity: CrowdFactor{Score: 5, Density: CrowdModerate},
				Isolation:    IsolationFactor{Score: 5},
				BuildingType: BuildingFactor{Score: 5},
			},
		},
		Error: errMessage,
	}
}

// GradeFor maps an overall score to its grade and color token.
func GradeFor(overall float64) (Grade, string) {
	switch {
	case overall >= thresholdExcellent:
		return GradeExcellent, ColorGreen
	case overall >= thresholdGood:
		return GradeGood, ColorLightGreen
	case overall >= thresholdModerate:
		return GradeModerate, ColorYellow
	case overall >= thresholdFair:
		return GradeFair, ColorOrange
	default:
		return GradePoor, ColorRed
	}
}

// scoreLighting combines perceptual brightness of the dominant colors with
// lighting-related label confidence. A pitch-black image with no lighting
// labels scores near zero.
func scoreLighting(features *VisionResult) LightingFactor {
	var weightedLuma, totalFraction float64
	for _, dc := range features.DominantColors {
		luma := 0.299*dc.Color.R + 0.587*dc.Color.G + 0.114*dc.Color.B
		weightedLuma += luma * dc.PixelFraction
		totalFraction += dc.PixelFraction
	}

	brightness := 0.0
	if totalFraction > 0 {
		brightness = weightedLuma / totalFraction / 255 * 10
	}

	matched, confidence := matchLabels(features.Labels, lightingKeywords, meanConfidence)

	score := (brightness + confidence*10) / 2
	if score > 10 {
		score = 10
	}

	level := LightPoor
	switch {
	case score >= 7:
		level = LightBright
	case score >= 4:
		level = LightModerate
	}

	return LightingFactor{Score: score, Level: level, Evidence: matched}
}

// scoreSidewalk is a binary keyword detection: 8 when any sidewalk label is
// present, 3 otherwise.
func scoreSidewalk(features *VisionResult) SidewalkFactor {
	matched, _ := matchLabels(features.Labels, sidewalkKeywords, maxConfidence)
	if len(matched) > 0 {
		return SidewalkFactor{Score: 8, Detected: true, Evidence: matched}
	}
	return SidewalkFactor{Score: 3}
}

// scoreCrowd combines the localized person count with crowd-label confidence.
func scoreCrowd(features *VisionResult) CrowdFactor {
	personCount := 0
	for _, obj := range features.Objects {
		name := strings.ToLower(obj.Name)
		if strings.Contains(name, "person") || strings.Contains(name, "pedestrian") {
			personCount++
		}
	}

	matched, confidence := matchLabels(features.Labels, crowdKeywords, maxConfidence)

	switch {
	case personCount >= 5 || confidence > 0.7:
		return CrowdFactor{Score: 9, Density: CrowdHigh, PersonCount: personCount, Evidence: matched}
	case personCount >= 2 || confidence > 0.4:
		return CrowdFactor{Score: 6, Density: CrowdModerate, PersonCount: personCount, Evidence: matched}
	default:
		return CrowdFactor{Score: 3, Density: CrowdLow, PersonCount: personCount, Evidence: matched}
	}
}

// scoreIsolation derives a score from negative-context labels. With no such
// labels it defaults to 7: the absence of a bad signal is treated as a weak
// positive, not neutral.
func scoreIsolation(features *VisionResult) IsolationFactor {
	matched, confidence := matchLabels(features.Labels, isolationKeywords, maxConfidence)
	if len(matched) == 0 {
		return IsolationFactor{Score: 7}
	}

	score := math.Max(1, 10-10*confidence)
	return IsolationFactor{
		Score:    score,
		Isolated: score < 5,
		Evidence: matched,
	}
}

// scoreBuilding rewards commercial surroundings, neutral otherwise.
func scoreBuilding(features *VisionResult) BuildingFactor {
	matched, confidence := matchLabels(features.Labels, commercialKeywords, maxConfidence)
	if len(matched) == 0 {
		return BuildingFactor{Score: 5}
	}

	return BuildingFactor{
		Score:      math.Min(10, 5+5*confidence),
		Commercial: true,
		Evidence:   matched,
	}
}

// deriveRecommendations applies the fixed rule set to the sub-scores. Each
// rule fires at most once; output order is the rule order.
func deriveRecommendations(b Breakdown) Recommendations {
	var rec Recommendations

	if b.Lighting.Score >= 7 {
		rec.Positives = append(rec.Positives, "Well-lit areas along the route")
	}
	if b.Lighting.Score < 4 {
		rec.Concerns = append(rec.Concerns, "Poorly lit sections")
		rec.Tips = append(rec.Tips, "Use this route during daylight hours")
	}
	if !b.Sidewalk.Detected {
		rec.Concerns = append(rec.Concerns, "No sidewalk detected")
		rec.Tips = append(rec.Tips, "Walk facing traffic and stay visible")
	}
	if b.CrowdDensity.Density == CrowdHigh {
		rec.Positives = append(rec.Positives, "Busy area with other people around")
	}
	if b.CrowdDensity.Density == CrowdLow {
		rec.Concerns = append(rec.Concerns, "Few people around")
		rec.Tips = append(rec.Tips, "Stay alert and keep your phone accessible")
	}
	if b.Isolation.Isolated {
		rec.Concerns = append(rec.Concerns, "Isolated or low-visibility area")
		rec.Tips = append(rec.Tips, "Consider walking with a companion")
	}
	if b.BuildingType.Commercial {
		rec.Positives = append(rec.Positives, "Commercial area with open businesses nearby")
	}

	return rec
}

// matchLabels returns the descriptions of labels matching any keyword and an
// aggregate confidence over the matches.
func matchLabels(labels []Label, keywords []string, aggregate func([]float64) float64) ([]string, float64) {
	var matched []string
	var scores []float64

	for _, label := range labels {
		desc := strings.ToLower(label.Description)
		for _, kw := range keywords {
			if strings.Contains(desc, kw) {
				matched = append(matched, label.Description)
				scores = append(scores, label.Score)
				break
			}
		}
	}

	if len(scores) == 0 {
		return matched, 0
	}
	return matched, aggregate(scores)
}

func meanConfidence(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func maxConfidence(scores []float64) float64 {
	best := scores[0]
	for _, s := range scores[1:] {
		if s > best {
			best = s
		}
	}
	return best
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}
