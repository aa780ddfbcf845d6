package forensics

import (
	"fmt"
	"math"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
)

// Severity levels
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
	SeverityUnknown  = "unknown"
)

// Severity scores assigned by joint thresholds
const (
	severeScore   = 0.8
	moderateScore = 0.5
	minorScore    = 0.2
)

// dilationSize joins nearby edge fragments into damage regions
const dilationSize = 10

func damageMetrics(f *frame) model.DamageMetrics {
	var colorVariance float64
	for _, ch := range []*plane{f.r, f.g, f.b} {
		_, v := ch.meanVariance()
		colorVariance += v
	}
	return model.DamageMetrics{
		EdgeDensity:     f.edgeDensity(),
		ColorVariance:   colorVariance,
		TextureVariance: laplacianVariance(f.gray),
	}
}

// classifySeverity applies either the joint edge/color thresholds or the
// linear blend with its two cut points
func classifySeverity(m model.DamageMetrics, rule *rules.DamageRule) (string, float64) {
	if rule.Mode == rules.SeverityThreshold {
		switch {
		case m.EdgeDensity > rule.Severe.EdgeDensity && m.ColorVariance > rule.Severe.ColorVariance:
			return SeveritySevere, severeScore
		case m.EdgeDensity > rule.Moderate.EdgeDensity && m.ColorVariance > rule.Moderate.ColorVariance:
			return SeverityModerate, moderateScore
		default:
			return SeverityMinor, minorScore
		}
	}

	score := math.Min(1, (m.EdgeDensity*5+m.ColorVariance/1000)/2)
	switch {
	case score > rule.SevereCut:
		return SeveritySevere, score
	case score > rule.ModerateCut:
		return SeverityModerate, score
	default:
		return SeverityMinor, score
	}
}

// estimateCost scales the base cost of the severity level by 0.5 + severity score,
// rounded to cents
func estimateCost(rule *rules.DamageRule, level string, score float64) float64 {
	base, ok := rule.BaseCosts[level]
	if !ok {
		base = rule.BaseCosts[SeverityModerate]
	}
	return math.Round(base*(0.5+score)*100) / 100
}

// locateDamage dilates the edge map and reports the largest connected regions
func locateDamage(f *frame, at model.AnalysisType, r *rules.ImageRules) []model.DamageLocation {
	mask := dilate(f.edges, f.w, f.h, dilationSize)
	locations := []model.DamageLocation{}
	for _, b := range largestBlobs(mask, f.w, f.h, r.DamageAreaThreshold, r.MaxLocations) {
		relX := float64(b.bounds.Min.X) / float64(f.w)
		relY := float64(b.bounds.Min.Y) / float64(f.h)
		locations = append(locations, model.DamageLocation{
			Region: describeLocation(relX, relY, at),
			X:      b.bounds.Min.X,
			Y:      b.bounds.Min.Y,
			Width:  b.bounds.Dx(),
			Height: b.bounds.Dy(),
			Area:   float64(b.area),
		})
	}
	return locations
}

// describeLocation names a relative position: vehicle panels use sections,
// everything else a 3x3 grid
func describeLocation(relX, relY float64, at model.AnalysisType) string {
	if at == model.AnalysisVehicle {
		switch {
		case relY < 0.3:
			return "Upper section"
		case relY > 0.7:
			return "Lower section"
		case relX < 0.3:
			return "Left side"
		case relX > 0.7:
			return "Right side"
		default:
			return "Center section"
		}
	}

	h := "center"
	if relX < 0.33 {
		h = "left"
	} else if relX > 0.66 {
		h = "right"
	}
	v := "middle"
	if relY < 0.33 {
		v = "upper"
	} else if relY > 0.66 {
		v = "lower"
	}
	return v + " " + h
}

// checkConsistency compares observed edge density with what the damage type usually shows
func checkConsistency(m model.DamageMetrics, at model.AnalysisType, rule *rules.DamageRule, r *rules.ImageRules) model.ConsistencyCheck {
	check := model.ConsistencyCheck{
		Score:           1.0,
		ExpectedDensity: rule.ExpectedEdgeDensity,
		ObservedDensity: m.EdgeDensity,
	}
	if rule.ExpectedEdgeDensity <= 0 {
		return check
	}
	diff := math.Abs(m.EdgeDensity-rule.ExpectedEdgeDensity) / rule.ExpectedEdgeDensity
	if diff > r.ConsistencyTolerance {
		check.Score -= r.ConsistencyPenalty
		check.Issues = append(check.Issues, fmt.Sprintf(
			"Edge density %.3f differs from the %.3f expected for %s damage", m.EdgeDensity, rule.ExpectedEdgeDensity, at))
	}
	check.Score = math.Max(0, check.Score)
	return check
}

// assessDamage runs severity, cost, location and consistency for one damage type.
// A failure leaves a neutral severity of 0.5 and the error on the assessment.
func assessDamage(f *frame, at model.AnalysisType, r *rules.ImageRules) (assessment *model.DamageAssessment) {
	rule := r.Damage[at]
	if rule == nil {
		return nil
	}

	defer func() {
		if rec := recover(); rec != nil {
			assessment = &model.DamageAssessment{
				Severity:      SeverityUnknown,
				SeverityScore: neutralScore,
				EstimatedCost: estimateCost(rule, SeverityModerate, neutralScore),
				Locations:     []model.DamageLocation{},
				Consistency:   model.ConsistencyCheck{Score: neutralScore, ExpectedDensity: rule.ExpectedEdgeDensity},
				Error:         fmt.Sprintf("damage assessment: %v", rec),
			}
		}
	}()

	metrics := damageMetrics(f)
	level, score := classifySeverity(metrics, rule)
	return &model.DamageAssessment{
		Severity:      level,
		SeverityScore: score,
		EstimatedCost: estimateCost(rule, level, score),
		Locations:     locateDamage(f, at, r),
		Consistency:   checkConsistency(metrics, at, rule, r),
		Metrics:       metrics,
	}
}
