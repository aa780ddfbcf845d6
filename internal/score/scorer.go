// Package score implements the text fraud signal engine: lexical, monetary,
// pattern and consistency features over a claim narrative, combined by a
// weight table into a fraud score with transparent per-component signals.
package score

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Scorer calculates the fraud score and generates signals
type Scorer struct {
	rules *rules.FraudRules
}

// NewScorer creates a new scorer over the fraud rule table
func NewScorer(tables *rules.Tables) *Scorer {
	return &Scorer{rules: &tables.Fraud}
}

// component is one weighted input of the fraud score
type component struct {
	signal     model.SignalType
	weight     float64
	raw        float64
	normalized float64
	formula    string
}

// Analyze scores one claim narrative. It never fails: an internal error
// produces a neutral score with zero confidence and the error as the only issue.
func (s *Scorer) Analyze(req model.ClaimRequest) (report *model.FraudReport) {
	defer func() {
		if r := recover(); r != nil {
			report = neutralReport(req.Category, fmt.Errorf("%v", r))
		}
	}()

	if err := checkRequest(req); err != nil {
		return neutralReport(req.Category, err)
	}

	features := s.Features(req)
	fraudScore, signals := s.Calculate(features)
	confidence := s.determineConfidence(features, fraudScore)
	issues, factors := s.findings(features)

	return &model.FraudReport{
		FraudScore:       fraudScore,
		Confidence:       confidence,
		RiskFactors:      factors,
		Issues:           issues,
		Recommendation:   Recommend(fraudScore, confidence),
		Category:         req.Category,
		DetectedKeywords: features.DetectedKeywords,
		Features:         &features,
		Signals:          signals,
	}
}

func checkRequest(req model.ClaimRequest) error {
	if strings.TrimSpace(req.Description) == "" {
		return fmt.Errorf("claim description: %w", model.ErrEmptyInput)
	}
	if req.Amount < 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return errors.New("claimed amount must be a non-negative number")
	}
	return nil
}

func neutralReport(category model.Category, err error) *model.FraudReport {
	return &model.FraudReport{
		FraudScore:     0.5,
		Confidence:     0,
		RiskFactors:    []string{},
		Issues:         []string{fmt.Sprintf("Analysis error: %v", err)},
		Recommendation: Recommend(0.5, 0),
		Category:       category,
		Error:          err.Error(),
	}
}

// Calculate combines the features into a fraud score in [0,1].
// Absent features are left out of both the weighted sum and the weight total.
func (s *Scorer) Calculate(f model.FraudFeatures) (float64, []model.Signal) {
	components := s.components(f)

	weights := make([]float64, 0, len(components))
	values := make([]float64, 0, len(components))
	signals := make([]model.Signal, 0, len(components))
	for _, c := range components {
		weights = append(weights, c.weight)
		values = append(values, c.normalized)
		signals = append(signals, c.toSignal())
	}

	total := floats.Sum(weights)
	if total <= 0 {
		return 0, signals
	}
	return clamp01(floats.Dot(weights, values) / total), signals
}

func (s *Scorer) components(f model.FraudFeatures) []component {
	w := s.rules.Weights
	components := []component{
		{
			signal:     model.SignalKeywordRatio,
			weight:     w.KeywordRatio,
			raw:        f.KeywordRatio,
			normalized: math.Min(1, f.KeywordRatio*5),
			formula:    "min(keyword_occurrences / word_count * 5, 1)",
		},
		{
			signal:     model.SignalAmountAnomaly,
			weight:     w.AmountAnomaly,
			raw:        f.AmountAnomalyScore,
			normalized: clamp01(f.AmountAnomalyScore),
			formula:    "0.3 below band, 0.8 at or above band, else min(|position - 0.5|, 0.2)",
		},
		{
			signal:     model.SignalPatternCount,
			weight:     w.PatternCount,
			raw:        float64(f.SuspiciousPatternCount()),
			normalized: math.Min(1, float64(f.SuspiciousPatternCount())*0.2),
			formula:    "min(indicator_count * 0.2, 1)",
		},
		{
			signal:     model.SignalConsistency,
			weight:     w.Consistency,
			raw:        f.ConsistencyScore,
			normalized: clamp01(1 - f.ConsistencyScore),
			formula:    "1 - consistency_score",
		},
		{
			signal:     model.SignalAmountConsistency,
			weight:     w.AmountConsistency,
			raw:        f.AmountConsistency,
			normalized: math.Min(1, f.AmountConsistency),
			formula:    "min(|max_extracted - claimed| / max(claimed, 1), 1)",
		},
	}

	if f.RoundAmountRatio != nil {
		components = append(components, component{
			signal:     model.SignalRoundAmounts,
			weight:     w.RoundAmounts,
			raw:        *f.RoundAmountRatio,
			normalized: math.Min(1, *f.RoundAmountRatio*5),
			formula:    "min(round_amounts / amounts * 5, 1)",
		})
	}

	components = append(components, component{
		signal:     model.SignalMissingInfo,
		weight:     w.MissingInfo,
		raw:        float64(f.MissingInfoCount),
		normalized: math.Min(1, float64(f.MissingInfoCount)*0.2),
		formula:    "min(missing_info_count * 0.2, 1)",
	})

	if f.LearnedAnomalyScore != nil {
		components = append(components, component{
			signal:     model.SignalLearnedAnomaly,
			weight:     w.LearnedAnomaly,
			raw:        *f.LearnedAnomalyScore,
			normalized: *f.LearnedAnomalyScore,
			formula:    "external score, clamped to [0,1]",
		})
	}

	return components
}

func (c component) toSignal() model.Signal {
	severity := model.SeverityInfo
	if c.normalized >= 0.7 {
		severity = model.SeverityCritical
	} else if c.normalized >= 0.4 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        c.signal,
		Severity:    severity,
		Description: fmt.Sprintf("%s: %.3f (normalized %.3f, weight %.2f)", c.signal, c.raw, c.normalized, c.weight),
		Data: map[string]interface{}{
			"raw":          c.raw,
			"normalized":   c.normalized,
			"weight":       c.weight,
			"contribution": c.weight * c.normalized,
			"formula":      c.formula,
		},
	}
}

// findings lists issues in detection order and the matching risk factor tags
func (s *Scorer) findings(f model.FraudFeatures) ([]string, []string) {
	issues := []string{}
	factors := []string{}

	if f.KeywordCount > 0 {
		issues = append(issues, "Suspicious keywords detected: "+strings.Join(f.DetectedKeywords, ", "))
		factors = append(factors, "suspicious_language")
	}

	if f.AmountAnomalyScore > 0.5 {
		issues = append(issues, "Claimed amount appears unusual for this type of claim")
		factors = append(factors, "unusual_amount")
	}

	if f.AmountConsistency > 0.3 {
		issues = append(issues, "Inconsistency between claimed amount and extracted amounts")
		factors = append(factors, "amount_inconsistency")
	}

	if f.SuspiciousPatternCount() > 0 {
		issues = append(issues, f.SuspiciousIndicators...)
		factors = append(factors, "suspicious_patterns")
	}

	if f.ConsistencyScore < 0.7 {
		issues = append(issues, f.ConsistencyIssues...)
		factors = append(factors, "internal_inconsistency")
	}

	if f.LearnedAnomalyScore != nil && s.rules.Weights.LearnedAnomaly > 0 && *f.LearnedAnomalyScore > 0.7 {
		issues = append(issues, "External anomaly model flagged this claim")
		factors = append(factors, "learned_anomaly")
	}

	return issues, factors
}

// determineConfidence averages text length, amount availability and score extremity tiers
func (s *Scorer) determineConfidence(f model.FraudFeatures, fraudScore float64) float64 {
	tiers := make([]float64, 0, 3)

	switch {
	case f.CharCount > 100:
		tiers = append(tiers, 0.8)
	case f.CharCount > 50:
		tiers = append(tiers, 0.6)
	default:
		tiers = append(tiers, 0.3)
	}

	if len(f.ExtractedAmounts) > 0 {
		tiers = append(tiers, 0.9)
	} else {
		tiers = append(tiers, 0.4)
	}

	if fraudScore > 0.7 || fraudScore < 0.3 {
		tiers = append(tiers, 0.8)
	} else {
		tiers = append(tiers, 0.5)
	}

	return stat.Mean(tiers, nil)
}

// Recommend maps a fraud score and confidence to a recommendation
func Recommend(fraudScore, confidence float64) model.Recommendation {
	switch {
	case fraudScore > 0.7 && confidence > 0.6:
		return model.RecommendHighRiskReject
	case fraudScore > 0.5:
		return model.RecommendManualReview
	case fraudScore < 0.3 && confidence > 0.7:
		return model.RecommendLowRiskApprove
	default:
		return model.RecommendStandardReview
	}
}
