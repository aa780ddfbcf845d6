package score

import (
	"math"
	"strings"
	"testing"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
)

func newTestScorer(t *testing.T) *Scorer {
	t.Helper()
	tables, err := rules.Default()
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return NewScorer(tables)
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func TestScorer_Analyze_UrgentCashClaim(t *testing.T) {
	scorer := newTestScorer(t)

	report := scorer.Analyze(model.ClaimRequest{
		Category:    model.CategoryHealth,
		Description: "Emergency surgery needed ASAP, cash only, no receipt",
		Amount:      50000,
	})

	if report.FraudScore <= 0.5 {
		t.Errorf("Expected fraud score > 0.5, got %.4f", report.FraudScore)
	}
	if !contains(report.RiskFactors, "suspicious_language") {
		t.Errorf("Expected suspicious_language risk factor, got %v", report.RiskFactors)
	}
	if !contains(report.RiskFactors, "unusual_amount") {
		t.Errorf("Expected unusual_amount risk factor, got %v", report.RiskFactors)
	}
	if report.Recommendation != model.RecommendManualReview {
		t.Errorf("Expected %s, got %s", model.RecommendManualReview, report.Recommendation)
	}
	// 52 chars (0.6), no amounts (0.4), middling score (0.5)
	if math.Abs(report.Confidence-0.5) > 1e-9 {
		t.Errorf("Expected confidence 0.5, got %.4f", report.Confidence)
	}

	want := []string{"emergency", "asap", "cash only", "no receipt"}
	if strings.Join(report.DetectedKeywords, ",") != strings.Join(want, ",") {
		t.Errorf("Expected keywords %v, got %v", want, report.DetectedKeywords)
	}
	if report.Error != "" {
		t.Errorf("Unexpected error: %s", report.Error)
	}
}

func TestScorer_Analyze_BoundsAndIdempotence(t *testing.T) {
	scorer := newTestScorer(t)

	tests := []model.ClaimRequest{
		{Category: model.CategoryHealth, Description: "Routine checkup, paid $120.00 at the clinic on 02/03/2024.", Amount: 120},
		{Category: model.CategoryVehicle, Description: "FAKE FORGED ALTERED!!! $5000.00 $5000.00 N/A TBD -- Unknown", Amount: 0},
		{Category: model.CategoryTravel, Description: "Lost luggage. Brand new suitcase, old and worn, cheap but expensive.", Amount: 9999},
		{Category: "spaceship", Description: "日本語のテキスト only", Amount: 1e12},
		{Category: model.CategoryAgricultural, Description: ".", Amount: 0},
	}

	for _, req := range tests {
		first := scorer.Analyze(req)
		second := scorer.Analyze(req)

		if first.FraudScore < 0 || first.FraudScore > 1 {
			t.Errorf("%q: fraud score %.4f out of range", req.Description, first.FraudScore)
		}
		if first.Confidence < 0 || first.Confidence > 1 {
			t.Errorf("%q: confidence %.4f out of range", req.Description, first.Confidence)
		}
		if first.FraudScore != second.FraudScore || first.Confidence != second.Confidence {
			t.Errorf("%q: repeated analysis differs: %v/%v vs %v/%v", req.Description,
				first.FraudScore, first.Confidence, second.FraudScore, second.Confidence)
		}
		for _, sig := range first.Signals {
			n := sig.Data["normalized"].(float64)
			if n < 0 || n > 1 {
				t.Errorf("%q: signal %s normalized %.4f out of range", req.Description, sig.Type, n)
			}
		}
	}
}

func TestScorer_Analyze_KeywordMonotonicity(t *testing.T) {
	scorer := newTestScorer(t)
	base := "Claim for hospital visit on 01/02/2024 with bill of $1,200.00"

	prev := -1.0
	text := base
	for i := 0; i < 15; i++ {
		report := scorer.Analyze(model.ClaimRequest{
			Category:    model.CategoryHealth,
			Description: text,
			Amount:      1200,
		})
		if report.FraudScore < prev {
			t.Fatalf("Score decreased after adding keyword %d: %.4f < %.4f", i, report.FraudScore, prev)
		}
		prev = report.FraudScore
		text += " urgent"
	}
}

func TestScorer_Analyze_ErrorsAreAbsorbed(t *testing.T) {
	scorer := newTestScorer(t)

	tests := []struct {
		name string
		req  model.ClaimRequest
	}{
		{"empty description", model.ClaimRequest{Category: model.CategoryHealth, Description: "   ", Amount: 10}},
		{"negative amount", model.ClaimRequest{Category: model.CategoryHealth, Description: "Broken arm", Amount: -1}},
		{"NaN amount", model.ClaimRequest{Category: model.CategoryHealth, Description: "Broken arm", Amount: math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := scorer.Analyze(tt.req)
			if report.FraudScore != 0.5 {
				t.Errorf("Expected neutral score 0.5, got %.4f", report.FraudScore)
			}
			if report.Confidence != 0 {
				t.Errorf("Expected confidence 0, got %.4f", report.Confidence)
			}
			if len(report.Issues) != 1 || !strings.HasPrefix(report.Issues[0], "Analysis error:") {
				t.Errorf("Expected a single analysis error issue, got %v", report.Issues)
			}
			if report.Error == "" {
				t.Error("Expected error field to be set")
			}
		})
	}
}

func TestScorer_Features_Amounts(t *testing.T) {
	scorer := newTestScorer(t)

	f := scorer.Features(model.ClaimRequest{
		Category:    model.CategoryProductWarranty,
		Description: "Paid $1,234.56 for the repair and $500.00 for parts",
		Amount:      1234.56,
	})

	if len(f.ExtractedAmounts) != 2 || f.ExtractedAmounts[0] != 1234.56 || f.ExtractedAmounts[1] != 500 {
		t.Fatalf("Expected amounts [1234.56 500], got %v", f.ExtractedAmounts)
	}
	if f.MaxExtractedAmount != 1234.56 {
		t.Errorf("Expected max 1234.56, got %v", f.MaxExtractedAmount)
	}
	if f.AmountConsistency != 0 {
		t.Errorf("Expected amount consistency 0, got %v", f.AmountConsistency)
	}
	if f.RoundAmountRatio == nil || *f.RoundAmountRatio != 0.5 {
		t.Errorf("Expected round amount ratio 0.5, got %v", f.RoundAmountRatio)
	}
}

func TestScorer_Features_NoAmounts(t *testing.T) {
	scorer := newTestScorer(t)

	f := scorer.Features(model.ClaimRequest{Category: model.CategoryPet, Description: "Dog swallowed a sock", Amount: 800})

	if f.AmountConsistency != 1.0 {
		t.Errorf("Expected amount consistency 1.0 without amounts, got %v", f.AmountConsistency)
	}
	if f.RoundAmountRatio != nil {
		t.Errorf("Expected round amount ratio to be absent, got %v", *f.RoundAmountRatio)
	}

	_, signals := scorer.Calculate(f)
	for _, sig := range signals {
		if sig.Type == model.SignalRoundAmounts {
			t.Error("Absent round amount ratio must not produce a signal")
		}
	}
}

func TestAmountAnomaly(t *testing.T) {
	band := rules.AmountBand{Low: 100, High: 50000, Avg: 2500}

	tests := []struct {
		claimed float64
		want    float64
	}{
		{50, 0.3},
		{50000, 0.8},
		{60000, 0.8},
		{25050, 0},
		{100, 0.2},
	}

	for _, tt := range tests {
		if got := amountAnomaly(band, tt.claimed); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("amountAnomaly(%v) = %v, want %v", tt.claimed, got, tt.want)
		}
	}
}

func TestScorer_Features_Patterns(t *testing.T) {
	scorer := newTestScorer(t)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"dates over a year apart", "Admitted 01/05/2022, discharged 03/10/2023", "Inconsistent dates detected"},
		{"impossible date", "Seen on 13/45/2020 and again on 01/01/2020", "Invalid date format detected"},
		{"duplicate amounts", "Charged $40.00 then $40.00 again", "Duplicate amounts detected"},
		{"missing info", "Provider: TBD", "Missing information indicator: TBD"},
		{"round amounts", "Total 2500.00 due", "Round number amounts: 2500.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := scorer.Features(model.ClaimRequest{Category: model.CategoryHealth, Description: tt.text, Amount: 100})
			if !contains(f.SuspiciousIndicators, tt.want) {
				t.Errorf("Expected indicator %q, got %v", tt.want, f.SuspiciousIndicators)
			}
		})
	}
}

func TestScorer_Analyze_VehicleInconsistency(t *testing.T) {
	scorer := newTestScorer(t)

	report := scorer.Analyze(model.ClaimRequest{
		Category:    model.CategoryVehicle,
		Description: "Only minor damage at low speed, yet the car is a total loss with extensive damage",
		Amount:      20000,
	})

	if report.Features.ConsistencyScore != 0.6 {
		t.Errorf("Expected consistency score 0.6, got %v", report.Features.ConsistencyScore)
	}
	if !contains(report.RiskFactors, "internal_inconsistency") {
		t.Errorf("Expected internal_inconsistency, got %v", report.RiskFactors)
	}
	if !contains(report.Issues, "Low speed inconsistent with extensive damage") {
		t.Errorf("Expected speed issue, got %v", report.Issues)
	}
}

func TestScorer_Calculate_LearnedAnomaly(t *testing.T) {
	tables := rules.MustDefault()
	learned := 1.0
	req := model.ClaimRequest{
		Category:            model.CategoryHealth,
		Description:         "Routine physiotherapy session, invoice attached for $300.50",
		Amount:              300.50,
		LearnedAnomalyScore: &learned,
	}

	// Default weight is zero, so the learned score is carried but inert
	plain := NewScorer(tables).Analyze(req)
	without := NewScorer(tables).Analyze(model.ClaimRequest{Category: req.Category, Description: req.Description, Amount: req.Amount})
	if plain.FraudScore != without.FraudScore {
		t.Errorf("Zero-weight learned score changed the result: %v vs %v", plain.FraudScore, without.FraudScore)
	}

	tables.Fraud.Weights.LearnedAnomaly = 0.5
	weighted := NewScorer(tables).Analyze(req)
	if weighted.FraudScore <= plain.FraudScore {
		t.Errorf("Expected weighted learned score to raise fraud score: %v <= %v", weighted.FraudScore, plain.FraudScore)
	}
	if !contains(weighted.RiskFactors, "learned_anomaly") {
		t.Errorf("Expected learned_anomaly risk factor, got %v", weighted.RiskFactors)
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		score, confidence float64
		want              model.Recommendation
	}{
		{0.8, 0.7, model.RecommendHighRiskReject},
		{0.8, 0.5, model.RecommendManualReview},
		{0.6, 0.9, model.RecommendManualReview},
		{0.2, 0.8, model.RecommendLowRiskApprove},
		{0.2, 0.6, model.RecommendStandardReview},
		{0.4, 0.9, model.RecommendStandardReview},
	}

	for _, tt := range tests {
		if got := Recommend(tt.score, tt.confidence); got != tt.want {
			t.Errorf("Recommend(%v, %v) = %s, want %s", tt.score, tt.confidence, got, tt.want)
		}
	}
}
