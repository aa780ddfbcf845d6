package model

import "time"

// Recommendation is the outcome suggested to the claims workflow
type Recommendation string

const (
	RecommendHighRiskReject Recommendation = "high_risk_reject"
	RecommendManualReview   Recommendation = "manual_review_required"
	RecommendLowRiskApprove Recommendation = "low_risk_approve"
	RecommendStandardReview Recommendation = "standard_review"
)

// ScoreReport is the common output shape of every engine
type ScoreReport struct {
	Score          float64        `json:"score"`
	Confidence     float64        `json:"confidence"`
	Issues         []string       `json:"issues"`
	RiskFactors    []string       `json:"risk_factors"`
	Recommendation Recommendation `json:"recommendation"`
}

// Scored is implemented by every engine report
type Scored interface {
	Summary() ScoreReport
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // formula, raw and normalized inputs
}

// SignalType names one weighted fraud component
type SignalType string

const (
	SignalKeywordRatio      SignalType = "fraud_keyword_ratio"
	SignalAmountAnomaly     SignalType = "amount_anomaly_score"
	SignalPatternCount      SignalType = "suspicious_pattern_count"
	SignalConsistency       SignalType = "consistency_score"
	SignalAmountConsistency SignalType = "amount_consistency"
	SignalRoundAmounts      SignalType = "round_amount_ratio"
	SignalMissingInfo       SignalType = "missing_info_count"
	SignalLearnedAnomaly    SignalType = "learned_anomaly_score"
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// FraudFeatures is the typed feature record built from one narrative.
// Pointer fields are optional; a nil feature is excluded from the weighted sum.
type FraudFeatures struct {
	CharCount            int       `json:"text_length"`
	WordCount            int       `json:"word_count"`
	SentenceCount        int       `json:"sentence_count"`
	KeywordCount         int       `json:"fraud_keyword_count"`
	KeywordRatio         float64   `json:"fraud_keyword_ratio"`
	DetectedKeywords     []string  `json:"detected_fraud_keywords"`
	UppercaseRatio       float64   `json:"uppercase_ratio"`
	PunctuationRatio     float64   `json:"punctuation_ratio"`
	WordRepetition       float64   `json:"word_repetition_ratio"`
	ExtractedAmounts     []float64 `json:"extracted_amounts"`
	MaxExtractedAmount   float64   `json:"max_extracted_amount"`
	AmountConsistency    float64   `json:"amount_consistency"`
	RoundAmountRatio     *float64  `json:"round_amount_ratio,omitempty"`
	AmountAnomalyScore   float64   `json:"amount_anomaly_score"`
	MissingInfoCount     int       `json:"missing_info_count"`
	SuspiciousIndicators []string  `json:"suspicious_indicators"`
	ConsistencyScore     float64   `json:"consistency_score"`
	ConsistencyIssues    []string  `json:"consistency_issues"`
	LearnedAnomalyScore  *float64  `json:"learned_anomaly_score,omitempty"`
}

// SuspiciousPatternCount is the number of pattern indicators raised
func (f FraudFeatures) SuspiciousPatternCount() int {
	return len(f.SuspiciousIndicators)
}

// FraudReport is the output of the text fraud signal engine
type FraudReport struct {
	FraudScore       float64        `json:"fraud_score"`
	Confidence       float64        `json:"confidence"`
	RiskFactors      []string       `json:"risk_factors"`
	Issues           []string       `json:"issues"`
	Recommendation   Recommendation `json:"recommendation"`
	Category         Category       `json:"category"`
	DetectedKeywords []string       `json:"detected_keywords,omitempty"`
	Features         *FraudFeatures `json:"feature_analysis,omitempty"`
	Signals          []Signal       `json:"signals,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// Summary implements Scored
func (r *FraudReport) Summary() ScoreReport {
	return ScoreReport{
		Score:          r.FraudScore,
		Confidence:     r.Confidence,
		Issues:         r.Issues,
		RiskFactors:    r.RiskFactors,
		Recommendation: r.Recommendation,
	}
}

// ValidationReport is the output of the document structural validator
type ValidationReport struct {
	IsValid           bool          `json:"is_valid"`
	ValidationScore   float64       `json:"validation_score"`
	Confidence        float64       `json:"confidence"`
	AuthenticityScore float64       `json:"authenticity_score"`
	Issues            []string      `json:"issues"`
	RiskFactors       []string      `json:"risk_factors"`
	ExtractedData     ExtractedData `json:"extracted_data"`
	DocumentType      DocumentType  `json:"document_type"`
	RuleTable         DocumentType  `json:"rule_table"`
	SuggestedType     DocumentType  `json:"suggested_type,omitempty"`
	Filename          string        `json:"filename,omitempty"`
	ContentSHA256     string        `json:"content_sha256,omitempty"`
	TextLength        int           `json:"text_length"`
	Error             string        `json:"error,omitempty"`
}

// Summary implements Scored
func (r *ValidationReport) Summary() ScoreReport {
	rec := RecommendStandardReview
	if !r.IsValid {
		rec = RecommendManualReview
	}
	return ScoreReport{
		Score:          r.ValidationScore,
		Confidence:     r.Confidence,
		Issues:         r.Issues,
		RiskFactors:    r.RiskFactors,
		Recommendation: rec,
	}
}

// MetadataCheck is the result of inspecting embedded capture metadata
type MetadataCheck struct {
	HasEXIF    bool              `json:"has_exif"`
	Suspicious bool              `json:"suspicious"`
	Issues     []string          `json:"issues,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// AuthenticityDetails breaks down the authenticity score
type AuthenticityDetails struct {
	Score            float64           `json:"authenticity_score"`
	Issues           []string          `json:"issues"`
	CompressionScore float64           `json:"compression_score"`
	NoiseScore       float64           `json:"noise_score"`
	ColorScore       float64           `json:"color_consistency_score"`
	EdgeScore        float64           `json:"edge_discontinuity_score"`
	Metadata         MetadataCheck     `json:"metadata"`
	Errors           map[string]string `json:"errors,omitempty"`
}

// DamageLocation is one detected damage region
type DamageLocation struct {
	Region string  `json:"region"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Area   float64 `json:"area"`
}

// DamageMetrics are the raw statistics behind severity classification
type DamageMetrics struct {
	EdgeDensity     float64 `json:"edge_density"`
	ColorVariance   float64 `json:"color_variance"`
	TextureVariance float64 `json:"texture_variance"`
}

// ConsistencyCheck compares observed damage to category expectations
type ConsistencyCheck struct {
	Score           float64  `json:"consistency_score"`
	ExpectedDensity float64  `json:"expected_edge_density"`
	ObservedDensity float64  `json:"observed_edge_density"`
	Issues          []string `json:"issues,omitempty"`
}

// DamageAssessment is produced for damage-relevant analysis types
type DamageAssessment struct {
	Severity      string           `json:"severity"`
	SeverityScore float64          `json:"severity_score"`
	EstimatedCost float64          `json:"estimated_cost"`
	Locations     []DamageLocation `json:"damage_locations"`
	Consistency   ConsistencyCheck `json:"consistency"`
	Metrics       DamageMetrics    `json:"metrics"`
	Error         string           `json:"error,omitempty"`
}

// BasicInfo describes the decoded image
type BasicInfo struct {
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	Format       string  `json:"format"`
	UniqueColors int     `json:"unique_colors"`
	AspectRatio  float64 `json:"aspect_ratio"`
	AverageHash  string  `json:"average_hash"`
	SizeBytes    int     `json:"size_bytes"`
}

// SceneAnalysis describes capture conditions. It does not feed any score.
type SceneAnalysis struct {
	Lighting       Lighting `json:"lighting"`
	Focus          Focus    `json:"focus_quality"`
	DominantColors [][3]int `json:"dominant_colors"` // RGB cluster centers, largest cluster first
}

// Lighting summarizes grayscale exposure
type Lighting struct {
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
	Quality    string  `json:"quality"` // good, poor
}

// Focus summarizes sharpness as the Laplacian variance
type Focus struct {
	BlurScore float64 `json:"blur_score"`
	Quality   string  `json:"quality"` // sharp, blurred
}

// ImageReport is the output of the image forensic analyzer
type ImageReport struct {
	Filename          string              `json:"filename,omitempty"`
	AnalysisType      AnalysisType        `json:"analysis_type"`
	AuthenticityScore float64             `json:"authenticity_score"`
	QualityScore      float64             `json:"quality_score"`
	Authenticity      AuthenticityDetails `json:"authenticity_details"`
	Damage            *DamageAssessment   `json:"damage_assessment,omitempty"`
	EstimatedCost     *float64            `json:"estimated_cost,omitempty"`
	BasicInfo         *BasicInfo          `json:"basic_info,omitempty"`
	Scene             *SceneAnalysis      `json:"scene_analysis,omitempty"`
	Error             string              `json:"error,omitempty"`
}

// Summary implements Scored. Quality doubles as confidence.
func (r *ImageReport) Summary() ScoreReport {
	var factors []string
	d := r.Authenticity
	if d.CompressionScore > 0.7 {
		factors = append(factors, "compression_artifacts")
	}
	if d.NoiseScore > 0.6 {
		factors = append(factors, "noise_pattern")
	}
	if d.ColorScore > 0.5 {
		factors = append(factors, "color_inconsistency")
	}
	if d.EdgeScore > 0.8 {
		factors = append(factors, "edge_discontinuity")
	}
	if d.Metadata.Suspicious {
		factors = append(factors, "metadata_suspicious")
	}

	rec := RecommendStandardReview
	if r.AuthenticityScore < 0.5 || r.Error != "" {
		rec = RecommendManualReview
	}
	return ScoreReport{
		Score:          r.AuthenticityScore,
		Confidence:     r.QualityScore,
		Issues:         d.Issues,
		RiskFactors:    factors,
		Recommendation: rec,
	}
}

// AnalysisKind names which engine produced a record
type AnalysisKind string

const (
	KindClaim    AnalysisKind = "claim"
	KindDocument AnalysisKind = "document"
	KindImage    AnalysisKind = "image"
)

// Advisory is an optional LLM-written reviewer note.
// It never affects any score and is kept apart from the engine report.
type Advisory struct {
	Enabled  bool     `json:"enabled"`
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
	Summary  string   `json:"summary,omitempty"`
	Concerns []string `json:"concerns,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Analysis wraps an engine report with bookkeeping
type Analysis struct {
	ID         string       `json:"id"`
	Kind       AnalysisKind `json:"kind"`
	Subject    string       `json:"subject"`
	CreatedAt  time.Time    `json:"created_at"`
	DurationMS int64        `json:"duration_ms"`
	Cached     bool         `json:"cached"`
	Summary    ScoreReport  `json:"summary"`

	Claim    *FraudReport      `json:"claim,omitempty"`
	Document *ValidationReport `json:"document,omitempty"`
	Image    *ImageReport      `json:"image,omitempty"`

	Advisory *Advisory `json:"advisory,omitempty"`
}

// Report returns whichever engine report the analysis carries
func (a *Analysis) Report() Scored {
	switch {
	case a.Claim != nil:
		return a.Claim
	case a.Document != nil:
		return a.Document
	case a.Image != nil:
		return a.Image
	default:
		return nil
	}
}
