// Package rules holds the read-only category and document-type tables that
// drive every scoring engine. Tables are parsed once and injected; engines
// never reach for package-level state.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ppiankov/claimlens/internal/model"
	"gopkg.in/yaml.v3"
)

// DefaultRules is the embedded rule table shipped with the binary.
//
//go:embed default_rules.yaml
var DefaultRules []byte

// Pattern is a regular expression compiled while the table is decoded
type Pattern struct {
	*regexp.Regexp
}

// UnmarshalYAML compiles the pattern so a bad regex fails at load time
func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid pattern %q: %w", value.Line, s, err)
	}
	p.Regexp = re
	return nil
}

// MarshalYAML writes the source expression back out
func (p Pattern) MarshalYAML() (interface{}, error) {
	if p.Regexp == nil {
		return "", nil
	}
	return p.String(), nil
}

// Tables is the complete rule set
type Tables struct {
	Fraud          FraudRules                           `yaml:"fraud"`
	Documents      map[model.DocumentType]*DocumentRule `yaml:"documents"`
	DocumentChecks DocumentChecks                       `yaml:"document_checks"`
	Image          ImageRules                           `yaml:"image"`
}

// FraudRules configures the text fraud signal engine
type FraudRules struct {
	Keywords               []string                      `yaml:"keywords"`
	Punctuation            string                        `yaml:"punctuation"`
	AmountPattern          Pattern                       `yaml:"amount_pattern"`
	RoundNumberPattern     Pattern                       `yaml:"round_number_pattern"`
	DuplicateAmountPattern Pattern                       `yaml:"duplicate_amount_pattern"`
	DatePattern            Pattern                       `yaml:"date_pattern"`
	MissingInfo            []string                      `yaml:"missing_info"`
	DateSpanDays           int                           `yaml:"date_span_days"`
	Weights                Weights                       `yaml:"weights"`
	DefaultCategory        model.Category                `yaml:"default_category"`
	AmountThresholds       map[model.Category]AmountBand `yaml:"amount_thresholds"`
	ConsistencyPenalty     float64                       `yaml:"consistency_penalty"`
	Consistency            map[string][]ConsistencyRule  `yaml:"consistency"`
}

// Weights is the aggregation weight table. A zero weight disables a feature.
type Weights struct {
	KeywordRatio      float64 `yaml:"fraud_keyword_ratio"`
	AmountAnomaly     float64 `yaml:"amount_anomaly_score"`
	PatternCount      float64 `yaml:"suspicious_pattern_count"`
	Consistency       float64 `yaml:"consistency_score"`
	AmountConsistency float64 `yaml:"amount_consistency"`
	RoundAmounts      float64 `yaml:"round_amount_ratio"`
	MissingInfo       float64 `yaml:"missing_info_count"`
	LearnedAnomaly    float64 `yaml:"learned_anomaly_score"`
}

// AmountBand is the typical claim amount range for a category
type AmountBand struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
	Avg  float64 `yaml:"avg"`
}

// ConsistencyRule fires when every Require group has at least one term in
// the lowercased text and no Unless term is present.
type ConsistencyRule struct {
	Require [][]string `yaml:"require"`
	Unless  []string   `yaml:"unless,omitempty"`
	Issue   string     `yaml:"issue"`
}

// Matches evaluates the rule against already-lowercased text
func (r ConsistencyRule) Matches(lower string) bool {
	for _, group := range r.Require {
		if !containsAny(lower, group) {
			return false
		}
	}
	return !containsAny(lower, r.Unless)
}

// DocumentRule is the structural expectation for one document type
type DocumentRule struct {
	RequiredFields []string     `yaml:"required_fields"`
	AmountPattern  *Pattern     `yaml:"amount_pattern,omitempty"`
	DatePattern    *Pattern     `yaml:"date_pattern,omitempty"`
	MinTextLength  int          `yaml:"min_text_length"`
	Keywords       []string     `yaml:"keywords"`
	SectionIssue   string       `yaml:"section_issue,omitempty"`
	Sections       []Section    `yaml:"sections,omitempty"`
	Identifiers    *Identifiers `yaml:"identifiers,omitempty"`
}

// Section is a keyword group of which at least one must appear
type Section struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Identifiers are codes of which at least one must match (ICD/CPT, VIN)
type Identifiers struct {
	Issue    string         `yaml:"issue"`
	Patterns []NamedPattern `yaml:"patterns"`
}

// NamedPattern is a labelled regular expression
type NamedPattern struct {
	Name  string  `yaml:"name"`
	Regex Pattern `yaml:"regex"`
}

// DocumentChecks holds thresholds shared by all document types
type DocumentChecks struct {
	SuspiciousPhrases     []string            `yaml:"suspicious_phrases"`
	PlaceholderPatterns   []Pattern           `yaml:"placeholder_patterns"`
	KeywordCoverage       float64             `yaml:"keyword_coverage"`
	MinWords              int                 `yaml:"min_words"`
	MaxRepetition         float64             `yaml:"max_repetition"`
	MaxAmounts            int                 `yaml:"max_amounts"`
	YearMin               int                 `yaml:"year_min"`
	YearMax               int                 `yaml:"year_max"`
	MaxFutureDays         int                 `yaml:"max_future_days"`
	IndentVarianceLimit   float64             `yaml:"indent_variance_limit"`
	SpecialCharRatio      float64             `yaml:"special_char_ratio"`
	RepeatRun             int                 `yaml:"repeat_run"`
	MaxAmount             float64             `yaml:"max_amount"`
	IntegrityDateSpanDays int                 `yaml:"integrity_date_span_days"`
	CrossDateSpanDays     int                 `yaml:"cross_date_span_days"`
	AmountSpreadRatio     float64             `yaml:"amount_spread_ratio"`
	PlaceholderDeduction  float64             `yaml:"placeholder_deduction"`
	FormattingDeduction   float64             `yaml:"formatting_deduction"`
	CharacterDeduction    float64             `yaml:"character_deduction"`
	IntegrityDeduction    float64             `yaml:"integrity_deduction"`
	IssuePenalty          float64             `yaml:"issue_penalty"`
	MaxIssuePenalty       float64             `yaml:"max_issue_penalty"`
	ValidThreshold        float64             `yaml:"valid_threshold"`
	ShortTextCap          float64             `yaml:"short_text_cap"`
	FieldSources          map[string][]string `yaml:"field_sources"`
}

// ImageRules configures the image forensic analyzer
type ImageRules struct {
	Detectors            map[string]Detector                `yaml:"detectors"`
	MetadataDeduction    float64                            `yaml:"metadata_deduction"`
	EditingSoftware      []string                           `yaml:"editing_software"`
	MinContourPoints     int                                `yaml:"min_contour_points"`
	MaxAngleChange       float64                            `yaml:"max_angle_change"`
	DamageAreaThreshold  float64                            `yaml:"damage_area_threshold"`
	MaxLocations         int                                `yaml:"max_locations"`
	ConsistencyTolerance float64                            `yaml:"consistency_tolerance"`
	ConsistencyPenalty   float64                            `yaml:"consistency_penalty"`
	Damage               map[model.AnalysisType]*DamageRule `yaml:"damage"`
}

// Detector names used in ImageRules.Detectors
const (
	DetectorCompression = "compression"
	DetectorNoise       = "noise"
	DetectorColor       = "color"
	DetectorEdge        = "edge"
)

// Detector is the threshold and deduction of one authenticity sub-detector
type Detector struct {
	Threshold float64 `yaml:"threshold"`
	Deduction float64 `yaml:"deduction"`
	Issue     string  `yaml:"issue"`
}

// SeverityMode selects how damage severity is classified
type SeverityMode string

const (
	SeverityThreshold SeverityMode = "threshold"
	SeverityBlend     SeverityMode = "blend"
)

// UnmarshalYAML rejects unknown modes
func (m *SeverityMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch mode := SeverityMode(s); mode {
	case SeverityThreshold, SeverityBlend:
		*m = mode
		return nil
	default:
		return fmt.Errorf("line %d: invalid severity mode %q", value.Line, s)
	}
}

// SeverityCut is a joint edge-density / color-variance threshold
type SeverityCut struct {
	EdgeDensity   float64 `yaml:"edge_density"`
	ColorVariance float64 `yaml:"color_variance"`
}

// DamageRule configures the damage sub-pipeline for one analysis type
type DamageRule struct {
	Mode                SeverityMode       `yaml:"mode"`
	Severe              SeverityCut        `yaml:"severe,omitempty"`
	Moderate            SeverityCut        `yaml:"moderate,omitempty"`
	SevereCut           float64            `yaml:"severe_cut,omitempty"`
	ModerateCut         float64            `yaml:"moderate_cut,omitempty"`
	BaseCosts           map[string]float64 `yaml:"base_costs"`
	ExpectedEdgeDensity float64            `yaml:"expected_edge_density"`
}

// Load parses and validates a rule table
func Load(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	t.normalize()
	return &t, nil
}

// LoadFile reads a rule table from disk
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table %s: %w", path, err)
	}
	return Load(data)
}

// Default parses the embedded rule table
func Default() (*Tables, error) {
	return Load(DefaultRules)
}

// MustDefault is Default for callers that cannot continue without rules
func MustDefault() *Tables {
	t, err := Default()
	if err != nil {
		panic(err)
	}
	return t
}

// Validate checks the invariants the engines rely on
func (t *Tables) Validate() error {
	f := t.Fraud
	if f.AmountPattern.Regexp == nil || f.RoundNumberPattern.Regexp == nil ||
		f.DuplicateAmountPattern.Regexp == nil || f.DatePattern.Regexp == nil {
		return fmt.Errorf("fraud: all patterns are required")
	}
	if _, ok := f.AmountThresholds[f.DefaultCategory]; !ok {
		return fmt.Errorf("fraud: default category %q has no amount thresholds", f.DefaultCategory)
	}
	for cat, band := range f.AmountThresholds {
		if band.High <= band.Low {
			return fmt.Errorf("fraud: category %q: high (%v) must exceed low (%v)", cat, band.High, band.Low)
		}
	}
	if f.Weights.sum() <= 0 {
		return fmt.Errorf("fraud: weights must sum to a positive value")
	}

	if _, ok := t.Documents[model.DocGeneral]; !ok {
		return fmt.Errorf("documents: a %q table is required as fallback", model.DocGeneral)
	}
	for dt, rule := range t.Documents {
		if rule == nil {
			return fmt.Errorf("documents: %q is empty", dt)
		}
		if len(rule.Sections) > 0 && !strings.Contains(rule.SectionIssue, "%s") {
			return fmt.Errorf("documents: %q section_issue must contain %%s", dt)
		}
	}
	if c := t.DocumentChecks; c.ValidThreshold <= 0 || c.ValidThreshold > 1 {
		return fmt.Errorf("document_checks: valid_threshold must be in (0,1]")
	}
	if c := t.DocumentChecks; c.ShortTextCap < 0 || c.ShortTextCap >= c.ValidThreshold {
		return fmt.Errorf("document_checks: short_text_cap must be below valid_threshold")
	}

	for _, name := range []string{DetectorCompression, DetectorNoise, DetectorColor, DetectorEdge} {
		if _, ok := t.Image.Detectors[name]; !ok {
			return fmt.Errorf("image: detector %q is not configured", name)
		}
	}
	for at, rule := range t.Image.Damage {
		if !at.DamageRelevant() {
			return fmt.Errorf("image: damage rule for %q is not a damage category", at)
		}
		for _, sev := range []string{"minor", "moderate", "severe"} {
			if _, ok := rule.BaseCosts[sev]; !ok {
				return fmt.Errorf("image: damage %q is missing base cost for %s", at, sev)
			}
		}
		if rule.ExpectedEdgeDensity <= 0 {
			return fmt.Errorf("image: damage %q needs a positive expected_edge_density", at)
		}
	}
	return nil
}

func (t *Tables) normalize() {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}
	t.Fraud.Keywords = lower(t.Fraud.Keywords)
	t.DocumentChecks.SuspiciousPhrases = lower(t.DocumentChecks.SuspiciousPhrases)
	t.Image.EditingSoftware = lower(t.Image.EditingSoftware)
	for _, rule := range t.Documents {
		rule.Keywords = lower(rule.Keywords)
	}
}

// AmountBand returns the band for a category, falling back to the default category
func (f *FraudRules) AmountBand(c model.Category) AmountBand {
	if band, ok := f.AmountThresholds[c]; ok {
		return band
	}
	return f.AmountThresholds[f.DefaultCategory]
}

// ConsistencyRules returns the contradiction rules for a category.
// Categories without their own list use "general".
func (f *FraudRules) ConsistencyRules(c model.Category) []ConsistencyRule {
	if r, ok := f.Consistency[string(c)]; ok {
		return r
	}
	return f.Consistency["general"]
}

// Document returns the rule for a document type and the key actually used.
// Unknown types fall back to general.
func (t *Tables) Document(dt model.DocumentType) (*DocumentRule, model.DocumentType) {
	if rule, ok := t.Documents[dt]; ok {
		return rule, dt
	}
	return t.Documents[model.DocGeneral], model.DocGeneral
}

// Sources returns the extracted keys that satisfy a required field
func (c *DocumentChecks) Sources(field string) []string {
	if src, ok := c.FieldSources[field]; ok {
		return append([]string{field}, src...)
	}
	return []string{field}
}

func (w Weights) sum() float64 {
	return w.KeywordRatio + w.AmountAnomaly + w.PatternCount + w.Consistency +
		w.AmountConsistency + w.RoundAmounts + w.MissingInfo + w.LearnedAnomaly
}

func containsAny(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
