package validate

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/ppiankov/claimlens/internal/extract"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
	"gonum.org/v1/gonum/stat"
)

// Patterns shared by every document type
var (
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern  = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	numberPattern = regexp.MustCompile(`\d+[,.]?\d*`)
	datePatterns  = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`),
		regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4}`),
		regexp.MustCompile(`\d{4}-\d{1,2}-\d{1,2}`),
	}
)

// Risk factor tags, one per check
const (
	FactorTextQuality     = "text_quality"
	FactorStructure       = "structure"
	FactorAuthenticity    = "authenticity"
	FactorMissingFields   = "missing_fields"
	FactorCrossValidation = "cross_validation"
)

// checkInput is the read-only state shared by the four checks
type checkInput struct {
	text    string
	lower   string
	docType model.DocumentType
	rule    *rules.DocumentRule
}

// checkResult is what one check contributes to the report
type checkResult struct {
	issues       []string
	riskFactors  []string
	authenticity *float64
	data         model.ExtractedData
	shortText    bool
}

func (r *checkResult) flag(factor string, issue string) {
	r.issues = append(r.issues, issue)
	for _, f := range r.riskFactors {
		if f == factor {
			return
		}
	}
	r.riskFactors = append(r.riskFactors, factor)
}

// checkTextQuality covers length, boilerplate, keyword coverage, word count and repetition
func (v *Validator) checkTextQuality(in *checkInput) checkResult {
	var res checkResult
	c := v.checks

	length := len([]rune(in.text))
	if length < in.rule.MinTextLength {
		res.shortText = true
		res.flag(FactorTextQuality, fmt.Sprintf("Text too short: %d characters (minimum: %d)", length, in.rule.MinTextLength))
	}

	for _, phrase := range c.SuspiciousPhrases {
		if strings.Contains(in.lower, phrase) {
			res.flag(FactorTextQuality, "Suspicious content detected: "+phrase)
		}
	}

	if len(in.rule.Keywords) > 0 {
		_, found := extract.KeywordHits(in.lower, in.rule.Keywords)
		if float64(len(found)) < float64(len(in.rule.Keywords))*c.KeywordCoverage {
			res.flag(FactorTextQuality, fmt.Sprintf("Missing expected keywords. Found: [%s]", strings.Join(found, ", ")))
		}
	}

	words := strings.Fields(in.text)
	if len(words) < c.MinWords {
		res.flag(FactorTextQuality, "Text has too few words")
	}
	if _, repetition := extract.Repetition(words); repetition > c.MaxRepetition {
		res.flag(FactorTextQuality, "Excessive word repetition detected")
	}

	return res
}

// checkStructure covers amount and date formats plus per-type sections and identifiers
func (v *Validator) checkStructure(in *checkInput) checkResult {
	var res checkResult

	if in.rule.AmountPattern != nil {
		amounts := extract.All(in.text, in.rule.AmountPattern.Regexp)
		if len(amounts) == 0 {
			res.flag(FactorStructure, "No monetary amounts found in expected format")
		} else if len(amounts) > v.checks.MaxAmounts {
			res.flag(FactorStructure, "Too many monetary amounts detected (possible OCR errors)")
		}
	}

	if in.rule.DatePattern != nil {
		dates := extract.All(in.text, in.rule.DatePattern.Regexp)
		if len(dates) == 0 {
			res.flag(FactorStructure, "No dates found in expected format")
		}
		for _, d := range dates {
			if !v.reasonableDate(d) {
				res.flag(FactorStructure, "Unreasonable date detected: "+d)
			}
		}
	}

	for _, section := range in.rule.Sections {
		if !extract.ContainsAny(in.lower, section.Keywords) {
			res.flag(FactorStructure, fmt.Sprintf(in.rule.SectionIssue, section.Name))
		}
	}

	if ids := in.rule.Identifiers; ids != nil {
		found := false
		for _, p := range ids.Patterns {
			if p.Regex.MatchString(in.text) {
				found = true
				break
			}
		}
		if !found {
			res.flag(FactorStructure, ids.Issue)
		}
	}

	return res
}

// reasonableDate accepts real calendar dates inside the configured year range
// that are not too far in the future
func (v *Validator) reasonableDate(raw string) bool {
	d, err := extract.ParseDate(raw)
	if err != nil {
		return false
	}
	if d.Year < v.checks.YearMin || d.Year > v.checks.YearMax {
		return false
	}
	t, err := d.Time()
	if err != nil {
		return false
	}
	return !t.After(v.now().Add(extract.Days(v.checks.MaxFutureDays)))
}

// checkAuthenticity starts at 1.0 and deducts for placeholders, formatting,
// unusual characters and data integrity
func (v *Validator) checkAuthenticity(in *checkInput) checkResult {
	var res checkResult
	c := v.checks
	score := 1.0

	for _, p := range c.PlaceholderPatterns {
		if p.MatchString(in.text) {
			res.flag(FactorAuthenticity, "Placeholder text detected: "+strings.TrimPrefix(p.String(), "(?i)"))
			score -= c.PlaceholderDeduction
		}
	}

	if v.inconsistentFormatting(in.text) {
		res.flag(FactorAuthenticity, "Formatting inconsistencies detected")
		score -= c.FormattingDeduction
	}

	if v.unusualCharacters(in.text) {
		res.flag(FactorAuthenticity, "Unusual character patterns detected")
		score -= c.CharacterDeduction
	}

	if v.integrityViolation(in.text) {
		res.flag(FactorAuthenticity, "Data integrity issues detected")
		score -= c.IntegrityDeduction
	}

	score = math.Max(0, score)
	res.authenticity = &score
	return res
}

// inconsistentFormatting flags ragged indentation or mixed comma/decimal number styles
func (v *Validator) inconsistentFormatting(text string) bool {
	var indents []float64
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		indents = append(indents, float64(len([]rune(line))-len([]rune(trimmed))))
	}
	if len(indents) > 0 && stat.PopVariance(indents, nil) > v.checks.IndentVarianceLimit {
		return true
	}

	var commas, dots int
	for _, n := range numberPattern.FindAllString(text, -1) {
		if strings.Contains(n, ",") {
			commas++
		}
		if strings.Contains(n, ".") {
			dots++
		}
	}
	return commas > 0 && dots > 0 && commas != dots
}

func (v *Validator) unusualCharacters(text string) bool {
	length := len([]rune(text))
	if float64(extract.SpecialCharCount(text)) > float64(length)*v.checks.SpecialCharRatio {
		return true
	}
	return extract.LongestRun(text) >= v.checks.RepeatRun
}

func (v *Validator) integrityViolation(text string) bool {
	if _, hi, ok := extract.MinMax(extract.Amounts(text, v.amounts)); ok && hi > v.checks.MaxAmount {
		return true
	}

	dates := extract.FindDates(text, datePatterns)
	if len(dates) < 2 {
		return false
	}
	span, ok, err := extract.Span(dates)
	if err != nil {
		return true
	}
	return ok && span > extract.Days(v.checks.IntegrityDateSpanDays)
}

// checkExtraction captures common and type-specific fields, reports missing
// required fields and cross-validates what was found
func (v *Validator) checkExtraction(in *checkInput) checkResult {
	res := checkResult{data: v.extractData(in.text, in.docType)}
	data := res.data

	for _, field := range in.rule.RequiredFields {
		if !hasAny(data, v.checks.Sources(field)) {
			res.flag(FactorMissingFields, "Required field missing: "+field)
		}
	}

	if dates := data.Strings("dates"); len(dates) > 1 {
		if span, ok, _ := extract.Span(dates); ok && span > extract.Days(v.checks.CrossDateSpanDays) {
			res.flag(FactorCrossValidation, "Inconsistent dates detected")
		}
	}

	if lo, hi, ok := extract.MinMax(data.Floats("amounts")); ok && hi-lo > hi*v.checks.AmountSpreadRatio {
		res.flag(FactorCrossValidation, "Large variance in monetary amounts")
	}

	if in.docType == model.DocMedicalBill {
		patient, provider := data.String("patient_name"), data.String("provider")
		if patient != "" && strings.EqualFold(patient, provider) {
			res.flag(FactorCrossValidation, "Patient and provider names are identical")
		}
	}

	return res
}

func (v *Validator) extractData(text string, docType model.DocumentType) model.ExtractedData {
	data := model.ExtractedData{
		"emails":  nonNil(emailPattern.FindAllString(text, -1)),
		"phones":  nonNil(phonePattern.FindAllString(text, -1)),
		"amounts": nonNilFloats(extract.Amounts(text, v.amounts)),
		"dates":   nonNil(extract.FindDates(text, datePatterns)),
	}
	v.adapters.FindAdapter(docType).ExtractFields(text, data)
	return data
}

func hasAny(data model.ExtractedData, keys []string) bool {
	for _, k := range keys {
		if data.Has(k) {
			return true
		}
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilFloats(f []float64) []float64 {
	if f == nil {
		return []float64{}
	}
	return f
}
