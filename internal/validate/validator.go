// Package validate implements the document structural validator: text
// quality, structure, authenticity and extraction checks against the rule
// table of the declared document type.
package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/ppiankov/claimlens/internal/extract/adapters"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
	"golang.org/x/sync/errgroup"
)

// Validator validates documents against their declared type
type Validator struct {
	tables     *rules.Tables
	checks     *rules.DocumentChecks
	amounts    *regexp.Regexp
	adapters   *adapters.Registry
	classifier *TypeClassifier
	now        func() time.Time
}

// NewValidator creates a new validator over the document rule tables
func NewValidator(tables *rules.Tables) *Validator {
	return &Validator{
		tables:     tables,
		checks:     &tables.DocumentChecks,
		amounts:    tables.Fraud.AmountPattern.Regexp,
		adapters:   adapters.NewRegistry(),
		classifier: NewTypeClassifier(tables),
		now:        time.Now,
	}
}

// Validate runs the four checks and merges them into one report.
// It never fails: an internal error produces an invalid report with zero
// score and the error as the only issue.
func (v *Validator) Validate(doc model.Document) (report *model.ValidationReport) {
	docType := model.ParseDocumentType(string(doc.Type))

	defer func() {
		if r := recover(); r != nil {
			report = failedReport(doc, docType, fmt.Errorf("%v", r))
		}
	}()

	if strings.TrimSpace(doc.Text) == "" {
		return failedReport(doc, docType, fmt.Errorf("document text: %w", model.ErrEmptyInput))
	}

	rule, ruleKey := v.tables.Document(docType)
	in := &checkInput{
		text:    doc.Text,
		lower:   strings.ToLower(doc.Text),
		docType: docType,
		rule:    rule,
	}

	// Checks are independent; results land in fixed slots so the merge order never varies
	var text, structure, authenticity, extraction checkResult
	var g errgroup.Group
	g.Go(runCheck("text", func() checkResult { return v.checkTextQuality(in) }, &text))
	g.Go(runCheck("structure", func() checkResult { return v.checkStructure(in) }, &structure))
	g.Go(runCheck("authenticity", func() checkResult { return v.checkAuthenticity(in) }, &authenticity))
	g.Go(runCheck("extraction", func() checkResult { return v.checkExtraction(in) }, &extraction))
	if err := g.Wait(); err != nil {
		return failedReport(doc, docType, err)
	}

	report = &model.ValidationReport{
		Confidence:        1.0,
		AuthenticityScore: 1.0,
		Issues:            []string{},
		RiskFactors:       []string{},
		ExtractedData:     model.ExtractedData{},
		DocumentType:      docType,
		RuleTable:         ruleKey,
		SuggestedType:     v.classifier.Classify(doc.Filename, doc.Text),
		Filename:          doc.Filename,
		ContentSHA256:     contentHash(doc.Content),
		TextLength:        len([]rune(doc.Text)),
	}
	for _, res := range []checkResult{text, structure, authenticity, extraction} {
		merge(report, res)
	}

	report.ValidationScore = v.calculateScore(report, text.shortText)
	report.IsValid = report.ValidationScore >= v.checks.ValidThreshold
	return report
}

func runCheck(name string, fn func() checkResult, out *checkResult) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s check: %v", name, r)
			}
		}()
		*out = fn()
		return nil
	}
}

// merge folds one check into the report. Each authenticity score is
// averaged into the running confidence.
func merge(report *model.ValidationReport, res checkResult) {
	report.Issues = append(report.Issues, res.issues...)
	for _, f := range res.riskFactors {
		if !containsString(report.RiskFactors, f) {
			report.RiskFactors = append(report.RiskFactors, f)
		}
	}
	if res.authenticity != nil {
		report.AuthenticityScore = *res.authenticity
		report.Confidence = (report.Confidence + *res.authenticity) / 2
	}
	for k, val := range res.data {
		report.ExtractedData[k] = val
	}
}

// calculateScore is ((1 - min(max_penalty, issues*penalty)) * confidence + authenticity) / 2.
// Text shorter than the minimum is capped below the validity threshold.
func (v *Validator) calculateScore(report *model.ValidationReport, shortText bool) float64 {
	c := v.checks
	base := 1 - math.Min(c.MaxIssuePenalty, float64(len(report.Issues))*c.IssuePenalty)
	score := (base*report.Confidence + report.AuthenticityScore) / 2
	if shortText {
		score = math.Min(score, c.ShortTextCap)
	}
	return math.Max(0, math.Min(1, score))
}

func failedReport(doc model.Document, docType model.DocumentType, err error) *model.ValidationReport {
	return &model.ValidationReport{
		IsValid:         false,
		ValidationScore: 0,
		Confidence:      0,
		Issues:          []string{fmt.Sprintf("Validation error: %v", err)},
		RiskFactors:     []string{},
		ExtractedData:   model.ExtractedData{},
		DocumentType:    docType,
		Filename:        doc.Filename,
		ContentSHA256:   contentHash(doc.Content),
		TextLength:      len([]rune(doc.Text)),
		Error:           err.Error(),
	}
}

func contentHash(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
