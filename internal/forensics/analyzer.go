// Package forensics implements the image forensic analyzer: pixel and
// metadata tampering detectors combined into an authenticity score, plus a
// damage severity, cost and location estimate for damage claims.
package forensics

import (
	"fmt"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
)

// Analyzer scores images against the image rule table
type Analyzer struct {
	rules *rules.ImageRules
}

// NewAnalyzer creates an analyzer over the image rules
func NewAnalyzer(tables *rules.Tables) *Analyzer {
	return &Analyzer{rules: &tables.Image}
}

// Analyze decodes and scores one image. It never fails: an undecodable image
// or an internal error yields neutral 0.5 scores and the error on the report.
func (a *Analyzer) Analyze(img model.Image) (report *model.ImageReport) {
	at := model.ParseAnalysisType(string(img.AnalysisType))

	defer func() {
		if r := recover(); r != nil {
			report = failedReport(img.Filename, at, fmt.Errorf("%v", r))
		}
	}()

	decoded, format, err := Decode(img.Content)
	if err != nil {
		return failedReport(img.Filename, at, err)
	}

	f := newFrame(decoded)
	details := assessAuthenticity(f, img.Content, a.rules)

	report = &model.ImageReport{
		Filename:          img.Filename,
		AnalysisType:      at,
		AuthenticityScore: details.Score,
		Authenticity:      details,
		QualityScore:      qualityScore(f),
		BasicInfo:         basicInfo(decoded, format, len(img.Content)),
		Scene:             analyzeScene(f),
	}

	if at.DamageRelevant() {
		if damage := assessDamage(f, at, a.rules); damage != nil {
			report.Damage = damage
			cost := damage.EstimatedCost
			report.EstimatedCost = &cost
		}
	}
	return report
}

func failedReport(filename string, at model.AnalysisType, err error) *model.ImageReport {
	return &model.ImageReport{
		Filename:          filename,
		AnalysisType:      at,
		AuthenticityScore: neutralScore,
		QualityScore:      neutralScore,
		Authenticity: model.AuthenticityDetails{
			Score:  neutralScore,
			Issues: []string{fmt.Sprintf("Image analysis error: %v", err)},
		},
		Error: err.Error(),
	}
}
