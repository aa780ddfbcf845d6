package validate

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/claimlens/internal/extract"
	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
)

// filenameHints maps filename tokens to the document type they suggest
var filenameHints = map[string]model.DocumentType{
	"bill":     model.DocMedicalBill,
	"medical":  model.DocMedicalBill,
	"hospital": model.DocMedicalBill,
	"estimate": model.DocVehicleEstimate,
	"repair":   model.DocVehicleEstimate,
	"vehicle":  model.DocVehicleEstimate,
	"invoice":  model.DocInvoice,
	"receipt":  model.DocReceipt,
	"police":   model.DocPoliceReport,
	"incident": model.DocPoliceReport,
}

// filenameBonus is added to the keyword coverage of a type named by the filename
const filenameBonus = 0.5

// TypeClassifier suggests the document type whose keywords best cover the text
type TypeClassifier struct {
	documents map[model.DocumentType]*rules.DocumentRule
	order     []model.DocumentType
	minScore  float64
}

// NewTypeClassifier creates a classifier over the document rule tables
func NewTypeClassifier(tables *rules.Tables) *TypeClassifier {
	classifier := &TypeClassifier{
		documents: tables.Documents,
		minScore:  tables.DocumentChecks.KeywordCoverage,
	}

	for dt, rule := range tables.Documents {
		if dt == model.DocGeneral || len(rule.Keywords) == 0 {
			continue
		}
		classifier.order = append(classifier.order, dt)
	}
	// Map order is random; ties must resolve the same way every run
	sort.Slice(classifier.order, func(i, j int) bool { return classifier.order[i] < classifier.order[j] })

	return classifier
}

// Classify returns the most likely document type, or general when no type
// reaches the keyword coverage threshold
func (c *TypeClassifier) Classify(filename, text string) model.DocumentType {
	lower := strings.ToLower(text)
	hinted := hintsFromFilename(filename)

	best, bestScore := model.DocGeneral, 0.0
	for _, dt := range c.order {
		rule := c.documents[dt]
		_, found := extract.KeywordHits(lower, rule.Keywords)
		score := float64(len(found)) / float64(len(rule.Keywords))
		if hinted[dt] {
			score += filenameBonus
		}
		if score > bestScore {
			best, bestScore = dt, score
		}
	}

	if bestScore < c.minScore {
		return model.DocGeneral
	}
	return best
}

func hintsFromFilename(filename string) map[model.DocumentType]bool {
	hinted := make(map[model.DocumentType]bool)
	tokens := strings.FieldsFunc(strings.ToLower(filename), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, tok := range tokens {
		if dt, ok := filenameHints[tok]; ok {
			hinted[dt] = true
		}
	}
	return hinted
}
