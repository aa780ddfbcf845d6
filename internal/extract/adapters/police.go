package adapters

import (
	"regexp"

	"github.com/ppiankov/claimlens/internal/model"
)

// PoliceAdapter extracts the report number and incident narrative from police reports
type PoliceAdapter struct {
	BaseAdapter
	number   []*regexp.Regexp
	incident []*regexp.Regexp
}

// NewPoliceAdapter creates a new police report adapter
func NewPoliceAdapter() *PoliceAdapter {
	return &PoliceAdapter{
		number: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:report|case|incident)\s*(?:#|no\.?|number)\s*:?\s*([A-Za-z0-9-]*\d[A-Za-z0-9-]*)`),
		},
		incident: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:incident description|description|narrative|summary):[ \t]*([^\n]{10,})`),
		},
	}
}

// Name returns the adapter name
func (a *PoliceAdapter) Name() string {
	return "police"
}

// CanHandle checks if this is a police report
func (a *PoliceAdapter) CanHandle(docType model.DocumentType) bool {
	return docType == model.DocPoliceReport
}

// ExtractFields captures report_number and incident_description
func (a *PoliceAdapter) ExtractFields(text string, data model.ExtractedData) {
	a.Capture(text, data, "report_number", a.number...)
	a.Capture(text, data, "incident_description", a.incident...)
}
