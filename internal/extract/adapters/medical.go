package adapters

import (
	"regexp"

	"github.com/ppiankov/claimlens/internal/model"
)

// MedicalAdapter extracts patient, provider and service date from medical bills
type MedicalAdapter struct {
	BaseAdapter
	patient  []*regexp.Regexp
	service  []*regexp.Regexp
	provider []*regexp.Regexp
}

// NewMedicalAdapter creates a new medical document adapter
func NewMedicalAdapter() *MedicalAdapter {
	return &MedicalAdapter{
		patient: []*regexp.Regexp{
			regexp.MustCompile(`(?i)patient\s+name:[ \t]*([A-Za-z][A-Za-z .'-]*)`),
			regexp.MustCompile(`(?i)(?:patient|name):[ \t]*([A-Za-z][A-Za-z .'-]*)`),
		},
		service: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:date of service|service date|service):[ \t]*(\d{1,2}/\d{1,2}/\d{4})`),
			regexp.MustCompile(`(?i)date:[ \t]*(\d{1,2}/\d{1,2}/\d{4})`),
		},
		provider: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:provider|doctor|physician):[ \t]*([A-Za-z][A-Za-z .'-]*)`),
			regexp.MustCompile(`(?i)(?:hospital|clinic):[ \t]*([A-Za-z][A-Za-z .'-]*)`),
		},
	}
}

// Name returns the adapter name
func (a *MedicalAdapter) Name() string {
	return "medical"
}

// CanHandle covers bills and the other clinical paperwork
func (a *MedicalAdapter) CanHandle(docType model.DocumentType) bool {
	switch docType {
	case model.DocMedicalBill, model.DocHospitalReport, model.DocPrescription:
		return true
	}
	return false
}

// ExtractFields captures patient_name, service_date and provider
func (a *MedicalAdapter) ExtractFields(text string, data model.ExtractedData) {
	a.Capture(text, data, "patient_name", a.patient...)
	a.Capture(text, data, "service_date", a.service...)
	a.Capture(text, data, "provider", a.provider...)
}
