package model

import "strings"

// Category is the claim category used to select fraud thresholds
type Category string

const (
	CategoryHealth          Category = "health"
	CategoryVehicle         Category = "vehicle"
	CategoryTravel          Category = "travel"
	CategoryProductWarranty Category = "product_warranty"
	CategoryPet             Category = "pet"
	CategoryAgricultural    Category = "agricultural"
)

// Categories lists every known claim category in declaration order
func Categories() []Category {
	return []Category{
		CategoryHealth,
		CategoryVehicle,
		CategoryTravel,
		CategoryProductWarranty,
		CategoryPet,
		CategoryAgricultural,
	}
}

// ParseCategory normalizes a category tag. Unknown tags report ok=false.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return c, false
}

// AnalysisType selects the image damage sub-pipeline
type AnalysisType string

const (
	AnalysisVehicle  AnalysisType = "vehicle"
	AnalysisHealth   AnalysisType = "health"
	AnalysisProperty AnalysisType = "property"
	AnalysisGeneral  AnalysisType = "general"
)

// ParseAnalysisType normalizes an analysis type, falling back to general
func ParseAnalysisType(s string) AnalysisType {
	switch t := AnalysisType(strings.ToLower(strings.TrimSpace(s))); t {
	case AnalysisVehicle, AnalysisHealth, AnalysisProperty:
		return t
	default:
		return AnalysisGeneral
	}
}

// DamageRelevant reports whether the damage sub-pipeline applies
func (t AnalysisType) DamageRelevant() bool {
	return t == AnalysisVehicle || t == AnalysisHealth || t == AnalysisProperty
}

// DocumentType is the declared type of a submitted document
type DocumentType string

const (
	DocMedicalBill     DocumentType = "medical_bill"
	DocPrescription    DocumentType = "prescription"
	DocHospitalReport  DocumentType = "hospital_report"
	DocVehicleEstimate DocumentType = "vehicle_estimate"
	DocPoliceReport    DocumentType = "police_report"
	DocInvoice         DocumentType = "invoice"
	DocReceipt         DocumentType = "receipt"
	DocPhotoID         DocumentType = "photo_id"
	DocInsuranceCard   DocumentType = "insurance_card"
	DocGeneral         DocumentType = "general"
)

// ParseDocumentType normalizes a document type; empty input means general
func ParseDocumentType(s string) DocumentType {
	t := DocumentType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return DocGeneral
	}
	return t
}

// ClaimRequest is a narrative submitted for fraud scoring
type ClaimRequest struct {
	ClaimID     string   `json:"claim_id,omitempty"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Amount      float64  `json:"amount"`

	// LearnedAnomalyScore is an optional externally computed score in [0,1].
	// It only contributes when the weight table assigns it a weight.
	LearnedAnomalyScore *float64 `json:"learned_anomaly_score,omitempty"`
}
