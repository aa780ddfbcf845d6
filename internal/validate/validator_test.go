package validate

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/claimlens/internal/model"
	"github.com/ppiankov/claimlens/internal/rules"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	tables, err := rules.Default()
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	v := NewValidator(tables)
	v.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return v
}

func hasIssue(issues []string, substr string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, substr) {
			return true
		}
	}
	return false
}

const vehicleEstimate = `Vehicle Repair Estimate
Vehicle: 2019 Honda Civic
VIN: 1HGCM82633A004352
Damage: front bumper and hood damage
Parts: $850.00
Labor: $420.00
Total estimate: $1270.00
Date: 03/14/2024`

func TestValidator_ShortMedicalBill(t *testing.T) {
	v := newTestValidator(t)

	report := v.Validate(model.Document{
		Filename: "bill.txt",
		Type:     model.DocMedicalBill,
		Text:     "Patient: John Doe. Bill $10.00",
	})

	if report.IsValid {
		t.Errorf("Expected short medical bill to be invalid (score %.3f)", report.ValidationScore)
	}
	if !hasIssue(report.Issues, "minimum: 50") {
		t.Errorf("Expected a minimum length issue, got %v", report.Issues)
	}
	if !strings.HasPrefix(report.Issues[0], "Text too short") {
		t.Errorf("Expected text issues first, got %q", report.Issues[0])
	}
	if report.RuleTable != model.DocMedicalBill {
		t.Errorf("Expected medical_bill rule table, got %s", report.RuleTable)
	}
}

func TestValidator_VehicleEstimateWithVIN(t *testing.T) {
	v := newTestValidator(t)

	report := v.Validate(model.Document{
		Content:  []byte(vehicleEstimate),
		Filename: "estimate.txt",
		Type:     model.DocVehicleEstimate,
		Text:     vehicleEstimate,
	})

	for _, forbidden := range []string{"Missing vehicle information", "No VIN number found", "Required field missing"} {
		if hasIssue(report.Issues, forbidden) {
			t.Errorf("Unexpected issue %q in %v", forbidden, report.Issues)
		}
	}

	data := report.ExtractedData
	if got := data.String("vin"); got != "1HGCM82633A004352" {
		t.Errorf("Expected VIN 1HGCM82633A004352, got %q", got)
	}
	if data.String("vehicle_year") != "2019" || data.String("vehicle_make") != "Honda" || data.String("vehicle_model") != "Civic" {
		t.Errorf("Unexpected vehicle fields: %v", data)
	}
	if got := data.String("damage_description"); got != "front bumper and hood damage" {
		t.Errorf("Unexpected damage description %q", got)
	}
	if len(report.ContentSHA256) != 64 {
		t.Errorf("Expected hex sha256, got %q", report.ContentSHA256)
	}
	if report.SuggestedType != model.DocVehicleEstimate {
		t.Errorf("Expected suggested type vehicle_estimate, got %s", report.SuggestedType)
	}
}

func TestValidator_DatesFarApart(t *testing.T) {
	v := newTestValidator(t)

	report := v.Validate(model.Document{
		Type: model.DocGeneral,
		Text: "Service on 01/10/2023 and payment on 02/14/2024 confirmed by the clinic",
	})

	if !hasIssue(report.Issues, "Inconsistent dates detected") {
		t.Errorf("Expected inconsistent dates issue, got %v", report.Issues)
	}
	if !hasIssue(report.Issues, "Data integrity issues detected") {
		t.Errorf("Expected data integrity issue for dates over a year apart, got %v", report.Issues)
	}
}

func TestValidator_ScoreMatchesValidity(t *testing.T) {
	v := newTestValidator(t)

	docs := []model.Document{
		{Type: model.DocMedicalBill, Text: "Patient: John Doe. Bill $10.00"},
		{Type: model.DocVehicleEstimate, Text: vehicleEstimate},
		{Type: model.DocInvoice, Text: "Invoice #12345\nFrom: ACME Supplies\nTotal due: $120.00\nDate: 05/02/2024"},
		{Type: model.DocReceipt, Text: "Receipt\nMerchant: Corner Store\nPaid $4.50 on 05/20/2024\nTransaction 889"},
		{Type: model.DocPoliceReport, Text: "Police report number 2024-118. Officer attended the incident on 04/04/2024. Description: rear-end collision at a junction"},
		{Type: "spaceship", Text: "!!!!!!!! ######## $9999999.00"},
		{Type: model.DocGeneral, Text: "lorem ipsum placeholder sample [x] <y> xxxx"},
	}

	for _, doc := range docs {
		report := v.Validate(doc)
		if report.ValidationScore < 0 || report.ValidationScore > 1 {
			t.Errorf("%s: score %.3f out of range", doc.Type, report.ValidationScore)
		}
		if report.IsValid != (report.ValidationScore >= 0.6) {
			t.Errorf("%s: is_valid %v does not match score %.3f", doc.Type, report.IsValid, report.ValidationScore)
		}
		if report.Confidence < 0 || report.Confidence > 1 {
			t.Errorf("%s: confidence %.3f out of range", doc.Type, report.Confidence)
		}
	}
}

func TestValidator_UnknownTypeUsesGeneral(t *testing.T) {
	v := newTestValidator(t)

	report := v.Validate(model.Document{Type: "spaceship", Text: "A perfectly ordinary note about the claim"})
	if report.RuleTable != model.DocGeneral {
		t.Errorf("Expected general rule table, got %s", report.RuleTable)
	}
	if report.DocumentType != "spaceship" {
		t.Errorf("Expected declared type to be kept, got %s", report.DocumentType)
	}
}

func TestValidator_EmptyTextFails(t *testing.T) {
	v := newTestValidator(t)

	report := v.Validate(model.Document{Type: model.DocInvoice, Text: "  \n "})

	if report.IsValid || report.ValidationScore != 0 || report.Confidence != 0 {
		t.Errorf("Expected failed report, got valid=%v score=%.3f confidence=%.3f",
			report.IsValid, report.ValidationScore, report.Confidence)
	}
	if len(report.Issues) != 1 || !strings.HasPrefix(report.Issues[0], "Validation error:") {
		t.Errorf("Expected a single validation error issue, got %v", report.Issues)
	}
}

func TestValidator_PlaceholderAuthenticity(t *testing.T) {
	v := newTestValidator(t)

	report := v.Validate(model.Document{
		Type: model.DocInvoice,
		Text: "Invoice #12345 from Company: ACME. Total due $100.00 on 01/02/2024. Lorem ipsum [NAME]",
	})

	if math.Abs(report.AuthenticityScore-0.6) > 1e-9 {
		t.Errorf("Expected authenticity 0.6, got %.4f", report.AuthenticityScore)
	}
	if math.Abs(report.Confidence-0.8) > 1e-9 {
		t.Errorf("Expected confidence (1+0.6)/2 = 0.8, got %.4f", report.Confidence)
	}
	for _, want := range []string{"Placeholder text detected: lorem ipsum", `Placeholder text detected: \[.*\]`} {
		if !hasIssue(report.Issues, want) {
			t.Errorf("Expected issue %q, got %v", want, report.Issues)
		}
	}
	if !containsString(report.RiskFactors, FactorAuthenticity) {
		t.Errorf("Expected authenticity risk factor, got %v", report.RiskFactors)
	}
}

func TestValidator_MedicalCrossValidation(t *testing.T) {
	v := newTestValidator(t)

	text := "Patient Name: Jane Smith\nProvider: Jane Smith\nDate of Service: 03/01/2024\nTreatment charge $200.00, CPT 99213"
	report := v.Validate(model.Document{Type: model.DocMedicalBill, Text: text})

	data := report.ExtractedData
	if data.String("patient_name") != "Jane Smith" {
		t.Errorf("Expected patient name Jane Smith, got %q", data.String("patient_name"))
	}
	if data.String("service_date") != "03/01/2024" {
		t.Errorf("Expected service date 03/01/2024, got %q", data.String("service_date"))
	}
	if !hasIssue(report.Issues, "Patient and provider names are identical") {
		t.Errorf("Expected identical names issue, got %v", report.Issues)
	}
	if hasIssue(report.Issues, "No medical billing codes") {
		t.Errorf("CPT code should satisfy the identifier check: %v", report.Issues)
	}
}

func TestValidator_UnreasonableDates(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		date string
		want bool
	}{
		{"05/20/2024", true},
		{"06/25/2024", true},
		{"08/01/2024", false},
		{"13/01/2024", false},
		{"02/30/2024", false},
		{"01/01/1850", false},
		{"01/01/2099", false},
	}

	for _, tt := range tests {
		if got := v.reasonableDate(tt.date); got != tt.want {
			t.Errorf("reasonableDate(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestValidator_FormattingInconsistency(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"aligned", "Total\nTax\nDue", false},
		{"ragged indent", "Total\n                         Tax\nDue", true},
		{"mixed number styles", "Paid 1,200 and 15.50 and 3.25", true},
		{"consistent numbers", "Paid 1,200.00 and 3,500.25", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.inconsistentFormatting(tt.text); got != tt.want {
				t.Errorf("inconsistentFormatting = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidator_UnusualCharacters(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"plain words", "Paid in full on delivery", false},
		{"few symbols", "Total: $12.50 (paid)", false},
		{"mostly symbols", "#$%^&*() ab", true},
		{"five repeats", "Claim 100000 filed", false},
		{"six repeats", "Claim 1000000 filed", true},
		{"repeated letters", "Pleaaaaaase pay", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.unusualCharacters(tt.text); got != tt.want {
				t.Errorf("unusualCharacters(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}

	report := v.Validate(model.Document{Type: model.DocGeneral, Text: "Receipt ##@@!!%%&&** for repairs"})
	if !hasIssue(report.Issues, "Unusual character patterns detected") {
		t.Errorf("Expected unusual characters issue, got %v", report.Issues)
	}
	if math.Abs(report.AuthenticityScore-0.9) > 1e-9 {
		t.Errorf("Expected authenticity 0.9, got %.4f", report.AuthenticityScore)
	}
}

func TestValidator_AmountChecks(t *testing.T) {
	v := newTestValidator(t)

	var many strings.Builder
	many.WriteString("Invoice #778 from Company: ACME, total due 01/02/2024:")
	for i := 1; i <= 11; i++ {
		many.WriteString(" $" + strings.Repeat("1", i%3+1) + ".00")
	}

	tests := []struct {
		name    string
		text    string
		issue   string
		flagged bool
	}{
		{"eleven amounts", many.String(), "Too many monetary amounts detected", true},
		{"two amounts", "Invoice #778 from Company: ACME, total due $100.00 plus $120.00 on 01/02/2024", "Too many monetary amounts detected", false},
		{"wide spread", "Invoice #778 from Company: ACME, total due $10.00 plus $900.00 on 01/02/2024", "Large variance in monetary amounts", true},
		{"narrow spread", "Invoice #778 from Company: ACME, total due $100.00 plus $120.00 on 01/02/2024", "Large variance in monetary amounts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Validate(model.Document{Type: model.DocInvoice, Text: tt.text})
			if got := hasIssue(report.Issues, tt.issue); got != tt.flagged {
				t.Errorf("issue %q present = %v, want %v (issues: %v)", tt.issue, got, tt.flagged, report.Issues)
			}
		})
	}
}

func TestValidator_SuspiciousPhrases(t *testing.T) {
	v := newTestValidator(t)

	report := v.Validate(model.Document{
		Type: model.DocGeneral,
		Text: "This draft statement repeats the sample text from the claim form",
	})

	for _, want := range []string{"Suspicious content detected: draft", "Suspicious content detected: sample text"} {
		if !hasIssue(report.Issues, want) {
			t.Errorf("Expected issue %q, got %v", want, report.Issues)
		}
	}
	if hasIssue(report.Issues, "Suspicious content detected: duplicate") {
		t.Errorf("Unexpected duplicate phrase issue: %v", report.Issues)
	}
	if !containsString(report.RiskFactors, FactorTextQuality) {
		t.Errorf("Expected text quality risk factor, got %v", report.RiskFactors)
	}
}

func TestValidator_WordRepetition(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		text string
		want bool
	}{
		{"varied", "The insured vehicle was parked outside overnight", false},
		{"below limit", "claim claim claim claim paid paid paid late late now", false},
		{"above limit", "claim claim claim claim claim claim claim claim claim paid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := v.Validate(model.Document{Type: model.DocGeneral, Text: tt.text})
			if got := hasIssue(report.Issues, "Excessive word repetition detected"); got != tt.want {
				t.Errorf("repetition issue = %v, want %v (issues: %v)", got, tt.want, report.Issues)
			}
		})
	}
}
