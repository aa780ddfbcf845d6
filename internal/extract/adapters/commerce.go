package adapters

import (
	"regexp"

	"github.com/ppiankov/claimlens/internal/model"
)

// CommerceAdapter extracts invoice number and vendor from invoices and receipts
type CommerceAdapter struct {
	BaseAdapter
	number []*regexp.Regexp
	vendor []*regexp.Regexp
}

// NewCommerceAdapter creates a new invoice/receipt adapter
func NewCommerceAdapter() *CommerceAdapter {
	return &CommerceAdapter{
		number: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:invoice|receipt)\s*(?:#|no\.?|number)?\s*:?\s*([A-Za-z0-9-]*\d[A-Za-z0-9-]*)`),
			regexp.MustCompile(`(?i)\b(?:number|no)[.:]\s*(\w+)`),
		},
		vendor: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:from|vendor|company):[ \t]*([A-Za-z][A-Za-z &.'-]*)`),
			regexp.MustCompile(`(?i)(?:merchant|business|store):[ \t]*([A-Za-z][A-Za-z &.'-]*)`),
		},
	}
}

// Name returns the adapter name
func (a *CommerceAdapter) Name() string {
	return "commerce"
}

// CanHandle checks if this is an invoice or receipt
func (a *CommerceAdapter) CanHandle(docType model.DocumentType) bool {
	return docType == model.DocInvoice || docType == model.DocReceipt
}

// ExtractFields captures invoice_number and vendor
func (a *CommerceAdapter) ExtractFields(text string, data model.ExtractedData) {
	a.Capture(text, data, "invoice_number", a.number...)
	a.Capture(text, data, "vendor", a.vendor...)
}
