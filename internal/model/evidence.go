package model

import "sort"

// Document is a submitted document together with its extracted text
type Document struct {
	Content       []byte       `json:"-"`                        // Raw bytes, used for hashing only
	Filename      string       `json:"filename"`                 // Original filename
	Type          DocumentType `json:"document_type"`            // Declared type
	Text          string       `json:"text"`                     // OCR or supplied text
	OCRConfidence float64      `json:"ocr_confidence,omitempty"` // Confidence reported by the OCR collaborator
}

// Image is a submitted photograph
type Image struct {
	Content      []byte       `json:"-"`
	Filename     string       `json:"filename"`
	AnalysisType AnalysisType `json:"analysis_type"`
}

// ExtractedData maps field names to regex-captured values.
// Values are string, float64, []string or []float64. Absent keys mean "not found".
type ExtractedData map[string]any

// Has reports whether a field is present and non-empty
func (d ExtractedData) Has(key string) bool {
	v, ok := d[key]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case string:
		return t != ""
	case []string:
		return len(t) > 0
	case []float64:
		return len(t) > 0
	default:
		return v != nil
	}
}

// String returns a string field or ""
func (d ExtractedData) String(key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

// Strings returns a list field or nil
func (d ExtractedData) Strings(key string) []string {
	if s, ok := d[key].([]string); ok {
		return s
	}
	return nil
}

// Floats returns a numeric list field or nil
func (d ExtractedData) Floats(key string) []float64 {
	if f, ok := d[key].([]float64); ok {
		return f
	}
	return nil
}

// Keys returns the present field names sorted
func (d ExtractedData) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
