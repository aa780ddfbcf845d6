// Package adapters holds the per-document-type field extractors. Each
// adapter knows the labels a family of documents uses ("Patient:",
// "VIN", "Invoice #") and captures them into ExtractedData.
package adapters

import (
	"regexp"
	"strings"

	"github.com/ppiankov/claimlens/internal/model"
)

// Adapter defines the interface for document-type specific extractors
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter extracts fields for the document type
	CanHandle(docType model.DocumentType) bool

	// ExtractFields adds type-specific fields to data. Fields that are not
	// found are left absent.
	ExtractFields(text string, data model.ExtractedData)
}

// Registry manages document adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0, 4),
	}

	registry.Register(NewMedicalAdapter())
	registry.Register(NewVehicleAdapter())
	registry.Register(NewCommerceAdapter())
	registry.Register(NewPoliceAdapter())

	// Documents without their own adapter only get the common fields
	registry.generic = genericAdapter{}

	return registry
}

// Register registers a new adapter. Later registrations do not override
// earlier ones for the same type.
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the given document type
func (r *Registry) FindAdapter(docType model.DocumentType) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(docType) {
			return adapter
		}
	}
	return r.generic
}

// BaseAdapter provides common functionality for adapters
type BaseAdapter struct{}

// Capture stores the first capture of the first matching pattern under key
func (b *BaseAdapter) Capture(text string, data model.ExtractedData, key string, patterns ...*regexp.Regexp) bool {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			if v := strings.TrimSpace(m[1]); v != "" {
				data[key] = v
				return true
			}
		}
	}
	return false
}

type genericAdapter struct{}

func (genericAdapter) Name() string                             { return "generic" }
func (genericAdapter) CanHandle(model.DocumentType) bool        { return true }
func (genericAdapter) ExtractFields(string, model.ExtractedData) {}
