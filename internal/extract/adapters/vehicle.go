package adapters

import (
	"regexp"
	"strings"

	"github.com/ppiankov/claimlens/internal/model"
)

// VehicleAdapter extracts VIN, vehicle identity and damage description from repair estimates
type VehicleAdapter struct {
	BaseAdapter
	vin         *regexp.Regexp
	yearMake    *regexp.Regexp
	vehicleLine *regexp.Regexp
	damage      []*regexp.Regexp
}

// NewVehicleAdapter creates a new vehicle estimate adapter
func NewVehicleAdapter() *VehicleAdapter {
	return &VehicleAdapter{
		vin:         regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`),
		yearMake:    regexp.MustCompile(`(?i)\b((?:19|20)\d{2})\s+([A-Za-z]+)\s+([A-Za-z]+)`),
		vehicleLine: regexp.MustCompile(`(?i)vehicle:[ \t]*([A-Za-z0-9][A-Za-z0-9 \t]*)`),
		damage: []*regexp.Regexp{
			regexp.MustCompile(`(?i)(?:damage|description):[ \t]*([A-Za-z0-9][A-Za-z0-9 \t,.-]*)`),
			regexp.MustCompile(`(?i)(?:repair|fix):[ \t]*([A-Za-z0-9][A-Za-z0-9 \t,.-]*)`),
		},
	}
}

// Name returns the adapter name
func (a *VehicleAdapter) Name() string {
	return "vehicle"
}

// CanHandle checks if this is a vehicle estimate
func (a *VehicleAdapter) CanHandle(docType model.DocumentType) bool {
	return docType == model.DocVehicleEstimate
}

// ExtractFields captures vin, vehicle_year/make/model or vehicle_info, and damage_description
func (a *VehicleAdapter) ExtractFields(text string, data model.ExtractedData) {
	if vin := a.vin.FindString(text); vin != "" {
		data["vin"] = vin
	}

	if m := a.yearMake.FindStringSubmatch(text); m != nil {
		data["vehicle_year"] = m[1]
		data["vehicle_make"] = m[2]
		data["vehicle_model"] = m[3]
	} else if m := a.vehicleLine.FindStringSubmatch(text); m != nil {
		data["vehicle_info"] = strings.TrimSpace(m[1])
	}

	a.Capture(text, data, "damage_description", a.damage...)
}
