// Package facility holds the record produced for each recycling facility.
package facility

import (
	"encoding/xml"
	"strings"
)

// Unknown is written to any field no extraction strategy could fill.
const Unknown = "N/A"

// Record is a single recycling facility as read from its detail view.
type Record struct {
	Name              string `json:"Business_name" xml:"name" yaml:"Business_name"`
	LastUpdated       string `json:"last_update_date" xml:"lastUpdated" yaml:"last_update_date"`
	StreetAddress     string `json:"street_address" xml:"streetAddress" yaml:"street_address"`
	MaterialsAccepted string `json:"materials_accepted" xml:"materialsAccepted" yaml:"materials_accepted"`
}

// Records wraps a result set for XML output.
type Records struct {
	XMLName    xml.Name `json:"-" xml:"facilities" yaml:"-"`
	Facilities []Record `json:"facilities" xml:"facility" yaml:"facilities"`
}

// New builds a Record, substituting Unknown for blank fields.
func New(name, lastUpdated, streetAddress, materials string) Record {
	return Record{
		Name:              orUnknown(name),
		LastUpdated:       orUnknown(lastUpdated),
		StreetAddress:     orUnknown(streetAddress),
		MaterialsAccepted: orUnknown(materials),
	}
}

// Empty returns a Record with every field set to Unknown.
func Empty() Record {
	return New("", "", "", "")
}

// Named reports whether the record resolved a facility name.
func (r Record) Named() bool {
	return r.Name != Unknown
}

// Fields returns the record in column order.
func (r Record) Fields() []string {
	return []string{r.Name, r.LastUpdated, r.StreetAddress, r.MaterialsAccepted}
}

// Header is the column header matching Fields.
var Header = []string{"Business_name", "last_update_date", "street_address", "materials_accepted"}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}
