package models

import (
	"strings"
	"time"
)

// PipelineStatus describes where a record sits in the resolution pipeline
type PipelineStatus string

const (
	StatusUnresolved PipelineStatus = "Unresolved"
	StatusReady      PipelineStatus = "Ready"
	StatusMatched    PipelineStatus = "Matched"
)

// StructuredAddress holds the normalized address components shared by
// per-production records and master locations
type StructuredAddress struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2,omitempty"`
	Address3 string `json:"address3,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Zip      string `json:"zip"`
	Country  string `json:"country"`
	County   string `json:"county,omitempty"`
	Borough  string `json:"borough,omitempty"`
}

// IsBlank reports whether no component carries a usable value.
// Whitespace-only values count as empty.
func (a StructuredAddress) IsBlank() bool {
	fields := []string{a.Address1, a.Address2, a.Address3, a.City, a.State, a.Zip, a.Country, a.County, a.Borough}
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Completeness counts non-empty structured fields (used as a merge tie-break)
func (a StructuredAddress) Completeness() int {
	n := 0
	for _, f := range []string{a.Address1, a.Address2, a.Address3, a.City, a.State, a.Zip, a.Country, a.County, a.Borough} {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

// LocationRecord is one production's usage of a physical place.
// Stored as a row in that production's Notion locations database.
type LocationRecord struct {
	PageID       string `json:"page_id"`
	ProdLocID    int    `json:"prod_loc_id"`
	ProductionID string `json:"production_id"`
	Table        string `json:"table"` // logical table name (production slug)

	FullAddress string `json:"full_address,omitempty"`
	StructuredAddress

	PlaceID   string  `json:"place_id,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`

	// MasterRef is the Notion page id of the linked MasterLocation
	MasterRef string         `json:"master_ref,omitempty"`
	Status    PipelineStatus `json:"status"`
}

// HasCoordinates reports whether the record carries a usable coordinate pair
func (r *LocationRecord) HasCoordinates() bool {
	return r.Latitude != 0 || r.Longitude != 0
}

// MasterLocation is the canonical representation of one physical place
type MasterLocation struct {
	PageID   string `json:"page_id"`
	MasterID int    `json:"master_id"`

	// User-owned fields. The pipeline never writes these.
	Name          string `json:"name"`
	PracticalName string `json:"practical_name,omitempty"`
	Notes         string `json:"notes,omitempty"`

	StructuredAddress

	// FormattedAddress is built from the canonical template by the
	// normalizer; GoogleFormatted is kept verbatim from the provider.
	FormattedAddress string `json:"formatted_address,omitempty"`
	GoogleFormatted  string `json:"google_formatted,omitempty"`

	PlaceID    string   `json:"place_id,omitempty"`
	Latitude   float64  `json:"latitude,omitempty"`
	Longitude  float64  `json:"longitude,omitempty"`
	MapURL     string   `json:"map_url,omitempty"`
	Categories []string `json:"categories,omitempty"`

	Status PipelineStatus `json:"status"`
	// BusinessStatus carries the provider's operational state
	// (OPERATIONAL, CLOSED_PERMANENTLY, ...). Never conflated with Status.
	BusinessStatus string `json:"business_status,omitempty"`
	Archived       bool   `json:"archived"`

	CreatedTime time.Time `json:"created_time"`
}

// HasCoordinates reports whether the master carries a usable coordinate pair
func (m *MasterLocation) HasCoordinates() bool {
	return m.Latitude != 0 || m.Longitude != 0
}
