// Package gateway defines the narrow contracts for the two external
// collaborators (the document store holding location tables and the
// geocoding provider) so the pipeline can run against fakes in tests.
package gateway

import (
	"context"

	"github.com/scoutdesk/scoutdesk/internal/models"
)

// Store reads and writes location rows in the external document store.
// Reads are paginated internally; writes are partial field updates keyed
// by canonical field name.
type Store interface {
	// FetchMasters returns all master locations, archived ones included
	FetchMasters(ctx context.Context) ([]models.MasterLocation, error)

	// FetchRecords returns the per-production records of every registered
	// production table
	FetchRecords(ctx context.Context) ([]models.LocationRecord, error)

	// FetchRecordsForTable returns the records of one production table.
	// Masters are not records; read them through FetchMasters.
	FetchRecordsForTable(ctx context.Context, table string) ([]models.LocationRecord, error)

	// UpdateRecord applies a partial update to a per-production record
	UpdateRecord(ctx context.Context, pageID string, fields map[string]interface{}) error

	// UpdateMaster applies a partial update to a master location
	UpdateMaster(ctx context.Context, pageID string, fields map[string]interface{}) error

	// CreateMaster inserts a new master location and returns its page id
	CreateMaster(ctx context.Context, m *models.MasterLocation) (string, error)
}

// GeocodeResult is the subset of provider fields the pipeline consumes
type GeocodeResult struct {
	PlaceID          string
	FormattedAddress string
	models.StructuredAddress
	Latitude       float64
	Longitude      float64
	MapURL         string
	Types          []string // coarse classification only
	BusinessStatus string
}

// Geocoder resolves a place identifier or free-text address to canonical
// place data
type Geocoder interface {
	PlaceByID(ctx context.Context, placeID string) (*GeocodeResult, error)
	PlaceByAddress(ctx context.Context, raw string) (*GeocodeResult, error)
}

// TableMasters is the logical table name callers use to aim an operation
// at the canonical master list instead of a production table
const TableMasters = "masters"

// EntityKind routes a FieldUpdate to the right store write
type EntityKind string

const (
	EntityRecord EntityKind = "record"
	EntityMaster EntityKind = "master"
)

// FieldUpdate is one staged partial write against the external store
type FieldUpdate struct {
	Entity EntityKind             `json:"entity"`
	PageID string                 `json:"page_id"`
	Table  string                 `json:"table,omitempty"`
	Fields map[string]interface{} `json:"fields"`
	Reason string                 `json:"reason,omitempty"`
}
