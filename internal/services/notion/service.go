// Package notion implements the document-store gateway on the Notion API:
// a productions registry database, one locations database per production,
// and the canonical master-location database.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jomei/notionapi"
	"github.com/scoutdesk/scoutdesk/internal/config"
	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// Registry database property names
const (
	regFieldName         = "Name"
	regFieldProductionID = "Production ID"
	regFieldLocationsDB  = "Locations DB ID"
)

// Production is one row of the productions registry
type Production struct {
	Name          string
	ProductionID  string
	LocationsDBID string
}

// Service implements gateway.Store against the Notion API
type Service struct {
	client *notionapi.Client
	cfg    config.NotionConfig

	mu          sync.Mutex
	productions []Production
}

// NewService creates a Notion-backed store gateway
func NewService(cfg config.NotionConfig) *Service {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &Service{
		client: notionapi.NewClient(notionapi.Token(cfg.Token)),
		cfg:    cfg,
	}
}

// Productions returns the registry rows, fetching them on first use
func (s *Service) Productions(ctx context.Context) ([]Production, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productions != nil {
		return s.productions, nil
	}

	pages, err := s.queryAll(ctx, s.cfg.ProductionsDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to load productions registry: %w", err)
	}

	var prods []Production
	for _, page := range pages {
		p := Production{
			Name:          propTitle(page.Properties, regFieldName),
			ProductionID:  propText(page.Properties, regFieldProductionID),
			LocationsDBID: propText(page.Properties, regFieldLocationsDB),
		}
		if p.LocationsDBID == "" {
			log.Printf("⚠️ Notion: production %q has no locations database id, skipping", p.Name)
			continue
		}
		prods = append(prods, p)
	}

	s.productions = prods
	return prods, nil
}

// queryAll pages through a database until exhaustion
func (s *Service) queryAll(ctx context.Context, dbID string) ([]notionapi.Page, error) {
	if dbID == "" {
		return nil, fmt.Errorf("database id not configured")
	}

	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := s.client.Database.Query(ctx, notionapi.DatabaseID(dbID), &notionapi.DatabaseQueryRequest{
			PageSize:    s.cfg.PageSize,
			StartCursor: cursor,
		})
		if err != nil {
			return nil, classify(err)
		}

		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// FetchMasters returns every master location, archived ones included
func (s *Service) FetchMasters(ctx context.Context) ([]models.MasterLocation, error) {
	pages, err := s.queryAll(ctx, s.cfg.MasterDBID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch masters: %w", err)
	}

	masters := make([]models.MasterLocation, 0, len(pages))
	for _, page := range pages {
		masters = append(masters, masterFromPage(page))
	}
	return masters, nil
}

// FetchRecords returns the records of every registered production
func (s *Service) FetchRecords(ctx context.Context) ([]models.LocationRecord, error) {
	prods, err := s.Productions(ctx)
	if err != nil {
		return nil, err
	}

	var records []models.LocationRecord
	for _, p := range prods {
		pages, err := s.queryAll(ctx, p.LocationsDBID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch records for %q: %w", p.Name, err)
		}
		for _, page := range pages {
			records = append(records, recordFromPage(page, p.Name, p.ProductionID))
		}
	}
	return records, nil
}

// FetchRecordsForTable returns one logical table's records
func (s *Service) FetchRecordsForTable(ctx context.Context, table string) ([]models.LocationRecord, error) {
	if table == gateway.TableMasters {
		return nil, fmt.Errorf("masters table holds MasterLocations, not records")
	}

	prods, err := s.Productions(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range prods {
		if p.Name != table {
			continue
		}
		pages, err := s.queryAll(ctx, p.LocationsDBID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch records for %q: %w", table, err)
		}
		records := make([]models.LocationRecord, 0, len(pages))
		for _, page := range pages {
			records = append(records, recordFromPage(page, p.Name, p.ProductionID))
		}
		return records, nil
	}
	return nil, fmt.Errorf("unknown table %q", table)
}

// recordWritable lists the canonical fields the pipeline may write on a
// per-production record
var recordWritable = map[string]bool{
	gateway.FieldFullAddress: true, gateway.FieldAddress1: true,
	gateway.FieldAddress2: true, gateway.FieldAddress3: true,
	gateway.FieldCity: true, gateway.FieldState: true,
	gateway.FieldZip: true, gateway.FieldCountry: true,
	gateway.FieldCounty: true, gateway.FieldBorough: true,
	gateway.FieldPlaceID: true, gateway.FieldLatitude: true,
	gateway.FieldLongitude: true, gateway.FieldMaster: true,
	gateway.FieldStatus: true,
}

// masterWritable lists the canonical fields the pipeline may write on a
// master location. User-owned fields are deliberately absent except the
// title, which only CreateMaster sets.
var masterWritable = map[string]bool{
	gateway.FieldAddress1: true, gateway.FieldAddress2: true,
	gateway.FieldAddress3: true, gateway.FieldCity: true,
	gateway.FieldState: true, gateway.FieldZip: true,
	gateway.FieldCountry: true, gateway.FieldCounty: true,
	gateway.FieldBorough: true, gateway.FieldPlaceID: true,
	gateway.FieldLatitude: true, gateway.FieldLongitude: true,
	gateway.FieldFormatted: true, gateway.FieldGoogleFormatted: true,
	gateway.FieldMapURL: true, gateway.FieldCategories: true,
	gateway.FieldStatus: true, gateway.FieldBusinessStatus: true,
	gateway.FieldArchived: true,
}

func validateFields(fields map[string]interface{}, allowed map[string]bool) error {
	for name := range fields {
		if !allowed[name] {
			return fmt.Errorf("%w: field %q is not writable", gateway.ErrSchemaMismatch, name)
		}
	}
	return nil
}

// UpdateRecord applies a partial update to a per-production record
func (s *Service) UpdateRecord(ctx context.Context, pageID string, fields map[string]interface{}) error {
	if err := validateFields(fields, recordWritable); err != nil {
		return err
	}
	_, err := s.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: propertiesFromFields(fields),
	})
	return classify(err)
}

// UpdateMaster applies a partial update to a master location
func (s *Service) UpdateMaster(ctx context.Context, pageID string, fields map[string]interface{}) error {
	if err := validateFields(fields, masterWritable); err != nil {
		return err
	}
	_, err := s.client.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: propertiesFromFields(fields),
	})
	return classify(err)
}

// CreateMaster inserts a new master location row
func (s *Service) CreateMaster(ctx context.Context, m *models.MasterLocation) (string, error) {
	props := propertiesFromFields(map[string]interface{}{
		gateway.FieldAddress1:        m.Address1,
		gateway.FieldAddress2:        m.Address2,
		gateway.FieldAddress3:        m.Address3,
		gateway.FieldCity:            m.City,
		gateway.FieldState:           m.State,
		gateway.FieldZip:             m.Zip,
		gateway.FieldCountry:         m.Country,
		gateway.FieldCounty:          m.County,
		gateway.FieldBorough:         m.Borough,
		gateway.FieldPlaceID:         m.PlaceID,
		gateway.FieldLatitude:        m.Latitude,
		gateway.FieldLongitude:       m.Longitude,
		gateway.FieldFormatted:       m.FormattedAddress,
		gateway.FieldGoogleFormatted: m.GoogleFormatted,
		gateway.FieldMapURL:          m.MapURL,
		gateway.FieldCategories:      m.Categories,
		gateway.FieldStatus:          string(m.Status),
		gateway.FieldBusinessStatus:  m.BusinessStatus,
	})
	props[gateway.FieldName] = titleProp(m.Name)
	props[gateway.FieldMasterID] = &notionapi.NumberProperty{Number: float64(m.MasterID)}

	page, err := s.client.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(s.cfg.MasterDBID),
		},
		Properties: props,
	})
	if err != nil {
		return "", classify(err)
	}
	return string(page.ID), nil
}

// classify maps Notion API failures onto the gateway error taxonomy so the
// write-back coordinator can tell transient from structural problems
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case "rate_limited":
			return fmt.Errorf("%w: %s", gateway.ErrRateLimited, apiErr.Message)
		case "validation_error":
			return fmt.Errorf("%w: %s", gateway.ErrSchemaMismatch, apiErr.Message)
		case "object_not_found":
			return fmt.Errorf("%w: %s", gateway.ErrNotFound, apiErr.Message)
		}
		if apiErr.Status >= 500 {
			return &gateway.TransientError{Err: err}
		}
		return err
	}

	// Network-level failures are worth retrying
	return &gateway.TransientError{Err: err}
}
