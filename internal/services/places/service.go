// Package places implements the geocoding gateway on the Google Maps
// Platform (Place Details and Find Place endpoints).
package places

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// Service implements gateway.Geocoder
type Service struct {
	client *maps.Client
}

// NewService creates a Maps-backed geocoder
func NewService(apiKey string) (*Service, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("maps api key is required")
	}
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &Service{client: c}, nil
}

// PlaceByID fetches canonical place data for a known place id
func (s *Service) PlaceByID(ctx context.Context, placeID string) (*gateway.GeocodeResult, error) {
	detail, err := s.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
	})
	if err != nil {
		return nil, classify(err)
	}
	return fromDetails(&detail), nil
}

// PlaceByAddress resolves a free-text address to a single place. An
// ambiguous query takes the first candidate, which Google ranks by
// relevance to the full input string.
func (s *Service) PlaceByAddress(ctx context.Context, raw string) (*gateway.GeocodeResult, error) {
	resp, err := s.client.FindPlaceFromText(ctx, &maps.FindPlaceFromTextRequest{
		Input:     raw,
		InputType: maps.FindPlaceFromTextInputTypeTextQuery,
	})
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no place found for %q", gateway.ErrNotFound, raw)
	}
	return s.PlaceByID(ctx, resp.Candidates[0].PlaceID)
}

// fromDetails maps a Place Details payload onto the gateway result
func fromDetails(d *maps.PlaceDetailsResult) *gateway.GeocodeResult {
	res := &gateway.GeocodeResult{
		PlaceID:           d.PlaceID,
		FormattedAddress:  d.FormattedAddress,
		StructuredAddress: componentsToStructured(d.AddressComponents),
		Latitude:          d.Geometry.Location.Lat,
		Longitude:         d.Geometry.Location.Lng,
		MapURL:            d.URL,
		Types:             d.Types,
		BusinessStatus:    d.BusinessStatus,
	}
	return res
}

// componentsToStructured folds Google address components into the
// structured address shape the pipeline works with. Street number and
// route combine into the first address line; a subpremise becomes the
// second.
func componentsToStructured(comps []maps.AddressComponent) models.StructuredAddress {
	var addr models.StructuredAddress
	var streetNumber, route string

	for _, c := range comps {
		for _, t := range c.Types {
			switch t {
			case "street_number":
				streetNumber = c.LongName
			case "route":
				route = c.LongName
			case "subpremise":
				addr.Address2 = c.LongName
			case "locality", "postal_town":
				if addr.City == "" {
					addr.City = c.LongName
				}
			case "administrative_area_level_1":
				addr.State = c.ShortName
			case "administrative_area_level_2":
				addr.County = strings.TrimSuffix(c.LongName, " County")
			case "sublocality_level_1":
				addr.Borough = c.LongName
			case "postal_code":
				addr.Zip = c.LongName
			case "country":
				addr.Country = c.ShortName
			}
		}
	}

	addr.Address1 = strings.TrimSpace(streetNumber + " " + route)
	if addr.City == "" && addr.Borough != "" {
		// NYC details often carry only a sublocality
		addr.City = addr.Borough
	}
	return addr
}

// classify wraps provider failures for the retry machinery. The maps
// client surfaces quota exhaustion as an error string rather than a
// typed value.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "OVER_QUERY_LIMIT") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return fmt.Errorf("%w: %s", gateway.ErrRateLimited, msg)
	}
	if strings.Contains(msg, "NOT_FOUND") || strings.Contains(msg, "ZERO_RESULTS") {
		return fmt.Errorf("%w: %s", gateway.ErrNotFound, msg)
	}
	return &gateway.TransientError{Err: err}
}
