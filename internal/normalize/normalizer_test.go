package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// fakeGeocoder returns a canned result or error
type fakeGeocoder struct {
	result *gateway.GeocodeResult
	err    error
	calls  int
}

func (f *fakeGeocoder) PlaceByID(ctx context.Context, placeID string) (*gateway.GeocodeResult, error) {
	f.calls++
	return f.result, f.err
}

func (f *fakeGeocoder) PlaceByAddress(ctx context.Context, raw string) (*gateway.GeocodeResult, error) {
	f.calls++
	return f.result, f.err
}

func TestNormalizeStructuredOnly(t *testing.T) {
	n := New(nil)

	res, err := n.Normalize(context.Background(), Input{
		Structured: models.StructuredAddress{
			Address1: "  123 Main St ",
			City:     "SPRINGFIELD",
			State:    "Illinois",
			Zip:      "704",
			Country:  "United States",
		},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if res.City != "Springfield" {
		t.Errorf("Expected title-cased city, got %q", res.City)
	}
	if res.State != "IL" {
		t.Errorf("Expected 2-letter state, got %q", res.State)
	}
	if res.Country != "US" {
		t.Errorf("Expected ISO country, got %q", res.Country)
	}
	if res.Zip != "00704" {
		t.Errorf("Expected padded zip 00704, got %q", res.Zip)
	}
	if res.Formatted != "123 Main St, Springfield, IL 00704" {
		t.Errorf("Unexpected canonical string: %q", res.Formatted)
	}
	if res.UsedLookup {
		t.Error("Structured-only path should not report a lookup")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New(nil)
	in := Input{
		Structured: models.StructuredAddress{
			Address1: "456 Oak Ave",
			City:     "Portland",
			State:    "OR",
			Zip:      "97205",
			Country:  "US",
		},
	}

	first, err := n.Normalize(context.Background(), in)
	if err != nil {
		t.Fatalf("First pass failed: %v", err)
	}
	second, err := n.Normalize(context.Background(), Input{Structured: first.StructuredAddress})
	if err != nil {
		t.Fatalf("Second pass failed: %v", err)
	}

	if first.StructuredAddress != second.StructuredAddress {
		t.Errorf("Second pass changed components: %+v vs %+v", first.StructuredAddress, second.StructuredAddress)
	}
	if first.Formatted != second.Formatted {
		t.Errorf("Second pass changed formatting: %q vs %q", first.Formatted, second.Formatted)
	}
}

func TestNormalizeMissingInput(t *testing.T) {
	n := New(nil)
	_, err := n.Normalize(context.Background(), Input{})
	if !errors.Is(err, ErrMissingAddressInput) {
		t.Errorf("Expected ErrMissingAddressInput, got %v", err)
	}
}

func TestNormalizeRawLocalParse(t *testing.T) {
	n := New(nil)

	res, err := n.Normalize(context.Background(), Input{
		FullAddress: "123 Main St, Springfield, IL 62704",
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.Address1 != "123 Main St" || res.City != "Springfield" || res.State != "IL" || res.Zip != "62704" {
		t.Errorf("Bad parse: %+v", res.StructuredAddress)
	}
}

func TestNormalizeNewlineAddress(t *testing.T) {
	n := New(nil)

	res, err := n.Normalize(context.Background(), Input{
		FullAddress: "456 Oak Ave\nSpringfield, IL 62704",
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.City != "Springfield" {
		t.Errorf("Newline handling broke the city, got %q", res.City)
	}
	if res.Address1 != "456 Oak Ave" {
		t.Errorf("Expected street line preserved, got %q", res.Address1)
	}
}

func TestNormalizeRawLookup(t *testing.T) {
	geo := &fakeGeocoder{
		result: &gateway.GeocodeResult{
			PlaceID:          "ChIJtest",
			FormattedAddress: "123 Main St, Springfield, IL 62704, USA",
			StructuredAddress: models.StructuredAddress{
				Address1: "123 Main St",
				City:     "Springfield",
				State:    "IL",
				Zip:      "62704",
				Country:  "US",
			},
			Latitude:  39.8,
			Longitude: -89.65,
		},
	}
	n := New(geo)

	res, err := n.Normalize(context.Background(), Input{
		FullAddress: "123 main street springfield",
		Structured:  models.StructuredAddress{County: "Sangamon"},
	})
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if !res.UsedLookup {
		t.Error("Lookup path should be reported")
	}
	if res.PlaceID != "ChIJtest" {
		t.Errorf("Expected place id carried over, got %q", res.PlaceID)
	}
	if res.GoogleFormatted != "123 Main St, Springfield, IL 62704, USA" {
		t.Errorf("Provider string should be kept verbatim, got %q", res.GoogleFormatted)
	}
	if res.Formatted != "123 Main St, Springfield, IL 62704" {
		t.Errorf("Canonical string should use our template, got %q", res.Formatted)
	}
	// Fields the lookup did not produce survive
	if res.County != "Sangamon" {
		t.Errorf("Expected county preserved, got %q", res.County)
	}
}

func TestNormalizeLookupFailure(t *testing.T) {
	geo := &fakeGeocoder{err: errors.New("quota exceeded")}
	n := New(geo)

	_, err := n.Normalize(context.Background(), Input{FullAddress: "somewhere"})
	var lookupErr *UpstreamLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Expected UpstreamLookupError, got %v", err)
	}
	if lookupErr.Raw != "somewhere" {
		t.Errorf("Error should carry the raw input, got %q", lookupErr.Raw)
	}
}

func TestFormatCanonicalForeign(t *testing.T) {
	got := FormatCanonical(models.StructuredAddress{
		Address1: "10 Downing St",
		City:     "London",
		Zip:      "SW1A 2AA",
		Country:  "GB",
	})
	want := "10 Downing St, London, SW1A 2AA, GB"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestFormatCanonicalSkipsEmpty(t *testing.T) {
	got := FormatCanonical(models.StructuredAddress{City: "Austin", State: "TX"})
	if got != "Austin, TX" {
		t.Errorf("Dangling separators in %q", got)
	}
}

func TestParseRawStateCountryCollision(t *testing.T) {
	// "CA" at the tail is California, not Canada
	out := parseRaw("1 Market St, San Francisco, CA 94105")
	if out.Country != "" {
		t.Errorf("State code mis-read as country: %q", out.Country)
	}
	if out.State != "CA" {
		t.Errorf("Expected state CA, got %q", out.State)
	}
}

func TestNormalizeZip(t *testing.T) {
	cases := []struct {
		zip, country, want string
	}{
		{"704", "US", "00704"},
		{"627041234", "US", "62704"},
		{"62704-1234", "US", "62704-1234"},
		{"2000", "AU", "2000"},
		{"SW1A 2AA", "GB", "SW1A 2AA"},
	}
	for _, c := range cases {
		if got := normalizeZip(c.zip, c.country); got != c.want {
			t.Errorf("normalizeZip(%q, %q) = %q, want %q", c.zip, c.country, got, c.want)
		}
	}
}
