// Package normalize cleans raw address strings and structured fragments
// into a canonical component set plus a canonical formatted string.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/scoutdesk/scoutdesk/internal/gateway"
	"github.com/scoutdesk/scoutdesk/internal/models"
)

// DefaultCountry is the domestic country omitted from formatted addresses
const DefaultCountry = "US"

// ErrMissingAddressInput is returned when neither a raw full address nor
// any structured field is supplied
var ErrMissingAddressInput = errors.New("missing address input: no raw address and no structured fields")

// UpstreamLookupError wraps a failed geocoding call. It is propagated to the
// caller so they can decide retry vs. skip; never treated as "no data".
type UpstreamLookupError struct {
	Raw string
	Err error
}

func (e *UpstreamLookupError) Error() string {
	return fmt.Sprintf("upstream lookup failed for %q: %v", e.Raw, e.Err)
}

func (e *UpstreamLookupError) Unwrap() error { return e.Err }

// Input is the material available for one record
type Input struct {
	FullAddress string
	Structured  models.StructuredAddress
}

// Result is the canonical component set plus formatted strings
type Result struct {
	models.StructuredAddress

	// Formatted is built from the fixed canonical template
	Formatted string
	// GoogleFormatted is the provider's own formatted string, kept
	// separate from ours. Set only on the lookup path.
	GoogleFormatted string

	PlaceID        string
	Latitude       float64
	Longitude      float64
	MapURL         string
	Categories     []string
	BusinessStatus string

	// UsedLookup reports whether a fresh provider lookup was performed
	UsedLookup bool
}

// Normalizer resolves raw addresses through the geocoding provider when one
// is configured and falls back to local parsing otherwise.
type Normalizer struct {
	geo gateway.Geocoder
}

// New creates a Normalizer. geo may be nil; raw addresses are then parsed
// locally instead of being sent upstream.
func New(geo gateway.Geocoder) *Normalizer {
	return &Normalizer{geo: geo}
}

// Normalize produces the canonical address for in. At least one of the raw
// full address or a structured field must be present.
func (n *Normalizer) Normalize(ctx context.Context, in Input) (*Result, error) {
	raw := strings.TrimSpace(in.FullAddress)
	if raw == "" && in.Structured.IsBlank() {
		return nil, ErrMissingAddressInput
	}

	// A raw full address always takes priority and means a fresh lookup:
	// the provider's components overwrite whatever was stored before.
	if raw != "" {
		return n.normalizeRaw(ctx, raw, in.Structured)
	}

	res := &Result{StructuredAddress: cleanStructured(in.Structured)}
	res.Formatted = FormatCanonical(res.StructuredAddress)
	return res, nil
}

func (n *Normalizer) normalizeRaw(ctx context.Context, raw string, prev models.StructuredAddress) (*Result, error) {
	collapsed := CollapseLines(raw)

	if n.geo == nil {
		parsed := parseRaw(collapsed)
		merged := cleanStructured(overlay(prev, parsed))
		res := &Result{StructuredAddress: merged}
		res.Formatted = FormatCanonical(merged)
		return res, nil
	}

	g, err := n.geo.PlaceByAddress(ctx, collapsed)
	if err != nil {
		return nil, &UpstreamLookupError{Raw: collapsed, Err: err}
	}

	merged := cleanStructured(overlay(prev, g.StructuredAddress))
	res := &Result{
		StructuredAddress: merged,
		GoogleFormatted:   g.FormattedAddress,
		PlaceID:           g.PlaceID,
		Latitude:          g.Latitude,
		Longitude:         g.Longitude,
		MapURL:            g.MapURL,
		Categories:        g.Types,
		BusinessStatus:    g.BusinessStatus,
		UsedLookup:        true,
	}
	res.Formatted = FormatCanonical(merged)
	return res, nil
}

// overlay replaces prev's components with the fresh set, keeping a previous
// value only where the fresh lookup produced nothing for that field. The
// normalizer never fabricates a value for a component it cannot determine.
func overlay(prev, fresh models.StructuredAddress) models.StructuredAddress {
	pick := func(freshVal, prevVal string) string {
		if strings.TrimSpace(freshVal) != "" {
			return freshVal
		}
		return prevVal
	}
	return models.StructuredAddress{
		Address1: pick(fresh.Address1, prev.Address1),
		Address2: pick(fresh.Address2, prev.Address2),
		Address3: pick(fresh.Address3, prev.Address3),
		City:     pick(fresh.City, prev.City),
		State:    pick(fresh.State, prev.State),
		Zip:      pick(fresh.Zip, prev.Zip),
		Country:  pick(fresh.Country, prev.Country),
		County:   pick(fresh.County, prev.County),
		Borough:  pick(fresh.Borough, prev.Borough),
	}
}

// cleanStructured normalizes components in place: title-case city, 2-letter
// state, ISO-2 country, postal code padded to the country's digit count.
func cleanStructured(a models.StructuredAddress) models.StructuredAddress {
	out := models.StructuredAddress{
		Address1: strings.TrimSpace(a.Address1),
		Address2: strings.TrimSpace(a.Address2),
		Address3: strings.TrimSpace(a.Address3),
		City:     titleCase(a.City),
		State:    normalizeState(a.State),
		Country:  normalizeCountry(a.Country),
		County:   strings.TrimSpace(a.County),
		Borough:  strings.TrimSpace(a.Borough),
	}
	country := out.Country
	if country == "" {
		country = DefaultCountry
	}
	out.Zip = normalizeZip(a.Zip, country)
	return out
}

// FormatCanonical assembles the fixed template
// "{address1}, {city}, {state} {zip}", appending ", {country}" only when the
// country is set and not the default domestic one. Empty components are
// skipped rather than leaving dangling separators.
func FormatCanonical(a models.StructuredAddress) string {
	var parts []string
	if strings.TrimSpace(a.Address1) != "" {
		parts = append(parts, strings.TrimSpace(a.Address1))
	}
	if strings.TrimSpace(a.City) != "" {
		parts = append(parts, strings.TrimSpace(a.City))
	}
	stateZip := strings.TrimSpace(strings.TrimSpace(a.State) + " " + strings.TrimSpace(a.Zip))
	if stateZip != "" {
		parts = append(parts, stateZip)
	}
	if c := strings.TrimSpace(a.Country); c != "" && c != DefaultCountry {
		parts = append(parts, c)
	}
	return strings.Join(parts, ", ")
}

// CollapseLines replaces embedded line breaks with comma separators so a
// street fragment is never concatenated into the city field by the parser.
func CollapseLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	var parts []string
	for _, ln := range lines {
		ln = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(ln), ","))
		if ln != "" {
			parts = append(parts, ln)
		}
	}
	return strings.Join(parts, ", ")
}

// cityStateZipRe matches "City, ST 12345" or "City, ST 12345-6789"
var cityStateZipRe = regexp.MustCompile(`([A-Za-z][A-Za-z .'-]*),\s*([A-Za-z]{2})\s+(\d{5}(?:-\d{4})?)\s*$`)

// parseRaw is the local fallback parser for a collapsed single-line address.
// It degrades gracefully: components it cannot determine stay empty.
func parseRaw(s string) models.StructuredAddress {
	var out models.StructuredAddress

	// Strip a trailing country token first. Two-letter state codes (CA, LA)
	// collide with country codes and are never treated as a country here.
	if idx := strings.LastIndex(s, ","); idx >= 0 {
		tail := strings.TrimSpace(s[idx+1:])
		_, isState := abbrToState[strings.ToLower(tail)]
		if _, known := countryToISO[strings.ToLower(tail)]; known && !isState {
			out.Country = normalizeCountry(tail)
			s = strings.TrimSpace(s[:idx])
		}
	}

	m := cityStateZipRe.FindStringSubmatchIndex(s)
	if m == nil {
		// No city/state/zip tail; treat the first segment as the street
		segs := strings.SplitN(s, ",", 2)
		out.Address1 = strings.TrimSpace(segs[0])
		return out
	}

	out.City = strings.TrimSpace(s[m[2]:m[3]])
	out.State = s[m[4]:m[5]]
	out.Zip = s[m[6]:m[7]]

	head := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s[:m[2]]), ","))
	if head != "" {
		segs := strings.Split(head, ",")
		out.Address1 = strings.TrimSpace(segs[0])
		if len(segs) > 1 {
			out.Address2 = strings.TrimSpace(strings.Join(segs[1:], ", "))
		}
	}
	return out
}

// normalizeZip pads or truncates a postal code to the digit count expected
// for the country. Only applied where the expected count is known.
func normalizeZip(zip, country string) string {
	z := strings.TrimSpace(zip)
	if z == "" {
		return ""
	}
	digits := 0
	switch country {
	case "US":
		digits = 5
		// Keep ZIP+4 as-is
		if len(z) == 10 && z[5] == '-' {
			return z
		}
	case "DE", "FR", "IT", "ES", "MX":
		digits = 5
	case "AU", "NZ":
		digits = 4
	default:
		return z
	}

	// Strip non-digits before padding
	var b strings.Builder
	for _, r := range z {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	z = b.String()
	if z == "" {
		return ""
	}
	if len(z) > digits {
		return z[:digits]
	}
	for len(z) < digits {
		z = "0" + z
	}
	return z
}

// titleCase capitalizes the first letter of each word, lowercasing the rest.
// All-caps city names from imports come out as "Springfield", not "SPRINGFIELD".
func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	startOfWord := true
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '\'':
			startOfWord = true
			b.WriteRune(r)
		case startOfWord:
			b.WriteRune(unicode.ToUpper(r))
			startOfWord = false
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
