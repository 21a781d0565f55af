package normalize

import "strings"

// abbrToState maps lowercase US state abbreviations to lowercase full names
var abbrToState = map[string]string{
	"al": "alabama", "ak": "alaska", "az": "arizona", "ar": "arkansas",
	"ca": "california", "co": "colorado", "ct": "connecticut", "de": "delaware",
	"fl": "florida", "ga": "georgia", "hi": "hawaii", "id": "idaho",
	"il": "illinois", "in": "indiana", "ia": "iowa", "ks": "kansas",
	"ky": "kentucky", "la": "louisiana", "me": "maine", "md": "maryland",
	"ma": "massachusetts", "mi": "michigan", "mn": "minnesota", "ms": "mississippi",
	"mo": "missouri", "mt": "montana", "ne": "nebraska", "nv": "nevada",
	"nh": "new hampshire", "nj": "new jersey", "nm": "new mexico", "ny": "new york",
	"nc": "north carolina", "nd": "north dakota", "oh": "ohio", "ok": "oklahoma",
	"or": "oregon", "pa": "pennsylvania", "ri": "rhode island", "sc": "south carolina",
	"sd": "south dakota", "tn": "tennessee", "tx": "texas", "ut": "utah",
	"vt": "vermont", "va": "virginia", "wa": "washington", "wv": "west virginia",
	"wi": "wisconsin", "wy": "wyoming", "dc": "district of columbia",
}

// stateToAbbr maps lowercase full names to lowercase abbreviations
var stateToAbbr = func() map[string]string {
	m := make(map[string]string, len(abbrToState))
	for abbr, full := range abbrToState {
		m[full] = abbr
	}
	return m
}()

// countryToISO maps common country spellings to their 2-letter ISO form
var countryToISO = map[string]string{
	"united states":            "US",
	"united states of america": "US",
	"usa":            "US",
	"us":             "US",
	"u.s.":           "US",
	"u.s.a.":         "US",
	"canada":         "CA",
	"ca":             "CA",
	"mexico":         "MX",
	"mx":             "MX",
	"united kingdom": "GB",
	"uk":             "GB",
	"gb":             "GB",
	"great britain":  "GB",
	"ireland":        "IE",
	"france":         "FR",
	"germany":        "DE",
	"italy":          "IT",
	"spain":          "ES",
	"australia":      "AU",
	"new zealand":    "NZ",
	"japan":          "JP",
}

// normalizeState uppercases a 2-letter code and converts full US state
// names to their abbreviation. Unknown values pass through trimmed.
func normalizeState(state string) string {
	s := strings.TrimSpace(state)
	if s == "" {
		return ""
	}
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	if abbr, ok := stateToAbbr[strings.ToLower(s)]; ok {
		return strings.ToUpper(abbr)
	}
	return s
}

// normalizeCountry converts a country to its 2-letter ISO form. Unknown
// values pass through trimmed; already-ISO values are uppercased.
func normalizeCountry(country string) string {
	s := strings.TrimSpace(country)
	if s == "" {
		return ""
	}
	if iso, ok := countryToISO[strings.ToLower(s)]; ok {
		return iso
	}
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	return s
}
