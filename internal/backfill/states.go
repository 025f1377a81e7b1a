// internal/backfill/states.go
package backfill

import "strings"

// stateCodes maps folded US state and territory names to their USPS
// abbreviations.
var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"florida": "FL", "georgia": "GA", "hawaii": "HI", "idaho": "ID",
	"illinois": "IL", "indiana": "IN", "iowa": "IA", "kansas": "KS",
	"kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS",
	"missouri": "MO", "montana": "MT", "nebraska": "NE", "nevada": "NV",
	"new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM", "new york": "NY",
	"north carolina": "NC", "north dakota": "ND", "ohio": "OH", "oklahoma": "OK",
	"oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT",
	"vermont": "VT", "virginia": "VA", "washington": "WA", "west virginia": "WV",
	"wisconsin": "WI", "wyoming": "WY",
	"district of columbia": "DC", "washington dc": "DC",
	"puerto rico": "PR", "guam": "GU", "us virgin islands": "VI",
	"american samoa": "AS", "northern mariana islands": "MP",
}

var validCodes = buildCodeSet()

func buildCodeSet() map[string]bool {
	set := make(map[string]bool, len(stateCodes))
	for _, code := range stateCodes {
		set[code] = true
	}
	return set
}

func foldState(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, ".", "")
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeState maps a state name or code to its USPS abbreviation.
// Two-letter codes pass through uppercased. Unknown values come back
// unchanged with ok=false so callers can count them instead of guessing.
func NormalizeState(raw string) (string, bool) {
	folded := foldState(raw)
	if folded == "" {
		return raw, false
	}

	if len(folded) == 2 {
		code := strings.ToUpper(folded)
		if validCodes[code] {
			return code, true
		}
		return raw, false
	}

	if code, ok := stateCodes[folded]; ok {
		return code, true
	}
	return raw, false
}

// NormalizeLocation normalizes the state component of a "City, ST"
// location string. Only the final comma-separated part is treated as a
// state; "Washington, DC" keeps its city untouched.
func NormalizeLocation(raw string) (string, bool) {
	parts := strings.Split(raw, ",")
	last := len(parts) - 1

	code, ok := NormalizeState(parts[last])
	if !ok || code == strings.TrimSpace(parts[last]) {
		return raw, false
	}

	if last == 0 {
		return code, true
	}
	parts[last] = " " + code
	return strings.Join(parts, ","), true
}
