// internal/scoring/adjacency.go
package scoring

import "strings"

// serviceAdjacency links trades a buyer of one service plausibly rolls
// up with. The map is kept symmetric by hand; relatedServices checks
// both directions anyway so a one-sided entry still matches.
var serviceAdjacency = map[string][]string{
	"hvac":                {"plumbing", "mechanical"},
	"plumbing":            {"hvac", "mechanical"},
	"mechanical":          {"hvac", "plumbing", "electrical"},
	"electrical":          {"mechanical", "fire protection"},
	"roofing":             {"general contracting"},
	"landscaping":         {"pest control"},
	"pest control":        {"landscaping"},
	"fire protection":     {"electrical"},
	"general contracting": {"roofing"},
}

// servicesOverlap reports whether any deal category matches any target
// service, directly or through one adjacency hop.
func servicesOverlap(dealCategories, targetServices []string) bool {
	for _, cat := range dealCategories {
		c := foldTerm(cat)
		if c == "" {
			continue
		}
		for _, svc := range targetServices {
			s := foldTerm(svc)
			if s == "" {
				continue
			}
			if c == s || relatedServices(c, s) {
				return true
			}
		}
	}
	return false
}

func relatedServices(a, b string) bool {
	for _, rel := range serviceAdjacency[a] {
		if rel == b {
			return true
		}
	}
	for _, rel := range serviceAdjacency[b] {
		if rel == a {
			return true
		}
	}
	return false
}

// geographyOverlap matches a deal location like "Dallas, TX" against
// target geographies by comparing each comma-separated part.
func geographyOverlap(location string, targets []string) bool {
	if location == "" {
		return false
	}
	parts := strings.Split(location, ",")
	for _, target := range targets {
		t := foldTerm(target)
		if t == "" {
			continue
		}
		for _, part := range parts {
			if foldTerm(part) == t {
				return true
			}
		}
	}
	return false
}

func foldTerm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
