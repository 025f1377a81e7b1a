// internal/workers/alerts/match-deal-alerts/matcher.go
package matchdealalerts

import (
	"strings"

	"dealflow-workers/internal/backfill"
	"dealflow-workers/internal/models"
)

// Matches applies normalized criteria to a listing. Every empty
// criterion is no constraint; all present criteria must hold.
func Matches(criteria models.AlertCriteria, listing models.DealListing) bool {
	if !categoryOverlap(criteria.Categories, listing) {
		return false
	}
	if !locationOverlap(criteria.Locations, listing.Location) {
		return false
	}
	if criteria.RevenueMin > 0 && listing.Revenue < criteria.RevenueMin {
		return false
	}
	if criteria.RevenueMax > 0 && listing.Revenue > criteria.RevenueMax {
		return false
	}
	if criteria.EBITDAMin > 0 && listing.EBITDA < criteria.EBITDAMin {
		return false
	}
	if criteria.EBITDAMax > 0 && listing.EBITDA > criteria.EBITDAMax {
		return false
	}
	if !freeTextMatch(criteria.FreeText, listing) {
		return false
	}
	return true
}

// categoryOverlap checks the alert's categories against the listing's
// primary category and category array, case-insensitively.
func categoryOverlap(wanted []string, listing models.DealListing) bool {
	if len(wanted) == 0 {
		return true
	}

	have := make(map[string]bool, len(listing.Categories)+1)
	if c := fold(listing.Category); c != "" {
		have[c] = true
	}
	for _, c := range listing.Categories {
		if f := fold(c); f != "" {
			have[f] = true
		}
	}

	for _, w := range wanted {
		if have[fold(w)] {
			return true
		}
	}
	return false
}

// locationOverlap compares on USPS codes. The criteria side is already
// normalized; the listing side normalizes its state component here.
func locationOverlap(wanted []string, location string) bool {
	if len(wanted) == 0 {
		return true
	}
	if location == "" {
		return false
	}

	state := listingStateCode(location)
	for _, w := range wanted {
		if strings.EqualFold(w, state) || strings.EqualFold(w, strings.TrimSpace(location)) {
			return true
		}
	}
	return false
}

func listingStateCode(location string) string {
	parts := strings.Split(location, ",")
	code, ok := backfill.NormalizeState(parts[len(parts)-1])
	if !ok {
		return strings.TrimSpace(parts[len(parts)-1])
	}
	return code
}

// freeTextMatch is the ILIKE analog: case-insensitive substring over
// title and description.
func freeTextMatch(text string, listing models.DealListing) bool {
	if text == "" {
		return true
	}
	needle := fold(text)
	return strings.Contains(fold(listing.Title), needle) ||
		strings.Contains(fold(listing.Description), needle)
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
