// internal/workers/alerts/match-deal-alerts/models.go
package matchdealalerts

import "dealflow-workers/internal/models"

// Input carries either the id of a stored listing or the listing
// inline, for matching before the row is committed.
type Input struct {
	ListingID string              `json:"listingId,omitempty"`
	Listing   *models.DealListing `json:"listing,omitempty"`
}

type MatchedAlert struct {
	AlertID   string `json:"alertId"`
	UserID    string `json:"userId"`
	Email     string `json:"email,omitempty"`
	Frequency string `json:"frequency"`
}

type Output struct {
	ListingID string         `json:"listingId"`
	Matches   []MatchedAlert `json:"matches"`
	Evaluated int            `json:"evaluated"`
	Skipped   int            `json:"skipped"`
}
