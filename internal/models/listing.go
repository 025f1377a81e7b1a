// internal/models/listing.go
package models

import "time"

type DealListing struct {
	ListingID        string     `json:"listingId"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category"`
	Categories       []string   `json:"categories,omitempty"`
	Location         string     `json:"location"`
	Revenue          int64      `json:"revenue"`
	EBITDA           int64      `json:"ebitda"`
	AskingPrice      int64      `json:"askingPrice,omitempty"`
	DataCompleteness int        `json:"dataCompleteness"`
	MotivationScore  int        `json:"motivationScore"`
	Status           string     `json:"status"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// AllCategories returns the primary category plus the categories array,
// deduplicated, preserving first-seen order.
func (l *DealListing) AllCategories() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(l.Categories)+1)
	if l.Category != "" {
		seen[l.Category] = true
		out = append(out, l.Category)
	}
	for _, c := range l.Categories {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
