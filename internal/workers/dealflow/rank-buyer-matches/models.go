// internal/workers/dealflow/rank-buyer-matches/models.go
package rankbuyermatches

import "time"

type Input struct {
	ListingID string   `json:"listingId"`
	BuyerIDs  []string `json:"buyerIds"`
	Limit     int      `json:"limit,omitempty"`
}

type Match struct {
	BuyerID         string    `json:"buyerId"`
	CompanyName     string    `json:"companyName"`
	Rank            int       `json:"rank"`
	Priority        float64   `json:"priority"`
	CompositeScore  int       `json:"compositeScore"`
	EngagementScore int       `json:"engagementScore"`
	Tier            string    `json:"tier"`
	ScoredAt        time.Time `json:"scoredAt"`
}

type Output struct {
	ListingID    string  `json:"listingId"`
	Matches      []Match `json:"matches"`
	Considered   int     `json:"considered"`
	Disqualified int     `json:"disqualified"`
}
