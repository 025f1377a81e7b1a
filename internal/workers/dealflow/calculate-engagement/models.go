// internal/workers/dealflow/calculate-engagement/models.go
package calculateengagement

type Input struct {
	BuyerID   string `json:"buyerId"`
	ListingID string `json:"listingId"`
}

// Output reports the capped score plus the raw sum so saturation is
// visible to the process.
type Output struct {
	EngagementScore int            `json:"engagementScore"`
	RawPoints       int            `json:"rawPoints"`
	SignalCount     int            `json:"signalCount"`
	Breakdown       map[string]int `json:"breakdown"`
}
