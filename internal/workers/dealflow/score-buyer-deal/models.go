// internal/workers/dealflow/score-buyer-deal/models.go
package scorebuyerdeal

type Input struct {
	BuyerID              string `json:"buyerId"`
	ListingID            string `json:"listingId"`
	ThesisAlignmentBonus int    `json:"thesisAlignmentBonus,omitempty"`
	KPIBonus             int    `json:"kpiBonus,omitempty"`
	CustomBonus          int    `json:"customBonus,omitempty"`
	WeightConfigID       string `json:"weightConfigId,omitempty"`
}

type Output struct {
	ScoreID                string  `json:"scoreId"`
	CompositeScore         int     `json:"compositeScore"`
	Tier                   string  `json:"tier"`
	SizeGate               float64 `json:"sizeGate"`
	ServiceGate            float64 `json:"serviceGate"`
	GeographyGate          float64 `json:"geographyGate"`
	EngagementScore        int     `json:"engagementScore"`
	IsDisqualified         bool    `json:"isDisqualified"`
	DisqualificationReason string  `json:"disqualificationReason,omitempty"`
	NeedsReview            bool    `json:"needsReview"`
	Confidence             string  `json:"confidence"`
	WeightConfigID         string  `json:"weightConfigId"`
}
