// internal/models/score.go
package models

import "time"

// Tier letter grades bucketing a composite score.
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
	TierD = "D"
	TierF = "F"
)

// Confidence levels attached to a score.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceManual = "manual"
)

// Disqualification reason codes.
const (
	DisqualifySizeMismatch      = "size_mismatch"
	DisqualifyServiceMismatch   = "service_mismatch"
	DisqualifyGeographyMismatch = "geography_mismatch"
)

type Score struct {
	ScoreID                string    `json:"scoreId"`
	BuyerID                string    `json:"buyerId"`
	ListingID              string    `json:"listingId"`
	CompositeScore         int       `json:"compositeScore"`
	Tier                   string    `json:"tier"`
	SizeGate               float64   `json:"sizeGate"`
	ServiceGate            float64   `json:"serviceGate"`
	GeographyGate          float64   `json:"geographyGate"`
	SizeFitScore           int       `json:"sizeFitScore"`
	DataQualityScore       int       `json:"dataQualityScore"`
	MotivationScore        int       `json:"motivationScore"`
	EngagementScore        int       `json:"engagementScore"`
	ThesisAlignmentBonus   int       `json:"thesisAlignmentBonus"`
	DataQualityBonus       int       `json:"dataQualityBonus"`
	KPIBonus               int       `json:"kpiBonus"`
	CustomBonus            int       `json:"customBonus"`
	LearningPenalty        int       `json:"learningPenalty"`
	IsDisqualified         bool      `json:"isDisqualified"`
	DisqualificationReason string    `json:"disqualificationReason,omitempty"`
	NeedsReview            bool      `json:"needsReview"`
	Confidence             string    `json:"confidence"`
	WeightConfigID         string    `json:"weightConfigId"`
	Archived               bool      `json:"archived"`
	ScoredAt               time.Time `json:"scoredAt"`
}

// WeightConfig is one row of scoring_weight_configs. Weight fields must sum
// to 100; exactly one config is active per cohort at a time.
type WeightConfig struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	SizeFitWeight       int       `json:"sizeFitWeight"`
	DataQualityWeight   int       `json:"dataQualityWeight"`
	MotivationWeight    int       `json:"motivationWeight"`
	EngagementWeight    int       `json:"engagementWeight"`
	ThesisBonusCap      int       `json:"thesisBonusCap"`
	DataQualityBonusCap int       `json:"dataQualityBonusCap"`
	LearningPenaltyMax  int       `json:"learningPenaltyMax"`
	SizeTolerancePct    float64   `json:"sizeTolerancePct"`
	Active              bool      `json:"active"`
	CohortKey           string    `json:"cohortKey,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}
