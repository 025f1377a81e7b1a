// internal/models/buyer.go
package models

import "time"

// Buyer types recognized by the remarketing pipeline.
const (
	BuyerTypePEFirm     = "pe_firm"
	BuyerTypePlatform   = "platform"
	BuyerTypeStrategic  = "strategic"
	BuyerTypeIndividual = "individual"
)

// Geography modes controlling how strictly the geography gate applies.
const (
	GeographyModeCritical  = "critical"
	GeographyModePreferred = "preferred"
	GeographyModeMinimal   = "minimal"
)

type BuyerCriteria struct {
	BuyerID           string    `json:"buyerId"`
	FirmID            string    `json:"firmId,omitempty"`
	CompanyName       string    `json:"companyName"`
	ContactEmail      string    `json:"contactEmail,omitempty"`
	BuyerType         string    `json:"buyerType"`
	RevenueMin        int64     `json:"revenueMin"`
	RevenueMax        int64     `json:"revenueMax"`
	EBITDAMin         int64     `json:"ebitdaMin"`
	EBITDAMax         int64     `json:"ebitdaMax"`
	TargetGeographies []string  `json:"targetGeographies"`
	TargetServices    []string  `json:"targetServices"`
	GeographyMode     string    `json:"geographyMode"`
	ThesisText        string    `json:"thesisText,omitempty"`
	Archived          bool      `json:"archived"`
	MergedInto        string    `json:"mergedInto,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}
