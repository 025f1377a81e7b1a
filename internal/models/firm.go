// internal/models/firm.go
package models

import "time"

// Agreement types tracked at the firm level.
const (
	AgreementTypeNDA = "nda"
	AgreementTypeFee = "fee_agreement"
)

// Agreement lifecycle statuses.
const (
	AgreementStatusNone      = "none"
	AgreementStatusRequested = "requested"
	AgreementStatusSigned    = "signed"
	AgreementStatusExpired   = "expired"
)

type Firm struct {
	FirmID             string    `json:"firmId"`
	Name               string    `json:"name"`
	NDAStatus          string    `json:"ndaStatus"`
	FeeAgreementStatus string    `json:"feeAgreementStatus"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type FirmMember struct {
	MemberID  string `json:"memberId"`
	FirmID    string `json:"firmId"`
	UserID    string `json:"userId"`
	ProfileID string `json:"profileId,omitempty"`
	Role      string `json:"role"`
}
