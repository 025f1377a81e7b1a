// internal/models/engagement.go
package models

import "time"

// Engagement signal types recorded against a buyer/listing pair.
const (
	SignalSiteVisit        = "site_visit"
	SignalListingView      = "listing_view"
	SignalDocumentDownload = "document_download"
	SignalNDASigned        = "nda_signed"
	SignalMeetingAttended  = "meeting_attended"
	SignalLOISubmitted     = "loi_submitted"
)

type EngagementSignal struct {
	SignalID   string    `json:"signalId"`
	BuyerID    string    `json:"buyerId"`
	ListingID  string    `json:"listingId"`
	SignalType string    `json:"signalType"`
	Points     int       `json:"points"`
	OccurredAt time.Time `json:"occurredAt"`
}
