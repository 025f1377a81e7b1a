// internal/scoring/engagement.go
package scoring

import "dealflow-workers/internal/models"

// EngagementCap bounds the summed engagement points. Six site visits
// would otherwise outscore a signed LOI.
const EngagementCap = 100

var signalPoints = map[string]int{
	models.SignalSiteVisit:        20,
	models.SignalListingView:      5,
	models.SignalDocumentDownload: 15,
	models.SignalNDASigned:        30,
	models.SignalMeetingAttended:  25,
	models.SignalLOISubmitted:     40,
}

// PointsFor returns the point value for a signal type, 0 for types the
// table does not know. Unknown types are skipped, not errors, so new
// product events never break scoring.
func PointsFor(signalType string) int {
	return signalPoints[signalType]
}

// SumEngagement adds up signal points and caps the total.
func SumEngagement(signals []models.EngagementSignal) int {
	total := 0
	for _, signal := range signals {
		total += PointsFor(signal.SignalType)
		if total >= EngagementCap {
			return EngagementCap
		}
	}
	return total
}
