// internal/workers/data-access/query-postgresql/models.go
package querypostgresql

import "dealflow-workers/internal/models"

type Input struct {
	QueryType string                 `json:"queryType"`
	BuyerID   string                 `json:"buyerId,omitempty"`
	ListingID string                 `json:"listingId,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	Filters   map[string]interface{} `json:"filters,omitempty"`
}

type Output struct {
	Data               interface{} `json:"data"`
	RowCount           int         `json:"rowCount"`
	QueryExecutionTime int64       `json:"queryExecutionTime"` // milliseconds
}

type QueryType = models.QueryType

// Export constants for external use
var (
	QueryTypeDealsWithDetails    = models.QueryTypeDealsWithDetails
	QueryTypeBuyerProfile        = models.QueryTypeBuyerProfile
	QueryTypeListingSummary      = models.QueryTypeListingSummary
	QueryTypeActiveAlertsForUser = models.QueryTypeActiveAlertsForUser
)
