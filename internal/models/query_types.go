// internal/models/query_types.go
package models

type QueryType string

const (
	QueryTypeDealsWithDetails    QueryType = "get_deals_with_details"
	QueryTypeBuyerProfile        QueryType = "get_buyer_profile"
	QueryTypeListingSummary      QueryType = "get_listing_summary"
	QueryTypeActiveAlertsForUser QueryType = "get_active_alerts_for_user"
)
