// internal/workers/data-access/query-postgresql/queries/deals.go
package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// DealsWithDetails is the pipeline overview: every deal with its listing,
// the buyer firm's agreement state, the active score for the pair and how
// many engagement signals back it. Rows with no active buyer criteria or
// no score still appear with zeroed score columns.
func DealsWithDetails(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	start := time.Now()

	query := `
		SELECT d.id, d.listing_id, d.buyer_firm_id, d.stage, d.agreements_stale, d.created_at,
		       l.title, COALESCE(l.category, ''), COALESCE(l.revenue, 0),
		       COALESCE(l.ebitda, 0), COALESCE(l.asking_price, 0), l.status,
		       f.name, COALESCE(f.nda_status, 'none'), COALESCE(f.fee_agreement_status, 'none'),
		       COALESCE(s.tier, ''), COALESCE(s.composite_score, 0),
		       COALESCE(s.engagement_score, 0), COALESCE(s.needs_review, false),
		       COALESCE(sig.signal_count, 0)
		FROM deals d
		JOIN deal_listings l ON l.id = d.listing_id AND l.deleted_at IS NULL
		JOIN firms f ON f.id = d.buyer_firm_id
		LEFT JOIN buyer_criteria b ON b.firm_id = d.buyer_firm_id AND b.archived = false
		LEFT JOIN buyer_deal_scores s ON s.buyer_id = b.id AND s.listing_id = d.listing_id AND s.archived = false
		LEFT JOIN (
			SELECT buyer_id, listing_id, COUNT(*) AS signal_count
			FROM engagement_signals
			GROUP BY buyer_id, listing_id
		) sig ON sig.buyer_id = b.id AND sig.listing_id = d.listing_id`

	var args []interface{}
	if stage := filterString(params, "stage"); stage != "" {
		query += ` WHERE d.stage = $1`
		args = append(args, stage)
	}
	query += ` ORDER BY d.created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		var dealID, listingID, buyerFirmID, stage string
		var agreementsStale bool
		var createdAt time.Time
		var title, category, listingStatus string
		var revenue, ebitda, askingPrice int64
		var firmName, ndaStatus, feeAgreementStatus string
		var tier string
		var compositeScore, engagementScore int
		var needsReview bool
		var signalCount int

		err := rows.Scan(
			&dealID, &listingID, &buyerFirmID, &stage, &agreementsStale, &createdAt,
			&title, &category, &revenue, &ebitda, &askingPrice, &listingStatus,
			&firmName, &ndaStatus, &feeAgreementStatus,
			&tier, &compositeScore, &engagementScore, &needsReview,
			&signalCount,
		)
		if err != nil {
			return nil, 0, 0, err
		}

		results = append(results, map[string]interface{}{
			"dealId":             dealID,
			"listingId":          listingID,
			"buyerFirmId":        buyerFirmID,
			"stage":              stage,
			"agreementsStale":    agreementsStale,
			"createdAt":          createdAt,
			"title":              title,
			"category":           category,
			"revenue":            revenue,
			"ebitda":             ebitda,
			"askingPrice":        askingPrice,
			"listingStatus":      listingStatus,
			"firmName":           firmName,
			"ndaStatus":          ndaStatus,
			"feeAgreementStatus": feeAgreementStatus,
			"tier":               tier,
			"compositeScore":     compositeScore,
			"engagementScore":    engagementScore,
			"needsReview":        needsReview,
			"engagementSignals":  signalCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	execTime := time.Since(start).Milliseconds()
	return results, len(results), execTime, nil
}

// ListingSummary returns one listing with aggregate counts over its
// active scores: how many buyers were scored, how many landed A or B,
// how many were disqualified.
func ListingSummary(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	listingID, ok := params["listingId"].(string)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	var id, title, category, location, status string
	var categories []string
	var revenue, ebitda, askingPrice int64
	var dataCompleteness int
	var createdAt time.Time
	var activeScores, strongFits, disqualified int

	err := db.QueryRowContext(ctx, `
		SELECT l.id, l.title, COALESCE(l.category, ''), l.categories, COALESCE(l.location, ''),
		       COALESCE(l.revenue, 0), COALESCE(l.ebitda, 0), COALESCE(l.asking_price, 0),
		       COALESCE(l.data_completeness, 0), l.status, l.created_at,
		       COUNT(s.id) FILTER (WHERE s.archived = false) AS active_scores,
		       COUNT(s.id) FILTER (WHERE s.archived = false AND s.tier IN ('A', 'B')) AS strong_fits,
		       COUNT(s.id) FILTER (WHERE s.archived = false AND s.is_disqualified) AS disqualified
		FROM deal_listings l
		LEFT JOIN buyer_deal_scores s ON s.listing_id = l.id
		WHERE l.id = $1 AND l.deleted_at IS NULL
		GROUP BY l.id`, listingID).Scan(
		&id, &title, &category, pq.Array(&categories), &location,
		&revenue, &ebitda, &askingPrice,
		&dataCompleteness, &status, &createdAt,
		&activeScores, &strongFits, &disqualified,
	)
	if err != nil {
		return nil, 0, 0, err
	}

	result := map[string]interface{}{
		"listingId":        id,
		"title":            title,
		"category":         category,
		"categories":       categories,
		"location":         location,
		"revenue":          revenue,
		"ebitda":           ebitda,
		"askingPrice":      askingPrice,
		"dataCompleteness": dataCompleteness,
		"status":           status,
		"createdAt":        createdAt,
		"activeScores":     activeScores,
		"strongFits":       strongFits,
		"disqualified":     disqualified,
	}

	execTime := time.Since(start).Milliseconds()
	return result, 1, execTime, nil
}

func filterString(params map[string]interface{}, key string) string {
	filters, ok := params["filters"].(map[string]interface{})
	if !ok {
		return ""
	}
	value, _ := filters[key].(string)
	return value
}
