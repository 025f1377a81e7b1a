// internal/workers/data-access/query-postgresql/queries/buyer.go
package queries

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// BuyerProfile returns one buyer's criteria with the owning firm's
// agreement state folded in. Buyers without a firm come back with both
// statuses as "none".
func BuyerProfile(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	buyerID, ok := params["buyerId"].(string)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	var id, firmID, companyName, contactEmail, buyerType string
	var revenueMin, revenueMax, ebitdaMin, ebitdaMax int64
	var targetGeographies, targetServices []string
	var geographyMode string
	var ndaStatus, feeAgreementStatus string
	var archived bool
	var createdAt time.Time

	err := db.QueryRowContext(ctx, `
		SELECT b.id, COALESCE(b.firm_id, ''), b.company_name, COALESCE(b.contact_email, ''), b.buyer_type,
		       COALESCE(b.revenue_min, 0), COALESCE(b.revenue_max, 0),
		       COALESCE(b.ebitda_min, 0), COALESCE(b.ebitda_max, 0),
		       b.target_geographies, b.target_services, COALESCE(b.geography_mode, 'critical'),
		       COALESCE(f.nda_status, 'none'), COALESCE(f.fee_agreement_status, 'none'),
		       b.archived, b.created_at
		FROM buyer_criteria b
		LEFT JOIN firms f ON f.id = b.firm_id
		WHERE b.id = $1`, buyerID).Scan(
		&id, &firmID, &companyName, &contactEmail, &buyerType,
		&revenueMin, &revenueMax, &ebitdaMin, &ebitdaMax,
		pq.Array(&targetGeographies), pq.Array(&targetServices), &geographyMode,
		&ndaStatus, &feeAgreementStatus,
		&archived, &createdAt,
	)
	if err != nil {
		return nil, 0, 0, err
	}

	result := map[string]interface{}{
		"buyerId":            id,
		"firmId":             firmID,
		"companyName":        companyName,
		"contactEmail":       contactEmail,
		"buyerType":          buyerType,
		"revenueMin":         revenueMin,
		"revenueMax":         revenueMax,
		"ebitdaMin":          ebitdaMin,
		"ebitdaMax":          ebitdaMax,
		"targetGeographies":  targetGeographies,
		"targetServices":     targetServices,
		"geographyMode":      geographyMode,
		"ndaStatus":          ndaStatus,
		"feeAgreementStatus": feeAgreementStatus,
		"archived":           archived,
		"createdAt":          createdAt,
	}

	execTime := time.Since(start).Milliseconds()
	return result, 1, execTime, nil
}
