// internal/workers/data-access/query-postgresql/queries/alerts.go
package queries

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// ActiveAlertsForUser lists a user's active deal alerts, newest first.
// The stored criteria blob is passed through as raw JSON, not decoded;
// whatever shape the alert was saved with is what the caller sees.
func ActiveAlertsForUser(ctx context.Context, db *sql.DB, params map[string]interface{}) (interface{}, int, int64, error) {
	userID, ok := params["userId"].(string)
	if !ok {
		return nil, 0, 0, ErrMissingParam
	}

	start := time.Now()

	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, frequency, criteria, created_at
		FROM deal_alerts
		WHERE user_id = $1 AND active = true
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	var results []map[string]interface{}
	for rows.Next() {
		var id, uid, frequency string
		var criteria []byte
		var createdAt time.Time

		if err := rows.Scan(&id, &uid, &frequency, &criteria, &createdAt); err != nil {
			return nil, 0, 0, err
		}

		results = append(results, map[string]interface{}{
			"alertId":   id,
			"userId":    uid,
			"frequency": frequency,
			"criteria":  json.RawMessage(criteria),
			"createdAt": createdAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	execTime := time.Since(start).Milliseconds()
	return results, len(results), execTime, nil
}
