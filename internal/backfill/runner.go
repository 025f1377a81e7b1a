// internal/backfill/runner.go
package backfill

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"dealflow-workers/internal/common/audit"
	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
)

const (
	backfillActor    = "backfill-runner"
	defaultBatchSize = 500
)

type Options struct {
	DryRun    bool
	BatchSize int
}

func (o Options) batch() int {
	if o.BatchSize <= 0 {
		return defaultBatchSize
	}
	return o.BatchSize
}

// Summary reports what one pass touched. Unknown counts values that had
// no canonical mapping and were left as found.
type Summary struct {
	Scanned  int `json:"scanned"`
	Groups   int `json:"groups,omitempty"`
	Updated  int `json:"updated"`
	Archived int `json:"archived,omitempty"`
	Unknown  int `json:"unknown,omitempty"`
}

// Runner applies the batch transforms. Every applied change leaves an
// audit entry; dry runs only count.
type Runner struct {
	db     *sql.DB
	audit  *audit.Recorder
	logger logger.Logger
}

func NewRunner(db *sql.DB, log logger.Logger) *Runner {
	return &Runner{
		db:     db,
		audit:  audit.NewRecorder(db, log),
		logger: log,
	}
}

// ==========================
// 1. Buyer Dedup
// ==========================

// DedupBuyers merges duplicate buyer rows: keeper elected per group,
// scalars filled oldest-first, array fields set-unioned, non-keepers
// archived with merged_into set. Idempotent by construction.
func (r *Runner) DedupBuyers(ctx context.Context, opts Options) (*Summary, error) {
	buyers, err := r.loadActiveBuyers(ctx)
	if err != nil {
		return nil, err
	}

	plans := PlanMerges(buyers)
	summary := &Summary{Scanned: len(buyers), Groups: len(plans)}

	for _, plan := range plans {
		summary.Updated++
		summary.Archived += len(plan.DuplicateIDs)
		if opts.DryRun {
			continue
		}
		if err := r.applyMerge(ctx, plan); err != nil {
			return summary, err
		}
	}

	r.logger.Info("buyer dedup pass finished", map[string]interface{}{
		"scanned":  summary.Scanned,
		"groups":   summary.Groups,
		"archived": summary.Archived,
		"dryRun":   opts.DryRun,
	})
	return summary, nil
}

func (r *Runner) loadActiveBuyers(ctx context.Context) ([]models.BuyerCriteria, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(firm_id, ''), company_name, COALESCE(contact_email, ''),
		       COALESCE(buyer_type, ''), COALESCE(revenue_min, 0), COALESCE(revenue_max, 0),
		       COALESCE(ebitda_min, 0), COALESCE(ebitda_max, 0),
		       target_geographies, target_services, COALESCE(geography_mode, ''),
		       COALESCE(thesis_text, ''), created_at
		FROM buyer_criteria WHERE archived = false ORDER BY id`)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("buyer_criteria", err)
	}
	defer rows.Close()

	var buyers []models.BuyerCriteria
	for rows.Next() {
		var b models.BuyerCriteria
		err := rows.Scan(
			&b.BuyerID, &b.FirmID, &b.CompanyName, &b.ContactEmail,
			&b.BuyerType, &b.RevenueMin, &b.RevenueMax,
			&b.EBITDAMin, &b.EBITDAMax,
			pq.Array(&b.TargetGeographies), pq.Array(&b.TargetServices), &b.GeographyMode,
			&b.ThesisText, &b.CreatedAt,
		)
		if err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("buyer_criteria", err)
		}
		buyers = append(buyers, b)
	}
	return buyers, rows.Err()
}

func (r *Runner) applyMerge(ctx context.Context, plan MergePlan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	defer tx.Rollback()

	k := plan.Keeper
	_, err = tx.ExecContext(ctx, `
		UPDATE buyer_criteria SET
			firm_id = NULLIF($2, ''), contact_email = NULLIF($3, ''),
			buyer_type = NULLIF($4, ''), thesis_text = NULLIF($5, ''),
			geography_mode = NULLIF($6, ''),
			revenue_min = NULLIF($7, 0), revenue_max = NULLIF($8, 0),
			ebitda_min = NULLIF($9, 0), ebitda_max = NULLIF($10, 0),
			target_geographies = $11, target_services = $12, updated_at = NOW()
		WHERE id = $1`,
		k.BuyerID, k.FirmID, k.ContactEmail, k.BuyerType, k.ThesisText,
		k.GeographyMode, k.RevenueMin, k.RevenueMax, k.EBITDAMin, k.EBITDAMax,
		pq.Array(k.TargetGeographies), pq.Array(k.TargetServices))
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE buyer_criteria SET archived = true, merged_into = $1, updated_at = NOW()
		WHERE id = ANY($2)`,
		k.BuyerID, pq.Array(plan.DuplicateIDs))
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	before, _ := json.Marshal(map[string]interface{}{"duplicateIds": plan.DuplicateIDs})
	after, _ := json.Marshal(k)
	r.audit.RecordTx(ctx, tx, &models.AuditEntry{
		ActorID:    backfillActor,
		Action:     "backfill.dedup_buyers",
		EntityType: "buyer_criteria",
		EntityID:   k.BuyerID,
		Before:     before,
		After:      after,
	})

	if err := tx.Commit(); err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

// ==========================
// 2. State Normalization
// ==========================

// NormalizeStates rewrites buyer target geographies and listing
// locations to USPS codes. Unknown values are left as found and
// counted.
func (r *Runner) NormalizeStates(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}
	if err := r.normalizeBuyerGeographies(ctx, opts, summary); err != nil {
		return summary, err
	}
	if err := r.normalizeListingLocations(ctx, opts, summary); err != nil {
		return summary, err
	}

	r.logger.Info("state normalization pass finished", map[string]interface{}{
		"scanned": summary.Scanned,
		"updated": summary.Updated,
		"unknown": summary.Unknown,
		"dryRun":  opts.DryRun,
	})
	return summary, nil
}

func (r *Runner) normalizeBuyerGeographies(ctx context.Context, opts Options, summary *Summary) error {
	lastID := ""
	for {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, target_geographies FROM buyer_criteria
			WHERE archived = false AND id > $1 ORDER BY id LIMIT $2`,
			lastID, opts.batch())
		if err != nil {
			return stderrors.NewQueryExecutionFailedError("buyer_criteria", err)
		}

		type change struct {
			id     string
			before []string
			after  []string
		}
		var changes []change
		n := 0
		for rows.Next() {
			var id string
			var geos []string
			if err := rows.Scan(&id, pq.Array(&geos)); err != nil {
				rows.Close()
				return stderrors.NewQueryExecutionFailedError("buyer_criteria", err)
			}
			n++
			summary.Scanned++
			lastID = id

			changed := false
			after := make([]string, len(geos))
			for i, g := range geos {
				code, ok := NormalizeState(g)
				after[i] = code
				if !ok && g != "" {
					summary.Unknown++
				}
				if code != g {
					changed = true
				}
			}
			if changed {
				changes = append(changes, change{id: id, before: geos, after: after})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return stderrors.NewQueryExecutionFailedError("buyer_criteria", err)
		}

		for _, c := range changes {
			summary.Updated++
			if opts.DryRun {
				continue
			}
			_, err := r.db.ExecContext(ctx, `
				UPDATE buyer_criteria SET target_geographies = $2, updated_at = NOW()
				WHERE id = $1`, c.id, pq.Array(c.after))
			if err != nil {
				return stderrors.NewDatabaseInsertFailedError(err)
			}
			r.recordNormalization(ctx, "buyer_criteria", c.id,
				map[string]interface{}{"targetGeographies": c.before},
				map[string]interface{}{"targetGeographies": c.after})
		}

		if n < opts.batch() {
			return nil
		}
	}
}

func (r *Runner) normalizeListingLocations(ctx context.Context, opts Options, summary *Summary) error {
	lastID := ""
	for {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, COALESCE(location, '') FROM deal_listings
			WHERE deleted_at IS NULL AND id > $1 ORDER BY id LIMIT $2`,
			lastID, opts.batch())
		if err != nil {
			return stderrors.NewQueryExecutionFailedError("deal_listings", err)
		}

		type change struct {
			id     string
			before string
			after  string
		}
		var changes []change
		n := 0
		for rows.Next() {
			var id, location string
			if err := rows.Scan(&id, &location); err != nil {
				rows.Close()
				return stderrors.NewQueryExecutionFailedError("deal_listings", err)
			}
			n++
			summary.Scanned++
			lastID = id

			if location == "" {
				continue
			}
			after, changed := NormalizeLocation(location)
			if changed {
				changes = append(changes, change{id: id, before: location, after: after})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return stderrors.NewQueryExecutionFailedError("deal_listings", err)
		}

		for _, c := range changes {
			summary.Updated++
			if opts.DryRun {
				continue
			}
			_, err := r.db.ExecContext(ctx, `
				UPDATE deal_listings SET location = $2, updated_at = NOW()
				WHERE id = $1`, c.id, c.after)
			if err != nil {
				return stderrors.NewDatabaseInsertFailedError(err)
			}
			r.recordNormalization(ctx, "deal_listings", c.id,
				map[string]interface{}{"location": c.before},
				map[string]interface{}{"location": c.after})
		}

		if n < opts.batch() {
			return nil
		}
	}
}

// ==========================
// 3. Category Standardization
// ==========================

// StandardizeListingCategories folds listing category values into the
// canonical vocabulary; the category array becomes the union-merged,
// sorted canonical set.
func (r *Runner) StandardizeListingCategories(ctx context.Context, opts Options) (*Summary, error) {
	summary := &Summary{}
	lastID := ""
	for {
		rows, err := r.db.QueryContext(ctx, `
			SELECT id, COALESCE(category, ''), categories FROM deal_listings
			WHERE deleted_at IS NULL AND id > $1 ORDER BY id LIMIT $2`,
			lastID, opts.batch())
		if err != nil {
			return summary, stderrors.NewQueryExecutionFailedError("deal_listings", err)
		}

		type change struct {
			id            string
			beforePrimary string
			beforeSet     []string
			afterPrimary  string
			afterSet      []string
		}
		var changes []change
		n := 0
		for rows.Next() {
			var id, category string
			var categories []string
			if err := rows.Scan(&id, &category, pq.Array(&categories)); err != nil {
				rows.Close()
				return summary, stderrors.NewQueryExecutionFailedError("deal_listings", err)
			}
			n++
			summary.Scanned++
			lastID = id

			canon, unknown := StandardizeCategories(category, categories)
			summary.Unknown += unknown

			newPrimary := category
			if category != "" {
				expansion, _ := NormalizeCategory(category)
				if len(expansion) > 0 {
					newPrimary = expansion[0]
				}
			}

			if newPrimary != category || !equalStrings(canon, categories) {
				changes = append(changes, change{
					id:            id,
					beforePrimary: category, beforeSet: categories,
					afterPrimary: newPrimary, afterSet: canon,
				})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return summary, stderrors.NewQueryExecutionFailedError("deal_listings", err)
		}

		for _, c := range changes {
			summary.Updated++
			if opts.DryRun {
				continue
			}
			_, err := r.db.ExecContext(ctx, `
				UPDATE deal_listings SET category = NULLIF($2, ''), categories = $3, updated_at = NOW()
				WHERE id = $1`, c.id, c.afterPrimary, pq.Array(c.afterSet))
			if err != nil {
				return summary, stderrors.NewDatabaseInsertFailedError(err)
			}
			r.recordNormalization(ctx, "deal_listings", c.id,
				map[string]interface{}{"category": c.beforePrimary, "categories": c.beforeSet},
				map[string]interface{}{"category": c.afterPrimary, "categories": c.afterSet})
		}

		if n < opts.batch() {
			break
		}
	}

	r.logger.Info("category standardization pass finished", map[string]interface{}{
		"scanned": summary.Scanned,
		"updated": summary.Updated,
		"unknown": summary.Unknown,
		"dryRun":  opts.DryRun,
	})
	return summary, nil
}

func (r *Runner) recordNormalization(ctx context.Context, entityType, entityID string, before, after map[string]interface{}) {
	beforeJSON, _ := json.Marshal(before)
	afterJSON, _ := json.Marshal(after)
	r.audit.Record(ctx, &models.AuditEntry{
		ActorID:    backfillActor,
		Action:     "backfill.normalize",
		EntityType: entityType,
		EntityID:   entityID,
		Before:     beforeJSON,
		After:      afterJSON,
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
