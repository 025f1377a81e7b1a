// internal/common/audit/audit.go
package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
)

const insertEntrySQL = `
	INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, before_state, after_state, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Recorder writes audit entries for privileged mutations. A failed
// audit write is logged and swallowed: the mutation it describes has
// already happened (or is about to commit) and must not be rolled back
// over bookkeeping.
type Recorder struct {
	db     *sql.DB
	logger logger.Logger
}

func NewRecorder(db *sql.DB, log logger.Logger) *Recorder {
	return &Recorder{db: db, logger: log}
}

// Record writes an entry outside any transaction.
func (r *Recorder) Record(ctx context.Context, entry *models.AuditEntry) {
	r.fill(entry)

	_, err := r.db.ExecContext(ctx, insertEntrySQL,
		entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		nullableJSON(entry.Before), nullableJSON(entry.After), entry.CreatedAt)
	if err != nil {
		r.warn(entry, err)
	}
}

// RecordTx writes an entry inside the caller's transaction so the audit
// row commits or rolls back with the mutation itself. Errors are still
// only warned about; the caller decides the transaction's fate.
func (r *Recorder) RecordTx(ctx context.Context, tx *sql.Tx, entry *models.AuditEntry) {
	r.fill(entry)

	_, err := tx.ExecContext(ctx, insertEntrySQL,
		entry.ID, entry.ActorID, entry.Action, entry.EntityType, entry.EntityID,
		nullableJSON(entry.Before), nullableJSON(entry.After), entry.CreatedAt)
	if err != nil {
		r.warn(entry, err)
	}
}

func (r *Recorder) fill(entry *models.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}

func (r *Recorder) warn(entry *models.AuditEntry, err error) {
	r.logger.Warn("Audit write failed, continuing", map[string]interface{}{
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"error":       err.Error(),
	})
}

// nullableJSON maps empty raw JSON to NULL instead of an empty string,
// which jsonb columns reject.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
