// internal/models/audit.go
package models

import (
	"encoding/json"
	"time"
)

// AuditEntry is one row of audit_logs. Before/After hold the entity state
// around a sensitive mutation; writes are best-effort and never block the
// mutation they describe.
type AuditEntry struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}
