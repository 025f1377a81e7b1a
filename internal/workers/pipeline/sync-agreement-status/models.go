// internal/workers/pipeline/sync-agreement-status/models.go
package syncagreementstatus

import (
	"context"
	"database/sql"

	"github.com/go-redis/redis/v8"

	"dealflow-workers/internal/common/logger"
)

type Input struct {
	FirmID        string `json:"firmId"`
	AgreementType string `json:"agreementType"` // "nda" or "fee_agreement"
	NewStatus     string `json:"newStatus"`
	ActorUserID   string `json:"actorUserId"`
}

// PropagationCounts reports how far the status change fanned out, in
// cascade order. A zero further down than a non-zero above it is
// normal; a zero above a non-zero is not.
type PropagationCounts struct {
	MembersUpdated            int64 `json:"membersUpdated"`
	ProfilesUpdated           int64 `json:"profilesUpdated"`
	ConnectionRequestsUpdated int64 `json:"connectionRequestsUpdated"`
	DealsFlagged              int64 `json:"dealsFlagged"`
}

type Output struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	FirmID           string            `json:"firmId"`
	AgreementType    string            `json:"agreementType"`
	PreviousStatus   string            `json:"previousStatus"`
	NewStatus        string            `json:"newStatus"`
	Propagation      PropagationCounts `json:"propagation"`
	CacheInvalidated bool              `json:"cacheInvalidated"`
}

// RoleChecker is the slice of the Supabase admin client this worker
// needs, kept as an interface so tests can stub the role lookup.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type ServiceDependencies struct {
	DB     *sql.DB
	Auth   RoleChecker
	Redis  *redis.Client
	Logger logger.Logger
}
