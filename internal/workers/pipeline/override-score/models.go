// internal/workers/pipeline/override-score/models.go
package overridescore

import (
	"context"
	"database/sql"
	"time"

	"dealflow-workers/internal/common/logger"
)

// Input carries an admin override for one score row. The pointer
// fields distinguish "not provided" from a zero value; a nil field
// keeps the archived row's value.
type Input struct {
	ScoreID        string  `json:"scoreId"`
	ActorUserID    string  `json:"actorUserId"`
	Reason         string  `json:"reason"`
	CompositeScore *int    `json:"compositeScore,omitempty"`
	Tier           *string `json:"tier,omitempty"`
	NeedsReview    *bool   `json:"needsReview,omitempty"`
}

type Output struct {
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	ScoreID         string    `json:"scoreId,omitempty"`
	PreviousScoreID string    `json:"previousScoreId,omitempty"`
	CompositeScore  int       `json:"compositeScore"`
	Tier            string    `json:"tier,omitempty"`
	NeedsReview     bool      `json:"needsReview"`
	Confidence      string    `json:"confidence,omitempty"`
	OverriddenAt    time.Time `json:"overriddenAt,omitempty"`
}

// RoleChecker is the slice of the Supabase admin client this worker
// needs, kept as an interface so tests can stub the role lookup.
type RoleChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

type ServiceDependencies struct {
	DB     *sql.DB
	Auth   RoleChecker
	Logger logger.Logger
}
