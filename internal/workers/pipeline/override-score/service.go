// internal/workers/pipeline/override-score/service.go
package overridescore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dealflow-workers/internal/common/audit"
	"dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/scoring"
)

const selectScoreSQL = `
	SELECT id, buyer_id, listing_id, composite_score, tier,
	       size_gate, service_gate, geography_gate,
	       size_fit_score, data_quality_score, motivation_score, engagement_score,
	       thesis_alignment_bonus, data_quality_bonus, kpi_bonus, custom_bonus, learning_penalty,
	       is_disqualified, COALESCE(disqualification_reason, ''), needs_review, confidence,
	       COALESCE(weight_config_id, ''), archived, scored_at
	FROM buyer_deal_scores WHERE id = $1 FOR UPDATE`

const insertScoreSQL = `
	INSERT INTO buyer_deal_scores (
		id, buyer_id, listing_id, composite_score, tier,
		size_gate, service_gate, geography_gate,
		size_fit_score, data_quality_score, motivation_score, engagement_score,
		thesis_alignment_bonus, data_quality_bonus, kpi_bonus, custom_bonus, learning_penalty,
		is_disqualified, disqualification_reason, needs_review, confidence,
		weight_config_id, archived, scored_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULLIF($19, ''), $20, $21, $22, false, $23)`

type Service struct {
	config *Config
	logger logger.Logger
	deps   ServiceDependencies
	audit  *audit.Recorder
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{
		config: config,
		logger: deps.Logger,
		deps:   deps,
		audit:  audit.NewRecorder(deps.DB, deps.Logger),
	}
}

// Execute archives the targeted score row and inserts a manual
// replacement carrying the override values. Implausible values are
// warned about and applied anyway; only missing required fields and a
// stale target reject the job. The admin asked for this exact state
// and the audit trail records why.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	isAdmin, err := s.deps.Auth.IsAdmin(ctx, input.ActorUserID)
	if err != nil {
		return nil, errors.NewAuthLookupFailedError(err)
	}
	if !isAdmin {
		return nil, errors.NewAuthorizationError(
			fmt.Sprintf("user %s is not an admin", input.ActorUserID))
	}

	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, &errors.StandardError{
			Code:      "VALIDATION_FAILED",
			Message:   "Override reason is required",
			Details:   "reason must not be blank",
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	if input.CompositeScore == nil && input.Tier == nil && input.NeedsReview == nil {
		return nil, &errors.StandardError{
			Code:      "VALIDATION_FAILED",
			Message:   "Nothing to override",
			Details:   "provide at least one of compositeScore, tier, needsReview",
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	tx, err := s.deps.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	previous, err := loadScore(ctx, tx, input.ScoreID)
	if err == sql.ErrNoRows {
		return nil, &errors.StandardError{
			Code:      "SCORE_NOT_FOUND",
			Message:   "Score row does not exist",
			Details:   fmt.Sprintf("scoreId: %s", input.ScoreID),
			Retryable: false,
			Timestamp: time.Now(),
		}
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("override_score", err)
	}

	if previous.Archived {
		return nil, &errors.StandardError{
			Code:      "SCORE_ARCHIVED",
			Message:   "Score row was already superseded",
			Details:   fmt.Sprintf("scoreId %s is archived; override the active row for the pair", input.ScoreID),
			Retryable: false,
			Timestamp: time.Now(),
		}
	}

	overridden := applyOverride(previous, input)
	s.warnIfImplausible(input, &overridden)

	_, err = tx.ExecContext(ctx, `
		UPDATE buyer_deal_scores SET archived = true
		WHERE buyer_id = $1 AND listing_id = $2 AND archived = false`,
		previous.BuyerID, previous.ListingID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("override_score", err)
	}

	_, err = tx.ExecContext(ctx, insertScoreSQL,
		overridden.ScoreID, overridden.BuyerID, overridden.ListingID, overridden.CompositeScore, overridden.Tier,
		overridden.SizeGate, overridden.ServiceGate, overridden.GeographyGate,
		overridden.SizeFitScore, overridden.DataQualityScore, overridden.MotivationScore, overridden.EngagementScore,
		overridden.ThesisAlignmentBonus, overridden.DataQualityBonus, overridden.KPIBonus, overridden.CustomBonus, overridden.LearningPenalty,
		overridden.IsDisqualified, overridden.DisqualificationReason, overridden.NeedsReview, overridden.Confidence,
		overridden.WeightConfigID, overridden.ScoredAt)
	if err != nil {
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	before, _ := json.Marshal(map[string]interface{}{"score": previous})
	after, _ := json.Marshal(map[string]interface{}{"score": overridden, "reason": reason})
	s.audit.RecordTx(ctx, tx, &models.AuditEntry{
		ActorID:    input.ActorUserID,
		Action:     "score.override_applied",
		EntityType: "buyer_deal_score",
		EntityID:   overridden.ScoreID,
		Before:     before,
		After:      after,
	})

	if err := tx.Commit(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("override_score", err)
	}

	s.logger.Info("Score override applied", map[string]interface{}{
		"scoreId":         overridden.ScoreID,
		"previousScoreId": previous.ScoreID,
		"buyerId":         overridden.BuyerID,
		"listingId":       overridden.ListingID,
		"compositeScore":  overridden.CompositeScore,
		"tier":            overridden.Tier,
		"actorUserId":     input.ActorUserID,
	})

	return &Output{
		Success:         true,
		Message:         "Score override applied",
		ScoreID:         overridden.ScoreID,
		PreviousScoreID: previous.ScoreID,
		CompositeScore:  overridden.CompositeScore,
		Tier:            overridden.Tier,
		NeedsReview:     overridden.NeedsReview,
		Confidence:      overridden.Confidence,
		OverriddenAt:    overridden.ScoredAt,
	}, nil
}

// applyOverride copies the archived row and lays the provided values
// over it. When the composite changes without an explicit tier the
// tier follows the new composite; an explicit tier always wins. A
// manual override resolves review, so needsReview defaults to false
// unless the admin set it.
func applyOverride(previous models.Score, input *Input) models.Score {
	overridden := previous
	overridden.ScoreID = uuid.New().String()
	overridden.Confidence = models.ConfidenceManual
	overridden.Archived = false
	overridden.ScoredAt = time.Now().UTC()

	if input.CompositeScore != nil {
		overridden.CompositeScore = *input.CompositeScore
		overridden.Tier = scoring.TierFor(*input.CompositeScore)
	}
	if input.Tier != nil {
		overridden.Tier = *input.Tier
	}
	if input.NeedsReview != nil {
		overridden.NeedsReview = *input.NeedsReview
	} else {
		overridden.NeedsReview = false
	}

	return overridden
}

// warnIfImplausible logs overrides that contradict the scoring rules.
// The override still goes through untouched.
func (s *Service) warnIfImplausible(input *Input, overridden *models.Score) {
	var concerns []string

	if overridden.CompositeScore < 0 || overridden.CompositeScore > 100 {
		concerns = append(concerns, fmt.Sprintf("compositeScore %d outside 0-100", overridden.CompositeScore))
	}
	if !knownTier(overridden.Tier) {
		concerns = append(concerns, fmt.Sprintf("unknown tier %q", overridden.Tier))
	} else if input.Tier != nil && scoring.TierFor(overridden.CompositeScore) != overridden.Tier {
		concerns = append(concerns, fmt.Sprintf("tier %s does not match composite %d (expected %s)",
			overridden.Tier, overridden.CompositeScore, scoring.TierFor(overridden.CompositeScore)))
	}

	if len(concerns) == 0 {
		return
	}
	s.logger.Warn("Override values look inconsistent, applying anyway", map[string]interface{}{
		"scoreId":  overridden.ScoreID,
		"concerns": strings.Join(concerns, "; "),
	})
}

func loadScore(ctx context.Context, tx *sql.Tx, scoreID string) (models.Score, error) {
	var score models.Score
	err := tx.QueryRowContext(ctx, selectScoreSQL, scoreID).Scan(
		&score.ScoreID, &score.BuyerID, &score.ListingID, &score.CompositeScore, &score.Tier,
		&score.SizeGate, &score.ServiceGate, &score.GeographyGate,
		&score.SizeFitScore, &score.DataQualityScore, &score.MotivationScore, &score.EngagementScore,
		&score.ThesisAlignmentBonus, &score.DataQualityBonus, &score.KPIBonus, &score.CustomBonus, &score.LearningPenalty,
		&score.IsDisqualified, &score.DisqualificationReason, &score.NeedsReview, &score.Confidence,
		&score.WeightConfigID, &score.Archived, &score.ScoredAt)
	return score, err
}

func knownTier(tier string) bool {
	switch tier {
	case models.TierA, models.TierB, models.TierC, models.TierD, models.TierF:
		return true
	}
	return false
}
