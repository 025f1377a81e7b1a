// internal/workers/dealflow/score-buyer-deal/handler.go
package scorebuyerdeal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

const (
	TaskType = "score-buyer-deal"

	buyerCacheKeyPrefix  = "buyer:criteria:"
	activeWeightCacheKey = "scoring:weights:active"
)

type Handler struct {
	config       *Config
	db           *sql.DB
	redis        *redis.Client
	engine       *scoring.Engine
	logger       logger.Logger
	errorHandler *stderrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, redis *redis.Client, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		redis:        redis,
		engine:       scoring.NewEngine(),
		logger:       l,
		errorHandler: stderrors.NewErrorHandler(l),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, stderrors.NewParseError(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	if input.BuyerID == "" || input.ListingID == "" {
		return nil, stderrors.NewValidationError("buyerId and listingId are required")
	}

	buyer, err := h.getBuyerCriteria(ctx, input.BuyerID)
	if err != nil {
		return nil, err
	}

	// Scoring a merged duplicate would resurrect the archived row, so
	// follow the pointer to the keeper.
	if buyer.Archived && buyer.MergedInto != "" {
		h.logger.Info("buyer was merged, scoring the keeper", map[string]interface{}{
			"buyerId": buyer.BuyerID,
			"keeper":  buyer.MergedInto,
		})
		buyer, err = h.getBuyerCriteria(ctx, buyer.MergedInto)
		if err != nil {
			return nil, err
		}
	}

	deal, err := h.getListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}

	cfg, err := h.getWeightConfig(ctx, input.WeightConfigID)
	if err != nil {
		return nil, err
	}

	engagement := h.getEngagementPoints(ctx, buyer.BuyerID, deal.ListingID)
	penalty := h.getLearningPenalty(ctx, buyer.BuyerID)

	inputs := scoring.ScoreInputs{
		EngagementPoints:     engagement,
		ThesisAlignmentBonus: input.ThesisAlignmentBonus,
		KPIBonus:             input.KPIBonus,
		CustomBonus:          input.CustomBonus,
		LearningPenalty:      penalty,
	}

	score := h.engine.Score(*buyer, *deal, inputs, cfg)
	score.ScoreID = uuid.New().String()
	score.ScoredAt = time.Now().UTC()

	if err := h.persistScore(ctx, &score); err != nil {
		return nil, err
	}

	metrics.ScoresComputed.WithLabelValues(score.Tier).Inc()
	if score.IsDisqualified {
		metrics.ScoresDisqualified.WithLabelValues(score.DisqualificationReason).Inc()
	}

	h.logger.Info("score computed", map[string]interface{}{
		"scoreId":        score.ScoreID,
		"buyerId":        score.BuyerID,
		"listingId":      score.ListingID,
		"composite":      score.CompositeScore,
		"tier":           score.Tier,
		"isDisqualified": score.IsDisqualified,
		"needsReview":    score.NeedsReview,
	})

	return &Output{
		ScoreID:                score.ScoreID,
		CompositeScore:         score.CompositeScore,
		Tier:                   score.Tier,
		SizeGate:               score.SizeGate,
		ServiceGate:            score.ServiceGate,
		GeographyGate:          score.GeographyGate,
		EngagementScore:        score.EngagementScore,
		IsDisqualified:         score.IsDisqualified,
		DisqualificationReason: score.DisqualificationReason,
		NeedsReview:            score.NeedsReview,
		Confidence:             score.Confidence,
		WeightConfigID:         score.WeightConfigID,
	}, nil
}

func (h *Handler) getBuyerCriteria(ctx context.Context, buyerID string) (*models.BuyerCriteria, error) {
	cacheKey := buyerCacheKeyPrefix + buyerID
	if h.redis != nil {
		if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
			var buyer models.BuyerCriteria
			if err := json.Unmarshal([]byte(val), &buyer); err == nil {
				return &buyer, nil
			}
		} else if err != redis.Nil {
			h.logger.Warn("buyer cache read failed, falling back to database", map[string]interface{}{
				"buyerId": buyerID,
				"error":   err.Error(),
			})
		}
	}

	row := h.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(firm_id, ''), company_name, COALESCE(contact_email, ''), buyer_type,
		       COALESCE(revenue_min, 0), COALESCE(revenue_max, 0),
		       COALESCE(ebitda_min, 0), COALESCE(ebitda_max, 0),
		       target_geographies, target_services, COALESCE(geography_mode, 'critical'),
		       COALESCE(thesis_text, ''), archived, COALESCE(merged_into, ''), created_at, updated_at
		FROM buyer_criteria WHERE id = $1`, buyerID)

	var buyer models.BuyerCriteria
	err := row.Scan(
		&buyer.BuyerID, &buyer.FirmID, &buyer.CompanyName, &buyer.ContactEmail, &buyer.BuyerType,
		&buyer.RevenueMin, &buyer.RevenueMax, &buyer.EBITDAMin, &buyer.EBITDAMax,
		pq.Array(&buyer.TargetGeographies), pq.Array(&buyer.TargetServices), &buyer.GeographyMode,
		&buyer.ThesisText, &buyer.Archived, &buyer.MergedInto, &buyer.CreatedAt, &buyer.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewBuyerNotFoundError(buyerID)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("buyer_criteria", err)
	}

	if h.redis != nil {
		data, _ := json.Marshal(buyer)
		if err := h.redis.Set(ctx, cacheKey, data, h.config.CacheTTL).Err(); err != nil {
			h.logger.Warn("buyer cache write failed", map[string]interface{}{
				"buyerId": buyerID,
				"error":   err.Error(),
			})
		}
	}

	return &buyer, nil
}

func (h *Handler) getListing(ctx context.Context, listingID string) (*models.DealListing, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, title, COALESCE(description, ''), COALESCE(category, ''), categories,
		       COALESCE(location, ''), COALESCE(revenue, 0), COALESCE(ebitda, 0),
		       COALESCE(asking_price, 0), COALESCE(data_completeness, 0),
		       COALESCE(motivation_score, 0), status, created_at
		FROM deal_listings WHERE id = $1 AND deleted_at IS NULL`, listingID)

	var deal models.DealListing
	err := row.Scan(
		&deal.ListingID, &deal.Title, &deal.Description, &deal.Category, pq.Array(&deal.Categories),
		&deal.Location, &deal.Revenue, &deal.EBITDA, &deal.AskingPrice,
		&deal.DataCompleteness, &deal.MotivationScore, &deal.Status, &deal.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewListingNotFoundError(listingID)
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("deal_listings", err)
	}

	return &deal, nil
}

// getWeightConfig resolves the explicit config when one was requested,
// otherwise the cached active config, otherwise the shipped default.
func (h *Handler) getWeightConfig(ctx context.Context, configID string) (models.WeightConfig, error) {
	if configID != "" {
		cfg, err := h.queryWeightConfig(ctx, `WHERE id = $1`, configID)
		if err == sql.ErrNoRows {
			return models.WeightConfig{}, stderrors.NewWeightConfigNotFoundError(configID)
		}
		if err != nil {
			return models.WeightConfig{}, stderrors.NewQueryExecutionFailedError("scoring_weight_configs", err)
		}
		if err := scoring.ValidateWeights(cfg); err != nil {
			return models.WeightConfig{}, stderrors.NewWeightConfigInvalidError(err.Error())
		}
		return cfg, nil
	}

	if h.redis != nil {
		if val, err := h.redis.Get(ctx, activeWeightCacheKey).Result(); err == nil {
			var cfg models.WeightConfig
			if err := json.Unmarshal([]byte(val), &cfg); err == nil {
				if err := scoring.ValidateWeights(cfg); err == nil {
					return cfg, nil
				}
			}
		}
	}

	cfg, err := h.queryWeightConfig(ctx, `WHERE active = true ORDER BY created_at DESC LIMIT 1`)
	if err == sql.ErrNoRows {
		h.logger.Info("no active weight config, using defaults", nil)
		return scoring.DefaultWeights(), nil
	}
	if err != nil {
		return models.WeightConfig{}, stderrors.NewQueryExecutionFailedError("scoring_weight_configs", err)
	}
	if err := scoring.ValidateWeights(cfg); err != nil {
		return models.WeightConfig{}, stderrors.NewWeightConfigInvalidError(err.Error())
	}

	if h.redis != nil {
		data, _ := json.Marshal(cfg)
		if err := h.redis.Set(ctx, activeWeightCacheKey, data, h.config.CacheTTL).Err(); err != nil {
			h.logger.Warn("weight config cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	return cfg, nil
}

func (h *Handler) queryWeightConfig(ctx context.Context, where string, args ...interface{}) (models.WeightConfig, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, name, size_fit_weight, data_quality_weight, motivation_weight, engagement_weight,
		       thesis_bonus_cap, data_quality_bonus_cap, learning_penalty_max, size_tolerance_pct,
		       active, COALESCE(cohort_key, ''), created_at
		FROM scoring_weight_configs `+where, args...)

	var cfg models.WeightConfig
	err := row.Scan(
		&cfg.ID, &cfg.Name, &cfg.SizeFitWeight, &cfg.DataQualityWeight,
		&cfg.MotivationWeight, &cfg.EngagementWeight,
		&cfg.ThesisBonusCap, &cfg.DataQualityBonusCap, &cfg.LearningPenaltyMax,
		&cfg.SizeTolerancePct, &cfg.Active, &cfg.CohortKey, &cfg.CreatedAt,
	)
	return cfg, err
}

// getEngagementPoints sums recorded signals. Engagement is 7 points of
// a 100-point base; a read failure degrades the score, not the job.
func (h *Handler) getEngagementPoints(ctx context.Context, buyerID, listingID string) int {
	rows, err := h.db.QueryContext(ctx, `
		SELECT signal_type FROM engagement_signals
		WHERE buyer_id = $1 AND listing_id = $2`, buyerID, listingID)
	if err != nil {
		h.logger.Warn("engagement lookup failed, scoring with zero engagement", map[string]interface{}{
			"buyerId":   buyerID,
			"listingId": listingID,
			"error":     err.Error(),
		})
		return 0
	}
	defer rows.Close()

	var signals []models.EngagementSignal
	for rows.Next() {
		var signalType string
		if err := rows.Scan(&signalType); err != nil {
			continue
		}
		signals = append(signals, models.EngagementSignal{SignalType: signalType})
	}

	return scoring.SumEngagement(signals)
}

// getLearningPenalty converts recent passes on this buyer's deals into
// a penalty: 5 points per pass in the last 180 days, capped at 25.
func (h *Handler) getLearningPenalty(ctx context.Context, buyerID string) int {
	var passes int
	err := h.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM deal_passes
		WHERE buyer_id = $1 AND passed_at > NOW() - INTERVAL '180 days'`, buyerID).Scan(&passes)
	if err != nil {
		h.logger.Warn("pass history lookup failed, scoring without penalty", map[string]interface{}{
			"buyerId": buyerID,
			"error":   err.Error(),
		})
		return 0
	}

	penalty := -5 * passes
	if penalty < -25 {
		penalty = -25
	}
	return penalty
}

// persistScore archives the previous active row and inserts the new one
// in a single transaction so at most one active score per pair survives.
func (h *Handler) persistScore(ctx context.Context, score *models.Score) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE buyer_deal_scores SET archived = true
		WHERE buyer_id = $1 AND listing_id = $2 AND archived = false`,
		score.BuyerID, score.ListingID)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO buyer_deal_scores (
			id, buyer_id, listing_id, composite_score, tier,
			size_gate, service_gate, geography_gate,
			size_fit_score, data_quality_score, motivation_score, engagement_score,
			thesis_alignment_bonus, data_quality_bonus, kpi_bonus, custom_bonus, learning_penalty,
			is_disqualified, disqualification_reason, needs_review, confidence,
			weight_config_id, archived, scored_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NULLIF($19, ''), $20, $21, $22, false, $23)`,
		score.ScoreID, score.BuyerID, score.ListingID, score.CompositeScore, score.Tier,
		score.SizeGate, score.ServiceGate, score.GeographyGate,
		score.SizeFitScore, score.DataQualityScore, score.MotivationScore, score.EngagementScore,
		score.ThesisAlignmentBonus, score.DataQualityBonus, score.KPIBonus, score.CustomBonus, score.LearningPenalty,
		score.IsDisqualified, score.DisqualificationReason, score.NeedsReview, score.Confidence,
		score.WeightConfigID, score.ScoredAt)
	if err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}

	if err := tx.Commit(); err != nil {
		return stderrors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

// failJob routes the failure through the shared handler, which retries
// transient codes and throws BPMN errors for the rest.
func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
