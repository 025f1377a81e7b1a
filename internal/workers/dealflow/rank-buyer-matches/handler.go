// internal/workers/dealflow/rank-buyer-matches/handler.go
package rankbuyermatches

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/lib/pq"
)

const TaskType = "rank-buyer-matches"

type Handler struct {
	config       *Config
	db           *sql.DB
	logger       logger.Logger
	errorHandler *stderrors.ErrorHandler
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
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
	if input.ListingID == "" {
		return nil, stderrors.NewValidationError("listingId is required")
	}

	ids := dedupIDs(input.BuyerIDs)
	if len(ids) == 0 {
		return nil, stderrors.NewValidationError("buyerIds must contain at least one id")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = h.config.DefaultLimit
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT s.buyer_id, COALESCE(b.company_name, ''), s.composite_score,
		       s.engagement_score, s.tier, s.is_disqualified, s.scored_at
		FROM buyer_deal_scores s
		LEFT JOIN buyer_criteria b ON b.id = s.buyer_id
		WHERE s.listing_id = $1 AND s.buyer_id = ANY($2) AND s.archived = false`,
		input.ListingID, pq.Array(ids))
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("buyer_deal_scores", err)
	}
	defer rows.Close()

	var matches []Match
	disqualified := 0
	considered := 0
	for rows.Next() {
		var m Match
		var isDisqualified bool
		err := rows.Scan(&m.BuyerID, &m.CompanyName, &m.CompositeScore,
			&m.EngagementScore, &m.Tier, &isDisqualified, &m.ScoredAt)
		if err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("buyer_deal_scores", err)
		}
		considered++
		if isDisqualified {
			disqualified++
			continue
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("buyer_deal_scores", err)
	}

	matches = rankMatches(matches, time.Now().UTC())
	if len(matches) > limit {
		matches = matches[:limit]
	}

	h.logger.Info("buyer matches ranked", map[string]interface{}{
		"listingId":    input.ListingID,
		"considered":   considered,
		"disqualified": disqualified,
		"returned":     len(matches),
	})

	return &Output{
		ListingID:    input.ListingID,
		Matches:      matches,
		Considered:   considered,
		Disqualified: disqualified,
	}, nil
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

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	h.errorHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
