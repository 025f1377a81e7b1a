// internal/workers/dealflow/calculate-engagement/handler.go
package calculateengagement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/models"
	"dealflow-workers/internal/scoring"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "calculate-engagement"

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
	if input.BuyerID == "" || input.ListingID == "" {
		return nil, stderrors.NewValidationError("buyerId and listingId are required")
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT signal_type FROM engagement_signals
		WHERE buyer_id = $1 AND listing_id = $2`, input.BuyerID, input.ListingID)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("engagement_signals", err)
	}
	defer rows.Close()

	var signals []models.EngagementSignal
	breakdown := make(map[string]int)
	raw := 0
	for rows.Next() {
		var signalType string
		if err := rows.Scan(&signalType); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("engagement_signals", err)
		}
		signals = append(signals, models.EngagementSignal{SignalType: signalType})
		breakdown[signalType]++
		raw += scoring.PointsFor(signalType)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("engagement_signals", err)
	}

	score := scoring.SumEngagement(signals)

	h.logger.Info("engagement calculated", map[string]interface{}{
		"buyerId":         input.BuyerID,
		"listingId":       input.ListingID,
		"engagementScore": score,
		"rawPoints":       raw,
		"signalCount":     len(signals),
	})

	return &Output{
		EngagementScore: score,
		RawPoints:       raw,
		SignalCount:     len(signals),
		Breakdown:       breakdown,
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
