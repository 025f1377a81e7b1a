// internal/workers/alerts/match-deal-alerts/handler.go
package matchdealalerts

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/lib/pq"
)

const TaskType = "match-deal-alerts"

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
	if input.ListingID == "" && input.Listing == nil {
		return nil, stderrors.NewValidationError("listingId or an inline listing is required")
	}

	listing := input.Listing
	if listing == nil {
		loaded, err := h.getListing(ctx, input.ListingID)
		if err != nil {
			return nil, err
		}
		listing = loaded
	}

	alerts, err := h.loadActiveAlerts(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]MatchedAlert, 0)
	skipped := 0
	for _, alert := range alerts {
		criteria, err := NormalizeCriteria(alert.Criteria)
		if err != nil {
			// one corrupt blob must not stop listing intake
			skipped++
			h.logger.Warn("skipping alert with bad criteria", map[string]interface{}{
				"alertId": alert.AlertID,
				"error":   err.Error(),
			})
			continue
		}
		if Matches(criteria, *listing) {
			matches = append(matches, MatchedAlert{
				AlertID:   alert.AlertID,
				UserID:    alert.UserID,
				Email:     alert.Email,
				Frequency: alert.Frequency,
			})
		}
	}

	metrics.AlertsMatched.Add(float64(len(matches)))

	h.logger.Info("deal alerts matched", map[string]interface{}{
		"listingId": listing.ListingID,
		"evaluated": len(alerts),
		"matched":   len(matches),
		"skipped":   skipped,
	})

	return &Output{
		ListingID: listing.ListingID,
		Matches:   matches,
		Evaluated: len(alerts),
		Skipped:   skipped,
	}, nil
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

// loadActiveAlerts returns active alerts whose owners verified their
// email. Unverified accounts never receive deal mail.
func (h *Handler) loadActiveAlerts(ctx context.Context) ([]models.DealAlert, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT a.id, a.user_id, COALESCE(u.email, ''), a.frequency, a.criteria
		FROM deal_alerts a
		JOIN user_profiles u ON u.id = a.user_id
		WHERE a.active = true AND u.email_verified = true`)
	if err != nil {
		return nil, stderrors.NewQueryExecutionFailedError("deal_alerts", err)
	}
	defer rows.Close()

	var alerts []models.DealAlert
	for rows.Next() {
		var a models.DealAlert
		if err := rows.Scan(&a.AlertID, &a.UserID, &a.Email, &a.Frequency, &a.Criteria); err != nil {
			return nil, stderrors.NewQueryExecutionFailedError("deal_alerts", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
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
