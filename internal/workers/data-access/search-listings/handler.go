// internal/workers/data-access/search-listings/handler.go
package searchlistings

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"

	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/workers/data-access/search-listings/queries"
)

const (
	TaskType = "search-listings"
)

type Handler struct {
	config       *Config
	client       *elasticsearch.Client
	logger       logger.Logger
	errorHandler *stderrors.ErrorHandler
}

func NewHandler(config *Config, client *elasticsearch.Client, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		client:       client,
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
		return nil, errors.New("input cannot be nil")
	}

	indexName := input.IndexName
	if indexName == "" {
		indexName = h.config.Index
	}
	queryType := input.QueryType
	if queryType == "" {
		queryType = "listing_search"
	}

	params := map[string]interface{}{
		"indexName":  indexName,
		"queryType":  queryType,
		"filters":    input.Filters,
		"pagination": map[string]interface{}{"from": float64(input.Pagination.From), "size": float64(input.Pagination.Size)},
	}
	if input.Query != "" {
		params["query"] = input.Query
	}
	if input.ListingID != "" {
		params["listingId"] = input.ListingID
	}

	result, err := queries.Execute(ctx, h.client, params)
	if err != nil {
		return nil, h.classifySearchError(ctx, err, indexName, queryType)
	}

	hits := make([]SearchHit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, SearchHit{
			ListingID:  hit.ListingID,
			Score:      hit.Score,
			Title:      hit.Title,
			Highlights: hit.Highlights,
		})
	}

	return &Output{
		Hits:      hits,
		TotalHits: result.TotalHits,
		MaxScore:  result.MaxScore,
		Took:      result.Took,
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

// classifySearchError turns a raw query failure into the structured error the
// retry policy keys on. Transport failures are worth retrying, a bad query
// type or missing index is not.
func (h *Handler) classifySearchError(ctx context.Context, err error, indexName, queryType string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return stderrors.NewSearchTimeoutError(indexName)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return stderrors.NewElasticsearchConnectionFailedError(err)
	}

	if errors.Is(err, queries.ErrUnknownQueryType) {
		return stderrors.NewInvalidQueryTypeError(queryType)
	}
	if errors.Is(err, queries.ErrMissingIndex) || strings.Contains(err.Error(), "index_not_found_exception") {
		return stderrors.NewIndexNotFoundError(indexName)
	}

	return stderrors.NewSearchQueryFailedError(indexName, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
