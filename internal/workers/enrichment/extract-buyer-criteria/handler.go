// internal/workers/enrichment/extract-buyer-criteria/handler.go
package extractbuyercriteria

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "extract-buyer-criteria"

type Handler struct {
	config       *Config
	client       *http.Client
	logger       logger.Logger
	errorHandler *stderrors.ErrorHandler
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config: config,
		// No client-level timeout; the job context bounds every call.
		client:       &http.Client{},
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

	text := buildSourceText(input)
	if text == "" {
		return nil, stderrors.NewValidationError("thesisText or notes is required")
	}

	content, err := h.callExtractionAPI(ctx, text)
	if err != nil {
		metrics.CriteriaExtractions.WithLabelValues("failed").Inc()
		return nil, err
	}

	patch, warnings, err := parseExtraction(content)
	if err != nil {
		metrics.CriteriaExtractions.WithLabelValues("invalid_output").Inc()
		return nil, err
	}
	metrics.CriteriaExtractions.WithLabelValues("ok").Inc()

	if len(warnings) > 0 {
		h.logger.Warn("extraction produced values needing review", map[string]interface{}{
			"buyerId":  input.BuyerID,
			"warnings": strings.Join(warnings, "; "),
		})
	}

	h.logger.Info("criteria extraction completed", map[string]interface{}{
		"buyerId":     input.BuyerID,
		"geographies": len(patch.TargetGeographies),
		"services":    len(patch.TargetServices),
	})

	return &Output{
		BuyerID:       input.BuyerID,
		CriteriaPatch: patch,
		Model:         h.config.Model,
		Warnings:      warnings,
		ExtractedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func buildSourceText(input *Input) string {
	var parts []string
	if strings.TrimSpace(input.ThesisText) != "" {
		parts = append(parts, "Investment thesis:\n"+strings.TrimSpace(input.ThesisText))
	}
	if strings.TrimSpace(input.Notes) != "" {
		parts = append(parts, "Call notes:\n"+strings.TrimSpace(input.Notes))
	}
	return strings.Join(parts, "\n\n")
}

// callExtractionAPI posts one chat completion and returns the model's
// answer text. Transient failures retry with backoff inside the job
// deadline; a fresh request is built per attempt since the previous
// one's body is spent.
func (h *Handler) callExtractionAPI(ctx context.Context, text string) (string, error) {
	payload := map[string]interface{}{
		"model": h.config.Model,
		"messages": []map[string]string{
			{"role": "system", "content": extractionSystemPrompt},
			{"role": "user", "content": text},
		},
		"temperature": h.config.Temperature,
		"max_tokens":  h.config.MaxTokens,
	}
	body, _ := json.Marshal(payload)

	var lastErr error
	for attempt := 0; attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", stderrors.NewExtractionTimeoutError()
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST",
			h.config.APIBaseURL+"/api/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", stderrors.NewExtractionFailedError(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+h.config.APIKey)

		resp, err := h.client.Do(req)
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return "", stderrors.NewExtractionTimeoutError()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("extraction API status %d", resp.StatusCode)
			continue
		}

		var envelope struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		err = json.NewDecoder(resp.Body).Decode(&envelope)
		resp.Body.Close()
		if err != nil {
			return "", stderrors.NewExtractionFailedError(fmt.Errorf("decode response: %w", err))
		}

		if len(envelope.Choices) == 0 || strings.TrimSpace(envelope.Choices[0].Message.Content) == "" {
			return "", stderrors.NewExtractionInvalidOutputError("extraction API returned no content")
		}
		return envelope.Choices[0].Message.Content, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		return "", stderrors.NewExtractionTimeoutError()
	}
	return "", stderrors.NewExtractionFailedError(lastErr)
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

// Execute runs the extraction outside a Zeebe job, for tests and ad-hoc
// invocations.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
