// internal/workers/alerts/send-deal-alert/handler.go
package senddealalert

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	commonaws "dealflow-workers/internal/common/aws"
	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
	"dealflow-workers/internal/common/validation"
	"dealflow-workers/internal/common/webhook"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-deal-alert"
)

const (
	alertSubject = "New listing matches your deal alert: {{title}}"
	alertBody    = "A new listing just matched your saved search.\n\n" +
		"{{title}}\n" +
		"{{category}} | {{location}}\n" +
		"Revenue: {{revenue}}\n" +
		"Asking price: {{askingPrice}}\n\n" +
		"Sign in to view the full listing."
	alertSMS = "Dealflow alert: {{title}} ({{location}}) matches your saved search."
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Handler struct {
	config       *Config
	webhooks     *webhook.Dispatcher
	logger       logger.Logger
	errorHandler *stderrors.ErrorHandler
	sesClient    SESService
	snsClient    SNSService
}

// NewHandler builds the AWS clients from the ambient credential chain.
// webhooks may be nil when no dispatcher is configured; delivery then
// degrades to email and SMS only.
func NewHandler(config *Config, webhooks *webhook.Dispatcher, log logger.Logger) (*Handler, error) {
	sesClient, err := commonaws.NewSESClient(context.Background(), config.AWSRegion, config.AWSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	snsClient, err := commonaws.NewSNSClient(context.Background(), config.AWSRegion, config.AWSEndpoint)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		webhooks:     webhooks,
		logger:       l,
		errorHandler: stderrors.NewErrorHandler(l),
		sesClient:    sesClient,
		snsClient:    snsClient,
	}, nil
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

// execute fans the alert out to every enabled channel. A channel
// failure is recorded in the output and the remaining channels still
// run. A missed email must never block listing intake, so the job only
// fails on unusable input.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, fmt.Errorf("input cannot be nil")
	}
	if input.AlertID == "" || input.UserID == "" {
		return nil, stderrors.NewValidationError("alertId and userId are required")
	}
	if input.Listing.ListingID == "" {
		return nil, stderrors.NewValidationError("listing summary is required")
	}

	output := &Output{
		NotificationID: uuid.New().String(),
		SentAt:         time.Now().UTC().Format(time.RFC3339),
	}

	data := map[string]string{
		"title":       input.Listing.Title,
		"category":    input.Listing.Category,
		"location":    input.Listing.Location,
		"revenue":     formatMoney(input.Listing.Revenue),
		"askingPrice": formatMoney(input.Listing.AskingPrice),
	}

	if h.config.EmailEnabled && input.Email != "" {
		subject := renderTemplate(alertSubject, data)
		body := renderTemplate(alertBody, data)
		if err := h.sendEmail(ctx, input.Email, subject, body); err != nil {
			h.logger.Warn("alert email failed", map[string]interface{}{
				"alertId": input.AlertID,
				"error":   err.Error(),
			})
			output.Failures = append(output.Failures, "email: "+err.Error())
			metrics.AlertsDelivered.WithLabelValues("email", "failed").Inc()
		} else {
			output.EmailSent = true
			metrics.AlertsDelivered.WithLabelValues("email", "sent").Inc()
		}
	}

	if h.config.SMSEnabled && input.SMSOptIn && input.Phone != "" {
		if !validation.ValidatePhone(input.Phone) {
			h.logger.Warn("alert SMS skipped, phone number not dialable", map[string]interface{}{
				"alertId": input.AlertID,
			})
			output.Failures = append(output.Failures, "sms: invalid phone number")
			metrics.AlertsDelivered.WithLabelValues("sms", "failed").Inc()
		} else if err := h.sendSMS(ctx, input.Phone, renderTemplate(alertSMS, data)); err != nil {
			h.logger.Warn("alert SMS failed", map[string]interface{}{
				"alertId": input.AlertID,
				"error":   err.Error(),
			})
			output.Failures = append(output.Failures, "sms: "+err.Error())
			metrics.AlertsDelivered.WithLabelValues("sms", "failed").Inc()
		} else {
			output.SMSSent = true
			metrics.AlertsDelivered.WithLabelValues("sms", "sent").Inc()
		}
	}

	h.postWebhook(ctx, input, output)

	return output, nil
}

// postWebhook notifies the send-deal-alert edge function so the app
// can surface the match in-product. Webhook trouble is never fatal.
func (h *Handler) postWebhook(ctx context.Context, input *Input, output *Output) {
	if h.webhooks == nil {
		h.logger.Warn("webhook dispatcher not configured, skipping delivery", map[string]interface{}{
			"alertId": input.AlertID,
		})
		return
	}

	payload := map[string]interface{}{
		"notificationId": output.NotificationID,
		"alertId":        input.AlertID,
		"userId":         input.UserID,
		"listingId":      input.Listing.ListingID,
		"frequency":      input.Frequency,
	}
	if err := h.webhooks.Send(ctx, TaskType, payload); err != nil {
		h.logger.Warn("alert webhook failed", map[string]interface{}{
			"alertId": input.AlertID,
			"error":   err.Error(),
		})
		output.Failures = append(output.Failures, "webhook: "+err.Error())
		metrics.AlertsDelivered.WithLabelValues("webhook", "failed").Inc()
		return
	}
	output.WebhookSent = true
	metrics.AlertsDelivered.WithLabelValues("webhook", "sent").Inc()
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	_, err := h.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
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

// renderTemplate substitutes {{key}} placeholders and strips any that
// have no value, so an empty field never leaks braces into the email.
func renderTemplate(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}

// formatMoney renders whole dollars with thousands separators. Zero
// means the seller did not disclose the figure.
func formatMoney(v int64) string {
	if v <= 0 {
		return "Undisclosed"
	}
	digits := strconv.FormatInt(v, 10)
	var b strings.Builder
	b.WriteByte('$')
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
