// internal/common/webhook/dispatcher.go
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"dealflow-workers/internal/common/config"
	"dealflow-workers/internal/common/errors"
	commonhttp "dealflow-workers/internal/common/http"
	"dealflow-workers/internal/common/logger"
	"dealflow-workers/internal/common/metrics"
)

// Event is the envelope posted to downstream webhook consumers.
// Payload carries the event-specific body untouched.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type deliveryResponse struct {
	Received bool   `json:"received"`
	Message  string `json:"message,omitempty"`
}

// Dispatcher posts events to per-event-type endpoints. A shared rate
// limiter smooths bursts and a circuit breaker stops hammering a
// consumer that is already failing.
type Dispatcher struct {
	baseURL    string
	endpoints  map[string]string
	secret     string
	httpClient *commonhttp.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     logger.Logger
}

// NewDispatcher wires the limiter and breaker from config. The breaker
// trips after BreakerMaxFailures consecutive failures and re-probes
// after BreakerTimeout.
func NewDispatcher(cfg config.WebhookConfig, secret string, log logger.Logger) *Dispatcher {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}

	maxFailures := cfg.BreakerMaxFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}
	breakerTimeout := time.Duration(cfg.BreakerTimeout) * time.Millisecond
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "webhook-dispatcher",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.WebhookBreakerState.Set(1)
			} else {
				metrics.WebhookBreakerState.Set(0)
			}
			log.Warn("Webhook circuit breaker state changed", map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	}

	return &Dispatcher{
		baseURL:    cfg.BaseURL,
		endpoints:  cfg.Events,
		secret:     secret,
		httpClient: commonhttp.NewClient(timeout),
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     log,
	}
}

// Send builds the envelope for a payload and dispatches it.
func (d *Dispatcher) Send(ctx context.Context, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &errors.StandardError{
			Code:      "SERIALIZATION_ERROR",
			Message:   "Failed to serialize webhook payload",
			Details:   err.Error(),
			Retryable: false,
		}
	}
	return d.Dispatch(ctx, &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	})
}

// Dispatch delivers one event. The call blocks on the rate limiter,
// then runs the POST through the breaker. An open breaker comes back
// as a non-retryable WEBHOOK_CIRCUIT_OPEN so callers can treat it as a
// soft failure instead of burning job retries.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	endpoint, ok := d.endpoints[event.Type]
	if !ok {
		// Unmapped event types are a configuration choice, not an error.
		d.logger.Debug("No webhook endpoint for event type, skipping", map[string]interface{}{
			"event_type": event.Type,
		})
		return nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return &errors.StandardError{
			Code:      "WEBHOOK_DELIVERY_FAILED",
			Message:   "Rate limiter wait aborted",
			Details:   err.Error(),
			Retryable: true,
		}
	}

	_, err := d.breaker.Execute(func() (interface{}, error) {
		return nil, d.post(ctx, endpoint, event)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return errors.NewWebhookCircuitOpenError(event.Type)
	}
	if err != nil {
		return err
	}

	return nil
}

// post performs the actual delivery attempt.
func (d *Dispatcher) post(ctx context.Context, endpoint string, event *Event) error {
	url := d.baseURL + endpoint

	jsonData, err := json.Marshal(event)
	if err != nil {
		return &errors.StandardError{
			Code:      "SERIALIZATION_ERROR",
			Message:   "Failed to serialize webhook event",
			Details:   err.Error(),
			Retryable: false,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return &errors.StandardError{
			Code:      "HTTP_REQUEST_ERROR",
			Message:   "Failed to create webhook request",
			Details:   err.Error(),
			Retryable: false,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.secret)
	req.Header.Set("X-Dealflow-Event", event.Type)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return errors.NewWebhookDeliveryFailedError(event.Type, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewWebhookDeliveryFailedError(event.Type, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewWebhookDeliveryFailedError(event.Type,
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	// Consumers may acknowledge with {"received": true}; an empty 2xx
	// body is also fine.
	if len(body) > 0 {
		var ack deliveryResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Message != "" {
			d.logger.Debug("Webhook consumer acknowledged", map[string]interface{}{
				"event_type": event.Type,
				"message":    ack.Message,
			})
		}
	}

	return nil
}

// State exposes the breaker state for health reporting.
func (d *Dispatcher) State() string {
	return d.breaker.State().String()
}
