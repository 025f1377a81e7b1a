package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"dealflow-workers/internal/common/config"
	stderrors "dealflow-workers/internal/common/errors"
	"dealflow-workers/internal/common/logger"
)

func createTestLogger(t *testing.T) logger.Logger {
	return logger.NewZapAdapter(zaptest.NewLogger(t))
}

func testDispatcher(t *testing.T, baseURL string, maxFailures int) *Dispatcher {
	cfg := config.WebhookConfig{
		BaseURL:            baseURL,
		Events:             map[string]string{"deal.scored": "/functions/v1/deal-scored"},
		BreakerMaxFailures: maxFailures,
	}
	return NewDispatcher(cfg, "whsec-test", createTestLogger(t))
}

func TestDispatcher_Send_DeliversEnvelope(t *testing.T) {
	var got Event
	var auth, eventHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		eventHeader = r.Header.Get("X-Dealflow-Event")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"received": true}`))
	}))
	t.Cleanup(srv.Close)

	d := testDispatcher(t, srv.URL, 0)

	err := d.Send(context.Background(), "deal.scored", map[string]interface{}{
		"listingId": "listing-1",
		"tier":      "A",
	})

	assert.NoError(t, err)
	assert.Equal(t, "deal.scored", got.Type)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.OccurredAt.IsZero())
	assert.Equal(t, "Bearer whsec-test", auth)
	assert.Equal(t, "deal.scored", eventHeader)

	var payload map[string]interface{}
	assert.NoError(t, json.Unmarshal(got.Payload, &payload))
	assert.Equal(t, "listing-1", payload["listingId"])
	assert.Equal(t, "A", payload["tier"])
}

func TestDispatcher_UnmappedEventTypeIsSkipped(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	t.Cleanup(srv.Close)

	d := testDispatcher(t, srv.URL, 0)

	err := d.Send(context.Background(), "not.configured", map[string]string{"k": "v"})

	assert.NoError(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestDispatcher_Non2xxIsRetryableDeliveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "consumer exploded", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	d := testDispatcher(t, srv.URL, 0)

	err := d.Send(context.Background(), "deal.scored", map[string]string{"k": "v"})

	assert.Error(t, err)
	var stdErr *stderrors.StandardError
	assert.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeWebhookDeliveryFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Details, "status 500")
}

func TestDispatcher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	d := testDispatcher(t, srv.URL, 2)

	for i := 0; i < 2; i++ {
		err := d.Send(context.Background(), "deal.scored", map[string]string{"k": "v"})
		var stdErr *stderrors.StandardError
		assert.True(t, errors.As(err, &stdErr))
		assert.Equal(t, stderrors.ErrCodeWebhookDeliveryFailed, stdErr.Code)
	}

	// Third call trips on the open breaker without reaching the consumer.
	err := d.Send(context.Background(), "deal.scored", map[string]string{"k": "v"})
	var stdErr *stderrors.StandardError
	assert.True(t, errors.As(err, &stdErr))
	assert.Equal(t, stderrors.ErrCodeWebhookCircuitOpen, stdErr.Code)
	assert.False(t, stdErr.Retryable)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "open", d.State())
}

func TestDispatcher_EmptyAckBodyIsAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	d := testDispatcher(t, srv.URL, 0)

	err := d.Send(context.Background(), "deal.scored", map[string]string{"k": "v"})

	assert.NoError(t, err)
}
