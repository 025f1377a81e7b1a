// internal/common/errors/errors_test.go
package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("connection refused")

	tests := []struct {
		name          string
		err           *StandardError
		wantCode      ErrorCode
		wantRetryable bool
		wantDetails   string
	}{
		{"buyer not found", NewBuyerNotFoundError("buyer-1"), ErrCodeBuyerNotFound, false, "buyer-1"},
		{"listing not found", NewListingNotFoundError("listing-9"), ErrCodeListingNotFound, false, "listing-9"},
		{"weight config invalid", NewWeightConfigInvalidError("weights sum to 99"), ErrCodeWeightConfigInvalid, false, "weights sum to 99"},
		{"database connection failed", NewDatabaseConnectionFailedError(cause), ErrCodeDatabaseConnectionFailed, true, "connection refused"},
		{"query execution failed", NewQueryExecutionFailedError("get_buyer_profile", cause), ErrCodeQueryExecutionFailed, true, "get_buyer_profile"},
		{"query timeout", NewQueryTimeoutError("get_deals_with_details"), ErrCodeQueryTimeout, true, "get_deals_with_details"},
		{"invalid query type", NewInvalidQueryTypeError("bogus"), ErrCodeInvalidQueryType, false, "bogus"},
		{"search timeout", NewSearchTimeoutError("deal-listings"), ErrCodeSearchTimeout, true, "deal-listings"},
		{"index not found", NewIndexNotFoundError("missing-index"), ErrCodeIndexNotFound, false, "missing-index"},
		{"notification send failed", NewNotificationSendFailedError("email", cause), ErrCodeNotificationSendFailed, true, "email"},
		{"webhook circuit open", NewWebhookCircuitOpenError("alert.matched"), ErrCodeWebhookCircuitOpen, false, "alert.matched"},
		{"duplicate valuation lead", NewDuplicateValuationLeadError("lead-3"), ErrCodeDuplicateValuationLead, false, "lead-3"},
		{"invalid agreement transition", NewInvalidAgreementTransitionError("terminated", "active"), ErrCodeInvalidAgreementTransition, false, "terminated"},
		{"extraction timeout", NewExtractionTimeoutError(), ErrCodeExtractionTimeout, true, "timeout"},
		{"parse error", NewParseError(fmt.Errorf("unexpected end of JSON input")), ErrorCode("PARSE_ERROR"), false, "unexpected end of JSON input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantRetryable, tt.err.Retryable)
			assert.Contains(t, tt.err.Details, tt.wantDetails)
			assert.False(t, tt.err.Timestamp.IsZero())
		})
	}
}

func TestStandardError_Error(t *testing.T) {
	err := NewQueryTimeoutError("get_buyer_profile")
	assert.Equal(t, "StandardError[QUERY_TIMEOUT]: Database query timeout", err.Error())
}

func TestGetRetryCount(t *testing.T) {
	transient := []ErrorCode{
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeWebhookDeliveryFailed,
		ErrCodeAuthLookupFailed,
		ErrCodeExtractionFailed,
	}
	for _, code := range transient {
		assert.Equal(t, 3, GetRetryCount(code), string(code))
	}

	timeouts := []ErrorCode{ErrCodeQueryTimeout, ErrCodeSearchTimeout, ErrCodeExtractionTimeout}
	for _, code := range timeouts {
		assert.Equal(t, 2, GetRetryCount(code), string(code))
	}

	terminal := []ErrorCode{
		ErrCodeBuyerNotFound,
		ErrCodeInvalidQueryType,
		ErrCodeIndexNotFound,
		ErrCodeWebhookCircuitOpen,
		ErrCodeDuplicateValuationLead,
		ErrCodeInvalidAgreementTransition,
		ErrorCode("PARSE_ERROR"),
		ErrorCode("SOMETHING_NEW"),
	}
	for _, code := range terminal {
		assert.Equal(t, 0, GetRetryCount(code), string(code))
	}
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeSearchQueryFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeQueryTimeout))
	assert.False(t, IsRetryableErrorCode(ErrCodeListingNotFound))
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("mapped retryable code keeps its retry budget", func(t *testing.T) {
		stdErr := NewSearchQueryFailedError("deal-listings", fmt.Errorf("boom"))
		bpmnErr := ConvertToBPMNError(stdErr)

		assert.Equal(t, "SEARCH_QUERY_FAILED", bpmnErr.Code)
		assert.Equal(t, stdErr.Message, bpmnErr.Message)
		assert.True(t, bpmnErr.Retryable)
		assert.Equal(t, 3, bpmnErr.Retries)
	})

	t.Run("non-retryable error never keeps retries", func(t *testing.T) {
		stdErr := &StandardError{
			Code:      ErrCodeQueryExecutionFailed,
			Message:   "poisoned query",
			Retryable: false,
			Timestamp: time.Now().UTC(),
		}
		bpmnErr := ConvertToBPMNError(stdErr)

		assert.Equal(t, 0, bpmnErr.Retries)
	})

	t.Run("unmapped code falls back to the raw code", func(t *testing.T) {
		bpmnErr := ConvertToBPMNError(NewParseError(fmt.Errorf("bad json")))

		assert.Equal(t, "PARSE_ERROR", bpmnErr.Code)
		assert.Equal(t, 0, bpmnErr.Retries)
	})

	t.Run("carries origin code and timestamp for the process", func(t *testing.T) {
		bpmnErr := ConvertToBPMNError(NewBuyerNotFoundError("buyer-1"))

		require.NotNil(t, bpmnErr.ErrorVariables)
		assert.Equal(t, "BUYER_NOT_FOUND", bpmnErr.ErrorVariables["originalErrorCode"])

		ts, ok := bpmnErr.ErrorVariables["timestamp"].(string)
		require.True(t, ok)
		_, err := time.Parse(time.RFC3339, ts)
		assert.NoError(t, err)
	})
}

func TestBPMNError_ToErrorVariables(t *testing.T) {
	bpmnErr := &BPMNError{
		Code:      "LISTING_NOT_FOUND",
		Message:   "Deal listing not found or deleted",
		Details:   "listingId: listing-9",
		Retryable: false,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": "LISTING_NOT_FOUND",
		},
	}

	vars := bpmnErr.ToErrorVariables()

	assert.Equal(t, "LISTING_NOT_FOUND", vars["errorCode"])
	assert.Equal(t, "Deal listing not found or deleted", vars["errorMessage"])
	assert.Equal(t, "listingId: listing-9", vars["errorDetails"])
	assert.Equal(t, false, vars["retryable"])
	assert.Equal(t, "LISTING_NOT_FOUND", vars["originalErrorCode"])
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{ErrCodeBuyerNotFound, "SCORING"},
		{ErrCodeWeightConfigInvalid, "SCORING"},
		{ErrCodeQueryTimeout, "DATABASE"},
		{ErrCodeInvalidQueryType, "DATABASE"},
		{ErrCodeElasticsearchConnectionFailed, "SEARCH"},
		{ErrCodeIndexNotFound, "SEARCH"},
		{ErrCodeNotificationSendFailed, "DELIVERY"},
		{ErrCodeWebhookCircuitOpen, "DELIVERY"},
		{ErrCodeDuplicateValuationLead, "VALUATION"},
		{ErrCodeInvalidAgreementTransition, "AGREEMENT"},
		{ErrCodeAuthLookupFailed, "AUTH"},
		{ErrCodeExtractionTimeout, "EXTRACTION"},
		{ErrCodeCriteriaInvalid, "VALIDATION"},
		{ErrorCode("PARSE_ERROR"), "OTHER"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorCategory(tt.code))
		})
	}
}
