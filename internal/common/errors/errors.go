// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeBuyerNotFound          ErrorCode = "BUYER_NOT_FOUND"
	ErrCodeListingNotFound        ErrorCode = "LISTING_NOT_FOUND"
	ErrCodeScoreNotFound          ErrorCode = "SCORE_NOT_FOUND"
	ErrCodeWeightConfigNotFound   ErrorCode = "WEIGHT_CONFIG_NOT_FOUND"
	ErrCodeWeightConfigInvalid    ErrorCode = "WEIGHT_CONFIG_INVALID"
	ErrCodeCriteriaInvalid        ErrorCode = "CRITERIA_INVALID"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeInvalidQueryType         ErrorCode = "INVALID_QUERY_TYPE"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeNotificationSendFailed  ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeWebhookDeliveryFailed   ErrorCode = "WEBHOOK_DELIVERY_FAILED"
	ErrCodeWebhookCircuitOpen      ErrorCode = "WEBHOOK_CIRCUIT_OPEN"

	ErrCodeDuplicateValuationLead ErrorCode = "DUPLICATE_VALUATION_LEAD"

	ErrCodeFirmNotFound               ErrorCode = "FIRM_NOT_FOUND"
	ErrCodeInvalidAgreementTransition ErrorCode = "INVALID_AGREEMENT_TRANSITION"

	ErrCodeAuthLookupFailed ErrorCode = "AUTH_LOOKUP_FAILED"

	ErrCodeExtractionFailed        ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout       ErrorCode = "EXTRACTION_TIMEOUT"
	ErrCodeExtractionInvalidOutput ErrorCode = "EXTRACTION_INVALID_OUTPUT"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewBuyerNotFoundError creates a non-retryable missing buyer error.
func NewBuyerNotFoundError(buyerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeBuyerNotFound,
		Message:   "Buyer criteria not found or archived",
		Details:   fmt.Sprintf("buyerId: %s", buyerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewListingNotFoundError creates a non-retryable missing listing error.
func NewListingNotFoundError(listingID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeListingNotFound,
		Message:   "Deal listing not found or deleted",
		Details:   fmt.Sprintf("listingId: %s", listingID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoreNotFoundError creates a non-retryable missing score error.
func NewScoreNotFoundError(scoreID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoreNotFound,
		Message:   "Score record not found",
		Details:   fmt.Sprintf("scoreId: %s", scoreID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWeightConfigNotFoundError creates a non-retryable missing weight config error.
func NewWeightConfigNotFoundError(configID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeightConfigNotFound,
		Message:   "Scoring weight config not found",
		Details:   fmt.Sprintf("weightConfigId: %s", configID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWeightConfigInvalidError creates a non-retryable weight config validation error.
func NewWeightConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWeightConfigInvalid,
		Message:   "Scoring weight config failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCriteriaInvalidError creates a non-retryable alert criteria error.
func NewCriteriaInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCriteriaInvalid,
		Message:   "Alert criteria failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidQueryTypeError creates a non-retryable invalid query type error.
func NewInvalidQueryTypeError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidQueryType,
		Message:   "Unsupported query type",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(index string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Elasticsearch query timeout",
		Details:   fmt.Sprintf("index: %s", index),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return &StandardError{
		Code:      ErrCodeIndexNotFound,
		Message:   "Elasticsearch index not found",
		Details:   fmt.Sprintf("indexName: %s", indexName),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(notificationType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("type: %s, error: %s", notificationType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookDeliveryFailedError creates a retryable webhook delivery error.
func NewWebhookDeliveryFailedError(event string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookDeliveryFailed,
		Message:   "Webhook delivery failed",
		Details:   fmt.Sprintf("event: %s, error: %s", event, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewWebhookCircuitOpenError creates a non-retryable circuit breaker error.
// Callers treat this as a soft failure; the breaker re-probes on its own.
func NewWebhookCircuitOpenError(event string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWebhookCircuitOpen,
		Message:   "Webhook circuit breaker is open",
		Details:   fmt.Sprintf("event: %s", event),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateValuationLeadError creates a non-retryable duplicate lead error.
func NewDuplicateValuationLeadError(leadID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateValuationLead,
		Message:   "Valuation lead already exists for this email and calculator",
		Details:   fmt.Sprintf("existingLeadId: %s", leadID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFirmNotFoundError creates a non-retryable missing firm error.
func NewFirmNotFoundError(firmID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFirmNotFound,
		Message:   "Firm not found",
		Details:   fmt.Sprintf("firmId: %s", firmID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidAgreementTransitionError creates a non-retryable agreement state error.
func NewInvalidAgreementTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidAgreementTransition,
		Message:   "Agreement status transition not allowed",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthLookupFailedError creates a retryable auth admin API error.
func NewAuthLookupFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthLookupFailed,
		Message:   "Auth role lookup failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionFailedError creates a retryable extraction API error.
func NewExtractionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionFailed,
		Message:   "Criteria extraction API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionTimeoutError creates a retryable extraction timeout error.
func NewExtractionTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionTimeout,
		Message:   "Criteria extraction API timeout",
		Details:   "API call exceeded timeout threshold",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewExtractionInvalidOutputError creates a non-retryable extraction output error.
func NewExtractionInvalidOutputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExtractionInvalidOutput,
		Message:   "Extraction API returned output failing schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      "BUSINESS_RULE_VIOLATION",
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHENTICATION_ERROR",
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      "VALIDATION_ERROR",
		Message:   "Input validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewParseError creates a non-retryable job variable parse error.
func NewParseError(err error) *StandardError {
	return &StandardError{
		Code:      "PARSE_ERROR",
		Message:   "Failed to parse job variables",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthorizationError creates a non-retryable admin-privilege error.
// This is the hard-stop path for non-admin callers of admin-only operations.
func NewAuthorizationError(details string) *StandardError {
	return &StandardError{
		Code:      "AUTHORIZATION_ERROR",
		Message:   "Caller is not authorized for this operation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes (same as internal).
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeBuyerNotFound:                 "BUYER_NOT_FOUND",
	ErrCodeListingNotFound:               "LISTING_NOT_FOUND",
	ErrCodeScoreNotFound:                 "SCORE_NOT_FOUND",
	ErrCodeWeightConfigNotFound:          "WEIGHT_CONFIG_NOT_FOUND",
	ErrCodeWeightConfigInvalid:           "WEIGHT_CONFIG_INVALID",
	ErrCodeCriteriaInvalid:               "CRITERIA_INVALID",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:                  "QUERY_TIMEOUT",
	ErrCodeInvalidQueryType:              "INVALID_QUERY_TYPE",
	ErrCodeDatabaseInsertFailed:          "DATABASE_INSERT_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:             "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:                 "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:                 "INDEX_NOT_FOUND",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeWebhookDeliveryFailed:         "WEBHOOK_DELIVERY_FAILED",
	ErrCodeWebhookCircuitOpen:            "WEBHOOK_CIRCUIT_OPEN",
	ErrCodeDuplicateValuationLead:        "DUPLICATE_VALUATION_LEAD",
	ErrCodeFirmNotFound:                  "FIRM_NOT_FOUND",
	ErrCodeInvalidAgreementTransition:    "INVALID_AGREEMENT_TRANSITION",
	ErrCodeAuthLookupFailed:              "AUTH_LOOKUP_FAILED",
	ErrCodeExtractionFailed:              "EXTRACTION_FAILED",
	ErrCodeExtractionTimeout:             "EXTRACTION_TIMEOUT",
	ErrCodeExtractionInvalidOutput:       "EXTRACTION_INVALID_OUTPUT",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeWebhookDeliveryFailed,
		ErrCodeAuthLookupFailed,
		ErrCodeExtractionFailed:
		return 3 // Retryable technical errors

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeExtractionTimeout:
		return 2 // Partial retry for timeouts

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code) // Fallback
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BUYER") || strings.Contains(codeStr, "LISTING") ||
		strings.Contains(codeStr, "SCORE") || strings.Contains(codeStr, "WEIGHT"):
		return "SCORING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") ||
		strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION") || strings.Contains(codeStr, "WEBHOOK"):
		return "DELIVERY"
	case strings.Contains(codeStr, "VALUATION"):
		return "VALUATION"
	case strings.Contains(codeStr, "FIRM") || strings.Contains(codeStr, "AGREEMENT"):
		return "AGREEMENT"
	case strings.Contains(codeStr, "AUTH"):
		return "AUTH"
	case strings.Contains(codeStr, "EXTRACTION"):
		return "EXTRACTION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") ||
		strings.Contains(codeStr, "CRITERIA"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
