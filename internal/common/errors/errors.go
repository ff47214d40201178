// Package errors provides the structured error type shared by the registration
// API and the review workers, plus its mapping onto BPMN errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

// Registration workflow
const (
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeIdentityRequired            ErrorCode = "IDENTITY_REQUIRED"
	ErrCodeInvalidToken                ErrorCode = "INVALID_TOKEN"
	ErrCodeUploadRejected              ErrorCode = "UPLOAD_REJECTED"
	ErrCodeUploadFailed                ErrorCode = "UPLOAD_FAILED"
	ErrCodeSubmissionFailed            ErrorCode = "SUBMISSION_FAILED"
	ErrCodeSubmissionInProgress        ErrorCode = "SUBMISSION_IN_PROGRESS"
	ErrCodeDraftStoreFailed            ErrorCode = "DRAFT_STORE_FAILED"
)

// Storage and review process
const (
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed          ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDatabaseUpdateFailed          ErrorCode = "DATABASE_UPDATE_FAILED"
	ErrCodeDuplicateReference            ErrorCode = "DUPLICATE_REFERENCE_CODE"
	ErrCodeApplicationNotFound           ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeInvalidStatus                 ErrorCode = "INVALID_APPLICATION_STATUS"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexingFailed                ErrorCode = "INDEXING_FAILED"
	ErrCodeNotificationSendFailed        ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Generic
const (
	ErrCodeBusinessRule    ErrorCode = "BUSINESS_RULE_VIOLATION"
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeNotFound        ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeAuthentication  ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
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

// WithMetadata attaches a key/value pair and returns e.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err looking for a *StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is thrown to the Zeebe engine from a worker.
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

// ToErrorVariables returns the variables set on a failed or thrown job.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationValidationFailedError is returned when a draft fails a step.
func NewApplicationValidationFailedError(details string) *StandardError {
	return newError(ErrCodeApplicationValidationFailed, "Application validation failed", details, false)
}

func NewIdentityRequiredError() *StandardError {
	return newError(ErrCodeIdentityRequired, "Sign in to submit an application", "", false)
}

func NewInvalidTokenError(details string) *StandardError {
	return newError(ErrCodeInvalidToken, "Access token is not active", details, false)
}

// NewUploadRejectedError covers local precondition failures (size, type).
func NewUploadRejectedError(field, reason string) *StandardError {
	return newError(ErrCodeUploadRejected, reason, "field: "+field, false)
}

// NewUploadFailedError covers object store failures.
func NewUploadFailedError(field string, err error) *StandardError {
	return newError(ErrCodeUploadFailed, "File upload failed", fmt.Sprintf("field %s: %v", field, err), true)
}

func NewSubmissionFailedError(err error) *StandardError {
	return newError(ErrCodeSubmissionFailed, "Application could not be submitted", err.Error(), true)
}

func NewSubmissionInProgressError(sessionID string) *StandardError {
	return newError(ErrCodeSubmissionInProgress, "A submission for this registration is already in progress",
		"session: "+sessionID, false)
}

func NewDraftStoreFailedError(err error) *StandardError {
	return newError(ErrCodeDraftStoreFailed, "Draft could not be saved", err.Error(), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection failed", err.Error(), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Failed to insert record", err.Error(), true)
}

func NewDatabaseUpdateFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseUpdateFailed, "Failed to update record", err.Error(), true)
}

func NewDuplicateReferenceError(code string) *StandardError {
	return newError(ErrCodeDuplicateReference, "Reference code already issued", "code: "+code, true)
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found", "applicationId: "+applicationID, false)
}

func NewInvalidStatusError(status string) *StandardError {
	return newError(ErrCodeInvalidStatus, "Unknown application status", "status: "+status, false)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection failed", err.Error(), true)
}

func NewIndexingFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Failed to index document", fmt.Sprintf("index %s: %v", index, err), true)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Failed to send notification",
		fmt.Sprintf("channel %s: %v", channel, err), true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError(ErrCodeBusinessRule, message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthentication, "Authentication failed", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes onto the error codes caught by
// boundary events in the contestant-review process.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeApplicationNotFound:           "APPLICATION_NOT_FOUND",
	ErrCodeInvalidStatus:                 "INVALID_APPLICATION_STATUS",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseUpdateFailed:          "DATABASE_UPDATE_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeIndexingFailed:                "INDEXING_FAILED",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeExternalService:               "EXTERNAL_SERVICE_ERROR",
	ErrCodeTimeout:                       "TIMEOUT_ERROR",
}

// GetRetryCount returns how many times the engine should retry a job that
// failed with code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeDatabaseUpdateFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeIndexingFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3
	case ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the engine.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, ok := BPMNErrorMapping[stdErr.Code]
	if !ok {
		bpmnCode = string(stdErr.Code)
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

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	c := string(code)
	switch {
	case strings.Contains(c, "VALIDATION") || strings.Contains(c, "INVALID_APPLICATION"):
		return "VALIDATION"
	case strings.Contains(c, "IDENTITY") || strings.Contains(c, "TOKEN") || strings.Contains(c, "AUTHENTICATION"):
		return "AUTH"
	case strings.Contains(c, "UPLOAD"):
		return "STORAGE"
	case strings.Contains(c, "DATABASE") || strings.Contains(c, "REFERENCE") || strings.Contains(c, "SUBMISSION") || strings.Contains(c, "DRAFT"):
		return "DATABASE"
	case strings.Contains(c, "ELASTICSEARCH") || strings.Contains(c, "INDEX"):
		return "SEARCH"
	case strings.Contains(c, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(c, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(c, "EXTERNAL") || strings.Contains(c, "TIMEOUT"):
		return "EXTERNAL"
	default:
		return "UNKNOWN"
	}
}
