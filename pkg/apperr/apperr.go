package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Auth errors
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTokenRevoked = "TOKEN_REVOKED"
	CodeOAuthFailed  = "OAUTH_FAILED"

	// Queue errors
	CodeAlreadyQueued = "ALREADY_QUEUED"
	CodeQueueError    = "QUEUE_ERROR"

	// Pipeline errors
	CodeExtractionFailed = "EXTRACTION_FAILED"

	// External errors
	CodeStoreError    = "STORE_ERROR"
	CodeExternalError = "EXTERNAL_ERROR"

	// Validation / internal errors
	CodeBadRequest    = "BAD_REQUEST"
	CodeInternalError = "INTERNAL_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// Auth errors
func TokenRevoked(provider string) *AppError {
	return &AppError{
		Code:    CodeTokenRevoked,
		Message: fmt.Sprintf("refresh token revoked for %s, re-authorization required", provider),
		Status:  http.StatusUnauthorized,
		Details: map[string]any{"provider": provider},
	}
}

func OAuthFailed(provider string, err error) *AppError {
	return &AppError{
		Code:    CodeOAuthFailed,
		Message: fmt.Sprintf("OAuth failed for %s", provider),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"provider": provider},
		Err:     err,
	}
}

// Queue errors
func AlreadyQueued(runType string) *AppError {
	return &AppError{
		Code:    CodeAlreadyQueued,
		Message: fmt.Sprintf("%s is already in queue or running", runType),
		Status:  http.StatusConflict,
		Details: map[string]any{"run_type": runType},
	}
}

func QueueError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeQueueError,
		Message: fmt.Sprintf("queue error: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Pipeline errors
func ExtractionFailed(messageID string, err error) *AppError {
	return &AppError{
		Code:    CodeExtractionFailed,
		Message: fmt.Sprintf("failed to extract postings from message %s", messageID),
		Status:  http.StatusUnprocessableEntity,
		Details: map[string]any{"message_id": messageID},
		Err:     err,
	}
}

// External errors
func StoreError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeStoreError,
		Message: fmt.Sprintf("store error: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ExternalError(service string, err error) *AppError {
	return &AppError{
		Code:    CodeExternalError,
		Message: fmt.Sprintf("external service error: %s", service),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"service": service},
		Err:     err,
	}
}

// Validation / internal errors
func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// Helper functions
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
