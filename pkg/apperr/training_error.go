package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Auth errors
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeForbidden            = "FORBIDDEN"
	CodeAuthenticationFailed = "AUTHENTICATION_FAILED"

	// Validation errors
	CodeBadRequest          = "BAD_REQUEST"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeMissingField        = "MISSING_FIELD"
	CodeMappingPrecondition = "MAPPING_PRECONDITION"

	// Resource errors
	CodeNotFound = "NOT_FOUND"

	// External errors
	CodeDirectoryLookupFailed  = "DIRECTORY_LOOKUP_FAILED"
	CodeBackendTransportFailed = "BACKEND_TRANSPORT_FAILED"
	CodeDatabaseError          = "DATABASE_ERROR"
	CodeExternalError          = "EXTERNAL_ERROR"

	// Internal errors
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

// Is matches another AppError by code so sentinel comparisons work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

func Unauthorized(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidToken(message string) *AppError {
	return New(CodeInvalidToken, message, http.StatusUnauthorized)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message, http.StatusBadRequest)
}

func InvalidInput(field, reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("invalid input for '%s': %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func MissingField(field string) *AppError {
	return &AppError{
		Code:    CodeMissingField,
		Message: fmt.Sprintf("missing required field: %s", field),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

// MappingPrecondition reports input that cannot be translated into a calendar event.
func MappingPrecondition(message string) *AppError {
	return New(CodeMappingPrecondition, message, http.StatusUnprocessableEntity)
}

// DirectoryLookupFailed reports a failed directory read; the operation must not continue.
func DirectoryLookupFailed(userID string, err error) *AppError {
	return &AppError{
		Code:    CodeDirectoryLookupFailed,
		Message: "directory lookup failed",
		Status:  http.StatusBadGateway,
		Details: map[string]any{"user_id": userID},
		Err:     err,
	}
}

// AuthenticationFailed reports a token that could not be obtained or was rejected.
func AuthenticationFailed(flow string, err error) *AppError {
	return &AppError{
		Code:    CodeAuthenticationFailed,
		Message: fmt.Sprintf("authentication failed: %s", flow),
		Status:  http.StatusUnauthorized,
		Details: map[string]any{"flow": flow},
		Err:     err,
	}
}

// BackendTransportFailed reports a calendar backend call that did not succeed.
func BackendTransportFailed(backend, operation string, err error) *AppError {
	return &AppError{
		Code:    CodeBackendTransportFailed,
		Message: fmt.Sprintf("%s %s failed", backend, operation),
		Status:  http.StatusBadGateway,
		Details: map[string]any{"backend": backend, "operation": operation},
		Err:     err,
	}
}

// BackendRejected reports a backend that answered but refused this one request,
// such as a missing item or a malformed payload. It keeps the transport code.
func BackendRejected(backend, operation string, err error) *AppError {
	return BackendTransportFailed(backend, operation, err).WithDetail(detailRejected, true)
}

// IsBackendRejection reports whether err was built by BackendRejected.
func IsBackendRejection(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	rejected, _ := appErr.Details[detailRejected].(bool)
	return rejected
}

const detailRejected = "rejected"

func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: fmt.Sprintf("database error: %s", operation),
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

func InternalWithError(err error) *AppError {
	return Wrap(err, CodeInternalError, "internal server error", http.StatusInternalServerError)
}

func ConfigError(message string) *AppError {
	return New(CodeConfigError, message, http.StatusInternalServerError)
}

// Sentinels for errors.Is checks; match on Code only.
var (
	ErrDirectoryLookup     = &AppError{Code: CodeDirectoryLookupFailed}
	ErrAuthentication      = &AppError{Code: CodeAuthenticationFailed}
	ErrBackendTransport    = &AppError{Code: CodeBackendTransportFailed}
	ErrMappingPrecondition = &AppError{Code: CodeMappingPrecondition}
)

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

// CodeOf returns the AppError code carried by err, or CodeInternalError.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return AsAppError(err).Code
}
