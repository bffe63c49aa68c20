package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrStoreUnavailable is matched by every error produced when the document
// store cannot be reached or rejects a request for infrastructure reasons.
var ErrStoreUnavailable = errors.New("store unavailable")

// FieldError describes a single violated field in a draft or patch.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every violated field, not only the first one.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError from the given field errors.
func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Add records a violated field.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns nil when no field was recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// UnauthorizedError is returned when the policy check denies an action.
type UnauthorizedError struct {
	Principal string
	Action    string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("principal %q is not authorized to %s", e.Principal, e.Action)
}

// IllegalTransitionError is returned when a status change is not allowed
// from the resource's current status.
type IllegalTransitionError struct {
	Kind string
	ID   string
	From string
	To   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Kind, e.ID, e.From, e.To)
}

// NotFoundError is returned when an id does not resolve in a collection.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AlreadyExitedError is returned when closing a gate log that is already closed.
type AlreadyExitedError struct {
	LogID     string
	VehicleNo string
	ExitTime  time.Time
}

func (e *AlreadyExitedError) Error() string {
	return fmt.Sprintf("vehicle %s (log %s) already exited at %s", e.VehicleNo, e.LogID, e.ExitTime.Format(time.RFC3339))
}

// UploadError wraps a failed media upload.
type UploadError struct {
	Path  string
	Index int
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of media #%d to %s failed: %v", e.Index, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ConflictError is returned when a write collides with existing state.
type ConflictError struct {
	Kind   string
	ID     string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s conflict: %s", e.Kind, e.ID, e.Reason)
}

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.op, ErrStoreUnavailable, e.err)
}

func (e *storeError) Unwrap() []error { return []error{ErrStoreUnavailable, e.err} }

// StoreUnavailable wraps an infrastructure failure of operation op.
func StoreUnavailable(op string, err error) error {
	return &storeError{op: op, err: err}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Code    string       `json:"code"`
	Details []FieldError `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Details    []FieldError
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Details: e.Details,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var (
		validationErr *ValidationError
		unauthorized  *UnauthorizedError
		illegal       *IllegalTransitionError
		notFound      *NotFoundError
		exited        *AlreadyExitedError
		upload        *UploadError
		conflict      *ConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		httpErr := NewHTTPError(http.StatusBadRequest, validationErr.Error(), "VALIDATION_ERROR")
		httpErr.Details = validationErr.Fields
		return httpErr
	case errors.As(err, &unauthorized):
		return NewHTTPError(http.StatusForbidden, err.Error(), "UNAUTHORIZED")
	case errors.As(err, &illegal):
		return NewHTTPError(http.StatusConflict, err.Error(), "ILLEGAL_TRANSITION")
	case errors.As(err, &notFound):
		return NewHTTPError(http.StatusNotFound, err.Error(), "NOT_FOUND")
	case errors.As(err, &exited):
		return NewHTTPError(http.StatusConflict, err.Error(), "ALREADY_EXITED")
	case errors.As(err, &upload):
		return NewHTTPError(http.StatusBadGateway, err.Error(), "UPLOAD_FAILED")
	case errors.As(err, &conflict):
		return NewHTTPError(http.StatusConflict, err.Error(), "CONFLICT")
	case errors.Is(err, ErrStoreUnavailable):
		return NewHTTPError(http.StatusServiceUnavailable, "store temporarily unavailable", "STORE_UNAVAILABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
