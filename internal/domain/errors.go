package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError defines errors that can be mapped to HTTP status codes.
type HTTPError interface {
	error
	StatusCode() int
}

// Domain error types implementing HTTPError interface
type (
	// NotFoundError indicates a resource was not found (or is hidden by deletion)
	NotFoundError struct {
		Message string
	}

	// ValidationError indicates invalid input
	ValidationError struct {
		Message string
	}

	// UnauthorizedError indicates authentication failure
	UnauthorizedError struct {
		Message string
	}

	// ForbiddenError indicates a failed permission check
	ForbiddenError struct {
		Message string
	}
)

func (e *NotFoundError) Error() string     { return e.Message }
func (e *ValidationError) Error() string   { return e.Message }
func (e *UnauthorizedError) Error() string { return e.Message }
func (e *ForbiddenError) Error() string    { return e.Message }

func (e *NotFoundError) StatusCode() int     { return http.StatusNotFound }
func (e *ValidationError) StatusCode() int   { return http.StatusBadRequest }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }
func (e *ForbiddenError) StatusCode() int    { return http.StatusForbidden }

func (e *NotFoundError) Is(target error) bool     { return target == ErrNotFound }
func (e *ValidationError) Is(target error) bool   { return target == ErrValidation }
func (e *UnauthorizedError) Is(target error) bool { return target == ErrUnauthorized }
func (e *ForbiddenError) Is(target error) bool    { return target == ErrForbidden }

// Sentinel errors - use with errors.Is()
var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrTransientState = errors.New("dataset not ready")
	ErrIngestion      = errors.New("ingestion failed")
)

// Forbidden builds a ForbiddenError for an action on a resource.
func Forbidden(action, kind, id string) error {
	return &ForbiddenError{Message: fmt.Sprintf("%s permission required on %s %s", action, kind, id)}
}

// ConflictError represents a resource conflict with details about the existing resource
type ConflictError struct {
	Message      string // Human-readable error message
	ResourceType string // Type of resource (library, folder, dataset)
	ResourceID   string // ID of the existing/conflicting resource
}

func (e *ConflictError) Error() string        { return e.Message }
func (e *ConflictError) StatusCode() int      { return http.StatusConflict }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// TransientStateError is returned when a dataset is read before it reached a
// terminal state. Callers are expected to poll again.
type TransientStateError struct {
	DatasetID string
	State     string
}

func (e *TransientStateError) Error() string {
	return fmt.Sprintf("dataset %s is still %s", e.DatasetID, e.State)
}
func (e *TransientStateError) StatusCode() int      { return http.StatusConflict }
func (e *TransientStateError) Is(target error) bool { return target == ErrTransientState }

// IngestionError carries the failure detail of a dataset that ended in the
// error state. It is terminal; nothing retries it automatically.
type IngestionError struct {
	DatasetID string
	Detail    string
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("dataset %s failed ingestion: %s", e.DatasetID, e.Detail)
}
func (e *IngestionError) StatusCode() int      { return http.StatusUnprocessableEntity }
func (e *IngestionError) Is(target error) bool { return target == ErrIngestion }
