// Package errors defines the error taxonomy shared by the association layer,
// the repositories, and the HTTP surface: sentinel errors for errors.Is
// checks, and AppError for errors that already know their wire form.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels. Lower layers wrap these into their error chains; the HTTP layer
// maps them to status codes without knowing who raised them.
var (
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")
	ErrUnsupported      = errors.New("operation not supported")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// AppError carries a response code, a client-safe message, and an HTTP
// status alongside the underlying cause.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource, 404.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists reports a uniqueness violation, 409. Field names the unique
// column, e.g. the storage location of a media record.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput reports a request the caller can fix, 400.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// Conflict reports a state conflict that is not a duplicate, 409. Attaching
// media owned by a different host lands here.
func Conflict(message string) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Message: message,
		Status:  http.StatusConflict,
		Err:     ErrConflict,
	}
}

// Unsupported reports an operation the configured store cannot express, 501.
// These fail loudly and never partially execute.
func Unsupported(operation string) *AppError {
	return &AppError{
		Code:    "UNSUPPORTED_OPERATION",
		Message: fmt.Sprintf("operation %q is not supported by the configured store", operation),
		Status:  http.StatusNotImplemented,
		Err:     ErrUnsupported,
	}
}

// StoreUnavailable reports an unreachable backing store, 503.
func StoreUnavailable(err error) *AppError {
	return &AppError{
		Code:    "STORE_UNAVAILABLE",
		Message: "backing store unavailable",
		Status:  http.StatusServiceUnavailable,
		Err:     fmt.Errorf("%w: %w", ErrStoreUnavailable, err),
	}
}

// HTTPStatus resolves err to a status code: an AppError's own status, a
// sentinel's mapped status, 500 for everything else.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
