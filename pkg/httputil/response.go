// Package httputil renders the JSON response envelope shared by every
// endpoint: a data payload or a coded error, with the request correlation ID
// echoed back on failures.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	"github.com/hoffnungslabor/mediable/pkg/logger"
	"github.com/hoffnungslabor/mediable/pkg/validator"
)

// Response is the standard JSON envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of the envelope.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v with the given status. An encode failure after the
// header went out is unrecoverable, so it is ignored.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sentinelClass maps an error sentinel to its wire representation. An empty
// message means the error text itself is safe to expose.
type sentinelClass struct {
	sentinel error
	code     string
	status   int
	message  string
}

var sentinelClasses = []sentinelClass{
	{apperrors.ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{apperrors.ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict, "resource already exists"},
	{apperrors.ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""},
	{apperrors.ErrConflict, "CONFLICT", http.StatusConflict, ""},
	{apperrors.ErrUnsupported, "UNSUPPORTED_OPERATION", http.StatusNotImplemented, ""},
	{apperrors.ErrStoreUnavailable, "STORE_UNAVAILABLE", http.StatusServiceUnavailable, "storage temporarily unavailable"},
}

// WriteError renders err as the standard error envelope. AppError values keep
// their own code, message, and status; bare sentinels get the classes above;
// anything else becomes an opaque 500 and is logged with the request-scoped
// logger when the RequestLogger middleware is mounted, else with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	requestID := logger.CorrelationIDFromContext(r.Context())

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		WriteJSON(w, appErr.Status, Response{
			Error: &ErrorResponse{Code: appErr.Code, Message: appErr.Message, RequestID: requestID},
		})
		return
	}

	status := apperrors.HTTPStatus(err)
	code := "INTERNAL_ERROR"
	message := "an internal error occurred"
	for _, c := range sentinelClasses {
		if errors.Is(err, c.sentinel) {
			code, status, message = c.code, c.status, c.message
			if message == "" {
				message = err.Error()
			}
			break
		}
	}

	if status == http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() {
			l = fallback
		}
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{
		Error: &ErrorResponse{Code: code, Message: message, RequestID: requestID},
	})
}

// WriteValidationError renders request validation failures with field-level
// detail when err is a validator.ValidationError, and as plain INVALID_INPUT
// otherwise. Always 400.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()},
	})
}
