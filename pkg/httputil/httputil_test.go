package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hoffnungslabor/mediable/pkg/errors"
	"github.com/hoffnungslabor/mediable/pkg/logger"
	"github.com/hoffnungslabor/mediable/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	t.Run("data payload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteJSON(rec, http.StatusOK, Response{Data: map[string]string{"id": "m-1"}})

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		resp := decodeEnvelope(t, rec)
		assert.NotNil(t, resp.Data)
		assert.Nil(t, resp.Error)
	})

	t.Run("error payload", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteJSON(rec, http.StatusBadRequest, Response{
			Error: &ErrorResponse{Code: "INVALID", Message: "bad input"},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID", resp.Error.Code)
		assert.Equal(t, "bad input", resp.Error.Message)
	})

	t.Run("status passes through", func(t *testing.T) {
		for _, code := range []int{http.StatusCreated, http.StatusNotFound, http.StatusTeapot} {
			rec := httptest.NewRecorder()
			WriteJSON(rec, code, Response{})
			assert.Equal(t, code, rec.Code)
		}
	})
}

// The envelope omits whichever half is unused, so clients never see
// "data": null next to an error.
func TestResponse_OmitsEmptyHalves(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Response{Data: "ok"})

	var raw map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.NotContains(t, raw, "error")

	rec = httptest.NewRecorder()
	WriteJSON(rec, http.StatusBadRequest, Response{Error: &ErrorResponse{Code: "ERR", Message: "msg"}})

	raw = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.NotContains(t, raw, "data")
}

func TestWriteError_SentinelMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string // "" means any
	}{
		{"not found", apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "resource not found"},
		{"already exists", apperrors.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "resource already exists"},
		{"invalid input", apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", ""},
		{"unsupported", apperrors.ErrUnsupported, http.StatusNotImplemented, "UNSUPPORTED_OPERATION", ""},
		{"store unavailable", apperrors.ErrStoreUnavailable, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "storage temporarily unavailable"},
		{
			name: "wrapped conflict keeps detail",
			err:  fmt.Errorf("media m-1 belongs to host user:7: %w", apperrors.ErrConflict),

			wantStatus:  http.StatusConflict,
			wantCode:    "CONFLICT",
			wantMessage: "media m-1 belongs to host user:7: conflict",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/media/m-1", nil)

			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeEnvelope(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Error.Message)
			}
		})
	}
}

func TestWriteError_AppErrorKeepsOwnShape(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/abc-123", nil)

	WriteError(rec, req, apperrors.NotFound("media", "abc-123"), testLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "abc-123")
}

func TestWriteError_UnknownErrorIsOpaque500(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/media/m-1", nil)

	WriteError(rec, req, fmt.Errorf("pgx: unexpected EOF mid-query"), testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "pgx", "internal detail must not leak")
}

func TestWriteError_RequestID(t *testing.T) {
	t.Run("echoed from correlation context", func(t *testing.T) {
		ctx := logger.WithCorrelationID(context.Background(), "corr-123")
		req := httptest.NewRequest(http.MethodGet, "/api/v1/media/m-1", nil).WithContext(ctx)

		for _, err := range []error{apperrors.ErrNotFound, apperrors.NotFound("media", "m-1")} {
			rec := httptest.NewRecorder()
			WriteError(rec, req, err, testLogger())

			resp := decodeEnvelope(t, rec)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "corr-123", resp.Error.RequestID)
		}
	})

	t.Run("omitted without correlation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/media/m-1", nil)

		WriteError(rec, req, apperrors.ErrNotFound, testLogger())

		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
		var errObj map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw["error"], &errObj))
		assert.NotContains(t, errObj, "request_id")
	})
}

func TestWriteValidationError(t *testing.T) {
	t.Run("field detail", func(t *testing.T) {
		type attachBody struct {
			Tags []string `json:"tags" validate:"required,min=1"`
		}
		valErr := validator.Validate(&attachBody{})
		require.Error(t, valErr)

		rec := httptest.NewRecorder()
		WriteValidationError(rec, valErr)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Contains(t, resp.Error.Fields, "Tags")
	})

	t.Run("plain error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteValidationError(rec, fmt.Errorf("decode request body: unexpected EOF"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decodeEnvelope(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	})
}
