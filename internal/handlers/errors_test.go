package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"auth", apperr.Unauthenticated(), http.StatusUnauthorized, "AUTHENTICATION_ERROR", apperr.AuthMessage},
		{"validation", apperr.Validation("limit", "must be between 1 and 500"), http.StatusBadRequest, "VALIDATION_ERROR", "limit: must be between 1 and 500"},
		{"not found", apperr.NotFound("agent not found"), http.StatusNotFound, "NOT_FOUND", "agent not found"},
		{"conflict", apperr.Conflict("inbox item already decided"), http.StatusConflict, "CONFLICT", "inbox item already decided"},
		{"unavailable", apperr.Unavailable(errors.New("dial tcp: refused")), http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "storage unavailable, retry later"},
		{"internal", errors.New("pq: secret detail"), http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := logging.ContextWithRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "req-1")
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			WriteAppError(rec, req, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.message, body.Message)
			assert.Equal(t, "req-1", body.RequestID)
			assert.NotContains(t, rec.Body.String(), "refused")
			assert.NotContains(t, rec.Body.String(), "secret detail")
		})
	}
}

func TestWriteAppError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, httptest.NewRequest(http.MethodPost, "/", nil), apperr.Validation("decision", "must be approved or rejected"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "decision", body.Details["field"])
	assert.Equal(t, "must be approved or rejected", body.Details["message"])
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Cost float64 `json:"cost"`
	}

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"empty", "", "body"},
		{"malformed", "{", "body"},
		{"wrong type", `{"cost":"lots"}`, "cost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(req, &v)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}

	t.Run("too large", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cost": 1.0000000000}`))
		req.Body = http.MaxBytesReader(rec, req.Body, 4)
		err := decodeJSON(req, &v)
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "request body too large", appErr.Message)
	})

	t.Run("ok", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cost":2.5}`))
		require.NoError(t, decodeJSON(req, &v))
		assert.Equal(t, 2.5, v.Cost)
	})
}
