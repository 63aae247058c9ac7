package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/jarvis/MissionControl/api/internal/apperr"
	"github.com/jarvis/MissionControl/api/internal/auth"
	"github.com/jarvis/MissionControl/api/internal/logging"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message,omitempty"`
	Code      string                 `json:"code,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// StatusForKind maps an error kind to its HTTP status
func StatusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuthentication:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if statusCode == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(statusCode)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Code:      code,
		Details:   details,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

// WriteAppError writes err using its kind. Internal causes are never echoed.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("internal server error", err)
	}

	message := appErr.Message
	var details map[string]interface{}
	switch appErr.Kind {
	case apperr.KindInternal:
		message = "internal server error"
	case apperr.KindUnavailable:
		message = "storage unavailable, retry later"
	case apperr.KindValidation:
		if appErr.Field != "" {
			details = map[string]interface{}{
				"field":   appErr.Field,
				"message": appErr.Message,
			}
			message = appErr.Error()
		}
	}

	WriteError(w, r, StatusForKind(appErr.Kind), appErr.Kind.String(), message, details)
}

// NewErrorWriter returns an error writer that logs server-side failures
// before rendering them.
func NewErrorWriter(logger *logging.Logger) auth.ErrorWriter {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		switch apperr.KindOf(err) {
		case apperr.KindInternal:
			logger.FromContext(r.Context()).Error("Request failed", err, map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			})
		case apperr.KindUnavailable:
			logger.FromContext(r.Context()).Warn("Storage unavailable", map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
				"error":  err.Error(),
			})
		}
		WriteAppError(w, r, err)
	}
}

// WriteSuccess writes a success response
func WriteSuccess(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteNoContent writes an empty 204
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON reads a required JSON body into v
func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return apperr.Validation("body", "request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}

	var (
		maxErr  *http.MaxBytesError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return apperr.Validation("body", "request body is required")
	case errors.As(err, &maxErr):
		return apperr.Validation("body", "request body too large")
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return apperr.Validation(typeErr.Field, "has the wrong type")
	default:
		return apperr.Validation("body", "must be valid JSON")
	}
}
