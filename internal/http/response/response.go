// Package response provides standardized HTTP response formatting and error handling utilities.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fishdan-plugins/jsonmaker/internal/domain"
	domainerrors "github.com/fishdan-plugins/jsonmaker/internal/errors"
	"github.com/fishdan-plugins/jsonmaker/internal/store"
)

// Envelope is the JSON body of an error response outside the huma API.
type Envelope struct {
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Success bool   `json:"success"`
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, message string, logger *slog.Logger) {
	write(w, status, Envelope{Error: message}, logger)
}

// TooManyRequests writes a 429 Too Many Requests response.
func TooManyRequests(w http.ResponseWriter, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, "rate limit exceeded", logger)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain and store errors are mapped to their HTTP codes, unknown errors become 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		write(w, domainErr.HTTPStatus(), Envelope{
			Error: domainErr.Message,
			Code:  string(domainErr.Code),
			Data:  domainErr.Details,
		}, logger)
		return
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		Error(w, storeErr.HTTPCode(), storeErr.Message, logger)
		return
	}

	// Unknown error = 500
	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	Error(w, http.StatusInternalServerError, "internal server error", logger)
}

// Pretty writes v without an envelope in the public document format.
func Pretty(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	body, err := domain.MarshalPretty(v)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON document", "error", err)
		}
		Error(w, http.StatusInternalServerError, "internal server error", logger)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// PublicNotFound writes the fixed body public readers get for a missing node.
func PublicNotFound(w http.ResponseWriter, logger *slog.Logger) {
	Pretty(w, http.StatusNotFound, map[string]string{"error": "Node not found"}, logger)
}

func write(w http.ResponseWriter, status int, envelope Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		if logger != nil {
			logger.Error("Failed to encode JSON response", "error", err)
		}
	}
}
