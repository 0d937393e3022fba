package utils

import (
	"encoding/json"
	"net/http"
)

// APIError is a machine-readable error returned to SDK clients. The
// Code field lets clients distinguish retryable from non-retryable
// conditions without parsing the message.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// NewAPIError creates an APIError with the given code, message and HTTP status.
func NewAPIError(code, message string, statusCode int) *APIError {
	return &APIError{Code: code, Message: message, StatusCode: statusCode}
}

// WithDetails returns a copy of the error carrying extra context for
// the response body.
func (e *APIError) WithDetails(details any) *APIError {
	clone := *e
	clone.Details = details
	return &clone
}

type errorEnvelope struct {
	Error any `json:"error"`
}

// RespondWithAPIError writes an {"error": {code, message}} body with the
// error's status code.
func RespondWithAPIError(w http.ResponseWriter, apiErr *APIError) {
	RespondWithJSON(w, apiErr.StatusCode, errorEnvelope{Error: apiErr})
}

// RespondWithError sends a coded error response
func RespondWithError(w http.ResponseWriter, code int, errCode, message string) {
	RespondWithAPIError(w, NewAPIError(errCode, message, code))
}

// RespondWithJSON sends a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "Failed to encode response: "+err.Error(), http.StatusInternalServerError)
		return err
	}
	return nil
}
