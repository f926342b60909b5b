package api

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the "code" field of error responses.
const (
	ErrInvalidBody         = "invalid_body"
	ErrEmptyAudio          = "empty_audio"
	ErrAudioTooShort       = "audio_too_short"
	ErrUnsupportedEncoding = "unsupported_encoding"
	ErrPayloadTooLarge     = "payload_too_large"
	ErrAllProvidersFailed  = "all_providers_failed"
	ErrUnauthorized        = "unauthorized"
	ErrRateLimited         = "rate_limited"
	ErrInternal            = "internal_error"
)

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Success   bool     `json:"success"`
	Error     string   `json:"error"`
	Code      string   `json:"code,omitempty"`
	Message   string   `json:"message,omitempty"`
	Providers []string `json:"providers,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteErrorWithCode writes a JSON error response with a machine-readable code.
func WriteErrorWithCode(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
