// Package handlers provides HTTP request handlers for the session API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in API error responses.
const (
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeSessionCompleted = "SESSION_COMPLETED"
	CodeSessionExpired   = "SESSION_EXPIRED"
	CodeSessionCancelled = "SESSION_CANCELLED"
	CodeTooEarly         = "TOO_EARLY"
	CodeTooLate          = "TOO_LATE"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeLinkAlreadyUsed  = "LINK_ALREADY_USED"
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidState     = "INVALID_STATE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// ErrorBody is the error payload nested under "error".
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the envelope for all API error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes a structured JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// WriteErrorDetails writes a structured JSON error response with extra fields.
func WriteErrorDetails(w http.ResponseWriter, status int, code, message string, details any) {
	WriteJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message, Details: details}})
}
