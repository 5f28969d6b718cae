package http

import (
	"encoding/json"
	"net/http"

	applog "ledger/internal/log"
)

const (
	msgMissingFields     = "All fields are required"
	msgInvalidBody       = "Invalid request body"
	msgAmountOutOfRange  = "Amount out of range"
	msgInvalidID         = "Invalid transaction ID"
	msgNotFound          = "Transaction not found"
	msgDeleted           = "Transaction deleted successfully"
	msgInternal          = "Internal server error"
	msgRateLimited       = "Rate limit exceeded. Please try again later."
	welcomeMessage       = "Welcome to the transactions ledger API"
	maxRequestBodyBytes  = 1 << 20
	contentTypeJSON      = "application/json"
	contentTypePlainUTF8 = "text/plain; charset=utf-8"
)

type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON encodes v as the response body. Encoding errors after the
// header is sent can only be logged.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Failed to encode response",
			applog.FieldError, err,
			applog.FieldStatusCode, status)
	}
}

func writeMessage(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, messageResponse{Message: message})
}

// writeServerError logs the underlying cause and answers with a generic 500.
func writeServerError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		applog.NewFields().
			WithOperation(operation).
			WithError(err).
			ToSlice()...)
	writeMessage(w, r, http.StatusInternalServerError, msgInternal)
}
