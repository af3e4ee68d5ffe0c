package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/efreitasn/lobster/internal/domain"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// timeFormat renders timestamps in UTC with millisecond precision.
const timeFormat = "2006-01-02T15:04:05.000Z"

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// ParseJSON decodes the request body as JSON into v. Unknown fields and
// bodies over maxBodyBytes are rejected.
func ParseJSON(w http.ResponseWriter, r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("Request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}

// errorStatus maps each domain sentinel to its HTTP status. The sentinel's
// text doubles as the error code.
var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrSymbolMismatch, http.StatusBadRequest},
	{domain.ErrSymbolNotFound, http.StatusNotFound},
	{domain.ErrOrderNotFound, http.StatusNotFound},
	{domain.ErrWebhookNotFound, http.StatusNotFound},
	{domain.ErrSymbolAlreadyExists, http.StatusConflict},
	{domain.ErrDuplicateOrder, http.StatusConflict},
	{domain.ErrNoLiquidity, http.StatusConflict},
	{domain.ErrInsufficientLiquidity, http.StatusConflict},
}

// writeServiceError maps service and domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			WriteError(w, e.status, e.err.Error(), err.Error())
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
}

// optionalDollars converts a cents value to dollars, mapping the 0
// "no price" sentinel to nil.
func optionalDollars(cents int64) *float64 {
	if cents == 0 {
		return nil
	}
	v := domain.CentsToDollars(cents)
	return &v
}

// dollarsPtr converts an optional cents value to dollars.
func dollarsPtr(cents *int64) *float64 {
	if cents == nil {
		return nil
	}
	v := domain.CentsToDollars(*cents)
	return &v
}
