// Package httputil maps domain errors onto HTTP responses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "beacon/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError renders err as a JSON error response. Server-side failures omit
// the description so internals never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	status, code := statusFor(dErrors.CodeOf(err))

	body := errorBody{Error: code}
	if status < http.StatusInternalServerError {
		body.Description = err.Error()
		var dErr *dErrors.Error
		if errors.As(err, &dErr) {
			body.Description = dErr.Message
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteJSON renders v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code dErrors.Code) (int, string) {
	switch code {
	case dErrors.CodeValidation:
		return http.StatusBadRequest, "validation_failed"
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest, "bad_request"
	case dErrors.CodeNotFound:
		return http.StatusNotFound, "not_found"
	case dErrors.CodeConflict:
		return http.StatusConflict, "conflict"
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case dErrors.CodeForbidden:
		return http.StatusForbidden, "forbidden"
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
