package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hackgods/salon-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string, retryable bool) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details, Retryable: retryable})
}

var statusByCode = map[appointment.Code]int{
	appointment.CodeConflict:         http.StatusConflict,
	appointment.CodeInvalidState:     http.StatusConflict,
	appointment.CodeDuplicateRequest: http.StatusConflict,
	appointment.CodeNotFound:         http.StatusNotFound,
	appointment.CodeUnauthorized:     http.StatusForbidden,
	appointment.CodeValidation:       http.StatusBadRequest,
}

// writeServiceError maps structured service errors to HTTP; anything else is a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	if e, ok := appointment.AsError(err); ok {
		status, known := statusByCode[e.Code]
		if !known {
			status = http.StatusInternalServerError
		}
		writeError(w, status, string(e.Code), e.Message, e.Retryable)
		return
	}

	logger.ErrorContext(r.Context(), "request failed",
		"path", r.URL.Path,
		"request_id", GetRequestID(r.Context()),
		"err", err,
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error", false)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error(), false)
		return false
	}
	return true
}
