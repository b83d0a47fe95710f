package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeFieldErrors(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  "validation_error",
		Fields: fields,
	})
}

// writeInternalError logs the real cause server-side and returns an opaque
// 500 so backing-store details never leak to callers.
func writeInternalError(w http.ResponseWriter, log *zerolog.Logger, err error) {
	log.Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "an internal error occurred")
}
