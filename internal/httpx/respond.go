package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/pos-terminal/internal/apperr"
	"github.com/rs/zerolog/hlog"
	"io"
	"net/http"
	"strconv"
)

type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError is the single place domain errors become HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		se *apperr.StockShortageError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &se):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{Message: err.Error()})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal server error"})
	}
}

// decodeJSON reads exactly one JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	if dec.More() {
		return apperr.Validation("invalid request body: trailing data")
	}
	return nil
}

func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s id %q", what, raw)
	}
	return id, nil
}

func message(format string, args ...any) map[string]any {
	return map[string]any{"message": fmt.Sprintf(format, args...)}
}
