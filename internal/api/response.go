package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/erazemk/galerija/internal/catalog"
)

// maxJSONBody bounds request bodies decoded by decodeJSON.
const maxJSONBody = 1 << 20

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(target)
}

type errorBody struct {
	Error  string   `json:"error"`
	Field  string   `json:"field,omitempty"`
	Failed []string `json:"failed,omitempty"`
}

// serviceError maps catalog errors to HTTP responses.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *catalog.ValidationError
	var berr *catalog.BatchError

	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Field: verr.Field})
	case errors.As(err, &berr):
		jsonResponse(w, http.StatusConflict, errorBody{Error: berr.Error(), Failed: berr.Failed})
	case errors.Is(err, catalog.ErrNotFound):
		jsonError(w, http.StatusNotFound, "painting not found")
	case errors.Is(err, catalog.ErrUnauthorized):
		jsonError(w, http.StatusForbidden, "insufficient permissions")
	default:
		slog.ErrorContext(r.Context(), "painting request failed", "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
