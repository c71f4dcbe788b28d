package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/furrow/internal/apperr"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 10 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error   string `json:"error" validate:"required"`
	Details string `json:"details,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps err to its status and caller-facing message. Unexpected
// errors are logged with attrs and reported generically.
func writeError(w http.ResponseWriter, err error, logMsg string, attrs ...any) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(logMsg, append(attrs, slog.String("error", err.Error()))...)
	}
	writeJSON(w, status, errResponse{Error: apperr.Message(err), Details: apperr.Details(err)})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Invalid("request body too large")
		}
		return apperr.Invalid("invalid JSON body")
	}
	return nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody("Not found"))
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody("Method not allowed"))
}
