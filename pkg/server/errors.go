package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/wouteroostervld/atlas/pkg/search"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusFor maps engine errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, search.ErrRepoNotFound), errors.Is(err, search.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, search.ErrInvalidPath), errors.Is(err, search.ErrEmptyQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "error", err, "request_id", RequestID(r.Context()))
	}
	writeError(w, status, err.Error())
}
