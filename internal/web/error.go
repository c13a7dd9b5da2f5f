package web

import (
	"encoding/json"
	"net/http"

	"github.com/conorfennell/recall/internal/domain"
	"github.com/conorfennell/recall/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.From(r.Context())

	switch {
	case domain.IsNotFound(err):
		logger.Warn("not found", logging.ErrAttr(err))
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: err.Error()})

	case domain.IsValidation(err):
		logger.Warn("bad request", logging.ErrAttr(err))
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: err.Error()})

	default:
		logger.Error("internal error", logging.ErrAttr(err))
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(r.Context()).Warn("failed to write response", logging.ErrAttr(err))
	}
}
