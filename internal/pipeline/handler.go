package pipeline

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/clinsight/ade-signal-pipeline/pkg/errors"
	"github.com/clinsight/ade-signal-pipeline/pkg/logger"
)

// Handler serves the validator service's HTTP API over the most recent
// pipeline results.
type Handler struct {
	mu     sync.RWMutex
	latest *Result
	runs   int
	logger *slog.Logger
}

// NewHandler creates an empty Handler; Record publishes results to it.
func NewHandler() *Handler {
	return &Handler{logger: slog.Default().With("component", "api")}
}

// Record stores the most recent run result for serving.
func (h *Handler) Record(result *Result) {
	h.mu.Lock()
	h.latest = result
	h.runs++
	h.mu.Unlock()
}

// Latest handles GET /api/v1/runs/latest, returning the full result of the
// most recent run.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	result := h.latest
	h.mu.RUnlock()

	if result == nil {
		writeError(w, errors.New(errors.ErrRunNotFound, http.StatusNotFound, "no runs completed yet"))
		return
	}
	logger.FromContext(r.Context()).Debug("serving latest run", "run_id", result.RunID)
	writeJSON(w, result)
}

// Summary handles GET /api/v1/summary, returning only the most recent run's
// summary block plus the total number of runs served.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	result := h.latest
	runs := h.runs
	h.mu.RUnlock()

	if result == nil {
		writeError(w, errors.New(errors.ErrRunNotFound, http.StatusNotFound, "no runs completed yet"))
		return
	}
	writeJSON(w, struct {
		RunID   string  `json:"run_id"`
		Runs    int     `json:"runs"`
		Summary Summary `json:"summary"`
	}{
		RunID:   result.RunID,
		Runs:    runs,
		Summary: result.Summary,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatusCode(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
