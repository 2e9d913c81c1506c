package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/certwatch/core/logger"
	"github.com/dmitrymomot/certwatch/core/scheduler"
)

// StatusReporter reports the current on-disk certificate state.
type StatusReporter interface {
	Status() scheduler.Status
}

// Renewer runs an operator-triggered forced renewal cycle.
type Renewer interface {
	ForceRenew(ctx context.Context) (scheduler.Outcome, error)
}

// Handler serves the operational endpoints.
type Handler struct {
	status StatusReporter
	renew  Renewer
	log    *slog.Logger
}

// NewHandler builds the ops handler. The scheduler satisfies both interfaces.
func NewHandler(status StatusReporter, renew Renewer, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		status: status,
		renew:  renew,
		log:    log.With(logger.Component("ops")),
	}
}

// Router mounts the operational endpoints on a fresh chi router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealthz)
	r.Get("/status", h.handleStatus)
	r.Post("/renew", h.handleRenew)

	return r
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Status())
}

// handleRenew runs a full renewal cycle synchronously and reports its
// outcome. Concurrent requests do not queue; callers get a conflict and
// retry once the in-flight cycle finishes.
func (h *Handler) handleRenew(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.renew.ForceRenew(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrCycleInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	case err != nil:
		h.log.ErrorContext(r.Context(), "forced renewal failed", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
