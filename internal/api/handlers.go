package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rogeraird/rgo/internal/models"
)

// redirect sends the client to the stored URL, or to the not-found page
// when the key is unknown. A miss is not an error.
func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	target, ok, err := h.ctrl.Lookup(key)
	if err != nil {
		slog.Error("api: lookup failed", "key", key, "err", err)
		writeError(w, models.ErrInternal("lookup failed"))
		return
	}
	h.metrics.Redirect(ok)
	if !ok {
		redirectTo(w, models.NotFoundPath)
		return
	}
	redirectTo(w, target)
}

func (h *Handlers) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, models.ErrNotFound("no link for this key"))
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ctrl.Snapshot()
	if err != nil {
		slog.Error("api: snapshot failed", "err", err)
		writeError(w, models.ErrInternal("snapshot failed"))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type healthResponse struct {
	Status string `json:"status"`
	Links  int    `json:"links"`
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if !h.ctrl.Healthy() {
		writeError(w, models.ErrUnavailable("store lock poisoned"))
		return
	}
	snap, err := h.ctrl.Snapshot()
	if err != nil {
		writeError(w, models.ErrUnavailable(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Links: len(snap)})
}
