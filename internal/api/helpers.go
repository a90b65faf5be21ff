// Package api implements the HTTP surface of rgo: redirects by key and the
// operational endpoints under /priv.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rogeraird/rgo/internal/metrics"
	"github.com/rogeraird/rgo/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	ctrl    Controller
	events  EventBus
	metrics *metrics.Metrics
}

// Controller is the read side of the link store the handlers need.
type Controller interface {
	Lookup(key string) (string, bool, error)
	Snapshot() (models.Snapshot, error)
	Healthy() bool
}

// EventBus is the interface for subscribing to link-table changes.
type EventBus interface {
	Subscribe(id string) <-chan models.Snapshot
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an AppError as a JSON response.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	if appErr, ok := err.(*models.AppError); ok {
		w.WriteHeader(appErr.Status)
		_ = json.NewEncoder(w).Encode(appErr)
		return
	}
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(models.ErrInternal(err.Error()))
}

// redirectTo sends the client to target verbatim. http.Redirect would
// rewrite targets without a scheme relative to the request path.
func redirectTo(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.WriteHeader(http.StatusFound)
}
