package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"media-vfs/internal/logging"
)

// flushTimeout bounds a manual flush pass requested over HTTP.
const flushTimeout = 5 * time.Minute

// GetWatchStatus returns the watcher status snapshot.
func (h *Handlers) GetWatchStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSONStatus(w, http.StatusOK, h.watch.Status())
}

// GetPending dumps the pending queue as plain text.
func (h *Handlers) GetPending(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, h.watch.DumpPending()); err != nil {
		logging.Debug("failed to write pending dump: %v", err)
	}
}

// SuspendWatch stops reconciliation. Notifications keep accumulating.
func (h *Handlers) SuspendWatch(w http.ResponseWriter, _ *http.Request) {
	h.watch.SetSuspended(true)
	logging.Info("Reconciliation suspended via API")
	writeJSONStatus(w, http.StatusOK, h.watch.Status())
}

// ResumeWatch restarts reconciliation on the next pass.
func (h *Handlers) ResumeWatch(w http.ResponseWriter, _ *http.Request) {
	h.watch.SetSuspended(false)
	logging.Info("Reconciliation resumed via API")
	writeJSONStatus(w, http.StatusOK, h.watch.Status())
}

// FlushWatch runs a flush pass now and returns its result. The pass is
// detached from the request so a client disconnect does not abort it.
func (h *Handlers) FlushWatch(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	result := h.watch.Flush(ctx)
	writeJSONStatus(w, http.StatusOK, result)
}
