package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-vfs/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusSuspended = "suspended"
	statusStopped   = "stopped"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Watching  bool   `json:"watching"`
	Suspended bool   `json:"suspended"`
	Pending   int    `json:"pending"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`

	// Catalog counts
	Mappings   int `json:"mappings"`
	Contents   int `json:"contents"`
	Categories int `json:"categories"`
	Labels     int `json:"labels"`
}

// HealthCheck reports watcher state and catalog counts. It returns 503 while
// the watcher is not running.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.watch.Status()

	response := HealthResponse{
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Watching:     status.Running,
		Suspended:    status.Suspended,
		Pending:      status.Pending,
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if h.stats != nil {
		stats := h.stats.GetStats()
		response.Mappings = stats.Mappings
		response.Contents = stats.Contents
		response.Categories = stats.Categories
		response.Labels = stats.Labels
	}

	code := http.StatusOK
	switch {
	case !status.Running:
		response.Status = statusStopped
		code = http.StatusServiceUnavailable
	case status.Suspended:
		response.Status = statusSuspended
	default:
		response.Status = statusHealthy
	}

	writeJSONStatus(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}
