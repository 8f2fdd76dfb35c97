package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the control API on r. /metrics is only mounted when
// metricsEnabled is set.
func (h *Handlers) RegisterRoutes(r *mux.Router, metricsEnabled bool) {
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	watch := api.PathPrefix("/watch").Subrouter()
	watch.HandleFunc("/status", h.GetWatchStatus).Methods(http.MethodGet)
	watch.HandleFunc("/pending", h.GetPending).Methods(http.MethodGet)
	watch.HandleFunc("/suspend", h.SuspendWatch).Methods(http.MethodPost)
	watch.HandleFunc("/resume", h.ResumeWatch).Methods(http.MethodPost)
	watch.HandleFunc("/flush", h.FlushWatch).Methods(http.MethodPost)

	api.HandleFunc("/settings/{key}", h.GetSetting).Methods(http.MethodGet)
	api.HandleFunc("/settings/{key}", h.PutSetting).Methods(http.MethodPut)

	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}
}
