package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-vfs/internal/logging"
	"media-vfs/internal/metrics"
)

// MetricsHandler serves the Prometheus registry. The watcher's suspend flag
// and pending count are sampled on every scrape, since suspension only
// changes through the control API.
func (h *Handlers) MetricsHandler() http.Handler {
	registry := promhttp.InstrumentMetricHandler(
		prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorLog:      promErrorLog{},
			ErrorHandling: promhttp.ContinueOnError,
		}),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := h.watch.Status()
		suspended := 0.0
		if status.Suspended {
			suspended = 1
		}
		metrics.WatcherSuspended.Set(suspended)
		metrics.PendingItems.Set(float64(status.Pending))
		registry.ServeHTTP(w, r)
	})
}

type promErrorLog struct{}

func (promErrorLog) Println(v ...interface{}) {
	logging.Warn("Metrics: %v", v)
}
