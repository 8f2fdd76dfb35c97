// Package metrics provides Prometheus instrumentation for media-vfs.
//
// All metrics are prefixed with "media_vfs_" and registered with the default
// registry through promauto.
//
// # Metric Categories
//
// ## Watcher Metrics
//
// Track notification intake and coalescing:
//   - WatcherEventsTotal: Counter of notifications by kind
//   - WatcherEventsDropped: Counter of notifications dropped before folding, by reason
//   - WatcherErrors: Counter of fsnotify errors
//   - WatchedDirectories: Gauge of watched directories
//   - PendingItems: Gauge of coalesced items awaiting a flush
//   - WatcherSuspended: Gauge set at scrape time from the watcher's suspend flag
//   - DirectoryMovesTotal: Counter of directory deletes resolved as moves or deletions
//
// ## Flush and Reconciliation Metrics
//
//   - FlushPassesTotal: Counter of passes by result (completed/suspended)
//   - FlushPassDuration: Histogram of pass duration
//   - FlushLastTimestamp: Gauge of the last completed pass
//   - ReconcileTotal: Counter by transition and result (success/precondition/error/skipped)
//   - ReconcileDuration: Histogram by transition
//
// ## Catalog Metrics
//
//   - CategoriesCreatedTotal, LabelsAttachedTotal: Counters of resolver writes
//   - ParserRuleErrors: Counter of rules that failed to compile
//   - CatalogItemsTotal: Gauge of record counts, refreshed by [Collector]
//   - MessagesDispatchedTotal: Counter of message deliveries
//
// ## Database, Thumbnail, Filesystem and HTTP Metrics
//
// Query counts and latencies by operation, thumbnail generation by decoder,
// filesystem operation latency and stale-handle retries by volume, and HTTP
// request counts for the control endpoints.
//
// # Usage
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// The [Collector] periodically refreshes catalog gauges from a [StatsProvider]:
//
//	collector := metrics.NewCollector(db, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Reconciliation failure rate:
//
//	sum(rate(media_vfs_reconcile_total{result=~"error|precondition"}[5m])) /
//	sum(rate(media_vfs_reconcile_total[5m]))
//
// Backlog:
//
//	media_vfs_pending_items
package metrics
