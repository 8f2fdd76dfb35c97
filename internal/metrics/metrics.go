package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_vfs_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_vfs_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_vfs_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"result"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_watcher_events_total",
			Help: "Total number of filesystem notifications received by kind",
		},
		[]string{"kind"},
	)

	WatcherEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_watcher_events_dropped_total",
			Help: "Total number of notifications dropped before folding, by reason",
		},
		[]string{"reason"}, // "ignored", "filtered", "vanished", "fold_error"
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_vfs_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)

	PendingItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_pending_items",
			Help: "Number of coalesced items waiting for the next flush",
		},
	)

	WatcherSuspended = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_watcher_suspended",
			Help: "1 while automatic flush passes are suspended, 0 otherwise",
		},
	)

	DirectoryMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_directory_moves_total",
			Help: "Directory delete notifications by outcome",
		},
		[]string{"outcome"}, // "moved", "deleted"
	)
)

// Flush and reconciliation metrics
var (
	FlushPassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_flush_passes_total",
			Help: "Total number of flush passes",
		},
		[]string{"result"}, // "completed", "suspended", "deferred"
	)

	FlushPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_vfs_flush_pass_duration_seconds",
			Help:    "Duration of flush passes in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	FlushLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_flush_last_timestamp",
			Help: "Unix timestamp of the last completed flush pass",
		},
	)

	ReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_reconcile_total",
			Help: "Reconciliation runs by transition and result",
		},
		[]string{"transition", "result"}, // result: "success", "precondition", "error", "skipped"
	)

	ReconcileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_vfs_reconcile_duration_seconds",
			Help:    "Reconciliation run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"transition"},
	)
)

// Catalog metrics
var (
	CategoriesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_vfs_categories_created_total",
			Help: "Total number of categories created from paths",
		},
	)

	LabelsAttachedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_vfs_labels_attached_total",
			Help: "Total number of label attachments made by label rules",
		},
	)

	ParserRuleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_parser_rule_errors_total",
			Help: "Parser rules that failed to compile",
		},
		[]string{"kind"}, // "category", "label"
	)

	CatalogItemsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_vfs_catalog_items",
			Help: "Number of catalog records by kind",
		},
		[]string{"kind"}, // "mapping", "content", "category", "label"
	)

	MessagesDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_messages_dispatched_total",
			Help: "Message deliveries by message name and status",
		},
		[]string{"message", "status"},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"decoder", "status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_vfs_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"decoder"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_vfs_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume and operation",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_filesystem_retry_attempts_total",
			Help: "Retry attempts after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_vfs_filesystem_stale_errors_total",
			Help: "Stale file handle errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_vfs_filesystem_retry_duration_seconds",
			Help:    "Total duration of retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Memory backpressure metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_memory_usage_ratio",
			Help: "Heap allocation as a ratio of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_vfs_memory_paused",
			Help: "Whether flush passes are deferred due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_vfs_memory_gc_pauses_total",
			Help: "Total number of times memory pressure deferred flush passes",
		},
	)
)

// Application info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "media_vfs_app_info",
		Help: "Application information",
	},
	[]string{"version", "commit", "go_version"},
)
