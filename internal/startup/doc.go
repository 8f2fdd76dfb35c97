// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig]:
//
//   - VIRTUAL_DIR: tree users edit and the watcher observes (default: /vfs/virtual)
//   - PHYSICAL_DIR: tree that holds the file data (default: /vfs/physical)
//   - CACHE_DIR: thumbnail cache root (default: /cache)
//   - DATABASE_DIR: SQLite directory (default: /database)
//   - PORT: HTTP port for the control API and /metrics (default: 8080)
//   - WORKSPACE_ID: workspace row pairing the two trees (default: 1)
//   - ROOT_CATEGORY_ID: category under which folders are materialized (default: 1)
//   - FLUSH_INTERVAL: time between flush passes as Go duration (default: 30s)
//   - DEBOUNCE_THRESHOLD: quiet time before an item is reconciled (default: 10s)
//   - SUSPEND_INDEX: start with reconciliation suspended (default: false)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - THUMBNAILS_ENABLED: build thumbnails for new content (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: log /healthz requests (default: false)
//
// # Directory Setup
//
// The virtual, physical and database directories are required and must be
// writable; they are created when missing. The virtual and physical trees
// must not be nested. The thumbnail directory under CACHE_DIR is optional;
// thumbnails are disabled when it cannot be written.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via ldflags and exposed via
// [GetBuildInfo]:
//
//	go build -ldflags "-X media-vfs/internal/startup.Version=1.2.0"
package startup
