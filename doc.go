// Package main is the entry point of media-vfs, an indexer that keeps a media
// catalog in step with a user-editable virtual directory tree.
//
// Users arrange files under VIRTUAL_DIR. Each media file there is paired with
// a data file under PHYSICAL_DIR and an .aclgene sidecar that carries its
// identity. The watcher folds filesystem notifications into a pending queue;
// a periodic flush pass reconciles quiet items into mappings, contents,
// categories and labels stored in SQLite.
//
// # Application Lifecycle
//
//  1. Memory configuration: GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
//  2. Configuration loading and directory validation
//  3. Database initialization and workspace registration
//  4. Component initialization:
//     - Metrics collector and filesystem observer
//     - Thumbnail generator (libvips when available)
//     - Message dispatcher and category resolver
//     - Memory monitor, which defers flush passes under pressure
//     - Watcher over the virtual tree
//  5. HTTP control API and /metrics
//  6. Graceful shutdown on SIGINT/SIGTERM
//
// # Control API
//
//   - GET /healthz, GET|HEAD /livez
//   - GET /api/version
//   - GET /api/watch/status, GET /api/watch/pending
//   - POST /api/watch/suspend, /resume, /flush
//   - GET|PUT /api/settings/{key}
//
// # Graceful Shutdown
//
//  1. Stop accepting HTTP requests (30s timeout)
//  2. Stop the watcher; pending items are dropped
//  3. Stop the memory monitor and metrics collector
//  4. Shut down libvips
//  5. Close the database
//
// # Build Requirements
//
// CGO is required for SQLite and libvips:
//
//	go build -o media-vfs .
//
// # Related Packages
//
//   - [media-vfs/internal/watcher]: notification coalescing and flush passes
//   - [media-vfs/internal/runner]: per-item reconciliation
//   - [media-vfs/internal/category]: category and label resolution
//   - [media-vfs/internal/database]: SQLite repositories
//   - [media-vfs/internal/handlers]: HTTP control API
//   - [media-vfs/internal/startup]: configuration and startup logging
package main
