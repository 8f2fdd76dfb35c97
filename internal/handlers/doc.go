// Package handlers provides the HTTP control API of the indexer.
//
// It includes handlers for:
//   - Health and liveness probes
//   - Build information
//   - Watcher status, pending queue dump, suspend/resume and manual flush
//   - Reading and writing settings, including category and label rules
//   - Prometheus metrics
package handlers
