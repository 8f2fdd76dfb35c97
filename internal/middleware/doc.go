// Package middleware provides HTTP middleware for the control API.
//
// It includes:
//   - An access log tagged with the workspace and the matched route template
//   - Prometheus request metrics labelled by mux route template
package middleware
