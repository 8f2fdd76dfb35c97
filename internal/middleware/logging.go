package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-vfs/internal/logging"
)

// statusRecorder keeps the status and size of a response for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status != 0 {
		return
	}
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.size += int64(n)
	return n, err
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) code() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

// AccessLogConfig configures AccessLog.
type AccessLogConfig struct {
	// WorkspaceID tags every line with the workspace the API controls.
	WorkspaceID int64

	// Polled lists route templates that dashboards poll. Successful calls to
	// them log at debug level.
	Polled []string

	LogHealthChecks bool
}

// DefaultAccessLogConfig returns the access log settings for workspaceID.
func DefaultAccessLogConfig(workspaceID int64) AccessLogConfig {
	return AccessLogConfig{
		WorkspaceID: workspaceID,
		Polled:      []string{"/api/watch/status", "/api/watch/pending", "/api/version", "/metrics"},
	}
}

var healthRoutes = map[string]bool{
	"/healthz": true,
	"/livez":   true,
}

// AccessLog wraps router with one log line per control API call. The route
// template is matched against router before serving, so unknown paths are
// logged as "unmatched". Calls that change watcher state or settings log at
// info, polls at debug, and failures at warn or error.
func AccessLog(config AccessLogConfig, router *mux.Router) http.Handler {
	polled := make(map[string]bool, len(config.Polled))
	for _, p := range config.Polled {
		polled[p] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, vars := matchRoute(router, r)
		if healthRoutes[route] && !config.LogHealthChecks {
			router.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		router.ServeHTTP(rec, r)

		line := formatAccess(config.WorkspaceID, r, route, vars, rec, time.Since(start))
		switch status := rec.code(); {
		case status >= 500:
			logging.Error("%s", line)
		case status >= 400:
			logging.Warn("%s", line)
		case polled[route]:
			logging.Debug("%s", line)
		default:
			logging.Info("%s", line)
		}
	})
}

func formatAccess(workspaceID int64, r *http.Request, route string, vars map[string]string, rec *statusRecorder, took time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "API ws=%d %s %s status=%d bytes=%d took=%dms",
		workspaceID, sanitize(r.Method), route, rec.code(), rec.size, took.Milliseconds())
	if route == "unmatched" {
		fmt.Fprintf(&b, " path=%q", sanitize(r.URL.Path))
	}
	if key, ok := vars["key"]; ok {
		fmt.Fprintf(&b, " setting=%q", sanitize(key))
	}
	if q := r.URL.RawQuery; q != "" {
		fmt.Fprintf(&b, " query=%q", sanitize(q))
	}
	fmt.Fprintf(&b, " client=%s", sanitize(clientIP(r)))
	return b.String()
}

// matchRoute returns the path template and variables of the route that
// router would dispatch r to.
func matchRoute(router *mux.Router, r *http.Request) (string, map[string]string) {
	var match mux.RouteMatch
	if router.Match(r, &match) && match.Route != nil {
		if tpl, err := match.Route.GetPathTemplate(); err == nil {
			return tpl, match.Vars
		}
	}
	return "unmatched", nil
}

// sanitize drops control characters so a request cannot forge log lines.
// Line breaks become spaces.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
