package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-vfs/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Defaults for the watcher timing knobs.
const (
	DefaultFlushInterval     = 30 * time.Second
	DefaultDebounceThreshold = 10 * time.Second
)

// Config holds all application configuration
type Config struct {
	VirtualDir  string
	PhysicalDir string
	CacheDir    string
	DatabaseDir string
	Port        string

	WorkspaceID       int64
	RootCategoryID    int64
	FlushInterval     time.Duration
	DebounceThreshold time.Duration
	SuspendIndex      bool

	MetricsEnabled  bool
	LogHealthChecks bool

	// Derived paths
	DatabasePath string
	ThumbnailDir string

	// ThumbnailsEnabled is THUMBNAILS_ENABLED and a writable thumbnail dir.
	ThumbnailsEnabled bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	virtualDir := getEnv("VIRTUAL_DIR", "/vfs/virtual")
	physicalDir := getEnv("PHYSICAL_DIR", "/vfs/physical")
	cacheDir := getEnv("CACHE_DIR", "/cache")
	databaseDir := getEnv("DATABASE_DIR", "/database")
	port := getEnv("PORT", "8080")
	workspaceID := getEnvInt64("WORKSPACE_ID", 1)
	rootCategoryID := getEnvInt64("ROOT_CATEGORY_ID", 1)
	flushInterval := getEnvDuration("FLUSH_INTERVAL", DefaultFlushInterval)
	debounceThreshold := getEnvDuration("DEBOUNCE_THRESHOLD", DefaultDebounceThreshold)
	suspendIndex := getEnvBool("SUSPEND_INDEX", false)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", false)
	thumbnailsWanted := getEnvBool("THUMBNAILS_ENABLED", true)

	logging.Info("  VIRTUAL_DIR:         %s", virtualDir)
	logging.Info("  PHYSICAL_DIR:        %s", physicalDir)
	logging.Info("  CACHE_DIR:           %s", cacheDir)
	logging.Info("  DATABASE_DIR:        %s", databaseDir)
	logging.Info("  PORT:                %s", port)
	logging.Info("  WORKSPACE_ID:        %d", workspaceID)
	logging.Info("  ROOT_CATEGORY_ID:    %d", rootCategoryID)
	logging.Info("  FLUSH_INTERVAL:      %v", flushInterval)
	logging.Info("  DEBOUNCE_THRESHOLD:  %v", debounceThreshold)
	logging.Info("  SUSPEND_INDEX:       %v", suspendIndex)
	logging.Info("  METRICS_ENABLED:     %v", metricsEnabled)
	logging.Info("  THUMBNAILS_ENABLED:  %v", thumbnailsWanted)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", logHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())

	if workspaceID <= 0 {
		return nil, fmt.Errorf("WORKSPACE_ID must be positive, got %d", workspaceID)
	}

	// Resolve paths
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dirs := []struct {
		name string
		path *string
	}{
		{"virtual", &virtualDir},
		{"physical", &physicalDir},
		{"cache", &cacheDir},
		{"database", &databaseDir},
	}
	for _, d := range dirs {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs
		logging.Info("  %s directory (absolute): %s", capitalize(d.name), abs)
	}

	if virtualDir == physicalDir {
		return nil, fmt.Errorf("VIRTUAL_DIR and PHYSICAL_DIR must differ (both %s)", virtualDir)
	}
	if isWithin(virtualDir, physicalDir) || isWithin(physicalDir, virtualDir) {
		return nil, fmt.Errorf("VIRTUAL_DIR %s and PHYSICAL_DIR %s must not be nested", virtualDir, physicalDir)
	}

	config := &Config{
		VirtualDir:        virtualDir,
		PhysicalDir:       physicalDir,
		CacheDir:          cacheDir,
		DatabaseDir:       databaseDir,
		Port:              port,
		WorkspaceID:       workspaceID,
		RootCategoryID:    rootCategoryID,
		FlushInterval:     flushInterval,
		DebounceThreshold: debounceThreshold,
		SuspendIndex:      suspendIndex,
		MetricsEnabled:    metricsEnabled,
		LogHealthChecks:   logHealthChecks,
		DatabasePath:      filepath.Join(databaseDir, "media-vfs.db"),
		ThumbnailDir:      filepath.Join(cacheDir, "thumbnails"),
	}

	// Both trees are required: the watcher moves files between them
	for _, d := range []struct{ path, name string }{{virtualDir, "virtual"}, {physicalDir, "physical"}} {
		if err := ensureDirectory(d.path, d.name); err != nil {
			return nil, fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(d.path); err != nil {
			return nil, fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %s directory is writable", capitalize(d.name))
	}

	// Ensure base database directory exists (required for database)
	if err := ensureDirectory(databaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(databaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// Setup thumbnail directory (optional)
	if thumbnailsWanted {
		config.ThumbnailsEnabled = setupOptionalDir(config.ThumbnailDir, "thumbnails")
	}

	// Summary
	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:    ENABLED (required)")
	logging.Info("    Watcher:     %s", suspendedString(config.SuspendIndex))
	logging.Info("    Thumbnails:  %s", enabledString(config.ThumbnailsEnabled))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func suspendedString(suspended bool) string {
	if suspended {
		return "SUSPENDED (changes are coalesced but not reconciled)"
	}
	return "ENABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogThumbnailInit logs thumbnail generator initialization
func LogThumbnailInit(enabled, vips bool) {
	if !enabled {
		logging.Info("  Thumbnails disabled (THUMBNAILS_ENABLED=false or cache directory not writable)")
		return
	}
	if vips {
		logging.Info("  [OK] Thumbnails enabled (libvips decoder)")
	} else {
		logging.Info("  [OK] Thumbnails enabled (pure Go decoder)")
	}
}

// LogWatcherInit logs watcher initialization
func LogWatcherInit(config *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("WATCHER INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workspace:          %d", config.WorkspaceID)
	logging.Info("  Virtual tree:       %s", config.VirtualDir)
	logging.Info("  Physical tree:      %s", config.PhysicalDir)
	logging.Info("  Flush interval:     %v", config.FlushInterval)
	logging.Info("  Debounce threshold: %v", config.DebounceThreshold)
	logging.Info("  Starting watcher...")
}

// LogWatcherStarted logs successful watcher start
func LogWatcherStarted(watchedDirs int) {
	logging.Info("  [OK] Watcher started (%d directories)", watchedDirs)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route without a method matcher
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
		}
	}

	if logHealthChecks {
		logging.Info("  Health check logging: ON")
	} else {
		logging.Info("  Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Control API:   http://0.0.0.0:%s/api/watch/status", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
                     _ _                   __
  _ __ ___   ___  __| (_) __ _     __   __/ _|___
 | '_ ' _ \ / _ \/ _' | |/ _' |____\ \ / / |_/ __|
 | | | | | |  __/ (_| | | (_| |_____\ V /|  _\__ \
 |_| |_| |_|\___|\__,_|_|\__,_|      \_/ |_| |___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

// isWithin reports whether path lies strictly inside root.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
