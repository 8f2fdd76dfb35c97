package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-vfs/internal/category"
	"media-vfs/internal/database"
	"media-vfs/internal/filesystem"
	"media-vfs/internal/handlers"
	"media-vfs/internal/logging"
	"media-vfs/internal/media"
	"media-vfs/internal/memory"
	"media-vfs/internal/messaging"
	"media-vfs/internal/metrics"
	"media-vfs/internal/middleware"
	"media-vfs/internal/runner"
	"media-vfs/internal/startup"
	"media-vfs/internal/vfs"
	"media-vfs/internal/watcher"

	"github.com/gorilla/mux"
)

const statsInterval = time.Minute

func main() {
	startTime := time.Now()

	// Size the heap before anything allocates large buffers
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.InitializeMetrics()
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"virtual":  config.VirtualDir,
		"physical": config.PhysicalDir,
		"database": config.DatabaseDir,
		"cache":    config.CacheDir,
	}))

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath, database.WithRootCategory(config.RootCategoryID))
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart))

	workspace := &vfs.Workspace{
		ID:           config.WorkspaceID,
		Name:         "default",
		VirtualPath:  config.VirtualDir,
		PhysicalPath: config.PhysicalDir,
	}
	if err := db.Workspaces().Save(context.Background(), workspace); err != nil {
		startup.LogFatal("Failed to register workspace %d: %v", workspace.ID, err)
	}

	collector := metrics.NewCollector(db, statsInterval)
	collector.Start()

	// Thumbnails are optional; a nil builder skips them
	var thumbnails vfs.ThumbnailBuilder
	if config.ThumbnailsEnabled {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to pure Go decoding: %v", err)
		}
		thumbnails = media.NewThumbnailGenerator(config.ThumbnailDir, true)
	}
	startup.LogThumbnailInit(config.ThumbnailsEnabled, media.IsVipsAvailable())

	dispatcher := messaging.NewDispatcher()
	dispatcher.RegisterExtension(vfs.MsgNewCategory, "log", func(c messaging.Context) error {
		if id, ok := c.Int64(); ok {
			logging.Debug("Category %d created", id)
		}
		return nil
	})

	resolver := category.NewResolver(category.Config{
		Categories:     db.Categories(),
		Labels:         db.Labels(),
		Settings:       db.Settings(),
		Events:         db.Events(),
		Publisher:      dispatcher,
		RootCategoryID: config.RootCategoryID,
	})

	reconciler := runner.New(runner.Config{
		Mappings:   db.FileMappings(),
		Contents:   db.Contents(),
		Resolver:   resolver,
		Thumbnails: thumbnails,
	})

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	// Initialize watcher
	startup.LogWatcherInit(config)
	w, err := watcher.New(watcher.Config{
		Workspace:         workspace,
		Workspaces:        db.Workspaces(),
		Mappings:          db.FileMappings(),
		Reconciler:        reconciler,
		Pressure:          monitor,
		FlushInterval:     config.FlushInterval,
		DebounceThreshold: config.DebounceThreshold,
		Suspended:         config.SuspendIndex,
	})
	if err != nil {
		startup.LogFatal("Failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		startup.LogFatal("Failed to start watcher: %v", err)
	}
	startup.LogWatcherStarted(w.WatchedDirectories())

	// Initialize handlers
	h := handlers.New(w, db.Settings(), db)

	// Setup router
	router := setupRouter(h, config.MetricsEnabled)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Log control API calls
	accessConfig := middleware.DefaultAccessLogConfig(config.WorkspaceID)
	accessConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.AccessLog(accessConfig, router)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	go handleShutdown(srv, shutdownTargets{
		watcher:   w,
		monitor:   monitor,
		collector: collector,
		db:        db,
		vips:      config.ThumbnailsEnabled,
	}, done)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r, metricsEnabled)
	if metricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}
	return r
}

type shutdownTargets struct {
	watcher   *watcher.Watcher
	monitor   *memory.Monitor
	collector *metrics.Collector
	db        *database.Database
	vips      bool
}

func handleShutdown(srv *http.Server, t shutdownTargets, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Stopping watcher")
	if err := t.watcher.Stop(); err != nil {
		logging.Warn("Watcher stop error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Watcher stopped")
	}

	t.monitor.Stop()
	t.collector.Stop()

	if t.vips {
		startup.LogShutdownStep("Shutting down libvips")
		media.ShutdownVips()
		startup.LogShutdownStepComplete("libvips shut down")
	}

	startup.LogShutdownStep("Closing database")
	if err := t.db.Close(); err != nil {
		logging.Warn("Database close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database closed")
	}

	startup.LogShutdownComplete()
}
