package handlers

import (
	"context"
	"time"

	"media-vfs/internal/metrics"
	"media-vfs/internal/watcher"
)

// WatchController is the part of the watcher the control API drives.
type WatchController interface {
	Status() watcher.Status
	DumpPending() string
	SetSuspended(suspended bool)
	IsSuspended() bool
	IsRunning() bool
	Flush(ctx context.Context) watcher.PassResult
}

// SettingsStore reads and writes application settings.
type SettingsStore interface {
	LoadByKey(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type Handlers struct {
	watch     WatchController
	settings  SettingsStore
	stats     metrics.StatsProvider
	startTime time.Time
}

func New(watch WatchController, settings SettingsStore, stats metrics.StatsProvider) *Handlers {
	return &Handlers{
		watch:     watch,
		settings:  settings,
		stats:     stats,
		startTime: time.Now(),
	}
}
