package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-vfs/internal/logging"
	"media-vfs/internal/metrics"
	"media-vfs/internal/vfs"
)

const (
	// DefaultFlushInterval is the period between flush passes.
	DefaultFlushInterval = 30 * time.Second
	// DefaultDebounceThreshold is how long an item must stay quiet before
	// it is reconciled.
	DefaultDebounceThreshold = 10 * time.Second
	// DefaultRenameWindow is how long a Rename waits for its Create.
	DefaultRenameWindow = 100 * time.Millisecond
)

// Reconciler applies one coalesced change. *runner.Runner implements it.
type Reconciler interface {
	CreateNormal(ctx context.Context, ws *vfs.Workspace, target string) error
	CreateSidecar(ctx context.Context, ws *vfs.Workspace, target string) error
	RenameSidecar(ctx context.Context, ws *vfs.Workspace, target string) error
	RemoveSidecar(ctx context.Context, ws *vfs.Workspace, target, lastKnown string) error
}

// Notification is a raw change under the virtual root. OldPath is set for
// Renamed only.
type Notification struct {
	Kind    vfs.ChangeKind
	Path    string
	OldPath string
}

// Config configures a Watcher.
type Config struct {
	Workspace *vfs.Workspace
	// Workspaces, when set, is re-read at every pass.
	Workspaces vfs.WorkspaceRepository
	Mappings   vfs.FileMappingInfoRepository
	Reconciler Reconciler

	// Pressure, when set, defers passes while it reports IsPaused.
	Pressure Pressure

	FlushInterval     time.Duration
	DebounceThreshold time.Duration
	RenameWindow      time.Duration
	// IgnoreGrace is how long a reconciled path stays ignored after the
	// reconciler returns, so the notifications for its own writes are
	// dropped. Defaults to FlushInterval.
	IgnoreGrace time.Duration
	Suspended   bool

	// Now defaults to time.Now.
	Now func() time.Time
}

// Pressure reports memory pressure. memory.Monitor implements it.
type Pressure interface {
	IsPaused() bool
}

// Watcher watches one workspace's virtual tree and reconciles what changed
// in periodic flush passes.
type Watcher struct {
	cfg     Config
	now     func() time.Time
	pending *PendingStore
	moves   moveCorrelator
	ignore  *IgnoreSet

	suspended atomic.Bool
	lastFlush atomic.Int64

	dirsMu sync.Mutex
	dirs   map[string]struct{}
	fsw    *fsnotify.Watcher

	passMu sync.Mutex

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Watcher. Call Start to begin watching.
func New(cfg Config) (*Watcher, error) {
	if cfg.Workspace == nil {
		return nil, errors.New("watcher: workspace is required")
	}
	if cfg.Reconciler == nil {
		return nil, errors.New("watcher: reconciler is required")
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.DebounceThreshold <= 0 {
		cfg.DebounceThreshold = DefaultDebounceThreshold
	}
	if cfg.RenameWindow <= 0 {
		cfg.RenameWindow = DefaultRenameWindow
	}
	if cfg.IgnoreGrace <= 0 {
		cfg.IgnoreGrace = cfg.FlushInterval
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	w := &Watcher{
		cfg:     cfg,
		now:     now,
		pending: NewPendingStore(now),
		ignore:  NewIgnoreSet(),
		dirs:    make(map[string]struct{}),
	}
	w.suspended.Store(cfg.Suspended)
	return w, nil
}

// Pending exposes the pending store.
func (w *Watcher) Pending() *PendingStore { return w.pending }

// Ignore exposes the ignore set.
func (w *Watcher) Ignore() *IgnoreSet { return w.ignore }

// SetSuspended pauses or resumes reconciliation. Changes are still
// coalesced while suspended.
func (w *Watcher) SetSuspended(suspended bool) {
	if w.suspended.Swap(suspended) != suspended {
		logging.Info("Watcher: suspended=%v", suspended)
	}
}

// IsSuspended reports whether reconciliation is paused.
func (w *Watcher) IsSuspended() bool {
	return w.suspended.Load()
}

// Start watches every directory under the virtual root and starts the event
// and flush loops.
func (w *Watcher) Start() error {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.running {
		return errors.New("watcher already running")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w.dirsMu.Lock()
	w.fsw = fsw
	w.dirsMu.Unlock()

	count := w.addWatchTree(w.cfg.Workspace.VirtualPath)
	logging.Info("Watcher started on %s, watching %d directories (flush=%v, debounce=%v)",
		w.cfg.Workspace.VirtualPath, count, w.cfg.FlushInterval, w.cfg.DebounceThreshold)

	w.stop = make(chan struct{})
	w.running = true
	w.wg.Add(2)
	go w.processEvents(fsw)
	go w.flushLoop()
	return nil
}

// Stop closes the native watcher and waits for both loops. A pass in
// progress completes first.
func (w *Watcher) Stop() error {
	w.runMu.Lock()
	if !w.running {
		w.runMu.Unlock()
		return nil
	}
	w.running = false
	w.runMu.Unlock()

	close(w.stop)

	w.dirsMu.Lock()
	fsw := w.fsw
	w.fsw = nil
	w.dirsMu.Unlock()

	var err error
	if fsw != nil {
		err = fsw.Close()
	}
	w.wg.Wait()
	logging.Info("Watcher stopped")
	return err
}

// IsRunning reports whether Start has been called without Stop.
func (w *Watcher) IsRunning() bool {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	return w.running
}

// processEvents translates fsnotify events into notifications. fsnotify
// reports a rename as Rename on the old name and then Create on the new one;
// the two are paired here, and a Rename with no Create inside the window is
// a deletion.
func (w *Watcher) processEvents(fsw *fsnotify.Watcher) {
	defer w.wg.Done()

	var (
		held    string
		timer   *time.Timer
		timeout <-chan time.Time
	)
	release := func() {
		if held == "" {
			return
		}
		if timer != nil {
			timer.Stop()
		}
		w.Notify(Notification{Kind: vfs.Deleted, Path: held})
		held, timeout = "", nil
	}

	for {
		select {
		case <-w.stop:
			return

		case <-timeout:
			timeout = nil
			release()

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			if w.ignore.Contains(event.Name) {
				metrics.WatcherEventsDropped.WithLabelValues("ignored").Inc()
				continue
			}

			switch {
			case event.Has(fsnotify.Rename):
				release()
				held = event.Name
				timer = time.NewTimer(w.cfg.RenameWindow)
				timeout = timer.C
			case event.Has(fsnotify.Create) && held != "" && pairable(held, event.Name):
				timer.Stop()
				old := held
				held, timeout = "", nil
				w.Notify(Notification{Kind: vfs.Renamed, Path: event.Name, OldPath: old})
			default:
				release()
				if kind, ok := changeKind(event.Op); ok {
					w.Notify(Notification{Kind: kind, Path: event.Name})
				}
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// pairable reports whether a Create on newPath can complete a Rename of
// oldPath. A noise target or a change of sidecar-ness means the Create is
// unrelated, and the Rename is released as a deletion.
func pairable(oldPath, newPath string) bool {
	if isNoise(newPath) {
		return false
	}
	return vfs.IsSidecar(oldPath) == vfs.IsSidecar(newPath)
}

func changeKind(op fsnotify.Op) (vfs.ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return vfs.Created, true
	case op.Has(fsnotify.Remove):
		return vfs.Deleted, true
	case op.Has(fsnotify.Write):
		return vfs.Changed, true
	}
	return 0, false
}

// Notify coalesces one raw change.
func (w *Watcher) Notify(n Notification) {
	metrics.WatcherEventsTotal.WithLabelValues(n.Kind.String()).Inc()

	if w.ignore.Contains(n.Path) {
		metrics.WatcherEventsDropped.WithLabelValues("ignored").Inc()
		return
	}
	if isNoise(n.Path) {
		metrics.WatcherEventsDropped.WithLabelValues("filtered").Inc()
		return
	}

	ws := w.cfg.Workspace
	if w.isDirectory(n) {
		switch n.Kind {
		case vfs.Created:
			w.directoryCreated(ws, n.Path)
		case vfs.Renamed:
			w.directoryRenamed(ws, n.Path, n.OldPath)
		case vfs.Deleted:
			w.directoryDeleted(n.Path)
		default:
			metrics.WatcherEventsDropped.WithLabelValues("filtered").Inc()
		}
		return
	}

	var oldRel string
	if n.Kind == vfs.Renamed && n.OldPath != "" {
		oldRel = ws.TrimWorkspacePath(n.OldPath)
	}
	w.fold(ws, n.Path, n.Kind, oldRel)
}

func (w *Watcher) fold(ws *vfs.Workspace, path string, kind vfs.ChangeKind, oldRel string) {
	if err := w.pending.Fold(ws, path, kind, oldRel); err != nil {
		metrics.WatcherEventsDropped.WithLabelValues("fold_error").Inc()
		logging.Warn("Watcher: %v", err)
		return
	}
	logging.Debug("Watcher: folded %s %s", kind, path)
}

// isDirectory classifies n. A deleted path can no longer be inspected, so
// it is a directory when it was being watched as one.
func (w *Watcher) isDirectory(n Notification) bool {
	switch n.Kind {
	case vfs.Deleted:
		return w.isWatchedDir(n.Path)
	case vfs.Renamed:
		if w.isWatchedDir(n.OldPath) {
			return true
		}
	}
	info, err := os.Lstat(n.Path)
	return err == nil && info.IsDir()
}

func (w *Watcher) directoryCreated(ws *vfs.Workspace, path string) {
	w.addWatchTree(path)
	name := filepath.Base(path)
	if w.moves.Match(name) {
		logging.Info("Watcher: directory %s treated as directory move", path)
		metrics.DirectoryMovesTotal.WithLabelValues("moved").Inc()
	}
	w.foldTree(ws, path, func(string) string { return "" })
}

func (w *Watcher) directoryRenamed(ws *vfs.Workspace, path, oldPath string) {
	w.removeWatchTree(oldPath)
	w.addWatchTree(path)
	logging.Debug("Watcher: directory renamed %s -> %s", oldPath, path)
	w.foldTree(ws, path, func(file string) string {
		return ws.TrimWorkspacePath(oldPath + strings.TrimPrefix(file, path))
	})
}

func (w *Watcher) directoryDeleted(path string) {
	w.removeWatchTree(path)
	w.moves.Record(filepath.Base(path), path)
	logging.Debug("Watcher: directory %s deleted, waiting for a matching create", path)
}

// foldTree folds a Created change for every file under root. oldRel maps a
// file to its pre-rename relative path.
func (w *Watcher) foldTree(ws *vfs.Workspace, root string, oldRel func(string) string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != root && isNoise(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || w.ignore.Contains(path) {
			return nil
		}
		w.fold(ws, path, vfs.Created, oldRel(path))
		return nil
	})
	if err != nil {
		logging.Warn("Watcher: failed to enumerate %s: %v", root, err)
	}
}

// addWatchTree watches root and every non-hidden directory below it.
func (w *Watcher) addWatchTree(root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if w.watchDir(path) {
			count++
		}
		return nil
	})
	if err != nil {
		logging.Warn("Watcher: failed to walk %s: %v", root, err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func (w *Watcher) watchDir(path string) bool {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	if w.fsw != nil {
		if err := w.fsw.Add(path); err != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, err)
			metrics.WatcherErrors.Inc()
			return false
		}
	}
	w.dirs[path] = struct{}{}
	metrics.WatchedDirectories.Set(float64(len(w.dirs)))
	return true
}

// removeWatchTree forgets root and the directories below it.
func (w *Watcher) removeWatchTree(root string) {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	prefix := root + string(filepath.Separator)
	for dir := range w.dirs {
		if dir != root && !strings.HasPrefix(dir, prefix) {
			continue
		}
		delete(w.dirs, dir)
		if w.fsw != nil {
			// The kernel drops watches on deleted directories itself.
			_ = w.fsw.Remove(dir)
		}
	}
	metrics.WatchedDirectories.Set(float64(len(w.dirs)))
}

func (w *Watcher) isWatchedDir(path string) bool {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	_, ok := w.dirs[path]
	return ok
}

// WatchedDirectories returns the number of watched directories.
func (w *Watcher) WatchedDirectories() int {
	w.dirsMu.Lock()
	defer w.dirsMu.Unlock()
	return len(w.dirs)
}

var noiseSuffixes = []string{"~", ".tmp", ".swp", ".part", ".crdownload"}

var systemFiles = map[string]bool{
	"thumbs.db":   true,
	"desktop.ini": true,
}

// isNoise reports hidden, system and temporary entries.
func isNoise(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	if systemFiles[lower] {
		return true
	}
	for _, s := range noiseSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
