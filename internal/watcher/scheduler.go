package watcher

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"media-vfs/internal/logging"
	"media-vfs/internal/metrics"
	"media-vfs/internal/vfs"
)

// PassResult summarizes one flush pass.
type PassResult struct {
	Reconciled   int   `json:"reconciled"`
	Skipped      int   `json:"skipped"`
	Failed       int   `json:"failed"`
	Remaining    int   `json:"remaining"`
	DirsExpired  int   `json:"dirsExpired"`
	Suspended    bool  `json:"suspended"`
	Deferred     bool  `json:"deferred"`
	DurationMsec int64 `json:"durationMs"`
}

// Status describes the watcher for the control API.
type Status struct {
	WorkspaceID        int64     `json:"workspaceId"`
	VirtualPath        string    `json:"virtualPath"`
	PhysicalPath       string    `json:"physicalPath"`
	Running            bool      `json:"running"`
	Suspended          bool      `json:"suspended"`
	Pending            int       `json:"pending"`
	WatchedDirectories int       `json:"watchedDirectories"`
	FlushInterval      string    `json:"flushInterval"`
	DebounceThreshold  string    `json:"debounceThreshold"`
	LastFlush          time.Time `json:"lastFlush,omitempty"`
}

// Status returns a snapshot of the watcher state.
func (w *Watcher) Status() Status {
	s := Status{
		WorkspaceID:        w.cfg.Workspace.ID,
		VirtualPath:        w.cfg.Workspace.VirtualPath,
		PhysicalPath:       w.cfg.Workspace.PhysicalPath,
		Running:            w.IsRunning(),
		Suspended:          w.IsSuspended(),
		Pending:            w.pending.Len(),
		WatchedDirectories: w.WatchedDirectories(),
		FlushInterval:      w.cfg.FlushInterval.String(),
		DebounceThreshold:  w.cfg.DebounceThreshold.String(),
	}
	if ns := w.lastFlush.Load(); ns != 0 {
		s.LastFlush = time.Unix(0, ns)
	}
	return s
}

// DumpPending renders the pending store.
func (w *Watcher) DumpPending() string {
	return w.pending.Dump()
}

func (w *Watcher) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.Flush(context.Background())
		}
	}
}

// Flush runs one pass: an unmatched directory deletion is expanded into
// sidecar deletions, then every item that has been quiet for the debounce
// threshold is reconciled. Passes never overlap.
func (w *Watcher) Flush(ctx context.Context) PassResult {
	w.passMu.Lock()
	defer w.passMu.Unlock()

	start := time.Now()
	var res PassResult
	ws := w.workspace(ctx)

	res.DirsExpired = w.expireDirectoryDelete(ctx, ws)

	if w.IsSuspended() {
		res.Suspended = true
		res.Remaining = w.pending.Len()
		metrics.FlushPassesTotal.WithLabelValues("suspended").Inc()
		return res
	}

	if w.cfg.Pressure != nil && w.cfg.Pressure.IsPaused() {
		res.Deferred = true
		res.Remaining = w.pending.Len()
		metrics.FlushPassesTotal.WithLabelValues("deferred").Inc()
		logging.Warn("Watcher: pass deferred under memory pressure, %d items pending", res.Remaining)
		return res
	}

	for _, item := range w.pending.TakeAged(w.now(), w.cfg.DebounceThreshold) {
		if err := ctx.Err(); err != nil {
			logging.Warn("Watcher: pass cancelled: %v", err)
			break
		}
		switch w.reconcile(ctx, ws, item) {
		case "success":
			res.Reconciled++
		case "skipped":
			res.Skipped++
		default:
			res.Failed++
		}
	}

	res.Remaining = w.pending.Len()
	elapsed := time.Since(start)
	res.DurationMsec = elapsed.Milliseconds()
	w.lastFlush.Store(w.now().UnixNano())

	metrics.FlushPassesTotal.WithLabelValues("completed").Inc()
	metrics.FlushPassDuration.Observe(elapsed.Seconds())
	metrics.FlushLastTimestamp.SetToCurrentTime()

	if res.Reconciled+res.Failed+res.Skipped > 0 {
		logging.Info("Watcher: pass reconciled=%d skipped=%d failed=%d remaining=%d in %v",
			res.Reconciled, res.Skipped, res.Failed, res.Remaining, elapsed)
	}
	return res
}

func (w *Watcher) workspace(ctx context.Context) *vfs.Workspace {
	if w.cfg.Workspaces == nil {
		return w.cfg.Workspace
	}
	ws, err := w.cfg.Workspaces.Load(ctx, w.cfg.Workspace.ID)
	if err != nil {
		logging.Debug("Watcher: using session workspace: %v", err)
		return w.cfg.Workspace
	}
	return ws
}

// expireDirectoryDelete turns a directory deletion that no creation claimed
// into a deletion of every mapping under it.
func (w *Watcher) expireDirectoryDelete(ctx context.Context, ws *vfs.Workspace) int {
	path, ok := w.moves.Take()
	if !ok {
		return 0
	}
	metrics.DirectoryMovesTotal.WithLabelValues("deleted").Inc()

	if w.cfg.Mappings == nil {
		logging.Warn("Watcher: directory %s deleted but no mapping repository is configured", path)
		return 0
	}

	rel := ws.TrimWorkspacePath(path)
	mappings, err := w.cfg.Mappings.FindPathsWithPrefix(ctx, rel+string(filepath.Separator))
	if err != nil {
		logging.Error("Watcher: listing mappings under %s: %v", rel, err)
		return 0
	}
	for _, m := range mappings {
		sidecarRel := m.MappingFilePath + vfs.AclExtension
		w.pending.AddDeleted(m.MappingFilePath, ws.VirtualAbs(sidecarRel), sidecarRel)
	}
	logging.Info("Watcher: directory %s deleted, %d mappings queued for removal", rel, len(mappings))
	return len(mappings)
}

// reconcile hands one item to the reconciler and returns the result label.
func (w *Watcher) reconcile(ctx context.Context, ws *vfs.Workspace, item *PendingItem) string {
	sidecar := vfs.IsSidecar(item.Target)
	kind := item.LastKind()

	var (
		transition string
		call       func() error
	)
	switch {
	case sidecar && kind == vfs.Deleted:
		transition = "remove_sidecar"
		call = func() error { return w.cfg.Reconciler.RemoveSidecar(ctx, ws, item.Target, item.OldRenamePath) }
	case sidecar && kind == vfs.Renamed:
		transition = "rename_sidecar"
		call = func() error { return w.cfg.Reconciler.RenameSidecar(ctx, ws, item.Target) }
	case sidecar:
		transition = "create_sidecar"
		call = func() error { return w.cfg.Reconciler.CreateSidecar(ctx, ws, item.Target) }
	case kind == vfs.Deleted:
		metrics.ReconcileTotal.WithLabelValues("delete_normal", "skipped").Inc()
		logging.Debug("Watcher: %s deleted before adoption", item.Key)
		return "skipped"
	default:
		transition = "create_normal"
		call = func() error { return w.cfg.Reconciler.CreateNormal(ctx, ws, item.Target) }
	}

	paths := []string{item.Target}
	if !sidecar {
		paths = append(paths, item.Target+vfs.AclExtension)
	}
	w.ignore.Add(paths...)
	defer w.releaseIgnored(paths)

	start := time.Now()
	err := call()
	metrics.ReconcileDuration.WithLabelValues(transition).Observe(time.Since(start).Seconds())

	result := "success"
	switch {
	case err == nil:
	case errors.Is(err, vfs.ErrSkipped):
		result = "skipped"
		logging.Debug("Watcher: %s %s: %v", transition, item.Key, err)
	case errors.Is(err, vfs.ErrPrecondition):
		result = "precondition"
		logging.Warn("Watcher: %s %s: %v", transition, item.Key, err)
	default:
		result = "error"
		logging.Error("Watcher: %s %s failed: %v", transition, item.Key, err)
	}
	metrics.ReconcileTotal.WithLabelValues(transition, result).Inc()
	return result
}

// releaseIgnored drops paths from the ignore set once IgnoreGrace has
// passed. The reconciler's own notifications reach the event loop after it
// returns.
func (w *Watcher) releaseIgnored(paths []string) {
	time.AfterFunc(w.cfg.IgnoreGrace, func() {
		w.ignore.Remove(paths...)
	})
}
