package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"media-vfs/internal/aclfile"
	"media-vfs/internal/category"
	"media-vfs/internal/runner"
	"media-vfs/internal/vfs"
	"media-vfs/internal/vfs/vfstest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type reconcileCall struct {
	Op        string
	Target    string
	LastKnown string
	Ignored   bool
}

type fakeReconciler struct {
	mu     sync.Mutex
	calls  []reconcileCall
	err    error
	ignore *IgnoreSet
}

func (f *fakeReconciler) record(op, target, lastKnown string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ignored := f.ignore != nil && f.ignore.Contains(target)
	f.calls = append(f.calls, reconcileCall{Op: op, Target: target, LastKnown: lastKnown, Ignored: ignored})
	return f.err
}

func (f *fakeReconciler) CreateNormal(_ context.Context, _ *vfs.Workspace, target string) error {
	return f.record("create_normal", target, "")
}

func (f *fakeReconciler) CreateSidecar(_ context.Context, _ *vfs.Workspace, target string) error {
	return f.record("create_sidecar", target, "")
}

func (f *fakeReconciler) RenameSidecar(_ context.Context, _ *vfs.Workspace, target string) error {
	return f.record("rename_sidecar", target, "")
}

func (f *fakeReconciler) RemoveSidecar(_ context.Context, _ *vfs.Workspace, target, lastKnown string) error {
	return f.record("remove_sidecar", target, lastKnown)
}

func (f *fakeReconciler) Calls() []reconcileCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]reconcileCall(nil), f.calls...)
}

type testWatcher struct {
	*Watcher
	ws    *vfs.Workspace
	clock *fakeClock
	rec   *fakeReconciler
	store *vfstest.Store
}

// newTestWatcher builds a watcher that is fed through Notify instead of fsnotify.
func newTestWatcher(t *testing.T) *testWatcher {
	t.Helper()
	ws := &vfs.Workspace{ID: 1, VirtualPath: t.TempDir(), PhysicalPath: t.TempDir()}
	clock := newFakeClock()
	store := vfstest.NewStore()
	rec := &fakeReconciler{}

	w, err := New(Config{
		Workspace:         ws,
		Mappings:          store.Mappings(),
		Reconciler:        rec,
		FlushInterval:     time.Second,
		DebounceThreshold: 10 * time.Second,
		IgnoreGrace:       500 * time.Millisecond,
		Now:               clock.Now,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec.ignore = w.Ignore()
	w.addWatchTree(ws.VirtualPath)
	return &testWatcher{Watcher: w, ws: ws, clock: clock, rec: rec, store: store}
}

func (tw *testWatcher) path(rel string) string {
	return tw.ws.VirtualAbs(rel)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func writeSidecar(t *testing.T, path string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	hash := aclfile.GenerateHash()
	if err := aclfile.WriteFile(path, aclfile.New(hash, time.Now())); err != nil {
		t.Fatal(err)
	}
	return hash
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{Reconciler: &fakeReconciler{}}); err == nil {
		t.Error("expected error without workspace")
	}
	if _, err := New(Config{Workspace: &vfs.Workspace{}}); err == nil {
		t.Error("expected error without reconciler")
	}
	w, err := New(Config{Workspace: &vfs.Workspace{}, Reconciler: &fakeReconciler{}})
	if err != nil {
		t.Fatal(err)
	}
	if w.cfg.FlushInterval != DefaultFlushInterval || w.cfg.DebounceThreshold != DefaultDebounceThreshold ||
		w.cfg.RenameWindow != DefaultRenameWindow {
		t.Errorf("defaults not applied: %+v", w.cfg)
	}
}

func TestFoldIsIdempotentPerIdentity(t *testing.T) {
	tw := newTestWatcher(t)
	sidecar := tw.path("beach.png.aclgene")
	hash := writeSidecar(t, sidecar)

	tw.Notify(Notification{Kind: vfs.Changed, Path: sidecar})
	tw.clock.Advance(time.Second)
	tw.Notify(Notification{Kind: vfs.Changed, Path: sidecar})

	if n := tw.Pending().Len(); n != 1 {
		t.Fatalf("pending items = %d, want 1", n)
	}
	item, ok := tw.Pending().Get(hash)
	if !ok {
		t.Fatalf("no item keyed by hash %s", hash)
	}
	if len(item.Recents) != 2 {
		t.Errorf("recents = %d, want 2", len(item.Recents))
	}
	if item.OldRenamePath != "beach.png.aclgene" {
		t.Errorf("OldRenamePath = %q", item.OldRenamePath)
	}
	if !item.LastUpdate.Equal(tw.clock.Now()) {
		t.Errorf("LastUpdate = %v, want %v", item.LastUpdate, tw.clock.Now())
	}
}

func TestDebounceCoalescesIntoOneCall(t *testing.T) {
	tw := newTestWatcher(t)
	file := tw.path("beach.png")
	writeFile(t, file)

	tw.Notify(Notification{Kind: vfs.Created, Path: file})
	for i := 0; i < 4; i++ {
		tw.clock.Advance(time.Second)
		tw.Notify(Notification{Kind: vfs.Changed, Path: file})
	}

	tw.clock.Advance(9 * time.Second)
	if res := tw.Flush(context.Background()); res.Reconciled != 0 || res.Remaining != 1 {
		t.Fatalf("early pass = %+v, want nothing reconciled", res)
	}

	tw.clock.Advance(time.Second)
	res := tw.Flush(context.Background())
	if res.Reconciled != 1 || res.Remaining != 0 {
		t.Fatalf("pass = %+v, want one reconciled", res)
	}

	calls := tw.rec.Calls()
	if len(calls) != 1 || calls[0].Op != "create_normal" || calls[0].Target != file {
		t.Fatalf("calls = %+v", calls)
	}
	if !calls[0].Ignored {
		t.Error("target was not ignored during reconciliation")
	}
	if !tw.Ignore().Contains(file) || !tw.Ignore().Contains(file+vfs.AclExtension) {
		t.Error("reconciled paths released before the grace period")
	}
	if !waitFor(t, 5*time.Second, func() bool { return tw.Ignore().Len() == 0 }) {
		t.Error("ignore set not cleared after the grace period")
	}
}

func TestDispatchUsesLastKind(t *testing.T) {
	tests := []struct {
		name  string
		kinds []vfs.ChangeKind
		want  string
	}{
		{"created", []vfs.ChangeKind{vfs.Created}, "create_sidecar"},
		{"changed", []vfs.ChangeKind{vfs.Created, vfs.Changed}, "create_sidecar"},
		{"renamed last", []vfs.ChangeKind{vfs.Created, vfs.Changed, vfs.Renamed}, "rename_sidecar"},
		{"created after rename", []vfs.ChangeKind{vfs.Renamed, vfs.Created}, "create_sidecar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := newTestWatcher(t)
			sidecar := tw.path("a.png.aclgene")
			writeSidecar(t, sidecar)
			for _, k := range tt.kinds {
				tw.Notify(Notification{Kind: k, Path: sidecar, OldPath: sidecar})
			}
			tw.clock.Advance(10 * time.Second)
			tw.Flush(context.Background())

			calls := tw.rec.Calls()
			if len(calls) != 1 || calls[0].Op != tt.want {
				t.Errorf("calls = %+v, want one %s", calls, tt.want)
			}
		})
	}
}

func TestNormalFileDeleteIsNoop(t *testing.T) {
	tw := newTestWatcher(t)
	file := tw.path("gone.png")
	writeFile(t, file)
	tw.Notify(Notification{Kind: vfs.Created, Path: file})
	if err := os.Remove(file); err != nil {
		t.Fatal(err)
	}
	tw.Notify(Notification{Kind: vfs.Deleted, Path: file})

	tw.clock.Advance(10 * time.Second)
	res := tw.Flush(context.Background())
	if res.Skipped != 1 || len(tw.rec.Calls()) != 0 {
		t.Errorf("pass = %+v, calls = %+v", res, tw.rec.Calls())
	}
}

func TestRenamedFileIsRekeyed(t *testing.T) {
	tw := newTestWatcher(t)
	oldPath := tw.path("a.png")
	newPath := tw.path("b.png")
	writeFile(t, newPath)

	tw.Notify(Notification{Kind: vfs.Created, Path: oldPath})
	tw.Notify(Notification{Kind: vfs.Renamed, Path: newPath, OldPath: oldPath})

	if _, ok := tw.Pending().Get("a.png"); ok {
		t.Error("old key still pending")
	}
	item, ok := tw.Pending().Get("b.png")
	if !ok {
		t.Fatal("new key not pending")
	}
	if len(item.Recents) != 2 || item.OldRenamePath != "a.png" || item.Target != newPath {
		t.Errorf("item = %+v", item)
	}

	// A second rename keeps the first old path.
	third := tw.path("c.png")
	tw.Notify(Notification{Kind: vfs.Renamed, Path: third, OldPath: newPath})
	item, _ = tw.Pending().Get("c.png")
	if item == nil || item.OldRenamePath != "a.png" || len(item.Recents) != 3 {
		t.Errorf("after second rename item = %+v", item)
	}
}

func TestSidecarDeleteMatchesLastKnownPath(t *testing.T) {
	tw := newTestWatcher(t)
	sidecar := tw.path("Trip/a.png.aclgene")
	hash := writeSidecar(t, sidecar)
	tw.addWatchTree(tw.path("Trip"))

	tw.Notify(Notification{Kind: vfs.Created, Path: sidecar})
	if err := os.Remove(sidecar); err != nil {
		t.Fatal(err)
	}
	tw.Notify(Notification{Kind: vfs.Deleted, Path: sidecar})

	if n := tw.Pending().Len(); n != 1 {
		t.Fatalf("pending = %d, want 1", n)
	}
	item, ok := tw.Pending().Get(hash)
	if !ok || item.LastKind() != vfs.Deleted {
		t.Fatalf("item = %+v", item)
	}

	tw.clock.Advance(10 * time.Second)
	tw.Flush(context.Background())
	calls := tw.rec.Calls()
	want := filepath.Join("Trip", "a.png.aclgene")
	if len(calls) != 1 || calls[0].Op != "remove_sidecar" || calls[0].LastKnown != want {
		t.Errorf("calls = %+v", calls)
	}
}

func TestUnreadableSidecarIsNotFolded(t *testing.T) {
	tw := newTestWatcher(t)
	sidecar := tw.path("partial.png.aclgene")
	if err := os.WriteFile(sidecar, []byte{0x0a}, 0o644); err != nil {
		t.Fatal(err)
	}
	tw.Notify(Notification{Kind: vfs.Created, Path: sidecar})
	if n := tw.Pending().Len(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}

	writeSidecar(t, sidecar)
	tw.Notify(Notification{Kind: vfs.Changed, Path: sidecar})
	if n := tw.Pending().Len(); n != 1 {
		t.Errorf("pending after rewrite = %d, want 1", n)
	}
}

func TestIgnoredAndNoisyPathsAreDropped(t *testing.T) {
	tw := newTestWatcher(t)
	file := tw.path("a.png")
	writeFile(t, file)

	tw.Ignore().Add(file)
	tw.Notify(Notification{Kind: vfs.Created, Path: file})
	tw.Ignore().Remove(file)

	for _, name := range []string{".hidden.png", "a.png~", "b.tmp", "c.swp", "d.part", "e.crdownload", "Thumbs.db"} {
		p := tw.path(name)
		writeFile(t, p)
		tw.Notify(Notification{Kind: vfs.Created, Path: p})
	}

	if n := tw.Pending().Len(); n != 0 {
		t.Errorf("pending = %d, want 0: %s", n, tw.DumpPending())
	}
}

func TestIsNoise(t *testing.T) {
	tests := map[string]bool{
		"/v/a.png":                false,
		"/v/a.png.aclgene":        false,
		"/v/.DS_Store":            true,
		"/v/desktop.ini":          true,
		"/v/photo.JPG.crdownload": true,
		"/v/.git":                 true,
		"/v/notes.txt":            false,
	}
	for path, want := range tests {
		if got := isNoise(path); got != want {
			t.Errorf("isNoise(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestDirectoryChangedIsDropped(t *testing.T) {
	tw := newTestWatcher(t)
	dir := tw.path("Album")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	tw.Notify(Notification{Kind: vfs.Changed, Path: dir})
	if n := tw.Pending().Len(); n != 0 {
		t.Errorf("pending = %d, want 0", n)
	}
}

func TestDirectoryCreatedEnumeratesFiles(t *testing.T) {
	tw := newTestWatcher(t)
	dir := tw.path("Album")
	writeFile(t, filepath.Join(dir, "a.png"))
	writeFile(t, filepath.Join(dir, "sub", "b.png"))
	writeFile(t, filepath.Join(dir, ".hidden", "c.png"))
	writeFile(t, filepath.Join(dir, "d.png.part"))

	tw.Notify(Notification{Kind: vfs.Created, Path: dir})

	snap := tw.Pending().Snapshot()
	if len(snap) != 2 {
		t.Fatalf("pending = %s", tw.DumpPending())
	}
	if snap[0].Key != filepath.Join("Album", "a.png") || snap[1].Key != filepath.Join("Album", "sub", "b.png") {
		t.Errorf("keys = %s, %s", snap[0].Key, snap[1].Key)
	}
	if !tw.isWatchedDir(filepath.Join(dir, "sub")) || tw.isWatchedDir(filepath.Join(dir, ".hidden")) {
		t.Error("watch set not updated")
	}
}

func TestDirectoryRenameCarriesHistory(t *testing.T) {
	tw := newTestWatcher(t)
	oldDir := tw.path("A")
	writeFile(t, filepath.Join(oldDir, "x.png"))
	tw.addWatchTree(oldDir)
	tw.Notify(Notification{Kind: vfs.Created, Path: filepath.Join(oldDir, "x.png")})

	newDir := tw.path("B")
	if err := os.Rename(oldDir, newDir); err != nil {
		t.Fatal(err)
	}
	tw.Notify(Notification{Kind: vfs.Renamed, Path: newDir, OldPath: oldDir})

	if tw.isWatchedDir(oldDir) || !tw.isWatchedDir(newDir) {
		t.Error("watches not moved to the new directory")
	}
	if n := tw.Pending().Len(); n != 1 {
		t.Fatalf("pending = %s", tw.DumpPending())
	}
	item, ok := tw.Pending().Get(filepath.Join("B", "x.png"))
	if !ok || len(item.Recents) != 2 || item.Target != filepath.Join(newDir, "x.png") {
		t.Errorf("item = %+v", item)
	}
}

func seedMapping(t *testing.T, store *vfstest.Store, rel string) {
	t.Helper()
	m := &vfs.FileMappingInfo{AclHash: aclfile.GenerateHash(), WorkspaceID: 1, MappingFilePath: rel, MimeType: "image/png"}
	if err := store.Mappings().Save(context.Background(), m); err != nil {
		t.Fatal(err)
	}
}

func TestDirectoryDeleteWithoutCreateRemovesMappings(t *testing.T) {
	tw := newTestWatcher(t)
	dir := tw.path("Trip")
	writeSidecar(t, filepath.Join(dir, "a.png.aclgene"))
	writeSidecar(t, filepath.Join(dir, "day2", "b.png.aclgene"))
	tw.addWatchTree(dir)
	seedMapping(t, tw.store, filepath.Join("Trip", "a.png"))
	seedMapping(t, tw.store, filepath.Join("Trip", "day2", "b.png"))
	seedMapping(t, tw.store, filepath.Join("Tripod", "c.png"))

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	tw.Notify(Notification{Kind: vfs.Deleted, Path: dir})
	if tw.isWatchedDir(filepath.Join(dir, "day2")) {
		t.Error("child watch survived deletion")
	}

	res := tw.Flush(context.Background())
	if res.DirsExpired != 2 || res.Reconciled != 2 {
		t.Fatalf("pass = %+v", res)
	}

	got := map[string]string{}
	for _, c := range tw.rec.Calls() {
		if c.Op != "remove_sidecar" {
			t.Errorf("unexpected call %+v", c)
		}
		got[c.LastKnown] = c.Target
	}
	for _, rel := range []string{filepath.Join("Trip", "a.png.aclgene"), filepath.Join("Trip", "day2", "b.png.aclgene")} {
		if got[rel] != tw.path(rel) {
			t.Errorf("remove for %s: target %q", rel, got[rel])
		}
	}

	// The deletion is consumed.
	if res := tw.Flush(context.Background()); res.DirsExpired != 0 {
		t.Errorf("second pass = %+v", res)
	}
}

func TestDirectoryDeleteThenCreateIsMove(t *testing.T) {
	tw := newTestWatcher(t)
	dir := tw.path("Trip")
	writeSidecar(t, filepath.Join(dir, "a.png.aclgene"))
	tw.addWatchTree(dir)
	seedMapping(t, tw.store, filepath.Join("Trip", "a.png"))

	if err := os.Rename(dir, filepath.Join(t.TempDir(), "Trip")); err != nil {
		t.Fatal(err)
	}
	tw.Notify(Notification{Kind: vfs.Deleted, Path: dir})

	moved := tw.path(filepath.Join("2020", "Trip"))
	hash := writeSidecar(t, filepath.Join(moved, "a.png.aclgene"))
	tw.Notify(Notification{Kind: vfs.Created, Path: moved})

	tw.clock.Advance(10 * time.Second)
	res := tw.Flush(context.Background())
	if res.DirsExpired != 0 {
		t.Errorf("move was treated as deletion: %+v", res)
	}
	calls := tw.rec.Calls()
	if len(calls) != 1 || calls[0].Op != "create_sidecar" {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].Target != filepath.Join(moved, "a.png.aclgene") {
		t.Errorf("target = %s", calls[0].Target)
	}
	if _, ok := tw.Pending().Get(hash); ok {
		t.Error("item still pending")
	}
}

func TestCorrelatorKeepsFirstPathForSameName(t *testing.T) {
	var c moveCorrelator
	c.Record("Trip", "/v/a/Trip")
	c.Record("Trip", "/v/b/Trip")
	if p, ok := c.Take(); !ok || p != "/v/a/Trip" {
		t.Errorf("Take() = %q, %v", p, ok)
	}

	c.Record("Trip", "/v/a/Trip")
	c.Record("Other", "/v/Other")
	if c.Match("Trip") {
		t.Error("overwritten entry still matched")
	}
	if !c.Match("Other") {
		t.Error("latest entry not matched")
	}
	if _, ok := c.Take(); ok {
		t.Error("matched entry not consumed")
	}
}

func TestSuspendedPassLeavesItems(t *testing.T) {
	tw := newTestWatcher(t)
	file := tw.path("a.png")
	writeFile(t, file)
	tw.Notify(Notification{Kind: vfs.Created, Path: file})
	tw.clock.Advance(time.Minute)

	tw.SetSuspended(true)
	res := tw.Flush(context.Background())
	if !res.Suspended || res.Remaining != 1 || len(tw.rec.Calls()) != 0 {
		t.Fatalf("suspended pass = %+v, calls = %d", res, len(tw.rec.Calls()))
	}

	// Changes are still coalesced while suspended.
	tw.Notify(Notification{Kind: vfs.Changed, Path: file})
	tw.clock.Advance(time.Minute)

	tw.SetSuspended(false)
	res = tw.Flush(context.Background())
	if res.Suspended || res.Reconciled != 1 {
		t.Errorf("resumed pass = %+v", res)
	}
}

type fakePressure struct{ paused atomic.Bool }

func (p *fakePressure) IsPaused() bool { return p.paused.Load() }

func TestPassDeferredUnderMemoryPressure(t *testing.T) {
	tw := newTestWatcher(t)
	pressure := &fakePressure{}
	pressure.paused.Store(true)
	tw.cfg.Pressure = pressure

	file := tw.path("a.png")
	writeFile(t, file)
	tw.Notify(Notification{Kind: vfs.Created, Path: file})
	tw.clock.Advance(time.Minute)

	res := tw.Flush(context.Background())
	if !res.Deferred || res.Remaining != 1 || len(tw.rec.Calls()) != 0 {
		t.Fatalf("deferred pass = %+v, calls = %d", res, len(tw.rec.Calls()))
	}

	pressure.paused.Store(false)
	res = tw.Flush(context.Background())
	if res.Deferred || res.Reconciled != 1 {
		t.Errorf("pass after recovery = %+v", res)
	}
}

func TestFailuresAreCountedAndDropped(t *testing.T) {
	tw := newTestWatcher(t)
	tw.rec.err = vfs.Preconditionf("nope")
	for _, name := range []string{"a.png", "b.png"} {
		writeFile(t, tw.path(name))
		tw.Notify(Notification{Kind: vfs.Created, Path: tw.path(name)})
	}
	tw.clock.Advance(10 * time.Second)

	res := tw.Flush(context.Background())
	if res.Failed != 2 || res.Remaining != 0 {
		t.Errorf("pass = %+v", res)
	}

	tw.rec.err = vfs.ErrSkipped
	writeFile(t, tw.path("c.png"))
	tw.Notify(Notification{Kind: vfs.Created, Path: tw.path("c.png")})
	tw.clock.Advance(10 * time.Second)
	if res := tw.Flush(context.Background()); res.Skipped != 1 {
		t.Errorf("pass = %+v", res)
	}
}

func TestWorkspaceReloadedPerPass(t *testing.T) {
	tw := newTestWatcher(t)
	var seen *vfs.Workspace
	rec := reconcilerFunc(func(ws *vfs.Workspace) { seen = ws })
	w, err := New(Config{
		Workspace:  tw.ws,
		Workspaces: tw.store.Workspaces(),
		Reconciler: rec,
		Now:        tw.clock.Now,
	})
	if err != nil {
		t.Fatal(err)
	}
	reloaded := *tw.ws
	reloaded.Name = "reloaded"
	tw.store.PutWorkspace(reloaded)

	file := tw.path("a.png")
	writeFile(t, file)
	w.Notify(Notification{Kind: vfs.Created, Path: file})
	tw.clock.Advance(time.Minute)
	w.Flush(context.Background())

	if seen == nil || seen.Name != "reloaded" {
		t.Errorf("reconciler saw workspace %+v", seen)
	}
}

type reconcilerFunc func(ws *vfs.Workspace)

func (f reconcilerFunc) CreateNormal(_ context.Context, ws *vfs.Workspace, _ string) error {
	f(ws)
	return nil
}
func (f reconcilerFunc) CreateSidecar(_ context.Context, ws *vfs.Workspace, _ string) error {
	f(ws)
	return nil
}
func (f reconcilerFunc) RenameSidecar(_ context.Context, ws *vfs.Workspace, _ string) error {
	f(ws)
	return nil
}
func (f reconcilerFunc) RemoveSidecar(_ context.Context, ws *vfs.Workspace, _, _ string) error {
	f(ws)
	return nil
}

func TestDumpPending(t *testing.T) {
	tw := newTestWatcher(t)
	oldPath := tw.path("a.png")
	newPath := tw.path("b.png")
	writeFile(t, newPath)
	tw.Notify(Notification{Kind: vfs.Renamed, Path: newPath, OldPath: oldPath})

	dump := tw.DumpPending()
	for _, want := range []string{"pending items: 1", "b.png recents=1", "kinds=[renamed]", "old=a.png"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}

func TestStatus(t *testing.T) {
	tw := newTestWatcher(t)
	writeFile(t, tw.path("a.png"))
	tw.Notify(Notification{Kind: vfs.Created, Path: tw.path("a.png")})

	s := tw.Status()
	if s.WorkspaceID != 1 || s.Pending != 1 || s.Running || s.WatchedDirectories != 1 {
		t.Errorf("status = %+v", s)
	}
	if !s.LastFlush.IsZero() {
		t.Error("LastFlush set before any pass")
	}
	tw.Flush(context.Background())
	if tw.Status().LastFlush.IsZero() {
		t.Error("LastFlush not set after a pass")
	}
}

func TestIgnoreSetCounts(t *testing.T) {
	s := NewIgnoreSet()
	s.Add("/a", "/a", "/b")
	s.Remove("/a")
	if !s.Contains("/a") {
		t.Error("/a released after one of two removes")
	}
	s.Remove("/a", "/b", "/c")
	if s.Contains("/a") || s.Contains("/b") || s.Len() != 0 {
		t.Errorf("set not empty: %d", s.Len())
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestStartWatchesTree(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fsnotify test in short mode")
	}

	ws := &vfs.Workspace{ID: 1, VirtualPath: t.TempDir(), PhysicalPath: t.TempDir()}
	existing := filepath.Join(ws.VirtualPath, "old.png")
	writeFile(t, existing)
	rec := &fakeReconciler{}

	w, err := New(Config{
		Workspace:         ws,
		Reconciler:        rec,
		FlushInterval:     20 * time.Millisecond,
		DebounceThreshold: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}()
	if err := w.Start(); err == nil {
		t.Error("second Start() should fail")
	}

	dropped := filepath.Join(ws.VirtualPath, "Album", "new.png")
	writeFile(t, dropped)
	renamed := filepath.Join(ws.VirtualPath, "renamed.png")
	if err := os.Rename(existing, renamed); err != nil {
		t.Fatal(err)
	}

	ok := waitFor(t, 5*time.Second, func() bool {
		targets := map[string]bool{}
		for _, c := range rec.Calls() {
			targets[c.Target] = true
		}
		return targets[dropped] && targets[renamed]
	})
	if !ok {
		t.Fatalf("reconciler calls = %+v", rec.Calls())
	}
	for _, c := range rec.Calls() {
		if c.Op != "create_normal" {
			t.Errorf("unexpected call %+v", c)
		}
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false while started")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w, err := New(Config{Workspace: &vfs.Workspace{VirtualPath: t.TempDir()}, Reconciler: &fakeReconciler{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() before Start = %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}

func TestPairable(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want bool
	}{
		{"file to file", "/v/a.png", "/v/b.png", true},
		{"sidecar to sidecar", "/v/a.png.aclgene", "/v/b/a.png.aclgene", true},
		{"sidecar to temp file", "/v/a.png.aclgene", "/v/.goutputstream-ABC", false},
		{"file to partial download", "/v/a.png", "/v/a.png.part", false},
		{"file to sidecar", "/v/a.png", "/v/a.png.aclgene", false},
		{"sidecar to file", "/v/a.png.aclgene", "/v/a.png", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pairable(tt.old, tt.new); got != tt.want {
				t.Errorf("pairable(%q, %q) = %v, want %v", tt.old, tt.new, got, tt.want)
			}
		})
	}
}

func TestSidecarMovedOutBesideTempFileIsDeleted(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fsnotify test in short mode")
	}

	ws := &vfs.Workspace{ID: 1, VirtualPath: t.TempDir(), PhysicalPath: t.TempDir()}
	sidecar := filepath.Join(ws.VirtualPath, "Album", "a.png.aclgene")
	writeSidecar(t, sidecar)
	trash := filepath.Join(t.TempDir(), "a.png.aclgene")
	rec := &fakeReconciler{}

	w, err := New(Config{
		Workspace:         ws,
		Reconciler:        rec,
		FlushInterval:     20 * time.Millisecond,
		DebounceThreshold: 50 * time.Millisecond,
		RenameWindow:      time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.Rename(sidecar, trash); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(ws.VirtualPath, "Album", ".goutputstream-ABC"))

	ok := waitFor(t, 5*time.Second, func() bool {
		for _, c := range rec.Calls() {
			if c.Op == "remove_sidecar" && c.Target == sidecar {
				return true
			}
		}
		return false
	})
	if !ok {
		t.Fatalf("sidecar removal not reconciled, calls = %+v", rec.Calls())
	}
}

func TestAdoptionDoesNotReconcileItsOwnWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping fsnotify test in short mode")
	}

	ws := &vfs.Workspace{ID: 1, VirtualPath: t.TempDir(), PhysicalPath: t.TempDir()}
	store := vfstest.NewStore()
	thumbs := &vfstest.Thumbnails{}
	rn := runner.New(runner.Config{
		Mappings: store.Mappings(),
		Contents: store.Contents(),
		Resolver: category.NewResolver(category.Config{
			Categories: store.Categories(),
			Labels:     store.Labels(),
			Settings:   store.Settings(),
			Events:     store.Events(),
		}),
		Thumbnails: thumbs,
	})

	w, err := New(Config{
		Workspace:         ws,
		Mappings:          store.Mappings(),
		Reconciler:        rn,
		FlushInterval:     20 * time.Millisecond,
		DebounceThreshold: 50 * time.Millisecond,
		IgnoreGrace:       2 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	writeFile(t, filepath.Join(ws.VirtualPath, "beach.png"))

	if !waitFor(t, 5*time.Second, func() bool { return len(store.AllContents()) == 1 }) {
		t.Fatalf("file not adopted, mappings = %+v", store.AllMappings())
	}
	adopted := store.AllMappings()[0]

	// Give the sidecar's own notifications time to come through.
	time.Sleep(500 * time.Millisecond)

	if n := thumbs.CallCount(); n != 1 {
		t.Errorf("thumbnail builds = %d, want 1", n)
	}
	if after := store.AllMappings(); len(after) != 1 || !after[0].UpdatedAt.Equal(adopted.UpdatedAt) {
		t.Errorf("mapping saved again after adoption: before %+v after %+v", adopted, after)
	}
	if n := w.Pending().Len(); n != 0 {
		t.Errorf("pending items = %d, want 0:\n%s", n, w.DumpPending())
	}
}
