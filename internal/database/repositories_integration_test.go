package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"media-vfs/internal/vfs"
)

func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath = filepath.Join(tmpDir, "test.db")

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, dbPath
}

func TestNewSeedsRootCategory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, dbPath := setupTestDB(t)
	ctx := context.Background()

	root, err := db.Categories().Load(ctx, RootCategoryID)
	if err != nil {
		t.Fatalf("Load(root) failed: %v", err)
	}
	if root.Name != "Root" || root.ParentID != 0 {
		t.Errorf("root = %+v, want Root with parent 0", root)
	}

	// Reopening must not duplicate the seed
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	db2, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db2.Close()

	if got := db2.GetStats().Categories; got != 1 {
		t.Errorf("categories after reopen = %d, want 1", got)
	}
}

func TestNewSeedsConfiguredRootCategory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	db, err := New(ctx, filepath.Join(t.TempDir(), "test.db"), WithRootCategory(7))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	root, err := db.Categories().Load(ctx, 7)
	if err != nil {
		t.Fatalf("Load(7) failed: %v", err)
	}
	if root.Name != "Root" || root.ParentID != 0 {
		t.Errorf("root = %+v, want Root with parent 0", root)
	}
	if _, err := db.Categories().Load(ctx, RootCategoryID); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Load(%d) error = %v, want ErrNotFound", RootCategoryID, err)
	}
}

func TestMappingStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := db.FileMappings()

	m := &vfs.FileMappingInfo{
		AclHash:         "hash-a",
		WorkspaceID:     1,
		MappingFilePath: filepath.Join("Vacation", "2020", "beach.png"),
		MimeType:        "image/png",
	}
	if err := store.Save(ctx, m); err != nil {
		t.Fatalf("Save(insert) failed: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("Save should assign an ID")
	}
	if m.UpdatedAt.IsZero() {
		t.Error("Save should stamp UpdatedAt")
	}

	got, err := store.LoadByAclHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("LoadByAclHash failed: %v", err)
	}
	if got.ID != m.ID || got.MappingFilePath != m.MappingFilePath || got.MimeType != "image/png" || got.LostFileFlag {
		t.Errorf("LoadByAclHash = %+v, want %+v", got, m)
	}

	got, err = store.LoadByPath(ctx, m.MappingFilePath)
	if err != nil {
		t.Fatalf("LoadByPath failed: %v", err)
	}
	if got.AclHash != "hash-a" {
		t.Errorf("LoadByPath hash = %q, want hash-a", got.AclHash)
	}

	m.MappingFilePath = filepath.Join("Vacation", "beach.png")
	m.LostFileFlag = true
	if err := store.Save(ctx, m); err != nil {
		t.Fatalf("Save(update) failed: %v", err)
	}
	got, err = store.LoadByAclHash(ctx, "hash-a")
	if err != nil {
		t.Fatalf("LoadByAclHash after update failed: %v", err)
	}
	if got.MappingFilePath != m.MappingFilePath || !got.LostFileFlag {
		t.Errorf("after update = %+v", got)
	}

	if _, err := store.LoadByAclHash(ctx, "missing"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("LoadByAclHash(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := store.LoadByPath(ctx, "missing.png"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("LoadByPath(missing) error = %v, want ErrNotFound", err)
	}

	ghost := &vfs.FileMappingInfo{ID: 999, AclHash: "ghost", MappingFilePath: "ghost.png"}
	if err := store.Save(ctx, ghost); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Save(unknown id) error = %v, want ErrNotFound", err)
	}
}

func TestMappingHashIsUnique(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := db.FileMappings()

	if err := store.Save(ctx, &vfs.FileMappingInfo{AclHash: "dup", WorkspaceID: 1, MappingFilePath: "a.png"}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if err := store.Save(ctx, &vfs.FileMappingInfo{AclHash: "dup", WorkspaceID: 1, MappingFilePath: "b.png"}); err == nil {
		t.Error("second mapping with the same hash should fail")
	}
}

func TestFindPathsWithPrefix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := db.FileMappings()

	sep := string(filepath.Separator)
	paths := []string{
		"Trip" + sep + "b.png",
		"Trip" + sep + "a.png",
		"Trip" + sep + "day1" + sep + "c.png",
		"Trip2" + sep + "d.png",
		"Tr_p" + sep + "e.png",
	}
	for i, p := range paths {
		m := &vfs.FileMappingInfo{AclHash: string(rune('a' + i)), WorkspaceID: 1, MappingFilePath: p}
		if err := store.Save(ctx, m); err != nil {
			t.Fatalf("Save(%s) failed: %v", p, err)
		}
	}

	got, err := store.FindPathsWithPrefix(ctx, "Trip"+sep)
	if err != nil {
		t.Fatalf("FindPathsWithPrefix failed: %v", err)
	}
	want := []string{"Trip" + sep + "a.png", "Trip" + sep + "b.png", "Trip" + sep + "day1" + sep + "c.png"}
	if len(got) != len(want) {
		t.Fatalf("FindPathsWithPrefix returned %d mappings, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].MappingFilePath != want[i] {
			t.Errorf("result[%d] = %s, want %s", i, got[i].MappingFilePath, want[i])
		}
	}

	none, err := store.FindPathsWithPrefix(ctx, "Nowhere"+sep)
	if err != nil {
		t.Fatalf("FindPathsWithPrefix(none) failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("FindPathsWithPrefix(none) = %d mappings, want 0", len(none))
	}
}

func TestDeleteMappingRemovesContent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	m := &vfs.FileMappingInfo{AclHash: "h", WorkspaceID: 1, MappingFilePath: "a.png", MimeType: "image/png"}
	if err := db.FileMappings().Save(ctx, m); err != nil {
		t.Fatalf("Save mapping failed: %v", err)
	}
	c := &vfs.Content{Name: "a.png", IdentifyKey: "ABCDEFGHIJ", CategoryID: RootCategoryID, FileMappingInfoID: m.ID}
	if err := db.Contents().Save(ctx, c); err != nil {
		t.Fatalf("Save content failed: %v", err)
	}

	if err := db.FileMappings().Delete(ctx, m); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := db.FileMappings().LoadByAclHash(ctx, "h"); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("mapping still present: %v", err)
	}
	if _, err := db.Contents().LoadByFileMapping(ctx, m.ID); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("content still present: %v", err)
	}
}

func TestCategoryStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := db.Categories()

	for _, name := range []string{"Vacation", "Art"} {
		if err := store.Save(ctx, &vfs.Category{Name: name, ParentID: RootCategoryID}); err != nil {
			t.Fatalf("Save(%s) failed: %v", name, err)
		}
	}

	children, err := store.FindChildren(ctx, RootCategoryID)
	if err != nil {
		t.Fatalf("FindChildren failed: %v", err)
	}
	if len(children) != 2 || children[0].Name != "Art" || children[1].Name != "Vacation" {
		t.Fatalf("FindChildren = %+v, want Art and Vacation", children)
	}

	if err := store.Save(ctx, &vfs.Category{Name: "Art", ParentID: RootCategoryID}); err == nil {
		t.Error("duplicate sibling name should fail")
	}

	art := children[0]
	art.Name = "Artwork"
	if err := store.Save(ctx, art); err != nil {
		t.Fatalf("Save(update) failed: %v", err)
	}
	got, err := store.Load(ctx, art.ID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Name != "Artwork" {
		t.Errorf("Name = %q, want Artwork", got.Name)
	}

	if _, err := store.Load(ctx, 999); !errors.Is(err, vfs.ErrNotFound) {
		t.Errorf("Load(999) error = %v, want ErrNotFound", err)
	}
}

func TestContentStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	m := &vfs.FileMappingInfo{AclHash: "h", WorkspaceID: 1, MappingFilePath: "a.png"}
	if err := db.FileMappings().Save(ctx, m); err != nil {
		t.Fatalf("Save mapping failed: %v", err)
	}

	c := &vfs.Content{Name: "a.png", IdentifyKey: "KEY0000001", CategoryID: RootCategoryID, FileMappingInfoID: m.ID}
	if err := db.Contents().Save(ctx, c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := db.Contents().LoadByFileMapping(ctx, m.ID)
	if err != nil {
		t.Fatalf("LoadByFileMapping failed: %v", err)
	}
	if got.ThumbnailKey != "" {
		t.Errorf("ThumbnailKey = %q, want empty", got.ThumbnailKey)
	}

	got.ThumbnailKey = "0123456789abcdef0123456789abcdef"
	if err := db.Contents().Save(ctx, got); err != nil {
		t.Fatalf("Save(update) failed: %v", err)
	}
	again, err := db.Contents().LoadByFileMapping(ctx, m.ID)
	if err != nil {
		t.Fatalf("LoadByFileMapping after update failed: %v", err)
	}
	if again.ThumbnailKey != got.ThumbnailKey || again.IdentifyKey != "KEY0000001" {
		t.Errorf("after update = %+v", again)
	}

	dup := &vfs.Content{Name: "b.png", IdentifyKey: "KEY0000002", CategoryID: RootCategoryID, FileMappingInfoID: m.ID}
	if err := db.Contents().Save(ctx, dup); err == nil {
		t.Error("second content for one mapping should fail")
	}
}

func TestLabelStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := db.Labels()

	if _, err := store.LoadByName(ctx, "Hawaii", vfs.LabelNamespace); !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("LoadByName(missing) error = %v, want ErrNotFound", err)
	}

	l := &vfs.Label{Name: "Hawaii", Namespace: vfs.LabelNamespace, MetaType: "Place"}
	if err := store.Save(ctx, l); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	l.MetaType = "Region"
	if err := store.Save(ctx, l); err != nil {
		t.Fatalf("Save(update) failed: %v", err)
	}
	got, err := store.LoadByName(ctx, "Hawaii", vfs.LabelNamespace)
	if err != nil {
		t.Fatalf("LoadByName failed: %v", err)
	}
	if got.ID != l.ID || got.MetaType != "Region" {
		t.Errorf("LoadByName = %+v, want id %d with Region", got, l.ID)
	}

	for i := 0; i < 2; i++ {
		if err := store.AttachToCategory(ctx, RootCategoryID, l.ID, vfs.LabelCauseExtension); err != nil {
			t.Fatalf("AttachToCategory #%d failed: %v", i+1, err)
		}
	}

	attached, err := store.LabelsOfCategory(ctx, RootCategoryID)
	if err != nil {
		t.Fatalf("LabelsOfCategory failed: %v", err)
	}
	if len(attached) != 1 || attached[0].Name != "Hawaii" {
		t.Errorf("LabelsOfCategory = %+v, want one Hawaii label", attached)
	}
}

func TestSettingStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := db.Settings()

	_, found, err := store.LoadByKey(ctx, "FullBuildCategoryNameParser1")
	if err != nil || found {
		t.Fatalf("LoadByKey(missing) = found %v, err %v", found, err)
	}

	if err := store.Set(ctx, "FullBuildCategoryNameParser1", `^(?P<CategoryName>\w+)_\d+$`); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "FullBuildCategoryNameParser1", `^(?P<CategoryName>.+)$`); err != nil {
		t.Fatalf("Set(overwrite) failed: %v", err)
	}

	value, found, err := store.LoadByKey(ctx, "FullBuildCategoryNameParser1")
	if err != nil || !found {
		t.Fatalf("LoadByKey = found %v, err %v", found, err)
	}
	if value != `^(?P<CategoryName>.+)$` {
		t.Errorf("value = %q", value)
	}

	written, err := store.SetDefaults(ctx, map[string]string{
		"FullBuildCategoryNameParser1": "ignored",
		"FullBuildCategoryNameParser2": "second",
	})
	if err != nil {
		t.Fatalf("SetDefaults failed: %v", err)
	}
	if written != 1 {
		t.Errorf("SetDefaults wrote %d, want 1", written)
	}
	value, _, _ = store.LoadByKey(ctx, "FullBuildCategoryNameParser1")
	if value != `^(?P<CategoryName>.+)$` {
		t.Errorf("SetDefaults overwrote an existing key: %q", value)
	}
}

func TestEventStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	for _, msg := range []string{"category (A) registered", "category (B) registered"} {
		e := &vfs.EventLog{EventID: vfs.EventRegisterContentVfsWatch, Sender: "Core", Message: msg}
		if err := db.Events().Save(ctx, e); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if e.ID == 0 || e.EventDate.IsZero() {
			t.Errorf("Save should assign ID and date, got %+v", e)
		}
	}

	events, err := db.Events().Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(events) != 2 || events[0].Message != "category (B) registered" {
		t.Errorf("Recent = %+v, want newest first", events)
	}
}

func TestWorkspaceStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()
	store := db.Workspaces()

	if _, err := store.Load(ctx, 1); !errors.Is(err, vfs.ErrNotFound) {
		t.Fatalf("Load(missing) error = %v, want ErrNotFound", err)
	}

	ws := &vfs.Workspace{ID: 1, Name: "default", VirtualPath: "/media/virtual", PhysicalPath: "/media/physical"}
	if err := store.Save(ctx, ws); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ws.PhysicalPath = "/mnt/physical"
	if err := store.Save(ctx, ws); err != nil {
		t.Fatalf("Save(update) failed: %v", err)
	}

	got, err := store.Load(ctx, 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *got != *ws {
		t.Errorf("Load = %+v, want %+v", got, ws)
	}

	if err := store.Save(ctx, &vfs.Workspace{Name: "no id"}); err == nil {
		t.Error("Save without id should fail")
	}
}

func TestGetStatsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	m := &vfs.FileMappingInfo{AclHash: "h", WorkspaceID: 1, MappingFilePath: "a.png"}
	if err := db.FileMappings().Save(ctx, m); err != nil {
		t.Fatalf("Save mapping failed: %v", err)
	}
	if err := db.Contents().Save(ctx, &vfs.Content{Name: "a.png", IdentifyKey: "K", CategoryID: 1, FileMappingInfoID: m.ID}); err != nil {
		t.Fatalf("Save content failed: %v", err)
	}
	if err := db.Labels().Save(ctx, &vfs.Label{Name: "x", Namespace: vfs.LabelNamespace}); err != nil {
		t.Fatalf("Save label failed: %v", err)
	}

	stats := db.GetStats()
	if stats.Mappings != 1 || stats.Contents != 1 || stats.Categories != 1 || stats.Labels != 1 {
		t.Errorf("GetStats = %+v, want 1/1/1/1", stats)
	}

	db.UpdateDBMetrics()
}

func TestBatchRollback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	db, _ := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginBatch()
	if err != nil {
		t.Fatalf("BeginBatch failed: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO app_meta_info (key, value) VALUES ('k', 'v')"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	cause := errors.New("abort")
	if err := db.EndBatch(tx, cause); !errors.Is(err, cause) {
		t.Fatalf("EndBatch error = %v, want %v", err, cause)
	}

	if _, found, _ := db.Settings().LoadByKey(ctx, "k"); found {
		t.Error("rolled back setting should not exist")
	}

}
