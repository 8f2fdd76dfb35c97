package watcher

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"media-vfs/internal/aclfile"
	"media-vfs/internal/metrics"
	"media-vfs/internal/vfs"
)

// Recent is one raw change folded into a pending item.
type Recent struct {
	Kind vfs.ChangeKind `json:"kind"`
	At   time.Time      `json:"at"`
}

// PendingItem is the coalesced state of one identity between flushes.
type PendingItem struct {
	Key    string `json:"key"`
	Target string `json:"target"`
	IsDir  bool   `json:"isDir"`
	// Recents is in arrival order.
	Recents    []Recent  `json:"recents"`
	LastUpdate time.Time `json:"lastUpdate"`
	// OldRenamePath is the workspace-relative path the item had before it
	// was renamed. For sidecars it tracks the last known path.
	OldRenamePath string `json:"oldRenamePath,omitempty"`
}

// LastKind returns the kind of the most recent change.
func (p *PendingItem) LastKind() vfs.ChangeKind {
	if len(p.Recents) == 0 {
		return vfs.Changed
	}
	return p.Recents[len(p.Recents)-1].Kind
}

func (p *PendingItem) clone() *PendingItem {
	cp := *p
	cp.Recents = append([]Recent(nil), p.Recents...)
	return &cp
}

// PendingStore coalesces raw changes by identity. Sidecars are keyed by
// their ACLHASH so a moved sidecar stays one item; other files are keyed by
// workspace-relative path.
type PendingStore struct {
	mu    sync.Mutex
	items map[string]*PendingItem
	now   func() time.Time
}

// NewPendingStore creates an empty store. now may be nil.
func NewPendingStore(now func() time.Time) *PendingStore {
	if now == nil {
		now = time.Now
	}
	return &PendingStore{
		items: make(map[string]*PendingItem),
		now:   now,
	}
}

// Fold records a change to the file at path. oldRel is the pre-rename
// workspace-relative path for renamed files and is otherwise empty. Folding
// a sidecar that cannot be read fails; the next change re-folds it.
func (s *PendingStore) Fold(ws *vfs.Workspace, path string, kind vfs.ChangeKind, oldRel string) error {
	rel := ws.TrimWorkspacePath(path)
	sidecar := vfs.IsSidecar(path)

	var hash string
	if sidecar && kind != vfs.Deleted {
		h, err := aclfile.ReadHash(path)
		if err != nil {
			return fmt.Errorf("reading sidecar %s: %w", rel, err)
		}
		hash = h
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var item *PendingItem
	switch {
	case sidecar && kind == vfs.Deleted:
		item = s.findByOldPathLocked(rel)
		if item == nil {
			item = s.upsertLocked(rel, path)
		}
	case sidecar:
		item = s.upsertLocked(hash, path)
	default:
		if oldRel != "" && oldRel != rel {
			s.rekeyLocked(oldRel, rel)
		}
		item = s.upsertLocked(rel, path)
		if kind == vfs.Renamed && item.OldRenamePath == "" {
			item.OldRenamePath = oldRel
		}
	}

	item.Target = path
	if sidecar {
		item.OldRenamePath = rel
	}
	item.Recents = append(item.Recents, Recent{Kind: kind, At: now})
	item.LastUpdate = now

	metrics.PendingItems.Set(float64(len(s.items)))
	return nil
}

func (s *PendingStore) upsertLocked(key, path string) *PendingItem {
	item, ok := s.items[key]
	if !ok {
		item = &PendingItem{Key: key, Target: path}
		s.items[key] = item
	}
	return item
}

// rekeyLocked moves the item under from to to, keeping its history. When
// both keys exist the histories are merged in time order.
func (s *PendingStore) rekeyLocked(from, to string) {
	old, ok := s.items[from]
	if !ok {
		return
	}
	delete(s.items, from)
	old.Key = to
	if existing, ok := s.items[to]; ok {
		old.Recents = append(old.Recents, existing.Recents...)
		sort.SliceStable(old.Recents, func(i, j int) bool { return old.Recents[i].At.Before(old.Recents[j].At) })
		if old.OldRenamePath == "" {
			old.OldRenamePath = existing.OldRenamePath
		}
	}
	s.items[to] = old
}

func (s *PendingStore) findByOldPathLocked(rel string) *PendingItem {
	for _, item := range s.items {
		if item.OldRenamePath == rel {
			return item
		}
	}
	return nil
}

// AddDeleted queues a sidecar deletion that is due at the next pass. An item
// already tracking oldRel absorbs it.
func (s *PendingStore) AddDeleted(key, target, oldRel string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.findByOldPathLocked(oldRel)
	if item == nil {
		item = s.upsertLocked(key, target)
	}
	item.Target = target
	item.OldRenamePath = oldRel
	item.Recents = append(item.Recents, Recent{Kind: vfs.Deleted, At: s.now()})
	item.LastUpdate = time.Time{}
	metrics.PendingItems.Set(float64(len(s.items)))
}

// TakeAged removes and returns the items whose last update is at least
// threshold old, oldest first.
func (s *PendingStore) TakeAged(now time.Time, threshold time.Duration) []*PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	var aged []*PendingItem
	for key, item := range s.items {
		if now.Sub(item.LastUpdate) >= threshold {
			aged = append(aged, item)
			delete(s.items, key)
		}
	}
	metrics.PendingItems.Set(float64(len(s.items)))

	sort.Slice(aged, func(i, j int) bool {
		if aged[i].LastUpdate.Equal(aged[j].LastUpdate) {
			return aged[i].Key < aged[j].Key
		}
		return aged[i].LastUpdate.Before(aged[j].LastUpdate)
	})
	return aged
}

// Len returns the number of pending items.
func (s *PendingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Get returns a copy of the item under key.
func (s *PendingStore) Get(key string) (*PendingItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return item.clone(), true
}

// Snapshot returns copies of all items ordered by key.
func (s *PendingStore) Snapshot() []*PendingItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*PendingItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Dump renders the store for logs and the debug endpoint.
func (s *PendingStore) Dump() string {
	items := s.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "pending items: %d\n", len(items))
	for _, item := range items {
		kinds := make([]string, len(item.Recents))
		for i, r := range item.Recents {
			kinds[i] = r.Kind.String()
		}
		fmt.Fprintf(&b, "%s recents=%d target=%s kinds=[%s]", item.Key, len(item.Recents), item.Target, strings.Join(kinds, ","))
		if item.OldRenamePath != "" {
			fmt.Fprintf(&b, " old=%s", item.OldRenamePath)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
