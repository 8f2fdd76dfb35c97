// Package vfstest provides in-memory implementations of the vfs repositories
// for tests.
package vfstest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"media-vfs/internal/vfs"
)

// Store is an in-memory implementation of every vfs repository. The zero
// value is not usable; call NewStore.
type Store struct {
	mu sync.Mutex

	nextID     int64
	mappings   map[int64]*vfs.FileMappingInfo
	contents   map[int64]*vfs.Content
	categories map[int64]*vfs.Category
	labels     map[int64]*vfs.Label
	attached   map[int64][]Attachment
	settings   map[string]string
	events     []*vfs.EventLog
	workspaces map[int64]*vfs.Workspace
}

// Attachment is a recorded label attachment.
type Attachment struct {
	LabelID int64
	Cause   vfs.LabelCause
}

// NewStore returns an empty store seeded with the root category (ID 1).
func NewStore() *Store {
	s := &Store{
		nextID:     1,
		mappings:   make(map[int64]*vfs.FileMappingInfo),
		contents:   make(map[int64]*vfs.Content),
		categories: make(map[int64]*vfs.Category),
		labels:     make(map[int64]*vfs.Label),
		attached:   make(map[int64][]Attachment),
		settings:   make(map[string]string),
		workspaces: make(map[int64]*vfs.Workspace),
	}
	s.categories[1] = &vfs.Category{ID: 1, Name: "Root"}
	s.nextID = 2
	return s
}

func (s *Store) allocID() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// Mappings returns the FileMappingInfoRepository view.
func (s *Store) Mappings() vfs.FileMappingInfoRepository { return mappingRepo{s} }

// Categories returns the CategoryRepository view.
func (s *Store) Categories() vfs.CategoryRepository { return categoryRepo{s} }

// Contents returns the ContentRepository view.
func (s *Store) Contents() vfs.ContentRepository { return contentRepo{s} }

// Labels returns the LabelRepository view.
func (s *Store) Labels() vfs.LabelRepository { return labelRepo{s} }

// Settings returns the AppMetaInfoRepository view.
func (s *Store) Settings() vfs.AppMetaInfoRepository { return settingsRepo{s} }

// Events returns the EventLogRepository view.
func (s *Store) Events() vfs.EventLogRepository { return eventRepo{s} }

// Workspaces returns the WorkspaceRepository view.
func (s *Store) Workspaces() vfs.WorkspaceRepository { return workspaceRepo{s} }

// SetSetting stores a key/value setting.
func (s *Store) SetSetting(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
}

// PutWorkspace stores a workspace definition.
func (s *Store) PutWorkspace(ws vfs.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workspaces[ws.ID] = &ws
}

// AllMappings returns copies of every mapping ordered by ID.
func (s *Store) AllMappings() []vfs.FileMappingInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vfs.FileMappingInfo, 0, len(s.mappings))
	for _, m := range s.mappings {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllContents returns copies of every content record ordered by ID.
func (s *Store) AllContents() []vfs.Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vfs.Content, 0, len(s.contents))
	for _, c := range s.contents {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllCategories returns copies of every category ordered by ID.
func (s *Store) AllCategories() []vfs.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vfs.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllLabels returns copies of every label ordered by ID.
func (s *Store) AllLabels() []vfs.Label {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vfs.Label, 0, len(s.labels))
	for _, l := range s.labels {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AttachmentsOf returns the label attachments of a category.
func (s *Store) AttachmentsOf(categoryID int64) []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attachment(nil), s.attached[categoryID]...)
}

// AllEvents returns copies of every event-log entry in insertion order.
func (s *Store) AllEvents() []vfs.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vfs.EventLog, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	return out
}

type mappingRepo struct{ s *Store }

func (r mappingRepo) LoadByAclHash(_ context.Context, hash string) (*vfs.FileMappingInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.mappings {
		if m.AclHash == hash {
			cp := *m
			return &cp, nil
		}
	}
	return nil, vfs.ErrNotFound
}

func (r mappingRepo) LoadByPath(_ context.Context, mappingPath string) (*vfs.FileMappingInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.mappings {
		if m.MappingFilePath == mappingPath {
			cp := *m
			return &cp, nil
		}
	}
	return nil, vfs.ErrNotFound
}

func (r mappingRepo) FindPathsWithPrefix(_ context.Context, prefix string) ([]*vfs.FileMappingInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*vfs.FileMappingInfo
	for _, m := range r.s.mappings {
		if strings.HasPrefix(m.MappingFilePath, prefix) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r mappingRepo) Save(_ context.Context, m *vfs.FileMappingInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m.ID == 0 {
		m.ID = r.s.allocID()
	} else if _, ok := r.s.mappings[m.ID]; !ok {
		return vfs.ErrNotFound
	}
	cp := *m
	r.s.mappings[m.ID] = &cp
	return nil
}

func (r mappingRepo) Delete(_ context.Context, m *vfs.FileMappingInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.mappings[m.ID]; !ok {
		return vfs.ErrNotFound
	}
	delete(r.s.mappings, m.ID)
	for id, c := range r.s.contents {
		if c.FileMappingInfoID == m.ID {
			delete(r.s.contents, id)
		}
	}
	return nil
}

type categoryRepo struct{ s *Store }

func (r categoryRepo) Load(_ context.Context, id int64) (*vfs.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, vfs.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r categoryRepo) FindChildren(_ context.Context, parentID int64) ([]*vfs.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*vfs.Category
	for _, c := range r.s.categories {
		if c.ParentID == parentID && c.ID != parentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r categoryRepo) Save(_ context.Context, c *vfs.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.s.allocID()
	}
	cp := *c
	r.s.categories[c.ID] = &cp
	return nil
}

type contentRepo struct{ s *Store }

func (r contentRepo) LoadByFileMapping(_ context.Context, mappingID int64) (*vfs.Content, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.contents {
		if c.FileMappingInfoID == mappingID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, vfs.ErrNotFound
}

func (r contentRepo) Save(_ context.Context, c *vfs.Content) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.s.allocID()
	}
	cp := *c
	r.s.contents[c.ID] = &cp
	return nil
}

type labelRepo struct{ s *Store }

func (r labelRepo) LoadByName(_ context.Context, name, namespace string) (*vfs.Label, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.labels {
		if l.Name == name && l.Namespace == namespace {
			cp := *l
			return &cp, nil
		}
	}
	return nil, vfs.ErrNotFound
}

func (r labelRepo) Save(_ context.Context, l *vfs.Label) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l.ID == 0 {
		l.ID = r.s.allocID()
	}
	cp := *l
	r.s.labels[l.ID] = &cp
	return nil
}

func (r labelRepo) AttachToCategory(_ context.Context, categoryID, labelID int64, cause vfs.LabelCause) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.attached[categoryID] {
		if a.LabelID == labelID && a.Cause == cause {
			return nil
		}
	}
	r.s.attached[categoryID] = append(r.s.attached[categoryID], Attachment{LabelID: labelID, Cause: cause})
	return nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) LoadByKey(_ context.Context, key string) (string, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.settings[key]
	return v, ok, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) Save(_ context.Context, e *vfs.EventLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = int64(len(r.s.events) + 1)
	cp := *e
	r.s.events = append(r.s.events, &cp)
	return nil
}

type workspaceRepo struct{ s *Store }

func (r workspaceRepo) Load(_ context.Context, id int64) (*vfs.Workspace, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ws, ok := r.s.workspaces[id]
	if !ok {
		return nil, vfs.ErrNotFound
	}
	cp := *ws
	return &cp, nil
}
