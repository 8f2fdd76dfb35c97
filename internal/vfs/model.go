package vfs

import (
	"path/filepath"
	"strings"
	"time"
)

// AclExtension is the file extension of identity sidecar files.
const AclExtension = ".aclgene"

// LabelNamespace is the namespace assigned to labels produced by path parsing.
const LabelNamespace = "Vfs"

// LabelCause records how a label became attached to a category.
type LabelCause string

// LabelCauseExtension marks labels attached by the watcher's label rules.
const LabelCauseExtension LabelCause = "extension"

// EventRegisterContentVfsWatch is the event-log code written when the
// watcher registers a new category.
const EventRegisterContentVfsWatch = 1001

// MsgNewCategory is published after a category is created from a parsed segment.
const MsgNewCategory = "Pixstock.MSG_NEWCATEGORY"

// Workspace pairs the virtual tree users edit with the physical tree that
// holds the actual file data.
type Workspace struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	VirtualPath  string `json:"virtualPath"`
	PhysicalPath string `json:"physicalPath"`
}

// TrimWorkspacePath converts an absolute path under either workspace root to
// a workspace-relative path. The root itself maps to "". Paths outside both
// roots are returned cleaned but otherwise unchanged.
func (w *Workspace) TrimWorkspacePath(absPath string) string {
	clean := filepath.Clean(absPath)
	for _, root := range []string{w.VirtualPath, w.PhysicalPath} {
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(filepath.Clean(root), clean)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if rel == "." {
			return ""
		}
		return rel
	}
	return clean
}

// VirtualAbs returns the absolute path of rel inside the virtual tree.
func (w *Workspace) VirtualAbs(rel string) string {
	return filepath.Join(w.VirtualPath, rel)
}

// PhysicalAbs returns the absolute path of rel inside the physical tree.
func (w *Workspace) PhysicalAbs(rel string) string {
	return filepath.Join(w.PhysicalPath, rel)
}

// IsSidecar reports whether path names an identity sidecar file.
func IsSidecar(path string) bool {
	return strings.EqualFold(filepath.Ext(path), AclExtension)
}

// FileMappingInfo links a sidecar hash to the file's location in the
// physical tree. MappingFilePath is workspace-relative and never carries the
// sidecar extension.
type FileMappingInfo struct {
	ID              int64     `json:"id"`
	AclHash         string    `json:"aclHash"`
	WorkspaceID     int64     `json:"workspaceId"`
	MappingFilePath string    `json:"mappingFilePath"`
	MimeType        string    `json:"mimeType"`
	LostFileFlag    bool      `json:"lostFile"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Content is the catalog entry materialized for a mapped file.
type Content struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	IdentifyKey       string `json:"identifyKey"`
	ThumbnailKey      string `json:"thumbnailKey,omitempty"`
	CategoryID        int64  `json:"categoryId"`
	FileMappingInfoID int64  `json:"fileMappingInfoId"`
}

// Category is a node of the category tree. ParentID 0 marks a top-level node.
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID int64  `json:"parentId"`
}

// Label is identified by its (Name, Namespace) pair.
type Label struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	MetaType  string `json:"metaType"`
}

// EventLog is an audit record.
type EventLog struct {
	ID        int64     `json:"id"`
	EventID   int       `json:"eventId"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	EventDate time.Time `json:"eventDate"`
}

// ChangeKind is the kind of a filesystem change notification.
type ChangeKind int

const (
	// Created is a new entry appearing in the tree.
	Created ChangeKind = iota
	// Changed is a content or attribute change.
	Changed
	// Deleted is an entry leaving the tree.
	Deleted
	// Renamed is an entry moving within the tree.
	Renamed
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}
