package vfs

import "context"

// FileMappingInfoRepository persists file mappings. Lookups that find
// nothing return ErrNotFound.
type FileMappingInfoRepository interface {
	LoadByAclHash(ctx context.Context, hash string) (*FileMappingInfo, error)
	LoadByPath(ctx context.Context, mappingPath string) (*FileMappingInfo, error)
	// FindPathsWithPrefix returns every mapping whose path starts with prefix.
	FindPathsWithPrefix(ctx context.Context, prefix string) ([]*FileMappingInfo, error)
	// Save inserts when m.ID is 0 and assigns the new ID, otherwise updates.
	Save(ctx context.Context, m *FileMappingInfo) error
	// Delete removes the mapping together with its content.
	Delete(ctx context.Context, m *FileMappingInfo) error
}

// CategoryRepository persists the category tree.
type CategoryRepository interface {
	Load(ctx context.Context, id int64) (*Category, error)
	FindChildren(ctx context.Context, parentID int64) ([]*Category, error)
	Save(ctx context.Context, c *Category) error
}

// ContentRepository persists content records.
type ContentRepository interface {
	LoadByFileMapping(ctx context.Context, mappingID int64) (*Content, error)
	Save(ctx context.Context, c *Content) error
}

// LabelRepository persists labels and their category attachments.
type LabelRepository interface {
	LoadByName(ctx context.Context, name, namespace string) (*Label, error)
	Save(ctx context.Context, l *Label) error
	// AttachToCategory is idempotent for the same (category, label, cause).
	AttachToCategory(ctx context.Context, categoryID, labelID int64, cause LabelCause) error
}

// AppMetaInfoRepository reads key/value application settings.
type AppMetaInfoRepository interface {
	LoadByKey(ctx context.Context, key string) (value string, found bool, err error)
}

// EventLogRepository appends audit records.
type EventLogRepository interface {
	Save(ctx context.Context, e *EventLog) error
}

// WorkspaceRepository loads workspace definitions.
type WorkspaceRepository interface {
	Load(ctx context.Context, id int64) (*Workspace, error)
}

// ThumbnailBuilder renders a thumbnail for the file at absPath. An empty key
// asks for a new thumbnail; a non-empty key rebuilds that thumbnail in place.
// The returned key identifies the stored thumbnail.
type ThumbnailBuilder interface {
	BuildThumbnail(key, absPath string) (string, error)
}
