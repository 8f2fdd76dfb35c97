package runner

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"media-vfs/internal/aclfile"
	"media-vfs/internal/category"
	"media-vfs/internal/filesystem"
	"media-vfs/internal/logging"
	"media-vfs/internal/mediatypes"
	"media-vfs/internal/vfs"
)

const (
	identifyKeyLength   = 10
	identifyKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// tempSuffix names a physical file that is still being materialized.
	tempSuffix = ".tmp"
)

// Config wires a Runner to its collaborators. Thumbnails may be nil.
type Config struct {
	Mappings   vfs.FileMappingInfoRepository
	Contents   vfs.ContentRepository
	Resolver   *category.Resolver
	Thumbnails vfs.ThumbnailBuilder

	// Now defaults to time.Now.
	Now func() time.Time
}

// Runner applies one coalesced change to the catalog and the physical tree.
// Methods are not safe for concurrent use; the flush scheduler calls them
// from a single goroutine.
type Runner struct {
	mappings   vfs.FileMappingInfoRepository
	contents   vfs.ContentRepository
	resolver   *category.Resolver
	thumbnails vfs.ThumbnailBuilder
	now        func() time.Time
}

// New creates a Runner.
func New(cfg Config) *Runner {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		mappings:   cfg.Mappings,
		contents:   cfg.Contents,
		resolver:   cfg.Resolver,
		thumbnails: cfg.Thumbnails,
		now:        now,
	}
}

// CreateNormal adopts a file dropped into the virtual tree: the data moves to
// the physical tree, a sidecar with a fresh hash takes its place, and a
// mapping plus content are recorded. A target that no longer exists, or one
// whose path is already mapped, is skipped.
func (r *Runner) CreateNormal(ctx context.Context, ws *vfs.Workspace, target string) error {
	ok, err := filesystem.Exists(target)
	if err != nil {
		return fmt.Errorf("checking %s: %w", target, err)
	}
	if !ok {
		logging.Debug("Runner: %s is gone, skipping", target)
		return fmt.Errorf("%w: %s no longer exists", vfs.ErrSkipped, target)
	}

	rel := ws.TrimWorkspacePath(target)
	if _, err := r.mappings.LoadByPath(ctx, rel); err == nil {
		logging.Debug("Runner: %s is already mapped, skipping", rel)
		return fmt.Errorf("%w: %s already mapped", vfs.ErrSkipped, rel)
	} else if !errors.Is(err, vfs.ErrNotFound) {
		return fmt.Errorf("loading mapping for %s: %w", rel, err)
	}

	physical := ws.PhysicalAbs(rel)
	staging := physical + tempSuffix
	if err := filesystem.Move(target, staging); err != nil {
		return err
	}

	now := r.now()
	hash := aclfile.GenerateHash()
	sidecar := target + vfs.AclExtension
	if err := aclfile.WriteFile(sidecar, aclfile.New(hash, now)); err != nil {
		return errors.Join(err, r.restore(staging, target))
	}

	mapping := &vfs.FileMappingInfo{
		AclHash:         hash,
		WorkspaceID:     ws.ID,
		MappingFilePath: rel,
		MimeType:        mediatypes.MimeTypeForPath(target),
		UpdatedAt:       now,
	}
	if err := r.mappings.Save(ctx, mapping); err != nil {
		_ = os.Remove(sidecar)
		return errors.Join(fmt.Errorf("saving mapping for %s: %w", rel, err), r.restore(staging, target))
	}

	if err := filesystem.Move(staging, physical); err != nil {
		_ = os.Remove(sidecar)
		var derr error
		if e := r.mappings.Delete(ctx, mapping); e != nil {
			derr = fmt.Errorf("deleting mapping for %s: %w", rel, e)
		}
		return errors.Join(err, derr, r.restore(staging, target))
	}
	logging.Info("Runner: adopted %s (hash=%s)", rel, hash)

	content, err := r.MaterializeContent(ctx, mapping)
	if err != nil {
		return err
	}
	r.refreshThumbnail(ctx, ws, mapping, content)
	return nil
}

// restore moves a staged file back into the virtual tree after a failed adoption.
func (r *Runner) restore(staging, target string) error {
	if err := filesystem.Move(staging, target); err != nil {
		return fmt.Errorf("restoring %s: %w", target, err)
	}
	return nil
}

// CreateSidecar handles a sidecar that appeared or changed. When the sidecar
// now sits somewhere other than its mapping, the physical file follows it.
func (r *Runner) CreateSidecar(ctx context.Context, ws *vfs.Workspace, target string) error {
	mapping, moved, err := r.relocate(ctx, ws, target)
	if err != nil {
		return err
	}
	if !moved {
		logging.Debug("Runner: %s unchanged", mapping.MappingFilePath)
		return nil
	}
	return r.saveMapping(ctx, mapping)
}

// RenameSidecar handles a renamed sidecar. The mapping is saved even when
// its path did not change.
func (r *Runner) RenameSidecar(ctx context.Context, ws *vfs.Workspace, target string) error {
	mapping, _, err := r.relocate(ctx, ws, target)
	if err != nil {
		return err
	}
	return r.saveMapping(ctx, mapping)
}

func (r *Runner) saveMapping(ctx context.Context, mapping *vfs.FileMappingInfo) error {
	mapping.UpdatedAt = r.now()
	if err := r.mappings.Save(ctx, mapping); err != nil {
		return fmt.Errorf("saving mapping %d: %w", mapping.ID, err)
	}
	return nil
}

// relocate resolves the mapping of the sidecar at target and moves the
// physical file to match the sidecar's location.
func (r *Runner) relocate(ctx context.Context, ws *vfs.Workspace, target string) (*vfs.FileMappingInfo, bool, error) {
	ok, err := filesystem.Exists(target)
	if err != nil {
		return nil, false, fmt.Errorf("checking %s: %w", target, err)
	}
	if !ok {
		return nil, false, vfs.Preconditionf("sidecar %s no longer exists", target)
	}

	hash, err := aclfile.ReadHash(target)
	if err != nil {
		return nil, false, fmt.Errorf("reading sidecar: %w", err)
	}

	mapping, err := r.mappings.LoadByAclHash(ctx, hash)
	if errors.Is(err, vfs.ErrNotFound) {
		return nil, false, vfs.Preconditionf("no mapping for hash %s", hash)
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading mapping for hash %s: %w", hash, err)
	}
	if mapping.WorkspaceID != ws.ID {
		return nil, false, fmt.Errorf("%w: hash %s is in workspace %d", vfs.ErrWorkspaceMismatch, hash, mapping.WorkspaceID)
	}

	current := ws.PhysicalAbs(mapping.MappingFilePath)
	ok, err = filesystem.Exists(current)
	if err != nil {
		return nil, false, fmt.Errorf("checking %s: %w", current, err)
	}
	if !ok {
		if !mapping.LostFileFlag {
			mapping.LostFileFlag = true
			if err := r.saveMapping(ctx, mapping); err != nil {
				logging.Warn("Runner: failed to flag %s as lost: %v", mapping.MappingFilePath, err)
			}
		}
		return nil, false, vfs.Preconditionf("physical file %s is missing", current)
	}

	rel := trimSidecarExt(ws.TrimWorkspacePath(target))
	moved := rel != mapping.MappingFilePath
	if moved {
		if err := filesystem.Move(current, ws.PhysicalAbs(rel)); err != nil {
			return nil, false, err
		}
		logging.Info("Runner: %s moved to %s", mapping.MappingFilePath, rel)
		mapping.MappingFilePath = rel
	}
	if mapping.LostFileFlag {
		mapping.LostFileFlag = false
		moved = true
	}
	return mapping, moved, nil
}

// RemoveSidecar drops the mapping whose sidecar was deleted, along with the
// physical file. lastKnown is the sidecar's workspace-relative path before
// deletion; when empty, target is used.
func (r *Runner) RemoveSidecar(ctx context.Context, ws *vfs.Workspace, target, lastKnown string) error {
	rel := lastKnown
	if rel == "" {
		rel = ws.TrimWorkspacePath(target)
	}
	rel = trimSidecarExt(rel)

	mapping, err := r.mappings.LoadByPath(ctx, rel)
	if errors.Is(err, vfs.ErrNotFound) {
		return vfs.Preconditionf("no mapping for %s", rel)
	}
	if err != nil {
		return fmt.Errorf("loading mapping for %s: %w", rel, err)
	}
	if mapping.WorkspaceID != ws.ID {
		return fmt.Errorf("%w: %s is in workspace %d", vfs.ErrWorkspaceMismatch, rel, mapping.WorkspaceID)
	}

	if err := filesystem.Remove(ws.PhysicalAbs(mapping.MappingFilePath)); err != nil {
		return err
	}
	if err := r.mappings.Delete(ctx, mapping); err != nil {
		return fmt.Errorf("deleting mapping %d: %w", mapping.ID, err)
	}
	logging.Info("Runner: removed %s (hash=%s)", rel, mapping.AclHash)
	return nil
}

// MaterializeContent creates the content record for mapping, resolving its
// category from the mapping path. Only image mappings become content, and a
// mapping never gets a second content record.
func (r *Runner) MaterializeContent(ctx context.Context, mapping *vfs.FileMappingInfo) (*vfs.Content, error) {
	if !mediatypes.IsContentMimeType(mapping.MimeType) {
		return nil, fmt.Errorf("%w: %s (%s)", vfs.ErrUnsupportedMime, mapping.MappingFilePath, mapping.MimeType)
	}
	if mapping.ID != 0 {
		_, err := r.contents.LoadByFileMapping(ctx, mapping.ID)
		if err == nil {
			return nil, fmt.Errorf("%w: mapping %d", vfs.ErrContentExists, mapping.ID)
		}
		if !errors.Is(err, vfs.ErrNotFound) {
			return nil, fmt.Errorf("loading content for mapping %d: %w", mapping.ID, err)
		}
	}

	res, err := r.resolver.Resolve(ctx, mapping.MappingFilePath)
	if err != nil {
		return nil, fmt.Errorf("resolving category for %s: %w", mapping.MappingFilePath, err)
	}

	key, err := newIdentifyKey()
	if err != nil {
		return nil, err
	}
	content := &vfs.Content{
		Name:              res.Title,
		IdentifyKey:       key,
		CategoryID:        res.Category.ID,
		FileMappingInfoID: mapping.ID,
	}
	if err := r.contents.Save(ctx, content); err != nil {
		return nil, fmt.Errorf("saving content for %s: %w", mapping.MappingFilePath, err)
	}
	logging.Debug("Runner: content %d (%s) in category %d", content.ID, content.Name, content.CategoryID)
	return content, nil
}

// refreshThumbnail builds or rebuilds the content's thumbnail. Failures are
// logged; the content stays without a thumbnail.
func (r *Runner) refreshThumbnail(ctx context.Context, ws *vfs.Workspace, mapping *vfs.FileMappingInfo, content *vfs.Content) {
	if r.thumbnails == nil {
		return
	}
	path := ws.PhysicalAbs(mapping.MappingFilePath)
	key, err := r.thumbnails.BuildThumbnail(content.ThumbnailKey, path)
	if err != nil {
		logging.Warn("Runner: thumbnail for %s failed: %v", mapping.MappingFilePath, err)
		return
	}
	if key == content.ThumbnailKey {
		return
	}
	content.ThumbnailKey = key
	if err := r.contents.Save(ctx, content); err != nil {
		logging.Warn("Runner: saving thumbnail key for content %d: %v", content.ID, err)
	}
}

func trimSidecarExt(p string) string {
	if vfs.IsSidecar(p) {
		return p[:len(p)-len(filepath.Ext(p))]
	}
	return p
}

func newIdentifyKey() (string, error) {
	b := make([]byte, identifyKeyLength)
	size := big.NewInt(int64(len(identifyKeyAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("generating identify key: %w", err)
		}
		b[i] = identifyKeyAlphabet[n.Int64()]
	}
	return string(b), nil
}
