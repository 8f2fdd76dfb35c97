package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"media-vfs/internal/vfs"
)

// MappingStore is the file_mappings table. It implements
// vfs.FileMappingInfoRepository.
type MappingStore struct {
	d *Database
}

// FileMappings returns the file mapping repository.
func (d *Database) FileMappings() *MappingStore {
	return &MappingStore{d: d}
}

const mappingColumns = "id, acl_hash, workspace_id, mapping_file_path, mime_type, lost_file, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMapping(row rowScanner) (*vfs.FileMappingInfo, error) {
	var (
		m         vfs.FileMappingInfo
		lost      int
		updatedAt int64
	)
	if err := row.Scan(&m.ID, &m.AclHash, &m.WorkspaceID, &m.MappingFilePath, &m.MimeType, &lost, &updatedAt); err != nil {
		return nil, err
	}
	m.LostFileFlag = lost != 0
	m.UpdatedAt = time.Unix(updatedAt, 0)
	return &m, nil
}

// LoadByAclHash returns the mapping owning hash.
func (s *MappingStore) LoadByAclHash(ctx context.Context, hash string) (*vfs.FileMappingInfo, error) {
	return s.loadOne(ctx, "acl_hash", hash)
}

// LoadByPath returns the mapping at the workspace-relative mappingPath.
func (s *MappingStore) LoadByPath(ctx context.Context, mappingPath string) (*vfs.FileMappingInfo, error) {
	return s.loadOne(ctx, "mapping_file_path", mappingPath)
}

func (s *MappingStore) loadOne(ctx context.Context, column, value string) (m *vfs.FileMappingInfo, err error) {
	done := observeQuery("load_mapping")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// column is one of two constants above
	query := "SELECT " + mappingColumns + " FROM file_mappings WHERE " + column + " = ? ORDER BY id LIMIT 1"
	m, err = scanMapping(s.d.db.QueryRowContext(ctx, query, value))
	if err != nil {
		return nil, notFound(err)
	}
	return m, nil
}

// FindPathsWithPrefix returns the mappings whose path starts with prefix,
// ordered by path.
func (s *MappingStore) FindPathsWithPrefix(ctx context.Context, prefix string) (out []*vfs.FileMappingInfo, err error) {
	done := observeQuery("find_mappings")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// substr keeps LIKE wildcards in file names from matching
	rows, err := s.d.db.QueryContext(ctx,
		"SELECT "+mappingColumns+" FROM file_mappings WHERE substr(mapping_file_path, 1, length(?)) = ? ORDER BY mapping_file_path",
		prefix, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		m, scanErr := scanMapping(rows)
		if scanErr != nil {
			err = scanErr
			return nil, err
		}
		out = append(out, m)
	}
	err = rows.Err()
	return out, err
}

// Save inserts m when its ID is 0, otherwise updates the row.
func (s *MappingStore) Save(ctx context.Context, m *vfs.FileMappingInfo) (err error) {
	done := observeQuery("save_mapping")
	defer func() { done(err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now()
	lost := 0
	if m.LostFileFlag {
		lost = 1
	}

	if m.ID == 0 {
		var result sql.Result
		result, err = s.d.db.ExecContext(ctx, `
			INSERT INTO file_mappings (acl_hash, workspace_id, mapping_file_path, mime_type, lost_file, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, m.AclHash, m.WorkspaceID, m.MappingFilePath, m.MimeType, lost, now.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert mapping %s: %w", m.MappingFilePath, err)
		}
		m.ID, err = result.LastInsertId()
		if err != nil {
			return err
		}
		m.UpdatedAt = time.Unix(now.Unix(), 0)
		return nil
	}

	result, err := s.d.db.ExecContext(ctx, `
		UPDATE file_mappings
		SET acl_hash = ?, workspace_id = ?, mapping_file_path = ?, mime_type = ?, lost_file = ?, updated_at = ?
		WHERE id = ?
	`, m.AclHash, m.WorkspaceID, m.MappingFilePath, m.MimeType, lost, now.Unix(), m.ID)
	if err != nil {
		return fmt.Errorf("failed to update mapping %d: %w", m.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = vfs.ErrNotFound
		return err
	}
	m.UpdatedAt = time.Unix(now.Unix(), 0)
	return nil
}

// Delete removes m and its content in one transaction.
func (s *MappingStore) Delete(ctx context.Context, m *vfs.FileMappingInfo) (err error) {
	done := observeQuery("delete_mapping")
	defer func() { done(err) }()

	tx, err := s.d.BeginBatch()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var txErr error
	if _, txErr = tx.ExecContext(ctx, "DELETE FROM contents WHERE file_mapping_id = ?", m.ID); txErr == nil {
		_, txErr = tx.ExecContext(ctx, "DELETE FROM file_mappings WHERE id = ?", m.ID)
	}
	if txErr != nil {
		txErr = fmt.Errorf("failed to delete mapping %d: %w", m.ID, txErr)
	}
	err = s.d.EndBatch(tx, txErr)
	return err
}
