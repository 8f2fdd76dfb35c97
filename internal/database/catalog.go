package database

import (
	"context"
	"database/sql"
	"fmt"

	"media-vfs/internal/vfs"
)

// CategoryStore is the categories table. It implements vfs.CategoryRepository.
type CategoryStore struct {
	d *Database
}

// Categories returns the category repository.
func (d *Database) Categories() *CategoryStore {
	return &CategoryStore{d: d}
}

// Load returns the category with id.
func (s *CategoryStore) Load(ctx context.Context, id int64) (c *vfs.Category, err error) {
	done := observeQuery("load_category")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	c = &vfs.Category{}
	err = s.d.db.QueryRowContext(ctx,
		"SELECT id, name, parent_id FROM categories WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.ParentID)
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	return c, nil
}

// FindChildren returns the direct children of parentID ordered by name.
func (s *CategoryStore) FindChildren(ctx context.Context, parentID int64) (out []*vfs.Category, err error) {
	done := observeQuery("find_children")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.d.db.QueryContext(ctx,
		"SELECT id, name, parent_id FROM categories WHERE parent_id = ? AND id != parent_id ORDER BY name", parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c vfs.Category
		if err = rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	err = rows.Err()
	return out, err
}

// Save inserts c when its ID is 0, otherwise updates the row.
func (s *CategoryStore) Save(ctx context.Context, c *vfs.Category) (err error) {
	done := observeQuery("save_category")
	defer func() { done(err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if c.ID == 0 {
		var result sql.Result
		result, err = s.d.db.ExecContext(ctx,
			"INSERT INTO categories (name, parent_id) VALUES (?, ?)", c.Name, c.ParentID)
		if err != nil {
			return fmt.Errorf("failed to create category %q: %w", c.Name, err)
		}
		c.ID, err = result.LastInsertId()
		return err
	}

	_, err = s.d.db.ExecContext(ctx,
		"UPDATE categories SET name = ?, parent_id = ? WHERE id = ?", c.Name, c.ParentID, c.ID)
	return err
}

// ContentStore is the contents table. It implements vfs.ContentRepository.
type ContentStore struct {
	d *Database
}

// Contents returns the content repository.
func (d *Database) Contents() *ContentStore {
	return &ContentStore{d: d}
}

// LoadByFileMapping returns the content materialized for mappingID.
func (s *ContentStore) LoadByFileMapping(ctx context.Context, mappingID int64) (c *vfs.Content, err error) {
	done := observeQuery("load_content")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	c = &vfs.Content{}
	var thumb sql.NullString
	err = s.d.db.QueryRowContext(ctx, `
		SELECT id, name, identify_key, thumbnail_key, category_id, file_mapping_id
		FROM contents WHERE file_mapping_id = ?
	`, mappingID).Scan(&c.ID, &c.Name, &c.IdentifyKey, &thumb, &c.CategoryID, &c.FileMappingInfoID)
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	if thumb.Valid {
		c.ThumbnailKey = thumb.String
	}
	return c, nil
}

// Save inserts c when its ID is 0, otherwise updates the row.
func (s *ContentStore) Save(ctx context.Context, c *vfs.Content) (err error) {
	done := observeQuery("save_content")
	defer func() { done(err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	thumb := sql.NullString{String: c.ThumbnailKey, Valid: c.ThumbnailKey != ""}

	if c.ID == 0 {
		var result sql.Result
		result, err = s.d.db.ExecContext(ctx, `
			INSERT INTO contents (name, identify_key, thumbnail_key, category_id, file_mapping_id)
			VALUES (?, ?, ?, ?, ?)
		`, c.Name, c.IdentifyKey, thumb, c.CategoryID, c.FileMappingInfoID)
		if err != nil {
			return fmt.Errorf("failed to create content %q: %w", c.Name, err)
		}
		c.ID, err = result.LastInsertId()
		return err
	}

	_, err = s.d.db.ExecContext(ctx, `
		UPDATE contents
		SET name = ?, identify_key = ?, thumbnail_key = ?, category_id = ?, file_mapping_id = ?
		WHERE id = ?
	`, c.Name, c.IdentifyKey, thumb, c.CategoryID, c.FileMappingInfoID, c.ID)
	return err
}

// LabelStore is the labels table and its category attachments. It
// implements vfs.LabelRepository.
type LabelStore struct {
	d *Database
}

// Labels returns the label repository.
func (d *Database) Labels() *LabelStore {
	return &LabelStore{d: d}
}

// LoadByName returns the label identified by (name, namespace).
func (s *LabelStore) LoadByName(ctx context.Context, name, namespace string) (l *vfs.Label, err error) {
	done := observeQuery("load_label")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	l = &vfs.Label{}
	err = s.d.db.QueryRowContext(ctx,
		"SELECT id, name, namespace, meta_type FROM labels WHERE name = ? AND namespace = ?", name, namespace,
	).Scan(&l.ID, &l.Name, &l.Namespace, &l.MetaType)
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	return l, nil
}

// Save inserts l when its ID is 0, otherwise updates the row.
func (s *LabelStore) Save(ctx context.Context, l *vfs.Label) (err error) {
	done := observeQuery("save_label")
	defer func() { done(err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if l.ID == 0 {
		var result sql.Result
		result, err = s.d.db.ExecContext(ctx,
			"INSERT INTO labels (name, namespace, meta_type) VALUES (?, ?, ?)", l.Name, l.Namespace, l.MetaType)
		if err != nil {
			return fmt.Errorf("failed to create label %q: %w", l.Name, err)
		}
		l.ID, err = result.LastInsertId()
		return err
	}

	_, err = s.d.db.ExecContext(ctx,
		"UPDATE labels SET name = ?, namespace = ?, meta_type = ? WHERE id = ?", l.Name, l.Namespace, l.MetaType, l.ID)
	return err
}

// AttachToCategory links labelID to categoryID. Attaching twice with the
// same cause is a no-op.
func (s *LabelStore) AttachToCategory(ctx context.Context, categoryID, labelID int64, cause vfs.LabelCause) (err error) {
	done := observeQuery("attach_label")
	defer func() { done(err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO category_labels (category_id, label_id, cause) VALUES (?, ?, ?)",
		categoryID, labelID, string(cause))
	return err
}

// LabelsOfCategory returns the labels attached to categoryID ordered by name.
func (s *LabelStore) LabelsOfCategory(ctx context.Context, categoryID int64) (out []*vfs.Label, err error) {
	done := observeQuery("load_label")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.d.db.QueryContext(ctx, `
		SELECT DISTINCT l.id, l.name, l.namespace, l.meta_type
		FROM labels l
		INNER JOIN category_labels cl ON cl.label_id = l.id
		WHERE cl.category_id = ?
		ORDER BY l.name
	`, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l vfs.Label
		if err = rows.Scan(&l.ID, &l.Name, &l.Namespace, &l.MetaType); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	err = rows.Err()
	return out, err
}
