package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"media-vfs/internal/vfs"
)

// SettingStore is the app_meta_info table. It implements
// vfs.AppMetaInfoRepository.
type SettingStore struct {
	d *Database
}

// Settings returns the settings repository.
func (d *Database) Settings() *SettingStore {
	return &SettingStore{d: d}
}

// LoadByKey returns the value stored under key.
func (s *SettingStore) LoadByKey(ctx context.Context, key string) (value string, found bool, err error) {
	done := observeQuery("load_setting")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = s.d.db.QueryRowContext(ctx, "SELECT value FROM app_meta_info WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set stores value under key.
func (s *SettingStore) Set(ctx context.Context, key, value string) (err error) {
	done := observeQuery("save_setting")
	defer func() { done(err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.d.db.ExecContext(ctx, `
		INSERT INTO app_meta_info (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// SetDefaults stores every entry of values whose key is not set yet and
// returns how many were written.
func (s *SettingStore) SetDefaults(ctx context.Context, values map[string]string) (int, error) {
	tx, err := s.d.BeginBatch()
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	written := 0
	var txErr error
	for key, value := range values {
		result, execErr := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO app_meta_info (key, value) VALUES (?, ?)", key, value)
		if execErr != nil {
			txErr = fmt.Errorf("failed to store default %s: %w", key, execErr)
			break
		}
		if n, _ := result.RowsAffected(); n > 0 {
			written++
		}
	}
	if err := s.d.EndBatch(tx, txErr); err != nil {
		return 0, err
	}
	return written, nil
}

// EventStore is the event_logs table. It implements vfs.EventLogRepository.
type EventStore struct {
	d *Database
}

// Events returns the event log repository.
func (d *Database) Events() *EventStore {
	return &EventStore{d: d}
}

// Save appends e. A zero EventDate is stamped with the current time.
func (s *EventStore) Save(ctx context.Context, e *vfs.EventLog) (err error) {
	done := observeQuery("save_event")
	defer func() { done(err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if e.EventDate.IsZero() {
		e.EventDate = time.Now()
	}

	result, err := s.d.db.ExecContext(ctx,
		"INSERT INTO event_logs (event_id, sender, message, event_date) VALUES (?, ?, ?, ?)",
		e.EventID, e.Sender, e.Message, e.EventDate.Unix())
	if err != nil {
		return err
	}
	e.ID, err = result.LastInsertId()
	return err
}

// Recent returns up to limit events, newest first.
func (s *EventStore) Recent(ctx context.Context, limit int) (out []*vfs.EventLog, err error) {
	done := observeQuery("load_event")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.d.db.QueryContext(ctx,
		"SELECT id, event_id, sender, message, event_date FROM event_logs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e    vfs.EventLog
			date int64
		)
		if err = rows.Scan(&e.ID, &e.EventID, &e.Sender, &e.Message, &date); err != nil {
			return nil, err
		}
		e.EventDate = time.Unix(date, 0)
		out = append(out, &e)
	}
	err = rows.Err()
	return out, err
}

// WorkspaceStore is the workspaces table. It implements
// vfs.WorkspaceRepository.
type WorkspaceStore struct {
	d *Database
}

// Workspaces returns the workspace repository.
func (d *Database) Workspaces() *WorkspaceStore {
	return &WorkspaceStore{d: d}
}

// Load returns the workspace with id.
func (s *WorkspaceStore) Load(ctx context.Context, id int64) (ws *vfs.Workspace, err error) {
	done := observeQuery("load_workspace")
	defer func() { done(err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	ws = &vfs.Workspace{}
	err = s.d.db.QueryRowContext(ctx,
		"SELECT id, name, virtual_path, physical_path FROM workspaces WHERE id = ?", id,
	).Scan(&ws.ID, &ws.Name, &ws.VirtualPath, &ws.PhysicalPath)
	if err != nil {
		err = notFound(err)
		return nil, err
	}
	return ws, nil
}

// Save inserts or replaces the workspace with ws.ID.
func (s *WorkspaceStore) Save(ctx context.Context, ws *vfs.Workspace) (err error) {
	done := observeQuery("save_workspace")
	defer func() { done(err) }()

	if ws.ID == 0 {
		err = errors.New("workspace id is required")
		return err
	}

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.d.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, virtual_path, physical_path) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			virtual_path = excluded.virtual_path,
			physical_path = excluded.physical_path
	`, ws.ID, ws.Name, ws.VirtualPath, ws.PhysicalPath)
	return err
}
