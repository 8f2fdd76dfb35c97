package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-vfs/internal/logging"
	"media-vfs/internal/metrics"
	"media-vfs/internal/vfs"
	"media-vfs/internal/workers"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// RootCategoryID is the category seeded on first initialization unless
// WithRootCategory says otherwise.
const RootCategoryID int64 = 1

// Database is the SQLite store behind every catalog repository.
type Database struct {
	db      *sql.DB
	dbPath  string
	rootID  int64
	mu      sync.RWMutex
	txStart time.Time // Track transaction start time for metrics
}

// Option configures a Database.
type Option func(*Database)

// WithRootCategory seeds the root category under id instead of RootCategoryID.
func WithRootCategory(id int64) Option {
	return func(d *Database) {
		if id > 0 {
			d.rootID = id
		}
	}
}

// New creates a new Database instance.
// IMPORTANT: dbPath should be the full path to the database FILE (e.g., "/database/media-vfs.db"),
// and the parent directory must already exist and be writable.
// Use startup.LoadConfig() to ensure proper directory validation before calling this.
func New(ctx context.Context, dbPath string, opts ...Option) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// Use WAL mode and other optimizations
	// busy_timeout helps prevent "database is locked" errors
	// foreign_keys makes content rows follow their mapping on delete
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_foreign_keys=1", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// A single flush goroutine writes; the control API reads
	maxConns := workers.ForIO(workers.DBConnectionsEnv, 10)
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(max(1, maxConns/2))
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
		rootID: RootCategoryID,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS workspaces (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		virtual_path TEXT NOT NULL,
		physical_path TEXT NOT NULL
	);

	-- One row per identity hash
	CREATE TABLE IF NOT EXISTS file_mappings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		acl_hash TEXT NOT NULL UNIQUE,
		workspace_id INTEGER NOT NULL,
		mapping_file_path TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		lost_file INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_file_mappings_path ON file_mappings(mapping_file_path);

	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		parent_id INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(parent_id, name)
	);

	CREATE TABLE IF NOT EXISTS contents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		identify_key TEXT NOT NULL UNIQUE,
		thumbnail_key TEXT,
		category_id INTEGER NOT NULL,
		file_mapping_id INTEGER NOT NULL UNIQUE,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (file_mapping_id) REFERENCES file_mappings(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_contents_category ON contents(category_id);

	CREATE TABLE IF NOT EXISTS labels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		namespace TEXT NOT NULL,
		meta_type TEXT NOT NULL DEFAULT '',
		UNIQUE(name, namespace)
	);

	CREATE TABLE IF NOT EXISTS category_labels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		category_id INTEGER NOT NULL,
		label_id INTEGER NOT NULL,
		cause TEXT NOT NULL,
		FOREIGN KEY (category_id) REFERENCES categories(id) ON DELETE CASCADE,
		FOREIGN KEY (label_id) REFERENCES labels(id) ON DELETE CASCADE,
		UNIQUE(category_id, label_id, cause)
	);

	CREATE INDEX IF NOT EXISTS idx_category_labels_label ON category_labels(label_id);

	-- Application settings, including the path parser rules
	CREATE TABLE IF NOT EXISTS app_meta_info (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS event_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER NOT NULL,
		sender TEXT NOT NULL,
		message TEXT NOT NULL,
		event_date INTEGER NOT NULL
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	_, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO categories (id, name, parent_id) VALUES (?, 'Root', 0)", d.rootID)
	if err != nil {
		return fmt.Errorf("failed to seed root category: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
// Note: Acquires write lock only during transaction begin, not for entire duration.
func (d *Database) BeginBatch() (*sql.Tx, error) {
	d.mu.Lock()
	txStart := time.Now()

	// Transaction lifetime is managed by EndBatch, not a timeout.
	tx, err := d.db.BeginTx(context.Background(), nil)
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	d.txStart = txStart
	return tx, nil
}

// EndBatch commits or rolls back a transaction.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	duration := time.Since(d.txStart).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

// GetStats counts the catalog tables. It implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	done := observeQuery("count")
	var err error
	defer func() { done(err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var s metrics.Stats
	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM file_mappings),
			(SELECT COUNT(*) FROM contents),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM labels)
	`).Scan(&s.Mappings, &s.Contents, &s.Categories, &s.Labels)
	if err != nil {
		logging.Warn("failed to count catalog rows: %v", err)
	}
	return s
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil && !errors.Is(err, vfs.ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// observeQuery starts timing operation; call the returned func with the result.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}

// notFound maps sql.ErrNoRows to vfs.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return vfs.ErrNotFound
	}
	return err
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
		if p == dbPath {
			continue
		}
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions on %s", p)
		}
	}

	return nil
}
