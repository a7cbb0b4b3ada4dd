package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// CurrentSchemaVersion tracks the database schema version
const CurrentSchemaVersion = "1.2.0"

// Migration represents a single schema upgrade step. Each step is applied
// inside its own transaction and recorded in the schema_migrations ledger,
// so a failure leaves the store at the last fully-applied step.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// AllMigrations contains all schema migrations in ascending version order.
// Never reorder or edit an applied entry; append a new version instead.
var AllMigrations = []Migration{
	{Version: "1.0.0", Name: "capture_tables", SQL: migrationCaptureTables},
	{Version: "1.1.0", Name: "tags", SQL: migrationTags},
	{Version: "1.2.0", Name: "metadata_and_indexes", SQL: migrationMetadata},
}

const migrationCaptureTables = `
-- Recorded video segments
CREATE TABLE IF NOT EXISTS video_chunks (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    device_name TEXT NOT NULL,
    file_path TEXT NOT NULL,
    start_time INTEGER NOT NULL,
    end_time INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    width INTEGER DEFAULT 0,
    height INTEGER DEFAULT 0,
    fps REAL DEFAULT 0,
    UNIQUE(device_name, start_time, end_time)
);

CREATE INDEX IF NOT EXISTS idx_chunks_device ON video_chunks(device_name);
CREATE INDEX IF NOT EXISTS idx_chunks_end_time ON video_chunks(end_time);

-- Captured stills
CREATE TABLE IF NOT EXISTS frames (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_id INTEGER,
    timestamp INTEGER NOT NULL,
    monitor_index INTEGER DEFAULT 0,
    device_name TEXT NOT NULL DEFAULT '',
    file_path TEXT NOT NULL DEFAULT '',
    window_name TEXT NOT NULL DEFAULT '',
    app_name TEXT NOT NULL DEFAULT '',
    browser_url TEXT NOT NULL DEFAULT '',
    width INTEGER DEFAULT 0,
    height INTEGER DEFAULT 0,
    focused INTEGER DEFAULT 0,
    FOREIGN KEY (chunk_id) REFERENCES video_chunks(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_frames_timestamp ON frames(timestamp);
CREATE INDEX IF NOT EXISTS idx_frames_app ON frames(app_name);
CREATE INDEX IF NOT EXISTS idx_frames_device ON frames(device_name);
CREATE INDEX IF NOT EXISTS idx_frames_chunk ON frames(chunk_id);

-- Recognized text spans
CREATE TABLE IF NOT EXISTS ocr_text (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    frame_id INTEGER NOT NULL,
    text TEXT NOT NULL,
    text_json TEXT NOT NULL DEFAULT '',
    x INTEGER DEFAULT 0,
    y INTEGER DEFAULT 0,
    width INTEGER DEFAULT 0,
    height INTEGER DEFAULT 0,
    confidence REAL NOT NULL DEFAULT 0,
    FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_ocr_frame ON ocr_text(frame_id);

-- Full-text projection over OCR content. Maintained by explicit statements
-- in the same transaction as every ocr_text write; no triggers, so the
-- index can never drift behind a committed row.
CREATE VIRTUAL TABLE IF NOT EXISTS ocr_text_fts USING fts5(
    text,
    content='ocr_text',
    content_rowid='id',
    tokenize='porter unicode61'
);
`

const migrationTags = `
CREATE TABLE IF NOT EXISTS tags (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    color TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS frame_tags (
    frame_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    UNIQUE(frame_id, tag_id),
    FOREIGN KEY (frame_id) REFERENCES frames(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_frame_tags_tag ON frame_tags(tag_id);
`

const migrationMetadata = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_frames_app_timestamp ON frames(app_name, timestamp);
`

// Migrate brings the store to the current schema version and returns how
// many migrations were applied. Running it on an already-current store is a
// no-op returning zero.
func Migrate(ctx context.Context, db *sql.DB) (int, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return 0, fmt.Errorf("failed to create migration ledger: %w", err)
	}

	applied, err := appliedMigrations(ctx, db)
	if err != nil {
		return 0, err
	}

	prev := semver.MustParse("0.0.0")
	count := 0
	for _, m := range AllMigrations {
		v, err := semver.NewVersion(m.Version)
		if err != nil {
			return count, fmt.Errorf("invalid migration version %s: %w", m.Version, err)
		}
		if !prev.LessThan(v) {
			return count, fmt.Errorf("migration %q out of order: %s after %s", m.Name, m.Version, prev)
		}
		prev = v

		if applied[m.Version] {
			continue
		}
		if err := applyMigration(ctx, db, m); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// appliedMigrations reads the ledger into a version set.
func appliedMigrations(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// applyMigration runs one migration and its ledger record in a single
// transaction, rolled back whole on any error.
func applyMigration(ctx context.Context, db *sql.DB, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return &MigrationError{Name: m.Name, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return &MigrationError{Name: m.Name, Err: err}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name); err != nil {
		return &MigrationError{Name: m.Name, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &MigrationError{Name: m.Name, Err: err}
	}
	return nil
}
