package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// SetMetadata upserts a process-wide key/value entry, last write wins.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: metadata key is required", ErrInvalidParameter)
	}

	db, err := d.write()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}

// GetMetadata returns the value for key, or ErrNotFound.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	db, err := d.read()
	if err != nil {
		return "", err
	}

	var value string
	err = db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}
	return value, nil
}

// Backup writes a consistent snapshot of the store to destPath while the
// database stays open for reads and writes. The snapshot is vacuumed into a
// temporary file and renamed into place so destPath is never half-written.
func (d *Database) Backup(ctx context.Context, destPath string) error {
	if destPath == "" {
		return fmt.Errorf("%w: backup destination is required", ErrInvalidParameter)
	}

	db, err := d.write()
	if err != nil {
		return err
	}

	tmpPath := destPath + ".tmp-" + uuid.NewString()
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to snapshot database: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize backup: %w", err)
	}
	return nil
}
