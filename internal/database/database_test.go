package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	require.NotNil(t, db)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// insertTestFrame inserts a frame with sensible defaults, overridable per test.
func insertTestFrame(t *testing.T, db *Database, ts time.Time, app string) int64 {
	t.Helper()
	id, err := db.InsertFrame(context.Background(), NewFrame{
		Timestamp:  ts,
		AppName:    app,
		DeviceName: "monitor-1",
		WindowName: app + " window",
	})
	require.NoError(t, err)
	return id
}

func TestOpenClose(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Close())
	// Close is idempotent.
	assert.NoError(t, db.Close())
}

func TestOpenOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.db")
	db, err := Open(path, WithPoolSize(4), WithBusyTimeout(time.Second))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.InsertFrame(context.Background(), NewFrame{Timestamp: time.Now()})
	assert.NoError(t, err)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Close())

	ctx := context.Background()
	_, err := db.InsertFrame(ctx, NewFrame{Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrDatabaseClosed)

	_, err = db.Statistics(ctx)
	assert.ErrorIs(t, err, ErrDatabaseClosed)

	err = db.WriteTx(ctx, func(tx *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrDatabaseClosed)
}

func TestWriteTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO frames (timestamp, device_name) VALUES (?, ?)",
			time.Now().UnixNano(), "d"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stats, err := db.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.FrameCount)
}

func TestReadTxSnapshot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	insertTestFrame(t, db, time.Now(), "chrome")

	var frames, ocr int64
	err := db.ReadTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM frames").Scan(&frames); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM ocr_text").Scan(&ocr)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), frames)
	assert.Equal(t, int64(0), ocr)
}

func TestMetadataUpsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.GetMetadata(ctx, "capture.fps")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SetMetadata(ctx, "capture.fps", "1"))
	require.NoError(t, db.SetMetadata(ctx, "capture.fps", "2"))

	value, err := db.GetMetadata(ctx, "capture.fps")
	require.NoError(t, err)
	assert.Equal(t, "2", value)

	err = db.SetMetadata(ctx, "", "x")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestBackupSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.db")
	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	frameID := insertTestFrame(t, db, time.Now(), "chrome")
	_, err = db.InsertOcrText(ctx, frameID, NewOcrText{Text: "backup me", Confidence: 0.9})
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	require.NoError(t, db.Backup(ctx, dest))

	restored, err := Open(dest)
	require.NoError(t, err)
	defer restored.Close()

	stats, err := restored.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FrameCount)
	assert.Equal(t, int64(1), stats.OcrCount)
}

func TestPaginationNormalize(t *testing.T) {
	_, err := Pagination{Limit: 0}.normalize()
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = Pagination{Limit: 10, Offset: -1}.normalize()
	assert.ErrorIs(t, err, ErrInvalidParameter)

	p, err := Pagination{Limit: 5000, Offset: 10}.normalize()
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, p.Limit)
	assert.Equal(t, 10, p.Offset)
}
