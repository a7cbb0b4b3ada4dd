package database

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	raw, err := sql.Open(DriverName, dsn(":memory:", options{
		busyTimeout: defaultBusyTimeout,
		cacheKB:     defaultCacheKB,
		synchronous: defaultSynchronous,
	}))
	require.NoError(t, err)
	raw.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = raw.Close() })
	return raw
}

func TestMigrateFreshStore(t *testing.T) {
	raw := openRawDB(t)
	ctx := context.Background()

	applied, err := Migrate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, len(AllMigrations), applied)

	// Every migration is recorded in the ledger.
	ledger, err := appliedMigrations(ctx, raw)
	require.NoError(t, err)
	for _, m := range AllMigrations {
		assert.True(t, ledger[m.Version], "migration %s missing from ledger", m.Version)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	raw := openRawDB(t)
	ctx := context.Background()

	_, err := Migrate(ctx, raw)
	require.NoError(t, err)

	applied, err := Migrate(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "second run must apply nothing")
}

func TestMigrateCreatesQueryableSchema(t *testing.T) {
	raw := openRawDB(t)
	ctx := context.Background()

	_, err := Migrate(ctx, raw)
	require.NoError(t, err)

	for _, table := range []string{"video_chunks", "frames", "ocr_text", "tags", "frame_tags", "metadata"} {
		var count int
		err := raw.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		assert.NoError(t, err, "table %s should exist", table)
	}

	// FTS projection accepts MATCH queries.
	var n int
	err = raw.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ocr_text_fts WHERE ocr_text_fts MATCH ?", `"anything"`).Scan(&n)
	assert.NoError(t, err)
}

func TestMigrationVersionsAscend(t *testing.T) {
	// Guard against accidental reordering when a migration is appended.
	for i := 1; i < len(AllMigrations); i++ {
		assert.Less(t, AllMigrations[i-1].Version, AllMigrations[i].Version)
	}
}

func TestFailedMigrationRollsBackWhole(t *testing.T) {
	raw := openRawDB(t)
	ctx := context.Background()

	bad := Migration{
		Version: "9.9.9",
		Name:    "broken",
		SQL:     "CREATE TABLE half_done (id INTEGER); THIS IS NOT SQL;",
	}
	err := applyMigration(ctx, raw, bad)
	require.Error(t, err)

	var merr *MigrationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, "broken", merr.Name)

	// Nothing from the failed migration is visible.
	var name string
	scanErr := raw.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='half_done'").Scan(&name)
	assert.ErrorIs(t, scanErr, sql.ErrNoRows)
}
