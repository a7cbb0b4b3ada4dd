package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteFramesBeforeCutoff(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	expired := insertTestFrame(t, db, cutoff.Add(-time.Hour), "chrome")
	atCutoff := insertTestFrame(t, db, cutoff, "chrome")
	kept := insertTestFrame(t, db, cutoff.Add(time.Hour), "chrome")

	deleted, err := db.DeleteFramesBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = db.GetFrame(ctx, expired)
	assert.ErrorIs(t, err, ErrNotFound)

	// The cutoff itself is exclusive: a frame stamped exactly at it survives.
	_, err = db.GetFrame(ctx, atCutoff)
	assert.NoError(t, err)
	_, err = db.GetFrame(ctx, kept)
	assert.NoError(t, err)
}

func TestDeleteFramesBeforeCascades(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	expired := insertTestFrame(t, db, cutoff.Add(-time.Hour), "chrome")
	_, err := db.InsertOcrText(ctx, expired, NewOcrText{Text: "stale meeting agenda", Confidence: 0.9})
	require.NoError(t, err)

	tagID, err := db.CreateTag(ctx, "meeting", "", "")
	require.NoError(t, err)
	require.NoError(t, db.AddTagToFrame(ctx, expired, tagID))

	_, err = db.DeleteFramesBefore(ctx, cutoff)
	require.NoError(t, err)

	// OCR rows and index entries went with the frame.
	results, err := db.SearchText(ctx, "stale", nil, Pagination{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, results)

	frames, err := db.GetFramesByTag(ctx, tagID, Pagination{Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, frames)

	// The tag itself has an independent lifecycle and survives.
	_, err = db.GetTag(ctx, tagID)
	assert.NoError(t, err)

	stats, err := db.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.FrameCount)
	assert.Equal(t, int64(0), stats.OcrCount)
	assert.Equal(t, int64(1), stats.TagCount)
}

func TestDeleteFramesBeforePrunesChunks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	oldChunk, err := db.InsertVideoChunk(ctx, NewVideoChunk{
		DeviceName: "monitor-1",
		StartTime:  cutoff.Add(-2 * time.Hour),
		EndTime:    cutoff.Add(-time.Hour),
	})
	require.NoError(t, err)
	liveChunk, err := db.InsertVideoChunk(ctx, NewVideoChunk{
		DeviceName: "monitor-1",
		StartTime:  cutoff.Add(-30 * time.Minute),
		EndTime:    cutoff.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	_, err = db.InsertFrame(ctx, NewFrame{ChunkID: &oldChunk, Timestamp: cutoff.Add(-90 * time.Minute)})
	require.NoError(t, err)
	_, err = db.InsertFrame(ctx, NewFrame{ChunkID: &liveChunk, Timestamp: cutoff.Add(15 * time.Minute)})
	require.NoError(t, err)

	_, err = db.DeleteFramesBefore(ctx, cutoff)
	require.NoError(t, err)

	stats, err := db.Statistics(ctx)
	require.NoError(t, err)
	// The chunk that ended before the cutoff lost its last frame and is gone;
	// the one still spanning the cutoff stays.
	assert.Equal(t, int64(1), stats.ChunkCount)
	assert.Equal(t, int64(1), stats.FrameCount)
}

func TestDeleteFramesBeforeManyBatches(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// More frames than one batch holds, to exercise the batching loop.
	total := retentionBatchSize + 50
	for i := 0; i < total; i++ {
		insertTestFrame(t, db, cutoff.Add(-time.Duration(i+1)*time.Second), "chrome")
	}

	deleted, err := db.DeleteFramesBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(total), deleted)

	stats, err := db.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.FrameCount)
}

func TestDeleteFramesBeforeEmptyStore(t *testing.T) {
	db := setupTestDB(t)

	deleted, err := db.DeleteFramesBefore(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestStatisticsEmptyStore(t *testing.T) {
	db := setupTestDB(t)

	stats, err := db.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.FrameCount)
	assert.Nil(t, stats.OldestFrame)
	assert.Nil(t, stats.NewestFrame)
	assert.Positive(t, stats.SizeMB)
}

func TestStatisticsFrameRange(t *testing.T) {
	db := setupTestDB(t)
	oldest := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	newest := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	insertTestFrame(t, db, oldest, "chrome")
	insertTestFrame(t, db, newest, "chrome")
	insertTestFrame(t, db, oldest.Add(time.Hour), "chrome")

	stats, err := db.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.FrameCount)
	require.NotNil(t, stats.OldestFrame)
	require.NotNil(t, stats.NewestFrame)
	assert.True(t, stats.OldestFrame.Equal(oldest))
	assert.True(t, stats.NewestFrame.Equal(newest))
}
