package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// retentionBatchSize bounds how many frames one sweep transaction removes,
// so a large purge never holds the write lock for an unbounded stretch.
const retentionBatchSize = 500

// DeleteFramesBefore removes every frame with a timestamp strictly before
// cutoff, cascading to its OCR rows, index entries and tag links. Deletion
// runs in bounded batches, each batch a single transaction, so readers and
// the ingestion path keep making progress during large purges. Video chunks
// that end before the cutoff and no longer own frames are pruned afterwards.
func (d *Database) DeleteFramesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		n, err := d.deleteFrameBatch(ctx, cutoff.UnixNano())
		if err != nil {
			return total, err
		}
		total += n
		if n < retentionBatchSize {
			break
		}
	}

	if err := d.pruneChunksBefore(ctx, cutoff.UnixNano()); err != nil {
		return total, err
	}
	return total, nil
}

// deleteFrameBatch removes up to retentionBatchSize frames and their
// dependents in one transaction.
func (d *Database) deleteFrameBatch(ctx context.Context, cutoffNanos int64) (int64, error) {
	var deleted int64
	err := d.WriteTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx,
			"SELECT id FROM frames WHERE timestamp < ? LIMIT ?", cutoffNanos, retentionBatchSize)
		if err != nil {
			return fmt.Errorf("failed to select expired frames: %w", err)
		}
		frameIDs, err := collectIDs(rows)
		if err != nil {
			return err
		}
		if len(frameIDs) == 0 {
			return nil
		}

		in := placeholders(len(frameIDs))
		args := idArgs(frameIDs)

		// The index projection must go first: it needs the original text of
		// each row being removed.
		ocrRows, err := tx.QueryContext(ctx,
			"SELECT id, text FROM ocr_text WHERE frame_id IN ("+in+")", args...)
		if err != nil {
			return fmt.Errorf("failed to select expired ocr rows: %w", err)
		}
		type ocrRow struct {
			id   int64
			text string
		}
		var ocr []ocrRow
		for ocrRows.Next() {
			var r ocrRow
			if err := ocrRows.Scan(&r.id, &r.text); err != nil {
				_ = ocrRows.Close()
				return err
			}
			ocr = append(ocr, r)
		}
		if err := ocrRows.Err(); err != nil {
			_ = ocrRows.Close()
			return err
		}
		_ = ocrRows.Close()

		for _, r := range ocr {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO ocr_text_fts(ocr_text_fts, rowid, text) VALUES ('delete', ?, ?)",
				r.id, r.text); err != nil {
				return fmt.Errorf("failed to remove index entry: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM ocr_text WHERE frame_id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("failed to delete expired ocr rows: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM frame_tags WHERE frame_id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("failed to delete expired tag links: %w", err)
		}
		result, err := tx.ExecContext(ctx,
			"DELETE FROM frames WHERE id IN ("+in+")", args...)
		if err != nil {
			return fmt.Errorf("failed to delete expired frames: %w", err)
		}
		deleted, err = result.RowsAffected()
		return err
	})
	return deleted, err
}

// pruneChunksBefore drops chunks fully before the cutoff once nothing
// references them.
func (d *Database) pruneChunksBefore(ctx context.Context, cutoffNanos int64) error {
	db, err := d.write()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		DELETE FROM video_chunks
		WHERE end_time < ?
		AND NOT EXISTS (SELECT 1 FROM frames WHERE frames.chunk_id = video_chunks.id)`,
		cutoffNanos)
	if err != nil {
		return fmt.Errorf("failed to prune video chunks: %w", err)
	}
	return nil
}

// Statistics computes an aggregate snapshot for health reporting. The counts
// run in one read transaction so they describe a single committed state even
// while ingestion and retention are running.
func (d *Database) Statistics(ctx context.Context) (*Statistics, error) {
	var stats Statistics
	err := d.ReadTx(ctx, func(tx *sql.Tx) error {
		counts := []struct {
			query string
			dest  *int64
		}{
			{"SELECT COUNT(*) FROM frames", &stats.FrameCount},
			{"SELECT COUNT(*) FROM ocr_text", &stats.OcrCount},
			{"SELECT COUNT(*) FROM tags", &stats.TagCount},
			{"SELECT COUNT(*) FROM video_chunks", &stats.ChunkCount},
		}
		for _, c := range counts {
			if err := tx.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
				return fmt.Errorf("failed to collect statistics: %w", err)
			}
		}

		var oldest, newest sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			"SELECT MIN(timestamp), MAX(timestamp) FROM frames").Scan(&oldest, &newest); err != nil {
			return fmt.Errorf("failed to collect frame range: %w", err)
		}
		if oldest.Valid {
			t := time.Unix(0, oldest.Int64).UTC()
			stats.OldestFrame = &t
		}
		if newest.Valid {
			t := time.Unix(0, newest.Int64).UTC()
			stats.NewestFrame = &t
		}

		var pageCount, pageSize int64
		if err := tx.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
			_ = tx.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
			stats.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// collectIDs drains an id-only result set, closing it.
func collectIDs(rows *sql.Rows) ([]int64, error) {
	defer func() { _ = rows.Close() }()
	ids := make([]int64, 0, retentionBatchSize)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// placeholders builds "?,?,..." of length n.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// idArgs converts ids to query arguments.
func idArgs(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
