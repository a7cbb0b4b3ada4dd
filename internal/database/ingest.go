package database

import (
	"context"
	"database/sql"
	"fmt"
)

// InsertVideoChunk records a closed capture segment and returns its id.
// Re-inserting an existing (device, start, end) key returns the existing
// row's id; capture retries after a crash are expected and must not error.
func (d *Database) InsertVideoChunk(ctx context.Context, c NewVideoChunk) (int64, error) {
	if !c.EndTime.After(c.StartTime) {
		return 0, fmt.Errorf("%w: chunk end_time must be after start_time", ErrInvalidParameter)
	}
	if c.DeviceName == "" {
		return 0, fmt.Errorf("%w: chunk device_name is required", ErrInvalidParameter)
	}

	db, err := d.write()
	if err != nil {
		return 0, err
	}

	// The no-op DO UPDATE makes RETURNING yield the existing id on conflict.
	query := `
		INSERT INTO video_chunks (device_name, file_path, start_time, end_time, duration_ms, width, height, fps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_name, start_time, end_time) DO UPDATE SET
			device_name = excluded.device_name
		RETURNING id
	`
	var id int64
	err = db.QueryRowContext(ctx, query,
		c.DeviceName, c.FilePath, c.StartTime.UnixNano(), c.EndTime.UnixNano(),
		c.EndTime.Sub(c.StartTime).Milliseconds(), c.Width, c.Height, c.FPS,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert video chunk: %w", err)
	}
	return id, nil
}

// InsertFrame records one captured still. The chunk reference is optional;
// orphaned frames (capture without an open segment) are valid.
func (d *Database) InsertFrame(ctx context.Context, f NewFrame) (int64, error) {
	if f.Timestamp.IsZero() {
		return 0, fmt.Errorf("%w: frame timestamp is required", ErrInvalidParameter)
	}

	db, err := d.write()
	if err != nil {
		return 0, err
	}

	var chunkID interface{}
	if f.ChunkID != nil {
		chunkID = *f.ChunkID
	}

	query := `
		INSERT INTO frames (chunk_id, timestamp, monitor_index, device_name, file_path,
		                    window_name, app_name, browser_url, width, height, focused)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := db.ExecContext(ctx, query,
		chunkID, f.Timestamp.UnixNano(), f.MonitorIndex, f.DeviceName, f.FilePath,
		f.WindowName, f.AppName, f.BrowserURL, f.Width, f.Height, f.Focused)
	if err != nil {
		return 0, fmt.Errorf("failed to insert frame: %w", err)
	}
	return result.LastInsertId()
}

// InsertOcrText records one recognized text span and updates the full-text
// projection in the same transaction, so a committed OCR row is always
// searchable and an uncommitted one never is.
func (d *Database) InsertOcrText(ctx context.Context, frameID int64, o NewOcrText) (int64, error) {
	if err := validateOcrText(o); err != nil {
		return 0, err
	}

	var id int64
	err := d.WriteTx(ctx, func(tx *sql.Tx) error {
		if err := frameExists(ctx, tx, frameID); err != nil {
			return err
		}
		var err error
		id, err = insertOcrTextTx(ctx, tx, frameID, o)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// InsertOcrTextBatch records the ordered text spans of one frame in a single
// transaction. A frame typically yields several spans; partial visibility of
// a frame's text is an inconsistency, so the batch commits all-or-nothing.
func (d *Database) InsertOcrTextBatch(ctx context.Context, frameID int64, batch []NewOcrText) ([]int64, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	for i, o := range batch {
		if err := validateOcrText(o); err != nil {
			return nil, fmt.Errorf("batch row %d: %w", i, err)
		}
	}

	ids := make([]int64, 0, len(batch))
	err := d.WriteTx(ctx, func(tx *sql.Tx) error {
		if err := frameExists(ctx, tx, frameID); err != nil {
			return err
		}
		for _, o := range batch {
			id, err := insertOcrTextTx(ctx, tx, frameID, o)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// UpdateOcrText replaces the text of an existing span, rewriting its index
// projection in the same transaction.
func (d *Database) UpdateOcrText(ctx context.Context, ocrID int64, text string) error {
	return d.WriteTx(ctx, func(tx *sql.Tx) error {
		var oldText string
		err := tx.QueryRowContext(ctx, "SELECT text FROM ocr_text WHERE id = ?", ocrID).Scan(&oldText)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "UPDATE ocr_text SET text = ? WHERE id = ?", text, ocrID); err != nil {
			return fmt.Errorf("failed to update ocr text: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ocr_text_fts(ocr_text_fts, rowid, text) VALUES ('delete', ?, ?)",
			ocrID, oldText); err != nil {
			return fmt.Errorf("failed to remove stale index entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ocr_text_fts(rowid, text) VALUES (?, ?)", ocrID, text); err != nil {
			return fmt.Errorf("failed to update index entry: %w", err)
		}
		return nil
	})
}

// DeleteOcrText removes one span and its index projection atomically.
func (d *Database) DeleteOcrText(ctx context.Context, ocrID int64) error {
	return d.WriteTx(ctx, func(tx *sql.Tx) error {
		var text string
		err := tx.QueryRowContext(ctx, "SELECT text FROM ocr_text WHERE id = ?", ocrID).Scan(&text)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO ocr_text_fts(ocr_text_fts, rowid, text) VALUES ('delete', ?, ?)",
			ocrID, text); err != nil {
			return fmt.Errorf("failed to remove index entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM ocr_text WHERE id = ?", ocrID); err != nil {
			return fmt.Errorf("failed to delete ocr text: %w", err)
		}
		return nil
	})
}

// GetOcrTextForFrame returns a frame's text spans in insertion order.
func (d *Database) GetOcrTextForFrame(ctx context.Context, frameID int64) ([]OcrText, error) {
	db, err := d.read()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, frame_id, text, text_json, x, y, width, height, confidence
		FROM ocr_text
		WHERE frame_id = ?
		ORDER BY id
	`
	rows, err := db.QueryContext(ctx, query, frameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ocr text: %w", err)
	}
	defer func() { _ = rows.Close() }()

	texts := make([]OcrText, 0)
	for rows.Next() {
		var o OcrText
		if err := rows.Scan(&o.ID, &o.FrameID, &o.Text, &o.TextJSON,
			&o.X, &o.Y, &o.Width, &o.Height, &o.Confidence); err != nil {
			return nil, err
		}
		texts = append(texts, o)
	}
	return texts, rows.Err()
}

// validateOcrText enforces the ingestion contract on one span.
func validateOcrText(o NewOcrText) error {
	if o.Confidence < 0.0 || o.Confidence > 1.0 {
		return fmt.Errorf("%w: confidence %.3f out of range [0, 1]", ErrInvalidParameter, o.Confidence)
	}
	return nil
}

// frameExists fails with ErrNotFound when the referenced frame is absent.
func frameExists(ctx context.Context, q querier, frameID int64) error {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM frames WHERE id = ?", frameID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("frame %d: %w", frameID, ErrNotFound)
	}
	return err
}

// insertOcrTextTx writes the base row and its full-text projection. Both
// statements share the caller's transaction; they are a single atomic unit.
func insertOcrTextTx(ctx context.Context, tx *sql.Tx, frameID int64, o NewOcrText) (int64, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO ocr_text (frame_id, text, text_json, x, y, width, height, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		frameID, o.Text, o.TextJSON, o.X, o.Y, o.Width, o.Height, o.Confidence)
	if err != nil {
		return 0, fmt.Errorf("failed to insert ocr text: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO ocr_text_fts(rowid, text) VALUES (?, ?)", id, o.Text); err != nil {
		return 0, fmt.Errorf("failed to index ocr text: %w", err)
	}
	return id, nil
}
