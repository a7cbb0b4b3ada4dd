package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// CreateTag creates a user-defined label. Names are globally unique;
// creating a duplicate fails with ErrAlreadyExists.
func (d *Database) CreateTag(ctx context.Context, name, description, color string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: tag name is required", ErrInvalidParameter)
	}

	db, err := d.write()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx,
		"INSERT OR IGNORE INTO tags (name, description, color) VALUES (?, ?, ?)",
		name, description, color)
	if err != nil {
		return 0, fmt.Errorf("failed to create tag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, fmt.Errorf("tag %q: %w", name, ErrAlreadyExists)
	}
	return result.LastInsertId()
}

// GetTag returns a tag by id.
func (d *Database) GetTag(ctx context.Context, tagID int64) (*Tag, error) {
	db, err := d.read()
	if err != nil {
		return nil, err
	}
	return scanTag(db.QueryRowContext(ctx,
		"SELECT id, name, description, color FROM tags WHERE id = ?", tagID))
}

// GetTagByName returns a tag by its unique name.
func (d *Database) GetTagByName(ctx context.Context, name string) (*Tag, error) {
	db, err := d.read()
	if err != nil {
		return nil, err
	}
	return scanTag(db.QueryRowContext(ctx,
		"SELECT id, name, description, color FROM tags WHERE name = ?", name))
}

// DeleteTag removes a tag and all its frame associations.
func (d *Database) DeleteTag(ctx context.Context, tagID int64) error {
	return d.WriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM frame_tags WHERE tag_id = ?", tagID); err != nil {
			return fmt.Errorf("failed to delete tag associations: %w", err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", tagID)
		if err != nil {
			return fmt.Errorf("failed to delete tag: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("tag %d: %w", tagID, ErrNotFound)
		}
		return nil
	})
}

// AddTagToFrame associates a tag with a frame. Re-adding an existing
// association is a no-op.
func (d *Database) AddTagToFrame(ctx context.Context, frameID, tagID int64) error {
	return d.WriteTx(ctx, func(tx *sql.Tx) error {
		if err := frameExists(ctx, tx, frameID); err != nil {
			return err
		}
		var one int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM tags WHERE id = ?", tagID).Scan(&one)
		if err == sql.ErrNoRows {
			return fmt.Errorf("tag %d: %w", tagID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO frame_tags (frame_id, tag_id) VALUES (?, ?)",
			frameID, tagID); err != nil {
			return fmt.Errorf("failed to tag frame: %w", err)
		}
		return nil
	})
}

// RemoveTagFromFrame drops one association; removing an absent association
// is a no-op.
func (d *Database) RemoveTagFromFrame(ctx context.Context, frameID, tagID int64) error {
	db, err := d.write()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx,
		"DELETE FROM frame_tags WHERE frame_id = ? AND tag_id = ?", frameID, tagID); err != nil {
		return fmt.Errorf("failed to untag frame: %w", err)
	}
	return nil
}

// GetTagsForFrame returns the tags attached to a frame, ordered by name.
func (d *Database) GetTagsForFrame(ctx context.Context, frameID int64) ([]Tag, error) {
	db, err := d.read()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT t.id, t.name, t.description, t.color
		FROM tags t
		JOIN frame_tags ft ON ft.tag_id = t.id
		WHERE ft.frame_id = ?
		ORDER BY t.name`, frameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frame tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tags := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Color); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// GetFramesByTag returns frames carrying the tag, newest first, paginated.
func (d *Database) GetFramesByTag(ctx context.Context, tagID int64, page Pagination) ([]Frame, error) {
	page, err := page.normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pagination", err)
	}

	db, err := d.read()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT f.id, f.chunk_id, f.timestamp, f.monitor_index, f.device_name, f.file_path,
		       f.window_name, f.app_name, f.browser_url, f.width, f.height, f.focused
		FROM frames f
		JOIN frame_tags ft ON ft.frame_id = f.id
		WHERE ft.tag_id = ?
		ORDER BY f.timestamp DESC, f.id DESC
		LIMIT ? OFFSET ?`, tagID, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames by tag: %w", err)
	}
	defer func() { _ = rows.Close() }()

	frames := make([]Frame, 0, page.Limit)
	for rows.Next() {
		f, err := scanFrameRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		frames = append(frames, *f)
	}
	return frames, rows.Err()
}

// scanTag scans a single tags row, mapping sql.ErrNoRows to ErrNotFound.
func scanTag(row *sql.Row) (*Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Color)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
