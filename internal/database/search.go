package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// SearchText executes a ranked full-text query over OCR content. Matching is
// porter-stemmed; results are ordered by descending BM25 relevance with ties
// broken by descending frame timestamp. All supplied filter predicates are
// intersected. An empty query is a contract violation, distinct from a valid
// query with no results.
func (d *Database) SearchText(ctx context.Context, query string, filter *FrameFilter, page Pagination) ([]SearchResult, error) {
	match := buildMatchQuery(query)
	if match == "" {
		return nil, fmt.Errorf("%w: empty search query", ErrInvalidParameter)
	}
	page, err := page.normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pagination", err)
	}

	db, err := d.read()
	if err != nil {
		return nil, err
	}

	sqlQuery := `
		SELECT f.id, o.id, f.timestamp, f.monitor_index, f.device_name, f.app_name,
		       f.window_name, f.browser_url, f.file_path, o.text,
		       bm25(ocr_text_fts) AS rank
		FROM ocr_text_fts
		JOIN ocr_text o ON o.id = ocr_text_fts.rowid
		JOIN frames f ON f.id = o.frame_id
		WHERE ocr_text_fts MATCH ?
	`
	args := []interface{}{match}
	sqlQuery, args = applyFrameFilter(sqlQuery, args, filter, "f")

	sqlQuery += " ORDER BY rank, f.timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute text search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]SearchResult, 0, page.Limit)
	for rows.Next() {
		var r SearchResult
		var ts int64
		var rank float64
		if err := rows.Scan(&r.FrameID, &r.OcrID, &ts, &r.MonitorIndex, &r.DeviceName,
			&r.AppName, &r.WindowName, &r.BrowserURL, &r.FilePath, &r.Text, &rank); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(0, ts).UTC()
		// FTS5 bm25() is negative with better matches more negative; flip the
		// sign so callers see a positive, higher-is-better relevance.
		r.Score = -rank
		results = append(results, r)
	}
	return results, rows.Err()
}

// SearchKeywords returns distinct OCR text values containing any of the given
// keywords as a literal, case-insensitive substring. No stemming: this is the
// escape hatch for users who need exact matches FTS normalization would hide.
func (d *Database) SearchKeywords(ctx context.Context, keywords []string, page Pagination) ([]string, error) {
	terms := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if strings.TrimSpace(k) != "" {
			terms = append(terms, k)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: no keywords supplied", ErrInvalidParameter)
	}
	page, err := page.normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pagination", err)
	}

	db, err := d.read()
	if err != nil {
		return nil, err
	}

	conds := make([]string, len(terms))
	args := make([]interface{}, 0, len(terms)+2)
	for i, term := range terms {
		conds[i] = `lower(text) LIKE '%' || ? || '%' ESCAPE '\'`
		args = append(args, escapeLike(strings.ToLower(term)))
	}
	query := `SELECT DISTINCT text FROM ocr_text WHERE ` + strings.Join(conds, " OR ") +
		` ORDER BY text LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute keyword search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	texts := make([]string, 0)
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

// GetFrame returns a single frame by id.
func (d *Database) GetFrame(ctx context.Context, frameID int64) (*Frame, error) {
	db, err := d.read()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT id, chunk_id, timestamp, monitor_index, device_name, file_path,
		       window_name, app_name, browser_url, width, height, focused
		FROM frames WHERE id = ?`, frameID)
	f, err := scanFrameRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetFramesInRange returns frames with timestamps in [start, end] ordered by
// ascending timestamp, paginated.
func (d *Database) GetFramesInRange(ctx context.Context, start, end time.Time, filter *FrameFilter, page Pagination) ([]Frame, error) {
	page, err := page.normalize()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid pagination", err)
	}

	db, err := d.read()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT f.id, f.chunk_id, f.timestamp, f.monitor_index, f.device_name, f.file_path,
		       f.window_name, f.app_name, f.browser_url, f.width, f.height, f.focused
		FROM frames f
		WHERE f.timestamp >= ? AND f.timestamp <= ?
	`
	args := []interface{}{start.UnixNano(), end.UnixNano()}
	query, args = applyFrameFilter(query, args, filter, "f")
	query += " ORDER BY f.timestamp ASC, f.id ASC LIMIT ? OFFSET ?"
	args = append(args, page.Limit, page.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
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

// CountFramesInRange returns the unpaginated size of the matching result set,
// used by callers to compute total pages without fetching all rows.
func (d *Database) CountFramesInRange(ctx context.Context, start, end time.Time, filter *FrameFilter) (int64, error) {
	db, err := d.read()
	if err != nil {
		return 0, err
	}

	query := `SELECT COUNT(*) FROM frames f WHERE f.timestamp >= ? AND f.timestamp <= ?`
	args := []interface{}{start.UnixNano(), end.UnixNano()}
	query, args = applyFrameFilter(query, args, filter, "f")

	var count int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return count, nil
}

// scanFrameRow scans one frames row via the given Scan function.
func scanFrameRow(scan func(dest ...interface{}) error) (*Frame, error) {
	var f Frame
	var chunkID sql.NullInt64
	var ts int64
	err := scan(&f.ID, &chunkID, &ts, &f.MonitorIndex, &f.DeviceName, &f.FilePath,
		&f.WindowName, &f.AppName, &f.BrowserURL, &f.Width, &f.Height, &f.Focused)
	if err != nil {
		return nil, err
	}
	f.Timestamp = time.Unix(0, ts).UTC()
	if chunkID.Valid {
		id := chunkID.Int64
		f.ChunkID = &id
	}
	return &f, nil
}

// applyFrameFilter appends WHERE predicates for the supplied filter. Every
// predicate narrows the result (AND semantics). alias is the frames table
// alias in the enclosing query.
func applyFrameFilter(query string, args []interface{}, filter *FrameFilter, alias string) (string, []interface{}) {
	if filter == nil {
		return query, args
	}

	if filter.TimeStart != nil {
		query += " AND " + alias + ".timestamp >= ?"
		args = append(args, filter.TimeStart.UnixNano())
	}
	if filter.TimeEnd != nil {
		query += " AND " + alias + ".timestamp <= ?"
		args = append(args, filter.TimeEnd.UnixNano())
	}
	if filter.AppName != "" {
		query += " AND " + alias + ".app_name = ?"
		args = append(args, filter.AppName)
	}
	if filter.DeviceName != "" {
		query += " AND " + alias + ".device_name = ?"
		args = append(args, filter.DeviceName)
	}
	if filter.BrowserURL != "" {
		query += " AND " + alias + ".browser_url = ?"
		args = append(args, filter.BrowserURL)
	}
	if filter.MonitorIndex != nil {
		query += " AND " + alias + ".monitor_index = ?"
		args = append(args, *filter.MonitorIndex)
	}
	if len(filter.TagIDs) > 0 {
		placeholders := make([]string, len(filter.TagIDs))
		for i, id := range filter.TagIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		query += " AND " + alias + ".id IN (SELECT frame_id FROM frame_tags WHERE tag_id IN (" +
			strings.Join(placeholders, ",") + "))"
	}
	return query, args
}

// buildMatchQuery turns free text into an FTS5 MATCH expression. Each term is
// double-quoted so user input can never smuggle in FTS operators, and terms
// are implicitly ANDed, matching the stemming applied at index time.
func buildMatchQuery(query string) string {
	terms := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + t + `"`
	}
	return strings.Join(quoted, " ")
}

// escapeLike escapes LIKE wildcards in a literal search term.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
