// Package database implements the capture persistence and full-text search
// core: durable storage for screen-capture metadata, OCR-extracted text and
// user tags, with an FTS5 projection kept transactionally consistent with
// the canonical rows.
//
// # Architecture
//
// One Database owns the on-disk store through two connection pools:
//
//	writer  — a single connection; every mutation goes through it, so only
//	          one write transaction commits at a time
//	reader  — a bounded pool (default 32); with WAL journaling reads run
//	          concurrently with writes and see the last committed state
//
// All tuning (busy timeout, cache size, durability level) is fixed at Open
// and carried in the driver DSN so every pooled connection is configured
// identically.
//
// # Index consistency
//
// The ocr_text_fts projection has no triggers. Every insert, update or
// delete of an ocr_text row performs the matching projection statement
// inside the same transaction, so readers can never observe a committed OCR
// row that is missing from the index, or a deleted one still in it.
//
// # Schema evolution
//
// Migrate applies the ordered, named migration list, one transaction per
// migration, recording each in the schema_migrations ledger. Re-running it
// on a current store applies nothing. A failed migration rolls back whole
// and surfaces a *MigrationError; callers must abort startup rather than
// operate on a partially-upgraded schema.
//
// # Errors
//
// Contract violations return ErrInvalidParameter, missing entities
// ErrNotFound, duplicate tag names ErrAlreadyExists, and use after Close
// ErrDatabaseClosed; everything else is wrapped with context. The package
// never logs — every failure is returned to the caller, typed.
//
// # Build modes
//
// Two SQLite drivers are supported behind build tags: mattn/go-sqlite3 when
// built with CGO and the cgo_sqlite tag, modernc.org/sqlite otherwise. Both
// builds require FTS5 (always compiled into modernc, the fts5 tag for
// mattn).
package database
