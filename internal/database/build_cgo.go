//go:build cgo_sqlite
// +build cgo_sqlite

package database

// This file is compiled when building with CGO and the cgo_sqlite tag.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "cgo_sqlite,fts5" ./...
//
// The CGO build links the C SQLite library:
//   - Fastest FTS5 query execution
//   - Recommended for production deployments
//
// Driver used: github.com/mattn/go-sqlite3

import (
	"fmt"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)

// dsn builds a driver-specific connection string. Pragmas that must hold on
// every pooled connection (busy timeout, foreign keys, durability level) are
// carried in the DSN so the pool cannot hand out an untuned connection.
func dsn(path string, o options) string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_foreign_keys=on&_synchronous=%s&_cache_size=%d",
		path, o.busyTimeout.Milliseconds(), o.synchronous, -o.cacheKB)
}
