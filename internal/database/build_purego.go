//go:build purego || !cgo_sqlite
// +build purego !cgo_sqlite

package database

// This file is compiled when building without CGO or with the purego tag.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...
//
// The pure Go implementation provides:
//   - No C compiler required
//   - Cross-platform compilation
//   - Suitable for development and smaller capture histories
//
// Driver used: modernc.org/sqlite

import (
	"fmt"
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)

// dsn builds a driver-specific connection string. Pragmas that must hold on
// every pooled connection (busy timeout, foreign keys, durability level) are
// carried in the DSN so the pool cannot hand out an untuned connection.
func dsn(path string, o options) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(%s)&_pragma=cache_size(%d)",
		path, o.busyTimeout.Milliseconds(), o.synchronous, -o.cacheKB)
}
