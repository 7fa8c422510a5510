// Package sqlite provides the SQLite-backed implementation of the run store.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that
// requires no CGO, enabling easy cross-compilation. One database file holds
// run lifecycle rows and the JSON stage artifacts attached to them.
//
// # Schema
//
// The database schema is managed through versioned migrations embedded from
// the migrations/ directory.
//
// # Data Location
//
// By default, the database is stored at ~/.pcs-code-export/data/runs.db
//
// # Thread Safety
//
// All operations are thread-safe. The store relies on database-level locking
// provided by SQLite in WAL mode; partition workers persist artifacts
// concurrently.
package sqlite
