// Package definitions persists service definitions and keeps them in step
// with an optional YAML seed file.
//
// Definitions live in a "services" table keyed by name, behind gorm. SQLite
// (pure Go, modernc.org/sqlite) is the default driver; PostgreSQL is supported
// through gorm.io/driver/postgres.
//
// Rows created from the seed file carry the SHA-256 hash of their entry.
// FileSync uses it to tell unchanged entries from edited ones, and to find
// rows whose entry was removed from the file. Rows created through the API
// have no hash and are never touched by FileSync.
package definitions
