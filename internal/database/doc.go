// Package database assembles the queryable SQLite artifact from processed
// documents and media. The build runs inside a single transaction against a
// temporary file; the finished database is verified and moved into place
// atomically, so a failed build never leaves a partial artifact behind.
//
// Two SQLite drivers are supported via build tags: a CGO build using
// github.com/mattn/go-sqlite3 and a pure Go build using modernc.org/sqlite.
// The schema is identical in both modes.
package database
