// Package database stores crawl history in SQLite.
//
// Every crawl is saved as one run row plus one row per visited URL, so later
// runs of the same host can be compared page by page. The driver is
// modernc.org/sqlite, which needs no cgo; the database is a single file in
// the user's data directory.
package database
