// Package database provides the SQLite run history of pdfharvest.
//
// HistoryDB stores:
//   - one row per crawl run with its counters and merge summary
//   - one row per download outcome, including the SHA3-256 digest
//   - the full JSON report of every run
//
// The driver is modernc.org/sqlite, so no cgo is needed.
package database
