// Package store writes comparison documents to a single-file SQLite
// artifact and reads them back.
//
// Each run is stored twice: the full document as JSON in runs.document, and
// its sections, diff entries and validation issues as rows, so the artifact
// can be queried with plain SQL. Rows keep the document's order in their
// position columns.
//
// # Database Configuration
//
//   - journal_mode=DELETE: no -wal/-shm side files next to the artifact
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
