// Package store persists transform results in SQLite so later builds can
// skip shaking unchanged files.
//
// Rows are keyed by ir.CacheKey(file, token, content_hash). Editing a file
// changes its content hash, so stale rows are never returned; they stay
// until Clear.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//
// Results are stored as canonical JSON (see ir.MarshalCanonical). Reads
// order by seq so Load returns results in the order they were written.
package store
