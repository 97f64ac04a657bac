// Package ir provides the shared value types of the bakecss pipeline.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Export sets are sorted and immutable (ExportSet)
//   - Cache keys and slugs are domain-separated SHA-256 over canonical JSON
//   - All JSON tags use snake_case
package ir
