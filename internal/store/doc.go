// Package store provides SQLite-backed durable storage for delta writer
// output files.
//
// Each partition writer of a task owns at most one data file and one
// equality delete file. Files are rows of the files table; their records
// are rows of the records table, stored as canonical JSON arrays in
// append order.
//
// # File lifecycle
//
//	open    created lazily by the first append of its content kind
//	closed  Close fixed record_count and digest; visible to ListFiles
//	aborted Abort discarded the records; the file row is kept for audit
//
// # Deterministic Query Results
//
// All file queries order by seq ASC, id ASC COLLATE BINARY; records order
// by ordinal. Listings are identical across runs that write the same
// events with the same id generator.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// File digests are computed with ir.Digest over the canonical records.
package store
