// Package delta implements the upsert write path: it turns a stream of
// change events into appends and equality deletes on per-partition writers.
//
// Components, leaves first:
//   - Classify maps a ChangeKind to Append or Tombstone
//   - Projector derives the delete-key schema and projects rows onto it
//   - EqualityDeltaWriter appends rows and records deletes under a DeletePolicy
//   - PartitionRouter owns one EqualityDeltaWriter per partition key
//   - TaskWriter drives a single ordered event stream through all of the above
//
// Control flow for one event:
//
//	event → Classify → (arity check) → PartitionRouter.Route
//	      → EqualityDeltaWriter.Write | EqualityDeltaWriter.Delete
//	      → FileWriterBackend.AppendData | FileWriterBackend.AppendDelete
//
// # Concurrency
//
// A TaskWriter is single-threaded: it must be driven by exactly one
// goroutine and performs no locking. Parallelism comes from running one
// TaskWriter per input slice; TaskWriters share no state.
//
// # Errors
//
// Classification and construction failures are *Error values with a Code.
// Backend failures are returned wrapped with %w so errors.Is/As still match
// the backend's own errors. No retries happen at this layer.
package delta
