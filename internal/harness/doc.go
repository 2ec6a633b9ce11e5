// Package harness provides conformance testing for delta writer tables.
//
// A scenario names a table definition, feeds a sequence of change events
// through a TaskWriter backed by a fresh in-memory store, and checks the
// resulting writer calls and files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	tables: ../tables/kv.cue
//	table: kv
//	events:
//	  - {op: "-U", row: {k: 5, v1: a, v2: b}}
//	  - {op: "+I", row: {k: 5, v1: a2, v2: b2}}
//	expect_error: ""
//	assertions:
//	  - type: trace_count
//	    action: delete
//	    count: 1
//	  - type: file_records
//	    content: equality_deletes
//	    records: [[5]]
//
// # Assertion Types
//
//   - trace_contains: a writer call with the given action, partition, and record
//   - trace_count: the number of writer calls of an action
//   - file_count: the number of closed files of a content kind
//   - file_records: the exact records of one partition's file
//   - equality_ids: the ids recorded on every delete file
//
// # Deterministic Testing
//
// Every scenario runs against a fresh ":memory:" store with sequential file
// ids ("file-0001", ...), so file listings and digests are identical across
// runs and can be compared against golden snapshots.
package harness
