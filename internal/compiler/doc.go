// Package compiler turns CUE table definitions into delta writer
// configuration.
//
// A definitions file declares one or more tables:
//
//	table: orders: {
//		fields: [
//			{id: 1, name: "order_id", type: "long", required: true},
//			{id: 2, name: "region", type: "string"},
//			{id: 3, name: "note", type: "string"},
//		]
//		equality_fields: ["order_id"]
//		delete_policy:   "key"
//		partition_by:    ["region"]
//	}
//
// Compilation has three steps. CompileTable reads the CUE value into a
// TableSpec and reports structural errors with source positions. Validate
// checks the spec and returns every problem it finds. Resolve builds the
// schema, delete policy, and partition spec a TaskWriter needs.
package compiler
