package testutil

import "github.com/roach88/deltasink/internal/ir"

// KVSchema returns the three-column table used throughout the tests:
//
//	1:k:long (required), 2:v1:string, 3:v2:string
func KVSchema() *ir.Schema {
	return ir.MustSchema(
		ir.Field{ID: 1, Name: "k", Type: ir.TypeLong, Required: true},
		ir.Field{ID: 2, Name: "v1", Type: ir.TypeString},
		ir.Field{ID: 3, Name: "v2", Type: ir.TypeString},
	)
}

// KVRow builds a row of KVSchema.
func KVRow(kind ir.ChangeKind, k int64, v1, v2 string) ir.Row {
	return ir.NewRow(kind, ir.Int(k), ir.String(v1), ir.String(v2))
}

// SparseSchema returns a schema whose ids are neither contiguous nor
// 1-based nor in ascending positional order, as after dropped and
// reordered columns:
//
//	7:region:string, 2:id:long, 10:name:string, 4:active:boolean
func SparseSchema() *ir.Schema {
	return ir.MustSchema(
		ir.Field{ID: 7, Name: "region", Type: ir.TypeString},
		ir.Field{ID: 2, Name: "id", Type: ir.TypeLong, Required: true},
		ir.Field{ID: 10, Name: "name", Type: ir.TypeString},
		ir.Field{ID: 4, Name: "active", Type: ir.TypeBoolean},
	)
}
