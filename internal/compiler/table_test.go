package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deltasink/internal/ir"
)

const ordersCUE = `
table: orders: {
	fields: [
		{id: 1, name: "order_id", type: "long", required: true},
		{id: 2, name: "region", type: "string"},
		{id: 3, name: "note", type: "string"},
	]
	equality_fields: ["order_id"]
	delete_policy:   "key"
	partition_by:    ["region"]
}
`

func TestCompileTableBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(ordersCUE)
	require.NoError(t, v.Err())

	spec, err := CompileTable(v.LookupPath(cue.ParsePath("table.orders")))
	require.NoError(t, err)

	assert.Equal(t, "orders", spec.Name)
	require.Len(t, spec.Fields, 3)
	assert.Equal(t, ir.Field{ID: 1, Name: "order_id", Type: ir.TypeLong, Required: true}, spec.Fields[0])
	assert.Equal(t, ir.Field{ID: 2, Name: "region", Type: ir.TypeString}, spec.Fields[1])
	assert.Equal(t, []FieldRef{{Name: "order_id"}}, spec.EqualityFields)
	assert.Equal(t, "key", spec.DeletePolicy)
	assert.Equal(t, []FieldRef{{Name: "region"}}, spec.PartitionBy)
}

func TestCompileTableDefaults(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		table: t: {
			fields: [{id: 4, name: "a", type: "int"}]
			equality_fields: [4]
		}
	`)
	require.NoError(t, v.Err())

	spec, err := CompileTable(v.LookupPath(cue.ParsePath("table.t")))
	require.NoError(t, err)
	assert.Equal(t, "key", spec.DeletePolicy)
	assert.Equal(t, []FieldRef{{ID: 4}}, spec.EqualityFields)
	assert.Empty(t, spec.PartitionBy)
}

func TestCompileTableMissingFields(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`table: t: { delete_policy: "row" }`)
	require.NoError(t, v.Err())

	_, err := CompileTable(v.LookupPath(cue.ParsePath("table.t")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fields are required")
}

func TestCompileTableMissingFieldAttrs(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"id", `table: t: fields: [{name: "a", type: "int"}]`, "fields[0].id"},
		{"name", `table: t: fields: [{id: 1, type: "int"}]`, "fields[0].name"},
		{"type", `table: t: fields: [{id: 1, name: "a"}]`, "fields[0].type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := cuecontext.New().CompileString(tt.src)
			require.NoError(t, v.Err())
			_, err := CompileTable(v.LookupPath(cue.ParsePath("table.t")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileTableBadRef(t *testing.T) {
	v := cuecontext.New().CompileString(`
		table: t: {
			fields: [{id: 1, name: "a", type: "int"}]
			equality_fields: [true]
		}
	`)
	require.NoError(t, v.Err())

	_, err := CompileTable(v.LookupPath(cue.ParsePath("table.t")))
	require.Error(t, err)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "equality_fields[0]", cerr.Field)
}

func TestCompileTables(t *testing.T) {
	v := cuecontext.New().CompileString(ordersCUE + `
		table: accounts: {
			fields: [{id: 1, name: "id", type: "long"}]
			delete_policy: "row"
		}
	`)
	require.NoError(t, v.Err())

	specs, err := CompileTables(v)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "accounts", specs[0].Name)
	assert.Equal(t, "orders", specs[1].Name)
}

func TestCompileTablesNone(t *testing.T) {
	v := cuecontext.New().CompileString(`other: 1`)
	specs, err := CompileTables(v)
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "fields", Message: "fields are required"}
	assert.Equal(t, "fields: fields are required", err.Error())
}
