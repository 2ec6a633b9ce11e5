package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deltasink/internal/ir"
)

// sampleResult holds one partitioned upsert: two data rows and a key delete.
func sampleResult() *Result {
	r := NewResult()
	r.AddTrace(ActionData, "v1=eu", []ir.Value{ir.Int(1), ir.String("eu"), ir.String("x")})
	r.AddTrace(ActionDelete, "v1=eu", []ir.Value{ir.Int(1)})
	r.AddTrace(ActionData, "v1=eu", []ir.Value{ir.Int(1), ir.String("eu"), ir.String("z")})
	r.Files = []FileSnapshot{
		{
			File: ir.DataFile{ID: "file-0001", PartitionPath: "v1=eu", Content: ir.ContentData, RecordCount: 2},
			Records: [][]ir.Value{
				{ir.Int(1), ir.String("eu"), ir.String("x")},
				{ir.Int(1), ir.String("eu"), ir.String("z")},
			},
		},
		{
			File:    ir.DataFile{ID: "file-0002", PartitionPath: "v1=eu", Content: ir.ContentEqualityDeletes, EqualityFieldIDs: []int{1}, RecordCount: 1},
			Records: [][]ir.Value{{ir.Int(1)}},
		},
	}
	return r
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{
			name:      "trace contains data row",
			assertion: Assertion{Type: AssertTraceContains, Action: ActionData, Partition: "v1=eu", Record: []any{1, "eu", "z"}},
		},
		{
			name:      "trace contains key delete",
			assertion: Assertion{Type: AssertTraceContains, Action: ActionDelete, Partition: "v1=eu", Record: []any{1}},
		},
		{
			name:      "trace contains wrong partition",
			assertion: Assertion{Type: AssertTraceContains, Action: ActionDelete, Record: []any{1}},
			wantErr:   "not found in trace",
		},
		{
			name:      "trace contains full row as delete",
			assertion: Assertion{Type: AssertTraceContains, Action: ActionDelete, Partition: "v1=eu", Record: []any{1, "eu", "x"}},
			wantErr:   "not found in trace",
		},
		{
			name:      "trace count",
			assertion: Assertion{Type: AssertTraceCount, Action: ActionData, Count: 2},
		},
		{
			name:      "trace count mismatch",
			assertion: Assertion{Type: AssertTraceCount, Action: ActionDelete, Count: 2},
			wantErr:   "Expected: 2 delete call(s)",
		},
		{
			name:      "file count",
			assertion: Assertion{Type: AssertFileCount, Content: "equality_deletes", Count: 1},
		},
		{
			name:      "file count mismatch",
			assertion: Assertion{Type: AssertFileCount, Content: "data", Count: 3},
			wantErr:   "Actual: 1 data file(s)",
		},
		{
			name: "file records",
			assertion: Assertion{Type: AssertFileRecords, Content: "data", Partition: "v1=eu",
				Records: [][]any{{1, "eu", "x"}, {1, "eu", "z"}}},
		},
		{
			name: "file records out of order",
			assertion: Assertion{Type: AssertFileRecords, Content: "data", Partition: "v1=eu",
				Records: [][]any{{1, "eu", "z"}, {1, "eu", "x"}}},
			wantErr: "Expected: [(1,eu,z) (1,eu,x)]",
		},
		{
			name:      "file records missing partition",
			assertion: Assertion{Type: AssertFileRecords, Content: "data", Partition: "v1=us", Records: [][]any{}},
			wantErr:   "no such file",
		},
		{
			name:      "equality ids",
			assertion: Assertion{Type: AssertEqualityIDs, IDs: []int{1}},
		},
		{
			name:      "equality ids mismatch",
			assertion: Assertion{Type: AssertEqualityIDs, IDs: []int{1, 2}},
			wantErr:   "[1] on file-0002",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_exists"},
			wantErr:   `unknown assertion type "trace_exists"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], "assertions[0]")
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestEqualityIDs_NoDeleteFiles(t *testing.T) {
	r := NewResult()
	errs := EvaluateAssertions(r, []Assertion{{Type: AssertEqualityIDs, IDs: []int{1}}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "no delete files")
}

func TestTraceContains_NullValue(t *testing.T) {
	r := NewResult()
	r.AddTrace(ActionData, "", []ir.Value{ir.Int(1), ir.Null{}})

	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceContains, Action: ActionData, Record: []any{1, nil}},
	})
	assert.Empty(t, errs)
}

func TestTraceContains_UnsupportedExpectedValue(t *testing.T) {
	r := sampleResult()
	errs := EvaluateAssertions(r, []Assertion{
		{Type: AssertTraceContains, Action: ActionData, Record: []any{1.5}},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "record[0]")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 delete call(s)",
		Actual:   "0 delete call(s)",
		Trace:    sampleResult().Trace,
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Full trace:")
	assert.Contains(t, msg, "[2] delete v1=eu (1)")
	assert.Contains(t, msg, "[3] data v1=eu (1,eu,z)")
}

func TestAddTrace_CopiesRecord(t *testing.T) {
	values := []ir.Value{ir.Int(1)}
	r := NewResult()
	r.AddTrace(ActionData, "", values)
	values[0] = ir.Int(2)

	assert.Equal(t, []ir.Value{ir.Int(1)}, r.Trace[0].Record)
	assert.Equal(t, int64(1), r.Trace[0].Seq)
}

func TestResult_AddErrorFails(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
