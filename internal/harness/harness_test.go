package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deltasink/internal/ir"
)

var kvTables = filepath.Join("testdata", "tables", "kv.cue")

func TestRun_KeyEqualityUpsert(t *testing.T) {
	scenario := &Scenario{
		Name:   "upsert",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{
			{Op: "-U", Row: map[string]any{"k": 5, "v1": "a", "v2": "b"}},
			{Op: "+I", Row: map[string]any{"k": 5, "v1": "a2", "v2": "b2"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, ActionDelete, result.Trace[0].Action)
	assert.Equal(t, []ir.Value{ir.Int(5)}, result.Trace[0].Record)
	assert.Equal(t, ActionData, result.Trace[1].Action)
	assert.Equal(t, []ir.Value{ir.Int(5), ir.String("a2"), ir.String("b2")}, result.Trace[1].Record)

	require.Len(t, result.Files, 2)
	deletes := result.Files[0]
	assert.Equal(t, ir.ContentEqualityDeletes, deletes.File.Content)
	assert.Equal(t, []int{1}, deletes.File.EqualityFieldIDs)
	assert.Equal(t, DefaultTaskID, deletes.File.TaskID)
	assert.Equal(t, [][]ir.Value{{ir.Int(5)}}, deletes.Records)

	data := result.Files[1]
	assert.Equal(t, ir.ContentData, data.File.Content)
	assert.Equal(t, int64(1), data.File.RecordCount)
}

func TestRun_FullRowDelete(t *testing.T) {
	scenario := &Scenario{
		Name:   "full_row",
		Tables: kvTables,
		Table:  "kv_row",
		Events: []EventStep{
			{Op: "-D", Row: map[string]any{"k": 5, "v1": "a", "v2": "b"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 1)
	assert.Equal(t, []ir.Value{ir.Int(5), ir.String("a"), ir.String("b")}, result.Trace[0].Record)
	require.Len(t, result.Files, 1)
	assert.Equal(t, []int{1, 2, 3}, result.Files[0].File.EqualityFieldIDs)
}

func TestRun_AbsentColumnIsNull(t *testing.T) {
	scenario := &Scenario{
		Name:   "sparse",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{
			{Op: "+I", Row: map[string]any{"k": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, []ir.Value{ir.Int(1), ir.Null{}, ir.Null{}}, result.Trace[0].Record)
}

func TestRun_CustomTaskID(t *testing.T) {
	scenario := &Scenario{
		Name:   "task",
		Tables: kvTables,
		Table:  "kv",
		TaskID: "job-42",
		Events: []EventStep{
			{Op: "+I", Row: map[string]any{"k": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "job-42", result.Files[0].File.TaskID)
}

func TestRun_ExpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:   "unsupported",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{
			{Op: "+I", Row: map[string]any{"k": 1}},
			{Op: 42, Row: map[string]any{"k": 2}},
			{Op: "+I", Row: map[string]any{"k": 3}},
		},
		ExpectError: "UNSUPPORTED_CHANGE_KIND",
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.WriteError, "events[1]")

	// The rejected event made no call and the aborted file is not listed.
	assert.Len(t, result.Trace, 1)
	assert.Empty(t, result.Files)
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:   "unexpected",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{
			{Op: "UPSERT", Row: map[string]any{"k": 1}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected write error")
}

func TestRun_MissingExpectedError(t *testing.T) {
	scenario := &Scenario{
		Name:   "no_error",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{
			{Op: "+I", Row: map[string]any{"k": 1}},
		},
		ExpectError: "unknown row kind",
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "stream succeeded")
}

func TestRun_ErrorTextMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:   "mismatch",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{
			{Op: 7, Row: map[string]any{"k": 1}},
		},
		ExpectError: "row arity",
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "does not contain")
}

func TestRun_FailingAssertion(t *testing.T) {
	scenario := &Scenario{
		Name:   "failing",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{
			{Op: "+I", Row: map[string]any{"k": 1}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Action: ActionDelete, Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
}

func TestRun_UnknownTable(t *testing.T) {
	scenario := &Scenario{
		Name:   "missing",
		Tables: kvTables,
		Table:  "nope",
		Events: []EventStep{{Op: "+I", Row: map[string]any{"k": 1}}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `table "nope" not defined`)
}

func TestRun_MissingTablesFile(t *testing.T) {
	scenario := &Scenario{
		Name:   "missing",
		Tables: filepath.Join(t.TempDir(), "absent.cue"),
		Table:  "kv",
		Events: []EventStep{{Op: "+I", Row: map[string]any{"k": 1}}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile tables")
}

func TestRun_Isolation(t *testing.T) {
	scenario := &Scenario{
		Name:   "isolation",
		Tables: kvTables,
		Table:  "kv",
		Events: []EventStep{{Op: "+I", Row: map[string]any{"k": 1}}},
	}

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	// Each run gets a fresh store, so ids and digests repeat.
	require.Len(t, second.Files, 1)
	assert.Equal(t, first.Files, second.Files)
	assert.Equal(t, "file-0001", second.Files[0].File.ID)
}
