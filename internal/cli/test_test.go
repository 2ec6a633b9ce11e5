package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: upsert
tables: ../tables/kv.cue
table: kv
events:
  - op: "-U"
    row: {k: 5, v1: a, v2: b}
  - op: "+U"
    row: {k: 5, v1: a, v2: c}
assertions:
  - type: file_records
    content: equality_deletes
    records: [[5]]
  - type: file_count
    content: data
    count: 1
`

const failingScenario = `name: wrong_count
tables: ../tables/kv.cue
table: kv
events:
  - op: "+I"
    row: {k: 1}
assertions:
  - type: trace_count
    action: delete
    count: 3
`

// writeScenarioDir lays out tables/kv.cue and scenarios/<name>.yaml under a
// temp dir and returns the scenarios directory.
func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "tables/kv.cue", kvTablesCUE)
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range scenarios {
		writeFile(t, dir, name+".yaml", content)
	}
	return dir
}

func TestTestCommandPasses(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"upsert": passingScenario})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ upsert")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"upsert":      passingScenario,
		"wrong_count": failingScenario,
	})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "json"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	var failed ScenarioResult
	for _, s := range resp.Data.Scenarios {
		if !s.Pass {
			failed = s
		}
	}
	assert.Equal(t, "wrong_count", failed.Name)
	require.NotEmpty(t, failed.Errors)
	assert.Contains(t, failed.Errors[0], "3 delete call(s)")
}

func TestTestCommandUpdateAndCompareGolden(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"upsert": passingScenario})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ upsert (golden updated)")

	goldenPath := filepath.Join(dir, "golden", "upsert.golden")
	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"upsert"`)

	_, _, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario_name":"stale"}`), 0644))
	out, _, err = execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "Golden file mismatch")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"upsert":      passingScenario,
		"wrong_count": failingScenario,
	})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir, "--filter", "up*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"broken": "name: broken\ntable: kv\n"})

	out, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "Load error")
}

func TestTestCommandMissingDir(t *testing.T) {
	_, _, err := execute(NewTestCommand(&RootOptions{Format: "text"}), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
