package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const kvTablesCUE = `
package tables

table: kv: {
	fields: [
		{id: 1, name: "k", type: "long", required: true},
		{id: 2, name: "v1", type: "string"},
		{id: 3, name: "v2", type: "string"},
	]
	equality_fields: ["k"]
}

table: kv_row: {
	fields:        table.kv.fields
	delete_policy: "row"
}

table: kv_by_region: {
	fields:          table.kv.fields
	equality_fields: [1]
	partition_by:    ["v1"]
}
`

// writeTablesDir writes a CUE tables package and returns its directory.
func writeTablesDir(t *testing.T, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tables")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tables.cue"), []byte(content), 0644))
	return dir
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns stdout, stderr, and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}
