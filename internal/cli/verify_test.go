package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deltasink/internal/store"
)

func TestVerifyValidFiles(t *testing.T) {
	db := seedDatabase(t, "task-1")

	out, _, err := execute(NewVerifyCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 2 file(s) valid")
}

func TestVerifyDetectsTampering(t *testing.T) {
	db := seedDatabase(t, "task-1")

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.DB().Exec(`
		UPDATE records SET payload = '[2]'
		WHERE file_id = (SELECT id FROM files WHERE content = 'equality_deletes')
	`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, _, err := execute(NewVerifyCommand(&RootOptions{Format: "json"}), "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string       `json:"status"`
		Data   VerifyResult `json:"data"`
		Error  *CLIError    `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "E_VERIFY_FAILED", resp.Error.Code)
	assert.False(t, resp.Data.AllValid)
	require.Len(t, resp.Data.Files, 2)
	assert.True(t, resp.Data.Files[0].Valid)
	assert.False(t, resp.Data.Files[1].Valid)
	assert.NotEqual(t, resp.Data.Files[1].Digest, resp.Data.Files[1].ComputedDigest)
}

func TestVerifyEmptyDatabase(t *testing.T) {
	db := t.TempDir() + "/empty.db"

	out, _, err := execute(NewVerifyCommand(&RootOptions{Format: "text"}), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No committed files found.")
}
