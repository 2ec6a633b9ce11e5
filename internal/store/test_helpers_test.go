package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/deltasink/internal/delta"
	"github.com/roach88/deltasink/internal/ir"
	"github.com/roach88/deltasink/internal/testutil"
)

// createTestStore creates a new store in a temp dir with sequential file ids.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(testutil.NewSequentialIDGenerator("file")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// kvSpec returns the backend spec of a KV partition keyed on k.
func kvSpec(t *testing.T, partition string) delta.BackendSpec {
	t.Helper()
	schema := testutil.KVSchema()
	key := ir.Unpartitioned
	if partition != "" {
		var err error
		key, err = ir.NewPartitionKey([]string{"v1"}, []ir.Value{ir.String(partition)})
		if err != nil {
			t.Fatalf("NewPartitionKey() failed: %v", err)
		}
	}
	deleteSchema, err := delta.DeriveDeleteSchema(schema, []int{1})
	if err != nil {
		t.Fatalf("DeriveDeleteSchema() failed: %v", err)
	}
	return delta.BackendSpec{
		TaskID:           "task-1",
		Partition:        key,
		Schema:           schema,
		DeleteSchema:     deleteSchema,
		EqualityFieldIDs: []int{1},
	}
}
