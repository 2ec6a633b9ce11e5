package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/deltasink/internal/delta"
	"github.com/roach88/deltasink/internal/ir"
	"github.com/roach88/deltasink/internal/partition"
	"github.com/roach88/deltasink/internal/testutil"
)

func TestBackend_LazyFileCreation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b, err := s.NewBackend(ctx, kvSpec(t, ""))
	require.NoError(t, err)

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n))
	assert.Equal(t, 0, n, "no file before first append")

	require.NoError(t, b.AppendData(ctx, testutil.KVRow(ir.Insert, 1, "a", "b")))
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n))
	assert.Equal(t, 1, n, "data file only")

	open, err := s.CountOpenFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, open)
}

func TestBackend_Close(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b, err := s.NewBackend(ctx, kvSpec(t, "eu"))
	require.NoError(t, err)

	require.NoError(t, b.AppendDelete(ctx, ir.NewRow(ir.UpdateBefore, ir.Int(5))))
	require.NoError(t, b.AppendData(ctx, testutil.KVRow(ir.Insert, 5, "a2", "b2")))
	require.NoError(t, b.AppendData(ctx, testutil.KVRow(ir.Insert, 6, "c", "d")))

	result, err := b.Close(ctx)
	require.NoError(t, err)

	require.Len(t, result.DataFiles, 1)
	require.Len(t, result.DeleteFiles, 1)

	data := result.DataFiles[0]
	assert.Equal(t, "file-0002", data.ID)
	assert.Equal(t, ir.ContentData, data.Content)
	assert.Equal(t, int64(2), data.RecordCount)
	assert.Equal(t, "v1=eu", data.PartitionPath)
	assert.Nil(t, data.EqualityFieldIDs)
	assert.Equal(t,
		ir.DigestRecords(ir.DomainDataFile, []byte(`[5,"a2","b2"]`), []byte(`[6,"c","d"]`)),
		data.Digest)

	deletes := result.DeleteFiles[0]
	assert.Equal(t, "file-0001", deletes.ID)
	assert.Equal(t, ir.ContentEqualityDeletes, deletes.Content)
	assert.Equal(t, int64(1), deletes.RecordCount)
	assert.Equal(t, []int{1}, deletes.EqualityFieldIDs)
	assert.Equal(t, ir.DigestRecords(ir.DomainDeleteFile, []byte(`[5]`)), deletes.Digest)

	open, err := s.CountOpenFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, open)

	assert.ErrorIs(t, b.AppendData(ctx, testutil.KVRow(ir.Insert, 7, "e", "f")), ErrBackendClosed)
	_, err = b.Close(ctx)
	assert.ErrorIs(t, err, ErrBackendClosed)
}

func TestBackend_RejectsMistypedRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b, err := s.NewBackend(ctx, kvSpec(t, ""))
	require.NoError(t, err)

	err = b.AppendData(ctx, ir.NewRow(ir.Insert, ir.String("k"), ir.String("a"), ir.String("b")))
	assert.Error(t, err)

	// Delete records are validated against the delete-key schema.
	err = b.AppendDelete(ctx, testutil.KVRow(ir.Delete, 1, "a", "b"))
	assert.Error(t, err)

	err = b.AppendDelete(ctx, ir.NewRow(ir.Delete, ir.Null{}))
	assert.Error(t, err, "k is required")

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n))
	assert.Equal(t, 0, n)
}

func TestBackend_Abort(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	b, err := s.NewBackend(ctx, kvSpec(t, ""))
	require.NoError(t, err)
	require.NoError(t, b.AppendData(ctx, testutil.KVRow(ir.Insert, 1, "a", "b")))
	require.NoError(t, b.AppendDelete(ctx, ir.NewRow(ir.Delete, ir.Int(1))))

	aborter, ok := b.(delta.Aborter)
	require.True(t, ok, "store backends support abort")
	require.NoError(t, aborter.Abort(ctx))

	files, err := s.ListFiles(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, files)

	_, state, err := s.GetFile(ctx, "file-0001")
	require.NoError(t, err)
	assert.Equal(t, "aborted", state)

	records, err := s.ReadRecords(ctx, "file-0001")
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.ErrorIs(t, aborter.Abort(ctx), ErrBackendClosed)
}

func TestBackend_RequiresSchemas(t *testing.T) {
	s := createTestStore(t)
	_, err := s.NewBackend(context.Background(), delta.BackendSpec{TaskID: "t"})
	assert.Error(t, err)
}

// TaskWriter over the store: upsert by key in two partitions.
func TestStore_TaskWriterRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	schema := testutil.KVSchema()

	spec, err := partition.NewIdentity(schema, []int{2})
	require.NoError(t, err)

	task, err := delta.NewTaskWriter(delta.Config{
		TaskID:           "task-7",
		Schema:           schema,
		EqualityFieldIDs: []int{1},
		Policy:           delta.KeyEquality,
		Partitioner:      spec,
		Backends:         s,
	}, delta.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	events := []ir.Row{
		testutil.KVRow(ir.Insert, 5, "eu", "b"),
		testutil.KVRow(ir.UpdateBefore, 5, "eu", "b"),
		testutil.KVRow(ir.UpdateAfter, 5, "eu", "b2"),
		testutil.KVRow(ir.Insert, 9, "us", "z"),
		testutil.KVRow(ir.Delete, 9, "us", "z"),
	}
	for _, e := range events {
		require.NoError(t, task.Write(ctx, e))
	}

	result, err := task.Close(ctx)
	require.NoError(t, err)
	assert.Len(t, result.DataFiles, 2)
	assert.Len(t, result.DeleteFiles, 2)

	files, err := s.ListFiles(ctx, "task-7")
	require.NoError(t, err)
	require.Len(t, files, 4)

	var got []string
	for _, f := range files {
		got = append(got, f.ID+" "+f.PartitionPath+" "+string(f.Content))
	}
	assert.Equal(t, []string{
		"file-0001 v1=eu data",
		"file-0002 v1=eu equality_deletes",
		"file-0003 v1=us data",
		"file-0004 v1=us equality_deletes",
	}, got)

	records, err := s.ReadRecords(ctx, "file-0002")
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Value{{ir.Int(5)}}, records)

	records, err = s.ReadRecords(ctx, "file-0001")
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Value{
		{ir.Int(5), ir.String("eu"), ir.String("b")},
		{ir.Int(5), ir.String("eu"), ir.String("b2")},
	}, records)
}

func TestStore_TaskWriterFullRow(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	task, err := delta.NewTaskWriter(delta.Config{
		TaskID:      "task-8",
		Schema:      testutil.KVSchema(),
		Policy:      delta.FullRowEquality,
		Partitioner: partition.Unpartitioned(),
		Backends:    s,
	})
	require.NoError(t, err)

	require.NoError(t, task.Write(ctx, testutil.KVRow(ir.Delete, 5, "a", "b")))
	result, err := task.Close(ctx)
	require.NoError(t, err)

	require.Len(t, result.DeleteFiles, 1)
	assert.Equal(t, []int{1, 2, 3}, result.DeleteFiles[0].EqualityFieldIDs)

	records, err := s.ReadRecords(ctx, result.DeleteFiles[0].ID)
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Value{{ir.Int(5), ir.String("a"), ir.String("b")}}, records)
}

func TestStore_BackendErrorsSurfaceThroughTask(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	task, err := delta.NewTaskWriter(delta.Config{
		Schema:           testutil.KVSchema(),
		EqualityFieldIDs: []int{1},
		Partitioner:      partition.Unpartitioned(),
		Backends:         s,
	})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	err = task.Write(ctx, testutil.KVRow(ir.Insert, 1, "a", "b"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrBackendClosed))
	assert.Contains(t, err.Error(), "append data")
}
