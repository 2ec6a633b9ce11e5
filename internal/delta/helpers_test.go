package delta

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/deltasink/internal/ir"
)

// backendCall is one call observed by recordingFactory.
type backendCall struct {
	Partition string
	Op        string // "data" | "delete"
	Row       ir.Row
}

// recordingFactory hands out in-memory backends that log every call into a
// shared, ordered list.
type recordingFactory struct {
	calls   []backendCall
	opened  []BackendSpec
	closed  []string
	aborted []string

	failOpen   error
	failAppend error
	failClose  error
}

func (f *recordingFactory) NewBackend(_ context.Context, spec BackendSpec) (FileWriterBackend, error) {
	if f.failOpen != nil {
		return nil, f.failOpen
	}
	f.opened = append(f.opened, spec)
	return &recordingBackend{f: f, spec: spec}, nil
}

func (f *recordingFactory) ops(op string) []backendCall {
	var out []backendCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

type recordingBackend struct {
	f       *recordingFactory
	spec    BackendSpec
	data    int64
	deletes int64
}

func (b *recordingBackend) AppendData(_ context.Context, row ir.Row) error {
	if b.f.failAppend != nil {
		return b.f.failAppend
	}
	b.f.calls = append(b.f.calls, backendCall{Partition: b.spec.Partition.Path, Op: "data", Row: row})
	b.data++
	return nil
}

func (b *recordingBackend) AppendDelete(_ context.Context, record ir.Row) error {
	if b.f.failAppend != nil {
		return b.f.failAppend
	}
	b.f.calls = append(b.f.calls, backendCall{Partition: b.spec.Partition.Path, Op: "delete", Row: record})
	b.deletes++
	return nil
}

func (b *recordingBackend) Close(_ context.Context) (WriteResult, error) {
	if b.f.failClose != nil {
		return WriteResult{}, b.f.failClose
	}
	b.f.closed = append(b.f.closed, b.spec.Partition.Path)

	var result WriteResult
	if b.data > 0 {
		result.DataFiles = append(result.DataFiles, ir.DataFile{
			ID:          b.spec.Partition.Path + "/data",
			Partition:   b.spec.Partition,
			Content:     ir.ContentData,
			RecordCount: b.data,
		})
	}
	if b.deletes > 0 {
		result.DeleteFiles = append(result.DeleteFiles, ir.DataFile{
			ID:               b.spec.Partition.Path + "/deletes",
			Partition:        b.spec.Partition,
			Content:          ir.ContentEqualityDeletes,
			EqualityFieldIDs: b.spec.EqualityFieldIDs,
			RecordCount:      b.deletes,
		})
	}
	return result, nil
}

func (b *recordingBackend) Abort(_ context.Context) error {
	b.f.aborted = append(b.f.aborted, b.spec.Partition.Path)
	return nil
}

// closeOnlyFactory produces backends without Abort support.
type closeOnlyFactory struct {
	inner *recordingFactory
}

func (f closeOnlyFactory) NewBackend(ctx context.Context, spec BackendSpec) (FileWriterBackend, error) {
	b, err := f.inner.NewBackend(ctx, spec)
	if err != nil {
		return nil, err
	}
	return closeOnly{b}, nil
}

type closeOnly struct {
	FileWriterBackend
}

// columnPartitioner partitions by the value at one row position.
type columnPartitioner struct {
	name string
	pos  int
	err  error
}

func (p columnPartitioner) ComputeKey(row ir.Row) (ir.PartitionKey, error) {
	if p.err != nil {
		return ir.PartitionKey{}, p.err
	}
	return ir.NewPartitionKey([]string{p.name}, []ir.Value{row.Values[p.pos]})
}

// singlePartition routes everything to the unpartitioned key.
type singlePartition struct{}

func (singlePartition) ComputeKey(ir.Row) (ir.PartitionKey, error) {
	return ir.Unpartitioned, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
