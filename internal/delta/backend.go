package delta

import (
	"context"
	"slices"

	"github.com/roach88/deltasink/internal/ir"
)

// PartitionKeyComputer derives the partition key of a row.
// Rows that are equal under the partition specification must yield equal keys.
type PartitionKeyComputer interface {
	ComputeKey(row ir.Row) (ir.PartitionKey, error)
}

// FileWriterBackend owns the physical files of one partition writer.
//
// File naming, encoding, and rolling all live behind this interface. Calls
// are made sequentially from a single goroutine; implementations may block
// on I/O.
type FileWriterBackend interface {
	// AppendData writes one full row to the data output.
	AppendData(ctx context.Context, row ir.Row) error

	// AppendDelete writes one delete record (key-only or full row,
	// depending on policy) to the equality delete output.
	AppendDelete(ctx context.Context, record ir.Row) error

	// Close finalizes all files and reports them. Terminal.
	Close(ctx context.Context) (WriteResult, error)
}

// Aborter is implemented by backends that can discard their files instead
// of committing them.
type Aborter interface {
	Abort(ctx context.Context) error
}

// BackendSpec describes the partition writer a backend is opened for.
type BackendSpec struct {
	TaskID           string
	Partition        ir.PartitionKey
	Schema           *ir.Schema
	DeleteSchema     *ir.Schema
	EqualityFieldIDs []int
}

// BackendFactory opens a FileWriterBackend for a partition writer.
// It is called lazily, on the first write or delete of each partition.
type BackendFactory interface {
	NewBackend(ctx context.Context, spec BackendSpec) (FileWriterBackend, error)
}

// BackendFactoryFunc adapts a function to BackendFactory.
type BackendFactoryFunc func(ctx context.Context, spec BackendSpec) (FileWriterBackend, error)

// NewBackend calls f.
func (f BackendFactoryFunc) NewBackend(ctx context.Context, spec BackendSpec) (FileWriterBackend, error) {
	return f(ctx, spec)
}

// WriteResult lists the files produced by a writer or task.
type WriteResult struct {
	DataFiles   []ir.DataFile
	DeleteFiles []ir.DataFile
}

// Merge appends other's files to r.
func (r *WriteResult) Merge(other WriteResult) {
	r.DataFiles = append(r.DataFiles, other.DataFiles...)
	r.DeleteFiles = append(r.DeleteFiles, other.DeleteFiles...)
}

// Files returns data files followed by delete files.
func (r WriteResult) Files() []ir.DataFile {
	return slices.Concat(r.DataFiles, r.DeleteFiles)
}

// RecordCounts sums record counts per content kind.
func (r WriteResult) RecordCounts() (data, deletes int64) {
	for _, f := range r.DataFiles {
		data += f.RecordCount
	}
	for _, f := range r.DeleteFiles {
		deletes += f.RecordCount
	}
	return data, deletes
}
