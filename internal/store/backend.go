package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/deltasink/internal/delta"
	"github.com/roach88/deltasink/internal/ir"
)

// ErrBackendClosed is returned by appends after Close or Abort.
var ErrBackendClosed = errors.New("store: backend is closed")

// File states persisted in files.state.
const (
	stateOpen    = "open"
	stateClosed  = "closed"
	stateAborted = "aborted"
)

// NewBackend opens the file backend of one partition writer.
// No file row is created until the first append.
//
// Implements delta.BackendFactory.
func (s *Store) NewBackend(_ context.Context, spec delta.BackendSpec) (delta.FileWriterBackend, error) {
	if spec.Schema == nil || spec.DeleteSchema == nil {
		return nil, fmt.Errorf("new backend (partition=%s): schema and delete schema are required", spec.Partition)
	}
	equalityIDs, err := marshalFieldIDs(spec.EqualityFieldIDs)
	if err != nil {
		return nil, fmt.Errorf("new backend (partition=%s): %w", spec.Partition, err)
	}
	return &partitionBackend{
		store:       s,
		spec:        spec,
		equalityIDs: equalityIDs,
	}, nil
}

// openFile is the in-progress state of one file.
type openFile struct {
	id      string
	content ir.FileContent
	count   int64
	digest  *ir.Digest
}

// partitionBackend writes one partition's data and delete records.
// Not safe for concurrent use.
type partitionBackend struct {
	store       *Store
	spec        delta.BackendSpec
	equalityIDs string

	data    *openFile
	deletes *openFile
	done    bool
}

// AppendData stores row as the next record of the data file.
func (b *partitionBackend) AppendData(ctx context.Context, row ir.Row) error {
	if b.done {
		return ErrBackendClosed
	}
	if err := b.spec.Schema.Validate(row.Values); err != nil {
		return fmt.Errorf("append data: %w", err)
	}
	if b.data == nil {
		f, err := b.createFile(ctx, ir.ContentData, "[]")
		if err != nil {
			return err
		}
		b.data = f
	}
	return b.appendRecord(ctx, b.data, row.Values)
}

// AppendDelete stores record as the next record of the equality delete file.
func (b *partitionBackend) AppendDelete(ctx context.Context, record ir.Row) error {
	if b.done {
		return ErrBackendClosed
	}
	if err := b.spec.DeleteSchema.Validate(record.Values); err != nil {
		return fmt.Errorf("append delete: %w", err)
	}
	if b.deletes == nil {
		f, err := b.createFile(ctx, ir.ContentEqualityDeletes, b.equalityIDs)
		if err != nil {
			return err
		}
		b.deletes = f
	}
	return b.appendRecord(ctx, b.deletes, record.Values)
}

// Close marks the backend's files closed with their final record counts
// and digests, data file first.
func (b *partitionBackend) Close(ctx context.Context) (delta.WriteResult, error) {
	if b.done {
		return delta.WriteResult{}, ErrBackendClosed
	}
	b.done = true

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return delta.WriteResult{}, fmt.Errorf("close files: %w", err)
	}
	defer tx.Rollback()

	var result delta.WriteResult
	for _, f := range []*openFile{b.data, b.deletes} {
		if f == nil {
			continue
		}
		digest := f.digest.Sum()
		_, err := tx.ExecContext(ctx, `
			UPDATE files
			SET state = ?, record_count = ?, digest = ?
			WHERE id = ? AND state = ?
		`, stateClosed, f.count, digest, f.id, stateOpen)
		if err != nil {
			return delta.WriteResult{}, fmt.Errorf("close file %s: %w", f.id, err)
		}

		file := b.describe(f, digest)
		if f.content == ir.ContentData {
			result.DataFiles = append(result.DataFiles, file)
		} else {
			result.DeleteFiles = append(result.DeleteFiles, file)
		}
	}

	if err := tx.Commit(); err != nil {
		return delta.WriteResult{}, fmt.Errorf("close files: %w", err)
	}
	return result, nil
}

// Abort discards the records of the backend's files and marks them aborted.
//
// Implements delta.Aborter.
func (b *partitionBackend) Abort(ctx context.Context) error {
	if b.done {
		return ErrBackendClosed
	}
	b.done = true

	tx, err := b.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("abort files: %w", err)
	}
	defer tx.Rollback()

	for _, f := range []*openFile{b.data, b.deletes} {
		if f == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE file_id = ?`, f.id); err != nil {
			return fmt.Errorf("abort file %s: %w", f.id, err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE files SET state = ?, record_count = 0 WHERE id = ?
		`, stateAborted, f.id); err != nil {
			return fmt.Errorf("abort file %s: %w", f.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("abort files: %w", err)
	}
	return nil
}

func (b *partitionBackend) createFile(ctx context.Context, content ir.FileContent, equalityIDs string) (*openFile, error) {
	id := b.store.ids.Generate()
	_, err := b.store.db.ExecContext(ctx, `
		INSERT INTO files
		(id, task_id, partition_path, partition_values, content, equality_ids, state, format_version, writer_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		b.spec.TaskID,
		b.spec.Partition.Path,
		partitionValues(b.spec.Partition),
		string(content),
		equalityIDs,
		stateOpen,
		ir.FormatVersion,
		ir.WriterVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("create %s file: %w", content, err)
	}

	domain := ir.DomainDataFile
	if content == ir.ContentEqualityDeletes {
		domain = ir.DomainDeleteFile
	}
	return &openFile{id: id, content: content, digest: ir.NewDigest(domain)}, nil
}

func (b *partitionBackend) appendRecord(ctx context.Context, f *openFile, values []ir.Value) error {
	payload, err := marshalRecord(values)
	if err != nil {
		return fmt.Errorf("append %s record: %w", f.content, err)
	}

	_, err = b.store.db.ExecContext(ctx, `
		INSERT INTO records (file_id, ordinal, payload)
		VALUES (?, ?, ?)
	`, f.id, f.count, string(payload))
	if err != nil {
		return fmt.Errorf("append %s record: %w", f.content, err)
	}

	f.count++
	f.digest.Add(payload)
	return nil
}

func (b *partitionBackend) describe(f *openFile, digest string) ir.DataFile {
	file := ir.DataFile{
		ID:            f.id,
		TaskID:        b.spec.TaskID,
		Partition:     b.spec.Partition,
		PartitionPath: b.spec.Partition.Path,
		Content:       f.content,
		RecordCount:   f.count,
		Digest:        digest,
	}
	if f.content == ir.ContentEqualityDeletes {
		file.EqualityFieldIDs = append([]int(nil), b.spec.EqualityFieldIDs...)
	}
	return file
}

// partitionValues normalizes the zero key to the unpartitioned encoding.
func partitionValues(k ir.PartitionKey) string {
	if k.Values == "" {
		return ir.Unpartitioned.Values
	}
	return k.Values
}
