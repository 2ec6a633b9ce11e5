package delta

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/deltasink/internal/ir"
)

// Config holds the fixed inputs of one TaskWriter.
type Config struct {
	// TaskID names the task in file metadata. Optional.
	TaskID string

	// Schema is the full table schema rows conform to.
	Schema *ir.Schema

	// EqualityFieldIDs is the delete key. Required for KeyEquality; order
	// and duplicates are irrelevant.
	EqualityFieldIDs []int

	// Policy selects key-only or full-row tombstones.
	Policy DeletePolicy

	// Partitioner computes each row's partition key.
	Partitioner PartitionKeyComputer

	// Backends opens the file backend of each partition writer.
	Backends BackendFactory
}

// Option configures a TaskWriter.
type Option func(*TaskWriter)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *TaskWriter) {
		t.logger = logger
	}
}

// TaskWriter drives one ordered change stream through classification,
// routing, and the per-partition writers.
//
// INVARIANTS:
//   - equality ids and delete schema are fixed at construction and shared
//     by every partition writer
//   - an event either produces exactly one writer call or an error; an
//     event rejected by Classify or the arity check creates no writer
//
// Not safe for concurrent use.
type TaskWriter struct {
	cfg      Config
	strategy *deleteStrategy
	router   *PartitionRouter
	logger   *slog.Logger
	closed   bool
}

// NewTaskWriter validates cfg and resolves the delete policy. Unknown
// equality field ids fail here, before any row is processed.
func NewTaskWriter(cfg Config, opts ...Option) (*TaskWriter, error) {
	if cfg.Schema == nil {
		return nil, newConfigError("schema is required")
	}
	if cfg.Partitioner == nil {
		return nil, newConfigError("partition key computer is required")
	}
	if cfg.Backends == nil {
		return nil, newConfigError("backend factory is required")
	}

	strategy, err := newDeleteStrategy(cfg.Policy, cfg.Schema, cfg.EqualityFieldIDs)
	if err != nil {
		return nil, err
	}

	t := &TaskWriter{
		cfg:      cfg,
		strategy: strategy,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}

	t.router = NewPartitionRouter(cfg.Partitioner, t.newPartitionWriter, t.logger)
	return t, nil
}

func (t *TaskWriter) newPartitionWriter(key ir.PartitionKey) *EqualityDeltaWriter {
	spec := BackendSpec{
		TaskID:           t.cfg.TaskID,
		Partition:        key,
		Schema:           t.cfg.Schema,
		DeleteSchema:     t.strategy.deleteSchema,
		EqualityFieldIDs: t.strategy.equalityIDs,
	}
	return newEqualityDeltaWriter(key, t.strategy, spec, t.cfg.Backends, t.logger)
}

// Write processes one change event.
//
// Insert and UpdateAfter append the full row; Delete and UpdateBefore
// record a tombstone. Errors are fatal for the stream.
func (t *TaskWriter) Write(ctx context.Context, row ir.Row) error {
	if t.closed {
		return NewWriterClosedError(ir.PartitionKey{})
	}

	action, err := Classify(row.Kind)
	if err != nil {
		return err
	}
	if row.Len() != t.cfg.Schema.Len() {
		return newRowArityError(row.Len(), t.cfg.Schema.Len())
	}

	writer, err := t.router.Route(row)
	if err != nil {
		return err
	}

	switch action {
	case Append:
		return writer.Write(ctx, row)
	default:
		return writer.Delete(ctx, row)
	}
}

// Close closes every partition writer in creation order and merges their
// files. All writers are closed even if some fail; failures are joined.
func (t *TaskWriter) Close(ctx context.Context) (WriteResult, error) {
	if t.closed {
		return WriteResult{}, NewWriterClosedError(ir.PartitionKey{})
	}
	t.closed = true

	var result WriteResult
	var errs []error
	for _, w := range t.router.Writers() {
		r, err := w.Close(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Merge(r)
	}

	data, deletes := result.RecordCounts()
	t.logger.Info("delta task closed",
		"task_id", t.cfg.TaskID,
		"partitions", t.router.Len(),
		"data_files", len(result.DataFiles),
		"delete_files", len(result.DeleteFiles),
		"data_records", data,
		"delete_records", deletes)

	return result, errors.Join(errs...)
}

// Abort discards the output of every partition writer. Terminal.
func (t *TaskWriter) Abort(ctx context.Context) error {
	if t.closed {
		return NewWriterClosedError(ir.PartitionKey{})
	}
	t.closed = true

	var errs []error
	for _, w := range t.router.Writers() {
		if err := w.abort(ctx); err != nil {
			t.logger.Error("partition writer abort failed",
				"partition", w.Partition().String(),
				"error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Schema returns the full table schema.
func (t *TaskWriter) Schema() *ir.Schema {
	return t.cfg.Schema
}

// DeleteSchema returns the schema of delete records: the delete-key schema
// under KeyEquality, the full schema under FullRowEquality.
func (t *TaskWriter) DeleteSchema() *ir.Schema {
	return t.strategy.deleteSchema
}

// EqualityFieldIDs returns the ids recorded on delete files, ascending.
func (t *TaskWriter) EqualityFieldIDs() []int {
	return append([]int(nil), t.strategy.equalityIDs...)
}

// Policy returns the configured delete policy.
func (t *TaskWriter) Policy() DeletePolicy {
	return t.strategy.policy
}

// Router exposes the partition router for inspection.
func (t *TaskWriter) Router() *PartitionRouter {
	return t.router
}
