package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/deltasink/internal/compiler"
	"github.com/roach88/deltasink/internal/delta"
	"github.com/roach88/deltasink/internal/events"
	"github.com/roach88/deltasink/internal/ir"
	"github.com/roach88/deltasink/internal/store"
	"github.com/roach88/deltasink/internal/testutil"
)

// DefaultTaskID is used when a scenario sets no task_id.
const DefaultTaskID = "test-task"

// Harness is the test execution state of one scenario run.
type Harness struct {
	store  *store.Store
	table  *compiler.Table
	codec  *events.Codec
	result *Result
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile the scenario's table definition
// 2. Create a fresh in-memory store with sequential file ids
// 3. Write every event through a TaskWriter, tracing backend calls
// 4. Close the task (or abort it after an expected error)
// 5. Read back the closed files and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	table, err := loadTable(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:", store.WithIDGenerator(testutil.NewSequentialIDGenerator("file")))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		table:  table,
		codec:  events.NewCodec(table.Schema),
		result: NewResult(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	if err := h.execute(ctx, scenario); err != nil {
		return nil, err
	}

	files, err := h.snapshotFiles(ctx)
	if err != nil {
		return nil, err
	}
	h.result.Files = files

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// execute feeds the events to a TaskWriter and settles the task.
func (h *Harness) execute(ctx context.Context, scenario *Scenario) error {
	taskID := scenario.TaskID
	if taskID == "" {
		taskID = DefaultTaskID
	}

	task, err := delta.NewTaskWriter(
		h.table.TaskConfig(taskID, &tracingFactory{inner: h.store, result: h.result}),
		delta.WithLogger(h.logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create task writer: %w", err)
	}

	var writeErr error
	for i, step := range scenario.Events {
		row, err := h.codec.DecodeEvent(step.Op, step.Row)
		if err != nil {
			writeErr = fmt.Errorf("events[%d]: %w", i, err)
			break
		}
		if err := task.Write(ctx, row); err != nil {
			writeErr = fmt.Errorf("events[%d]: %w", i, err)
			break
		}
	}

	if writeErr != nil {
		h.result.WriteError = writeErr.Error()
		if scenario.ExpectError == "" {
			h.result.AddError(fmt.Sprintf("unexpected write error: %v", writeErr))
		} else if !containsText(writeErr.Error(), scenario.ExpectError) {
			h.result.AddError(fmt.Sprintf("write error %q does not contain %q", writeErr, scenario.ExpectError))
		}
		if err := task.Abort(ctx); err != nil {
			return fmt.Errorf("failed to abort task: %w", err)
		}
		return nil
	}

	if scenario.ExpectError != "" {
		h.result.AddError(fmt.Sprintf("expected write error containing %q, stream succeeded", scenario.ExpectError))
	}
	if _, err := task.Close(ctx); err != nil {
		return fmt.Errorf("failed to close task: %w", err)
	}
	return nil
}

// snapshotFiles reads every closed file and its records back from the store.
func (h *Harness) snapshotFiles(ctx context.Context) ([]FileSnapshot, error) {
	files, err := h.store.ListFiles(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	snapshots := make([]FileSnapshot, 0, len(files))
	for _, f := range files {
		records, err := h.store.ReadRecords(ctx, f.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read records: %w", err)
		}
		snapshots = append(snapshots, FileSnapshot{File: f, Records: records})
	}
	return snapshots, nil
}

func loadTable(scenario *Scenario) (*compiler.Table, error) {
	specs, err := compiler.CompileFile(scenario.Tables)
	if err != nil {
		return nil, fmt.Errorf("failed to compile tables: %w", err)
	}
	spec, err := compiler.FindTable(specs, scenario.Table)
	if err != nil {
		return nil, err
	}
	return compiler.Resolve(spec)
}

// tracingFactory wraps store backends so every append lands in the trace.
type tracingFactory struct {
	inner  delta.BackendFactory
	result *Result
}

func (f *tracingFactory) NewBackend(ctx context.Context, spec delta.BackendSpec) (delta.FileWriterBackend, error) {
	b, err := f.inner.NewBackend(ctx, spec)
	if err != nil {
		return nil, err
	}
	return &tracingBackend{inner: b, partition: spec.Partition.Path, result: f.result}, nil
}

type tracingBackend struct {
	inner     delta.FileWriterBackend
	partition string
	result    *Result
}

func (b *tracingBackend) AppendData(ctx context.Context, row ir.Row) error {
	b.result.AddTrace(ActionData, b.partition, row.Values)
	return b.inner.AppendData(ctx, row)
}

func (b *tracingBackend) AppendDelete(ctx context.Context, record ir.Row) error {
	b.result.AddTrace(ActionDelete, b.partition, record.Values)
	return b.inner.AppendDelete(ctx, record)
}

func (b *tracingBackend) Close(ctx context.Context) (delta.WriteResult, error) {
	return b.inner.Close(ctx)
}

// Abort forwards to the store backend so aborted files are discarded.
func (b *tracingBackend) Abort(ctx context.Context) error {
	if a, ok := b.inner.(delta.Aborter); ok {
		return a.Abort(ctx)
	}
	_, err := b.inner.Close(ctx)
	return err
}
