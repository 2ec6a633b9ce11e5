package delta

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/deltasink/internal/ir"
)

// WriterState is the lifecycle state of a partition writer.
//
//	Unopened → Open    first Write or Delete acquires the backend
//	Open     → Closed  Close (terminal, no reopening)
//	Unopened → Closed  Close without any record; no backend is acquired
type WriterState int

const (
	WriterUnopened WriterState = iota
	WriterOpen
	WriterClosed
)

func (s WriterState) String() string {
	switch s {
	case WriterUnopened:
		return "unopened"
	case WriterOpen:
		return "open"
	case WriterClosed:
		return "closed"
	default:
		return fmt.Sprintf("WriterState(%d)", int(s))
	}
}

// EqualityDeltaWriter is the writer of one partition. Write appends full
// rows; Delete records a tombstone shaped by the task's DeletePolicy.
//
// Not safe for concurrent use.
type EqualityDeltaWriter struct {
	partition ir.PartitionKey
	strategy  *deleteStrategy
	spec      BackendSpec
	factory   BackendFactory
	logger    *slog.Logger

	backend FileWriterBackend
	state   WriterState

	dataRecords   int64
	deleteRecords int64
}

func newEqualityDeltaWriter(
	partition ir.PartitionKey,
	strategy *deleteStrategy,
	spec BackendSpec,
	factory BackendFactory,
	logger *slog.Logger,
) *EqualityDeltaWriter {
	return &EqualityDeltaWriter{
		partition: partition,
		strategy:  strategy,
		spec:      spec,
		factory:   factory,
		logger:    logger,
		state:     WriterUnopened,
	}
}

// Partition returns the partition this writer is bound to.
func (w *EqualityDeltaWriter) Partition() ir.PartitionKey {
	return w.partition
}

// Policy returns the delete policy the writer applies.
func (w *EqualityDeltaWriter) Policy() DeletePolicy {
	return w.strategy.policy
}

// State returns the lifecycle state.
func (w *EqualityDeltaWriter) State() WriterState {
	return w.state
}

// RecordCounts returns how many data and delete records were accepted.
func (w *EqualityDeltaWriter) RecordCounts() (data, deletes int64) {
	return w.dataRecords, w.deleteRecords
}

// Write appends the row's full column set to the data output.
// No deduplication is performed.
func (w *EqualityDeltaWriter) Write(ctx context.Context, row ir.Row) error {
	backend, err := w.open(ctx)
	if err != nil {
		return err
	}
	if err := backend.AppendData(ctx, row); err != nil {
		return fmt.Errorf("append data (partition=%s): %w", w.partition, err)
	}
	w.dataRecords++
	return nil
}

// Delete records a tombstone for row. Under KeyEquality the record holds
// only the key columns; under FullRowEquality it is row unmodified.
func (w *EqualityDeltaWriter) Delete(ctx context.Context, row ir.Row) error {
	backend, err := w.open(ctx)
	if err != nil {
		return err
	}
	record := w.strategy.project(row)
	if err := backend.AppendDelete(ctx, record); err != nil {
		return fmt.Errorf("append delete (partition=%s): %w", w.partition, err)
	}
	w.deleteRecords++
	return nil
}

// Close finalizes the backend, if one was acquired, and reports its files.
func (w *EqualityDeltaWriter) Close(ctx context.Context) (WriteResult, error) {
	switch w.state {
	case WriterClosed:
		return WriteResult{}, NewWriterClosedError(w.partition)
	case WriterUnopened:
		w.state = WriterClosed
		return WriteResult{}, nil
	}

	w.state = WriterClosed
	result, err := w.backend.Close(ctx)
	if err != nil {
		return result, fmt.Errorf("close backend (partition=%s): %w", w.partition, err)
	}
	return result, nil
}

// abort discards the backend's files when it supports that, and closes it
// otherwise. The writer ends Closed either way.
func (w *EqualityDeltaWriter) abort(ctx context.Context) error {
	prev := w.state
	w.state = WriterClosed
	if prev != WriterOpen {
		return nil
	}

	if a, ok := w.backend.(Aborter); ok {
		if err := a.Abort(ctx); err != nil {
			return fmt.Errorf("abort backend (partition=%s): %w", w.partition, err)
		}
		return nil
	}
	if _, err := w.backend.Close(ctx); err != nil {
		return fmt.Errorf("close backend on abort (partition=%s): %w", w.partition, err)
	}
	return nil
}

// open performs the Unopened → Open transition on first use.
func (w *EqualityDeltaWriter) open(ctx context.Context) (FileWriterBackend, error) {
	switch w.state {
	case WriterOpen:
		return w.backend, nil
	case WriterClosed:
		return nil, NewWriterClosedError(w.partition)
	}

	backend, err := w.factory.NewBackend(ctx, w.spec)
	if err != nil {
		return nil, fmt.Errorf("open backend (partition=%s): %w", w.partition, err)
	}
	w.backend = backend
	w.state = WriterOpen
	w.logger.Debug("partition writer opened",
		"partition", w.partition.String(),
		"policy", w.strategy.policy.String())
	return backend, nil
}
