package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/deltasink/internal/delta"
	"github.com/roach88/deltasink/internal/events"
	"github.com/roach88/deltasink/internal/ir"
	"github.com/roach88/deltasink/internal/store"
)

// WriteOptions holds flags for the write command.
type WriteOptions struct {
	*RootOptions
	Database string
	Table    string
	TaskID   string

	// Events is a JSON lines file; "-" reads stdin.
	Events string

	AMQPURL     string
	Queue       string
	Prefetch    int
	Declare     bool
	IdleTimeout time.Duration
	Limit       int

	// newSource overrides openSource in tests.
	newSource func(opts *WriteOptions, stdin io.Reader, codec *events.Codec, logger *slog.Logger) (eventSource, error)
}

// WriteSummary reports the files committed by one task.
type WriteSummary struct {
	TaskID        string        `json:"task_id"`
	Table         string        `json:"table"`
	Events        int           `json:"events"`
	Partitions    int           `json:"partitions"`
	DataRecords   int64         `json:"data_records"`
	DeleteRecords int64         `json:"delete_records"`
	Files         []ir.DataFile `json:"files"`
}

// NewWriteCommand creates the write command.
func NewWriteCommand(rootOpts *RootOptions) *cobra.Command {
	return newWriteCommand(&WriteOptions{RootOptions: rootOpts})
}

func newWriteCommand(opts *WriteOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write <tables-dir>",
		Short: "Write a change stream into data and delete files",
		Long: `Run one write task for a table.

Events are read either from a JSON lines file (one {"op":..., "row":{...}}
object per line) or from a RabbitMQ queue. The task is committed when the
stream ends; any error aborts it and no files are committed. Queue
deliveries are acknowledged only after the commit; an aborted task
returns them to the queue.

Exit codes:
  0 - Task committed
  1 - Stream rejected (unsupported row kind, bad event, backend failure)
  2 - Command error (invalid table, database not found, etc.)

Examples:
  deltasink write --db ./sink.db --table orders --events changes.jsonl ./tables
  cat changes.jsonl | deltasink write --db ./sink.db --table orders --events - ./tables
  deltasink write --db ./sink.db --table orders --amqp-url amqp://localhost --queue orders ./tables`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table to write (required)")
	_ = cmd.MarkFlagRequired("table")
	cmd.Flags().StringVar(&opts.TaskID, "task-id", "", "task id recorded on files (default: generated UUIDv7)")
	cmd.Flags().StringVar(&opts.Events, "events", "", `JSON lines event file, or "-" for stdin`)
	cmd.Flags().StringVar(&opts.AMQPURL, "amqp-url", "", "RabbitMQ URL to consume events from")
	cmd.Flags().StringVar(&opts.Queue, "queue", "", "RabbitMQ queue name")
	cmd.Flags().IntVar(&opts.Prefetch, "prefetch", 0, "RabbitMQ prefetch count; deliveries stay unacked until commit (0: unlimited)")
	cmd.Flags().BoolVar(&opts.Declare, "declare", false, "declare the queue as durable before consuming")
	cmd.Flags().DurationVar(&opts.IdleTimeout, "idle-timeout", 5*time.Second, "end the task after this long without deliveries")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "end the task after this many events (0: no limit)")
	cmd.MarkFlagsMutuallyExclusive("events", "amqp-url")
	cmd.MarkFlagsOneRequired("events", "amqp-url")

	return cmd
}

func runWrite(opts *WriteOptions, tablesDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	table, err := loadTable(tablesDir, opts.Table)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load table", err)
	}
	logger.Info("table loaded", "table", table.Name, "schema", table.Schema.String(), "policy", table.Policy.String())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	taskID := opts.TaskID
	if taskID == "" {
		taskID = store.UUIDv7Generator{}.Generate()
	}

	task, err := delta.NewTaskWriter(table.TaskConfig(taskID, st), delta.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create task writer", err)
	}

	// Setup signal handling for graceful shutdown.
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("task starting", "task_id", taskID, "table", table.Name)
	open := openSource
	if opts.newSource != nil {
		open = opts.newSource
	}
	source, err := open(opts, cmd.InOrStdin(), events.NewCodec(table.Schema), logger)
	if err != nil {
		_ = task.Abort(context.Background())
		_ = formatter.Error(ErrCodeGeneric, err.Error(), map[string]any{"task_id": taskID})
		return WrapExitError(ExitFailure, "write task aborted", err)
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			logger.Error("error closing event source", "error", closeErr)
		}
	}()

	n, streamErr := source.Run(ctx, task)
	if streamErr != nil {
		// Abort uses a fresh context so a cancelled stream still discards its files.
		if abortErr := task.Abort(context.Background()); abortErr != nil {
			logger.Error("task abort failed", "task_id", taskID, "error", abortErr)
		}
		rollback(source, logger)
		logger.Error("task aborted", "task_id", taskID, "events", n, "error", streamErr)
		_ = formatter.Error(errorCode(streamErr), streamErr.Error(), map[string]any{"task_id": taskID, "events": n})
		return WrapExitError(ExitFailure, "write task aborted", streamErr)
	}

	result, err := task.Close(context.Background())
	if err != nil {
		rollback(source, logger)
		return WrapExitError(ExitFailure, "failed to commit task", err)
	}
	// Files are committed; a failed ack only means the events are delivered
	// again to a later task.
	if err := source.Commit(); err != nil {
		return WrapExitError(ExitFailure, "task committed but events were not acknowledged", err)
	}

	data, deletes := result.RecordCounts()
	summary := WriteSummary{
		TaskID:        taskID,
		Table:         table.Name,
		Events:        n,
		Partitions:    task.Router().Len(),
		DataRecords:   data,
		DeleteRecords: deletes,
		Files:         result.Files(),
	}
	return outputWriteSummary(formatter, summary)
}

// eventSource feeds one task and settles its events with the task's
// outcome: Commit after the files are committed, Rollback after an abort.
type eventSource interface {
	Run(ctx context.Context, w events.Writer) (int, error)
	Commit() error
	Rollback() error
	Close() error
}

// openSource opens the AMQP consumer, or the --events file ("-" is stdin).
func openSource(opts *WriteOptions, stdin io.Reader, codec *events.Codec, logger *slog.Logger) (eventSource, error) {
	if opts.AMQPURL != "" {
		source, err := events.DialAMQP(events.AMQPConfig{
			URL:         opts.AMQPURL,
			Queue:       opts.Queue,
			ConsumerTag: "deltasink",
			Prefetch:    opts.Prefetch,
			Declare:     opts.Declare,
			IdleTimeout: opts.IdleTimeout,
			Limit:       opts.Limit,
		}, codec, logger)
		if err != nil {
			return nil, err
		}
		return source, nil
	}

	if opts.Events == "-" {
		return &fileSource{reader: events.NewReader(stdin, codec)}, nil
	}
	f, err := os.Open(opts.Events)
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	return &fileSource{reader: events.NewReader(f, codec), file: f}, nil
}

// fileSource reads a JSON lines file. A file is simply read again after an
// abort, so there is nothing to settle.
type fileSource struct {
	reader *events.Reader
	file   *os.File
}

func (s *fileSource) Run(ctx context.Context, w events.Writer) (int, error) {
	return events.Copy(ctx, w, s.reader)
}

func (s *fileSource) Commit() error   { return nil }
func (s *fileSource) Rollback() error { return nil }

func (s *fileSource) Close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}

// rollback returns the source's events for redelivery after an abort.
func rollback(source eventSource, logger *slog.Logger) {
	if err := source.Rollback(); err != nil {
		logger.Error("event rollback failed", "error", err)
	}
}

// errorCode maps a stream error to a CLI error code.
func errorCode(err error) string {
	var deltaErr *delta.Error
	if errors.As(err, &deltaErr) {
		return string(deltaErr.Code)
	}
	return ErrCodeGeneric
}

func outputWriteSummary(formatter *OutputFormatter, summary WriteSummary) error {
	if formatter.IsJSON() {
		return formatter.Success(summary)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Task %s committed\n", summary.TaskID)
	fmt.Fprintf(w, "  table:      %s\n", summary.Table)
	fmt.Fprintf(w, "  events:     %d\n", summary.Events)
	fmt.Fprintf(w, "  partitions: %d\n", summary.Partitions)
	fmt.Fprintf(w, "  records:    %d data, %d delete\n", summary.DataRecords, summary.DeleteRecords)
	if len(summary.Files) > 0 {
		fmt.Fprintln(w)
		printFileTable(w, summary.Files)
	}
	return nil
}
