package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/deltasink/internal/ir"
	"github.com/roach88/deltasink/internal/store"
)

// FilesOptions holds flags for the files command.
type FilesOptions struct {
	*RootOptions
	Database string
	TaskID   string // optional - specific task only
	Records  bool   // include records
}

// FileListing is a committed file, optionally with its records.
type FileListing struct {
	ir.DataFile
	Records [][]ir.Value `json:"records,omitempty"`
}

// FilesResult holds the files command output.
type FilesResult struct {
	Files []FileListing `json:"files"`
	Stats FilesStats    `json:"stats"`
}

// FilesStats holds summary statistics for a listing.
type FilesStats struct {
	DataFiles     int   `json:"data_files"`
	DeleteFiles   int   `json:"delete_files"`
	DataRecords   int64 `json:"data_records"`
	DeleteRecords int64 `json:"delete_records"`
}

// NewFilesCommand creates the files command.
func NewFilesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FilesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "files",
		Short: "List committed data and delete files",
		Long: `List the committed files of one task, or of every task.

Open and aborted files are never listed. With --records, each file's
records are printed in append order.

Examples:
  deltasink files --db ./sink.db
  deltasink files --db ./sink.db --task-id 0193... --records
  deltasink files --db ./sink.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFiles(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.TaskID, "task-id", "", "list files of a specific task only")
	cmd.Flags().BoolVar(&opts.Records, "records", false, "include file records")

	return cmd
}

func runFiles(opts *FilesOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	files, err := st.ListFiles(ctx, opts.TaskID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list files", err)
	}

	result := FilesResult{Files: make([]FileListing, 0, len(files))}
	for _, f := range files {
		listing := FileListing{DataFile: f}
		if opts.Records {
			listing.Records, err = st.ReadRecords(ctx, f.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read file %s", f.ID), err)
			}
		}
		result.Files = append(result.Files, listing)

		if f.Content == ir.ContentData {
			result.Stats.DataFiles++
			result.Stats.DataRecords += f.RecordCount
		} else {
			result.Stats.DeleteFiles++
			result.Stats.DeleteRecords += f.RecordCount
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputFilesText(formatter.Writer, result)
}

func outputFilesText(w io.Writer, result FilesResult) error {
	if len(result.Files) == 0 {
		fmt.Fprintln(w, "No committed files found.")
		return nil
	}

	files := make([]ir.DataFile, len(result.Files))
	for i, f := range result.Files {
		files[i] = f.DataFile
	}
	printFileTable(w, files)

	for _, f := range result.Files {
		if len(f.Records) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", f.ID)
		for _, r := range f.Records {
			fmt.Fprintf(w, "  %s\n", formatRecord(r))
		}
	}

	fmt.Fprintf(w, "\n%d data file(s) with %d record(s), %d delete file(s) with %d record(s)\n",
		result.Stats.DataFiles, result.Stats.DataRecords,
		result.Stats.DeleteFiles, result.Stats.DeleteRecords)
	return nil
}

// printFileTable prints one aligned line per file.
func printFileTable(w io.Writer, files []ir.DataFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCONTENT\tPARTITION\tEQUALITY IDS\tRECORDS")
	for _, f := range files {
		ids := "-"
		if f.Content == ir.ContentEqualityDeletes {
			ids = fmt.Sprint(f.EqualityFieldIDs)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", f.ID, f.Content, f.Partition.String(), ids, f.RecordCount)
	}
	tw.Flush()
}

// formatRecord renders positional values as (v1,v2,...).
func formatRecord(values []ir.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if s, ok := v.(ir.String); ok {
			parts[i] = fmt.Sprintf("%q", string(s))
			continue
		}
		parts[i] = ir.FormatValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
