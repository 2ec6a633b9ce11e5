package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/deltasink/internal/ir"
	"github.com/roach88/deltasink/internal/store"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	TaskID   string // optional - specific task only
}

// VerifyFileResult holds the verification result for a single file.
type VerifyFileResult struct {
	ID             string `json:"id"`
	Content        string `json:"content"`
	Partition      string `json:"partition"`
	RecordCount    int64  `json:"record_count"`
	ReadRecords    int64  `json:"read_records"`
	Digest         string `json:"digest"`
	ComputedDigest string `json:"computed_digest"`
	Valid          bool   `json:"valid"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Files      []VerifyFileResult `json:"files"`
	TotalFiles int                `json:"total_files"`
	AllValid   bool               `json:"all_valid"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Re-read committed files and check their digests",
		Long: `Re-read every committed file and recompute its content digest.

A file is valid when the number of stored records matches its record count
and the digest over those records, in append order, matches the digest
recorded at commit.

Exit codes:
  0 - All files are valid
  1 - One or more files failed verification
  2 - Command error (database not found, etc.)

Examples:
  deltasink verify --db ./sink.db
  deltasink verify --db ./sink.db --task-id 0193...
  deltasink verify --db ./sink.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.TaskID, "task-id", "", "verify files of a specific task only")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
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

	result := VerifyResult{
		Files:      make([]VerifyFileResult, 0, len(files)),
		TotalFiles: len(files),
		AllValid:   true,
	}
	for _, f := range files {
		fileResult, err := verifyFile(ctx, st, f)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to verify file %s", f.ID), err)
		}
		formatter.VerboseLog("%s: %d record(s), valid=%t", f.ID, fileResult.ReadRecords, fileResult.Valid)
		result.Files = append(result.Files, fileResult)
		if !fileResult.Valid {
			result.AllValid = false
		}
	}

	if formatter.IsJSON() {
		if err := formatter.WriteJSON(verifyResponse(result)); err != nil {
			return err
		}
	} else {
		outputVerifyText(formatter, result)
	}

	if !result.AllValid {
		return NewExitError(ExitFailure, "file verification failed")
	}
	return nil
}

// verifyFile recomputes the digest of one committed file.
func verifyFile(ctx context.Context, st *store.Store, f ir.DataFile) (VerifyFileResult, error) {
	records, err := st.ReadRecords(ctx, f.ID)
	if err != nil {
		return VerifyFileResult{}, err
	}

	domain := ir.DomainDataFile
	if f.Content == ir.ContentEqualityDeletes {
		domain = ir.DomainDeleteFile
	}
	digest := ir.NewDigest(domain)
	for i, r := range records {
		data, err := ir.MarshalRecord(r)
		if err != nil {
			return VerifyFileResult{}, fmt.Errorf("record %d: %w", i, err)
		}
		digest.Add(data)
	}

	computed := digest.Sum()
	read := int64(len(records))
	return VerifyFileResult{
		ID:             f.ID,
		Content:        string(f.Content),
		Partition:      f.Partition.String(),
		RecordCount:    f.RecordCount,
		ReadRecords:    read,
		Digest:         f.Digest,
		ComputedDigest: computed,
		Valid:          read == f.RecordCount && computed == f.Digest,
	}, nil
}

func verifyResponse(result VerifyResult) CLIResponse {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllValid {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_VERIFY_FAILED",
			Message: "one or more files failed verification",
		}
	}
	return response
}

func outputVerifyText(formatter *OutputFormatter, result VerifyResult) {
	w := formatter.Writer
	if result.TotalFiles == 0 {
		fmt.Fprintln(w, "No committed files found.")
		return
	}

	for _, f := range result.Files {
		if f.Valid {
			fmt.Fprintf(w, "✓ %s (%s, %s, %d record(s))\n", f.ID, f.Content, f.Partition, f.RecordCount)
			continue
		}
		fmt.Fprintf(w, "✗ %s (%s, %s)\n", f.ID, f.Content, f.Partition)
		if f.ReadRecords != f.RecordCount {
			fmt.Fprintf(w, "  record count %d, read %d\n", f.RecordCount, f.ReadRecords)
		}
		if f.ComputedDigest != f.Digest {
			fmt.Fprintf(w, "  digest %s, computed %s\n", f.Digest, f.ComputedDigest)
		}
	}

	fmt.Fprintln(w)
	if result.AllValid {
		fmt.Fprintf(w, "✓ All %d file(s) valid\n", result.TotalFiles)
		return
	}
	fmt.Fprintln(w, "✗ Verification failed")
}
