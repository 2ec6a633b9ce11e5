package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/deltasink/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledTable is the resolved form of one table definition.
type CompiledTable struct {
	Name             string   `json:"name"`
	Schema           string   `json:"schema"`
	DeleteSchema     string   `json:"delete_schema"`
	EqualityFieldIDs []int    `json:"equality_ids"`
	Policy           string   `json:"delete_policy"`
	PartitionBy      []string `json:"partition_by"`
}

// CompilationResult holds the compiled tables.
type CompilationResult struct {
	Tables []CompiledTable `json:"tables"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <tables-dir>",
		Short: "Compile CUE table definitions",
		Long: `Compile CUE table definitions and print each table's schema,
delete schema, equality field ids, and partition columns.

The delete schema is the equality key sorted by ascending field id under
the key policy, and the full table schema under the row policy.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, tablesDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadTables(tablesDir, LoadModeCollectAll)
	if loadResult == nil {
		code, message := parseCompileError(loadErrors[0])
		return outputCompileError(formatter, code, message)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, tablesDir)

	errs := loadErrors
	result := &CompilationResult{Tables: make([]CompiledTable, 0, len(loadResult.Tables))}
	for _, spec := range loadResult.Tables {
		formatter.VerboseLog("Compiling table: %s", spec.Name)
		compiled, err := compileTable(spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		result.Tables = append(result.Tables, compiled)
	}

	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	if opts.Output != "" {
		if err := writeTablesToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err))
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// compileTable resolves spec and describes the result.
func compileTable(spec *compiler.TableSpec) (CompiledTable, error) {
	table, err := compiler.Resolve(spec)
	if err != nil {
		return CompiledTable{}, err
	}
	deleteSchema, err := table.DeleteSchema()
	if err != nil {
		return CompiledTable{}, fmt.Errorf("table %s: %w", spec.Name, err)
	}

	partitionBy := []string{}
	for _, id := range table.Partitioner.FieldIDs() {
		f, _ := table.Schema.FindField(id)
		partitionBy = append(partitionBy, f.Name)
	}

	return CompiledTable{
		Name:             table.Name,
		Schema:           table.Schema.String(),
		DeleteSchema:     deleteSchema.String(),
		EqualityFieldIDs: deleteSchema.IDs(),
		Policy:           table.Policy.String(),
		PartitionBy:      partitionBy,
	}, nil
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d table(s)\n\n", len(result.Tables))
	for _, t := range result.Tables {
		fmt.Fprintf(w, "%s (delete policy: %s)\n", t.Name, t.Policy)
		fmt.Fprintf(w, "  schema:        %s\n", t.Schema)
		fmt.Fprintf(w, "  delete schema: %s\n", t.DeleteSchema)
		if len(t.PartitionBy) > 0 {
			fmt.Fprintf(w, "  partition by:  %v\n", t.PartitionBy)
		}
		fmt.Fprintln(w)
	}

	if outputFile != "" {
		fmt.Fprintf(w, "Wrote compiled tables to %s\n", outputFile)
	}
	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.IsJSON() {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}
		if err := formatter.WriteJSON(response); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var validationErr compiler.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Code, err.Error()
	}
	return ErrCodeGeneric, err.Error()
}

// writeTablesToFile writes the compilation result as indented JSON.
func writeTablesToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling tables: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
