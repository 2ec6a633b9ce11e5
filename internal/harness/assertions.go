package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/deltasink/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s\n", event.Seq, event.Action, partitionLabel(event.Partition), formatRecord(event.Record))
		}
	}

	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertFileCount:
		return assertFileCount(result, a)
	case AssertFileRecords:
		return assertFileRecords(result, a)
	case AssertEqualityIDs:
		return assertEqualityIDs(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains checks for a writer call with the given action,
// partition, and exact record.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	want, err := toValues(a.Record)
	if err != nil {
		return err
	}

	for _, event := range trace {
		if event.Action == a.Action && event.Partition == a.Partition && recordsEqual(event.Record, want) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s %s", a.Action, partitionLabel(a.Partition), formatRecord(want)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks how many writer calls of an action were made.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s call(s)", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d %s call(s)", count, a.Action),
			Trace:    trace,
		}
	}
	return nil
}

// assertFileCount checks how many closed files of a content kind exist.
func assertFileCount(result *Result, a Assertion) error {
	count := result.CountFiles(ir.FileContent(a.Content))
	if count != a.Count {
		return &AssertionError{
			Type:     AssertFileCount,
			Expected: fmt.Sprintf("%d %s file(s)", a.Count, a.Content),
			Actual:   fmt.Sprintf("%d %s file(s)", count, a.Content),
		}
	}
	return nil
}

// assertFileRecords checks the exact records of one partition's file.
func assertFileRecords(result *Result, a Assertion) error {
	want := make([][]ir.Value, len(a.Records))
	for i, r := range a.Records {
		values, err := toValues(r)
		if err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		want[i] = values
	}

	for _, f := range result.Files {
		if string(f.File.Content) != a.Content || f.File.PartitionPath != a.Partition {
			continue
		}
		if slices.EqualFunc(f.Records, want, recordsEqual) {
			return nil
		}
		return &AssertionError{
			Type:     AssertFileRecords,
			Expected: formatRecords(want),
			Actual:   formatRecords(f.Records),
			Trace:    result.Trace,
		}
	}

	return &AssertionError{
		Type:     AssertFileRecords,
		Expected: fmt.Sprintf("%s file in %s", a.Content, partitionLabel(a.Partition)),
		Actual:   "no such file",
		Trace:    result.Trace,
	}
}

// assertEqualityIDs checks the ids recorded on every delete file.
func assertEqualityIDs(result *Result, a Assertion) error {
	found := false
	for _, f := range result.Files {
		if f.File.Content != ir.ContentEqualityDeletes {
			continue
		}
		found = true
		if !slices.Equal(f.File.EqualityFieldIDs, a.IDs) {
			return &AssertionError{
				Type:     AssertEqualityIDs,
				Expected: fmt.Sprintf("%v", a.IDs),
				Actual:   fmt.Sprintf("%v on %s", f.File.EqualityFieldIDs, f.File.ID),
			}
		}
	}
	if !found {
		return &AssertionError{
			Type:     AssertEqualityIDs,
			Expected: fmt.Sprintf("delete files with ids %v", a.IDs),
			Actual:   "no delete files",
		}
	}
	return nil
}

// toValues converts YAML-decoded scalars into values.
func toValues(raw []any) ([]ir.Value, error) {
	values := make([]ir.Value, len(raw))
	for i, r := range raw {
		v, err := ir.ValueOf(r)
		if err != nil {
			return nil, fmt.Errorf("record[%d]: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func recordsEqual(a, b []ir.Value) bool {
	return slices.EqualFunc(a, b, ir.EqualValues)
}

func formatRecord(values []ir.Value) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = ir.FormatValue(v)
	}
	return "(" + strings.Join(parts, ",") + ")"
}

func formatRecords(records [][]ir.Value) string {
	parts := make([]string, len(records))
	for i, r := range records {
		parts[i] = formatRecord(r)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func partitionLabel(path string) string {
	if path == "" {
		return "<unpartitioned>"
	}
	return path
}

func containsText(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
