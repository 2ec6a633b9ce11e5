package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tables is the path of the CUE table definitions file.
	// Relative paths are resolved against the scenario file location.
	Tables string `yaml:"tables"`

	// Table selects the table under test from Tables.
	Table string `yaml:"table"`

	// TaskID names the task in file metadata. Default "test-task".
	TaskID string `yaml:"task_id,omitempty"`

	// Events is the ordered change stream.
	Events []EventStep `yaml:"events"`

	// ExpectError, when set, requires the stream to fail with an error
	// containing this text. Events after the failing one are not written
	// and the task is aborted instead of closed.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions validate the trace and the closed files.
	Assertions []Assertion `yaml:"assertions"`
}

// EventStep is one change event.
type EventStep struct {
	// Op is a wire name (+I, -U, +U, -D, INSERT, ...) or a raw integer kind.
	Op any `yaml:"op"`

	// Row maps column names to values. Absent columns are null.
	Row map[string]any `yaml:"row"`
}

// Assertion validates the trace or the files.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a writer call with Action, Partition, Record
	// - "trace_count": Count writer calls of Action
	// - "file_count": Count closed files of Content
	// - "file_records": the file of Content in Partition holds Records
	// - "equality_ids": every delete file records IDs
	Type string `yaml:"type"`

	// Action is "data" or "delete" (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Partition is a partition path; empty means unpartitioned.
	Partition string `yaml:"partition,omitempty"`

	// Record is the expected positional record (trace_contains).
	Record []any `yaml:"record,omitempty"`

	// Content is "data" or "equality_deletes" (file_count, file_records).
	Content string `yaml:"content,omitempty"`

	// Records are the expected file records in order (file_records).
	Records [][]any `yaml:"records,omitempty"`

	// IDs are the expected equality field ids (equality_ids).
	IDs []int `yaml:"ids,omitempty"`

	// Count is the expected number of occurrences (trace_count, file_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertFileCount     = "file_count"
	AssertFileRecords   = "file_records"
	AssertEqualityIDs   = "equality_ids"
)

// LoadScenario reads and parses a scenario YAML file.
// The tables path is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the tables path relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Tables != "" && !filepath.IsAbs(scenario.Tables) && basePath != "" {
		scenario.Tables = filepath.Join(basePath, scenario.Tables)
	}
	return scenario, nil
}

// ParseScenario parses scenario YAML. Paths are left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Tables == "" {
		return fmt.Errorf("tables is required")
	}
	if s.Table == "" {
		return fmt.Errorf("table is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("at least one event is required")
	}

	for i, e := range s.Events {
		if e.Op == nil {
			return fmt.Errorf("events[%d]: op is required", i)
		}
		if e.Row == nil {
			return fmt.Errorf("events[%d]: row is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion checks assertion-specific required fields.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if err := validateAction(index, a.Action); err != nil {
			return err
		}
		if a.Record == nil {
			return fmt.Errorf("assertions[%d]: record is required for trace_contains", index)
		}
	case AssertTraceCount:
		if err := validateAction(index, a.Action); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFileCount:
		if err := validateContent(index, a.Content); err != nil {
			return err
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for file_count", index)
		}
	case AssertFileRecords:
		if err := validateContent(index, a.Content); err != nil {
			return err
		}
		if a.Records == nil {
			return fmt.Errorf("assertions[%d]: records are required for file_records", index)
		}
	case AssertEqualityIDs:
		if len(a.IDs) == 0 {
			return fmt.Errorf("assertions[%d]: ids are required for equality_ids", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func validateAction(index int, action string) error {
	if action != ActionData && action != ActionDelete {
		return fmt.Errorf("assertions[%d]: action must be %q or %q, got %q", index, ActionData, ActionDelete, action)
	}
	return nil
}

func validateContent(index int, content string) error {
	if content != "data" && content != "equality_deletes" {
		return fmt.Errorf("assertions[%d]: content must be \"data\" or \"equality_deletes\", got %q", index, content)
	}
	return nil
}
