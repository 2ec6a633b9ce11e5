package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/deltasink/internal/ir"
)

// Snapshot captures the observable outcome of a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string         `json:"scenario_name"`
	Trace        []TraceEvent   `json:"trace"`
	Files        []FileSnapshot `json:"files"`
	WriteError   string         `json:"write_error,omitempty"`
}

// NewSnapshot builds the snapshot of result under scenarioName.
func NewSnapshot(scenarioName string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Files:        result.Files,
		WriteError:   result.WriteError,
	}
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		traceList[i] = map[string]any{
			"seq":       event.Seq,
			"action":    event.Action,
			"partition": event.Partition,
			"record":    event.Record,
		}
	}

	fileList := make([]any, len(s.Files))
	for i, f := range s.Files {
		records := make([]any, len(f.Records))
		for j, r := range f.Records {
			records[j] = r
		}
		fileMap := map[string]any{
			"id":           f.File.ID,
			"content":      string(f.File.Content),
			"partition":    f.File.PartitionPath,
			"record_count": f.File.RecordCount,
			"digest":       f.File.Digest,
			"records":      records,
		}
		if f.File.Content == ir.ContentEqualityDeletes {
			fileMap["equality_ids"] = f.File.EqualityFieldIDs
		}
		fileList[i] = fileMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"files":         fileList,
	}
	if s.WriteError != "" {
		result["write_error"] = s.WriteError
	}
	return result
}

// MarshalCanonical renders the snapshot as canonical JSON.
func (s *Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewSnapshot(scenarioName, result)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
