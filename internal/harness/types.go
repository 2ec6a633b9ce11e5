package harness

import "github.com/roach88/deltasink/internal/ir"

// Writer call actions recorded in the trace.
const (
	ActionData   = "data"
	ActionDelete = "delete"
)

// TraceEvent is one call the delta writer made on a file backend.
type TraceEvent struct {
	Seq       int64      `json:"seq"`
	Action    string     `json:"action"`
	Partition string     `json:"partition"`
	Record    []ir.Value `json:"record"`
}

// FileSnapshot is a closed file with its records read back from the store.
type FileSnapshot struct {
	File    ir.DataFile  `json:"file"`
	Records [][]ir.Value `json:"records"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every backend append in call order.
	Trace []TraceEvent `json:"trace"`

	// Files lists the closed files, in store order.
	Files []FileSnapshot `json:"files"`

	// WriteError is the error that ended the event stream, if any.
	WriteError string `json:"write_error,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Files:  []FileSnapshot{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a writer call to the trace.
func (r *Result) AddTrace(action, partition string, record []ir.Value) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:       int64(len(r.Trace) + 1),
		Action:    action,
		Partition: partition,
		Record:    append([]ir.Value(nil), record...),
	})
}

// CountFiles returns how many files of content the result holds.
func (r *Result) CountFiles(content ir.FileContent) int {
	n := 0
	for _, f := range r.Files {
		if f.File.Content == content {
			n++
		}
	}
	return n
}
