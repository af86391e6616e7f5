package harness

import (
	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/loader"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool

	// Reports holds one report per run, in run order.
	Reports []*loader.Report

	// Snapshots are the golden views of the runs, in run order.
	Snapshots []RunSnapshot

	// Errors contains expectation and assertion failures. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// RunSnapshot is the deterministic view of one run.
type RunSnapshot struct {
	RunID   string          `json:"run_id"`
	Cleanup bool            `json:"cleanup"`
	Status  string          `json:"status"`
	Layers  []LayerSnapshot `json:"layers"`
	Skipped []string        `json:"skipped,omitempty"`
	Totals  importer.Counts `json:"totals"`

	// Records counts stored records of each configured layer's entity kind
	// after the run.
	Records map[string]int `json:"records"`

	// Routes is the number of cables with a stored route after the run.
	Routes int `json:"routes"`
}

// LayerSnapshot is the deterministic view of one layer that ran.
type LayerSnapshot struct {
	Name      string            `json:"name"`
	IndexSize int               `json:"index_size"`
	Counts    importer.Counts   `json:"counts"`
	Failures  []FailureSnapshot `json:"failures,omitempty"`
}

// FailureSnapshot leaves out messages, which carry elids and wording that
// golden files should not pin.
type FailureSnapshot struct {
	Seq     int              `json:"seq"`
	Outcome importer.Outcome `json:"outcome"`
	Code    string           `json:"code"`
}
