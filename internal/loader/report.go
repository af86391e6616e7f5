package loader

import (
	"time"

	"github.com/roach88/topoload/internal/importer"
	"github.com/roach88/topoload/internal/inventory"
	"github.com/roach88/topoload/internal/store"
)

// Report is the result of one run.
type Report struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Cleanup    bool            `json:"cleanup" yaml:"cleanup"`
	Status     string          `json:"status" yaml:"status"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	Layers     []LayerReport   `json:"layers" yaml:"layers"`
	Totals     importer.Counts `json:"totals" yaml:"totals"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	ReportKey  string          `json:"-" yaml:"-"`
}

// Failed reports whether any item failed or the run was aborted.
func (r *Report) Failed() bool {
	return r.Error != "" || r.Totals.Failures() > 0
}

// Layer returns the report of the named layer.
func (r *Report) Layer(name string) (LayerReport, bool) {
	for _, l := range r.Layers {
		if l.Name == name {
			return l, true
		}
	}
	return LayerReport{}, false
}

// LayerReport is the outcome of one layer.
type LayerReport struct {
	Name           string            `json:"name" yaml:"name"`
	Entity         inventory.Kind    `json:"entity" yaml:"entity"`
	Order          int               `json:"order" yaml:"order"`
	Skipped        bool              `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	IndexSize      int               `json:"index_size" yaml:"index_size"`
	Counts         importer.Counts   `json:"counts" yaml:"counts"`
	FailureReasons map[string]int    `json:"failure_reasons,omitempty" yaml:"failure_reasons,omitempty"`
	Failures       []Failure         `json:"failures,omitempty" yaml:"failures,omitempty"`
	Summary        *importer.Summary `json:"-" yaml:"-"`
}

// Failure is one failed item.
type Failure struct {
	Seq     int              `json:"seq" yaml:"seq"`
	Key     string           `json:"key,omitempty" yaml:"key,omitempty"`
	Outcome importer.Outcome `json:"outcome" yaml:"outcome"`
	Code    string           `json:"code,omitempty" yaml:"code,omitempty"`
	Message string           `json:"message" yaml:"message"`
}

func failureOf(it importer.Item) Failure {
	f := Failure{Seq: it.Seq, Key: it.Key, Outcome: it.Outcome}
	if it.Err != nil {
		f.Code = string(inventory.CodeOf(it.Err))
		f.Message = it.Err.Error()
	}
	if f.Key == "" {
		f.Key = it.Candidate.Describe()
	}
	return f
}

// outcomeRows converts a layer's items into audit rows.
func outcomeRows(order int, lr LayerReport) []store.OutcomeRow {
	items := lr.Summary.Items()
	rows := make([]store.OutcomeRow, 0, len(items))
	for _, it := range items {
		row := store.OutcomeRow{
			Layer:       lr.Name,
			LayerOrder:  order,
			Seq:         it.Seq,
			IdentityKey: it.Key,
			Outcome:     string(it.Outcome),
			Elid:        it.Elid,
			Candidate:   it.Candidate.Describe(),
		}
		if it.Err != nil {
			row.ErrorCode = string(inventory.CodeOf(it.Err))
			row.Message = it.Err.Error()
		}
		if b, err := inventory.MarshalCanonical(it.Candidate.Attrs); err == nil {
			row.Candidate = string(b)
		}
		rows = append(rows, row)
	}
	return rows
}
