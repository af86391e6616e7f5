package importer

import (
	"github.com/roach88/topoload/internal/inventory"
)

// Item is one candidate's entry in a Summary.
type Item struct {
	// Seq is the candidate's position in the collected input, starting at 1.
	Seq int

	// Key is the identity key, "" when it could not be derived.
	Key string

	Candidate inventory.Candidate

	// Existing is the matched stored record, nil when nothing matched.
	Existing *inventory.Record

	// Elid is the external id of the created, matched or deleted record.
	Elid string

	// Record is the read-back of a created record, when the read succeeded.
	Record *inventory.Record

	Outcome Outcome

	// Err explains failure outcomes and duplicates.
	Err error
}

// Counts are the per-outcome totals of a Summary.
type Counts struct {
	Total            int `json:"total" yaml:"total"`
	Good             int `json:"good" yaml:"good"`
	JustImported     int `json:"just_imported" yaml:"just_imported"`
	FailedCreate     int `json:"failed_create" yaml:"failed_create"`
	AttributeMissing int `json:"attribute_missing" yaml:"attribute_missing"`
	JustDeleted      int `json:"just_deleted" yaml:"just_deleted"`
	FailedDelete     int `json:"failed_delete" yaml:"failed_delete"`
	Duplicate        int `json:"duplicate" yaml:"duplicate"`
	Skipped          int `json:"skipped" yaml:"skipped"`
}

// Failures is the number of items that count against the run.
func (c Counts) Failures() int {
	return c.FailedCreate + c.FailedDelete + c.AttributeMissing
}

// Add returns the element-wise sum.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Total:            c.Total + o.Total,
		Good:             c.Good + o.Good,
		JustImported:     c.JustImported + o.JustImported,
		FailedCreate:     c.FailedCreate + o.FailedCreate,
		AttributeMissing: c.AttributeMissing + o.AttributeMissing,
		JustDeleted:      c.JustDeleted + o.JustDeleted,
		FailedDelete:     c.FailedDelete + o.FailedDelete,
		Duplicate:        c.Duplicate + o.Duplicate,
		Skipped:          c.Skipped + o.Skipped,
	}
}

// Summary is the ordered, append-only result of reconciling one layer.
// Counts are derived from the items on demand.
type Summary struct {
	Entity inventory.Kind
	items  []Item
}

func newSummary(kind inventory.Kind, items []Item) *Summary {
	return &Summary{Entity: kind, items: items}
}

// Items returns a copy of the items in input order.
func (s *Summary) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len is the number of items.
func (s *Summary) Len() int { return len(s.items) }

// Counts computes the per-outcome totals.
func (s *Summary) Counts() Counts {
	c := Counts{Total: len(s.items)}
	for _, it := range s.items {
		switch it.Outcome {
		case OutcomeCreated:
			c.JustImported++
			c.Good++
		case OutcomeAlreadyExists:
			c.Good++
		case OutcomeDeleted:
			c.JustDeleted++
		case OutcomeFailedCreate:
			c.FailedCreate++
		case OutcomeFailedDelete:
			c.FailedDelete++
		case OutcomeMissingAttribute:
			c.AttributeMissing++
		case OutcomeDuplicate:
			c.Duplicate++
		case OutcomeSkipped:
			c.Skipped++
		}
	}
	return c
}

// Created returns the items created in this run.
func (s *Summary) Created() []Item { return s.filter(OutcomeCreated) }

// Existing returns the items that were already stored.
func (s *Summary) Existing() []Item { return s.filter(OutcomeAlreadyExists) }

// Failed returns every item with a failure outcome.
func (s *Summary) Failed() []Item {
	var out []Item
	for _, it := range s.items {
		if it.Outcome.Failed() {
			out = append(out, it)
		}
	}
	return out
}

// Has reports whether any item ended with the outcome.
func (s *Summary) Has(o Outcome) bool {
	for _, it := range s.items {
		if it.Outcome == o {
			return true
		}
	}
	return false
}

func (s *Summary) filter(o Outcome) []Item {
	var out []Item
	for _, it := range s.items {
		if it.Outcome == o {
			out = append(out, it)
		}
	}
	return out
}

// FailureReasons groups failed items by error code, for reports.
func (s *Summary) FailureReasons() map[string]int {
	out := map[string]int{}
	for _, it := range s.items {
		if !it.Outcome.Failed() {
			continue
		}
		code := string(inventory.CodeOf(it.Err))
		if code == "" {
			code = "OTHER"
		}
		out[code]++
	}
	return out
}
