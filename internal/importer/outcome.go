// Package importer reconciles collected candidates against what the
// inventory system already stores.
//
// A layer is processed in three steps: BuildIndex snapshots every stored
// record of the entity type once, Reconciler.Reconcile decides per candidate
// whether to create, delete or skip, and the returned Summary records exactly
// one Outcome per candidate.
//
// INVARIANTS:
//   - Every candidate appears in the Summary exactly once, in input order
//   - A candidate whose key is in the index is never created
//   - Cleanup mode never creates; it deletes only indexed matches
//   - Only index construction failures abort a layer
package importer

// Outcome is the terminal status of one candidate.
type Outcome string

const (
	// OutcomeCreated means the create call succeeded.
	OutcomeCreated Outcome = "created"
	// OutcomeAlreadyExists means the key was indexed or the server reported a conflict.
	OutcomeAlreadyExists Outcome = "already_exists"
	// OutcomeDeleted means cleanup removed the matched record.
	OutcomeDeleted Outcome = "deleted"
	// OutcomeFailedCreate means the create call failed or was rejected.
	OutcomeFailedCreate Outcome = "failed_create"
	// OutcomeFailedDelete means the delete call failed.
	OutcomeFailedDelete Outcome = "failed_delete"
	// OutcomeMissingAttribute means the candidate was malformed and no call was made.
	OutcomeMissingAttribute Outcome = "missing_attribute"
	// OutcomeDuplicate means an earlier candidate in the same collection had the same key.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeSkipped means cleanup found no stored record to delete.
	OutcomeSkipped Outcome = "skipped"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeCreated,
	OutcomeAlreadyExists,
	OutcomeDeleted,
	OutcomeFailedCreate,
	OutcomeFailedDelete,
	OutcomeMissingAttribute,
	OutcomeDuplicate,
	OutcomeSkipped,
}

// Failed reports whether the outcome counts as a failure of the run.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFailedCreate, OutcomeFailedDelete, OutcomeMissingAttribute:
		return true
	}
	return false
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}
