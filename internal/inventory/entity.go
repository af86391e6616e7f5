package inventory

import "context"

// Entity is the capability set the reconciler needs from one entity type.
//
// Implementations exist per entity type (REST-backed in restapi, in-memory in
// testutil, connect-backed for cables in topology). The reconciler never
// depends on a concrete type.
type Entity interface {
	// Kind reports which entity type this capability serves.
	Kind() Kind

	// Create persists a candidate. A transport or server failure is returned
	// as an error; a response the server rejected is reported in the result.
	Create(ctx context.Context, c Candidate) (CreateResult, error)

	// GetAll returns every stored record of this type.
	GetAll(ctx context.Context) ([]Record, error)

	// GetByQuery returns the records matching q.
	GetByQuery(ctx context.Context, q Query) ([]Record, error)

	// GetByElid returns the record or nil when it does not exist.
	GetByElid(ctx context.Context, elid string) (*Record, error)

	// Delete removes the record with the given elid.
	Delete(ctx context.Context, elid string) error
}

// CreateResult is the classified response of a create call.
type CreateResult struct {
	Success       bool
	Elid          string
	Message       string
	AlreadyExists bool
}
