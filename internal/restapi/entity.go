package restapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/roach88/topoload/internal/inventory"
)

// conflictMarkers are the rejection messages that mean the record is
// already stored.
var conflictMarkers = []string{"already exists", "already in use"}

// EntityAPI implements inventory.Entity for one REST entity type.
type EntityAPI struct {
	c          *Client
	kind       inventory.Kind
	deleteBody func() map[string]any
}

// Entity returns the capability for an entity type.
func (c *Client) Entity(kind inventory.Kind) *EntityAPI {
	e := &EntityAPI{
		c:          c,
		kind:       kind,
		deleteBody: func() map[string]any { return map[string]any{} },
	}
	if kind == inventory.KindDataCable {
		e.deleteBody = inventory.CableDeleteWire
	}
	return e
}

var _ inventory.Entity = (*EntityAPI)(nil)

// Kind implements inventory.Entity.
func (e *EntityAPI) Kind() inventory.Kind { return e.kind }

// Create posts the candidate's wire form and classifies the response:
// 200 with returnData.elid is a success; 400 with a conflict message means
// the record already exists; anything else is an unsuccessful result.
func (e *EntityAPI) Create(ctx context.Context, cand inventory.Candidate) (inventory.CreateResult, error) {
	resp, err := e.c.Request(ctx, e.kind, "create", cand.Wire())
	if err != nil {
		return inventory.CreateResult{}, err
	}
	return classifyCreate(resp)
}

func classifyCreate(resp *Response) (inventory.CreateResult, error) {
	if resp.Success {
		obj, err := resp.Object()
		if err != nil {
			return inventory.CreateResult{}, err
		}
		elid := inventory.NewRecord(obj).Elid
		if resp.StatusCode == http.StatusOK && elid != "" {
			return inventory.CreateResult{Success: true, Elid: elid}, nil
		}
		return inventory.CreateResult{Message: "create response carries no elid"}, nil
	}

	if resp.StatusCode == http.StatusBadRequest {
		msg := strings.ToLower(resp.Message)
		for _, marker := range conflictMarkers {
			if strings.Contains(msg, marker) {
				return inventory.CreateResult{AlreadyExists: true, Message: resp.Message}, nil
			}
		}
	}
	return inventory.CreateResult{Message: resp.Message}, nil
}

// GetAll implements inventory.Entity.
func (e *EntityAPI) GetAll(ctx context.Context) ([]inventory.Record, error) {
	return e.GetByQuery(ctx, inventory.All())
}

// GetByQuery implements inventory.Entity.
func (e *EntityAPI) GetByQuery(ctx context.Context, q inventory.Query) ([]inventory.Record, error) {
	return e.c.query(ctx, e.kind, q)
}

// GetByElid implements inventory.Entity. More than one match is a
// DATA_INTEGRITY error.
func (e *EntityAPI) GetByElid(ctx context.Context, elid string) (*inventory.Record, error) {
	recs, err := e.GetByQuery(ctx, inventory.Query{}.Equals("elid", elid))
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return &recs[0], nil
	default:
		return nil, inventory.NewDataIntegrityError(e.kind, elid, len(recs), "record per elid")
	}
}

// Delete implements inventory.Entity.
func (e *EntityAPI) Delete(ctx context.Context, elid string) error {
	resp, err := e.c.ElidRequest(ctx, e.kind, elid, "delete", e.deleteBody())
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("delete %s %s: %s", e.kind, elid, resp.Message)
	}
	return nil
}

// query runs an entity query and decodes the records. An unsuccessful
// response is an error: callers cannot tell "none" from "refused" otherwise.
func (c *Client) query(ctx context.Context, kind inventory.Kind, q inventory.Query) ([]inventory.Record, error) {
	resp, err := c.Request(ctx, kind, "query", q.Wire())
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("query %s (%s): %s", kind, q, resp.Message)
	}
	return resp.Records()
}

func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
