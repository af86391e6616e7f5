// Package topology resolves cable endpoints, finds tray-section routes and
// drives the connect-cable orchestration.
//
// Every lookup table a run needs lives in one Cache, built at the start of
// the cable layer and discarded with the run. Nothing here holds global
// state.
package topology

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/topoload/internal/inventory"
)

// Catalog reads master data and lookup entities in full.
type Catalog interface {
	Catalog(ctx context.Context, kind inventory.Kind) ([]inventory.Record, error)
}

// JunctionBoxType is one entry of the junction-box type catalog.
type JunctionBoxType struct {
	Elid string
	Type string

	// Fist marks the splice-closure catalog.
	Fist bool
}

// Cache holds the per-run lookup tables.
//
// Thread-safety: read-only after NewCache returns.
type Cache struct {
	nodes        map[string][]string
	buildings    map[string][]string
	cableMasters map[string]string
	boxes        map[string]JunctionBoxType
}

// NewCache reads the node, building, cable master and both junction-box
// catalogs concurrently. Any failure fails the whole cache.
func NewCache(ctx context.Context, cat Catalog) (*Cache, error) {
	var nodes, buildings, masters, plain, fist []inventory.Record

	g, gctx := errgroup.WithContext(ctx)
	load := func(kind inventory.Kind, dst *[]inventory.Record) {
		g.Go(func() error {
			recs, err := cat.Catalog(gctx, kind)
			if err != nil {
				return fmt.Errorf("load %s catalog: %w", kind, err)
			}
			*dst = recs
			return nil
		})
	}
	load(inventory.KindNode, &nodes)
	load(inventory.KindBuilding, &buildings)
	load(inventory.KindCableMaster, &masters)
	load(inventory.KindJunctionBoxMaster, &plain)
	load(inventory.KindJunctionBoxFistMaster, &fist)
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c := &Cache{
		nodes:        groupBy(nodes, "id"),
		buildings:    groupBy(buildings, "name"),
		cableMasters: make(map[string]string, len(masters)),
		boxes:        make(map[string]JunctionBoxType, 2*(len(plain)+len(fist))),
	}
	for _, m := range masters {
		if t := m.String("type"); t != "" {
			if _, seen := c.cableMasters[t]; !seen {
				c.cableMasters[t] = m.Elid
			}
		}
	}
	for _, set := range []struct {
		recs []inventory.Record
		fist bool
	}{{plain, false}, {fist, true}} {
		for _, r := range set.recs {
			jt := JunctionBoxType{Elid: r.Elid, Type: r.String("type"), Fist: set.fist}
			if jt.Type != "" {
				c.boxes[jt.Type] = jt
			}
			c.boxes[jt.Elid] = jt
		}
	}
	return c, nil
}

func groupBy(recs []inventory.Record, field string) map[string][]string {
	out := make(map[string][]string, len(recs))
	for _, r := range recs {
		k := inventory.NormalizeKey(r.String(field))
		if k == "" {
			continue
		}
		out[k] = append(out[k], r.Elid)
	}
	return out
}

// NodeElid returns the elid of the node with the given id.
func (c *Cache) NodeElid(ep inventory.EndpointDescriptor) (string, error) {
	return unique(c.nodes, ep, inventory.KindNode)
}

// BuildingElid returns the elid of the building with the given name.
func (c *Cache) BuildingElid(ep inventory.EndpointDescriptor) (string, error) {
	return unique(c.buildings, ep, inventory.KindBuilding)
}

func unique(m map[string][]string, ep inventory.EndpointDescriptor, kind inventory.Kind) (string, error) {
	elids := m[inventory.NormalizeKey(ep.ID)]
	switch len(elids) {
	case 0:
		return "", inventory.NewEndpointNotFoundError(ep, fmt.Sprintf("no %s with id %q", kind, ep.ID))
	case 1:
		return elids[0], nil
	}
	return "", inventory.NewDataIntegrityError(kind, ep.ID, len(elids), string(kind)+" per id")
}

// CableMasterElid returns the cable master elid of a master type such as "FO-24".
func (c *Cache) CableMasterElid(masterType string) (string, bool) {
	elid, ok := c.cableMasters[masterType]
	return elid, ok
}

// JunctionBox returns the junction-box type registered under a type name or
// a type elid.
func (c *Cache) JunctionBox(typeRef string) (JunctionBoxType, bool) {
	jt, ok := c.boxes[typeRef]
	return jt, ok
}

// Stats reports table sizes for logging.
func (c *Cache) Stats() map[string]int {
	return map[string]int{
		"nodes":          len(c.nodes),
		"buildings":      len(c.buildings),
		"cable_masters":  len(c.cableMasters),
		"junction_types": len(c.boxes),
	}
}
